package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	_ "modernc.org/sqlite" // driver: sqlite
	"school-quiz-service/internal/domain"
)

type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// Open connects to Postgres (pgdriver) or SQLite (modernc) behind bun.
func Open(ctx context.Context, driver Driver, dsn string) (*bun.DB, error) {
	var db *bun.DB
	switch driver {
	case DriverPostgres:
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		db = bun.NewDB(sqldb, pgdialect.New())
	case DriverSQLite:
		if dsn == "" {
			dsn = "file:quiz.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
		sqldb, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, err
		}
		// sqlite serializes writers anyway; one connection avoids SQLITE_BUSY
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

// Store persists the catalog, attempts and answers through bun.
// It implements app.CatalogLoader, app.CatalogWriter and app.AttemptRepository.
type Store struct {
	db  *bun.DB
	now func() time.Time
}

func New(db *bun.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Catalog

func (s *Store) PutQuestion(ctx context.Context, q domain.Question) error {
	row := questionRow{
		ID:         q.ID,
		Text:       q.Text,
		AnswerType: string(q.AnswerType),
		Options:    q.Options,
		Correct:    q.Correct,
		UpdatedAt:  s.now().UTC(),
	}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (id) DO UPDATE").
		Set("text = EXCLUDED.text").
		Set("answer_type = EXCLUDED.answer_type").
		Set("options = EXCLUDED.options").
		Set("correct = EXCLUDED.correct").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("put question %s: %w", q.ID, err)
	}
	return nil
}

func (s *Store) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	var row questionRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", questionID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Question{}, domain.NotFound("question", questionID)
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("get question %s: %w", questionID, err)
	}
	return row.toDomain(), nil
}

// DeleteQuestion removes a question from the library. Links to it stay.
func (s *Store) DeleteQuestion(ctx context.Context, questionID string) error {
	res, err := s.db.NewDelete().Model((*questionRow)(nil)).Where("id = ?", questionID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete question %s: %w", questionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("question", questionID)
	}
	return nil
}

func (s *Store) LinkedTests(ctx context.Context, questionID string) ([]string, error) {
	var testIDs []string
	err := s.db.NewSelect().Model((*linkRow)(nil)).
		Column("test_id").Distinct().
		Where("question_id = ?", questionID).
		Order("test_id ASC").
		Scan(ctx, &testIDs)
	if err != nil {
		return nil, fmt.Errorf("tests linking %s: %w", questionID, err)
	}
	return testIDs, nil
}

// PutTest stores test metadata and replaces its question links.
func (s *Store) PutTest(ctx context.Context, test domain.Test) error {
	row := testRow{
		ID:                 test.ID,
		Title:              test.Title,
		MaxAttempts:        test.MaxAttempts,
		ShowCorrectAnswers: test.ShowCorrectAnswers,
	}
	links := make([]linkRow, 0, len(test.Questions))
	for _, tq := range test.Questions {
		links = append(links, linkRow{
			TestID:     test.ID,
			QuestionID: tq.QuestionID,
			OrderIndex: tq.Order,
			Points:     tq.Points,
		})
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&row).
			On("CONFLICT (id) DO UPDATE").
			Set("title = EXCLUDED.title").
			Set("max_attempts = EXCLUDED.max_attempts").
			Set("show_correct_answers = EXCLUDED.show_correct_answers").
			Exec(ctx)
		if err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*linkRow)(nil)).Where("test_id = ?", test.ID).Exec(ctx); err != nil {
			return err
		}
		if len(links) == 0 {
			return nil
		}
		_, err = tx.NewInsert().Model(&links).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("put test %s: %w", test.ID, err)
	}
	return nil
}

// LoadTest returns the test with its links ordered; links to deleted
// questions carry a nil Question.
func (s *Store) LoadTest(ctx context.Context, testID string) (domain.Test, error) {
	var row testRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", testID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Test{}, domain.NotFound("test", testID)
	}
	if err != nil {
		return domain.Test{}, fmt.Errorf("load test %s: %w", testID, err)
	}

	var links []linkRow
	if err := s.db.NewSelect().Model(&links).
		Where("test_id = ?", testID).
		Order("order_index ASC", "id ASC").
		Scan(ctx); err != nil {
		return domain.Test{}, fmt.Errorf("load links of %s: %w", testID, err)
	}

	questions := map[string]domain.Question{}
	if len(links) > 0 {
		ids := make([]string, 0, len(links))
		for _, l := range links {
			ids = append(ids, l.QuestionID)
		}
		var rows []questionRow
		if err := s.db.NewSelect().Model(&rows).Where("id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
			return domain.Test{}, fmt.Errorf("load questions of %s: %w", testID, err)
		}
		for _, r := range rows {
			questions[r.ID] = r.toDomain()
		}
	}

	test := domain.Test{
		ID:                 row.ID,
		Title:              row.Title,
		MaxAttempts:        row.MaxAttempts,
		ShowCorrectAnswers: row.ShowCorrectAnswers,
		Questions:          make([]domain.TestQuestion, 0, len(links)),
	}
	for _, l := range links {
		tq := domain.TestQuestion{
			ID:         l.ID,
			TestID:     l.TestID,
			QuestionID: l.QuestionID,
			Order:      l.OrderIndex,
			Points:     l.Points,
		}
		if q, ok := questions[l.QuestionID]; ok {
			tq.Question = &q
		}
		test.Questions = append(test.Questions, tq)
	}
	return test, nil
}

// Attempts

func (s *Store) GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	return getAttempt(ctx, s.db, attemptID)
}

func (s *Store) GetOrCreateAttempt(ctx context.Context, testID, userID string, maxScore int, now time.Time) (domain.Attempt, bool, error) {
	row := attemptRow{
		ID:        uuid.NewString(),
		TestID:    testID,
		UserID:    userID,
		StartedAt: now.UTC(),
		MaxScore:  maxScore,
	}
	var created bool
	var attempt domain.Attempt
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewInsert().Model(&row).
			On("CONFLICT (test_id, user_id) WHERE finished_at IS NULL DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 1 {
			created = true
			attempt = row.toDomain()
			return nil
		}
		var open attemptRow
		if err := tx.NewSelect().Model(&open).
			Where("test_id = ?", testID).
			Where("user_id = ?", userID).
			Where("finished_at IS NULL").
			Scan(ctx); err != nil {
			return err
		}
		attempt = open.toDomain()
		return nil
	})
	if err != nil {
		return domain.Attempt{}, false, fmt.Errorf("start attempt: %w", err)
	}
	return attempt, created, nil
}

func (s *Store) CountFinished(ctx context.Context, testID, userID string) (int, error) {
	n, err := s.db.NewSelect().Model((*attemptRow)(nil)).
		Where("test_id = ?", testID).
		Where("user_id = ?", userID).
		Where("finished_at IS NOT NULL").
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count finished attempts: %w", err)
	}
	return n, nil
}

func (s *Store) GetAnswer(ctx context.Context, attemptID, questionID string) (*domain.Answer, error) {
	var row answerRow
	err := s.db.NewSelect().Model(&row).
		Where("attempt_id = ?", attemptID).
		Where("question_id = ?", questionID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get answer: %w", err)
	}
	a := row.toDomain()
	return &a, nil
}

func (s *Store) ListAnswers(ctx context.Context, attemptID string) ([]domain.Answer, error) {
	var rows []answerRow
	if err := s.db.NewSelect().Model(&rows).
		Where("attempt_id = ?", attemptID).
		Order("question_id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	out := make([]domain.Answer, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// UpsertAnswer writes one answer per (attempt, question). The attempt is
// checked inside the same transaction so a concurrent finish wins.
func (s *Store) UpsertAnswer(ctx context.Context, answer domain.Answer) (domain.Answer, error) {
	if answer.ID == "" {
		answer.ID = uuid.NewString()
	}
	row := answerFromDomain(answer)
	var saved answerRow
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		attempt, err := getAttempt(ctx, tx, answer.AttemptID)
		if err != nil {
			return err
		}
		if attempt.FinishedAt != nil {
			return &domain.StateError{AttemptID: attempt.ID, Err: domain.ErrAttemptFinished}
		}
		_, err = tx.NewInsert().Model(&row).
			On("CONFLICT (attempt_id, question_id) DO UPDATE").
			Set("answer_type = EXCLUDED.answer_type").
			Set("selected_option_id = EXCLUDED.selected_option_id").
			Set("selected_option_ids = EXCLUDED.selected_option_ids").
			Set("free_text = EXCLUDED.free_text").
			Set("pairing = EXCLUDED.pairing").
			Set("is_correct = EXCLUDED.is_correct").
			Set("points_awarded = EXCLUDED.points_awarded").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return err
		}
		return tx.NewSelect().Model(&saved).
			Where("attempt_id = ?", answer.AttemptID).
			Where("question_id = ?", answer.QuestionID).
			Scan(ctx)
	})
	if err != nil {
		var stateErr *domain.StateError
		if domain.IsNotFound(err) || errors.As(err, &stateErr) {
			return domain.Answer{}, err
		}
		return domain.Answer{}, fmt.Errorf("upsert answer: %w", err)
	}
	return saved.toDomain(), nil
}

// SaveAttemptSummary stores the grading of every answer together with the
// attempt totals. finished_at is only set when still NULL.
func (s *Store) SaveAttemptSummary(ctx context.Context, attemptID string, graded []domain.Answer, summary domain.AttemptSummary, finishedAt *time.Time) (domain.Attempt, error) {
	var attempt domain.Attempt
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, a := range graded {
			if _, err := tx.NewUpdate().Model((*answerRow)(nil)).
				Set("is_correct = ?", a.IsCorrect).
				Set("points_awarded = ?", a.PointsAwarded).
				Where("attempt_id = ?", attemptID).
				Where("question_id = ?", a.QuestionID).
				Exec(ctx); err != nil {
				return err
			}
		}

		q := tx.NewUpdate().Model((*attemptRow)(nil)).
			Set("score = ?", summary.Score).
			Set("max_score = ?", summary.MaxScore).
			Where("id = ?", attemptID)
		if finishedAt != nil {
			q = q.Set("finished_at = COALESCE(finished_at, ?)", finishedAt.UTC())
		}
		res, err := q.Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.NotFound("attempt", attemptID)
		}
		attempt, err = getAttempt(ctx, tx, attemptID)
		return err
	})
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.Attempt{}, err
		}
		return domain.Attempt{}, fmt.Errorf("save attempt summary: %w", err)
	}
	return attempt, nil
}

func getAttempt(ctx context.Context, db bun.IDB, attemptID string) (domain.Attempt, error) {
	var row attemptRow
	err := db.NewSelect().Model(&row).Where("id = ?", attemptID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, domain.NotFound("attempt", attemptID)
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("get attempt %s: %w", attemptID, err)
	}
	return row.toDomain(), nil
}

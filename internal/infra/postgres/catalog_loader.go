package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"school-quiz-service/internal/domain"
)

const (
	selectTest = `SELECT id, title, max_attempts, show_correct_answers FROM tests WHERE id=$1`

	// LEFT JOIN keeps links to deleted questions, they scan with NULL question columns.
	selectLinks = `
SELECT tq.id, tq.question_id, tq.order_index, tq.points,
       q.text, q.answer_type, q.options, q.correct
FROM test_questions tq
LEFT JOIN questions q ON q.id = tq.question_id
WHERE tq.test_id = $1
ORDER BY tq.order_index, tq.id`
)

// CatalogLoader reads tests and their question links from Postgres.
type CatalogLoader struct {
	pool *pgxpool.Pool
}

func NewCatalogLoader(pool *pgxpool.Pool) *CatalogLoader {
	return &CatalogLoader{pool: pool}
}

func (l *CatalogLoader) LoadTest(ctx context.Context, testID string) (domain.Test, error) {
	test := domain.Test{ID: testID}
	err := l.pool.QueryRow(ctx, selectTest, testID).
		Scan(&test.ID, &test.Title, &test.MaxAttempts, &test.ShowCorrectAnswers)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Test{}, domain.NotFound("test", testID)
	}
	if err != nil {
		return domain.Test{}, fmt.Errorf("load test: %w", err)
	}

	rows, err := l.pool.Query(ctx, selectLinks, testID)
	if err != nil {
		return domain.Test{}, fmt.Errorf("load test questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		tq := domain.TestQuestion{TestID: testID}
		var text, answerType, options, correct *string
		if err := rows.Scan(&tq.ID, &tq.QuestionID, &tq.Order, &tq.Points, &text, &answerType, &options, &correct); err != nil {
			return domain.Test{}, fmt.Errorf("scan test question: %w", err)
		}
		if answerType != nil {
			tq.Question = &domain.Question{
				ID:         tq.QuestionID,
				Text:       deref(text),
				AnswerType: domain.AnswerType(*answerType),
				Options:    deref(options),
				Correct:    deref(correct),
			}
		}
		test.Questions = append(test.Questions, tq)
	}
	if err := rows.Err(); err != nil {
		return domain.Test{}, fmt.Errorf("load test questions: %w", err)
	}
	return test, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

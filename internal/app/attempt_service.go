package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"school-quiz-service/internal/domain"
	"school-quiz-service/internal/grading"
)

// CatalogLoader fetches a test and its question links from a backing store.
type CatalogLoader interface {
	LoadTest(ctx context.Context, testID string) (domain.Test, error)
}

// CatalogRepository serves tests (from cache/backing store). Links embed their
// question, nil when the question was deleted.
type CatalogRepository interface {
	GetTest(ctx context.Context, testID string) (domain.Test, error)
}

// AttemptRepository persists attempts and their answers.
type AttemptRepository interface {
	GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error)
	// GetOrCreateAttempt returns the in-progress attempt of (testID, userID),
	// creating it when there is none. created reports which happened.
	GetOrCreateAttempt(ctx context.Context, testID, userID string, maxScore int, now time.Time) (attempt domain.Attempt, created bool, err error)
	CountFinished(ctx context.Context, testID, userID string) (int, error)
	// GetAnswer returns nil when nothing was answered yet.
	GetAnswer(ctx context.Context, attemptID, questionID string) (*domain.Answer, error)
	ListAnswers(ctx context.Context, attemptID string) ([]domain.Answer, error)
	// UpsertAnswer writes the answer keyed by (AttemptID, QuestionID). It
	// fails with a *domain.StateError when the attempt is finished.
	UpsertAnswer(ctx context.Context, answer domain.Answer) (domain.Answer, error)
	// SaveAttemptSummary stores graded answers and the attempt score in one
	// unit. finishedAt is only applied to an attempt that is not finished yet.
	SaveAttemptSummary(ctx context.Context, attemptID string, graded []domain.Answer, summary domain.AttemptSummary, finishedAt *time.Time) (domain.Attempt, error)
}

// AttemptService drives an attempt through NotStarted -> InProgress -> Finished.
type AttemptService struct {
	catalog  CatalogRepository
	attempts AttemptRepository
	engine   *grading.Engine
	agg      *Aggregator
	now      func() time.Time
	log      zerolog.Logger
}

func NewAttemptService(catalog CatalogRepository, attempts AttemptRepository, engine *grading.Engine, log zerolog.Logger) *AttemptService {
	return NewAttemptServiceWithClock(catalog, attempts, engine, log, time.Now)
}

// NewAttemptServiceWithClock is used by tests for deterministic timestamps.
func NewAttemptServiceWithClock(catalog CatalogRepository, attempts AttemptRepository, engine *grading.Engine, log zerolog.Logger, now func() time.Time) *AttemptService {
	return &AttemptService{
		catalog:  catalog,
		attempts: attempts,
		engine:   engine,
		agg:      NewAggregator(engine, log),
		now:      now,
		log:      log,
	}
}

// StartAttempt resumes the user's in-progress attempt or opens a new one.
func (s *AttemptService) StartAttempt(ctx context.Context, testID, userID string) (domain.Attempt, bool, error) {
	test, err := s.catalog.GetTest(ctx, testID)
	if err != nil {
		return domain.Attempt{}, false, err
	}
	links := test.Gradable()
	if len(links) == 0 {
		return domain.Attempt{}, false, &domain.ConfigurationError{Subject: "test " + testID, Err: domain.ErrNoQuestions}
	}

	if test.MaxAttempts > 0 {
		finished, err := s.attempts.CountFinished(ctx, testID, userID)
		if err != nil {
			return domain.Attempt{}, false, err
		}
		if finished >= test.MaxAttempts {
			return domain.Attempt{}, false, &domain.StateError{Err: domain.ErrAttemptLimitReached}
		}
	}

	maxScore := 0
	for _, tq := range links {
		if tq.Points > 0 {
			maxScore += tq.Points
		}
	}
	attempt, created, err := s.attempts.GetOrCreateAttempt(ctx, testID, userID, maxScore, s.now())
	if err != nil {
		return domain.Attempt{}, false, err
	}
	if created {
		s.log.Info().Str("attemptId", attempt.ID).Str("testId", testID).Str("userId", userID).Msg("attempt started")
	}
	return attempt, created, nil
}

func (s *AttemptService) GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	return s.attempts.GetAttempt(ctx, attemptID)
}

// SubmitAnswer upserts the answer for one question and grades it right away
// for live feedback. The attempt score is only recomputed on finish/rescore.
func (s *AttemptService) SubmitAnswer(ctx context.Context, attemptID, questionID string, submission domain.Submission) (domain.AnswerResult, error) {
	attempt, err := s.openAttempt(ctx, attemptID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	test, err := s.catalog.GetTest(ctx, attempt.TestID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	link, ok := findLink(test.Gradable(), questionID)
	if !ok {
		return domain.AnswerResult{}, domain.NotFound("question", questionID)
	}

	answer, err := s.attempts.GetAnswer(ctx, attemptID, questionID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if answer == nil {
		answer = &domain.Answer{AttemptID: attemptID, QuestionID: questionID}
	}
	if err := grading.ApplySubmission(answer, link.Question.AnswerType, submission); err != nil {
		return domain.AnswerResult{}, &domain.ConfigurationError{Subject: "question " + questionID, Err: err}
	}

	res := s.engine.Grade(*link.Question, answer, link.Points)
	answer.IsCorrect = res.Correct
	answer.PointsAwarded = res.Points
	answer.UpdatedAt = s.now()

	saved, err := s.attempts.UpsertAnswer(ctx, *answer)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	return domain.AnswerResult{
		AttemptID:  attemptID,
		QuestionID: saved.QuestionID,
		Correct:    saved.IsCorrect,
		Awarded:    saved.PointsAwarded,
	}, nil
}

// NavigateTo returns the question at index, clamped to the test bounds, with
// the stored answer for pre-filling. It does not change the attempt.
func (s *AttemptService) NavigateTo(ctx context.Context, attemptID string, index int) (domain.QuestionView, error) {
	attempt, err := s.openAttempt(ctx, attemptID)
	if err != nil {
		return domain.QuestionView{}, err
	}
	test, err := s.catalog.GetTest(ctx, attempt.TestID)
	if err != nil {
		return domain.QuestionView{}, err
	}
	links := test.Gradable()
	if len(links) == 0 {
		return domain.QuestionView{}, &domain.ConfigurationError{Subject: "test " + test.ID, Err: domain.ErrNoQuestions}
	}
	if index < 0 {
		index = 0
	}
	if index > len(links)-1 {
		index = len(links) - 1
	}

	answers, err := s.attempts.ListAnswers(ctx, attemptID)
	if err != nil {
		return domain.QuestionView{}, err
	}
	byQuestion := indexAnswers(answers)

	current := links[index]
	q := *current.Question
	opts := grading.DecodeOptions(q.AnswerType, q.Options)
	view := domain.QuestionView{
		AttemptID:   attemptID,
		Index:       index,
		Total:       len(links),
		QuestionID:  q.ID,
		Text:        q.Text,
		AnswerType:  q.AnswerType,
		Choices:     opts.Choices,
		Pairs:       opts.Pairs,
		Points:      current.Points,
		Answer:      byQuestion[q.ID],
		AnsweredIDs: make([]string, 0, len(answers)),
	}
	for _, tq := range links {
		if _, ok := byQuestion[tq.QuestionID]; ok {
			view.AnsweredIDs = append(view.AnsweredIDs, tq.QuestionID)
		}
	}
	return view, nil
}

// FinishAttempt scores the whole attempt and closes it. Finishing a finished
// attempt re-runs the scoring and keeps the original finish time.
func (s *AttemptService) FinishAttempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, err
	}
	wasFinished := attempt.State() == domain.StateFinished
	finishedAt := s.now()
	attempt, _, err = s.rescore(ctx, attempt, &finishedAt)
	if err != nil {
		return domain.Attempt{}, err
	}
	if !wasFinished {
		s.log.Info().Str("attemptId", attempt.ID).Int("score", derefInt(attempt.Score)).Int("maxScore", attempt.MaxScore).Msg("attempt finished")
	}
	return attempt, nil
}

// RescoreAttempt recomputes every answer and the attempt totals from the raw
// payloads. It does not change the lifecycle state.
func (s *AttemptService) RescoreAttempt(ctx context.Context, attemptID string) (domain.AttemptSummary, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.AttemptSummary{}, err
	}
	_, summary, err := s.rescore(ctx, attempt, nil)
	return summary, err
}

// Result returns the graded view of an attempt, scoring it first if it was
// never scored. Expected answers are only included when the test allows it.
func (s *AttemptService) Result(ctx context.Context, attemptID string) (domain.AttemptResult, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.AttemptResult{}, err
	}
	if attempt.Score == nil {
		if attempt, _, err = s.rescore(ctx, attempt, nil); err != nil {
			return domain.AttemptResult{}, err
		}
	}
	test, err := s.catalog.GetTest(ctx, attempt.TestID)
	if err != nil {
		return domain.AttemptResult{}, err
	}
	answers, err := s.attempts.ListAnswers(ctx, attemptID)
	if err != nil {
		return domain.AttemptResult{}, err
	}
	byQuestion := indexAnswers(answers)

	result := domain.AttemptResult{Attempt: attempt, Title: test.Title}
	for _, tq := range test.Gradable() {
		row := domain.ResultRow{
			QuestionID: tq.QuestionID,
			Text:       tq.Question.Text,
			AnswerType: tq.Question.AnswerType,
			Points:     tq.Points,
			Answer:     byQuestion[tq.QuestionID],
		}
		if test.ShowCorrectAnswers {
			row.Expected = grading.Describe(*tq.Question)
		}
		result.Rows = append(result.Rows, row)
	}
	return result, nil
}

func (s *AttemptService) rescore(ctx context.Context, attempt domain.Attempt, finishedAt *time.Time) (domain.Attempt, domain.AttemptSummary, error) {
	test, err := s.catalog.GetTest(ctx, attempt.TestID)
	if err != nil {
		return domain.Attempt{}, domain.AttemptSummary{}, err
	}
	answers, err := s.attempts.ListAnswers(ctx, attempt.ID)
	if err != nil {
		return domain.Attempt{}, domain.AttemptSummary{}, err
	}
	byQuestion := indexAnswers(answers)

	summary := s.agg.Rescore(attempt, test.Questions, byQuestion)

	graded := make([]domain.Answer, 0, len(byQuestion))
	for _, tq := range test.Gradable() {
		if a, ok := byQuestion[tq.QuestionID]; ok {
			graded = append(graded, *a)
		}
	}
	saved, err := s.attempts.SaveAttemptSummary(ctx, attempt.ID, graded, summary, finishedAt)
	if err != nil {
		return domain.Attempt{}, domain.AttemptSummary{}, err
	}
	return saved, summary, nil
}

func (s *AttemptService) openAttempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, err
	}
	if attempt.State() == domain.StateFinished {
		return domain.Attempt{}, &domain.StateError{AttemptID: attemptID, Err: domain.ErrAttemptFinished}
	}
	return attempt, nil
}

func findLink(links []domain.TestQuestion, questionID string) (domain.TestQuestion, bool) {
	for _, tq := range links {
		if tq.QuestionID == questionID {
			return tq, true
		}
	}
	return domain.TestQuestion{}, false
}

func indexAnswers(answers []domain.Answer) map[string]*domain.Answer {
	out := make(map[string]*domain.Answer, len(answers))
	for i := range answers {
		out[answers[i].QuestionID] = &answers[i]
	}
	return out
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"school-quiz-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptRepository.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]domain.Attempt
	// answers is keyed by attempt ID then question ID.
	answers map[string]map[string]domain.Answer
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts: make(map[string]domain.Attempt),
		answers:  make(map[string]map[string]domain.Answer),
	}
}

func (s *AttemptStore) GetAttempt(_ context.Context, attemptID string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, domain.NotFound("attempt", attemptID)
	}
	return cloneAttempt(attempt), nil
}

func (s *AttemptStore) GetOrCreateAttempt(_ context.Context, testID, userID string, maxScore int, now time.Time) (domain.Attempt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attempts {
		if a.TestID == testID && a.UserID == userID && a.FinishedAt == nil {
			return cloneAttempt(a), false, nil
		}
	}
	attempt := domain.Attempt{
		ID:        uuid.NewString(),
		TestID:    testID,
		UserID:    userID,
		StartedAt: now,
		MaxScore:  maxScore,
	}
	s.attempts[attempt.ID] = attempt
	return cloneAttempt(attempt), true, nil
}

func (s *AttemptStore) CountFinished(_ context.Context, testID, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.attempts {
		if a.TestID == testID && a.UserID == userID && a.FinishedAt != nil {
			n++
		}
	}
	return n, nil
}

func (s *AttemptStore) GetAnswer(_ context.Context, attemptID, questionID string) (*domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	answer, ok := s.answers[attemptID][questionID]
	if !ok {
		return nil, nil
	}
	return &answer, nil
}

func (s *AttemptStore) ListAnswers(_ context.Context, attemptID string) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Answer, 0, len(s.answers[attemptID]))
	for _, a := range s.answers[attemptID] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (s *AttemptStore) UpsertAnswer(_ context.Context, answer domain.Answer) (domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[answer.AttemptID]
	if !ok {
		return domain.Answer{}, domain.NotFound("attempt", answer.AttemptID)
	}
	if attempt.FinishedAt != nil {
		return domain.Answer{}, &domain.StateError{AttemptID: attempt.ID, Err: domain.ErrAttemptFinished}
	}
	byQuestion, ok := s.answers[answer.AttemptID]
	if !ok {
		byQuestion = make(map[string]domain.Answer)
		s.answers[answer.AttemptID] = byQuestion
	}
	if existing, ok := byQuestion[answer.QuestionID]; ok {
		answer.ID = existing.ID
	} else if answer.ID == "" {
		answer.ID = uuid.NewString()
	}
	byQuestion[answer.QuestionID] = answer
	return answer, nil
}

func (s *AttemptStore) SaveAttemptSummary(_ context.Context, attemptID string, graded []domain.Answer, summary domain.AttemptSummary, finishedAt *time.Time) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, domain.NotFound("attempt", attemptID)
	}
	byQuestion := s.answers[attemptID]
	for _, g := range graded {
		if stored, ok := byQuestion[g.QuestionID]; ok {
			stored.IsCorrect = g.IsCorrect
			stored.PointsAwarded = g.PointsAwarded
			byQuestion[g.QuestionID] = stored
		}
	}
	score := summary.Score
	attempt.Score = &score
	attempt.MaxScore = summary.MaxScore
	if attempt.FinishedAt == nil && finishedAt != nil {
		at := *finishedAt
		attempt.FinishedAt = &at
	}
	s.attempts[attemptID] = attempt
	return cloneAttempt(attempt), nil
}

func cloneAttempt(a domain.Attempt) domain.Attempt {
	if a.FinishedAt != nil {
		at := *a.FinishedAt
		a.FinishedAt = &at
	}
	if a.Score != nil {
		score := *a.Score
		a.Score = &score
	}
	return a
}

package memory

import (
	"context"
	"sort"
	"sync"

	"school-quiz-service/internal/domain"
)

// CatalogStore keeps questions and tests in memory (useful for tests/demos).
// Tests hold links only; questions are joined in on LoadTest, so a deleted
// question leaves its links with a nil Question like the SQL stores do.
type CatalogStore struct {
	mu        sync.RWMutex
	questions map[string]domain.Question
	tests     map[string]domain.Test
}

// NewCatalogStore seeds the store from tests with embedded questions.
func NewCatalogStore(tests map[string]domain.Test) *CatalogStore {
	s := &CatalogStore{
		questions: make(map[string]domain.Question),
		tests:     make(map[string]domain.Test),
	}
	for id, test := range tests {
		for _, tq := range test.Questions {
			if tq.Question != nil {
				s.questions[tq.QuestionID] = *tq.Question
			}
		}
		test.ID = id
		s.tests[id] = stripQuestions(test)
	}
	return s
}

func (s *CatalogStore) LoadTest(_ context.Context, testID string) (domain.Test, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	test, ok := s.tests[testID]
	if !ok {
		return domain.Test{}, domain.NotFound("test", testID)
	}
	out := test
	out.Questions = make([]domain.TestQuestion, 0, len(test.Questions))
	for _, tq := range test.Questions {
		if q, ok := s.questions[tq.QuestionID]; ok {
			tq.Question = &q
		}
		out.Questions = append(out.Questions, tq)
	}
	return out, nil
}

func (s *CatalogStore) PutQuestion(_ context.Context, q domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[q.ID] = q
	return nil
}

func (s *CatalogStore) GetQuestion(_ context.Context, questionID string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[questionID]
	if !ok {
		return domain.Question{}, domain.NotFound("question", questionID)
	}
	return q, nil
}

func (s *CatalogStore) PutTest(_ context.Context, test domain.Test) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stripped := stripQuestions(test)
	for i := range stripped.Questions {
		stripped.Questions[i].ID = int64(i + 1)
		stripped.Questions[i].TestID = test.ID
	}
	s.tests[test.ID] = stripped
	return nil
}

// DeleteQuestion removes a question; links to it stay.
func (s *CatalogStore) DeleteQuestion(_ context.Context, questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[questionID]; !ok {
		return domain.NotFound("question", questionID)
	}
	delete(s.questions, questionID)
	return nil
}

func (s *CatalogStore) LinkedTests(_ context.Context, questionID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var affected []string
	for id, test := range s.tests {
		for _, tq := range test.Questions {
			if tq.QuestionID == questionID {
				affected = append(affected, id)
				break
			}
		}
	}
	sort.Strings(affected)
	return affected, nil
}

func stripQuestions(test domain.Test) domain.Test {
	links := make([]domain.TestQuestion, len(test.Questions))
	copy(links, test.Questions)
	for i := range links {
		links[i].Question = nil
	}
	test.Questions = links
	return test
}

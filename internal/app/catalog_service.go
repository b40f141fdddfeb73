package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"school-quiz-service/internal/domain"
	"school-quiz-service/internal/grading"
)

// CatalogWriter stores authored questions and tests.
type CatalogWriter interface {
	PutQuestion(ctx context.Context, q domain.Question) error
	GetQuestion(ctx context.Context, questionID string) (domain.Question, error)
	PutTest(ctx context.Context, test domain.Test) error
	DeleteQuestion(ctx context.Context, questionID string) error
	// LinkedTests returns the IDs of tests linking the question, deleted or not.
	LinkedTests(ctx context.Context, questionID string) ([]string, error)
}

// CatalogInvalidator drops cached copies of a test.
type CatalogInvalidator interface {
	Invalidate(ctx context.Context, testID string) error
}

// CatalogService is the authoring side of the catalog.
type CatalogService struct {
	writer CatalogWriter
	cache  CatalogInvalidator
	engine *grading.Engine
	log    zerolog.Logger
}

// NewCatalogService builds the service. cache may be nil when reads are not cached.
func NewCatalogService(writer CatalogWriter, cache CatalogInvalidator, engine *grading.Engine, log zerolog.Logger) *CatalogService {
	return &CatalogService{writer: writer, cache: cache, engine: engine, log: log}
}

// PutQuestion validates q against its answer type before storing it. Cached
// tests linking q are dropped so a corrected key is graded on the next rescore.
func (s *CatalogService) PutQuestion(ctx context.Context, q domain.Question) error {
	if q.ID == "" {
		return &domain.ConfigurationError{Subject: "question", Err: fmt.Errorf("%w: missing id", domain.ErrInvalidQuestion)}
	}
	if err := s.engine.Validate(q); err != nil {
		return err
	}
	if err := s.writer.PutQuestion(ctx, q); err != nil {
		return err
	}
	return s.invalidateLinked(ctx, q.ID)
}

// PutTest stores a test and its links. Every linked question must exist.
func (s *CatalogService) PutTest(ctx context.Context, test domain.Test) error {
	if test.ID == "" {
		return &domain.ConfigurationError{Subject: "test", Err: errors.New("missing id")}
	}
	if test.MaxAttempts < 0 {
		return &domain.ConfigurationError{Subject: "test " + test.ID, Err: errors.New("max attempts must not be negative")}
	}
	seen := make(map[string]struct{}, len(test.Questions))
	for _, tq := range test.Questions {
		if _, dup := seen[tq.QuestionID]; dup {
			return &domain.ConfigurationError{Subject: "test " + test.ID, Err: fmt.Errorf("question %s linked twice", tq.QuestionID)}
		}
		seen[tq.QuestionID] = struct{}{}
		if _, err := s.writer.GetQuestion(ctx, tq.QuestionID); err != nil {
			return err
		}
	}
	if err := s.writer.PutTest(ctx, test); err != nil {
		return err
	}
	s.invalidate(ctx, test.ID)
	return nil
}

// DeleteQuestion removes a question from the library. Links to it stay and
// are skipped by grading from then on.
func (s *CatalogService) DeleteQuestion(ctx context.Context, questionID string) error {
	if err := s.writer.DeleteQuestion(ctx, questionID); err != nil {
		return err
	}
	s.log.Info().Str("questionId", questionID).Msg("question deleted")
	return s.invalidateLinked(ctx, questionID)
}

func (s *CatalogService) invalidateLinked(ctx context.Context, questionID string) error {
	if s.cache == nil {
		return nil
	}
	testIDs, err := s.writer.LinkedTests(ctx, questionID)
	if err != nil {
		return err
	}
	for _, testID := range testIDs {
		s.invalidate(ctx, testID)
	}
	return nil
}

func (s *CatalogService) invalidate(ctx context.Context, testID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, testID); err != nil {
		s.log.Warn().Err(err).Str("testId", testID).Msg("invalidate cached test")
	}
}

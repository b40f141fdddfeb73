package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"school-quiz-service/internal/app"
	"school-quiz-service/internal/domain"
	"school-quiz-service/internal/grading"
	"school-quiz-service/internal/infra/memory"
)

func TestCatalogServiceRejectsInconsistentQuestion(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCatalogStore(nil)
	svc := app.NewCatalogService(store, nil, grading.NewEngine(), zerolog.Nop())

	err := svc.PutQuestion(ctx, domain.Question{ID: "q1", AnswerType: domain.AnswerSingle, Options: `["a","b"]`, Correct: "5"})
	var cfgErr *domain.ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.ErrorIs(t, err, domain.ErrInvalidQuestion)

	_, err = store.GetQuestion(ctx, "q1")
	assert.True(t, domain.IsNotFound(err), "invalid question must not be stored")

	err = svc.PutQuestion(ctx, domain.Question{AnswerType: domain.AnswerText, Correct: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidQuestion)
}

func TestCatalogServicePutTest(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCatalogStore(nil)
	svc := app.NewCatalogService(store, nil, grading.NewEngine(), zerolog.Nop())

	require.NoError(t, svc.PutQuestion(ctx, domain.Question{ID: "q1", Text: "2+2", AnswerType: domain.AnswerNumber, Correct: "4"}))

	err := svc.PutTest(ctx, domain.Test{ID: "t1", Questions: []domain.TestQuestion{{QuestionID: "missing", Points: 1}}})
	assert.True(t, domain.IsNotFound(err), "got %v", err)

	err = svc.PutTest(ctx, domain.Test{ID: "t1", Questions: []domain.TestQuestion{{QuestionID: "q1"}, {QuestionID: "q1"}}})
	var cfgErr *domain.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr), "duplicate link: %v", err)

	require.NoError(t, svc.PutTest(ctx, domain.Test{ID: "t1", Title: "Sums", Questions: []domain.TestQuestion{{QuestionID: "q1", Order: 1, Points: 2}}}))
	test, err := store.LoadTest(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, test.Gradable(), 1)
}

func TestCatalogServiceInvalidatesCachedTests(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCatalogStore(map[string]domain.Test{"test-1": quizTest()})
	cache := memory.NewCatalogCache(store, time.Hour)
	svc := app.NewCatalogService(store, cache, grading.NewEngine(), zerolog.Nop())

	before, err := cache.GetTest(ctx, "test-1")
	require.NoError(t, err)
	require.Len(t, before.Gradable(), 5)

	require.NoError(t, svc.DeleteQuestion(ctx, "q-number"))
	after, err := cache.GetTest(ctx, "test-1")
	require.NoError(t, err)
	assert.Len(t, after.Gradable(), 4)
	assert.Len(t, after.Questions, 5, "links stay")

	require.NoError(t, svc.PutQuestion(ctx, domain.Question{ID: "q-text", Text: "Capital of Italy?", AnswerType: domain.AnswerText, Correct: "Rome"}))
	after, err = cache.GetTest(ctx, "test-1")
	require.NoError(t, err)
	assert.Equal(t, "Rome", after.Gradable()[0].Question.Correct)

	assert.True(t, domain.IsNotFound(svc.DeleteQuestion(ctx, "q-number")))
}

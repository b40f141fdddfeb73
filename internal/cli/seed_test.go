package cli

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"school-quiz-service/internal/config"
	"school-quiz-service/internal/domain"
)

const seedYAML = `
questions:
  - id: add
    text: "  What is 2 + 2?  "
    type: single
    choices: ["3", "4"]
    correct: { index: 1 }
  - id: primes
    text: Pick the primes
    type: multi
    choices: ["2", "4", "5"]
    correct: { indices: [2, 0] }
  - id: pairs
    text: Match
    type: match
    pairs:
      - { left: France, right: Paris }
      - { left: Italy, right: Rome }
tests:
  - id: t1
    title: Seeded
    maxAttempts: 1
    questions:
      - question: add
      - question: primes
        points: 3
      - question: pairs
        points: 0
`

func TestParseSeed(t *testing.T) {
	questions, tests, err := parseSeed([]byte(seedYAML))
	require.NoError(t, err)
	require.Len(t, questions, 3)
	require.Len(t, tests, 1)

	assert.Equal(t, "What is 2 + 2?", questions[0].Text)
	assert.Equal(t, `["3","4"]`, questions[0].Options)
	assert.Equal(t, "1", questions[0].Correct)
	assert.Equal(t, "[0,2]", questions[1].Correct)
	assert.Equal(t, "", questions[2].Correct)
	assert.Equal(t, `[{"left":"France","right":"Paris"},{"left":"Italy","right":"Rome"}]`, questions[2].Options)

	links := tests[0].Questions
	require.Len(t, links, 3)
	assert.Equal(t, []int{1, 3, 0}, []int{links[0].Points, links[1].Points, links[2].Points})
	assert.Equal(t, []int{1, 2, 3}, []int{links[0].Order, links[1].Order, links[2].Order})
}

func TestParseSeedRejectsBadYAML(t *testing.T) {
	_, _, err := parseSeed([]byte("questions: [oops"))
	assert.Error(t, err)
}

func TestSeedIntoMemoryBackend(t *testing.T) {
	ctx := context.Background()
	b, err := newBackend(ctx, config.Config{}, zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()

	questions, tests, err := parseSeed([]byte(seedYAML))
	require.NoError(t, err)
	require.NoError(t, seedCatalogInto(ctx, b.catalog, questions, tests))

	attempt, created, err := b.attempts.StartAttempt(ctx, "t1", "student")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 4, attempt.MaxScore)

	primes := domain.Submission{SelectedOptionIDs: []int{2, 0}}
	res, err := b.attempts.SubmitAnswer(ctx, attempt.ID, "primes", primes)
	require.NoError(t, err)
	assert.True(t, res.Correct)

	finished, err := b.attempts.FinishAttempt(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, *finished.Score)
}

func TestSeedStopsOnInvalidQuestion(t *testing.T) {
	ctx := context.Background()
	b, err := newBackend(ctx, config.Config{}, zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()

	bad := []domain.Question{{ID: "bad", Text: "x", AnswerType: domain.AnswerSingle, Options: `["a"]`, Correct: "5"}}
	err = seedCatalogInto(ctx, b.catalog, bad, nil)
	var cfgErr *domain.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

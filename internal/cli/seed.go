package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"school-quiz-service/internal/app"
	"school-quiz-service/internal/domain"
	"school-quiz-service/internal/grading"
)

// NewSeedCmd loads questions and tests from a YAML catalog file.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a YAML question catalog into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "config/seed.yaml", "path to the catalog file")
	return cmd
}

type seedCorrect struct {
	Text    string `yaml:"text"`
	Index   *int   `yaml:"index"`
	Indices []int  `yaml:"indices"`
}

type seedQuestion struct {
	ID      string             `yaml:"id"`
	Text    string             `yaml:"text"`
	Type    domain.AnswerType  `yaml:"type"`
	Choices []string           `yaml:"choices"`
	Pairs   []domain.MatchPair `yaml:"pairs"`
	Correct seedCorrect        `yaml:"correct"`
}

type seedLink struct {
	Question string `yaml:"question"`
	Points   *int   `yaml:"points"`
}

type seedTest struct {
	ID                 string     `yaml:"id"`
	Title              string     `yaml:"title"`
	MaxAttempts        int        `yaml:"maxAttempts"`
	ShowCorrectAnswers bool       `yaml:"showCorrectAnswers"`
	Questions          []seedLink `yaml:"questions"`
}

type seedCatalog struct {
	Questions []seedQuestion `yaml:"questions"`
	Tests     []seedTest     `yaml:"tests"`
}

// parseSeed turns the YAML catalog into domain values. Link order follows
// the file and points default to 1.
func parseSeed(data []byte) ([]domain.Question, []domain.Test, error) {
	var catalog seedCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, nil, fmt.Errorf("parse seed: %w", err)
	}

	questions := make([]domain.Question, 0, len(catalog.Questions))
	for _, q := range catalog.Questions {
		index := -1
		if q.Correct.Index != nil {
			index = *q.Correct.Index
		}
		questions = append(questions, grading.BuildQuestion(q.ID, q.Text, q.Type,
			grading.Options{Choices: q.Choices, Pairs: q.Pairs},
			grading.Correct{Text: q.Correct.Text, Index: index, Indices: q.Correct.Indices}))
	}

	tests := make([]domain.Test, 0, len(catalog.Tests))
	for _, t := range catalog.Tests {
		test := domain.Test{
			ID:                 t.ID,
			Title:              t.Title,
			MaxAttempts:        t.MaxAttempts,
			ShowCorrectAnswers: t.ShowCorrectAnswers,
		}
		for i, l := range t.Questions {
			points := 1
			if l.Points != nil {
				points = *l.Points
			}
			test.Questions = append(test.Questions, domain.TestQuestion{
				TestID:     t.ID,
				QuestionID: l.Question,
				Order:      i + 1,
				Points:     points,
			})
		}
		tests = append(tests, test)
	}
	return questions, tests, nil
}

func runSeed(ctx context.Context, configPath, file string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	questions, tests, err := parseSeed(data)
	if err != nil {
		return err
	}

	b, err := newBackend(ctx, cfg, log.Logger)
	if err != nil {
		return err
	}
	defer b.Close()
	return seedCatalogInto(ctx, b.catalog, questions, tests)
}

// seedCatalogInto writes questions before tests so links resolve.
func seedCatalogInto(ctx context.Context, catalog *app.CatalogService, questions []domain.Question, tests []domain.Test) error {
	for _, q := range questions {
		if err := catalog.PutQuestion(ctx, q); err != nil {
			return fmt.Errorf("question %s: %w", q.ID, err)
		}
	}
	for _, t := range tests {
		if err := catalog.PutTest(ctx, t); err != nil {
			return fmt.Errorf("test %s: %w", t.ID, err)
		}
	}
	log.Info().Int("questions", len(questions)).Int("tests", len(tests)).Msg("catalog seeded")
	return nil
}

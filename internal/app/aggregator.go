package app

import (
	"github.com/rs/zerolog"
	"school-quiz-service/internal/domain"
	"school-quiz-service/internal/grading"
)

// Aggregator turns per-question grades into an attempt score.
type Aggregator struct {
	engine *grading.Engine
	log    zerolog.Logger
}

func NewAggregator(engine *grading.Engine, log zerolog.Logger) *Aggregator {
	return &Aggregator{engine: engine, log: log}
}

// Rescore grades every link in order and writes IsCorrect/PointsAwarded back
// onto the matching entries of answers. The summary is recomputed from the raw
// payloads on every call, so repeated calls agree.
// Links whose question was deleted are skipped and excluded from MaxScore.
func (g *Aggregator) Rescore(attempt domain.Attempt, links []domain.TestQuestion, answers map[string]*domain.Answer) domain.AttemptSummary {
	test := domain.Test{ID: attempt.TestID, Questions: links}

	var summary domain.AttemptSummary
	for _, tq := range test.OrderedQuestions() {
		if tq.Question == nil {
			g.log.Warn().Str("attemptId", attempt.ID).Str("testId", attempt.TestID).
				Str("questionId", tq.QuestionID).Msg("test links a deleted question, skipping")
			continue
		}
		points := tq.Points
		if points < 0 {
			points = 0
		}
		answer := answers[tq.QuestionID]
		res := g.engine.Grade(*tq.Question, answer, points)
		if answer != nil {
			answer.IsCorrect = res.Correct
			answer.PointsAwarded = res.Points
		}
		summary.Score += res.Points
		summary.MaxScore += points
	}
	return summary
}

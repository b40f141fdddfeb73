package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
	"school-quiz-service/internal/domain"
)

type questionRow struct {
	bun.BaseModel `bun:"table:questions"`

	ID         string    `bun:"id,pk"`
	Text       string    `bun:"text,notnull"`
	AnswerType string    `bun:"answer_type,notnull"`
	Options    string    `bun:"options,notnull"`
	Correct    string    `bun:"correct,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

type testRow struct {
	bun.BaseModel `bun:"table:tests"`

	ID                 string `bun:"id,pk"`
	Title              string `bun:"title,notnull"`
	MaxAttempts        int    `bun:"max_attempts,notnull"`
	ShowCorrectAnswers bool   `bun:"show_correct_answers,notnull"`
}

// linkRow has no foreign key to questions: links outlive deleted questions.
type linkRow struct {
	bun.BaseModel `bun:"table:test_questions"`

	ID         int64  `bun:"id,pk,autoincrement"`
	TestID     string `bun:"test_id,notnull"`
	QuestionID string `bun:"question_id,notnull"`
	OrderIndex int    `bun:"order_index,notnull"`
	Points     int    `bun:"points,notnull"`
}

type attemptRow struct {
	bun.BaseModel `bun:"table:attempts"`

	ID         string     `bun:"id,pk"`
	TestID     string     `bun:"test_id,notnull"`
	UserID     string     `bun:"user_id,notnull"`
	StartedAt  time.Time  `bun:"started_at,notnull"`
	FinishedAt *time.Time `bun:"finished_at"`
	Score      *int       `bun:"score"`
	MaxScore   int        `bun:"max_score,notnull"`
}

type answerRow struct {
	bun.BaseModel `bun:"table:answers"`

	ID                string    `bun:"id,pk"`
	AttemptID         string    `bun:"attempt_id,notnull"`
	QuestionID        string    `bun:"question_id,notnull"`
	AnswerType        string    `bun:"answer_type,notnull"`
	SelectedOptionID  string    `bun:"selected_option_id,notnull"`
	SelectedOptionIDs string    `bun:"selected_option_ids,notnull"`
	FreeText          string    `bun:"free_text,notnull"`
	Pairing           string    `bun:"pairing,notnull"`
	IsCorrect         bool      `bun:"is_correct,notnull"`
	PointsAwarded     int       `bun:"points_awarded,notnull"`
	UpdatedAt         time.Time `bun:"updated_at,notnull"`
}

func (r questionRow) toDomain() domain.Question {
	return domain.Question{
		ID:         r.ID,
		Text:       r.Text,
		AnswerType: domain.AnswerType(r.AnswerType),
		Options:    r.Options,
		Correct:    r.Correct,
	}
}

func (r attemptRow) toDomain() domain.Attempt {
	a := domain.Attempt{
		ID:        r.ID,
		TestID:    r.TestID,
		UserID:    r.UserID,
		StartedAt: r.StartedAt.UTC(),
		Score:     r.Score,
		MaxScore:  r.MaxScore,
	}
	if r.FinishedAt != nil {
		at := r.FinishedAt.UTC()
		a.FinishedAt = &at
	}
	return a
}

func (r answerRow) toDomain() domain.Answer {
	return domain.Answer{
		ID:                r.ID,
		AttemptID:         r.AttemptID,
		QuestionID:        r.QuestionID,
		AnswerType:        domain.AnswerType(r.AnswerType),
		SelectedOptionID:  r.SelectedOptionID,
		SelectedOptionIDs: r.SelectedOptionIDs,
		FreeText:          r.FreeText,
		Pairing:           r.Pairing,
		IsCorrect:         r.IsCorrect,
		PointsAwarded:     r.PointsAwarded,
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

func answerFromDomain(a domain.Answer) answerRow {
	return answerRow{
		ID:                a.ID,
		AttemptID:         a.AttemptID,
		QuestionID:        a.QuestionID,
		AnswerType:        string(a.AnswerType),
		SelectedOptionID:  a.SelectedOptionID,
		SelectedOptionIDs: a.SelectedOptionIDs,
		FreeText:          a.FreeText,
		Pairing:           a.Pairing,
		IsCorrect:         a.IsCorrect,
		PointsAwarded:     a.PointsAwarded,
		UpdatedAt:         a.UpdatedAt.UTC(),
	}
}

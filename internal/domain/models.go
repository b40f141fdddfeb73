package domain

import (
	"sort"
	"time"
)

// AnswerType is the declared shape of a question's answer.
type AnswerType string

const (
	AnswerText   AnswerType = "text"
	AnswerSingle AnswerType = "single"
	AnswerMulti  AnswerType = "multi"
	AnswerNumber AnswerType = "number"
	AnswerMatch  AnswerType = "match"
)

// Valid reports whether t is one of the supported answer types.
func (t AnswerType) Valid() bool {
	switch t {
	case AnswerText, AnswerSingle, AnswerMulti, AnswerNumber, AnswerMatch:
		return true
	}
	return false
}

// Question is a library question. Options and Correct hold the serialized
// payloads owned by the grading codec; their shape depends on AnswerType.
type Question struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	AnswerType AnswerType `json:"answerType"`
	Options    string     `json:"options,omitempty"`
	Correct    string     `json:"correct,omitempty"`
}

// MatchPair is one row of a match question.
type MatchPair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// TestQuestion links a question into a test. Question is nil when the
// referenced question has been deleted from the library.
type TestQuestion struct {
	ID         int64     `json:"id"`
	TestID     string    `json:"testId"`
	QuestionID string    `json:"questionId"`
	Order      int       `json:"order"`
	Points     int       `json:"points"`
	Question   *Question `json:"question,omitempty"`
}

// Test is an ordered collection of question links.
type Test struct {
	ID                 string         `json:"id"`
	Title              string         `json:"title"`
	MaxAttempts        int            `json:"maxAttempts"` // 0 means unlimited
	ShowCorrectAnswers bool           `json:"showCorrectAnswers"`
	Questions          []TestQuestion `json:"questions"`
}

// OrderedQuestions returns the links sorted by Order, ties broken by link ID.
func (t Test) OrderedQuestions() []TestQuestion {
	out := make([]TestQuestion, len(t.Questions))
	copy(out, t.Questions)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Gradable returns the ordered links whose question still exists.
func (t Test) Gradable() []TestQuestion {
	ordered := t.OrderedQuestions()
	out := ordered[:0]
	for _, tq := range ordered {
		if tq.Question != nil {
			out = append(out, tq)
		}
	}
	return out
}

// AttemptState is the lifecycle position of an attempt.
type AttemptState string

const (
	StateNotStarted AttemptState = "not_started"
	StateInProgress AttemptState = "in_progress"
	StateFinished   AttemptState = "finished"
)

// Attempt is one student's pass through one test.
type Attempt struct {
	ID         string     `json:"id"`
	TestID     string     `json:"testId"`
	UserID     string     `json:"userId"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Score      *int       `json:"score"`
	MaxScore   int        `json:"maxScore"`
}

// State derives the lifecycle state from the attempt's timestamps.
func (a Attempt) State() AttemptState {
	switch {
	case a.ID == "":
		return StateNotStarted
	case a.FinishedAt != nil:
		return StateFinished
	default:
		return StateInProgress
	}
}

// Answer is one stored response. Exactly one payload field is populated,
// matching AnswerType. IsCorrect and PointsAwarded are derived by grading.
type Answer struct {
	ID                string     `json:"id"`
	AttemptID         string     `json:"attemptId"`
	QuestionID        string     `json:"questionId"`
	AnswerType        AnswerType `json:"answerType"`
	SelectedOptionID  string     `json:"selectedOptionId,omitempty"`
	SelectedOptionIDs string     `json:"selectedOptionIds,omitempty"`
	FreeText          string     `json:"freeText,omitempty"`
	Pairing           string     `json:"pairing,omitempty"`
	IsCorrect         bool       `json:"isCorrect"`
	PointsAwarded     int        `json:"pointsAwarded"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Submission is a pending answer from the UI, keyed by Type.
type Submission struct {
	Type              AnswerType `json:"type"`
	FreeText          string     `json:"freeText,omitempty"`
	SelectedOptionID  *int       `json:"selectedOptionId,omitempty"`
	SelectedOptionIDs []int      `json:"selectedOptionIds,omitempty"`
	Pairing           []int      `json:"pairing,omitempty"`
}

// AttemptSummary is the aggregate produced by a full grading pass.
type AttemptSummary struct {
	Score    int `json:"score"`
	MaxScore int `json:"maxScore"`
}

// AnswerResult is the live feedback returned after a single submission.
type AnswerResult struct {
	AttemptID  string `json:"attemptId"`
	QuestionID string `json:"questionId"`
	Correct    bool   `json:"correct"`
	Awarded    int    `json:"awarded"`
}

// QuestionView is what the UI needs to render one position of an attempt.
type QuestionView struct {
	AttemptID   string      `json:"attemptId"`
	Index       int         `json:"index"`
	Total       int         `json:"total"`
	QuestionID  string      `json:"questionId"`
	Text        string      `json:"text"`
	AnswerType  AnswerType  `json:"answerType"`
	Choices     []string    `json:"choices,omitempty"`
	Pairs       []MatchPair `json:"pairs,omitempty"`
	Points      int         `json:"points"`
	Answer      *Answer     `json:"answer,omitempty"`
	AnsweredIDs []string    `json:"answeredIds"`
}

// ResultRow is one line of a graded attempt.
type ResultRow struct {
	QuestionID string     `json:"questionId"`
	Text       string     `json:"text"`
	AnswerType AnswerType `json:"answerType"`
	Points     int        `json:"points"`
	Answer     *Answer    `json:"answer,omitempty"`
	Expected   string     `json:"expected,omitempty"`
}

// AttemptResult is the graded view of an attempt.
type AttemptResult struct {
	Attempt Attempt     `json:"attempt"`
	Title   string      `json:"title"`
	Rows    []ResultRow `json:"rows"`
}

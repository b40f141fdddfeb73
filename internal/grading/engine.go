package grading

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"school-quiz-service/internal/domain"
)

var errMalformedPayload = errors.New("malformed answer payload")

// Result is the outcome of grading one answer.
type Result struct {
	Correct bool
	Points  int
}

// strategy owns one answer type: check decodes and validates the expected
// answer, matches normalizes a stored answer and compares it.
type strategy interface {
	check(q domain.Question) error
	matches(q domain.Question, a domain.Answer) (bool, error)
}

// Engine grades answers by dispatching on the question's answer type.
type Engine struct {
	strategies map[domain.AnswerType]strategy
	log        zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets where malformed stored data is reported.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine installs the built-in strategies.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		strategies: map[domain.AnswerType]strategy{
			domain.AnswerText:   textStrategy{},
			domain.AnswerNumber: numberStrategy{},
			domain.AnswerSingle: singleStrategy{},
			domain.AnswerMulti:  multiStrategy{},
			domain.AnswerMatch:  matchStrategy{},
		},
		log: zerolog.Nop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Grade decides whether a answers q and awards points when it does. Scoring is
// binary. A nil answer, an unknown answer type or malformed data grade as
// incorrect; Grade never fails.
func (e *Engine) Grade(q domain.Question, a *domain.Answer, points int) Result {
	if a == nil {
		return Result{}
	}
	s, ok := e.strategies[q.AnswerType]
	if !ok {
		e.log.Warn().Str("questionId", q.ID).Str("answerType", string(q.AnswerType)).Msg("unknown answer type, grading as incorrect")
		return Result{}
	}
	if a.AnswerType != "" && a.AnswerType != q.AnswerType {
		e.log.Warn().Str("questionId", q.ID).Str("answerId", a.ID).
			Str("answerType", string(a.AnswerType)).Str("questionType", string(q.AnswerType)).
			Msg("stored answer type differs from question, grading as incorrect")
		return Result{}
	}
	matched, err := s.matches(q, *a)
	if err != nil {
		e.log.Warn().Err(err).Str("questionId", q.ID).Str("answerId", a.ID).Msg("malformed grading data, grading as incorrect")
		return Result{}
	}
	if !matched {
		return Result{}
	}
	if points < 0 {
		points = 0
	}
	return Result{Correct: true, Points: points}
}

// Validate checks that a question's options and correct answer agree with its
// answer type. It returns a *domain.ConfigurationError.
func (e *Engine) Validate(q domain.Question) error {
	s, ok := e.strategies[q.AnswerType]
	if !ok {
		return &domain.ConfigurationError{
			Subject: "question " + q.ID,
			Err:     fmt.Errorf("%w: unknown answer type %q", domain.ErrInvalidQuestion, q.AnswerType),
		}
	}
	if err := s.check(q); err != nil {
		return &domain.ConfigurationError{Subject: "question " + q.ID, Err: err}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{domain.ErrInvalidQuestion}, args...)...)
}

func noOptions(q domain.Question) error {
	if strings.TrimSpace(q.Options) != "" {
		return invalid("%s question takes no options", q.AnswerType)
	}
	return nil
}

type textStrategy struct{}

func (textStrategy) check(q domain.Question) error {
	if err := noOptions(q); err != nil {
		return err
	}
	if NormalizeText(q.Correct) == "" {
		return invalid("empty expected text")
	}
	return nil
}

func (textStrategy) matches(q domain.Question, a domain.Answer) (bool, error) {
	return TextEqual(q.Correct, a.FreeText), nil
}

type numberStrategy struct{}

func (numberStrategy) check(q domain.Question) error {
	if err := noOptions(q); err != nil {
		return err
	}
	if _, ok := ParseNumber(q.Correct); !ok {
		return invalid("expected value %q is not a number", q.Correct)
	}
	return nil
}

// matches compares with exact float equality, no tolerance.
func (numberStrategy) matches(q domain.Question, a domain.Answer) (bool, error) {
	expected, ok := ParseNumber(q.Correct)
	if !ok {
		return false, invalid("expected value %q is not a number", q.Correct)
	}
	submitted, ok := ParseNumber(a.FreeText)
	if !ok {
		return false, nil
	}
	return expected == submitted, nil
}

type singleStrategy struct{}

func (singleStrategy) expected(q domain.Question) (int, error) {
	choices := DecodeOptions(q.AnswerType, q.Options).Choices
	if len(choices) == 0 {
		return 0, invalid("no choices")
	}
	c, ok := DecodeCorrect(q.AnswerType, q.Correct)
	if !ok {
		return 0, invalid("correct %q is not a choice index", q.Correct)
	}
	if c.Index < 0 || c.Index >= len(choices) {
		return 0, invalid("correct index %d out of range [0,%d)", c.Index, len(choices))
	}
	return c.Index, nil
}

func (s singleStrategy) check(q domain.Question) error {
	_, err := s.expected(q)
	return err
}

func (s singleStrategy) matches(q domain.Question, a domain.Answer) (bool, error) {
	want, err := s.expected(q)
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(a.SelectedOptionID) == "" {
		return false, nil
	}
	got, ok := ParseIndex(a.SelectedOptionID)
	if !ok {
		return false, fmt.Errorf("%w: selected option %q", errMalformedPayload, a.SelectedOptionID)
	}
	return got == want, nil
}

type multiStrategy struct{}

func (multiStrategy) expected(q domain.Question) ([]int, error) {
	choices := DecodeOptions(q.AnswerType, q.Options).Choices
	if len(choices) == 0 {
		return nil, invalid("no choices")
	}
	c, ok := DecodeCorrect(q.AnswerType, q.Correct)
	if !ok {
		return nil, invalid("correct %q is not an index list", q.Correct)
	}
	if len(c.Indices) == 0 {
		return nil, invalid("empty expected selection")
	}
	for _, idx := range c.Indices {
		if idx < 0 || idx >= len(choices) {
			return nil, invalid("correct index %d out of range [0,%d)", idx, len(choices))
		}
	}
	return c.Indices, nil
}

func (s multiStrategy) check(q domain.Question) error {
	_, err := s.expected(q)
	return err
}

func (s multiStrategy) matches(q domain.Question, a domain.Answer) (bool, error) {
	want, err := s.expected(q)
	if err != nil {
		return false, err
	}
	got, ok := ParseIndexList(a.SelectedOptionIDs)
	if !ok {
		return false, fmt.Errorf("%w: selected options %q", errMalformedPayload, a.SelectedOptionIDs)
	}
	if len(got) == 0 {
		return false, nil
	}
	return sameSet(want, got), nil
}

type matchStrategy struct{}

func (matchStrategy) expected(q domain.Question) ([]int, error) {
	pairs := DecodeOptions(q.AnswerType, q.Options).Pairs
	if len(pairs) == 0 {
		return nil, invalid("no pairs")
	}
	c, ok := DecodeCorrect(q.AnswerType, q.Correct)
	if !ok {
		return nil, invalid("correct %q is not an index list", q.Correct)
	}
	perm := c.Indices
	if perm == nil {
		return identity(len(pairs)), nil
	}
	if len(perm) != len(pairs) {
		return nil, invalid("expected %d positions, have %d", len(pairs), len(perm))
	}
	for _, idx := range perm {
		if idx < 0 || idx >= len(pairs) {
			return nil, invalid("right index %d out of range [0,%d)", idx, len(pairs))
		}
	}
	return perm, nil
}

func (s matchStrategy) check(q domain.Question) error {
	_, err := s.expected(q)
	return err
}

// matches is all-or-nothing: every left position must hold the expected right index.
func (s matchStrategy) matches(q domain.Question, a domain.Answer) (bool, error) {
	want, err := s.expected(q)
	if err != nil {
		return false, err
	}
	got, ok := ParseIndexList(a.Pairing)
	if !ok {
		return false, fmt.Errorf("%w: pairing %q", errMalformedPayload, a.Pairing)
	}
	if len(got) != len(want) {
		return false, nil
	}
	for i := range want {
		if got[i] != want[i] {
			return false, nil
		}
	}
	return true, nil
}

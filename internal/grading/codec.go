package grading

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"school-quiz-service/internal/domain"
)

// Options is the decoded form of Question.Options.
type Options struct {
	Choices []string
	Pairs   []domain.MatchPair
}

// Correct is the decoded form of Question.Correct.
//
//	text, number: Text
//	single:       Index
//	multi:        Indices (sorted, distinct)
//	match:        Indices holds the expected right index per left position;
//	              nil means identity.
type Correct struct {
	Text    string
	Index   int
	Indices []int
}

// EncodeOptions serializes options for storage. Types without options, and
// empty option lists, encode to "".
func EncodeOptions(t domain.AnswerType, opts Options) string {
	switch t {
	case domain.AnswerSingle, domain.AnswerMulti:
		if len(opts.Choices) == 0 {
			return ""
		}
		buf, _ := json.Marshal(opts.Choices)
		return string(buf)
	case domain.AnswerMatch:
		if len(opts.Pairs) == 0 {
			return ""
		}
		buf, _ := json.Marshal(opts.Pairs)
		return string(buf)
	}
	return ""
}

// DecodeOptions is the inverse of EncodeOptions. Malformed or empty input
// decodes to empty options.
func DecodeOptions(t domain.AnswerType, raw string) Options {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Options{}
	}
	switch t {
	case domain.AnswerSingle, domain.AnswerMulti:
		var choices []string
		if err := json.Unmarshal([]byte(raw), &choices); err != nil {
			return Options{}
		}
		return Options{Choices: choices}
	case domain.AnswerMatch:
		var pairs []domain.MatchPair
		if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
			return Options{}
		}
		return Options{Pairs: pairs}
	}
	return Options{}
}

// EncodeCorrect serializes the expected answer for storage.
func EncodeCorrect(t domain.AnswerType, c Correct) string {
	switch t {
	case domain.AnswerText, domain.AnswerNumber:
		return strings.TrimSpace(c.Text)
	case domain.AnswerSingle:
		return strconv.Itoa(c.Index)
	case domain.AnswerMulti:
		return EncodeIndexList(sortedSet(c.Indices))
	case domain.AnswerMatch:
		if c.Indices == nil {
			return ""
		}
		return EncodeIndexList(c.Indices)
	}
	return ""
}

// DecodeCorrect is the inverse of EncodeCorrect. ok is false when raw cannot
// be read for the given type.
func DecodeCorrect(t domain.AnswerType, raw string) (Correct, bool) {
	switch t {
	case domain.AnswerText, domain.AnswerNumber:
		return Correct{Text: raw}, true
	case domain.AnswerSingle:
		idx, ok := ParseIndex(raw)
		if !ok {
			return Correct{}, false
		}
		return Correct{Index: idx}, true
	case domain.AnswerMulti:
		indices, ok := ParseIndexList(raw)
		if !ok {
			return Correct{}, false
		}
		return Correct{Indices: sortedSet(indices)}, true
	case domain.AnswerMatch:
		if strings.TrimSpace(raw) == "" {
			return Correct{}, true
		}
		indices, ok := ParseIndexList(raw)
		if !ok {
			return Correct{}, false
		}
		return Correct{Indices: indices}, true
	}
	return Correct{}, false
}

// BuildQuestion assembles a question from its structured authoring form.
// The result still needs Engine.Validate.
func BuildQuestion(id, text string, t domain.AnswerType, opts Options, correct Correct) domain.Question {
	return domain.Question{
		ID:         id,
		Text:       strings.TrimSpace(text),
		AnswerType: t,
		Options:    EncodeOptions(t, opts),
		Correct:    EncodeCorrect(t, correct),
	}
}

// ApplySubmission stores the payload of s on a, in the field that matches the
// question's answer type. Other payload fields are cleared.
func ApplySubmission(a *domain.Answer, t domain.AnswerType, s domain.Submission) error {
	if s.Type != "" && s.Type != t {
		return fmt.Errorf("%w: got %s, question is %s", domain.ErrAnswerTypeMismatch, s.Type, t)
	}
	a.AnswerType = t
	a.FreeText, a.SelectedOptionID, a.SelectedOptionIDs, a.Pairing = "", "", "", ""
	switch t {
	case domain.AnswerText, domain.AnswerNumber:
		a.FreeText = strings.TrimSpace(s.FreeText)
	case domain.AnswerSingle:
		if s.SelectedOptionID != nil {
			a.SelectedOptionID = strconv.Itoa(*s.SelectedOptionID)
		}
	case domain.AnswerMulti:
		if len(s.SelectedOptionIDs) > 0 {
			a.SelectedOptionIDs = EncodeIndexList(sortedSet(s.SelectedOptionIDs))
		}
	case domain.AnswerMatch:
		if len(s.Pairing) > 0 {
			a.Pairing = EncodeIndexList(s.Pairing)
		}
	default:
		return fmt.Errorf("%w: unknown answer type %q", domain.ErrAnswerTypeMismatch, t)
	}
	return nil
}

// Describe renders the expected answer of q for result pages. Questions that
// cannot be decoded describe as "".
func Describe(q domain.Question) string {
	c, ok := DecodeCorrect(q.AnswerType, q.Correct)
	if !ok {
		return ""
	}
	opts := DecodeOptions(q.AnswerType, q.Options)
	switch q.AnswerType {
	case domain.AnswerText, domain.AnswerNumber:
		return strings.TrimSpace(c.Text)
	case domain.AnswerSingle:
		return choiceText(opts.Choices, c.Index)
	case domain.AnswerMulti:
		parts := make([]string, 0, len(c.Indices))
		for _, idx := range c.Indices {
			parts = append(parts, choiceText(opts.Choices, idx))
		}
		return strings.Join(parts, "; ")
	case domain.AnswerMatch:
		perm := c.Indices
		if perm == nil {
			perm = identity(len(opts.Pairs))
		}
		parts := make([]string, 0, len(perm))
		for left, right := range perm {
			if left >= len(opts.Pairs) || right < 0 || right >= len(opts.Pairs) {
				return ""
			}
			parts = append(parts, opts.Pairs[left].Left+" → "+opts.Pairs[right].Right)
		}
		return strings.Join(parts, "; ")
	}
	return ""
}

func choiceText(choices []string, idx int) string {
	if idx < 0 || idx >= len(choices) {
		return strconv.Itoa(idx)
	}
	return choices[idx]
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

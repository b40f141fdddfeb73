package grading

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// NormalizeText trims surrounding whitespace and lower-cases s.
func NormalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// TextEqual compares two texts after normalization. An empty side never matches.
func TextEqual(expected, submitted string) bool {
	e := NormalizeText(expected)
	if e == "" {
		return false
	}
	return e == NormalizeText(submitted)
}

// ParseNumber parses a decimal accepting either ',' or '.' as separator.
func ParseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseIndex parses a single choice index.
func ParseIndex(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseIndexList accepts a JSON array of numbers or numeric strings, or a
// comma-joined list. Both encodings have been stored historically.
// An empty input is an empty list.
func ParseIndexList(s string) ([]int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	if strings.HasPrefix(s, "[") {
		return parseJSONIndices(s)
	}
	out := make([]int, 0, strings.Count(s, ",")+1)
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		v, ok := ParseIndex(part)
		if !ok {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

func parseJSONIndices(s string) ([]int, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, false
	}
	out := make([]int, 0, len(raw))
	for _, item := range raw {
		var text string
		switch v := item.(type) {
		case json.Number:
			text = v.String()
		case string:
			text = v
		default:
			return nil, false
		}
		idx, ok := ParseIndex(text)
		if !ok {
			return nil, false
		}
		out = append(out, idx)
	}
	return out, true
}

// EncodeIndexList writes indices as a JSON array, keeping their order.
func EncodeIndexList(indices []int) string {
	if len(indices) == 0 {
		return "[]"
	}
	buf, _ := json.Marshal(indices)
	return string(buf)
}

// sortedSet returns the distinct values of indices in ascending order.
func sortedSet(indices []int) []int {
	seen := make(map[int]struct{}, len(indices))
	out := make([]int, 0, len(indices))
	for _, v := range indices {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

func sameSet(a, b []int) bool {
	sa, sb := sortedSet(a), sortedSet(b)
	if len(sa) != len(sb) {
		return false
	}
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

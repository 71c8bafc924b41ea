// Package grader decides answer correctness entirely locally, so the UI can
// show a verdict in the same tick as submission without a server round trip.
// The algorithm must stay in lockstep with the server-side grading in
// services.
package grader

import (
	"sort"
	"strings"

	"github.com/satprep-labs/practice-session-service/internal/models"
)

// positionLabels caps multiple choice at six options; the Nth option gets
// the Nth letter unless the option carries an explicit label.
var positionLabels = []string{"A", "B", "C", "D", "E", "F"}

const DefaultConfidence = 3

// Grade reports whether the submitted values match the question's canonical
// correct-answer set. Pure: same inputs always produce the same verdict.
//
// Multiple choice compares the full selection against the full key, so a
// multi-select answer must name every correct option and nothing else. A
// free-response key instead enumerates acceptable alternative forms of one
// answer ("7", "7.0"); any enumerated form counts as correct.
func Grade(q *models.Question, values []string) bool {
	correct := q.CorrectAnswers()

	if q.Type == models.QuestionMultipleChoice {
		return SortedEqual(ResolveLabels(q, values), ResolveLabels(q, correct))
	}
	return acceptedAlternative(normalizeFreeResponse(values), normalizeFreeResponse(correct))
}

// acceptedAlternative reports whether every submitted value is one of the
// enumerated acceptable forms. Empty submissions never grade correct.
func acceptedAlternative(submitted, alternatives []string) bool {
	if len(submitted) == 0 {
		return false
	}
	accepted := make(map[string]struct{}, len(alternatives))
	for _, alt := range alternatives {
		accepted[alt] = struct{}{}
	}
	for _, v := range submitted {
		if _, ok := accepted[v]; !ok {
			return false
		}
	}
	return true
}

// ResolveLabels maps submitted multiple-choice values to option letters.
// A value that already is a label is kept (upper-cased); a value matching
// an option identifier resolves to that option's label; anything else falls
// back to the upper-cased raw value.
func ResolveLabels(q *models.Question, values []string) []string {
	opts, err := q.Options()
	if err != nil || len(opts) == 0 {
		return normalizeFreeResponse(values)
	}

	valid := make(map[string]struct{}, len(opts))
	byID := make(map[string]string, len(opts))
	for i, opt := range opts {
		label := opt.Label
		if label == "" && i < len(positionLabels) {
			label = positionLabels[i]
		}
		if label == "" {
			continue
		}
		label = strings.ToUpper(label)
		valid[label] = struct{}{}
		byID[opt.ID] = label
	}

	resolved := make([]string, len(values))
	for i, v := range values {
		upper := strings.ToUpper(v)
		if _, ok := valid[upper]; ok {
			resolved[i] = upper
			continue
		}
		if label, ok := byID[v]; ok {
			resolved[i] = label
			continue
		}
		// Unresolvable value: grade against the literal upper-cased text
		// rather than failing.
		resolved[i] = upper
	}
	return resolved
}

// NormalizeConfidence clamps a confidence rating into the 1-5 scale,
// substituting the default for the zero value.
func NormalizeConfidence(c int) int {
	if c < 1 || c > 5 {
		return DefaultConfidence
	}
	return c
}

// SortedEqual compares two value sets order-independently and
// case-sensitively.
func SortedEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func normalizeFreeResponse(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToUpper(strings.TrimSpace(v))
	}
	return out
}

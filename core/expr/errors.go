package expr

import (
	"fmt"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// ParseError is returned by Parse on malformed formula source. It carries
// the byte offset of the failure so callers can point a user at the
// offending substring.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d: %s", e.Pos, e.Msg)
}

// unknownFunctionError builds a parse error for a call to a function name
// that is not in the registry, suggesting the closest registered name when
// one is plausible: the registry supplies the candidate set, fuzzysearch
// supplies the "did you mean" ranking.
func unknownFunctionError(pos int, name string, known []string) *ParseError {
	msg := fmt.Sprintf("unknown function %q", name)
	if best := closestMatch(name, known); best != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", best)
	}
	return &ParseError{Pos: pos, Msg: msg}
}

func closestMatch(name string, known []string) string {
	matches := fuzzy.RankFindNormalizedFold(name, known)
	if len(matches) == 0 {
		return ""
	}
	best := matches[0]
	for _, m := range matches[1:] {
		if m.Distance < best.Distance {
			best = m
		}
	}
	if best.Distance > len(name) {
		return ""
	}
	return best.Target
}

// joinExpected renders an expected-token list for error messages.
func joinExpected(kinds ...string) string {
	return strings.Join(kinds, " or ")
}

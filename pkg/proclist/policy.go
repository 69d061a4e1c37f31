package proclist

import (
	"errors"
	"fmt"
	"strings"
)

// MatchPolicy decides what happens when more than one process matches a
// name.
type MatchPolicy uint8

const (
	// MatchFirst picks the match with the lowest pid.
	MatchFirst MatchPolicy = iota
	// MatchUnique refuses to pick between several matches.
	MatchUnique
)

func (p MatchPolicy) String() string {
	switch p {
	case MatchFirst:
		return "first"
	case MatchUnique:
		return "unique"
	default:
		return ""
	}
}

// ParseMatchPolicy parses "first" or "unique". The empty string is
// MatchFirst.
func ParseMatchPolicy(s string) (MatchPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first":
		return MatchFirst, nil
	case "unique":
		return MatchUnique, nil
	}
	return MatchFirst, fmt.Errorf("unknown match policy %q (expected first or unique)", s)
}

// ErrNoMatch is returned by Select when no process matched.
var ErrNoMatch = errors.New("no process found")

// AmbiguousError is returned by Select under MatchUnique when several
// processes matched.
type AmbiguousError struct {
	Name    string
	Matches []Process
}

func (e *AmbiguousError) Error() string {
	pids := make([]string, len(e.Matches))
	for i, p := range e.Matches {
		pids[i] = fmt.Sprintf("%d (%s)", p.Pid, p.Name)
	}
	return fmt.Sprintf("%d processes match %q: %s", len(e.Matches), e.Name, strings.Join(pids, ", "))
}

// Select picks one process out of the matches for name according to
// policy.
func Select(name string, matches []Process, policy MatchPolicy) (Process, error) {
	switch {
	case len(matches) == 0:
		return Process{}, fmt.Errorf("%w matching %q", ErrNoMatch, name)
	case len(matches) > 1 && policy == MatchUnique:
		return Process{}, &AmbiguousError{Name: name, Matches: matches}
	}
	return matches[0], nil
}

package skill

import (
	"log/slog"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/pkg/errors"
)

// matchTimeout bounds a single trigger evaluation on the backtracking engine.
const matchTimeout = 100 * time.Millisecond

// wordPattern tokenizes with the trigger engine so keywords and query words
// agree on Unicode letters.
var wordPattern = regexp2.MustCompile(`\w+`, regexp2.None)

// Trigger is a compiled routing pattern.
type Trigger struct {
	pattern  string
	re       *regexp2.Regexp
	keywords map[string]struct{}
}

// NewTrigger compiles a case-insensitive trigger pattern.
func NewTrigger(pattern string) (*Trigger, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, errors.New("empty trigger pattern")
	}
	re, err := regexp2.Compile(pattern, regexp2.IgnoreCase)
	if err != nil {
		return nil, errors.Wrapf(err, "compile trigger %q", pattern)
	}
	re.MatchTimeout = matchTimeout

	return &Trigger{
		pattern:  pattern,
		re:       re,
		keywords: Words(pattern),
	}, nil
}

// MustTrigger is like NewTrigger but panics on an invalid pattern.
func MustTrigger(pattern string) *Trigger {
	t, err := NewTrigger(pattern)
	if err != nil {
		panic(err)
	}
	return t
}

// Pattern returns the pattern source.
func (t *Trigger) Pattern() string {
	return t.pattern
}

// Compiled reports whether the trigger holds a usable matcher.
func (t *Trigger) Compiled() bool {
	return t != nil && t.re != nil
}

// Fires reports whether the pattern occurs anywhere in query.
func (t *Trigger) Fires(query string) bool {
	if !t.Compiled() {
		return false
	}
	ok, err := t.re.MatchString(query)
	if err != nil {
		slog.Warn("trigger evaluation failed", "pattern", t.pattern, "error", err)
		return false
	}
	return ok
}

// Overlap counts the distinct pattern keywords present in the query word set.
func (t *Trigger) Overlap(queryWords map[string]struct{}) int {
	n := 0
	for kw := range t.keywords {
		if _, ok := queryWords[kw]; ok {
			n++
		}
	}
	return n
}

// Words returns the set of lower-cased \w+ tokens of s.
func Words(s string) map[string]struct{} {
	set := make(map[string]struct{})
	m, err := wordPattern.FindStringMatch(strings.ToLower(s))
	for ; m != nil && err == nil; m, err = wordPattern.FindNextMatch(m) {
		set[m.String()] = struct{}{}
	}
	return set
}

package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const globMeta = "*?[{"

// FallbackRule designates reviewers for files matching a path pattern.
type FallbackRule struct {
	Pattern  string
	Logins   []string
	segments int
	wildcard int
	literal  bool
}

// Match reports whether filename falls under the rule. A pattern without glob
// characters also matches everything below it as a directory.
func (r FallbackRule) Match(filename string) bool {
	name := strings.TrimPrefix(filename, "/")
	if r.literal {
		dir := strings.TrimSuffix(r.Pattern, "/")
		return name == dir || strings.HasPrefix(name, dir+"/")
	}
	ok, err := doublestar.Match(r.Pattern, name)
	return err == nil && ok
}

// FallbackFor returns the logins designated for filename by its most specific rule.
func (s *Settings) FallbackFor(filename string) []string {
	// FallbackRules is sorted most specific first.
	for _, r := range s.FallbackRules {
		if r.Match(filename) {
			return r.Logins
		}
	}
	return nil
}

// IgnoreFile reports whether filename matches file_blacklist.
func (s *Settings) IgnoreFile(filename string) bool {
	name := strings.TrimPrefix(filename, "/")
	for _, p := range s.FileBlacklist {
		if ok, err := doublestar.Match(strings.TrimPrefix(p, "/"), name); err == nil && ok {
			return true
		}
	}
	return false
}

func compileFallbacks(v any) ([]FallbackRule, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: fallback_paths must be a mapping of pattern to logins, got %T", ErrInvalid, v)
	}

	rules := make([]FallbackRule, 0, len(m))
	seen := make(map[string]bool, len(m))
	for pattern, logins := range m {
		p := strings.TrimPrefix(pattern, "/")
		if p == "" {
			return nil, fmt.Errorf("%w: fallback_paths contains an empty pattern", ErrInvalid)
		}
		if seen[p] {
			return nil, fmt.Errorf("%w: fallback_paths pattern %q is listed twice", ErrInvalid, p)
		}
		seen[p] = true
		if err := validatePattern(p); err != nil {
			return nil, err
		}
		list, err := stringList(logins, "fallback_paths."+pattern)
		if err != nil {
			return nil, err
		}
		rules = append(rules, FallbackRule{
			Pattern:  p,
			Logins:   list,
			segments: strings.Count(strings.TrimSuffix(p, "/"), "/") + 1,
			wildcard: countAny(p, globMeta),
			literal:  !strings.ContainsAny(p, globMeta),
		})
	}

	// Total order so that the winner never depends on map iteration.
	sort.Slice(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.segments != b.segments {
			return a.segments > b.segments
		}
		if a.wildcard != b.wildcard {
			return a.wildcard < b.wildcard
		}
		if len(a.Pattern) != len(b.Pattern) {
			return len(a.Pattern) > len(b.Pattern)
		}
		return a.Pattern < b.Pattern
	})
	return rules, nil
}

func validatePattern(p string) error {
	if !doublestar.ValidatePattern(strings.TrimPrefix(p, "/")) {
		return fmt.Errorf("%w: bad path pattern %q", ErrInvalid, p)
	}
	return nil
}

func countAny(s, chars string) int {
	n := 0
	for _, r := range s {
		if strings.ContainsRune(chars, r) {
			n++
		}
	}
	return n
}

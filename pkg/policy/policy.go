// Package policy resolves pull-review policy files into typed, defaulted settings.
package policy

import (
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned for malformed policy documents.
var ErrInvalid = errors.New("invalid policy")

// Defaults applied when a key is omitted.
const (
	DefaultVersion      = 1
	DefaultMinReviewers = 1
	DefaultMaxReviewers = 2
)

// Reviewer holds per-reviewer settings from the roster.
type Reviewer struct {
	Extra map[string]any
	Slack string
}

// Settings is the typed, fully defaulted policy.
type Settings struct {
	Reviewers       map[string]Reviewer
	Rule            Rule
	reviewBlacklist map[string]bool
	FallbackRules   []FallbackRule
	FileBlacklist   []string
	Version         int
	// Zero means unconstrained for the per-reviewer caps and disabled for MinAuthorsOfChangedFiles.
	MinReviewers             int
	MaxReviewers             int
	MaxFilesPerReviewer      int
	MaxLinesPerReviewer      int
	MinAuthorsOfChangedFiles int
	MaxFiles                 int
	Enabled                  bool
}

// Default returns the settings used when no policy is supplied.
func Default() *Settings {
	s := &Settings{
		Version:         DefaultVersion,
		MinReviewers:    DefaultMinReviewers,
		MaxReviewers:    DefaultMaxReviewers,
		Enabled:         true,
		Reviewers:       map[string]Reviewer{},
		reviewBlacklist: map[string]bool{},
	}
	s.Rule = ruleFor(s)
	return s
}

// Load reads and resolves a policy file.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML (or JSON) policy document and resolves it.
func Parse(data []byte) (*Settings, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return Resolve(raw)
}

// Resolve normalizes a possibly partial policy object. A nil object yields Default().
//
//nolint:gocognit,revive // one branch per policy key
func Resolve(raw map[string]any) (*Settings, error) {
	s := Default()
	if raw == nil {
		return s, nil
	}

	var err error
	if s.Version, err = intKey(raw, "version", DefaultVersion); err != nil {
		return nil, err
	}
	if s.Version != 1 && s.Version != 2 {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalid, s.Version)
	}

	if v, ok := raw["enabled"]; ok && v != nil {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: enabled must be a boolean, got %T", ErrInvalid, v)
		}
		s.Enabled = b
	}

	if v, ok := raw["reviewers"]; ok {
		if s.Reviewers, err = reviewers(v); err != nil {
			return nil, err
		}
	}

	ints := []struct {
		dst *int
		key string
		def int
	}{
		{&s.MinReviewers, "min_reviewers", DefaultMinReviewers},
		{&s.MaxReviewers, "max_reviewers", DefaultMaxReviewers},
		{&s.MaxFilesPerReviewer, "max_files_per_reviewer", 0},
		{&s.MaxLinesPerReviewer, "max_lines_per_reviewer", 0},
		{&s.MinAuthorsOfChangedFiles, "min_authors_of_changed_files", 0},
		{&s.MaxFiles, "max_files", 0},
	}
	for _, i := range ints {
		if *i.dst, err = intKey(raw, i.key, i.def); err != nil {
			return nil, err
		}
	}
	if s.MinReviewers > s.MaxReviewers {
		return nil, fmt.Errorf("%w: min_reviewers (%d) exceeds max_reviewers (%d)", ErrInvalid, s.MinReviewers, s.MaxReviewers)
	}

	blacklist, err := stringList(raw["review_blacklist"], "review_blacklist")
	if err != nil {
		return nil, err
	}
	for _, login := range blacklist {
		s.reviewBlacklist[login] = true
	}

	if s.FileBlacklist, err = stringList(raw["file_blacklist"], "file_blacklist"); err != nil {
		return nil, err
	}
	for _, p := range s.FileBlacklist {
		if err := validatePattern(p); err != nil {
			return nil, err
		}
	}

	paths, ok := raw["fallback_paths"]
	if !ok {
		paths = raw["review_path_fallbacks"]
	}
	if s.FallbackRules, err = compileFallbacks(paths); err != nil {
		return nil, err
	}

	s.Rule = ruleFor(s)
	return s, nil
}

// Reachable reports whether login is part of the configured roster.
func (s *Settings) Reachable(login string) bool {
	_, ok := s.Reviewers[login]
	return ok
}

// Blacklisted reports whether login may never be assigned.
func (s *Settings) Blacklisted(login string) bool {
	return s.reviewBlacklist[login]
}

// Roster returns the configured reviewer logins in lexical order.
func (s *Settings) Roster() []string {
	logins := make([]string, 0, len(s.Reviewers))
	for login := range s.Reviewers {
		logins = append(logins, login)
	}
	sort.Strings(logins)
	return logins
}

// Document is the serializable view of Settings.
type Document struct {
	FallbackPaths            map[string][]string       `yaml:"fallback_paths,omitempty"`
	Reviewers                map[string]map[string]any `yaml:"reviewers"`
	ReviewBlacklist          []string                  `yaml:"review_blacklist,omitempty"`
	FileBlacklist            []string                  `yaml:"file_blacklist,omitempty"`
	Version                  int                       `yaml:"version"`
	MinReviewers             int                       `yaml:"min_reviewers"`
	MaxReviewers             int                       `yaml:"max_reviewers"`
	MaxFilesPerReviewer      int                       `yaml:"max_files_per_reviewer"`
	MaxLinesPerReviewer      int                       `yaml:"max_lines_per_reviewer"`
	MinAuthorsOfChangedFiles int                       `yaml:"min_authors_of_changed_files"`
	MaxFiles                 int                       `yaml:"max_files"`
	Enabled                  bool                      `yaml:"enabled"`
}

// Document returns the effective settings in serializable form.
func (s *Settings) Document() Document {
	d := Document{
		Version:                  s.Version,
		Enabled:                  s.Enabled,
		Reviewers:                make(map[string]map[string]any, len(s.Reviewers)),
		MinReviewers:             s.MinReviewers,
		MaxReviewers:             s.MaxReviewers,
		MaxFilesPerReviewer:      s.MaxFilesPerReviewer,
		MaxLinesPerReviewer:      s.MaxLinesPerReviewer,
		MinAuthorsOfChangedFiles: s.MinAuthorsOfChangedFiles,
		MaxFiles:                 s.MaxFiles,
		FileBlacklist:            slices.Clone(s.FileBlacklist),
	}
	for login, r := range s.Reviewers {
		m := make(map[string]any, len(r.Extra)+1)
		for k, v := range r.Extra {
			m[k] = v
		}
		if r.Slack != "" {
			m["slack"] = r.Slack
		}
		d.Reviewers[login] = m
	}
	for login := range s.reviewBlacklist {
		d.ReviewBlacklist = append(d.ReviewBlacklist, login)
	}
	sort.Strings(d.ReviewBlacklist)
	if len(s.FallbackRules) > 0 {
		d.FallbackPaths = make(map[string][]string, len(s.FallbackRules))
		for _, r := range s.FallbackRules {
			d.FallbackPaths[r.Pattern] = slices.Clone(r.Logins)
		}
	}
	return d
}

func reviewers(v any) (map[string]Reviewer, error) {
	if v == nil {
		return map[string]Reviewer{}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: reviewers must be a mapping of login to settings, got %T", ErrInvalid, v)
	}
	out := make(map[string]Reviewer, len(m))
	for login, settings := range m {
		if login == "" {
			return nil, fmt.Errorf("%w: reviewers contains an empty login", ErrInvalid)
		}
		r := Reviewer{Extra: map[string]any{}}
		switch st := settings.(type) {
		case nil:
		case map[string]any:
			for k, val := range st {
				if k == "slack" {
					name, ok := val.(string)
					if !ok {
						return nil, fmt.Errorf("%w: reviewers.%s.slack must be a string", ErrInvalid, login)
					}
					r.Slack = name
					continue
				}
				r.Extra[k] = val
			}
		default:
			return nil, fmt.Errorf("%w: reviewers.%s must be a settings object, got %T", ErrInvalid, login, settings)
		}
		out[login] = r
	}
	return out, nil
}

func intKey(raw map[string]any, key string, def int) (int, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return def, nil
	}
	var n int
	switch x := v.(type) {
	case int:
		n = x
	case int64:
		n = int(x)
	case uint64:
		n = int(x)
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("%w: %s must be an integer, got %v", ErrInvalid, key, x)
		}
		n = int(x)
	default:
		return 0, fmt.Errorf("%w: %s must be an integer, got %T", ErrInvalid, key, v)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative, got %d", ErrInvalid, key, n)
	}
	return n, nil
}

func stringList(v any, key string) ([]string, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{x}, nil
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok || s == "" {
				return nil, fmt.Errorf("%w: %s entries must be non-empty strings", ErrInvalid, key)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a list of strings, got %T", ErrInvalid, key, v)
	}
}

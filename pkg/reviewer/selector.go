package reviewer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeGROOVE-dev/pull-review/pkg/policy"
	"github.com/codeGROOVE-dev/pull-review/pkg/types"
)

// Request is everything Select needs to pick reviewers for one pull request.
type Request struct {
	// Settings is the resolved policy. When nil, Config is resolved instead;
	// when both are nil, policy.Default() applies.
	Settings *policy.Settings
	Config   map[string]any
	// Blame looks up historical authorship per file. Required.
	Blame       BlameSource
	AuthorLogin string
	Files       []types.ChangedFile
	// Commits is consulted by the version 2 policy only.
	Commits []types.Commit
	// Assignees are reviewers already assigned; nil means none were supplied.
	Assignees []string
}

// Selector selects reviewers. It holds no per-call state and is safe for concurrent use.
type Selector struct {
	rand        RandomSource
	logger      *slog.Logger
	concurrency int
}

// Option configures a Selector.
type Option func(*Selector)

// WithRandom sets the source of randomness for random fallback selection.
func WithRandom(r RandomSource) Option {
	return func(s *Selector) {
		s.rand = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Selector) {
		s.logger = l
	}
}

// WithConcurrency bounds the number of blame lookups in flight.
func WithConcurrency(n int) Option {
	return func(s *Selector) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// New creates a Selector.
func New(opts ...Option) *Selector {
	s := &Selector{
		concurrency: maxConcurrentLookups,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rand == nil {
		s.rand = NewRandom()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Select returns the reviewers for a pull request, blame-ranked reviewers first,
// then path fallback reviewers, then random ones.
//
// A *PolicySatisfiedError or ErrDisabled means no action is needed; see IsNoAction.
func (s *Selector) Select(ctx context.Context, req Request) ([]types.Candidate, error) {
	if req.AuthorLogin == "" {
		return nil, fmt.Errorf("%w: author login is required", ErrConfiguration)
	}
	if req.Blame == nil {
		return nil, fmt.Errorf("%w: blame source is required", ErrConfiguration)
	}

	st := req.Settings
	if st == nil {
		var err error
		if st, err = policy.Resolve(req.Config); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
	}
	if !st.Enabled {
		return nil, ErrDisabled
	}

	if req.Assignees != nil {
		if n := len(req.Assignees); n > st.MaxReviewers {
			return nil, &PolicySatisfiedError{Bound: BoundMaximum, Assigned: n, Limit: st.MaxReviewers}
		} else if n >= st.MinReviewers {
			return nil, &PolicySatisfiedError{Bound: BoundMinimum, Assigned: n, Limit: st.MinReviewers}
		}
	}

	fs, err := filterFiles(req.Files, st)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Finding reviewers for PR", "author", req.AuthorLogin, "policy_version", st.Version,
		"files", len(fs.files), "distinct_files", fs.distinct, "line_load", fs.lineLoad)

	tally, err := s.aggregateBlame(ctx, req.Blame, fs.lookups)
	if err != nil {
		return nil, err
	}

	pc := pullContext(req.AuthorLogin, req.Commits)
	ranked := s.rank(ctx, tally, s.eligible(ctx, st, pc, tally.order))

	// Too few distinct authors: the blame signal is not trusted and its authors
	// are withheld from fallback and random selection as well.
	thin := st.MinAuthorsOfChangedFiles > 0 && tally.authors() < st.MinAuthorsOfChangedFiles
	if thin {
		s.logger.InfoContext(ctx, "Too few distinct authors, ignoring blame ranking",
			"authors", tally.authors(), "required", st.MinAuthorsOfChangedFiles)
		ranked = nil
	}

	n := targetCount(st, len(ranked), fs)
	sel := newSelection(n, ranked)
	if thin {
		for _, login := range tally.order {
			sel.withheld[login] = true
		}
	}
	s.fillFromPaths(ctx, st, pc, fs.files, sel)
	s.fillRandomly(ctx, st, pc, sel)

	s.logger.InfoContext(ctx, "Selected reviewers", "wanted", n, "selected", len(sel.candidates), "reviewers", logins(sel.candidates))
	return sel.candidates, nil
}

func logins(cs []types.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Login
	}
	return out
}

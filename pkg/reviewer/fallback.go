package reviewer

import (
	"context"

	"github.com/codeGROOVE-dev/pull-review/pkg/policy"
	"github.com/codeGROOVE-dev/pull-review/pkg/types"
)

// selection tracks chosen reviewers so that nobody is picked twice.
type selection struct {
	chosen     map[string]bool
	withheld   map[string]bool
	candidates []types.Candidate
	target     int
}

func newSelection(target int, ranked []types.Candidate) *selection {
	sel := &selection{
		target:   target,
		chosen:   make(map[string]bool, target),
		withheld: make(map[string]bool),
	}
	for _, c := range ranked {
		if sel.full() {
			break
		}
		sel.add(c)
	}
	return sel
}

func (sel *selection) full() bool {
	return len(sel.candidates) >= sel.target
}

// taken reports whether login was already chosen or must not be chosen at all.
func (sel *selection) taken(login string) bool {
	return sel.chosen[login] || sel.withheld[login]
}

func (sel *selection) add(c types.Candidate) {
	sel.chosen[c.Login] = true
	sel.candidates = append(sel.candidates, c)
}

// fillFromPaths assigns the reviewers designated by fallback_paths for the changed files.
func (s *Selector) fillFromPaths(ctx context.Context, st *policy.Settings, pc policy.PullContext, files []types.ChangedFile, sel *selection) {
	for _, f := range files {
		if sel.full() {
			return
		}
		for _, login := range st.FallbackFor(f.Filename) {
			if sel.full() {
				return
			}
			if sel.taken(login) {
				continue
			}
			if reason := st.Excluded(login, pc); reason != "" {
				s.logger.DebugContext(ctx, "Skipping fallback reviewer", "username", login, "file", f.Filename, "reason", reason)
				continue
			}
			s.logger.InfoContext(ctx, "Adding fallback reviewer", "username", login, "file", f.Filename)
			sel.add(types.Candidate{Login: login, Source: types.SourceFallback})
		}
	}
}

// fillRandomly draws the remaining slots uniformly from the eligible roster.
func (s *Selector) fillRandomly(ctx context.Context, st *policy.Settings, pc policy.PullContext, sel *selection) {
	if sel.full() {
		return
	}

	var pool []string
	for _, login := range st.Roster() {
		if sel.taken(login) || st.Excluded(login, pc) != "" {
			continue
		}
		pool = append(pool, login)
	}
	s.rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	for _, login := range pool {
		if sel.full() {
			break
		}
		s.logger.InfoContext(ctx, "Adding random reviewer", "username", login)
		sel.add(types.Candidate{Login: login, Source: types.SourceRandom})
	}
	if !sel.full() {
		s.logger.WarnContext(ctx, "Eligible reviewers exhausted", "selected", len(sel.candidates), "wanted", sel.target)
	}
}

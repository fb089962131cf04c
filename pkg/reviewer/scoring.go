package reviewer

import (
	"context"
	"sort"

	"github.com/codeGROOVE-dev/pull-review/pkg/types"
)

// rank orders eligible logins by aggregate blame weight, highest first.
// Equal weights keep their first-encounter order. Logins whose entries sum to
// zero lines are not blame candidates.
func (s *Selector) rank(ctx context.Context, t *blameTally, eligible []string) []types.Candidate {
	candidates := make([]types.Candidate, 0, len(eligible))
	for _, login := range eligible {
		if t.weights[login] == 0 {
			continue
		}
		candidates = append(candidates, types.Candidate{
			Login:  login,
			Count:  t.weights[login],
			Source: types.SourceBlame,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Count > candidates[j].Count
	})

	for i, c := range candidates {
		if i >= topCandidatesToLog {
			break
		}
		s.logger.InfoContext(ctx, "Candidate scored", "rank", i+1, "username", c.Login, "count", c.Count,
			"entries", len(t.entries[c.Login]))
	}
	return candidates
}

package reviewer

import (
	"context"

	"github.com/codeGROOVE-dev/pull-review/pkg/policy"
	"github.com/codeGROOVE-dev/pull-review/pkg/types"
)

// pullContext collects what eligibility rules need to know about the pull request.
func pullContext(author string, commits []types.Commit) policy.PullContext {
	pc := policy.PullContext{
		Author:        author,
		CommitAuthors: make(map[string]bool, len(commits)),
	}
	for _, c := range commits {
		if c.Author.Login != "" {
			pc.CommitAuthors[c.Author.Login] = true
		}
	}
	return pc
}

// eligible returns the logins that may be assigned, preserving order.
func (s *Selector) eligible(ctx context.Context, st *policy.Settings, pc policy.PullContext, logins []string) []string {
	out := make([]string, 0, len(logins))
	for _, login := range logins {
		if reason := st.Excluded(login, pc); reason != "" {
			s.logger.DebugContext(ctx, "Filtered out candidate", "username", login, "reason", reason)
			continue
		}
		out = append(out, login)
	}
	return out
}

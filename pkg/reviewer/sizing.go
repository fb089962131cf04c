package reviewer

import "github.com/codeGROOVE-dev/pull-review/pkg/policy"

// targetCount returns how many reviewers the pull request needs.
//
// When a load cap (files or lines per reviewer) is configured, the smallest
// configured cap is the demand; otherwise the number of blame candidates is.
// The demand is then clamped into [min_reviewers, max_reviewers].
func targetCount(st *policy.Settings, blameCandidates int, fs fileSet) int {
	demand := -1
	if st.MaxFilesPerReviewer > 0 {
		demand = ceilDiv(fs.distinct, st.MaxFilesPerReviewer)
	}
	if st.MaxLinesPerReviewer > 0 {
		byLines := ceilDiv(fs.lineLoad, st.MaxLinesPerReviewer)
		if demand < 0 || byLines < demand {
			demand = byLines
		}
	}
	if demand < 0 {
		demand = blameCandidates
	}
	return max(st.MinReviewers, min(demand, st.MaxReviewers))
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

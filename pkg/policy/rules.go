package policy

// Exclusion reasons.
const (
	ReasonAuthor       = "is PR author"
	ReasonBlacklisted  = "in review_blacklist"
	ReasonUnreachable  = "not in reviewers"
	ReasonCommitAuthor = "authored a commit in the PR"
)

// PullContext is what eligibility rules may know about the pull request.
type PullContext struct {
	CommitAuthors map[string]bool
	Author        string
}

// Rule returns the reason login may not review, or "" when it may.
// Rules are selected once per policy version.
type Rule func(login string, pr PullContext) string

// Reachable is the version 1 rule: only roster members may review.
func Reachable(roster map[string]Reviewer) Rule {
	return func(login string, _ PullContext) string {
		if _, ok := roster[login]; !ok {
			return ReasonUnreachable
		}
		return ""
	}
}

// NotCommitAuthor is the version 2 rule: nobody who wrote code in the PR may review it.
func NotCommitAuthor(login string, pr PullContext) string {
	if pr.CommitAuthors[login] {
		return ReasonCommitAuthor
	}
	return ""
}

func ruleFor(s *Settings) Rule {
	if s.Version == 2 {
		return NotCommitAuthor
	}
	return Reachable(s.Reviewers)
}

// Excluded returns why login may never be assigned for this pull request, or "".
// The PR author and blacklisted logins are excluded under every version.
func (s *Settings) Excluded(login string, pr PullContext) string {
	if login == pr.Author {
		return ReasonAuthor
	}
	if s.Blacklisted(login) {
		return ReasonBlacklisted
	}
	if s.Rule == nil {
		return ruleFor(s)(login, pr)
	}
	return s.Rule(login, pr)
}

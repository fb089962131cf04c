// Package reviewer selects reviewers for pull requests from blame history and policy.
package reviewer

// Selection constants.
const (
	topCandidatesToLog   = 5 // Number of ranked candidates to log
	maxConcurrentLookups = 8 // Default bound on in-flight blame lookups
)

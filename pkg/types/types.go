// Package types contains shared data structures used across the reviewer system.
//
//nolint:revive // "types" is a standard Go package name for shared data structures
package types

// FileStatus is the change status of a file in a pull request.
type FileStatus string

// File statuses understood by the selector.
const (
	StatusAdded    FileStatus = "added"
	StatusModified FileStatus = "modified"
	StatusDeleted  FileStatus = "deleted"
	StatusRenamed  FileStatus = "renamed"
)

// ParseFileStatus normalizes a status string. GitHub reports deleted files as "removed".
func ParseFileStatus(s string) (FileStatus, bool) {
	switch s {
	case "added":
		return StatusAdded, true
	case "modified", "changed":
		return StatusModified, true
	case "deleted", "removed":
		return StatusDeleted, true
	case "renamed":
		return StatusRenamed, true
	default:
		return "", false
	}
}

// Source is the provenance of a selected reviewer.
type Source string

// Reviewer provenance tags.
const (
	SourceBlame    Source = "blame"
	SourceFallback Source = "fallback"
	SourceRandom   Source = "random"
)

// ChangedFile represents a file changed in a pull request.
// Counters are pointers so that an absent field can be told apart from zero.
type ChangedFile struct {
	Changes   *int   `json:"changes,omitempty" yaml:"changes,omitempty"`
	Additions *int   `json:"additions,omitempty" yaml:"additions,omitempty"`
	Deletions *int   `json:"deletions,omitempty" yaml:"deletions,omitempty"`
	Filename  string `json:"filename" yaml:"filename"`
	Status    string `json:"status" yaml:"status"` // "added", "modified", "deleted", "renamed"
	// PreviousFilename is the path before a rename.
	PreviousFilename string `json:"previous_filename,omitempty" yaml:"previous_filename,omitempty"`
}

// BlameEntry attributes a number of lines in one file to one author.
type BlameEntry struct {
	Count *int   `json:"count,omitempty" yaml:"count,omitempty"`
	Age   *int   `json:"age,omitempty" yaml:"age,omitempty"` // smaller is more recent
	Login string `json:"login" yaml:"login"`
}

// Commit is a commit that is part of a pull request.
type Commit struct {
	Author struct {
		Login string `json:"login" yaml:"login"`
	} `json:"author" yaml:"author"`
}

// NewCommit returns a commit authored by login.
func NewCommit(login string) Commit {
	var c Commit
	c.Author.Login = login
	return c
}

// Candidate is a selected reviewer with its provenance.
type Candidate struct {
	Login  string `json:"login" yaml:"login"`
	Source Source `json:"source" yaml:"source"`
	Count  int    `json:"count,omitempty" yaml:"count,omitempty"`
}

// PullRequest represents a GitHub pull request as seen by the selector's callers.
type PullRequest struct {
	Owner      string
	Repository string
	Author     string
	BaseRef    string
	Title      string
	State      string
	Files      []ChangedFile
	Commits    []Commit
	Assignees  []string
	Reviewers  []string
	Number     int
	Draft      bool
}

// Int returns a pointer to n.
func Int(n int) *int {
	return &n
}

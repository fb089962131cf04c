package testutil

import (
	"context"
	"sync/atomic"

	"github.com/codeGROOVE-dev/pull-review/pkg/types"
)

// Entry builds a complete blame entry.
func Entry(login string, count, age int) types.BlameEntry {
	return types.BlameEntry{Login: login, Count: types.Int(count), Age: types.Int(age)}
}

// File builds a changed file with only the required fields.
func File(name, status string, changes int) types.ChangedFile {
	return types.ChangedFile{Filename: name, Status: status, Changes: types.Int(changes)}
}

// FileWithLines builds a changed file that also carries additions and deletions.
func FileWithLines(name, status string, additions, deletions int) types.ChangedFile {
	f := File(name, status, additions+deletions)
	f.Additions = types.Int(additions)
	f.Deletions = types.Int(deletions)
	return f
}

// StaticBlame serves canned blame entries per filename and counts lookups.
type StaticBlame struct {
	Files map[string][]types.BlameEntry
	Err   map[string]error
	calls atomic.Int64
}

// BlameForFile returns the configured entries or error for file.
func (s *StaticBlame) BlameForFile(ctx context.Context, file types.ChangedFile) ([]types.BlameEntry, error) {
	s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := s.Err[file.Filename]; ok {
		return nil, err
	}
	return s.Files[file.Filename], nil
}

// Calls returns the number of lookups made.
func (s *StaticBlame) Calls() int {
	return int(s.calls.Load())
}

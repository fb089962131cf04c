package reviewer

import (
	"fmt"

	"github.com/codeGROOVE-dev/pull-review/pkg/policy"
	"github.com/codeGROOVE-dev/pull-review/pkg/types"
)

// fileSet is the validated view of the changed files.
type fileSet struct {
	files    []types.ChangedFile // in input order, file_blacklist removed
	lookups  []types.ChangedFile // files sent to blame lookup, bounded by max_files
	distinct int
	lineLoad int
}

// filterFiles validates every changed file and computes the review load.
// One incomplete entry rejects the whole list.
func filterFiles(files []types.ChangedFile, st *policy.Settings) (fileSet, error) {
	for i, f := range files {
		if err := validateFile(f); err != nil {
			return fileSet{}, fmt.Errorf("%w: file %d: %w", ErrMissingFileData, i, err)
		}
	}

	var fs fileSet
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if st.IgnoreFile(f.Filename) {
			continue
		}
		fs.files = append(fs.files, f)
		if !seen[f.Filename] {
			seen[f.Filename] = true
			fs.distinct++
		}
		fs.lineLoad += lineLoad(f)
	}

	fs.lookups = fs.files
	if st.MaxFiles > 0 && len(fs.lookups) > st.MaxFiles {
		fs.lookups = fs.lookups[:st.MaxFiles]
	}
	return fs, nil
}

func validateFile(f types.ChangedFile) error {
	switch {
	case f.Filename == "":
		return fmt.Errorf("filename is required")
	case f.Status == "":
		return fmt.Errorf("%s: status is required", f.Filename)
	case f.Changes == nil:
		return fmt.Errorf("%s: changes is required", f.Filename)
	case *f.Changes < 0:
		return fmt.Errorf("%s: changes must not be negative", f.Filename)
	}
	if _, ok := types.ParseFileStatus(f.Status); !ok {
		return fmt.Errorf("%s: unknown status %q", f.Filename, f.Status)
	}
	return nil
}

// lineLoad is the number of lines a file adds to the review load. Added and
// deleted files have no prior history worth reviewing against.
func lineLoad(f types.ChangedFile) int {
	status, _ := types.ParseFileStatus(f.Status)
	if status == types.StatusAdded || status == types.StatusDeleted {
		return 0
	}
	if f.Additions != nil && f.Deletions != nil {
		return *f.Additions + *f.Deletions
	}
	return *f.Changes
}

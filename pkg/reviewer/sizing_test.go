package reviewer

import (
	"testing"

	"github.com/codeGROOVE-dev/pull-review/pkg/policy"
)

func TestTargetCount(t *testing.T) {
	tests := []struct {
		name     string
		settings func(*policy.Settings)
		blame    int
		files    int
		lines    int
		want     int
	}{
		{name: "no blame uses minimum", want: 1},
		{name: "blame within bounds", blame: 2, want: 2},
		{name: "blame above maximum", blame: 7, want: 2},
		{name: "zero caps are ignored", blame: 1, files: 50, lines: 500, want: 1},
		{
			name:     "files cap",
			settings: func(s *policy.Settings) { s.MaxFilesPerReviewer = 10; s.MaxReviewers = 5 },
			blame:    5, files: 21, want: 3,
		},
		{
			name:     "lines cap rounds up",
			settings: func(s *policy.Settings) { s.MaxLinesPerReviewer = 4; s.MaxReviewers = 20 },
			lines:    60, want: 15,
		},
		{
			name:     "smallest cap wins",
			settings: func(s *policy.Settings) { s.MaxLinesPerReviewer = 10; s.MaxFilesPerReviewer = 1; s.MaxReviewers = 9 },
			files:    8, lines: 30, want: 3,
		},
		{
			name:     "cap clamped to maximum",
			settings: func(s *policy.Settings) { s.MaxLinesPerReviewer = 4 },
			lines:    60, want: 2,
		},
		{
			name:     "cap clamped to minimum",
			settings: func(s *policy.Settings) { s.MaxLinesPerReviewer = 4; s.MinReviewers = 2 },
			lines:    0, want: 2,
		},
		{
			name:     "zero bounds",
			settings: func(s *policy.Settings) { s.MinReviewers = 0; s.MaxReviewers = 0 },
			blame:    3, want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := policy.Default()
			if tt.settings != nil {
				tt.settings(st)
			}
			got := targetCount(st, tt.blame, fileSet{distinct: tt.files, lineLoad: tt.lines})
			if got != tt.want {
				t.Errorf("targetCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

package reviewer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/pull-review/pkg/internal/testutil"
	"github.com/codeGROOVE-dev/pull-review/pkg/policy"
	"github.com/codeGROOVE-dev/pull-review/pkg/types"
)

func newTestSelector(opts ...Option) *Selector {
	base := []Option{
		WithRandom(testutil.NoShuffle{}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return New(append(base, opts...)...)
}

func mustResolve(t *testing.T, raw map[string]any) *policy.Settings {
	t.Helper()
	st, err := policy.Resolve(raw)
	if err != nil {
		t.Fatalf("unexpected policy error: %v", err)
	}
	return st
}

func noBlame() BlameSource {
	return BlameFunc(func(context.Context, types.ChangedFile) ([]types.BlameEntry, error) {
		return nil, nil
	})
}

func sameBlame(entries ...types.BlameEntry) BlameSource {
	return BlameFunc(func(context.Context, types.ChangedFile) ([]types.BlameEntry, error) {
		return entries, nil
	})
}

func roster(logins ...string) map[string]any {
	m := make(map[string]any, len(logins))
	for _, l := range logins {
		m[l] = map[string]any{}
	}
	return m
}

func loginsOf(cs []types.Candidate) []string {
	return logins(cs)
}

func TestSelect_RequiredInputs(t *testing.T) {
	s := newTestSelector()
	ctx := context.Background()

	if _, err := s.Select(ctx, Request{}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration without inputs, got %v", err)
	}
	if _, err := s.Select(ctx, Request{Blame: noBlame()}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration without author, got %v", err)
	}
	if _, err := s.Select(ctx, Request{AuthorLogin: "mockuser"}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration without blame source, got %v", err)
	}
}

func TestSelect_TooManyAssignees(t *testing.T) {
	s := newTestSelector()
	_, err := s.Select(context.Background(), Request{
		AuthorLogin: "mockuser",
		Blame:       noBlame(),
		Assignees:   []string{"1", "2", "3", "4", "5", "6", "7", "8", "9"},
	})
	if !errors.Is(err, ErrMaximumReviewersAssigned) {
		t.Fatalf("expected maximum reviewers signal, got %v", err)
	}
	if !IsNoAction(err) {
		t.Error("expected maximum reviewers signal to be a no-action error")
	}
	var ps *PolicySatisfiedError
	if !errors.As(err, &ps) || ps.Assigned != 9 || ps.Limit != policy.DefaultMaxReviewers {
		t.Errorf("unexpected error details: %+v", ps)
	}
}

func TestSelect_MinimumMetByAssignees(t *testing.T) {
	s := newTestSelector()
	_, err := s.Select(context.Background(), Request{
		AuthorLogin: "mockuser",
		Blame:       noBlame(),
		Assignees:   []string{"1"},
	})
	if !errors.Is(err, ErrMinimumReviewersAssigned) {
		t.Fatalf("expected minimum reviewers signal, got %v", err)
	}
	if errors.Is(err, ErrMaximumReviewersAssigned) {
		t.Error("minimum signal must not match maximum")
	}
}

func TestSelect_EmptyAssigneesStillSelects(t *testing.T) {
	s := newTestSelector()
	got, err := s.Select(context.Background(), Request{
		Settings:    mustResolve(t, map[string]any{"reviewers": roster("bob")}),
		AuthorLogin: "alice",
		Blame:       noBlame(),
		Assignees:   []string{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Login != "bob" {
		t.Errorf("expected bob, got %v", got)
	}
}

func TestSelect_Disabled(t *testing.T) {
	s := newTestSelector()
	_, err := s.Select(context.Background(), Request{
		Settings:    mustResolve(t, map[string]any{"enabled": false}),
		AuthorLogin: "alice",
		Blame:       noBlame(),
	})
	if !errors.Is(err, ErrDisabled) || !IsNoAction(err) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestSelect_BadFileData(t *testing.T) {
	src := &testutil.StaticBlame{}
	s := newTestSelector()
	_, err := s.Select(context.Background(), Request{
		AuthorLogin: "mockuser",
		Blame:       src,
		Files: []types.ChangedFile{
			testutil.File("ok", "modified", 1),
			{Filename: "no-changes", Status: "modified"},
		},
	})
	if !errors.Is(err, ErrMissingFileData) {
		t.Fatalf("expected ErrMissingFileData, got %v", err)
	}
	if src.Calls() != 0 {
		t.Errorf("expected no blame lookups before file validation, got %d", src.Calls())
	}
}

func TestSelect_BadBlameData(t *testing.T) {
	s := newTestSelector()
	_, err := s.Select(context.Background(), Request{
		AuthorLogin: "mockuser",
		Files:       []types.ChangedFile{testutil.File("test", "modified", 1)},
		Blame:       sameBlame(types.BlameEntry{Login: "mockuser"}),
	})
	if !errors.Is(err, ErrMissingBlameData) {
		t.Fatalf("expected ErrMissingBlameData, got %v", err)
	}
}

func TestSelect_FiltersUnreachableAuthors(t *testing.T) {
	s := newTestSelector()
	got, err := s.Select(context.Background(), Request{
		Settings:    mustResolve(t, map[string]any{"version": 1, "reviewers": roster("testuser")}),
		AuthorLogin: "foo",
		Files:       []types.ChangedFile{testutil.File("test", "modified", 2)},
		Blame:       sameBlame(testutil.Entry("mockuser", 5, 1), testutil.Entry("testuser", 1, 1)),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names := loginsOf(got)
	if slices.Contains(names, "mockuser") {
		t.Errorf("unreachable mockuser was selected: %v", names)
	}
	if !slices.Contains(names, "testuser") {
		t.Errorf("expected testuser to be selected: %v", names)
	}
}

func TestSelect_FiltersCommitAuthors(t *testing.T) {
	s := newTestSelector()
	got, err := s.Select(context.Background(), Request{
		Settings:    mustResolve(t, map[string]any{"version": 2, "reviewers": roster("bob", "charlie")}),
		AuthorLogin: "alice",
		Files:       []types.ChangedFile{testutil.File("test", "modified", 10)},
		Commits:     []types.Commit{types.NewCommit("charlie")},
		Blame:       sameBlame(testutil.Entry("charlie", 9, 1), testutil.Entry("bob", 1, 10)),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names := loginsOf(got)
	if slices.Contains(names, "charlie") {
		t.Errorf("commit author charlie was selected: %v", names)
	}
	if !slices.Contains(names, "bob") {
		t.Errorf("expected bob to be selected: %v", names)
	}
}

func TestSelect_Version2IgnoresReachability(t *testing.T) {
	s := newTestSelector()
	got, err := s.Select(context.Background(), Request{
		Settings:    mustResolve(t, map[string]any{"version": 2, "reviewers": roster("bob")}),
		AuthorLogin: "alice",
		Files:       []types.ChangedFile{testutil.File("test", "modified", 10)},
		Blame:       sameBlame(testutil.Entry("outsider", 9, 1)),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []types.Candidate{{Login: "outsider", Count: 9, Source: types.SourceBlame}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Select() mismatch (-want +got):\n%s", diff)
	}
}

func TestSelect_ZeroLineBlameIsNotACandidate(t *testing.T) {
	s := newTestSelector()
	got, err := s.Select(context.Background(), Request{
		Settings:    mustResolve(t, map[string]any{"version": 1, "max_reviewers": 3, "reviewers": roster("bob", "carol")}),
		AuthorLogin: "alice",
		Files:       []types.ChangedFile{testutil.File("main.go", "modified", 10)},
		Blame:       sameBlame(testutil.Entry("carol", 0, 1), testutil.Entry("bob", 6, 2), testutil.Entry("carol", 0, 4)),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []types.Candidate{{Login: "bob", Count: 6, Source: types.SourceBlame}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Select() mismatch (-want +got):\n%s", diff)
	}
}

func TestSelect_BlameAggregation(t *testing.T) {
	src := &testutil.StaticBlame{Files: map[string][]types.BlameEntry{
		"foo": {testutil.Entry("bob", 5, 1), testutil.Entry("charlie", 10, 10), testutil.Entry("bob", 7, 3)},
		"bar": {testutil.Entry("charlie", 1, 1), testutil.Entry("bob", 1, 10)},
	}}
	files := []types.ChangedFile{
		testutil.File("foo", "modified", 3),
		testutil.File("bar", "modified", 2),
	}
	want := []types.Candidate{
		{Login: "bob", Count: 13, Source: types.SourceBlame},
		{Login: "charlie", Count: 11, Source: types.SourceBlame},
	}
	st := mustResolve(t, map[string]any{"version": 1, "reviewers": roster("alice", "bob", "charlie")})

	for _, order := range [][]types.ChangedFile{files, {files[1], files[0]}} {
		got, err := newTestSelector().Select(context.Background(), Request{
			Settings:    st,
			AuthorLogin: "alice",
			Files:       order,
			Blame:       src,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Select() mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestSelect_RandomMinimum(t *testing.T) {
	st := mustResolve(t, map[string]any{"version": 1, "reviewers": roster("alice", "bob", "charlie")})
	for _, rnd := range []RandomSource{testutil.NoShuffle{}, testutil.ReverseShuffle{}, NewRandom()} {
		got, err := newTestSelector(WithRandom(rnd)).Select(context.Background(), Request{
			Settings:    st,
			AuthorLogin: "alice",
			Files:       []types.ChangedFile{},
			Blame:       noBlame(),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 reviewer, got %v", got)
		}
		if got[0].Login == "alice" {
			t.Error("author was selected")
		}
		if got[0].Source != types.SourceRandom {
			t.Errorf("expected random source, got %q", got[0].Source)
		}
	}
}

func TestSelect_FallbackPaths(t *testing.T) {
	st := mustResolve(t, map[string]any{
		"version":   1,
		"reviewers": roster("alice", "bob", "charlie", "dee"),
		"fallback_paths": map[string]any{
			"app/web/*": []any{"bob"},
			"app/api":   []any{"charlie"},
		},
	})
	got, err := newTestSelector().Select(context.Background(), Request{
		Settings:    st,
		AuthorLogin: "alice",
		Files: []types.ChangedFile{
			testutil.File("app/web/index.js", "modified", 1),
			testutil.File("app/api/index.js", "modified", 1),
		},
		Blame: noBlame(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []types.Candidate{{Login: "bob", Source: types.SourceFallback}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Select() mismatch (-want +got):\n%s", diff)
	}
}

func TestSelect_FallbackThenRandom(t *testing.T) {
	st := mustResolve(t, map[string]any{
		"reviewers":      roster("alice", "bob", "charlie", "dee"),
		"min_reviewers":  3,
		"max_reviewers":  3,
		"fallback_paths": map[string]any{"docs/**": "alice"},
	})
	got, err := newTestSelector().Select(context.Background(), Request{
		Settings:    st,
		AuthorLogin: "bob",
		Files:       []types.ChangedFile{testutil.File("docs/guide/intro.md", "modified", 4)},
		Blame:       sameBlame(testutil.Entry("dee", 4, 2)),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []types.Candidate{
		{Login: "dee", Count: 4, Source: types.SourceBlame},
		{Login: "alice", Source: types.SourceFallback},
		{Login: "charlie", Source: types.SourceRandom},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Select() mismatch (-want +got):\n%s", diff)
	}
}

func TestSelect_MaxFilesPerReviewer(t *testing.T) {
	st := mustResolve(t, map[string]any{
		"reviewers":              roster("alice", "bob", "charlie"),
		"max_files_per_reviewer": 5,
	})
	oneFile := []types.ChangedFile{testutil.File("one_file", "modified", 1)}
	sameFile := make([]types.ChangedFile, 100)
	for i := range sameFile {
		sameFile[i] = testutil.File("one_file", "modified", 1)
	}

	for name, files := range map[string][]types.ChangedFile{"one": oneFile, "repeated": sameFile} {
		t.Run(name, func(t *testing.T) {
			got, err := newTestSelector().Select(context.Background(), Request{
				Settings:    st,
				AuthorLogin: "charlie",
				Files:       files,
				Blame:       noBlame(),
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != 1 {
				t.Errorf("expected 1 reviewer, got %v", got)
			}
		})
	}
}

func TestSelect_MaxLinesPerReviewer(t *testing.T) {
	raw := map[string]any{
		"version":                2,
		"reviewers":              roster("alice", "bob", "charlie", "dee"),
		"max_lines_per_reviewer": 0,
	}
	files := []types.ChangedFile{
		testutil.FileWithLines("MOST_CHANGES", "modified", 20, 30),
		testutil.FileWithLines("LEAST_CHANGES", "modified", 5, 5),
		testutil.FileWithLines("JUST_ADDED", "added", 10, 0),
		testutil.FileWithLines("JUST_DELETED", "deleted", 0, 20),
	}

	tests := []struct {
		name     string
		maxLines int
		want     int
	}{
		{"unconstrained assigns minimum", 0, 1},
		{"small cap assigns maximum", 4, 2},
		{"large cap assigns minimum", 1000, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw["max_lines_per_reviewer"] = tt.maxLines
			got, err := newTestSelector().Select(context.Background(), Request{
				Settings:    mustResolve(t, raw),
				AuthorLogin: "wally",
				Files:       files,
				Blame:       noBlame(),
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("expected %d reviewers, got %v", tt.want, got)
			}
		})
	}
}

func TestSelect_MinAuthorsOfChangedFiles(t *testing.T) {
	st := mustResolve(t, map[string]any{
		"version":                      2,
		"reviewers":                    roster("alice", "bob", "charlie"),
		"min_authors_of_changed_files": 2,
	})
	got, err := newTestSelector().Select(context.Background(), Request{
		Settings:    st,
		AuthorLogin: "alice",
		Files:       []types.ChangedFile{testutil.FileWithLines("TEST", "modified", 100, 0)},
		Blame:       sameBlame(testutil.Entry("bob", 100, 1)),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 reviewer, got %v", got)
	}
	if got[0].Login == "bob" || got[0].Login == "alice" {
		t.Errorf("expected neither bob nor the author, got %q", got[0].Login)
	}
	if got[0].Source != types.SourceRandom {
		t.Errorf("expected random source, got %q", got[0].Source)
	}
}

func TestSelect_NotEnoughReviewers(t *testing.T) {
	st := mustResolve(t, map[string]any{
		"reviewers":     roster("alice", "bob"),
		"min_reviewers": 3,
		"max_reviewers": 4,
	})
	got, err := newTestSelector().Select(context.Background(), Request{
		Settings:    st,
		AuthorLogin: "alice",
		Blame:       noBlame(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []types.Candidate{{Login: "bob", Source: types.SourceRandom}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Select() mismatch (-want +got):\n%s", diff)
	}
}

func TestSelect_ReviewBlacklistAndFileBlacklist(t *testing.T) {
	st := mustResolve(t, map[string]any{
		"reviewers":        roster("alice", "bob", "charlie"),
		"review_blacklist": []any{"bob"},
		"file_blacklist":   []any{"**/*.lock"},
	})
	src := &testutil.StaticBlame{Files: map[string][]types.BlameEntry{
		"src/main.go":  {testutil.Entry("bob", 50, 1), testutil.Entry("charlie", 2, 1)},
		"deps/go.lock": {testutil.Entry("alice", 500, 1)},
	}}
	got, err := newTestSelector().Select(context.Background(), Request{
		Settings:    st,
		AuthorLogin: "dee",
		Files: []types.ChangedFile{
			testutil.File("src/main.go", "modified", 4),
			testutil.File("deps/go.lock", "modified", 400),
		},
		Blame: src,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []types.Candidate{{Login: "charlie", Count: 2, Source: types.SourceBlame}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Select() mismatch (-want +got):\n%s", diff)
	}
	if src.Calls() != 1 {
		t.Errorf("expected blacklisted file to be skipped, got %d lookups", src.Calls())
	}
}

func TestSelect_Invariants(t *testing.T) {
	everyone := []string{"alice", "bob", "charlie", "dee", "eve", "frank"}
	blame := sameBlame(
		testutil.Entry("alice", 3, 1), testutil.Entry("bob", 8, 2), testutil.Entry("eve", 8, 1),
		testutil.Entry("zed", 20, 4), testutil.Entry("frank", 1, 9),
	)
	files := []types.ChangedFile{
		testutil.FileWithLines("a.go", "modified", 10, 2),
		testutil.FileWithLines("b.go", "renamed", 7, 7),
		testutil.File("c.go", "added", 30),
	}

	for _, version := range []int{1, 2} {
		for minR := 0; minR <= 3; minR++ {
			for maxR := minR; maxR <= 5; maxR++ {
				st := mustResolve(t, map[string]any{
					"version":                version,
					"reviewers":              roster(everyone...),
					"min_reviewers":          minR,
					"max_reviewers":          maxR,
					"max_lines_per_reviewer": 5,
				})
				got, err := newTestSelector(WithRandom(NewRandom())).Select(context.Background(), Request{
					Settings:    st,
					AuthorLogin: "alice",
					Files:       files,
					Commits:     []types.Commit{types.NewCommit("eve")},
					Blame:       blame,
				})
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if len(got) < minR || len(got) > maxR {
					t.Errorf("v%d [%d,%d]: result size %d out of bounds", version, minR, maxR, len(got))
				}
				seen := map[string]bool{}
				for _, c := range got {
					if c.Login == "alice" {
						t.Errorf("v%d: author selected", version)
					}
					if version == 2 && c.Login == "eve" {
						t.Errorf("v2: commit author selected")
					}
					if version == 1 && c.Login == "zed" {
						t.Errorf("v1: unreachable login selected")
					}
					if seen[c.Login] {
						t.Errorf("v%d: duplicate %q", version, c.Login)
					}
					seen[c.Login] = true
				}
			}
		}
	}
}

func TestSelect_BlameRankingIsDeterministic(t *testing.T) {
	st := mustResolve(t, map[string]any{"reviewers": roster("a", "b", "c", "d"), "max_reviewers": 4})
	req := Request{
		Settings:    st,
		AuthorLogin: "x",
		Files:       []types.ChangedFile{testutil.File("f1", "modified", 1), testutil.File("f2", "modified", 1)},
		Blame: sameBlame(
			testutil.Entry("c", 2, 1), testutil.Entry("a", 2, 1), testutil.Entry("d", 1, 1), testutil.Entry("b", 2, 1),
		),
	}
	first, err := newTestSelector(WithRandom(NewRandom())).Select(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"c", "a", "b", "d"}
	if diff := cmp.Diff(want, loginsOf(first)); diff != "" {
		t.Errorf("ranking mismatch (-want +got):\n%s", diff)
	}
	for range 10 {
		again, err := newTestSelector(WithRandom(NewRandom())).Select(context.Background(), req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff(first, again); diff != "" {
			t.Errorf("blame ranking changed between calls:\n%s", diff)
		}
	}
}

func TestSelect_MalformedConfig(t *testing.T) {
	_, err := newTestSelector().Select(context.Background(), Request{
		Config:      map[string]any{"reviewers": []any{"alice", "bob"}},
		AuthorLogin: "alice",
		Blame:       noBlame(),
	})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if !errors.Is(err, policy.ErrInvalid) {
		t.Errorf("expected policy.ErrInvalid to be wrapped, got %v", err)
	}
}

func TestSelect_RawConfig(t *testing.T) {
	got, err := newTestSelector().Select(context.Background(), Request{
		Config:      map[string]any{"reviewers": roster("testuser")},
		AuthorLogin: "foo",
		Files:       []types.ChangedFile{testutil.File("test", "modified", 2)},
		Blame:       sameBlame(testutil.Entry("testuser", 1, 1)),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []types.Candidate{{Login: "testuser", Count: 1, Source: types.SourceBlame}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Select() mismatch (-want +got):\n%s", diff)
	}
}

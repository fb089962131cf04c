package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/codeGROOVE-dev/pull-review/pkg/cache"
	"github.com/codeGROOVE-dev/pull-review/pkg/github"
	"github.com/codeGROOVE-dev/pull-review/pkg/policy"
	"github.com/codeGROOVE-dev/pull-review/pkg/reviewer"
	"github.com/codeGROOVE-dev/pull-review/pkg/types"
)

// policyFile is the repository file holding the review policy.
const policyFile = ".pull-review"

type suggestOptions struct {
	configPath string
	inputPath  string
	output     string
	cacheDir   string
	appID      string
	appKeyPath string
	seed       uint64
	assign     bool
	useApp     bool
}

var suggestOpts suggestOptions

var suggestCmd = &cobra.Command{
	Use:   "suggest <PR URL | owner/repo#N>",
	Short: "Suggest reviewers for a pull request",
	Example: `  pull-review suggest https://github.com/owner/repo/pull/123
  pull-review suggest owner/repo#123 --assign
  pull-review suggest --input request.json --seed 7`,
	Args: func(cmd *cobra.Command, args []string) error {
		if suggestOpts.inputPath != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runSuggest,
}

func init() {
	f := suggestCmd.Flags()
	f.StringVar(&suggestOpts.configPath, "config", "", "Policy file to use instead of the repository's "+policyFile)
	f.StringVar(&suggestOpts.inputPath, "input", "", "Run offline from a JSON request file instead of GitHub")
	f.StringVarP(&suggestOpts.output, "output", "o", "text", "Output format: text, json or yaml")
	f.StringVar(&suggestOpts.cacheDir, "cache-dir", "", "Absolute directory for persisting blame lookups between runs")
	f.BoolVar(&suggestOpts.assign, "assign", false, "Request reviews from the suggested reviewers")
	f.Uint64Var(&suggestOpts.seed, "seed", 0, "Seed for random reviewer selection (default: random)")
	f.BoolVar(&suggestOpts.useApp, "app", false, "Authenticate as a GitHub App")
	f.StringVar(&suggestOpts.appID, "app-id", "", "GitHub App ID (or GITHUB_APP_ID)")
	f.StringVar(&suggestOpts.appKeyPath, "app-key-path", "", "GitHub App private key file (or GITHUB_APP_KEY / GITHUB_APP_KEY_PATH)")
	rootCmd.AddCommand(suggestCmd)
}

// suggestion is what suggest prints.
type suggestion struct {
	Reviewers []types.Candidate `json:"reviewers" yaml:"reviewers"`
	Message   string            `json:"message,omitempty" yaml:"message,omitempty"`
	PR        string            `json:"pr,omitempty" yaml:"pr,omitempty"`
}

func runSuggest(cmd *cobra.Command, args []string) error {
	opts := suggestOpts
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	switch opts.output {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q", opts.output)
	}

	selOpts := []reviewer.Option{reviewer.WithLogger(slog.Default())}
	if cmd.Flags().Changed("seed") {
		selOpts = append(selOpts, reviewer.WithRandom(reviewer.NewSeededRandom(opts.seed)))
	}
	sel := reviewer.New(selOpts...)

	if opts.inputPath != "" {
		if opts.assign {
			return errors.New("--assign needs a pull request, not --input")
		}
		req, err := loadInput(opts.inputPath)
		if err != nil {
			return err
		}
		if opts.configPath != "" {
			if req.Settings, err = policy.Load(opts.configPath); err != nil {
				return err
			}
		}
		candidates, err := sel.Select(ctx, req)
		return printSuggestion(cmd.OutOrStdout(), opts.output, "", candidates, err)
	}

	owner, repo, number, err := parsePRURL(args[0])
	if err != nil {
		return err
	}
	client, err := github.New(ctx, github.Config{
		UseAppAuth:  opts.useApp,
		AppID:       opts.appID,
		AppKeyPath:  opts.appKeyPath,
		HTTPTimeout: 30 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}
	pr, err := client.PullRequest(ctx, owner, repo, number)
	if err != nil {
		return err
	}

	st, err := settingsFor(ctx, client, pr, opts.configPath)
	if err != nil {
		return err
	}

	store, err := cache.NewDisk[[]types.BlameEntry](cache.TTLBlame, opts.cacheDir, slog.Default())
	if err != nil {
		return err
	}
	defer store.Close()

	req := reviewer.Request{
		Settings:    st,
		Blame:       client.BlameSource(owner, repo, pr.BaseRef, store),
		AuthorLogin: pr.Author,
		Files:       pr.Files,
		Commits:     pr.Commits,
		Assignees:   pr.Assignees,
	}
	chosen, selErr := sel.Select(ctx, req)
	if err := printSuggestion(cmd.OutOrStdout(), opts.output, fmt.Sprintf("%s/%s#%d", owner, repo, number), chosen, selErr); err != nil {
		return err
	}
	if !opts.assign || selErr != nil || len(chosen) == 0 {
		return nil
	}
	logins := make([]string, len(chosen))
	for i, c := range chosen {
		logins[i] = c.Login
	}
	return client.RequestReviewers(ctx, owner, repo, number, logins)
}

// settingsFor loads the policy from path, or from the repository at the PR's base.
func settingsFor(ctx context.Context, client *github.Client, pr *types.PullRequest, path string) (*policy.Settings, error) {
	if path != "" {
		return policy.Load(path)
	}
	data, err := client.RepoFile(ctx, pr.Owner, pr.Repository, pr.BaseRef, policyFile)
	if errors.Is(err, github.ErrNotFound) {
		return nil, fmt.Errorf("%s/%s has no %s policy file (use --config)", pr.Owner, pr.Repository, policyFile)
	}
	if err != nil {
		return nil, err
	}
	st, err := policy.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", policyFile, err)
	}
	return st, nil
}

// printSuggestion prints the outcome of a selection. A policy that needs no action is not an error.
func printSuggestion(w io.Writer, format, ref string, candidates []types.Candidate, err error) error {
	out := suggestion{PR: ref, Reviewers: candidates}
	switch {
	case reviewer.IsNoAction(err):
		out.Message = noActionMessage(err)
	case err != nil:
		return err
	case len(candidates) == 0:
		out.Message = "no eligible reviewers found"
	}
	if out.Reviewers == nil {
		out.Reviewers = []types.Candidate{}
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return err
		}
		return enc.Close()
	}

	if out.Message != "" {
		_, err := fmt.Fprintln(w, out.Message)
		return err
	}
	for i, c := range out.Reviewers {
		line := fmt.Sprintf("%d. @%s (%s", i+1, c.Login, c.Source)
		if c.Source == types.SourceBlame {
			line += fmt.Sprintf(", %d lines", c.Count)
		}
		if _, err := fmt.Fprintln(w, line+")"); err != nil {
			return err
		}
	}
	return nil
}

func noActionMessage(err error) string {
	var ps *reviewer.PolicySatisfiedError
	if errors.As(err, &ps) {
		return fmt.Sprintf("no reviewers needed: %d already assigned (%s is %d)", ps.Assigned, ps.Bound, ps.Limit)
	}
	return "no reviewers needed: pull-review is disabled for this repository"
}

// requestFile is the offline form of a selection request.
type requestFile struct {
	Blame     map[string][]types.BlameEntry `json:"blame"`
	Config    map[string]any                `json:"config"`
	Author    string                        `json:"author"`
	Files     []types.ChangedFile           `json:"files"`
	Commits   []types.Commit                `json:"commits"`
	Assignees []string                      `json:"assignees"`
}

func loadInput(path string) (reviewer.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return reviewer.Request{}, fmt.Errorf("failed to read input: %w", err)
	}
	var in requestFile
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return reviewer.Request{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return reviewer.Request{
		Config:      in.Config,
		Blame:       staticBlame(in.Blame),
		AuthorLogin: in.Author,
		Files:       in.Files,
		Commits:     in.Commits,
		Assignees:   in.Assignees,
	}, nil
}

func staticBlame(byFile map[string][]types.BlameEntry) reviewer.BlameSource {
	return reviewer.BlameFunc(func(ctx context.Context, f types.ChangedFile) ([]types.BlameEntry, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return byFile[f.Filename], nil
	})
}

// parsePRURL parses a PR URL or shorthand into owner, repo, and PR number.
func parsePRURL(s string) (owner, repo string, number int, err error) {
	if !strings.Contains(s, "://") {
		// owner/repo#123
		repoPath, num, ok := strings.Cut(s, "#")
		if !ok {
			return "", "", 0, fmt.Errorf("invalid PR reference %q (use https://github.com/owner/repo/pull/123 or owner/repo#123)", s)
		}
		owner, repo, ok = strings.Cut(repoPath, "/")
		if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
			return "", "", 0, fmt.Errorf("invalid repository path %q (expected owner/repo)", repoPath)
		}
		if number, err = parseNumber(num); err != nil {
			return "", "", 0, err
		}
		return owner, repo, number, nil
	}

	rest, ok := strings.CutPrefix(s, "https://github.com/")
	if !ok {
		rest, ok = strings.CutPrefix(s, "http://github.com/")
	}
	if !ok {
		return "", "", 0, fmt.Errorf("invalid PR URL %q (only github.com URLs are supported)", s)
	}
	parts := strings.Split(strings.TrimSuffix(rest, "/"), "/")
	if len(parts) < 4 || parts[2] != "pull" || parts[0] == "" || parts[1] == "" {
		return "", "", 0, fmt.Errorf("invalid GitHub PR URL %q", s)
	}
	if number, err = parseNumber(parts[3]); err != nil {
		return "", "", 0, err
	}
	return parts[0], parts[1], number, nil
}

func parseNumber(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n <= 0 || fmt.Sprint(n) != s {
		return 0, fmt.Errorf("invalid PR number %q", s)
	}
	return n, nil
}

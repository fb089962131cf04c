package github

import (
	"context"
	"fmt"
	"net/http"

	"github.com/codeGROOVE-dev/pull-review/pkg/types"
)

type login struct {
	Login string `json:"login"`
}

// PullRequest fetches a pull request along with its changed files and commits.
func (c *Client) PullRequest(ctx context.Context, owner, repo string, number int) (*types.PullRequest, error) {
	c.logger.InfoContext(ctx, "Fetching PR details", "component", "api", "owner", owner, "repo", repo, "pr", number)

	var data struct {
		Title string `json:"title"`
		State string `json:"state"`
		User  login  `json:"user"`
		Base  struct {
			Ref string `json:"ref"`
			SHA string `json:"sha"`
		} `json:"base"`
		Assignees          []login `json:"assignees"`
		RequestedReviewers []login `json:"requested_reviewers"`
		Number             int     `json:"number"`
		Draft              bool    `json:"draft"`
	}
	if err := c.getJSON(ctx, c.repoURL(owner, repo, "/pulls/%d", number), owner, repo, &data); err != nil {
		return nil, fmt.Errorf("failed to get PR: %w", err)
	}

	pr := &types.PullRequest{
		Owner:      owner,
		Repository: repo,
		Number:     data.Number,
		Title:      data.Title,
		State:      data.State,
		Draft:      data.Draft,
		Author:     data.User.Login,
		BaseRef:    data.Base.SHA,
		Assignees:  logins(data.Assignees),
		Reviewers:  logins(data.RequestedReviewers),
	}
	if pr.BaseRef == "" {
		pr.BaseRef = data.Base.Ref
	}

	var err error
	if pr.Files, err = c.ChangedFiles(ctx, owner, repo, number); err != nil {
		return nil, fmt.Errorf("failed to get changed files: %w", err)
	}
	if pr.Commits, err = c.Commits(ctx, owner, repo, number); err != nil {
		return nil, fmt.Errorf("failed to get commits: %w", err)
	}
	return pr, nil
}

// ChangedFiles fetches every changed file in a PR, following pagination.
func (c *Client) ChangedFiles(ctx context.Context, owner, repo string, number int) ([]types.ChangedFile, error) {
	c.logger.InfoContext(ctx, "Fetching changed files for PR", "component", "api", "owner", owner, "repo", repo, "pr", number)

	var files []types.ChangedFile
	for page := 1; ; page++ {
		var batch []struct {
			Filename         string `json:"filename"`
			PreviousFilename string `json:"previous_filename"`
			Status           string `json:"status"`
			Additions        int    `json:"additions"`
			Deletions        int    `json:"deletions"`
			Changes          int    `json:"changes"`
		}
		apiURL := c.repoURL(owner, repo, "/pulls/%d/files?per_page=%d&page=%d", number, perPageLimit, page)
		if err := c.getJSON(ctx, apiURL, owner, repo, &batch); err != nil {
			return nil, err
		}
		for _, f := range batch {
			status := fileStatus(f.Status)
			cf := types.ChangedFile{
				Filename:  f.Filename,
				Status:    string(status),
				Changes:   types.Int(f.Changes),
				Additions: types.Int(f.Additions),
				Deletions: types.Int(f.Deletions),
			}
			if status == types.StatusRenamed {
				cf.PreviousFilename = f.PreviousFilename
			}
			files = append(files, cf)
		}
		if len(batch) < perPageLimit {
			return files, nil
		}
	}
}

// fileStatus maps a GitHub file status onto the statuses the selector understands.
// A copy has no history at its new path; an unchanged file is treated as modified.
func fileStatus(s string) types.FileStatus {
	if status, ok := types.ParseFileStatus(s); ok {
		return status
	}
	switch s {
	case "copied":
		return types.StatusAdded
	default:
		return types.StatusModified
	}
}

// Commits fetches the commits of a PR. Commits whose author has no GitHub account
// carry an empty login.
func (c *Client) Commits(ctx context.Context, owner, repo string, number int) ([]types.Commit, error) {
	var commits []types.Commit
	for page := 1; ; page++ {
		var batch []struct {
			Author *login `json:"author"`
		}
		apiURL := c.repoURL(owner, repo, "/pulls/%d/commits?per_page=%d&page=%d", number, perPageLimit, page)
		if err := c.getJSON(ctx, apiURL, owner, repo, &batch); err != nil {
			return nil, err
		}
		for _, cm := range batch {
			var author string
			if cm.Author != nil {
				author = cm.Author.Login
			}
			commits = append(commits, types.NewCommit(author))
		}
		if len(batch) < perPageLimit {
			return commits, nil
		}
	}
}

// RequestReviewers asks GitHub to request reviews from logins on a PR.
func (c *Client) RequestReviewers(ctx context.Context, owner, repo string, number int, reviewers []string) error {
	apiURL := c.repoURL(owner, repo, "/pulls/%d/requested_reviewers", number)
	resp, err := c.doRequest(ctx, http.MethodPost, apiURL, owner, repo, map[string]any{"reviewers": reviewers}) //nolint:bodyclose // closed below
	if err != nil {
		return fmt.Errorf("failed to request reviewers: %w", err)
	}
	defer c.drainAndCloseBody(resp.Body)

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("failed to request reviewers: %w", statusError(resp))
	}
	c.logger.InfoContext(ctx, "Requested reviewers on PR", "owner", owner, "repo", repo, "pr", number, "reviewers", reviewers)
	return nil
}

func logins(ls []login) []string {
	out := make([]string, 0, len(ls))
	for _, l := range ls {
		out = append(out, l.Login)
	}
	return out
}

package github

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codeGROOVE-dev/pull-review/pkg/cache"
	"github.com/codeGROOVE-dev/pull-review/pkg/types"
)

const blameQuery = `query blame($owner: String!, $repo: String!, $ref: String!, $path: String!) {
  repository(owner: $owner, name: $repo) {
    object(expression: $ref) {
      ... on Commit {
        blame(path: $path) {
          ranges {
            startingLine
            endingLine
            age
            commit {
              author {
                user { login }
              }
            }
          }
        }
      }
    }
  }
}`

// mutableRefTTL bounds how long blame at a branch name (rather than a commit SHA) is reused.
const mutableRefTTL = 10 * time.Minute

type blameRange struct {
	Commit struct {
		Author struct {
			User *login `json:"user"`
		} `json:"author"`
	} `json:"commit"`
	StartingLine int `json:"startingLine"`
	EndingLine   int `json:"endingLine"`
	Age          int `json:"age"`
}

// Blame returns one entry per blame range of path at ref. Lines whose commit author
// has no GitHub account are skipped. Age is GitHub's recency bucket, 1 (newest) to 10.
func (c *Client) Blame(ctx context.Context, owner, repo, ref, path string) ([]types.BlameEntry, error) {
	var data struct {
		Repository *struct {
			Object *struct {
				Blame *struct {
					Ranges []blameRange `json:"ranges"`
				} `json:"blame"`
			} `json:"object"`
		} `json:"repository"`
	}
	vars := map[string]any{"owner": owner, "repo": repo, "ref": ref, "path": path}
	if err := c.graphQL(ctx, owner, repo, blameQuery, vars, &data); err != nil {
		return nil, fmt.Errorf("blame %s@%s: %w", path, ref, err)
	}
	if data.Repository == nil || data.Repository.Object == nil || data.Repository.Object.Blame == nil {
		return nil, fmt.Errorf("blame %s@%s: %w", path, ref, ErrNotFound)
	}

	ranges := data.Repository.Object.Blame.Ranges
	entries := make([]types.BlameEntry, 0, len(ranges))
	for _, r := range ranges {
		if r.Commit.Author.User == nil || r.Commit.Author.User.Login == "" {
			continue
		}
		entries = append(entries, types.BlameEntry{
			Login: r.Commit.Author.User.Login,
			Count: types.Int(r.EndingLine - r.StartingLine + 1),
			Age:   types.Int(r.Age),
		})
	}
	c.logger.DebugContext(ctx, "Fetched blame", "component", "api", "path", path, "ref", ref, "ranges", len(ranges), "entries", len(entries))
	return entries, nil
}

// BlameSource looks up blame for changed files at a fixed ref of one repository.
// It satisfies reviewer.BlameSource.
type BlameSource struct {
	client *Client
	store  cache.Store[[]types.BlameEntry]
	owner  string
	repo   string
	ref    string
}

// BlameSource returns a blame source for owner/repo at ref, memoized in store.
// A nil store disables memoization.
func (c *Client) BlameSource(owner, repo, ref string, store cache.Store[[]types.BlameEntry]) *BlameSource {
	return &BlameSource{client: c, store: store, owner: owner, repo: repo, ref: ref}
}

// BlameForFile returns the blame of file at the source's ref. Added files and
// files missing at that ref have no history and yield no entries. Renamed files
// are looked up under their previous path.
func (b *BlameSource) BlameForFile(ctx context.Context, file types.ChangedFile) ([]types.BlameEntry, error) {
	status, _ := types.ParseFileStatus(file.Status)
	if status == types.StatusAdded {
		return nil, nil
	}
	path := file.Filename
	if status == types.StatusRenamed && file.PreviousFilename != "" {
		path = file.PreviousFilename
	}

	key := fmt.Sprintf("blame:%s/%s@%s:%s", b.owner, b.repo, b.ref, path)
	if b.store != nil {
		if entries, ok := b.store.Get(key); ok {
			return entries, nil
		}
	}

	entries, err := b.client.Blame(ctx, b.owner, b.repo, b.ref, path)
	if errors.Is(err, ErrNotFound) {
		b.client.logger.DebugContext(ctx, "No blame at base ref", "path", path, "ref", b.ref)
		entries, err = []types.BlameEntry{}, nil
	}
	if err != nil {
		return nil, err
	}

	if b.store != nil {
		ttl := cache.TTLBlame
		if !isCommitSHA(b.ref) {
			ttl = mutableRefTTL
		}
		b.store.SetWithTTL(key, entries, ttl)
	}
	return entries, nil
}

func isCommitSHA(ref string) bool {
	if len(ref) != 40 {
		return false
	}
	for _, r := range ref {
		if (r < 'a' || r > 'f') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

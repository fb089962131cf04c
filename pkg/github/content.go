package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// RepoFile returns the contents of path at ref. A missing file yields an error wrapping ErrNotFound.
func (c *Client) RepoFile(ctx context.Context, owner, repo, ref, path string) ([]byte, error) {
	escaped := make([]string, 0, strings.Count(path, "/")+1)
	for _, seg := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		escaped = append(escaped, url.PathEscape(seg))
	}
	apiURL := c.repoURL(owner, repo, "/contents/%s", strings.Join(escaped, "/"))
	if ref != "" {
		apiURL += "?ref=" + url.QueryEscape(ref)
	}

	var data struct {
		Type     string `json:"type"`
		Encoding string `json:"encoding"`
		Content  string `json:"content"`
	}
	if err := c.getJSON(ctx, apiURL, owner, repo, &data); err != nil {
		return nil, err
	}
	if data.Type != "file" {
		return nil, fmt.Errorf("%s is a %s, not a file", path, data.Type)
	}
	if data.Encoding != "base64" {
		return nil, fmt.Errorf("%s: unsupported content encoding %q", path, data.Encoding)
	}
	// GitHub wraps the base64 payload at 60 columns.
	out, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(data.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return out, nil
}

package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	maxQuerySize        = 100000
	maxGraphQLVarLength = 10000
	maxGitHubNameLength = 100
)

type graphQLError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// graphQL runs a query against owner/repo's installation and decodes its data into v.
func (c *Client) graphQL(ctx context.Context, owner, repo, query string, variables map[string]any, v any) error {
	if err := validateGraphQLVariables(variables); err != nil {
		return fmt.Errorf("invalid GraphQL variables: %w", err)
	}
	if len(query) > maxQuerySize {
		return fmt.Errorf("GraphQL query too large: %d chars (max %d)", len(query), maxQuerySize)
	}

	queryType := queryName(query)
	start := time.Now()
	payload := map[string]any{"query": query, "variables": variables}
	resp, err := c.doRequest(ctx, http.MethodPost, c.graphQLURL(), owner, repo, payload) //nolint:bodyclose // closed below
	if err != nil {
		return fmt.Errorf("graphql %s: %w", queryType, err)
	}
	defer c.drainAndCloseBody(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graphql %s: %w", queryType, statusError(resp))
	}

	var result struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode GraphQL response: %w", err)
	}
	if len(result.Errors) > 0 {
		c.logger.ErrorContext(ctx, "GraphQL query returned errors", "type", queryType, "errors", result.Errors)
		for _, e := range result.Errors {
			if e.Type == "NOT_FOUND" {
				return fmt.Errorf("graphql %s: %s: %w", queryType, e.Message, ErrNotFound)
			}
		}
		msgs := make([]string, len(result.Errors))
		for i, e := range result.Errors {
			msgs[i] = e.Message
		}
		return fmt.Errorf("graphql %s errors: %s", queryType, strings.Join(msgs, "; "))
	}
	if err := json.Unmarshal(result.Data, v); err != nil {
		return fmt.Errorf("failed to decode GraphQL data: %w", err)
	}

	c.logger.DebugContext(ctx, "GraphQL query completed", "component", "graphql", "type", queryType, "duration", time.Since(start))
	return nil
}

func (c *Client) graphQLURL() string {
	if c.apiBase == defaultAPIBase {
		return defaultAPIBase + "/graphql"
	}
	// GitHub Enterprise serves REST under /api/v3 and GraphQL under /api/graphql.
	return strings.TrimSuffix(c.apiBase, "/v3") + "/graphql"
}

// validateGraphQLVariables validates GraphQL variables to prevent injection.
func validateGraphQLVariables(variables map[string]any) error {
	for key, value := range variables {
		if strings.ContainsAny(key, "{}[]\"'\n\r\t") {
			return fmt.Errorf("invalid character in variable key: %s", key)
		}
		str, ok := value.(string)
		if !ok {
			continue
		}
		if strings.Contains(str, "__schema") || strings.Contains(str, "__type") {
			return errors.New("introspection queries not allowed in variables")
		}
		if len(str) > maxGraphQLVarLength {
			return fmt.Errorf("variable value too long: %d chars", len(str))
		}
		if key == "owner" || key == "repo" {
			if str == "" || len(str) > maxGitHubNameLength || strings.ContainsAny(str, "/\\\n\r\x00") || strings.Contains(str, "..") {
				return fmt.Errorf("invalid GitHub name in variable %s: %q", key, str)
			}
		}
	}
	return nil
}

// queryName returns the operation name of a query, for logs.
func queryName(query string) string {
	q := strings.TrimSpace(query)
	for _, prefix := range []string{"query ", "mutation "} {
		if rest, ok := strings.CutPrefix(q, prefix); ok {
			if i := strings.IndexAny(rest, "({ "); i > 0 {
				return rest[:i]
			}
		}
	}
	return "anonymous"
}

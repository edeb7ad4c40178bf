package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/TommyBez/v0-hub/internal/domain"
)

const (
	branchPageSize = 100
	// maxBranchPages bounds worst-case work against a misbehaving directory
	// on the REST fallback: 50 pages x 100 entries = 5000 branches.
	maxBranchPages = 50
)

// GitHubClient queries the repository directory for branch and commit
// metadata. With a token it talks GraphQL; without one it falls back to the
// unauthenticated REST API.
type GitHubClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewGitHubClient creates a new directory client. baseURL is the API root,
// e.g. https://api.github.com.
func NewGitHubClient(baseURL, token string) *GitHubClient {
	return &GitHubClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// DefaultBranch resolves a repository's default branch and its head commit.
// It fails with domain.ErrRepositoryNotFound when the repository or its
// default branch ref does not exist (e.g. an empty repository).
func (c *GitHubClient) DefaultBranch(ctx context.Context, repo domain.RepositoryRef) (domain.DefaultBranchInfo, error) {
	if c.token == "" {
		return c.defaultBranchREST(ctx, repo)
	}

	const query = `query($owner:String!,$name:String!){repository(owner:$owner,name:$name){defaultBranchRef{name target{oid}}}}`

	var result struct {
		Repository *struct {
			DefaultBranchRef *struct {
				Name   string `json:"name"`
				Target *struct {
					OID string `json:"oid"`
				} `json:"target"`
			} `json:"defaultBranchRef"`
		} `json:"repository"`
	}
	if err := c.graphql(ctx, query, map[string]any{"owner": repo.Owner, "name": repo.Name}, &result); err != nil {
		return domain.DefaultBranchInfo{}, err
	}

	if result.Repository == nil || result.Repository.DefaultBranchRef == nil {
		return domain.DefaultBranchInfo{}, domain.ErrRepositoryNotFound
	}
	ref := result.Repository.DefaultBranchRef
	if ref.Target == nil || ref.Target.OID == "" {
		return domain.DefaultBranchInfo{}, domain.ErrRepositoryNotFound
	}

	return domain.DefaultBranchInfo{
		DefaultBranchName: ref.Name,
		DefaultCommit:     ref.Target.OID,
	}, nil
}

// BranchCommit resolves a named branch's head commit. A missing branch is
// reported as an empty commit with a nil error; callers treat it as a signal
// to redirect to branch selection, not as a failure.
func (c *GitHubClient) BranchCommit(ctx context.Context, repo domain.RepositoryRef, branch string) (string, error) {
	if c.token == "" {
		return c.branchCommitREST(ctx, repo, branch)
	}

	const query = `query($owner:String!,$name:String!,$ref:String!){repository(owner:$owner,name:$name){ref(qualifiedName:$ref){target{oid}}}}`

	var result struct {
		Repository *struct {
			Ref *struct {
				Target *struct {
					OID string `json:"oid"`
				} `json:"target"`
			} `json:"ref"`
		} `json:"repository"`
	}
	vars := map[string]any{
		"owner": repo.Owner,
		"name":  repo.Name,
		"ref":   "refs/heads/" + branch,
	}
	if err := c.graphql(ctx, query, vars, &result); err != nil {
		return "", err
	}

	if result.Repository == nil {
		return "", domain.ErrRepositoryNotFound
	}
	if result.Repository.Ref == nil || result.Repository.Ref.Target == nil {
		return "", nil
	}
	return result.Repository.Ref.Target.OID, nil
}

// ListBranches enumerates every branch name via cursor pagination, trusting
// the directory's hasNextPage flag for termination. Names are deduplicated
// and kept in the order the directory emitted them. The default branch name
// is captured only from the first page's metadata block.
func (c *GitHubClient) ListBranches(ctx context.Context, repo domain.RepositoryRef) (domain.BranchList, error) {
	if c.token == "" {
		return c.listBranchesREST(ctx, repo)
	}

	const query = `query($owner:String!,$name:String!,$cursor:String){repository(owner:$owner,name:$name){defaultBranchRef{name} refs(refPrefix:"refs/heads/",first:100,after:$cursor){nodes{name} pageInfo{hasNextPage endCursor}}}}`

	var (
		list   domain.BranchList
		seen   = map[string]bool{}
		cursor *string
	)

	for page := 0; ; page++ {
		var result struct {
			Repository *struct {
				DefaultBranchRef *struct {
					Name string `json:"name"`
				} `json:"defaultBranchRef"`
				Refs struct {
					Nodes []struct {
						Name string `json:"name"`
					} `json:"nodes"`
					PageInfo struct {
						HasNextPage bool    `json:"hasNextPage"`
						EndCursor   *string `json:"endCursor"`
					} `json:"pageInfo"`
				} `json:"refs"`
			} `json:"repository"`
		}
		vars := map[string]any{"owner": repo.Owner, "name": repo.Name, "cursor": cursor}
		if err := c.graphql(ctx, query, vars, &result); err != nil {
			return domain.BranchList{}, err
		}
		if result.Repository == nil {
			return domain.BranchList{}, domain.ErrRepositoryNotFound
		}

		if page == 0 && result.Repository.DefaultBranchRef != nil {
			list.DefaultBranch = result.Repository.DefaultBranchRef.Name
		}
		for _, node := range result.Repository.Refs.Nodes {
			if !seen[node.Name] {
				seen[node.Name] = true
				list.Branches = append(list.Branches, node.Name)
			}
		}

		info := result.Repository.Refs.PageInfo
		if !info.HasNextPage || len(result.Repository.Refs.Nodes) == 0 {
			return list, nil
		}
		// endCursor is opaque; pass it back verbatim.
		cursor = info.EndCursor
	}
}

// graphql posts a query and decodes data into out, classifying directory
// errors into the domain taxonomy.
func (c *GitHubClient) graphql(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/graphql", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return domain.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: unexpected status code: %d, body: %s", domain.ErrUpstream, resp.StatusCode, string(respBody))
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", domain.ErrUpstream, err)
	}

	for _, gqlErr := range envelope.Errors {
		switch {
		case gqlErr.Type == "NOT_FOUND":
			return domain.ErrRepositoryNotFound
		case isRateLimitError(gqlErr.Type, gqlErr.Message):
			return domain.ErrRateLimited
		}
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrUpstream, envelope.Errors[0].Message)
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("%w: failed to decode data: %v", domain.ErrUpstream, err)
	}
	return nil
}

// isRateLimitError classifies a directory error as quota exhaustion. The
// message wording is not contractually guaranteed, so the substring match may
// silently misfire if the upstream changes it; the structured type is checked
// first and the fallback is kept in this one place.
func isRateLimitError(errType, message string) bool {
	if errType == "RATE_LIMITED" {
		return true
	}
	return strings.Contains(strings.ToLower(message), "rate limit")
}

// REST fallback for unauthenticated use.

func (c *GitHubClient) defaultBranchREST(ctx context.Context, repo domain.RepositoryRef) (domain.DefaultBranchInfo, error) {
	var meta struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := c.rest(ctx, fmt.Sprintf("/repos/%s/%s", repo.Owner, repo.Name), &meta); err != nil {
		return domain.DefaultBranchInfo{}, err
	}
	if meta.DefaultBranch == "" {
		return domain.DefaultBranchInfo{}, domain.ErrRepositoryNotFound
	}

	commit, err := c.branchCommitREST(ctx, repo, meta.DefaultBranch)
	if err != nil {
		return domain.DefaultBranchInfo{}, err
	}
	if commit == "" {
		// Default branch ref missing: empty repository.
		return domain.DefaultBranchInfo{}, domain.ErrRepositoryNotFound
	}

	return domain.DefaultBranchInfo{DefaultBranchName: meta.DefaultBranch, DefaultCommit: commit}, nil
}

func (c *GitHubClient) branchCommitREST(ctx context.Context, repo domain.RepositoryRef, branch string) (string, error) {
	var result struct {
		Commit struct {
			SHA string `json:"sha"`
		} `json:"commit"`
	}
	err := c.rest(ctx, fmt.Sprintf("/repos/%s/%s/branches/%s", repo.Owner, repo.Name, branch), &result)
	if err != nil {
		// The branches endpoint 404s for a missing branch as well as for a
		// missing repository; probe the repository to tell them apart.
		if errors.Is(err, domain.ErrRepositoryNotFound) {
			var meta struct {
				DefaultBranch string `json:"default_branch"`
			}
			if repoErr := c.rest(ctx, fmt.Sprintf("/repos/%s/%s", repo.Owner, repo.Name), &meta); repoErr == nil {
				return "", nil
			}
		}
		return "", err
	}
	return result.Commit.SHA, nil
}

func (c *GitHubClient) listBranchesREST(ctx context.Context, repo domain.RepositoryRef) (domain.BranchList, error) {
	var meta struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := c.rest(ctx, fmt.Sprintf("/repos/%s/%s", repo.Owner, repo.Name), &meta); err != nil {
		return domain.BranchList{}, err
	}

	list := domain.BranchList{DefaultBranch: meta.DefaultBranch}
	seen := map[string]bool{}

	for page := 1; page <= maxBranchPages; page++ {
		var nodes []struct {
			Name string `json:"name"`
		}
		path := fmt.Sprintf("/repos/%s/%s/branches?per_page=%d&page=%d", repo.Owner, repo.Name, branchPageSize, page)
		if err := c.rest(ctx, path, &nodes); err != nil {
			return domain.BranchList{}, err
		}
		for _, node := range nodes {
			if !seen[node.Name] {
				seen[node.Name] = true
				list.Branches = append(list.Branches, node.Name)
			}
		}
		if len(nodes) < branchPageSize {
			break
		}
	}
	return list, nil
}

func (c *GitHubClient) rest(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrRepositoryNotFound
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: unexpected status code: %d, body: %s", domain.ErrUpstream, resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", domain.ErrUpstream, err)
	}
	return nil
}

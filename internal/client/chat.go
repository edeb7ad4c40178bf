package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/TommyBez/v0-hub/internal/domain"
)

// ChatClient talks to the chat-creation API. The same code path serves both
// the system-wide key and a user's own key; only the bearer token differs.
type ChatClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewChatClient creates a new chat service client. baseURL is the API root,
// e.g. https://api.v0.dev/v1.
func NewChatClient(baseURL string) *ChatClient {
	return &ChatClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second, // chat creation can be slow
		},
	}
}

// CreateChatRequest is the chat-creation contract input.
type CreateChatRequest struct {
	RepositoryURL string
	Branch        string
	Credential    domain.Credential
	Privacy       bool
}

// CreateChat creates a new chat session scoped to a repository and branch.
func (c *ChatClient) CreateChat(ctx context.Context, req CreateChatRequest) (*domain.ChatSession, error) {
	privacy := "public"
	if req.Privacy {
		privacy = "private"
	}
	body := map[string]any{
		"repositoryUrl": req.RepositoryURL,
		"branch":        req.Branch,
		"privacy":       privacy,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chats", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.Credential.Token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to execute request: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: unexpected status code: %d, body: %s", domain.ErrUpstream, resp.StatusCode, string(respBody))
	}

	var result struct {
		ID   string `json:"id"`
		URL  string `json:"url"`
		Demo string `json:"demo"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrUpstream, err)
	}
	if result.URL == "" {
		return nil, fmt.Errorf("%w: chat service returned no url", domain.ErrUpstream)
	}

	return &domain.ChatSession{
		ID:      result.ID,
		URL:     result.URL,
		DemoURL: result.Demo,
	}, nil
}

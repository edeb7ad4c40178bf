package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/TommyBez/v0-hub/internal/domain"
)

func TestCreateChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chats" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer user-key" {
			t.Errorf("unexpected authorization header: %s", got)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		if body["repositoryUrl"] != "https://github.com/octocat/Hello-World" {
			t.Errorf("unexpected repositoryUrl: %v", body["repositoryUrl"])
		}
		if body["branch"] != "release/1.0" {
			t.Errorf("unexpected branch: %v", body["branch"])
		}
		if body["privacy"] != "private" {
			t.Errorf("unexpected privacy: %v", body["privacy"])
		}

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"chat-123","url":"https://v0.dev/chat/chat-123","demo":"https://demo.example"}`)
	}))
	t.Cleanup(server.Close)

	c := NewChatClient(server.URL)
	session, err := c.CreateChat(context.Background(), CreateChatRequest{
		RepositoryURL: "https://github.com/octocat/Hello-World",
		Branch:        "release/1.0",
		Credential:    domain.Credential{Kind: domain.CredentialUser, Token: "user-key"},
		Privacy:       true,
	})
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	if session.ID != "chat-123" || session.URL != "https://v0.dev/chat/chat-123" || session.DemoURL != "https://demo.example" {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestCreateChatPublicDefaults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["privacy"] != "public" {
			t.Errorf("unexpected privacy: %v", body["privacy"])
		}
		fmt.Fprint(w, `{"id":"chat-1","url":"https://v0.dev/chat/chat-1"}`)
	}))
	t.Cleanup(server.Close)

	c := NewChatClient(server.URL)
	session, err := c.CreateChat(context.Background(), CreateChatRequest{
		RepositoryURL: "https://github.com/octocat/Hello-World",
		Branch:        "master",
		Credential:    domain.Credential{Kind: domain.CredentialSystem, Token: "system-key"},
	})
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	if session.DemoURL != "" {
		t.Fatalf("expected empty demo url, got %s", session.DemoURL)
	}
}

func TestCreateChatErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":"slow down"}`, domain.ErrRateLimited},
		{"server error", http.StatusInternalServerError, `boom`, domain.ErrUpstream},
		{"missing url", http.StatusOK, `{"id":"chat-1"}`, domain.ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			t.Cleanup(server.Close)

			c := NewChatClient(server.URL)
			_, err := c.CreateChat(context.Background(), CreateChatRequest{
				RepositoryURL: "https://github.com/octocat/Hello-World",
				Branch:        "master",
				Credential:    domain.Credential{Kind: domain.CredentialSystem, Token: "system-key"},
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

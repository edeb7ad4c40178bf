package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/TommyBez/v0-hub/internal/cache"
	"github.com/TommyBez/v0-hub/internal/client"
	"github.com/TommyBez/v0-hub/internal/domain"
	"github.com/TommyBez/v0-hub/internal/storage"
	"github.com/TommyBez/v0-hub/pkg/logger"
)

// BranchResolver answers branch/commit questions with read-through caching.
type BranchResolver interface {
	ResolveDefaultBranch(ctx context.Context, repo domain.RepositoryRef) (domain.DefaultBranchInfo, error)
	ResolveBranchCommit(ctx context.Context, repo domain.RepositoryRef, branch string) (string, error)
	ListBranches(ctx context.Context, repo domain.RepositoryRef) (domain.BranchList, error)
}

// ChatCreator creates chat sessions on the remote chat service.
type ChatCreator interface {
	CreateChat(ctx context.Context, req client.CreateChatRequest) (*domain.ChatSession, error)
}

// Service is the resolution orchestrator: given a repository and branch it
// answers with a chat URL to redirect to, enforcing cache-before-create
// semantics on the public path.
type Service struct {
	resolver  BranchResolver
	chat      ChatCreator
	cache     cache.Cache
	tokens    storage.TokenStore
	systemKey string
}

func NewService(resolver BranchResolver, chat ChatCreator, c cache.Cache, tokens storage.TokenStore, systemKey string) *Service {
	return &Service{
		resolver:  resolver,
		chat:      chat,
		cache:     c,
		tokens:    tokens,
		systemKey: systemKey,
	}
}

// ResolveChat runs the per-request state machine: normalize identity, take
// the private short-circuit when it applies, otherwise resolve the commit,
// reuse a cached chat or create one.
func (s *Service) ResolveChat(ctx context.Context, req domain.ChatRequest) (*domain.Resolution, error) {
	log := logger.FromContext(ctx)

	repo, err := domain.ParseRepositoryURL(req.RepositoryURL)
	if err != nil {
		return nil, err
	}
	branch := req.Branch()
	if branch == "" {
		return nil, fmt.Errorf("%w: branch is required", domain.ErrInvalidRequest)
	}
	repoURL := repo.URL()

	userToken, err := s.userToken(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	// Private path: a chat made with a user's key is scoped to that key,
	// so the shared commit-keyed cache does not apply. A stored key counts
	// as a standing privacy request.
	if req.Privacy || userToken != "" {
		cred, err := ResolveCredential(true, userToken, s.systemKey)
		if err != nil {
			return nil, err
		}
		session, err := s.chat.CreateChat(ctx, client.CreateChatRequest{
			RepositoryURL: repoURL,
			Branch:        branch,
			Credential:    cred,
			Privacy:       req.Privacy,
		})
		if err != nil {
			return nil, err
		}
		log.Info(ctx, "private chat created",
			zap.String("repo", repo.String()),
			zap.String("branch", branch),
		)
		return &domain.Resolution{Kind: domain.ResolutionRedirect, RedirectURL: session.URL, DemoURL: session.DemoURL}, nil
	}

	// Public path: pin the chat to a commit so identical requests within
	// the TTL window reuse one session.
	commit := req.Commit
	if commit == "" {
		commit, err = s.resolver.ResolveBranchCommit(ctx, repo, branch)
		if err != nil {
			return nil, err
		}
		if commit == "" {
			// Branch does not exist: send the user to branch selection.
			log.Info(ctx, "branch not found, redirecting to selection",
				zap.String("repo", repo.String()),
				zap.String("branch", branch),
			)
			return &domain.Resolution{
				Kind:        domain.ResolutionBranchSelection,
				RedirectURL: fmt.Sprintf("/%s/%s", repo.Owner, repo.Name),
			}, nil
		}
	}

	chatKey := cache.ChatKey(repoURL, branch, commit)
	if url, ok, err := s.cache.Get(ctx, chatKey); err == nil && ok {
		return &domain.Resolution{Kind: domain.ResolutionRedirect, RedirectURL: url}, nil
	} else if err != nil {
		log.Warn(ctx, "cache read failed", zap.String("key", chatKey), zap.Error(err))
	}

	cred, err := ResolveCredential(false, "", s.systemKey)
	if err != nil {
		return nil, err
	}
	session, err := s.chat.CreateChat(ctx, client.CreateChatRequest{
		RepositoryURL: repoURL,
		Branch:        branch,
		Credential:    cred,
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, chatKey, session.URL, cache.LookupTTL); err != nil {
		// Best-effort: the chat is still usable for this request.
		log.Warn(ctx, "cache write failed", zap.String("key", chatKey), zap.Error(err))
	}
	log.Info(ctx, "chat created",
		zap.String("repo", repo.String()),
		zap.String("branch", branch),
		zap.String("commit", commit),
	)
	return &domain.Resolution{Kind: domain.ResolutionRedirect, RedirectURL: session.URL, DemoURL: session.DemoURL}, nil
}

// ResolveRepository handles a bare owner/name request: resolve the default
// branch and its commit, then point the caller at the tree URL for it. When
// the repository (or its default branch) cannot be resolved the outcome is
// branch selection, not an error.
func (s *Service) ResolveRepository(ctx context.Context, repo domain.RepositoryRef) (*domain.Resolution, error) {
	info, err := s.resolver.ResolveDefaultBranch(ctx, repo)
	if errors.Is(err, domain.ErrRepositoryNotFound) {
		return &domain.Resolution{Kind: domain.ResolutionBranchSelection}, nil
	}
	if err != nil {
		return nil, err
	}

	return &domain.Resolution{
		Kind: domain.ResolutionRedirect,
		RedirectURL: fmt.Sprintf("/%s/%s/tree/%s?commit=%s",
			repo.Owner, repo.Name, info.DefaultBranchName, info.DefaultCommit),
	}, nil
}

// ListBranches returns the repository's full branch enumeration.
func (s *Service) ListBranches(ctx context.Context, rawURL string) (domain.BranchList, error) {
	repo, err := domain.ParseRepositoryURL(rawURL)
	if err != nil {
		return domain.BranchList{}, err
	}
	return s.resolver.ListBranches(ctx, repo)
}

// ValidateRepository reports whether a URL names a reachable repository. The
// verdict is cached without expiry.
func (s *Service) ValidateRepository(ctx context.Context, rawURL string) (bool, error) {
	log := logger.FromContext(ctx)
	key := cache.ValidationKey(rawURL)

	if v, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		return v == "true", nil
	} else if err != nil {
		log.Warn(ctx, "cache read failed", zap.String("key", key), zap.Error(err))
	}

	valid := false
	repo, err := domain.ParseRepositoryURL(rawURL)
	if err == nil {
		_, err := s.resolver.ResolveDefaultBranch(ctx, repo)
		switch {
		case err == nil:
			valid = true
		case errors.Is(err, domain.ErrRepositoryNotFound):
			// stays invalid
		default:
			// Transient upstream trouble: don't cache a verdict.
			return false, err
		}
	}

	verdict := "false"
	if valid {
		verdict = "true"
	}
	if err := s.cache.Set(ctx, key, verdict, 0); err != nil {
		log.Warn(ctx, "cache write failed", zap.String("key", key), zap.Error(err))
	}
	return valid, nil
}

// SaveToken stores the user's chat API key.
func (s *Service) SaveToken(ctx context.Context, userID, token string) error {
	if token == "" {
		return fmt.Errorf("%w: token is required", domain.ErrInvalidRequest)
	}
	return s.tokens.Save(ctx, userID, token)
}

// DeleteToken removes the user's chat API key.
func (s *Service) DeleteToken(ctx context.Context, userID string) error {
	return s.tokens.Delete(ctx, userID)
}

// HasToken reports whether the user has a key on file.
func (s *Service) HasToken(ctx context.Context, userID string) (bool, error) {
	return s.tokens.Has(ctx, userID)
}

// userToken loads the caller's stored key, treating "none" as empty rather
// than an error: whether that matters depends on the privacy flag.
func (s *Service) userToken(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", nil
	}
	token, err := s.tokens.Get(ctx, userID)
	if errors.Is(err, domain.ErrNoTokenConfigured) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

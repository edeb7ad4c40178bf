package resolver

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/TommyBez/v0-hub/internal/cache"
	"github.com/TommyBez/v0-hub/internal/domain"
	"github.com/TommyBez/v0-hub/pkg/logger"
)

// Directory is the remote service exposing repository/branch/commit metadata.
type Directory interface {
	DefaultBranch(ctx context.Context, repo domain.RepositoryRef) (domain.DefaultBranchInfo, error)
	BranchCommit(ctx context.Context, repo domain.RepositoryRef, branch string) (string, error)
	ListBranches(ctx context.Context, repo domain.RepositoryRef) (domain.BranchList, error)
}

// Resolver answers branch and commit questions, memoizing directory lookups
// in the shared cache for an hour. Callers always go through the resolver;
// it owns the read-through discipline.
type Resolver struct {
	directory Directory
	cache     cache.Cache
}

func NewResolver(directory Directory, c cache.Cache) *Resolver {
	return &Resolver{
		directory: directory,
		cache:     c,
	}
}

// ResolveDefaultBranch resolves a repository's default branch and head
// commit. Only genuinely successful resolutions are cached; a miss or
// failure never leaves a partial entry behind.
func (r *Resolver) ResolveDefaultBranch(ctx context.Context, repo domain.RepositoryRef) (domain.DefaultBranchInfo, error) {
	log := logger.FromContext(ctx)
	key := cache.DefaultBranchInfoKey(repo.Owner, repo.Name)

	if raw, ok, err := r.cache.Get(ctx, key); err == nil && ok {
		var info domain.DefaultBranchInfo
		if err := json.Unmarshal([]byte(raw), &info); err == nil {
			return info, nil
		}
		log.Warn(ctx, "discarding undecodable cache entry", zap.String("key", key))
	} else if err != nil {
		log.Warn(ctx, "cache read failed", zap.String("key", key), zap.Error(err))
	}

	info, err := r.directory.DefaultBranch(ctx, repo)
	if err != nil {
		return domain.DefaultBranchInfo{}, err
	}

	if payload, err := json.Marshal(info); err == nil {
		if err := r.cache.Set(ctx, key, string(payload), cache.LookupTTL); err != nil {
			log.Warn(ctx, "cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return info, nil
}

// ResolveBranchCommit resolves a named branch's head commit. A missing
// branch yields an empty commit with a nil error and is never cached.
func (r *Resolver) ResolveBranchCommit(ctx context.Context, repo domain.RepositoryRef, branch string) (string, error) {
	log := logger.FromContext(ctx)
	key := cache.CommitKey(branch, repo.Owner, repo.Name)

	if commit, ok, err := r.cache.Get(ctx, key); err == nil && ok {
		return commit, nil
	} else if err != nil {
		log.Warn(ctx, "cache read failed", zap.String("key", key), zap.Error(err))
	}

	commit, err := r.directory.BranchCommit(ctx, repo, branch)
	if err != nil {
		return "", err
	}
	if commit == "" {
		return "", nil
	}

	if err := r.cache.Set(ctx, key, commit, cache.LookupTTL); err != nil {
		log.Warn(ctx, "cache write failed", zap.String("key", key), zap.Error(err))
	}
	return commit, nil
}

// ListBranches passes through to the directory. Branch lists are not
// memoized: selection pages want the live set.
func (r *Resolver) ListBranches(ctx context.Context, repo domain.RepositoryRef) (domain.BranchList, error) {
	return r.directory.ListBranches(ctx, repo)
}

package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/TommyBez/v0-hub/internal/cache"
	"github.com/TommyBez/v0-hub/internal/domain"
)

type fakeDirectory struct {
	defaultBranchCalls int
	branchCommitCalls  int
	listBranchesCalls  int

	info    domain.DefaultBranchInfo
	infoErr error
	commit  string
	list    domain.BranchList
}

func (f *fakeDirectory) DefaultBranch(ctx context.Context, repo domain.RepositoryRef) (domain.DefaultBranchInfo, error) {
	f.defaultBranchCalls++
	return f.info, f.infoErr
}

func (f *fakeDirectory) BranchCommit(ctx context.Context, repo domain.RepositoryRef, branch string) (string, error) {
	f.branchCommitCalls++
	return f.commit, nil
}

func (f *fakeDirectory) ListBranches(ctx context.Context, repo domain.RepositoryRef) (domain.BranchList, error) {
	f.listBranchesCalls++
	return f.list, nil
}

// faultyCache fails every operation, standing in for an unreachable Redis.
type faultyCache struct{}

func (faultyCache) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, errors.New("cache unavailable")
}

func (faultyCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return errors.New("cache unavailable")
}

var testRepo = domain.RepositoryRef{Owner: "octocat", Name: "Hello-World"}

func TestResolveDefaultBranchCachesResult(t *testing.T) {
	dir := &fakeDirectory{info: domain.DefaultBranchInfo{DefaultBranchName: "master", DefaultCommit: "abc123"}}
	r := NewResolver(dir, cache.NewMemoryCache())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		info, err := r.ResolveDefaultBranch(ctx, testRepo)
		if err != nil {
			t.Fatalf("ResolveDefaultBranch: %v", err)
		}
		if info.DefaultBranchName != "master" || info.DefaultCommit != "abc123" {
			t.Fatalf("unexpected info: %+v", info)
		}
	}

	if dir.defaultBranchCalls != 1 {
		t.Fatalf("expected 1 directory call, got %d", dir.defaultBranchCalls)
	}
}

func TestResolveDefaultBranchFailureNotCached(t *testing.T) {
	dir := &fakeDirectory{infoErr: domain.ErrRepositoryNotFound}
	r := NewResolver(dir, cache.NewMemoryCache())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := r.ResolveDefaultBranch(ctx, testRepo); !errors.Is(err, domain.ErrRepositoryNotFound) {
			t.Fatalf("expected ErrRepositoryNotFound, got %v", err)
		}
	}

	// Each attempt reaches the directory: failures never leave entries behind.
	if dir.defaultBranchCalls != 2 {
		t.Fatalf("expected 2 directory calls, got %d", dir.defaultBranchCalls)
	}
}

func TestResolveBranchCommitCachesResult(t *testing.T) {
	dir := &fakeDirectory{commit: "def456"}
	c := cache.NewMemoryCache()
	r := NewResolver(dir, c)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		commit, err := r.ResolveBranchCommit(ctx, testRepo, "release/1.0")
		if err != nil {
			t.Fatalf("ResolveBranchCommit: %v", err)
		}
		if commit != "def456" {
			t.Fatalf("unexpected commit: %s", commit)
		}
	}
	if dir.branchCommitCalls != 1 {
		t.Fatalf("expected 1 directory call, got %d", dir.branchCommitCalls)
	}

	// The entry lives under the documented key format.
	raw, ok, err := c.Get(ctx, "commit:release/1.0:octocat:Hello-World")
	if err != nil || !ok {
		t.Fatalf("expected cached commit entry, ok=%v err=%v", ok, err)
	}
	if raw != "def456" {
		t.Fatalf("unexpected cached value: %s", raw)
	}
}

func TestResolveBranchCommitMissingBranchNotCached(t *testing.T) {
	dir := &fakeDirectory{commit: ""}
	r := NewResolver(dir, cache.NewMemoryCache())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		commit, err := r.ResolveBranchCommit(ctx, testRepo, "gone")
		if err != nil {
			t.Fatalf("ResolveBranchCommit: %v", err)
		}
		if commit != "" {
			t.Fatalf("expected empty commit, got %s", commit)
		}
	}

	// A missing branch is re-checked every time; it may appear later.
	if dir.branchCommitCalls != 2 {
		t.Fatalf("expected 2 directory calls, got %d", dir.branchCommitCalls)
	}
}

func TestResolverSurvivesCacheFailure(t *testing.T) {
	dir := &fakeDirectory{
		info:   domain.DefaultBranchInfo{DefaultBranchName: "master", DefaultCommit: "abc123"},
		commit: "def456",
	}
	r := NewResolver(dir, faultyCache{})
	ctx := context.Background()

	// Resolution succeeds while both cache reads and writes fail; a read
	// error degrades to a miss, so every call reaches the directory.
	for i := 0; i < 2; i++ {
		info, err := r.ResolveDefaultBranch(ctx, testRepo)
		if err != nil {
			t.Fatalf("ResolveDefaultBranch: %v", err)
		}
		if info.DefaultBranchName != "master" || info.DefaultCommit != "abc123" {
			t.Fatalf("unexpected info: %+v", info)
		}

		commit, err := r.ResolveBranchCommit(ctx, testRepo, "master")
		if err != nil {
			t.Fatalf("ResolveBranchCommit: %v", err)
		}
		if commit != "def456" {
			t.Fatalf("unexpected commit: %s", commit)
		}
	}

	if dir.defaultBranchCalls != 2 || dir.branchCommitCalls != 2 {
		t.Fatalf("expected 2 directory calls each, got %d/%d", dir.defaultBranchCalls, dir.branchCommitCalls)
	}
}

func TestListBranchesNotMemoized(t *testing.T) {
	dir := &fakeDirectory{list: domain.BranchList{DefaultBranch: "main", Branches: []string{"main", "develop"}}}
	r := NewResolver(dir, cache.NewMemoryCache())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		list, err := r.ListBranches(ctx, testRepo)
		if err != nil {
			t.Fatalf("ListBranches: %v", err)
		}
		if len(list.Branches) != 2 {
			t.Fatalf("unexpected branches: %v", list.Branches)
		}
	}
	if dir.listBranchesCalls != 2 {
		t.Fatalf("expected 2 directory calls, got %d", dir.listBranchesCalls)
	}
}

package cache

import (
	"context"
	"fmt"
	"time"
)

// LookupTTL bounds how long resolved branch/commit lookups and chat URLs
// stay visible.
const LookupTTL = time.Hour

// Cache is a shared TTL-bounded key/value store. It is passed into the
// resolver and orchestrator as an explicit dependency so tests can substitute
// an in-memory implementation with a controllable clock.
//
// A miss is silent: Get returns ok=false, never an error, and callers
// re-resolve. Writes are best-effort; a failed Set must not abort the
// request that produced the value.
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Key formats are part of the external contract and must match exactly.

func DefaultBranchInfoKey(owner, name string) string {
	return fmt.Sprintf("default-branch-info:%s:%s", owner, name)
}

func CommitKey(branch, owner, name string) string {
	return fmt.Sprintf("commit:%s:%s:%s", branch, owner, name)
}

// ChatKey maps a (repository, branch, commit) triple to a chat URL. An empty
// commit yields a distinct key with a trailing separator; such a key is never
// promoted to a definite-commit key.
func ChatKey(repoURL, branch, commit string) string {
	return fmt.Sprintf("chat:%s:%s:%s", repoURL, branch, commit)
}

func ValidationKey(repoURL string) string {
	return fmt.Sprintf("repo-valid:%s", repoURL)
}

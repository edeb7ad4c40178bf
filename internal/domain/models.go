package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// repositoryURLPattern accepts canonical GitHub repository URLs, optionally
// with a ".git" suffix or a trailing slash. Anything else is rejected whole;
// a URL is never partially parsed.
var repositoryURLPattern = regexp.MustCompile(
	`^https://github\.com/([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+?)(?:\.git)?/?$`,
)

// RepositoryRef is the normalized identity of a GitHub repository.
type RepositoryRef struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// ParseRepositoryURL derives a RepositoryRef from a repository URL.
func ParseRepositoryURL(rawURL string) (RepositoryRef, error) {
	m := repositoryURLPattern.FindStringSubmatch(strings.TrimSpace(rawURL))
	if m == nil {
		return RepositoryRef{}, fmt.Errorf("%w: %q", ErrInvalidRepositoryURL, rawURL)
	}
	return RepositoryRef{Owner: m[1], Name: m[2]}, nil
}

// URL reconstructs the canonical repository URL. Parsing the result yields
// the same RepositoryRef.
func (r RepositoryRef) URL() string {
	return fmt.Sprintf("https://github.com/%s/%s", r.Owner, r.Name)
}

func (r RepositoryRef) String() string {
	return r.Owner + "/" + r.Name
}

// DefaultBranchInfo is cached per repository. It is only ever constructed
// from a successful resolution: both fields are always non-empty.
type DefaultBranchInfo struct {
	DefaultBranchName string `json:"default_branch_name"`
	DefaultCommit     string `json:"default_commit"`
}

// BranchList is the full branch enumeration of a repository.
type BranchList struct {
	Branches      []string `json:"branches"`
	DefaultBranch string   `json:"default_branch,omitempty"`
}

// ChatSession is a created chat scoped to a repository, branch and credential.
type ChatSession struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	DemoURL string `json:"demo_url,omitempty"`
}

// CredentialKind distinguishes the process-wide system key from a user's own
// stored key.
type CredentialKind int

const (
	CredentialSystem CredentialKind = iota
	CredentialUser
)

// Credential is the key selected for a single chat-creation call.
type Credential struct {
	Kind  CredentialKind
	Token string
}

// ChatRequest is a resolved incoming request to bootstrap a chat.
type ChatRequest struct {
	RepositoryURL string
	// BranchPath holds the raw path segments; a branch name containing "/"
	// (e.g. release/1.0) arrives as multiple segments.
	BranchPath []string
	// Commit, when supplied, skips Directory commit resolution entirely.
	Commit  string
	Privacy bool
	UserID  string
}

// Branch joins the path segments back into the literal branch name.
func (r ChatRequest) Branch() string {
	return strings.Join(r.BranchPath, "/")
}

// ResolutionKind tells the transport layer what to do with a resolution.
type ResolutionKind int

const (
	// ResolutionRedirect sends the user to RedirectURL: a created or
	// cached chat session, or the tree URL for a resolved default branch.
	ResolutionRedirect ResolutionKind = iota
	// ResolutionBranchSelection means no chat was created; the caller
	// should offer branch selection instead.
	ResolutionBranchSelection
)

// Resolution is the orchestrator's answer: where to send the user.
type Resolution struct {
	Kind        ResolutionKind
	RedirectURL string
	DemoURL     string
}

package domain

import (
	"errors"
	"testing"
)

func TestParseRepositoryURL(t *testing.T) {
	cases := []struct {
		name  string
		url   string
		owner string
		repo  string
	}{
		{"plain", "https://github.com/octocat/Hello-World", "octocat", "Hello-World"},
		{"git suffix", "https://github.com/octocat/Hello-World.git", "octocat", "Hello-World"},
		{"trailing slash", "https://github.com/octocat/Hello-World/", "octocat", "Hello-World"},
		{"git suffix and slash", "https://github.com/vercel/next.js.git/", "vercel", "next.js"},
		{"dotted name", "https://github.com/vercel/next.js", "vercel", "next.js"},
		{"surrounding space", "  https://github.com/octocat/Hello-World  ", "octocat", "Hello-World"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ref, err := ParseRepositoryURL(tc.url)
			if err != nil {
				t.Fatalf("ParseRepositoryURL(%q): %v", tc.url, err)
			}
			if ref.Owner != tc.owner || ref.Name != tc.repo {
				t.Fatalf("got %s/%s, want %s/%s", ref.Owner, ref.Name, tc.owner, tc.repo)
			}
		})
	}
}

func TestParseRepositoryURLRejectsInvalid(t *testing.T) {
	invalid := []string{
		"",
		"http://github.com/octocat/Hello-World",
		"https://gitlab.com/octocat/Hello-World",
		"https://github.com/octocat",
		"https://github.com/octocat/Hello-World/tree/master",
		"git@github.com:octocat/Hello-World.git",
		"https://github.com//Hello-World",
	}

	for _, url := range invalid {
		if _, err := ParseRepositoryURL(url); !errors.Is(err, ErrInvalidRepositoryURL) {
			t.Fatalf("ParseRepositoryURL(%q): expected ErrInvalidRepositoryURL, got %v", url, err)
		}
	}
}

func TestRepositoryURLRoundTrip(t *testing.T) {
	// Equivalent spellings normalize to the same ref, and the reconstructed
	// URL parses back to itself.
	urls := []string{
		"https://github.com/vercel/next.js",
		"https://github.com/vercel/next.js.git",
		"https://github.com/vercel/next.js.git/",
	}

	want := RepositoryRef{Owner: "vercel", Name: "next.js"}
	for _, url := range urls {
		ref, err := ParseRepositoryURL(url)
		if err != nil {
			t.Fatalf("ParseRepositoryURL(%q): %v", url, err)
		}
		if ref != want {
			t.Fatalf("ParseRepositoryURL(%q) = %v, want %v", url, ref, want)
		}
		again, err := ParseRepositoryURL(ref.URL())
		if err != nil {
			t.Fatalf("reparse %q: %v", ref.URL(), err)
		}
		if again != want {
			t.Fatalf("round trip changed ref: %v", again)
		}
	}
}

func TestChatRequestBranchJoinsSegments(t *testing.T) {
	req := ChatRequest{BranchPath: []string{"release", "1.0"}}
	if got := req.Branch(); got != "release/1.0" {
		t.Fatalf("Branch() = %q, want release/1.0", got)
	}
}

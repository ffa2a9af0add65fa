package download

import "strings"

// hostPrefixes are stripped, in order, before the path is split. The bare
// host check in Resolve rejects anything that is not a github.com URL first.
var hostPrefixes = []string{
	"https://www.github.com/",
	"http://www.github.com/",
	"https://github.com/",
	"http://github.com/",
	"www.github.com/",
	"github.com/",
}

// Resolve parses a github.com directory URL into a RepoLocation.
//
// Accepted shapes:
//
//	github.com/owner/repo                     -> branch main, repository root
//	github.com/owner/repo/tree/branch/a/b     -> branch "branch", path "a/b"
//	github.com/owner/repo/a/b                 -> branch main, path "a/b"
//
// Segments are used verbatim: no percent-decoding is done and neither the
// branch nor the path is checked for existence.
func Resolve(rawURL string) (RepoLocation, error) {
	u := strings.TrimSpace(rawURL)
	if !strings.Contains(u, "github.com") {
		return RepoLocation{}, InvalidURLError{URL: rawURL, Reason: "URL must be a GitHub repository URL"}
	}

	rest := u
	for _, p := range hostPrefixes {
		if strings.HasPrefix(rest, p) {
			rest = strings.TrimPrefix(rest, p)
			break
		}
	}
	if rest == u {
		return RepoLocation{}, InvalidURLError{URL: rawURL, Reason: "unrecognised host prefix"}
	}
	rest = strings.Trim(rest, "/")

	parts := strings.Split(rest, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return RepoLocation{}, InvalidURLError{URL: rawURL, Reason: "expected at least owner and repository"}
	}

	loc := RepoLocation{Owner: parts[0], Repo: parts[1], Branch: DefaultBranch}
	rem := parts[2:]
	if len(rem) > 0 && rem[0] == "tree" {
		if len(rem) > 1 && rem[1] != "" {
			loc.Branch = rem[1]
		}
		if len(rem) > 2 {
			rem = rem[2:]
		} else {
			rem = nil
		}
	}
	loc.Path = strings.Trim(strings.Join(rem, "/"), "/")
	return loc, nil
}

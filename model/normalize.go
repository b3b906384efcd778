package model

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	keyFolder = cases.Fold()

	githubRepoRe = regexp.MustCompile(`(?i)^https?://(?:www\.)?github\.com/([^/\s]+)/([^/#?\s]+)`)

	repoURLReplacer = strings.NewReplacer(
		"git@github.com:", "https://github.com/",
		"git://github.com/", "https://github.com/",
		"ssh://git@github.com/", "https://github.com/",
	)
)

// NormalizeKey folds a package name or repo key for equality comparison between sources
func NormalizeKey(name string) string {
	return keyFolder.String(norm.NFC.String(strings.TrimSpace(name)))
}

// NormalizeURL drops credentials, query and fragment, trailing slashes and the .git suffix.
// Scheme and host are lowercased, the path keeps its case.
func NormalizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	s = strings.TrimPrefix(s, "git+")
	s = repoURLReplacer.Replace(s)

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		s = strings.TrimRight(s, "/")
		return strings.TrimSuffix(s, ".git")
	}

	clean := strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + u.Path
	clean = strings.TrimRight(clean, "/")

	return strings.TrimSuffix(clean, ".git")
}

// HostOf returns the lowercased host of a URL, or "" when it has none
func HostOf(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	u, err := url.Parse(NormalizeURL(s))
	if err != nil {
		return ""
	}

	return strings.ToLower(u.Host)
}

// ParseGithubOwnerRepo extracts owner and repository name from a GitHub URL.
// Both are empty when the URL is not hosted on github.com.
func ParseGithubOwnerRepo(raw string) (string, string) {
	m := githubRepoRe.FindStringSubmatch(NormalizeURL(raw))
	if m == nil {
		return "", ""
	}

	owner := m[1]
	repo := strings.TrimSuffix(m[2], ".git")
	if repo == "" || repo == "." || repo == ".." {
		return "", ""
	}

	return owner, repo
}

// CanonicalRepoURL is the https URL used as the repository identity
func CanonicalRepoURL(owner, repo string) string {
	return "https://github.com/" + owner + "/" + repo
}

// RepoIdentity is the case-insensitive key of a GitHub repository
func RepoIdentity(owner, repo string) string {
	if owner == "" || repo == "" {
		return ""
	}

	return strings.ToLower(owner + "/" + repo)
}

// SplitFullName splits "owner/repo", returning empty strings when malformed
func SplitFullName(fullName string) (string, string) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(fullName), "/")
	owner, repo = strings.TrimSpace(owner), strings.TrimSpace(repo)
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", ""
	}

	return owner, repo
}

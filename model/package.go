package model

import (
	"strconv"
	"strings"
)

// DefaultDistros are the release lines the dataset covers
var DefaultDistros = []string{"humble", "jazzy", "kilted"}

type ResolutionStatus string

const (
	StatusResolved   ResolutionStatus = "resolved"
	StatusMissingKey ResolutionStatus = "missing_key"
	StatusMissingURL ResolutionStatus = "missing_url"
	StatusNonGithub  ResolutionStatus = "non_github"
)

// URL types, in order of preference when a manifest entry carries several
const (
	URLTypeSource        = "source"
	URLTypeDoc           = "doc"
	URLTypeRelease       = "release"
	URLTypeIndexCheckout = "index_checkout_uri"
)

const (
	ViaReleasePackages = "rosdistro_release_packages"
	ViaRepoKeyName     = "rosdistro_repo_key_name_match"
	ViaIndexHTML       = "index_html_checkout_uri"
	ViaNone            = "none"
)

// IndexPackage is a single package listed by the package index for a distribution
type IndexPackage struct {
	Name    string
	Version string
}

// RepoTableEntry is one repository of a distribution manifest, keyed by repo key
type RepoTableEntry struct {
	RepoKey          string   `json:"repo_key"`
	URLSource        string   `json:"url_source,omitempty"`
	URLDoc           string   `json:"url_doc,omitempty"`
	URLRelease       string   `json:"url_release,omitempty"`
	ReleaseVersion   string   `json:"release_version,omitempty"`
	Status           string   `json:"status,omitempty"`
	PackagesReleased []string `json:"packages_released"`
}

// BestURL picks source, then doc, then release
func (e RepoTableEntry) BestURL() (string, string) {
	for _, candidate := range []struct{ url, kind string }{
		{e.URLSource, URLTypeSource},
		{e.URLDoc, URLTypeDoc},
		{e.URLRelease, URLTypeRelease},
	} {
		if strings.TrimSpace(candidate.url) != "" {
			return strings.TrimSpace(candidate.url), candidate.kind
		}
	}

	return "", ""
}

// PackageRecord is one row of the package to repository mapping
type PackageRecord struct {
	Distro      string           `json:"ros_distro"`
	Package     string           `json:"package"`
	Version     string           `json:"version"`
	RepoKey     string           `json:"rosdistro_repo_key"`
	RepoURL     string           `json:"repo_url"`
	RepoURLType string           `json:"repo_url_type"`
	GithubOwner string           `json:"github_owner"`
	GithubRepo  string           `json:"github_repo"`
	Resolved    bool             `json:"resolved"`
	ResolvedVia string           `json:"resolved_via"`
	Status      ResolutionStatus `json:"status"`
}

var packageRecordHeader = []string{
	"ros_distro", "package", "version", "rosdistro_repo_key", "repo_url", "repo_url_type",
	"github_owner", "github_repo", "resolved", "resolved_via", "status",
}

func PackageRecordHeader() []string {
	return append([]string(nil), packageRecordHeader...)
}

func (r PackageRecord) CSVRow() []string {
	return []string{
		r.Distro, r.Package, r.Version, r.RepoKey, r.RepoURL, r.RepoURLType,
		r.GithubOwner, r.GithubRepo, strconv.FormatBool(r.Resolved), r.ResolvedVia, string(r.Status),
	}
}

// PackageRecordFromCSV rebuilds a record from a header-keyed row.
// Rows without a status column get one computed from their URL and repo key.
func PackageRecordFromCSV(row map[string]string) PackageRecord {
	r := PackageRecord{
		Distro:      strings.TrimSpace(row["ros_distro"]),
		Package:     strings.TrimSpace(row["package"]),
		Version:     strings.TrimSpace(row["version"]),
		RepoKey:     strings.TrimSpace(row["rosdistro_repo_key"]),
		RepoURL:     strings.TrimSpace(row["repo_url"]),
		RepoURLType: strings.TrimSpace(row["repo_url_type"]),
		GithubOwner: strings.TrimSpace(row["github_owner"]),
		GithubRepo:  strings.TrimSpace(row["github_repo"]),
		Resolved:    isTruthy(row["resolved"]),
		ResolvedVia: strings.TrimSpace(row["resolved_via"]),
		Status:      ResolutionStatus(strings.TrimSpace(row["status"])),
	}

	if r.Status == "" {
		r.Status = ClassifyStatus(r.RepoKey, r.RepoURL, r.GithubOwner)
	}

	return r
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// Consistent reports whether the stored status and resolved flag match the URL and repo key
func (r PackageRecord) Consistent() bool {
	return r.Status == ClassifyStatus(r.RepoKey, r.RepoURL, r.GithubOwner) && r.Resolved == (r.RepoURL != "")
}

// Refresh recomputes the github fields, the resolved flag and the status from the URL and repo key
func (r *PackageRecord) Refresh() {
	r.RepoURL = strings.TrimSpace(r.RepoURL)
	r.GithubOwner, r.GithubRepo = ParseGithubOwnerRepo(r.RepoURL)
	r.Resolved = r.RepoURL != ""
	r.Status = ClassifyStatus(r.RepoKey, r.RepoURL, r.GithubOwner)
}

// IsGithub reports whether the record points to a parsable GitHub repository
func (r PackageRecord) IsGithub() bool {
	return r.GithubOwner != "" && r.GithubRepo != ""
}

// ClassifyStatus is total: every combination maps to exactly one status.
// A package absent from the distribution manifest stays missing_key even when a URL was found elsewhere.
func ClassifyStatus(repoKey, repoURL, githubOwner string) ResolutionStatus {
	switch {
	case repoKey == "":
		return StatusMissingKey
	case repoURL == "":
		return StatusMissingURL
	case githubOwner == "":
		return StatusNonGithub
	default:
		return StatusResolved
	}
}

package model

import "strings"

// Snapshot files written per repository, in fetch order
const (
	FileGeneralInfo          = "general_info.json"
	FileReadme               = "readme.json"
	FileContributing         = "contributing.json"
	FileCodeOfConduct        = "code_of_conduct.json"
	FileIssueTemplate        = "issue_template.json"
	FilePRTemplate           = "pr_template.json"
	FileCommits              = "commits.json"
	FileForks                = "forks.json"
	FileStars                = "stars.json"
	FileContributors         = "contributors.json"
	FilePullRequests         = "pull_requests.json"
	FileIssues               = "issues.json"
	FileLicense              = "license.json"
	FileLanguages            = "languages.json"
	FileWeeklyCommitActivity = "weekly_commit_activity.json"
)

var SnapshotFiles = []string{
	FileGeneralInfo, FileReadme, FileContributing, FileCodeOfConduct, FileIssueTemplate, FilePRTemplate,
	FileCommits, FileForks, FileStars, FileContributors, FilePullRequests, FileIssues,
	FileLicense, FileLanguages, FileWeeklyCommitActivity,
}

// RepoRef identifies a repository to snapshot
type RepoRef struct {
	Owner string
	Repo  string
}

func (r RepoRef) FullName() string {
	return r.Owner + "/" + r.Repo
}

// DirName is the per-repository snapshot directory name
func (r RepoRef) DirName() string {
	return r.Owner + "__" + r.Repo
}

// RepoRefFromRow detects the repository from full_name first, then html_url, url or repo_url
func RepoRefFromRow(row map[string]string) (RepoRef, bool) {
	if owner, repo := SplitFullName(row["full_name"]); owner != "" {
		return RepoRef{Owner: owner, Repo: repo}, true
	}

	for _, k := range []string{"html_url", "url", "repo_url"} {
		if owner, repo := ParseGithubOwnerRepo(strings.TrimSpace(row[k])); owner != "" {
			return RepoRef{Owner: owner, Repo: repo}, true
		}
	}

	return RepoRef{}, false
}

type GeneralInfo struct {
	FullName         string   `json:"full_name"`
	HTMLURL          string   `json:"html_url"`
	Description      string   `json:"description"`
	Archived         bool     `json:"archived"`
	Fork             bool     `json:"fork"`
	DefaultBranch    string   `json:"default_branch"`
	License          string   `json:"license"`
	Size             int      `json:"size"`
	Language         string   `json:"language"`
	Topics           []string `json:"topics"`
	StargazersCount  int      `json:"stargazers_count"`
	ForksCount       int      `json:"forks_count"`
	OpenIssuesCount  int      `json:"open_issues_count"`
	SubscribersCount int      `json:"subscribers_count"`
	WatchersCount    int      `json:"watchers_count"`
	CommitsCount     int      `json:"commits_count"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
	PushedAt         string   `json:"pushed_at"`
}

type CommitSummary struct {
	SHA     string `json:"sha"`
	Author  string `json:"author"`
	Date    string `json:"date"`
	Message string `json:"message"`
}

type ForkSummary struct {
	ForkedAt string `json:"forked_at"`
	Owner    string `json:"owner"`
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
}

type StarSummary struct {
	StarredAt string `json:"starred_at"`
	User      string `json:"user"`
}

type ContributorSummary struct {
	Login         string `json:"login"`
	Contributions int    `json:"contributions"`
}

type PullRequestSummary struct {
	ID        int64  `json:"id"`
	Number    int    `json:"number"`
	State     string `json:"state"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	ClosedAt  string `json:"closed_at,omitempty"`
	MergedAt  string `json:"merged_at,omitempty"`
	User      string `json:"user"`
}

type IssueSummary struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	State     string `json:"state"`
	CreatedAt string `json:"created_at"`
	ClosedAt  string `json:"closed_at,omitempty"`
	Author    string `json:"author"`
}

type LicenseInfo struct {
	SPDXID string `json:"spdx_id"`
	Name   string `json:"name"`
}

type ReadmeInfo struct {
	DownloadURL string `json:"download_url"`
	Path        string `json:"path"`
	Name        string `json:"name"`
}

// FileProbe records whether one of several candidate paths exists
type FileProbe struct {
	Found       bool   `json:"found"`
	Path        string `json:"path"`
	DownloadURL string `json:"download_url"`
	Preview     string `json:"preview,omitempty"`
}

type IssueTemplateInfo struct {
	HasIssueTemplate bool     `json:"has_issue_template"`
	Files            []string `json:"files"`
}

type PRTemplateInfo struct {
	HasPRTemplate bool   `json:"has_pr_template"`
	Path          string `json:"path"`
	DownloadURL   string `json:"download_url"`
}

type WeeklyActivity struct {
	Week  string `json:"week"`
	Total int    `json:"total"`
}

package model

import (
	"strconv"
	"strings"
)

// RepositoryFeatures is one row of the final repository dataset
type RepositoryFeatures struct {
	FullName           string
	HTMLURL            string
	Owner              string
	Repo               string
	Distros            []string
	NPackagesTotal     int
	Archived           bool
	Fork               bool
	DefaultBranch      string
	License            string
	SizeKB             int
	PrimaryLanguage    string
	TopLanguages       []string
	NLanguages         int
	Topics             []string
	Stars              int
	Forks              int
	OpenIssues         int
	Subscribers        int
	Commits            int
	Contributors       int
	PullRequests       int
	PullRequestsOpen   int
	PullRequestsMerged int
	Issues             int
	IssuesOpen         int
	IssuesClosed       int
	StarsRecorded      int
	ForksRecorded      int
	CommitsLast52W     int
	ActiveWeeks52W     int
	HasReadme          bool
	HasContributing    bool
	HasCodeOfConduct   bool
	HasPRTemplate      bool
	HasIssueTemplate   bool
	CreatedAt          string
	PushedAt           string
	FirstCommitAt      string
	LastCommitAt       string
}

func RepositoryFeaturesHeader() []string {
	return []string{
		"full_name", "html_url", "owner", "repo", "distros", "n_distros", "n_packages_total",
		"archived", "fork", "default_branch", "license", "size_kb",
		"primary_language", "top_languages", "n_languages", "topics",
		"stargazers_count", "forks_count", "open_issues_count", "subscribers_count",
		"commits_count", "contributors_count",
		"pull_requests_count", "pull_requests_open", "pull_requests_merged",
		"issues_count", "issues_open", "issues_closed",
		"stars_recorded", "forks_recorded", "commits_last_52_weeks", "active_weeks_last_52",
		"has_readme", "has_contributing", "has_code_of_conduct", "has_pr_template", "has_issue_template",
		"created_at", "pushed_at", "first_commit_at", "last_commit_at",
	}
}

func (f RepositoryFeatures) CSVRow() []string {
	itoa := strconv.Itoa
	btoa := strconv.FormatBool

	return []string{
		f.FullName, f.HTMLURL, f.Owner, f.Repo, strings.Join(f.Distros, "|"), itoa(len(f.Distros)), itoa(f.NPackagesTotal),
		btoa(f.Archived), btoa(f.Fork), f.DefaultBranch, f.License, itoa(f.SizeKB),
		f.PrimaryLanguage, strings.Join(f.TopLanguages, "|"), itoa(f.NLanguages), strings.Join(f.Topics, "|"),
		itoa(f.Stars), itoa(f.Forks), itoa(f.OpenIssues), itoa(f.Subscribers),
		itoa(f.Commits), itoa(f.Contributors),
		itoa(f.PullRequests), itoa(f.PullRequestsOpen), itoa(f.PullRequestsMerged),
		itoa(f.Issues), itoa(f.IssuesOpen), itoa(f.IssuesClosed),
		itoa(f.StarsRecorded), itoa(f.ForksRecorded), itoa(f.CommitsLast52W), itoa(f.ActiveWeeks52W),
		btoa(f.HasReadme), btoa(f.HasContributing), btoa(f.HasCodeOfConduct), btoa(f.HasPRTemplate), btoa(f.HasIssueTemplate),
		f.CreatedAt, f.PushedAt, f.FirstCommitAt, f.LastCommitAt,
	}
}

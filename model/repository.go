package model

import (
	"strconv"
	"strings"
)

// PaperRecord is a package row enriched with the normalized URL used for reporting
type PaperRecord struct {
	Distro          string
	Package         string
	RepoKey         string
	RepoURL         string
	RepoURLNorm     string
	Host            string
	ResolvedRepoURL bool
	IsGithub        bool
	GithubOwner     string
	GithubRepo      string
	FullName        string
	RepoURLType     string
	ResolvedVia     string
}

func PaperRecordHeader() []string {
	return []string{
		"ros_distro", "package", "rosdistro_repo_key", "repo_url", "repo_url_normalized", "host",
		"resolved_repo_url", "is_github", "github_owner", "github_repo", "full_name",
		"repo_url_type", "resolved_via",
	}
}

func (r PaperRecord) CSVRow() []string {
	return []string{
		r.Distro, r.Package, r.RepoKey, r.RepoURL, r.RepoURLNorm, r.Host,
		strconv.FormatBool(r.ResolvedRepoURL), strconv.FormatBool(r.IsGithub), r.GithubOwner, r.GithubRepo, r.FullName,
		r.RepoURLType, r.ResolvedVia,
	}
}

// UniqueRepository is a GitHub repository referenced by at least one resolved package
type UniqueRepository struct {
	FullName             string
	RepoURL              string
	Distros              []string
	NPackagesTotal       int
	ResolvedViaBreakdown string
}

func UniqueRepositoryHeader() []string {
	return []string{"full_name", "repo_url", "distros", "n_distros", "n_packages_total", "resolved_via_breakdown"}
}

func (r UniqueRepository) CSVRow() []string {
	return []string{
		r.FullName, r.RepoURL, strings.Join(r.Distros, "|"), strconv.Itoa(len(r.Distros)),
		strconv.Itoa(r.NPackagesTotal), r.ResolvedViaBreakdown,
	}
}

// UniqueRepositoryFromCSV is the inverse of CSVRow, tolerant to missing columns
func UniqueRepositoryFromCSV(row map[string]string) UniqueRepository {
	r := UniqueRepository{
		FullName:             strings.TrimSpace(row["full_name"]),
		RepoURL:              strings.TrimSpace(row["repo_url"]),
		ResolvedViaBreakdown: strings.TrimSpace(row["resolved_via_breakdown"]),
	}

	if distros := strings.TrimSpace(row["distros"]); distros != "" {
		r.Distros = strings.Split(distros, "|")
	}

	r.NPackagesTotal, _ = strconv.Atoi(strings.TrimSpace(row["n_packages_total"]))

	return r
}

// RepositoryByDistro counts the packages a repository backs in one distribution
type RepositoryByDistro struct {
	FullName          string
	Distro            string
	NPackagesInDistro int
	RepoURL           string
}

func RepositoryByDistroHeader() []string {
	return []string{"full_name", "ros_distro", "n_packages_in_distro", "repo_url"}
}

func (r RepositoryByDistro) CSVRow() []string {
	return []string{r.FullName, r.Distro, strconv.Itoa(r.NPackagesInDistro), r.RepoURL}
}

// OverlapMetric is one line of the overlap summary
type OverlapMetric struct {
	Metric string
	Value  int
}

func OverlapMetricHeader() []string {
	return []string{"metric", "value"}
}

func (m OverlapMetric) CSVRow() []string {
	return []string{m.Metric, strconv.Itoa(m.Value)}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/robotics-oss/ros-repo-metrics/config"
	"github.com/robotics-oss/ros-repo-metrics/model"
	"github.com/robotics-oss/ros-repo-metrics/storage"
	log "github.com/sirupsen/logrus"
)

const (
	topLanguagesCount = 3
	activityWeeks     = 52
)

type AssembleService interface {
	Assemble(ctx context.Context) error
	RepositoryFeatures(repo model.UniqueRepository, ref model.RepoRef) (model.RepositoryFeatures, error)
}

type assembleService struct {
	artifacts Artifacts
	config    config.Config
}

func NewAssembleService(config config.Config) AssembleService {
	return assembleService{
		artifacts: NewArtifacts(config),
		config:    config,
	}
}

// Assemble flattens the snapshots of every unique repository into the final dataset.
// Repositories listed as unresolved or with an incomplete snapshot set are left out.
func (s assembleService) Assemble(ctx context.Context) error {
	rows, err := storage.ReadCSV(s.artifacts.UniqueRepos())
	if err != nil {
		return err
	}

	unresolved, err := s.unresolvedRepositories()
	if err != nil {
		return err
	}

	features := make([]model.RepositoryFeatures, 0, len(rows))
	skipped := 0

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}

		ref, ok := model.RepoRefFromRow(row)
		if !ok {
			skipped++
			continue
		}

		if reason, found := unresolved[strings.ToLower(ref.FullName())]; found {
			log.WithFields(log.Fields{
				"repository": ref.FullName(),
				"reason":     reason,
			}).Warn("unresolved repository left out of the final dataset")

			skipped++
			continue
		}

		f, err := s.RepositoryFeatures(model.UniqueRepositoryFromCSV(row), ref)
		if err != nil {
			log.WithFields(log.Fields{
				"repository": ref.FullName(),
				"error":      err,
			}).Warn("repository left out of the final dataset")

			skipped++
			continue
		}

		features = append(features, f)
	}

	sort.Slice(features, func(i, j int) bool {
		return strings.ToLower(features[i].FullName) < strings.ToLower(features[j].FullName)
	})

	if err := storage.WriteCSV(s.artifacts.FinalRepoDataset(), model.RepositoryFeaturesHeader(), features); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"repositories": len(features),
		"skipped":      skipped,
		"path":         s.artifacts.FinalRepoDataset(),
	}).Info("final repository dataset saved")

	return nil
}

// unresolvedRepositories maps the lower-cased full names of the diagnostics file to their reason
func (s assembleService) unresolvedRepositories() (map[string]string, error) {
	unresolved := make(map[string]string)

	rows, err := storage.ReadCSV(s.artifacts.UnresolvedRepositories())
	if errors.Is(err, model.ErrMissingInput) {
		return unresolved, nil
	}
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		if name := strings.TrimSpace(row["full_name"]); name != "" {
			unresolved[strings.ToLower(name)] = row["reason"]
		}
	}

	return unresolved, nil
}

func (s assembleService) RepositoryFeatures(repo model.UniqueRepository, ref model.RepoRef) (model.RepositoryFeatures, error) {
	dir := s.artifacts.RepoDir(ref)

	if missing := s.artifacts.MissingSnapshots(ref); len(missing) > 0 {
		return model.RepositoryFeatures{}, fmt.Errorf("%w: incomplete snapshot set, missing %s", model.ErrMissingInput, strings.Join(missing, ", "))
	}

	var info model.GeneralInfo
	if err := storage.ReadSnapshotData(filepath.Join(dir, model.FileGeneralInfo), &info); err != nil {
		return model.RepositoryFeatures{}, err
	}

	var (
		commits       []model.CommitSummary
		forks         []model.ForkSummary
		stars         []model.StarSummary
		contributors  []model.ContributorSummary
		pulls         []model.PullRequestSummary
		issues        []model.IssueSummary
		languages     map[string]int
		activity      []model.WeeklyActivity
		readme        model.ReadmeInfo
		contributing  model.FileProbe
		codeOfConduct model.FileProbe
		issueTemplate model.IssueTemplateInfo
		prTemplate    model.PRTemplateInfo
		license       model.LicenseInfo
	)

	for file, v := range map[string]any{
		model.FileCommits:              &commits,
		model.FileForks:                &forks,
		model.FileStars:                &stars,
		model.FileContributors:         &contributors,
		model.FilePullRequests:         &pulls,
		model.FileIssues:               &issues,
		model.FileLanguages:            &languages,
		model.FileWeeklyCommitActivity: &activity,
		model.FileReadme:               &readme,
		model.FileContributing:         &contributing,
		model.FileCodeOfConduct:        &codeOfConduct,
		model.FileIssueTemplate:        &issueTemplate,
		model.FilePRTemplate:           &prTemplate,
		model.FileLicense:              &license,
	} {
		if err := storage.ReadSnapshotData(filepath.Join(dir, file), v); err != nil {
			return model.RepositoryFeatures{}, err
		}
	}

	fullName := info.FullName
	if fullName == "" {
		fullName = ref.FullName()
	}

	htmlURL := info.HTMLURL
	if htmlURL == "" {
		htmlURL = model.CanonicalRepoURL(ref.Owner, ref.Repo)
	}

	licenseID := info.License
	if licenseID == "" {
		licenseID = license.SPDXID
	}

	f := model.RepositoryFeatures{
		FullName:         fullName,
		HTMLURL:          htmlURL,
		Owner:            ref.Owner,
		Repo:             ref.Repo,
		Distros:          repo.Distros,
		NPackagesTotal:   repo.NPackagesTotal,
		Archived:         info.Archived,
		Fork:             info.Fork,
		DefaultBranch:    info.DefaultBranch,
		License:          licenseID,
		SizeKB:           info.Size,
		PrimaryLanguage:  info.Language,
		TopLanguages:     topLanguages(languages, topLanguagesCount),
		NLanguages:       len(languages),
		Topics:           info.Topics,
		Stars:            info.StargazersCount,
		Forks:            info.ForksCount,
		OpenIssues:       info.OpenIssuesCount,
		Subscribers:      info.SubscribersCount,
		Commits:          len(commits),
		Contributors:     len(contributors),
		PullRequests:     len(pulls),
		Issues:           len(issues),
		StarsRecorded:    len(stars),
		ForksRecorded:    len(forks),
		HasReadme:        readme.DownloadURL != "",
		HasContributing:  contributing.Found,
		HasCodeOfConduct: codeOfConduct.Found,
		HasPRTemplate:    prTemplate.HasPRTemplate,
		HasIssueTemplate: issueTemplate.HasIssueTemplate,
		CreatedAt:        info.CreatedAt,
		PushedAt:         info.PushedAt,
	}

	// older snapshots may carry the count without the commit list
	if f.Commits == 0 {
		f.Commits = info.CommitsCount
	}

	for _, pr := range pulls {
		if strings.EqualFold(pr.State, "open") {
			f.PullRequestsOpen++
		}
		if pr.MergedAt != "" {
			f.PullRequestsMerged++
		}
	}

	for _, is := range issues {
		if strings.EqualFold(is.State, "open") {
			f.IssuesOpen++
		} else {
			f.IssuesClosed++
		}
	}

	f.FirstCommitAt, f.LastCommitAt = commitRange(commits)
	f.CommitsLast52W, f.ActiveWeeks52W = recentActivity(activity, activityWeeks)

	return f, nil
}

// topLanguages orders by bytes then name
func topLanguages(languages map[string]int, n int) []string {
	names := sortedKeys(languages)
	sort.SliceStable(names, func(i, j int) bool { return languages[names[i]] > languages[names[j]] })

	if len(names) > n {
		names = names[:n]
	}

	return names
}

// commitRange returns the oldest and newest commit dates, timestamps are RFC 3339 in UTC so they sort as strings
func commitRange(commits []model.CommitSummary) (string, string) {
	first, last := "", ""

	for _, c := range commits {
		if c.Date == "" {
			continue
		}
		if first == "" || c.Date < first {
			first = c.Date
		}
		if c.Date > last {
			last = c.Date
		}
	}

	return first, last
}

// recentActivity sums the last weeks of the activity and counts the weeks with at least one commit
func recentActivity(activity []model.WeeklyActivity, weeks int) (int, int) {
	sorted := append([]model.WeeklyActivity(nil), activity...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Week < sorted[j].Week })

	if len(sorted) > weeks {
		sorted = sorted[len(sorted)-weeks:]
	}

	total, active := 0, 0
	for _, w := range sorted {
		total += w.Total
		if w.Total > 0 {
			active++
		}
	}

	return total, active
}

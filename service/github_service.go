package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"github.com/robotics-oss/ros-repo-metrics/config"
	"github.com/robotics-oss/ros-repo-metrics/model"
	"github.com/robotics-oss/ros-repo-metrics/storage"

	"github.com/remeh/sizedwaitgroup"
	log "github.com/sirupsen/logrus"

	"golang.org/x/time/rate"
)

const (
	snapshotSource   = "github_rest"
	previewMaxRunes  = 500
	lowRateRemaining = 100
	dateLayout       = "2006-01-02"
)

var (
	contributingCandidates = []string{
		"CONTRIBUTING.md",
		".github/CONTRIBUTING.md",
		"docs/CONTRIBUTING.md",
		"contributing.md",
	}

	codeOfConductCandidates = []string{
		"CODE_OF_CONDUCT.md",
		".github/CODE_OF_CONDUCT.md",
		"docs/CODE_OF_CONDUCT.md",
		"code-of-conduct.md",
		".github/code-of-conduct.md",
	}

	issueTemplateCandidates = []string{
		".github/ISSUE_TEMPLATE.md",
		"ISSUE_TEMPLATE.md",
		".github/issue_template.md",
	}

	prTemplateCandidates = []string{
		".github/PULL_REQUEST_TEMPLATE.md",
		"PULL_REQUEST_TEMPLATE.md",
		".github/pull_request_template.md",
		"pull_request_template.md",
		".github/PULL_REQUEST_TEMPLATE",
	}

	issueTemplateDir = ".github/ISSUE_TEMPLATE"
	prTemplateDir    = ".github/PULL_REQUEST_TEMPLATE"

	// the stats endpoint answers 202 while github computes the statistics
	errStatsPending = errors.New("statistics are being generated")
)

type GithubService interface {
	ExtractFeatures(ctx context.Context) error
	SnapshotRepository(ctx context.Context, ref model.RepoRef) error
	MissingSnapshots(ref model.RepoRef) []string

	HandleRequestErrors(err error) error
}

type githubService struct {
	githubClient      *github.Client
	githubRateLimiter *rate.Limiter
	artifacts         Artifacts
	config            config.Config
	runID             string
	sleep             func(ctx context.Context, d time.Duration) error
}

// the rate limiter is built outside (see NewGithubRateLimiter) so tests can pass a mocked client and a permissive limiter
func NewGithubService(config config.Config, githubClient *github.Client, rateLimiter *rate.Limiter, runID string) GithubService {
	return newGithubService(config, githubClient, rateLimiter, runID, sleepContext)
}

func newGithubService(config config.Config, githubClient *github.Client, rateLimiter *rate.Limiter, runID string, sleep func(context.Context, time.Duration) error) githubService {
	return githubService{
		githubClient:      githubClient,
		githubRateLimiter: rateLimiter,
		artifacts:         NewArtifacts(config),
		config:            config,
		runID:             runID,
		sleep:             sleep,
	}
}

// NewGithubRateLimiter loads the current core quota from github and builds a local limiter from it.
// Requests already consumed (by this token, from anywhere) are taken from the bucket up front
// so the local limiter stays aligned with what github will accept.
func NewGithubRateLimiter(ctx context.Context, githubClient *github.Client) (*rate.Limiter, error) {
	rateLimits, _, err := githubClient.RateLimit.Get(ctx)
	if err != nil {
		return nil, err
	}

	core := rateLimits.GetCore()
	if core == nil || core.Limit <= 0 {
		return rate.NewLimiter(rate.Inf, 0), nil
	}

	log.WithFields(log.Fields{
		"totalAvailable":    core.Limit,
		"remainingRequests": core.Remaining,
		"reset":             core.Reset.Time,
	}).Debug("will setup local rate limiter with rate limits infos from github")

	limiter := rate.NewLimiter(rate.Every(time.Hour/time.Duration(core.Limit)), core.Limit)
	limiter.AllowN(time.Now(), core.Limit-core.Remaining)

	return limiter, nil
}

// ExtractFeatures snapshots every unique repository.
// A repository that cannot be fetched is recorded in the unresolved diagnostics file and the run goes on.
func (s githubService) ExtractFeatures(ctx context.Context) error {
	rows, err := storage.ReadCSV(s.artifacts.UniqueRepos())
	if err != nil {
		return err
	}

	refs := make([]model.RepoRef, 0, len(rows))
	unresolved := make([]model.UnresolvedRepository, 0)
	seen := make(map[string]bool)

	for i, row := range rows {
		ref, ok := model.RepoRefFromRow(row)
		if !ok {
			log.WithFields(log.Fields{
				"row":      i + 1,
				"fullName": row["full_name"],
			}).Warn("cannot parse repository from row. skipped")

			unresolved = append(unresolved, model.UnresolvedRepository{
				FullName: strings.TrimSpace(row["full_name"]),
				Reason:   model.UnresolvedUnparsable,
				Detail:   fmt.Sprintf("row %d", i+1),
			})
			continue
		}

		if id := model.RepoIdentity(ref.Owner, ref.Repo); !seen[id] {
			seen[id] = true
			refs = append(refs, ref)
		}
	}

	// bounded parallelism, default 1 keeps the extraction sequential
	swg := sizedwaitgroup.New(max(s.config.Tasks.MaxParallelTasksAllowed, 1))
	results := make(chan model.UnresolvedRepository, len(refs))

	for i, ref := range refs {
		if ctx.Err() != nil {
			break
		}

		swg.Add()
		go func(i int, ref model.RepoRef) {
			defer swg.Done()

			log.WithFields(log.Fields{
				"repository": ref.FullName(),
				"progress":   fmt.Sprintf("%d/%d", i+1, len(refs)),
				"runID":      s.runID,
			}).Info("processing repository")

			err := s.SnapshotRepository(ctx, ref)
			if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}

			log.WithFields(log.Fields{
				"repository": ref.FullName(),
				"error":      err,
			}).Warn("repository could not be snapshotted")

			results <- model.UnresolvedRepository{
				FullName: ref.FullName(),
				Reason:   unresolvedReason(err),
				Detail:   err.Error(),
			}
		}(i, ref)
	}

	log.Debug("waiting for all repository snapshots to be finished")
	swg.Wait()
	close(results)

	for r := range results {
		unresolved = append(unresolved, r)
	}

	sort.Slice(unresolved, func(i, j int) bool {
		return strings.ToLower(unresolved[i].FullName) < strings.ToLower(unresolved[j].FullName)
	})

	if err := storage.WriteCSV(s.artifacts.UnresolvedRepositories(), model.UnresolvedRepositoryHeader(), unresolved); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"repositories": len(refs),
		"unresolved":   len(unresolved),
		"path":         s.artifacts.DataDir(),
	}).Info("repository features extracted")

	return nil
}

func unresolvedReason(err error) string {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return model.UnresolvedNotFound
	case errors.Is(err, model.ErrRateLimitReached), errors.Is(err, model.ErrRateLimiter):
		return model.UnresolvedRateLimit
	case errors.Is(err, model.ErrTransientNetwork):
		return model.UnresolvedTransientNetwork
	case errors.Is(err, model.ErrInvalidData):
		return model.UnresolvedMalformed
	}
	return model.UnresolvedFetch
}

// MissingSnapshots lists the snapshot files that are absent, empty or not valid JSON
func (s githubService) MissingSnapshots(ref model.RepoRef) []string {
	return s.artifacts.MissingSnapshots(ref)
}

type snapshotStep struct {
	file     string
	endpoint string
	perPage  int
	fetch    func(ctx context.Context, ref model.RepoRef) (any, error)
}

// SnapshotRepository fetches the missing snapshot files of a single repository.
// A complete directory is left untouched.
func (s githubService) SnapshotRepository(ctx context.Context, ref model.RepoRef) error {
	missing := s.MissingSnapshots(ref)
	if len(missing) == 0 {
		log.WithField("repository", ref.FullName()).Info("repository snapshots already complete. skipped")
		return nil
	}

	log.WithFields(log.Fields{
		"repository": ref.FullName(),
		"missing":    missing,
	}).Debug("fetching missing snapshots")

	need := make(map[string]bool, len(missing))
	for _, f := range missing {
		need[f] = true
	}

	// general info carries the commit count, the commits are fetched once for both files
	var commits []model.CommitSummary
	loadCommits := func(ctx context.Context, ref model.RepoRef) ([]model.CommitSummary, error) {
		if commits != nil {
			return commits, nil
		}

		var err error
		commits, err = s.fetchCommits(ctx, ref)
		return commits, err
	}

	perPage := s.config.Github.PerPage
	steps := []snapshotStep{
		{model.FileGeneralInfo, "/repos/{owner}/{repo}", 0, func(ctx context.Context, ref model.RepoRef) (any, error) {
			return s.fetchGeneralInfo(ctx, ref, loadCommits)
		}},
		{model.FileReadme, "/repos/{owner}/{repo}/readme", 0, s.fetchReadme},
		{model.FileContributing, "/repos/{owner}/{repo}/contents/<CONTRIBUTING*>", 0, func(ctx context.Context, ref model.RepoRef) (any, error) {
			return s.probeFile(ctx, ref, contributingCandidates, false)
		}},
		{model.FileCodeOfConduct, "/repos/{owner}/{repo}/contents/<CODE_OF_CONDUCT*>", 0, func(ctx context.Context, ref model.RepoRef) (any, error) {
			return s.probeFile(ctx, ref, codeOfConductCandidates, true)
		}},
		{model.FileIssueTemplate, "/repos/{owner}/{repo}/contents/.github/ISSUE_TEMPLATE", 0, s.fetchIssueTemplate},
		{model.FilePRTemplate, "/repos/{owner}/{repo}/contents/<PR_TEMPLATE*>", 0, s.fetchPRTemplate},
		{model.FileCommits, "/repos/{owner}/{repo}/commits", perPage, func(ctx context.Context, ref model.RepoRef) (any, error) {
			return loadCommits(ctx, ref)
		}},
		{model.FileForks, "/repos/{owner}/{repo}/forks", perPage, s.fetchForks},
		{model.FileStars, "/repos/{owner}/{repo}/stargazers", perPage, s.fetchStars},
		{model.FileContributors, "/repos/{owner}/{repo}/contributors", perPage, s.fetchContributors},
		{model.FilePullRequests, "/repos/{owner}/{repo}/pulls?state=all", perPage, s.fetchPullRequests},
		{model.FileIssues, "/repos/{owner}/{repo}/issues?state=all", perPage, s.fetchIssues},
		{model.FileLicense, "/repos/{owner}/{repo}/license", 0, s.fetchLicense},
		{model.FileLanguages, "/repos/{owner}/{repo}/languages", 0, s.fetchLanguages},
		{model.FileWeeklyCommitActivity, "/repos/{owner}/{repo}/stats/commit_activity", 0, s.fetchWeeklyActivity},
	}

	dir := s.artifacts.RepoDir(ref)
	for _, step := range steps {
		if !need[step.file] {
			continue
		}

		data, err := step.fetch(ctx, ref)
		if err != nil {
			return fmt.Errorf("%s: %s: %w", ref.FullName(), step.file, err)
		}

		meta := storage.SnapshotMeta{
			RunID:    s.runID,
			Source:   snapshotSource,
			Endpoint: step.endpoint,
			Owner:    ref.Owner,
			Repo:     ref.Repo,
			PerPage:  step.perPage,
		}

		if err := storage.WriteSnapshot(filepath.Join(dir, step.file), meta, data); err != nil {
			return err
		}
	}

	log.WithField("repository", ref.FullName()).Info("repository snapshots saved")

	return nil
}

// call runs one github request after waiting on the local limiter.
// Rate limits are waited out then retried, server and network errors are retried with backoff,
// both within the configured attempts.
func (s githubService) call(ctx context.Context, request func() (*github.Response, error)) error {
	attempts := max(s.config.Retry.Attempts, 1)
	delay := s.config.Retry.Delay

	for attempt := 1; ; attempt++ {
		if err := s.githubRateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", model.ErrRateLimiter, err)
		}

		resp, err := request()
		logRateLimit(resp)

		if err == nil {
			return nil
		}

		handled := s.HandleRequestErrors(err)
		wait, retryable := s.retryDelay(err, handled, delay)
		if !retryable || attempt >= attempts {
			return handled
		}

		log.WithFields(log.Fields{
			"attempt": attempt,
			"wait":    wait.String(),
			"error":   handled,
		}).Warn("github request failed, retrying")

		if err := s.sleep(ctx, wait); err != nil {
			return err
		}

		if !errors.Is(handled, model.ErrRateLimitReached) {
			delay *= 2
		}
	}
}

func (s githubService) retryDelay(raw, handled error, backoff time.Duration) (time.Duration, bool) {
	var rateLimitErr *github.RateLimitError
	if errors.As(raw, &rateLimitErr) {
		return max(time.Until(rateLimitErr.Rate.Reset.Time)+time.Second, 0), true
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(raw, &abuseErr) {
		if abuseErr.RetryAfter != nil {
			return *abuseErr.RetryAfter, true
		}
		return backoff, true
	}

	if errors.Is(handled, model.ErrTransientNetwork) {
		return backoff, true
	}

	return 0, false
}

// HandleRequestErrors manage errors including github rate limit errors at the same location
// If error is a rate limit error, this function will update the local rate limiter to consume all available requests
// this can help us to keep the local rate limiter up to date
func (s githubService) HandleRequestErrors(err error) error {
	var (
		rateLimitErr *github.RateLimitError
		abuseErr     *github.AbuseRateLimitError
		acceptedErr  *github.AcceptedError
		responseErr  *github.ErrorResponse
	)

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err

	case errors.As(err, &rateLimitErr):
		s.githubRateLimiter.AllowN(time.Now(), s.githubRateLimiter.Burst())

		log.WithField("reset", rateLimitErr.Rate.Reset.Time).Warning("the Github rate limit has been reached. Use a token or wait until the limit reset")
		return fmt.Errorf("%w: %v", model.ErrRateLimitReached, err)

	case errors.As(err, &abuseErr):
		log.Warning("the Github secondary rate limit has been reached")
		return fmt.Errorf("%w: %v", model.ErrRateLimitReached, err)

	case errors.As(err, &acceptedErr):
		return errStatsPending

	case errors.As(err, &responseErr) && responseErr.Response != nil:
		code := responseErr.Response.StatusCode

		switch {
		// empty repositories answer 409 on commit listings
		case code == http.StatusNotFound, code == http.StatusGone, code == http.StatusConflict:
			return fmt.Errorf("%w: %v", model.ErrNotFound, err)
		case code >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %v", model.ErrTransientNetwork, err)
		}

		log.WithError(err).Error("error catched when fetching data from github")
		return fmt.Errorf("%w: %v", model.ErrFetch, err)
	}

	// connection reset, timeout, dns... nothing github answered
	return fmt.Errorf("%w: %v", model.ErrTransientNetwork, err)
}

func logRateLimit(resp *github.Response) {
	if resp == nil || resp.Rate.Limit == 0 {
		return
	}

	if resp.Rate.Remaining < lowRateRemaining {
		log.WithFields(log.Fields{
			"remaining": resp.Rate.Remaining,
			"limit":     resp.Rate.Limit,
			"reset":     resp.Rate.Reset.Time,
		}).Warn("github rate limit low")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// paginate follows the Link header until the last page
func paginate[T any](ctx context.Context, s githubService, list func(opts github.ListOptions) ([]T, *github.Response, error)) ([]T, error) {
	opts := github.ListOptions{PerPage: s.config.Github.PerPage}
	out := make([]T, 0)

	for {
		var (
			page []T
			resp *github.Response
		)

		err := s.call(ctx, func() (*github.Response, error) {
			var err error
			page, resp, err = list(opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}

		out = append(out, page...)

		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return out, nil
}

// absent turns a not found answer into the zero payload of an optional file
func absent[T any](value T, err error, empty T) (T, error) {
	if errors.Is(err, model.ErrNotFound) {
		return empty, nil
	}
	return value, err
}

func formatTimestamp(ts *github.Timestamp) string {
	if ts == nil || ts.Time.IsZero() {
		return ""
	}
	return ts.Time.UTC().Format(time.RFC3339)
}

func (s githubService) fetchGeneralInfo(ctx context.Context, ref model.RepoRef, loadCommits func(context.Context, model.RepoRef) ([]model.CommitSummary, error)) (model.GeneralInfo, error) {
	var repo *github.Repository

	err := s.call(ctx, func() (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		repo, resp, err = s.githubClient.Repositories.Get(ctx, ref.Owner, ref.Repo)
		return resp, err
	})
	if err != nil {
		return model.GeneralInfo{}, err
	}

	if repo == nil || repo.GetFullName() == "" {
		return model.GeneralInfo{}, fmt.Errorf("%w: repository %s without full name", model.ErrInvalidData, ref.FullName())
	}

	commits, err := loadCommits(ctx, ref)
	if err != nil {
		return model.GeneralInfo{}, err
	}

	license := repo.GetLicense().GetSPDXID()
	if license == "" {
		license = repo.GetLicense().GetName()
	}

	topics := repo.Topics
	if topics == nil {
		topics = []string{}
	}

	return model.GeneralInfo{
		FullName:         repo.GetFullName(),
		HTMLURL:          repo.GetHTMLURL(),
		Description:      repo.GetDescription(),
		Archived:         repo.GetArchived(),
		Fork:             repo.GetFork(),
		DefaultBranch:    repo.GetDefaultBranch(),
		License:          license,
		Size:             repo.GetSize(),
		Language:         repo.GetLanguage(),
		Topics:           topics,
		StargazersCount:  repo.GetStargazersCount(),
		ForksCount:       repo.GetForksCount(),
		OpenIssuesCount:  repo.GetOpenIssuesCount(),
		SubscribersCount: repo.GetSubscribersCount(),
		WatchersCount:    repo.GetWatchersCount(),
		CommitsCount:     len(commits),
		CreatedAt:        formatTimestamp(repo.CreatedAt),
		UpdatedAt:        formatTimestamp(repo.UpdatedAt),
		PushedAt:         formatTimestamp(repo.PushedAt),
	}, nil
}

// commits are stored as simplified objects to keep snapshots small
func (s githubService) fetchCommits(ctx context.Context, ref model.RepoRef) ([]model.CommitSummary, error) {
	commits, err := paginate(ctx, s, func(opts github.ListOptions) ([]*github.RepositoryCommit, *github.Response, error) {
		return s.githubClient.Repositories.ListCommits(ctx, ref.Owner, ref.Repo, &github.CommitsListOptions{ListOptions: opts})
	})
	commits, err = absent(commits, err, []*github.RepositoryCommit{})
	if err != nil {
		return nil, err
	}

	out := make([]model.CommitSummary, 0, len(commits))
	for _, c := range commits {
		author := c.GetCommit().GetAuthor()
		out = append(out, model.CommitSummary{
			SHA:     c.GetSHA(),
			Author:  author.GetName(),
			Date:    formatTimestamp(author.Date),
			Message: c.GetCommit().GetMessage(),
		})
	}

	return out, nil
}

func (s githubService) fetchForks(ctx context.Context, ref model.RepoRef) (any, error) {
	forks, err := paginate(ctx, s, func(opts github.ListOptions) ([]*github.Repository, *github.Response, error) {
		return s.githubClient.Repositories.ListForks(ctx, ref.Owner, ref.Repo, &github.RepositoryListForksOptions{ListOptions: opts})
	})
	forks, err = absent(forks, err, []*github.Repository{})
	if err != nil {
		return nil, err
	}

	out := make([]model.ForkSummary, 0, len(forks))
	for _, f := range forks {
		out = append(out, model.ForkSummary{
			ForkedAt: formatTimestamp(f.CreatedAt),
			Owner:    f.GetOwner().GetLogin(),
			FullName: f.GetFullName(),
			HTMLURL:  f.GetHTMLURL(),
		})
	}

	return out, nil
}

// stargazers are listed with the star date, github only returns it with the star media type that go-github sets
func (s githubService) fetchStars(ctx context.Context, ref model.RepoRef) (any, error) {
	stars, err := paginate(ctx, s, func(opts github.ListOptions) ([]*github.Stargazer, *github.Response, error) {
		return s.githubClient.Activity.ListStargazers(ctx, ref.Owner, ref.Repo, &opts)
	})
	stars, err = absent(stars, err, []*github.Stargazer{})
	if err != nil {
		return nil, err
	}

	out := make([]model.StarSummary, 0, len(stars))
	for _, st := range stars {
		out = append(out, model.StarSummary{
			StarredAt: formatTimestamp(st.StarredAt),
			User:      st.GetUser().GetLogin(),
		})
	}

	return out, nil
}

func (s githubService) fetchContributors(ctx context.Context, ref model.RepoRef) (any, error) {
	contributors, err := paginate(ctx, s, func(opts github.ListOptions) ([]*github.Contributor, *github.Response, error) {
		return s.githubClient.Repositories.ListContributors(ctx, ref.Owner, ref.Repo, &github.ListContributorsOptions{ListOptions: opts})
	})
	contributors, err = absent(contributors, err, []*github.Contributor{})
	if err != nil {
		return nil, err
	}

	out := make([]model.ContributorSummary, 0, len(contributors))
	for _, c := range contributors {
		out = append(out, model.ContributorSummary{
			Login:         c.GetLogin(),
			Contributions: c.GetContributions(),
		})
	}

	return out, nil
}

func (s githubService) fetchPullRequests(ctx context.Context, ref model.RepoRef) (any, error) {
	pulls, err := paginate(ctx, s, func(opts github.ListOptions) ([]*github.PullRequest, *github.Response, error) {
		return s.githubClient.PullRequests.List(ctx, ref.Owner, ref.Repo, &github.PullRequestListOptions{State: "all", ListOptions: opts})
	})
	pulls, err = absent(pulls, err, []*github.PullRequest{})
	if err != nil {
		return nil, err
	}

	out := make([]model.PullRequestSummary, 0, len(pulls))
	for _, pr := range pulls {
		out = append(out, model.PullRequestSummary{
			ID:        pr.GetID(),
			Number:    pr.GetNumber(),
			State:     pr.GetState(),
			Title:     pr.GetTitle(),
			CreatedAt: formatTimestamp(pr.CreatedAt),
			ClosedAt:  formatTimestamp(pr.ClosedAt),
			MergedAt:  formatTimestamp(pr.MergedAt),
			User:      pr.GetUser().GetLogin(),
		})
	}

	return out, nil
}

// the issues endpoint also lists pull requests, they are filtered out
func (s githubService) fetchIssues(ctx context.Context, ref model.RepoRef) (any, error) {
	issues, err := paginate(ctx, s, func(opts github.ListOptions) ([]*github.Issue, *github.Response, error) {
		return s.githubClient.Issues.ListByRepo(ctx, ref.Owner, ref.Repo, &github.IssueListByRepoOptions{State: "all", ListOptions: opts})
	})
	issues, err = absent(issues, err, []*github.Issue{})
	if err != nil {
		return nil, err
	}

	out := make([]model.IssueSummary, 0, len(issues))
	for _, is := range issues {
		if is.IsPullRequest() {
			continue
		}

		out = append(out, model.IssueSummary{
			Number:    is.GetNumber(),
			Title:     is.GetTitle(),
			State:     is.GetState(),
			CreatedAt: formatTimestamp(is.CreatedAt),
			ClosedAt:  formatTimestamp(is.ClosedAt),
			Author:    is.GetUser().GetLogin(),
		})
	}

	return out, nil
}

func (s githubService) fetchReadme(ctx context.Context, ref model.RepoRef) (any, error) {
	var readme *github.RepositoryContent

	err := s.call(ctx, func() (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		readme, resp, err = s.githubClient.Repositories.GetReadme(ctx, ref.Owner, ref.Repo, nil)
		return resp, err
	})
	readme, err = absent(readme, err, nil)
	if err != nil {
		return nil, err
	}

	return model.ReadmeInfo{
		DownloadURL: readme.GetDownloadURL(),
		Path:        readme.GetPath(),
		Name:        readme.GetName(),
	}, nil
}

func (s githubService) fetchLicense(ctx context.Context, ref model.RepoRef) (any, error) {
	var license *github.RepositoryLicense

	err := s.call(ctx, func() (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		license, resp, err = s.githubClient.Repositories.License(ctx, ref.Owner, ref.Repo)
		return resp, err
	})
	license, err = absent(license, err, nil)
	if err != nil {
		return nil, err
	}

	return model.LicenseInfo{
		SPDXID: license.GetLicense().GetSPDXID(),
		Name:   license.GetLicense().GetName(),
	}, nil
}

func (s githubService) fetchLanguages(ctx context.Context, ref model.RepoRef) (any, error) {
	var languages map[string]int

	err := s.call(ctx, func() (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		languages, resp, err = s.githubClient.Repositories.ListLanguages(ctx, ref.Owner, ref.Repo)
		return resp, err
	})
	languages, err = absent(languages, err, nil)
	if err != nil {
		return nil, err
	}

	if languages == nil {
		languages = map[string]int{}
	}

	return languages, nil
}

// fetchWeeklyActivity polls the stats endpoint while github answers 202.
// When the statistics never become available an empty list is saved, as for a repository without commits.
func (s githubService) fetchWeeklyActivity(ctx context.Context, ref model.RepoRef) (any, error) {
	retries := max(s.config.Github.StatsRetries, 1)

	for attempt := 1; attempt <= retries; attempt++ {
		var activity []*github.WeeklyCommitActivity

		err := s.call(ctx, func() (*github.Response, error) {
			var (
				resp *github.Response
				err  error
			)
			activity, resp, err = s.githubClient.Repositories.ListCommitActivity(ctx, ref.Owner, ref.Repo)
			return resp, err
		})

		if errors.Is(err, errStatsPending) {
			log.WithFields(log.Fields{
				"repository": ref.FullName(),
				"attempt":    fmt.Sprintf("%d/%d", attempt, retries),
				"wait":       s.config.Github.StatsRetryDelay.String(),
			}).Info("commit statistics are being generated, waiting")

			if attempt < retries {
				if err := s.sleep(ctx, s.config.Github.StatsRetryDelay); err != nil {
					return nil, err
				}
			}
			continue
		}

		activity, err = absent(activity, err, nil)
		if err != nil {
			return nil, err
		}

		out := make([]model.WeeklyActivity, 0, len(activity))
		for _, w := range activity {
			out = append(out, model.WeeklyActivity{
				Week:  w.GetWeek().Time.UTC().Format(dateLayout),
				Total: w.GetTotal(),
			})
		}

		return out, nil
	}

	log.WithField("repository", ref.FullName()).Warn("commit statistics still not available, saving an empty activity")
	return []model.WeeklyActivity{}, nil
}

func (s githubService) getContents(ctx context.Context, ref model.RepoRef, path string) (*github.RepositoryContent, []*github.RepositoryContent, error) {
	var (
		file *github.RepositoryContent
		dir  []*github.RepositoryContent
	)

	err := s.call(ctx, func() (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		file, dir, resp, err = s.githubClient.Repositories.GetContents(ctx, ref.Owner, ref.Repo, path, nil)
		return resp, err
	})

	return file, dir, err
}

// probeFile returns the first candidate path holding a file
func (s githubService) probeFile(ctx context.Context, ref model.RepoRef, candidates []string, withPreview bool) (model.FileProbe, error) {
	for _, path := range candidates {
		file, _, err := s.getContents(ctx, ref, path)
		if errors.Is(err, model.ErrNotFound) {
			continue
		}
		if err != nil {
			return model.FileProbe{}, err
		}
		if file == nil || file.GetDownloadURL() == "" {
			continue
		}

		probe := model.FileProbe{
			Found:       true,
			Path:        path,
			DownloadURL: file.GetDownloadURL(),
		}

		if withPreview {
			if content, err := file.GetContent(); err == nil {
				probe.Preview = truncateRunes(content, previewMaxRunes)
			}
		}

		return probe, nil
	}

	return model.FileProbe{}, nil
}

func (s githubService) listDirectory(ctx context.Context, ref model.RepoRef, path string) ([]*github.RepositoryContent, error) {
	_, dir, err := s.getContents(ctx, ref, path)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}

	return dir, err
}

// an issue template is either a file of .github/ISSUE_TEMPLATE or a single ISSUE_TEMPLATE.md
func (s githubService) fetchIssueTemplate(ctx context.Context, ref model.RepoRef) (any, error) {
	entries, err := s.listDirectory(ctx, ref, issueTemplateDir)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.GetType() == "file" || e.GetType() == "" {
			files = append(files, e.GetName())
		}
	}
	sort.Strings(files)

	if len(files) > 0 {
		return model.IssueTemplateInfo{HasIssueTemplate: true, Files: files}, nil
	}

	probe, err := s.probeFile(ctx, ref, issueTemplateCandidates, false)
	if err != nil {
		return nil, err
	}

	if probe.Found {
		files = append(files, probe.Path)
	}

	return model.IssueTemplateInfo{HasIssueTemplate: probe.Found, Files: files}, nil
}

func (s githubService) fetchPRTemplate(ctx context.Context, ref model.RepoRef) (any, error) {
	probe, err := s.probeFile(ctx, ref, prTemplateCandidates, false)
	if err != nil {
		return nil, err
	}

	if probe.Found {
		return model.PRTemplateInfo{HasPRTemplate: true, Path: probe.Path, DownloadURL: probe.DownloadURL}, nil
	}

	entries, err := s.listDirectory(ctx, ref, prTemplateDir)
	if err != nil {
		return nil, err
	}

	if len(entries) > 0 {
		return model.PRTemplateInfo{HasPRTemplate: true, Path: prTemplateDir + "/"}, nil
	}

	return model.PRTemplateInfo{}, nil
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

package service

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/robotics-oss/ros-repo-metrics/config"
	"github.com/robotics-oss/ros-repo-metrics/model"
	"github.com/robotics-oss/ros-repo-metrics/storage"
	log "github.com/sirupsen/logrus"
)

type RepoService interface {
	ExtractUnique(ctx context.Context) error
	Overlap(ctx context.Context) error
	UniqueRepositories(records []model.PackageRecord) ([]model.UniqueRepository, []model.RepositoryByDistro)
	OverlapMetrics(records []model.PackageRecord) []model.OverlapMetric
}

type repoService struct {
	artifacts Artifacts
	config    config.Config
}

func NewRepoService(config config.Config) RepoService {
	return repoService{
		artifacts: NewArtifacts(config),
		config:    config,
	}
}

func (s repoService) resolvedRecords() ([]model.PackageRecord, error) {
	rows, err := storage.ReadCSV(s.artifacts.Bucket(model.BucketResolved))
	if err != nil {
		return nil, err
	}

	records := make([]model.PackageRecord, 0, len(rows))
	for _, row := range rows {
		r := model.PackageRecordFromCSV(row)
		if r.IsGithub() {
			records = append(records, r)
		}
	}

	return records, nil
}

// ExtractUnique writes the deduplicated repository list and its per-distribution breakdown
func (s repoService) ExtractUnique(_ context.Context) error {
	records, err := s.resolvedRecords()
	if err != nil {
		return err
	}

	unique, byDistro := s.UniqueRepositories(records)

	if err := storage.WriteCSV(s.artifacts.UniqueRepos(), model.UniqueRepositoryHeader(), unique); err != nil {
		return err
	}

	if err := storage.WriteCSV(s.artifacts.UniqueReposByDistro(), model.RepositoryByDistroHeader(), byDistro); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"repositories": len(unique),
		"byDistroRows": len(byDistro),
		"resolvedRows": len(records),
		"path":         s.artifacts.UniqueRepos(),
	}).Info("unique repositories saved")

	return nil
}

type repoAggregate struct {
	repo     model.UniqueRepository
	distros  map[string]int
	packages map[string]bool
	via      map[string]int
}

// UniqueRepositories groups records by case-insensitive owner/repo.
// The first spelling seen is kept for the full name and canonical URL.
func (s repoService) UniqueRepositories(records []model.PackageRecord) ([]model.UniqueRepository, []model.RepositoryByDistro) {
	aggregates := make(map[string]*repoAggregate)

	for _, r := range records {
		id := model.RepoIdentity(r.GithubOwner, r.GithubRepo)
		if id == "" {
			continue
		}

		agg, found := aggregates[id]
		if !found {
			agg = &repoAggregate{
				repo: model.UniqueRepository{
					FullName: r.GithubOwner + "/" + r.GithubRepo,
					RepoURL:  model.CanonicalRepoURL(r.GithubOwner, r.GithubRepo),
				},
				distros:  make(map[string]int),
				packages: make(map[string]bool),
				via:      make(map[string]int),
			}
			aggregates[id] = agg
		}

		via := r.ResolvedVia
		if via == "" {
			via = model.ViaNone
		}

		agg.distros[r.Distro]++
		agg.packages[model.NormalizeKey(r.Package)] = true
		agg.via[via]++
	}

	unique := make([]model.UniqueRepository, 0, len(aggregates))
	byDistro := make([]model.RepositoryByDistro, 0)

	for _, agg := range aggregates {
		repo := agg.repo
		repo.Distros = sortedKeys(agg.distros)
		repo.NPackagesTotal = len(agg.packages)
		repo.ResolvedViaBreakdown = viaBreakdown(agg.via)
		unique = append(unique, repo)

		for _, d := range repo.Distros {
			byDistro = append(byDistro, model.RepositoryByDistro{
				FullName:          repo.FullName,
				Distro:            d,
				NPackagesInDistro: agg.distros[d],
				RepoURL:           repo.RepoURL,
			})
		}
	}

	sort.Slice(unique, func(i, j int) bool {
		if unique[i].NPackagesTotal != unique[j].NPackagesTotal {
			return unique[i].NPackagesTotal > unique[j].NPackagesTotal
		}
		return strings.ToLower(unique[i].FullName) < strings.ToLower(unique[j].FullName)
	})

	sort.Slice(byDistro, func(i, j int) bool {
		if byDistro[i].Distro != byDistro[j].Distro {
			return byDistro[i].Distro < byDistro[j].Distro
		}
		return strings.ToLower(byDistro[i].FullName) < strings.ToLower(byDistro[j].FullName)
	})

	return unique, byDistro
}

// viaBreakdown renders "via:count" pairs, most frequent first
func viaBreakdown(via map[string]int) string {
	keys := sortedKeys(via)
	sort.SliceStable(keys, func(i, j int) bool { return via[keys[i]] > via[keys[j]] })

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%d", k, via[k]))
	}

	return strings.Join(parts, ";")
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// Overlap writes how repositories are shared between distributions
func (s repoService) Overlap(_ context.Context) error {
	records, err := s.resolvedRecords()
	if err != nil {
		return err
	}

	metrics := s.OverlapMetrics(records)
	for _, m := range metrics {
		log.WithFields(log.Fields{
			"metric": m.Metric,
			"value":  m.Value,
		}).Info("repository overlap")
	}

	return storage.WriteCSV(s.artifacts.Overlap(), model.OverlapMetricHeader(), metrics)
}

func (s repoService) OverlapMetrics(records []model.PackageRecord) []model.OverlapMetric {
	repoDistros := make(map[string]map[string]bool)
	for _, r := range records {
		id := model.RepoIdentity(r.GithubOwner, r.GithubRepo)
		if id == "" || r.Distro == "" {
			continue
		}
		if repoDistros[id] == nil {
			repoDistros[id] = make(map[string]bool)
		}
		repoDistros[id][r.Distro] = true
	}

	// configured distributions first so the summary keeps the same rows when one has no repository
	distros := append([]string{}, s.config.Pipeline.Distros...)
	extra := make(map[string]bool)
	for _, ds := range repoDistros {
		for d := range ds {
			if !slices.Contains(distros, d) {
				extra[d] = true
			}
		}
	}
	distros = append(distros, sortedKeys(extra)...)

	perDistro := make(map[string]int)
	exclusive := make(map[string]int)
	bySize := make(map[int]int)
	exactSets := make(map[string]int)
	pairs := make(map[string]int)
	inAll := 0

	for _, ds := range repoDistros {
		set := sortedKeys(ds)

		for _, d := range set {
			perDistro[d]++
		}
		for i := 0; i < len(set); i++ {
			for j := i + 1; j < len(set); j++ {
				pairs[pairKey(set[i], set[j])]++
			}
		}

		if len(set) == 1 {
			exclusive[set[0]]++
		}
		if len(set) == len(distros) {
			inAll++
		}

		bySize[len(set)]++
		exactSets[strings.Join(set, "|")]++
	}

	metrics := []model.OverlapMetric{{Metric: "unique_repos_total", Value: len(repoDistros)}}
	for _, d := range distros {
		metrics = append(metrics,
			model.OverlapMetric{Metric: "unique_repos_in_" + d, Value: perDistro[d]},
			model.OverlapMetric{Metric: "exclusive_only_" + d, Value: exclusive[d]},
		)
	}

	for i := 0; i < len(distros); i++ {
		for j := i + 1; j < len(distros); j++ {
			key := pairKey(distros[i], distros[j])
			metrics = append(metrics, model.OverlapMetric{Metric: "overlap_" + key, Value: pairs[key]})
		}
	}

	metrics = append(metrics, model.OverlapMetric{Metric: "overlap_all", Value: inAll})

	for k := 1; k <= len(distros); k++ {
		metrics = append(metrics, model.OverlapMetric{Metric: fmt.Sprintf("repos_in_%d_distros", k), Value: bySize[k]})
	}

	for _, set := range sortedKeys(exactSets) {
		metrics = append(metrics, model.OverlapMetric{Metric: "exact_set_" + set, Value: exactSets[set]})
	}

	return metrics
}

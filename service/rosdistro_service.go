package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"github.com/robotics-oss/ros-repo-metrics/config"
	"github.com/robotics-oss/ros-repo-metrics/httputil"
	"github.com/robotics-oss/ros-repo-metrics/model"
	"github.com/robotics-oss/ros-repo-metrics/storage"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// rosdistroIndex is the top-level index-v4.yaml listing every distribution
type rosdistroIndex struct {
	Distributions map[string]struct {
		Distribution stringList `yaml:"distribution"`
		Status       string     `yaml:"distribution_status"`
	} `yaml:"distributions"`
}

// stringList accepts either a scalar or a sequence
type stringList []string

func (l *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	}

	return fmt.Errorf("line %d: expected a string or a list", value.Line)
}

type distributionFile struct {
	Repositories map[string]distributionRepository `yaml:"repositories"`
}

type distributionRepository struct {
	Doc     *vcsSpec     `yaml:"doc"`
	Source  *vcsSpec     `yaml:"source"`
	Release *releaseSpec `yaml:"release"`
	Status  string       `yaml:"status"`
}

type vcsSpec struct {
	Type    string `yaml:"type"`
	URL     string `yaml:"url"`
	Version string `yaml:"version"`
}

type releaseSpec struct {
	URL      string            `yaml:"url"`
	Version  string            `yaml:"version"`
	Packages []string          `yaml:"packages"`
	Tags     map[string]string `yaml:"tags"`
}

func (v *vcsSpec) url() string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(v.URL)
}

type RosdistroService interface {
	BuildMapping(ctx context.Context) error
	LoadRepoTable(distro string) (map[string]model.RepoTableEntry, error)
}

type rosdistroService struct {
	client    *httputil.Client
	artifacts Artifacts
	config    config.Config
}

func NewRosdistroService(config config.Config, client *httputil.Client) RosdistroService {
	return rosdistroService{
		client:    client,
		artifacts: NewArtifacts(config),
		config:    config,
	}
}

// BuildMapping writes the repo table of every distribution
func (s rosdistroService) BuildMapping(ctx context.Context) error {
	var index *rosdistroIndex

	for _, d := range s.config.Pipeline.Distros {
		log.WithField("distro", d).Info("loading distribution manifest")

		var files []distributionFile
		var err error

		if s.config.Rosdistro.LocalDir != "" {
			files, err = s.loadLocalDistribution(d)
		} else {
			if index == nil {
				if index, err = s.loadIndex(ctx); err != nil {
					return err
				}
			}
			files, err = s.loadRemoteDistribution(ctx, index, d)
		}

		if err != nil {
			return err
		}

		table := buildRepoTable(files...)

		reposWithRelease, releasedPkgs := 0, 0
		for _, entry := range table {
			if len(entry.PackagesReleased) > 0 {
				reposWithRelease++
				releasedPkgs += len(entry.PackagesReleased)
			}
		}

		out := s.artifacts.RepoTable(d)
		if err := storage.WriteJSON(out, table); err != nil {
			return err
		}

		log.WithFields(log.Fields{
			"distro":           d,
			"repos":            len(table),
			"reposWithRelease": reposWithRelease,
			"releasedPackages": releasedPkgs,
			"path":             out,
		}).Info("repo table saved")
	}

	return nil
}

func (s rosdistroService) LoadRepoTable(distro string) (map[string]model.RepoTableEntry, error) {
	table := make(map[string]model.RepoTableEntry)
	if err := storage.ReadJSON(s.artifacts.RepoTable(distro), &table); err != nil {
		return nil, err
	}

	return table, nil
}

func (s rosdistroService) loadIndex(ctx context.Context) (*rosdistroIndex, error) {
	body, err := s.client.Get(ctx, s.config.Rosdistro.IndexURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrUpstreamUnavailable, s.config.Rosdistro.IndexURL, err)
	}

	var index rosdistroIndex
	if err := yaml.Unmarshal(body, &index); err != nil {
		return nil, fmt.Errorf("%w: rosdistro index: %v", model.ErrInvalidData, err)
	}

	return &index, nil
}

func (s rosdistroService) loadRemoteDistribution(ctx context.Context, index *rosdistroIndex, distro string) ([]distributionFile, error) {
	entry, ok := index.Distributions[distro]
	if !ok {
		return nil, fmt.Errorf("%w: distro %q not found in rosdistro index %s", model.ErrInvalidData, distro, s.config.Rosdistro.IndexURL)
	}

	base, err := url.Parse(s.config.Rosdistro.IndexURL)
	if err != nil {
		return nil, err
	}

	files := make([]distributionFile, 0, len(entry.Distribution))
	for _, rel := range entry.Distribution {
		ref, err := url.Parse(rel)
		if err != nil {
			return nil, fmt.Errorf("%w: distribution file %q: %v", model.ErrInvalidData, rel, err)
		}

		target := base.ResolveReference(ref).String()
		body, err := s.client.Get(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", model.ErrUpstreamUnavailable, target, err)
		}

		file, err := parseDistributionFile(body)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", target, err)
		}
		files = append(files, file)
	}

	return files, nil
}

func (s rosdistroService) loadLocalDistribution(distro string) ([]distributionFile, error) {
	path := filepath.Join(s.config.Rosdistro.LocalDir, distro, "distribution.yaml")

	body, err := storage.ReadFile(path)
	if errors.Is(err, model.ErrMissingInput) {
		return nil, fmt.Errorf("%w: %v", model.ErrUpstreamUnavailable, err)
	}
	if err != nil {
		return nil, err
	}

	file, err := parseDistributionFile(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return []distributionFile{file}, nil
}

func parseDistributionFile(body []byte) (distributionFile, error) {
	var file distributionFile
	if err := yaml.Unmarshal(body, &file); err != nil {
		return file, fmt.Errorf("%w: distribution file: %v", model.ErrInvalidData, err)
	}

	return file, nil
}

// buildRepoTable merges distribution files (later files win per repository)
// and lists the packages each repository releases, defaulting to the repo key itself.
func buildRepoTable(files ...distributionFile) map[string]model.RepoTableEntry {
	merged := make(map[string]distributionRepository)
	for _, f := range files {
		for key, repo := range f.Repositories {
			merged[key] = repo
		}
	}

	table := make(map[string]model.RepoTableEntry, len(merged))
	for key, repo := range merged {
		entry := model.RepoTableEntry{
			RepoKey:          key,
			URLSource:        repo.Source.url(),
			URLDoc:           repo.Doc.url(),
			Status:           repo.Status,
			PackagesReleased: []string{},
		}

		if repo.Release != nil {
			entry.URLRelease = strings.TrimSpace(repo.Release.URL)
			entry.ReleaseVersion = strings.TrimSpace(repo.Release.Version)

			pkgs := repo.Release.Packages
			if len(pkgs) == 0 {
				pkgs = []string{key}
			}

			entry.PackagesReleased = append(entry.PackagesReleased, pkgs...)
			sort.Strings(entry.PackagesReleased)
		}

		table[key] = entry
	}

	return table
}

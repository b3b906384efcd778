package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/robotics-oss/ros-repo-metrics/config"
	"github.com/robotics-oss/ros-repo-metrics/httputil"
	"github.com/robotics-oss/ros-repo-metrics/model"
	"github.com/robotics-oss/ros-repo-metrics/storage"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

type IndexService interface {
	FetchIndex(ctx context.Context) error
	LoadIndexPackages(distro string) ([]model.IndexPackage, error)
}

type indexService struct {
	client    *httputil.Client
	artifacts Artifacts
	config    config.Config
}

func NewIndexService(config config.Config, client *httputil.Client) IndexService {
	return indexService{
		client:    client,
		artifacts: NewArtifacts(config),
		config:    config,
	}
}

// FetchIndex downloads the package listing of every distribution.
// A single unreachable listing fails the stage: the join needs all of them.
func (s indexService) FetchIndex(ctx context.Context) error {
	for _, d := range s.config.Pipeline.Distros {
		url := fmt.Sprintf(s.config.Index.JSONURLTemplate, d)
		log.WithField("url", url).Info("fetch package index listing")

		body, err := s.client.Get(ctx, url)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", model.ErrUpstreamUnavailable, url, err)
		}

		pkgs, err := ParseIndexPackages(body)
		if err != nil {
			return fmt.Errorf("listing for %s: %w", d, err)
		}

		out := s.artifacts.IndexJSON(d)
		if err := storage.WriteFile(out, pretty.Pretty(body)); err != nil {
			return err
		}

		log.WithFields(log.Fields{
			"distro":   d,
			"packages": len(pkgs),
			"path":     out,
		}).Info("package index listing saved")
	}

	return nil
}

func (s indexService) LoadIndexPackages(distro string) ([]model.IndexPackage, error) {
	data, err := storage.ReadFile(s.artifacts.IndexJSON(distro))
	if err != nil {
		return nil, err
	}

	return ParseIndexPackages(data)
}

// ParseIndexPackages accepts a bare list of rows or an object with a "packages" list.
// Rows without a package name are skipped; names are deduplicated by normalized key and sorted.
func ParseIndexPackages(data []byte) ([]model.IndexPackage, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: index listing is not valid JSON", model.ErrInvalidData)
	}

	rows := gjson.ParseBytes(data)
	if rows.IsObject() {
		rows = rows.Get("packages")
	}

	if !rows.IsArray() {
		return nil, fmt.Errorf("%w: index listing has no package list", model.ErrInvalidData)
	}

	seen := make(map[string]bool)
	pkgs := make([]model.IndexPackage, 0)

	rows.ForEach(func(_, row gjson.Result) bool {
		if !row.IsObject() {
			return true
		}

		name := strings.TrimSpace(row.Get("package").String())
		key := model.NormalizeKey(name)
		if name == "" || seen[key] {
			return true
		}

		seen[key] = true
		pkgs = append(pkgs, model.IndexPackage{
			Name:    name,
			Version: strings.TrimSpace(row.Get("version").String()),
		})

		return true
	})

	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Name < pkgs[j].Name })

	return pkgs, nil
}

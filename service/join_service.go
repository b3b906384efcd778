package service

import (
	"context"
	"sort"

	"github.com/robotics-oss/ros-repo-metrics/config"
	"github.com/robotics-oss/ros-repo-metrics/model"
	"github.com/robotics-oss/ros-repo-metrics/storage"
	log "github.com/sirupsen/logrus"
)

type JoinService interface {
	Join(ctx context.Context) error
	JoinDistro(pkgs []model.IndexPackage, table map[string]model.RepoTableEntry, distro string) []model.PackageRecord
}

type joinService struct {
	index     IndexService
	rosdistro RosdistroService
	artifacts Artifacts
	config    config.Config
}

func NewJoinService(config config.Config, index IndexService, rosdistro RosdistroService) JoinService {
	return joinService{
		index:     index,
		rosdistro: rosdistro,
		artifacts: NewArtifacts(config),
		config:    config,
	}
}

// Join merges the index listings with the repo tables of every distribution
func (s joinService) Join(ctx context.Context) error {
	rows := make([]model.PackageRecord, 0)

	for _, d := range s.config.Pipeline.Distros {
		if err := ctx.Err(); err != nil {
			return err
		}

		pkgs, err := s.index.LoadIndexPackages(d)
		if err != nil {
			return err
		}

		table, err := s.rosdistro.LoadRepoTable(d)
		if err != nil {
			return err
		}

		joined := s.JoinDistro(pkgs, table, d)

		resolved := 0
		for _, r := range joined {
			if r.Resolved {
				resolved++
			}
		}

		log.WithFields(log.Fields{
			"distro":    d,
			"indexPkgs": len(pkgs),
			"resolved":  resolved,
		}).Info("joined index with rosdistro")

		rows = append(rows, joined...)
	}

	if err := storage.WriteCSV(s.artifacts.Mapping(), model.PackageRecordHeader(), rows); err != nil {
		return err
	}

	if err := storage.WriteJSONLines(s.artifacts.MappingJSONL(), rows); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"rows": len(rows),
		"path": s.artifacts.Mapping(),
	}).Info("package mapping saved")

	return nil
}

// JoinDistro resolves each index package to a manifest repository.
// Released package lists are tried first, then a repository whose key equals the package name.
// Names are compared through model.NormalizeKey.
func (s joinService) JoinDistro(pkgs []model.IndexPackage, table map[string]model.RepoTableEntry, distro string) []model.PackageRecord {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	releasedBy := make(map[string]string)
	keyByName := make(map[string]string)

	for _, k := range keys {
		if _, found := keyByName[model.NormalizeKey(k)]; !found {
			keyByName[model.NormalizeKey(k)] = k
		}

		for _, pkg := range table[k].PackagesReleased {
			if _, found := releasedBy[model.NormalizeKey(pkg)]; !found {
				releasedBy[model.NormalizeKey(pkg)] = k
			}
		}
	}

	records := make([]model.PackageRecord, 0, len(pkgs))
	for _, pkg := range pkgs {
		record := model.PackageRecord{
			Distro:  distro,
			Package: pkg.Name,
			Version: pkg.Version,
		}

		if key, found := releasedBy[model.NormalizeKey(pkg.Name)]; found {
			record.RepoKey = key
			record.ResolvedVia = model.ViaReleasePackages
		} else if key, found := keyByName[model.NormalizeKey(pkg.Name)]; found {
			if u, _ := table[key].BestURL(); u != "" {
				record.RepoKey = key
				record.ResolvedVia = model.ViaRepoKeyName
			}
		}

		if record.RepoKey != "" {
			entry := table[record.RepoKey]
			record.RepoURL, record.RepoURLType = entry.BestURL()
			if record.Version == "" {
				record.Version = entry.ReleaseVersion
			}
		}

		record.Refresh()
		records = append(records, record)
	}

	return records
}

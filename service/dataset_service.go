package service

import (
	"context"
	"slices"

	"github.com/robotics-oss/ros-repo-metrics/config"
	"github.com/robotics-oss/ros-repo-metrics/model"
	"github.com/robotics-oss/ros-repo-metrics/storage"
	log "github.com/sirupsen/logrus"
)

type DatasetService interface {
	BuildFinal(ctx context.Context) error
	BuildPaper(ctx context.Context) error
	PaperRecords(records []model.PackageRecord) []model.PaperRecord
}

type datasetService struct {
	artifacts Artifacts
	config    config.Config
}

func NewDatasetService(config config.Config) DatasetService {
	return datasetService{
		artifacts: NewArtifacts(config),
		config:    config,
	}
}

func (s datasetService) readRecords(path string) ([]model.PackageRecord, error) {
	rows, err := storage.ReadCSV(path)
	if err != nil {
		return nil, err
	}

	records := make([]model.PackageRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, model.PackageRecordFromCSV(row))
	}

	return records, nil
}

// BuildFinal keeps the resolved GitHub rows, one file per distribution plus one for all of them
func (s datasetService) BuildFinal(_ context.Context) error {
	records, err := s.readRecords(s.artifacts.Bucket(model.BucketResolved))
	if err != nil {
		return err
	}

	kept := make([]model.PackageRecord, 0, len(records))
	byDistro := make(map[string][]model.PackageRecord)
	order := append([]string{}, s.config.Pipeline.Distros...)

	for _, r := range records {
		if !r.IsGithub() {
			continue
		}

		if _, found := byDistro[r.Distro]; !found && !slices.Contains(order, r.Distro) {
			order = append(order, r.Distro)
		}

		kept = append(kept, r)
		byDistro[r.Distro] = append(byDistro[r.Distro], r)
	}

	for _, d := range order {
		rs := byDistro[d]
		if rs == nil {
			rs = []model.PackageRecord{}
		}

		if err := storage.WriteCSV(s.artifacts.FinalDistro(d), model.PackageRecordHeader(), rs); err != nil {
			return err
		}

		log.WithFields(log.Fields{
			"distro": d,
			"rows":   len(rs),
			"path":   s.artifacts.FinalDistro(d),
		}).Info("final distro dataset saved")
	}

	if err := storage.WriteCSV(s.artifacts.FinalAllDistros(), model.PackageRecordHeader(), kept); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"rows": len(kept),
		"path": s.artifacts.FinalAllDistros(),
	}).Info("final dataset saved")

	return nil
}

// BuildPaper writes every package with its normalized URL, and the GitHub subset
func (s datasetService) BuildPaper(_ context.Context) error {
	records, err := s.readRecords(s.artifacts.MappingFilled())
	if err != nil {
		return err
	}

	all := s.PaperRecords(records)
	github := make([]model.PaperRecord, 0, len(all))
	for _, r := range all {
		if r.IsGithub {
			github = append(github, r)
		}
	}

	if err := storage.WriteCSV(s.artifacts.PaperAll(), model.PaperRecordHeader(), all); err != nil {
		return err
	}

	if err := storage.WriteCSV(s.artifacts.PaperGithubOnly(), model.PaperRecordHeader(), github); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"rows":       len(all),
		"githubRows": len(github),
		"path":       s.artifacts.PaperAll(),
	}).Info("paper dataset saved")

	return nil
}

func (s datasetService) PaperRecords(records []model.PackageRecord) []model.PaperRecord {
	out := make([]model.PaperRecord, 0, len(records))

	for _, r := range records {
		normalized := model.NormalizeURL(r.RepoURL)
		owner, repo := model.ParseGithubOwnerRepo(normalized)

		fullName := ""
		if owner != "" && repo != "" {
			fullName = owner + "/" + repo
		}

		via := r.ResolvedVia
		if via == "" {
			via = model.ViaNone
		}

		out = append(out, model.PaperRecord{
			Distro:          r.Distro,
			Package:         r.Package,
			RepoKey:         r.RepoKey,
			RepoURL:         r.RepoURL,
			RepoURLNorm:     normalized,
			Host:            model.HostOf(normalized),
			ResolvedRepoURL: normalized != "",
			IsGithub:        fullName != "",
			GithubOwner:     owner,
			GithubRepo:      repo,
			FullName:        fullName,
			RepoURLType:     r.RepoURLType,
			ResolvedVia:     via,
		})
	}

	return out
}

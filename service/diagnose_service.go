package service

import (
	"context"
	"sort"
	"strconv"

	"github.com/robotics-oss/ros-repo-metrics/config"
	"github.com/robotics-oss/ros-repo-metrics/model"
	"github.com/robotics-oss/ros-repo-metrics/storage"
	log "github.com/sirupsen/logrus"
)

// BucketCount is one line of the bucket summary
type BucketCount struct {
	Distro string
	Bucket model.Bucket
	Count  int
	Total  int
}

func BucketCountHeader() []string {
	return []string{"ros_distro", "bucket", "count", "share"}
}

func (b BucketCount) CSVRow() []string {
	return []string{b.Distro, string(b.Bucket), strconv.Itoa(b.Count), share(b.Count, b.Total)}
}

type DiagnoseService interface {
	Diagnose(ctx context.Context) error
	Classify(records []model.PackageRecord) map[model.Bucket][]model.PackageRecord
}

type diagnoseService struct {
	artifacts Artifacts
	config    config.Config
}

func NewDiagnoseService(config config.Config) DiagnoseService {
	return diagnoseService{
		artifacts: NewArtifacts(config),
		config:    config,
	}
}

// Diagnose splits the completed mapping into buckets and writes one CSV per bucket, empty ones included
func (s diagnoseService) Diagnose(_ context.Context) error {
	rows, err := storage.ReadCSV(s.artifacts.MappingFilled())
	if err != nil {
		return err
	}

	records := make([]model.PackageRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, model.PackageRecordFromCSV(row))
	}

	buckets := s.Classify(records)
	s.logStatus(records)
	s.logCoverage(records)

	for _, b := range model.Buckets {
		if err := storage.WriteCSV(s.artifacts.Bucket(b), model.PackageRecordHeader(), buckets[b]); err != nil {
			return err
		}

		log.WithFields(log.Fields{
			"bucket": b,
			"rows":   len(buckets[b]),
			"path":   s.artifacts.Bucket(b),
		}).Info("bucket saved")
	}

	return storage.WriteCSV(s.artifacts.BucketSummary(), BucketCountHeader(), s.summary(records))
}

// Classify puts every record in exactly one bucket.
// The status is recomputed from the URL and repo key, so rows completed by the gap filler move out of the missing buckets.
func (s diagnoseService) Classify(records []model.PackageRecord) map[model.Bucket][]model.PackageRecord {
	buckets := make(map[model.Bucket][]model.PackageRecord, len(model.Buckets))
	for _, b := range model.Buckets {
		buckets[b] = make([]model.PackageRecord, 0)
	}

	for _, r := range records {
		r.Status = model.ClassifyStatus(r.RepoKey, r.RepoURL, r.GithubOwner)
		b := model.StatusBucket(r.Status)
		buckets[b] = append(buckets[b], r)
	}

	return buckets
}

func (s diagnoseService) byDistro(records []model.PackageRecord) ([]string, map[string][]model.PackageRecord) {
	grouped := make(map[string][]model.PackageRecord)
	for _, r := range records {
		grouped[r.Distro] = append(grouped[r.Distro], r)
	}

	distros := make([]string, 0, len(grouped))
	for d := range grouped {
		distros = append(distros, d)
	}
	sort.Strings(distros)

	return distros, grouped
}

func (s diagnoseService) summary(records []model.PackageRecord) []BucketCount {
	distros, grouped := s.byDistro(records)
	out := make([]BucketCount, 0, (len(distros)+1)*len(model.Buckets))

	appendCounts := func(distro string, rs []model.PackageRecord) {
		buckets := s.Classify(rs)
		for _, b := range model.Buckets {
			out = append(out, BucketCount{Distro: distro, Bucket: b, Count: len(buckets[b]), Total: len(rs)})
		}
	}

	for _, d := range distros {
		appendCounts(d, grouped[d])
	}
	appendCounts("all", records)

	return out
}

func (s diagnoseService) logStatus(records []model.PackageRecord) {
	distros, grouped := s.byDistro(records)

	for _, d := range distros {
		fields := log.Fields{"distro": d, "total": len(grouped[d])}
		for b, rs := range s.Classify(grouped[d]) {
			fields[string(b)] = len(rs)
		}
		log.WithFields(fields).Info("resolution status")
	}
}

func (s diagnoseService) logCoverage(records []model.PackageRecord) {
	distros, grouped := s.byDistro(records)

	for _, d := range distros {
		rs := grouped[d]
		hasURL, github := 0, 0
		via := make(map[string]int)

		for _, r := range rs {
			if r.RepoURL != "" {
				hasURL++
			}
			if r.IsGithub() {
				github++
			}

			v := r.ResolvedVia
			if v == "" {
				v = model.ViaNone
			}
			via[v]++
		}

		log.WithFields(log.Fields{
			"distro":      d,
			"total":       len(rs),
			"hasRepoURL":  hasURL,
			"missingURL":  len(rs) - hasURL,
			"github":      github,
			"nonGithub":   hasURL - github,
			"resolvedVia": via,
		}).Info("url coverage")
	}
}

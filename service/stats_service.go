package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/robotics-oss/ros-repo-metrics/config"
	"github.com/robotics-oss/ros-repo-metrics/model"
	"github.com/robotics-oss/ros-repo-metrics/storage"
	log "github.com/sirupsen/logrus"
)

// DistroStats summarizes the join outcome of one distribution
type DistroStats struct {
	Distro        string
	Total         int
	Resolved      int
	URLTypes      map[string]int
	Github        int
	NonGithub     int
	InvalidStatus int
}

func (s DistroStats) Unresolved() int {
	return s.Total - s.Resolved
}

func DistroStatsHeader() []string {
	return []string{
		"ros_distro", "packages_total", "resolved_url", "resolved_share", "unresolved", "unresolved_share",
		"url_type_source", "url_type_doc", "url_type_release", "url_type_index_checkout_uri",
		"host_github", "host_non_github",
	}
}

func (s DistroStats) CSVRow() []string {
	return []string{
		s.Distro, strconv.Itoa(s.Total),
		strconv.Itoa(s.Resolved), share(s.Resolved, s.Total),
		strconv.Itoa(s.Unresolved()), share(s.Unresolved(), s.Total),
		strconv.Itoa(s.URLTypes[model.URLTypeSource]), strconv.Itoa(s.URLTypes[model.URLTypeDoc]),
		strconv.Itoa(s.URLTypes[model.URLTypeRelease]), strconv.Itoa(s.URLTypes[model.URLTypeIndexCheckout]),
		strconv.Itoa(s.Github), strconv.Itoa(s.NonGithub),
	}
}

func share(n, total int) string {
	if total == 0 {
		return "0.000"
	}
	return fmt.Sprintf("%.3f", float64(n)/float64(total))
}

type StatsService interface {
	Report(ctx context.Context) error
	ComputeStats(records []model.PackageRecord) []DistroStats
}

type statsService struct {
	artifacts Artifacts
	config    config.Config
}

func NewStatsService(config config.Config) StatsService {
	return statsService{
		artifacts: NewArtifacts(config),
		config:    config,
	}
}

// Report computes join-success statistics from the joiner output
func (s statsService) Report(_ context.Context) error {
	rows, err := storage.ReadCSV(s.artifacts.Mapping())
	if err != nil {
		return err
	}

	records := make([]model.PackageRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, model.PackageRecordFromCSV(row))
	}

	stats := s.ComputeStats(records)
	for _, st := range stats {
		fields := log.Fields{
			"distro":        st.Distro,
			"packagesTotal": st.Total,
			"resolvedURL":   st.Resolved,
			"resolvedShare": share(st.Resolved, st.Total),
			"unresolved":    st.Unresolved(),
			"urlTypes":      st.URLTypes,
			"github":        st.Github,
			"nonGithub":     st.NonGithub,
		}

		if st.InvalidStatus > 0 {
			log.WithFields(fields).WithField("invalidStatus", st.InvalidStatus).Warn("rows with an inconsistent resolution status")
		}

		log.WithFields(fields).Info("join statistics")
	}

	return storage.WriteCSV(s.artifacts.JoinStats(), DistroStatsHeader(), stats)
}

// ComputeStats groups by distribution, following the configured order and appending unknown ones
func (s statsService) ComputeStats(records []model.PackageRecord) []DistroStats {
	byDistro := make(map[string]*DistroStats)
	order := make([]string, 0)

	for _, r := range records {
		st, found := byDistro[r.Distro]
		if !found {
			st = &DistroStats{Distro: r.Distro, URLTypes: make(map[string]int)}
			byDistro[r.Distro] = st
			order = append(order, r.Distro)
		}

		st.Total++
		if r.Resolved {
			st.Resolved++
		}
		if r.RepoURLType != "" {
			st.URLTypes[r.RepoURLType]++
		}
		if r.RepoURL != "" {
			if r.IsGithub() {
				st.Github++
			} else {
				st.NonGithub++
			}
		}
		if !r.Consistent() {
			st.InvalidStatus++
		}
	}

	return orderedStats(byDistro, order, s.config.Pipeline.Distros)
}

func orderedStats(byDistro map[string]*DistroStats, seen []string, preferred []string) []DistroStats {
	out := make([]DistroStats, 0, len(byDistro))
	done := make(map[string]bool)

	for _, d := range append(append([]string{}, preferred...), seen...) {
		if st, found := byDistro[d]; found && !done[d] {
			out = append(out, *st)
			done[d] = true
		}
	}

	return out
}

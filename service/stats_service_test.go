package service

import (
	"context"
	"testing"

	"github.com/robotics-oss/ros-repo-metrics/model"
	"github.com/robotics-oss/ros-repo-metrics/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeStats(t *testing.T) {
	records := []model.PackageRecord{
		record("rolling", "extra", "", "", ""),
		record("jazzy", "rclpy", "rclpy", "https://github.com/ros2/rclpy", model.ViaReleasePackages),
		record("humble", "rclcpp", "rclcpp", "https://github.com/ros2/rclcpp.git", model.ViaReleasePackages),
		record("humble", "gitlab_tool", "gitlab_tool", "https://gitlab.com/g/gitlab_tool", model.ViaRepoKeyName),
		record("humble", "foo_pkg", "", "", ""),
	}

	// stored status disagreeing with the url
	broken := record("humble", "broken", "broken", "", "")
	broken.Status = model.StatusResolved
	records = append(records, broken)

	stats := NewStatsService(testConfig(t, "humble", "jazzy")).ComputeStats(records)
	require.Len(t, stats, 3)

	assert.Equal(t, []string{"humble", "jazzy", "rolling"}, []string{stats[0].Distro, stats[1].Distro, stats[2].Distro})

	humble := stats[0]
	assert.Equal(t, 4, humble.Total)
	assert.Equal(t, 2, humble.Resolved)
	assert.Equal(t, 2, humble.Unresolved())
	assert.Equal(t, 1, humble.Github)
	assert.Equal(t, 1, humble.NonGithub)
	assert.Equal(t, 2, humble.URLTypes[model.URLTypeSource])
	assert.Equal(t, 1, humble.InvalidStatus)

	assert.Equal(t, "0.500", humble.CSVRow()[3])
	assert.Equal(t, 0, stats[1].InvalidStatus)
}

func TestReport(t *testing.T) {
	cfg := testConfig(t, "humble")
	artifacts := NewArtifacts(cfg)

	writeRecords(t, artifacts.Mapping(),
		record("humble", "rclcpp", "rclcpp", "https://github.com/ros2/rclcpp", model.ViaReleasePackages),
		record("humble", "foo_pkg", "", "", ""),
	)

	require.NoError(t, NewStatsService(cfg).Report(context.Background()))

	rows, err := storage.ReadCSV(artifacts.JoinStats())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2", rows[0]["packages_total"])
	assert.Equal(t, "1", rows[0]["resolved_url"])
	assert.Equal(t, "0.500", rows[0]["unresolved_share"])
}

func TestShareOfEmptyDistro(t *testing.T) {
	assert.Equal(t, "0.000", share(0, 0))
}

package service

import (
	"context"
	"testing"

	"github.com/robotics-oss/ros-repo-metrics/model"
	"github.com/robotics-oss/ros-repo-metrics/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFinal(t *testing.T) {
	cfg := testConfig(t, "humble", "jazzy", "kilted")
	artifacts := NewArtifacts(cfg)

	writeRecords(t, artifacts.Bucket(model.BucketResolved),
		record("humble", "rclcpp", "rclcpp", "https://github.com/ros2/rclcpp", model.ViaReleasePackages),
		record("jazzy", "rclcpp", "rclcpp", "https://github.com/ros2/rclcpp", model.ViaReleasePackages),
		record("rolling", "rclpy", "rclpy", "https://github.com/ros2/rclpy", model.ViaReleasePackages),
		// non github rows never reach the final datasets
		record("humble", "gitlab_tool", "gitlab_tool", "https://gitlab.com/g/gitlab_tool", model.ViaRepoKeyName),
	)

	require.NoError(t, NewDatasetService(cfg).BuildFinal(context.Background()))

	for distro, expected := range map[string]int{"humble": 1, "jazzy": 1, "kilted": 0, "rolling": 1} {
		rows, err := storage.ReadCSV(artifacts.FinalDistro(distro))
		require.NoError(t, err, distro)
		assert.Len(t, rows, expected, distro)
	}

	all := readRecords(t, artifacts.FinalAllDistros())
	require.Len(t, all, 3)
	for _, r := range all {
		assert.True(t, r.IsGithub())
	}
}

func TestBuildFinalWithoutBuckets(t *testing.T) {
	err := NewDatasetService(testConfig(t)).BuildFinal(context.Background())
	assert.ErrorIs(t, err, model.ErrMissingInput)
}

func TestPaperRecords(t *testing.T) {
	records := []model.PackageRecord{
		record("humble", "rclcpp", "rclcpp", "git@github.com:ros2/rclcpp.git", model.ViaReleasePackages),
		record("humble", "gitlab_tool", "gitlab_tool", "https://GitLab.com/g/gitlab_tool/", model.ViaRepoKeyName),
		record("humble", "foo_pkg", "", "", ""),
	}

	paper := NewDatasetService(testConfig(t)).PaperRecords(records)
	require.Len(t, paper, 3)

	assert.Equal(t, "https://github.com/ros2/rclcpp", paper[0].RepoURLNorm)
	assert.Equal(t, "github.com", paper[0].Host)
	assert.Equal(t, "ros2/rclcpp", paper[0].FullName)
	assert.True(t, paper[0].IsGithub)
	assert.True(t, paper[0].ResolvedRepoURL)

	assert.Equal(t, "https://gitlab.com/g/gitlab_tool", paper[1].RepoURLNorm)
	assert.Equal(t, "gitlab.com", paper[1].Host)
	assert.False(t, paper[1].IsGithub)
	assert.Empty(t, paper[1].FullName)

	assert.False(t, paper[2].ResolvedRepoURL)
	assert.Equal(t, model.ViaNone, paper[2].ResolvedVia)
}

func TestBuildPaper(t *testing.T) {
	cfg := testConfig(t)
	artifacts := NewArtifacts(cfg)

	writeRecords(t, artifacts.MappingFilled(),
		record("humble", "rclcpp", "rclcpp", "https://github.com/ros2/rclcpp", model.ViaReleasePackages),
		record("humble", "foo_pkg", "", "", ""),
	)

	require.NoError(t, NewDatasetService(cfg).BuildPaper(context.Background()))

	all, err := storage.ReadCSV(artifacts.PaperAll())
	require.NoError(t, err)
	assert.Len(t, all, 2)

	github, err := storage.ReadCSV(artifacts.PaperGithubOnly())
	require.NoError(t, err)
	require.Len(t, github, 1)
	assert.Equal(t, "ros2/rclcpp", github[0]["full_name"])
}

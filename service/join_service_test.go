package service

import (
	"context"
	"testing"

	"github.com/robotics-oss/ros-repo-metrics/model"
	"github.com/robotics-oss/ros-repo-metrics/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRepoTable() map[string]model.RepoTableEntry {
	return map[string]model.RepoTableEntry{
		"rclcpp": {
			RepoKey:          "rclcpp",
			URLSource:        "https://github.com/ros2/rclcpp.git",
			URLRelease:       "https://github.com/ros2-gbp/rclcpp-release.git",
			ReleaseVersion:   "16.0.0-1",
			PackagesReleased: []string{"rclcpp", "rclcpp_components"},
		},
		"navigation_msgs": {
			RepoKey:          "navigation_msgs",
			PackagesReleased: []string{},
		},
		"gitlab_tool": {
			RepoKey:          "gitlab_tool",
			URLDoc:           "https://gitlab.com/group/gitlab_tool",
			PackagesReleased: []string{},
		},
		"released_without_url": {
			RepoKey:          "released_without_url",
			PackagesReleased: []string{"lonely_pkg"},
		},
	}
}

func TestJoinDistro(t *testing.T) {
	tests := []struct {
		name           string
		pkg            model.IndexPackage
		expectedKey    string
		expectedURL    string
		expectedVia    string
		expectedStatus model.ResolutionStatus
		expectedVer    string
	}{
		{
			name:           "released package",
			pkg:            model.IndexPackage{Name: "rclcpp_components", Version: "16.0.1-1"},
			expectedKey:    "rclcpp",
			expectedURL:    "https://github.com/ros2/rclcpp.git",
			expectedVia:    model.ViaReleasePackages,
			expectedStatus: model.StatusResolved,
			expectedVer:    "16.0.1-1",
		},
		{
			name:           "release version fills empty version",
			pkg:            model.IndexPackage{Name: "RCLCPP"},
			expectedKey:    "rclcpp",
			expectedURL:    "https://github.com/ros2/rclcpp.git",
			expectedVia:    model.ViaReleasePackages,
			expectedStatus: model.StatusResolved,
			expectedVer:    "16.0.0-1",
		},
		{
			name:           "repo key name match",
			pkg:            model.IndexPackage{Name: "gitlab_tool", Version: "0.1.0"},
			expectedKey:    "gitlab_tool",
			expectedURL:    "https://gitlab.com/group/gitlab_tool",
			expectedVia:    model.ViaRepoKeyName,
			expectedStatus: model.StatusNonGithub,
			expectedVer:    "0.1.0",
		},
		{
			name:           "repo key without url is not a name match",
			pkg:            model.IndexPackage{Name: "navigation_msgs", Version: "2.1.0"},
			expectedStatus: model.StatusMissingKey,
			expectedVer:    "2.1.0",
		},
		{
			name:           "released by a repository without url",
			pkg:            model.IndexPackage{Name: "lonely_pkg", Version: "1.0.0"},
			expectedKey:    "released_without_url",
			expectedVia:    model.ViaReleasePackages,
			expectedStatus: model.StatusMissingURL,
			expectedVer:    "1.0.0",
		},
		{
			name:           "package absent from manifest",
			pkg:            model.IndexPackage{Name: "foo_pkg", Version: "1.0.0"},
			expectedStatus: model.StatusMissingKey,
			expectedVer:    "1.0.0",
		},
	}

	s := NewJoinService(testConfig(t), nil, nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := s.JoinDistro([]model.IndexPackage{tt.pkg}, testRepoTable(), "humble")
			require.Len(t, records, 1)

			r := records[0]
			assert.Equal(t, "humble", r.Distro)
			assert.Equal(t, tt.pkg.Name, r.Package)
			assert.Equal(t, tt.expectedKey, r.RepoKey)
			assert.Equal(t, tt.expectedURL, r.RepoURL)
			assert.Equal(t, tt.expectedVia, r.ResolvedVia)
			assert.Equal(t, tt.expectedStatus, r.Status)
			assert.Equal(t, tt.expectedVer, r.Version)
			assert.Equal(t, tt.expectedURL != "", r.Resolved)
			assert.True(t, r.Consistent())
		})
	}
}

func TestJoin(t *testing.T) {
	cfg := testConfig(t, "humble")
	artifacts := NewArtifacts(cfg)

	require.NoError(t, storage.WriteFile(artifacts.IndexJSON("humble"), []byte(`[
		{"package":"rclcpp","version":"16.0.0-1"},
		{"package":"foo_pkg","version":"1.0.0"}
	]`)))
	require.NoError(t, storage.WriteJSON(artifacts.RepoTable("humble"), testRepoTable()))

	s := NewJoinService(cfg, NewIndexService(cfg, testClient()), NewRosdistroService(cfg, testClient()))
	require.NoError(t, s.Join(context.Background()))

	records := readRecords(t, artifacts.Mapping())
	require.Len(t, records, 2)

	// index listings are sorted by package name
	assert.Equal(t, "foo_pkg", records[0].Package)
	assert.Equal(t, model.StatusMissingKey, records[0].Status)
	assert.Equal(t, "", records[0].RepoKey)

	assert.Equal(t, "rclcpp", records[1].Package)
	assert.Equal(t, "ros2", records[1].GithubOwner)
	assert.Equal(t, "rclcpp", records[1].GithubRepo)

	assert.FileExists(t, artifacts.MappingJSONL())
}

func TestJoinMissingRepoTable(t *testing.T) {
	cfg := testConfig(t, "humble")
	require.NoError(t, storage.WriteFile(NewArtifacts(cfg).IndexJSON("humble"), []byte(`[]`)))

	s := NewJoinService(cfg, NewIndexService(cfg, testClient()), NewRosdistroService(cfg, testClient()))
	assert.ErrorIs(t, s.Join(context.Background()), model.ErrMissingInput)
}

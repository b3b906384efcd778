package service

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/robotics-oss/ros-repo-metrics/config"
	"github.com/robotics-oss/ros-repo-metrics/httputil"
	"github.com/robotics-oss/ros-repo-metrics/model"
	"github.com/robotics-oss/ros-repo-metrics/storage"
	"github.com/stretchr/testify/require"
)

// testConfig keeps every artifact of a test under its own temp dir
func testConfig(t *testing.T, distros ...string) config.Config {
	t.Helper()

	if len(distros) == 0 {
		distros = []string{"humble", "jazzy"}
	}

	root := t.TempDir()
	cfg := *config.GetDefault()
	cfg.Paths.CacheDir = filepath.Join(root, "cache")
	cfg.Paths.OutDir = filepath.Join(root, "out")
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Pipeline.Distros = distros
	cfg.Index.RequestDelay = 0
	cfg.Retry.Attempts = 1
	cfg.Retry.Delay = time.Millisecond
	cfg.Github.StatsRetryDelay = time.Millisecond

	return cfg
}

func testClient() *httputil.Client {
	return httputil.NewClient(5*time.Second, map[string]string{"User-Agent": "test"}, 1, time.Millisecond)
}

// record builds a refreshed mapping row
func record(distro, pkg, repoKey, repoURL, via string) model.PackageRecord {
	r := model.PackageRecord{
		Distro:      distro,
		Package:     pkg,
		RepoKey:     repoKey,
		RepoURL:     repoURL,
		ResolvedVia: via,
	}
	if repoURL != "" {
		r.RepoURLType = model.URLTypeSource
	}
	r.Refresh()

	return r
}

func writeRecords(t *testing.T, path string, records ...model.PackageRecord) {
	t.Helper()
	require.NoError(t, storage.WriteCSV(path, model.PackageRecordHeader(), records))
}

func readRecords(t *testing.T, path string) []model.PackageRecord {
	t.Helper()

	rows, err := storage.ReadCSV(path)
	require.NoError(t, err)

	records := make([]model.PackageRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, model.PackageRecordFromCSV(row))
	}

	return records
}

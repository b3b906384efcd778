package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefault(t *testing.T) {
	cfg := GetDefault()

	assert.Equal(t, []string{"humble", "jazzy", "kilted"}, cfg.Pipeline.Distros)
	assert.Equal(t, 100, cfg.Github.PerPage)
	assert.Equal(t, 350*time.Millisecond, cfg.Index.RequestDelay)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, "out", cfg.Paths.OutDir)
	assert.Contains(t, cfg.Index.JSONURLTemplate, "%s")
	assert.Contains(t, cfg.Index.PackagePageURLTemplate, "%s")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadWithoutFileUsesDefaultsAndToken(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "ghp_test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "ghp_test", cfg.Github.Token)
	assert.Equal(t, GetDefault().Paths, cfg.Paths)
}

package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/robotics-oss/ros-repo-metrics/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoDistroPage = `<html><body>
<h2>humble</h2>
<table>
  <tr><td>Checkout URI</td><td><a href="https://github.com/acme/foo.git">https://github.com/acme/foo.git</a></td></tr>
  <tr><td>VCS Type</td><td>git</td></tr>
  <tr><td>VCS Version</td><td>humble</td></tr>
</table>
<h2>jazzy</h2>
<table>
  <tr><td>Checkout URI</td><td><a href="https://gitlab.com/acme/foo.git">https://gitlab.com/acme/foo.git</a></td></tr>
  <tr><td>VCS Type</td><td>git</td></tr>
  <tr><td>VCS Version</td><td>Jazzy-devel</td></tr>
</table>
</body></html>`

func TestExtractCheckoutURI(t *testing.T) {
	tests := []struct {
		name     string
		page     string
		distro   string
		expected string
	}{
		{
			name:     "matching distro section",
			page:     twoDistroPage,
			distro:   "humble",
			expected: "https://github.com/acme/foo.git",
		},
		{
			name:     "no section matches and several uris",
			page:     twoDistroPage,
			distro:   "kilted",
			expected: "",
		},
		{
			name:     "single uri whatever its version",
			page:     `<dl><dt>Checkout URI</dt><dd><a href="https://github.com/acme/bar">link</a></dd><dt>VCS Version</dt><dd>rolling</dd></dl>`,
			distro:   "humble",
			expected: "https://github.com/acme/bar",
		},
		{
			name:     "version on the label line",
			page:     `<p>Checkout URI</p><a href="https://github.com/acme/baz">baz</a><p>VCS Version: jazzy</p><p>Checkout URI</p><a href="https://github.com/acme/old">old</a><p>VCS Version: humble</p>`,
			distro:   "jazzy",
			expected: "https://github.com/acme/baz",
		},
		{
			name:     "plain text fallback",
			page:     `<pre>Checkout URI https://github.com/acme/plain.git VCS Type git VCS Version jazzy</pre>`,
			distro:   "jazzy",
			expected: "https://github.com/acme/plain.git",
		},
		{
			name:     "no checkout uri",
			page:     `<html><body><p>Package not released</p></body></html>`,
			distro:   "humble",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractCheckoutURI(tt.page, tt.distro))
		})
	}
}

func TestFillMissing(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/p/foo_pkg/" || r.URL.Path == "/p/keyed_pkg/" {
			w.Write([]byte(twoDistroPage))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.Index.PackagePageURLTemplate = server.URL + "/p/%s/"
	artifacts := NewArtifacts(cfg)

	writeRecords(t, artifacts.Mapping(),
		record("humble", "foo_pkg", "", "", ""),
		record("humble", "rclcpp", "rclcpp", "https://github.com/ros2/rclcpp", model.ViaReleasePackages),
		record("humble", "ghost_pkg", "ghost", "", ""),
		record("jazzy", "foo_pkg", "", "", ""),
		record("humble", "keyed_pkg", "keyed", "", ""),
	)

	s := NewGapFillService(cfg, testClient())
	require.NoError(t, s.FillMissing(context.Background()))

	// foo_pkg is fetched once for both distributions, ghost_pkg is a 404
	assert.Equal(t, int32(3), hits.Load())

	records := readRecords(t, artifacts.MappingFilled())
	require.Len(t, records, 5)

	humbleFoo := records[0]
	assert.Equal(t, "https://github.com/acme/foo.git", humbleFoo.RepoURL)
	assert.Equal(t, model.URLTypeIndexCheckout, humbleFoo.RepoURLType)
	assert.Equal(t, model.ViaIndexHTML, humbleFoo.ResolvedVia)
	assert.Equal(t, "acme", humbleFoo.GithubOwner)
	// not in any distribution manifest, a checkout uri does not make it resolved
	assert.Equal(t, model.StatusMissingKey, humbleFoo.Status)

	assert.Equal(t, model.ViaReleasePackages, records[1].ResolvedVia)

	assert.Equal(t, model.StatusMissingURL, records[2].Status)
	assert.Empty(t, records[2].RepoURL)

	jazzyFoo := records[3]
	assert.Equal(t, "https://gitlab.com/acme/foo.git", jazzyFoo.RepoURL)
	assert.Equal(t, model.StatusMissingKey, jazzyFoo.Status)

	keyed := records[4]
	assert.Equal(t, "https://github.com/acme/foo.git", keyed.RepoURL)
	assert.Equal(t, model.StatusResolved, keyed.Status)

	for _, r := range records {
		assert.True(t, r.Consistent(), r.Package)
	}

	// a second run reads foo_pkg from the page cache
	require.NoError(t, s.FillMissing(context.Background()))
	assert.Equal(t, int32(4), hits.Load())
}

func TestFillMissingUnreachableSite(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		expected error
	}{
		{name: "every page fails", status: http.StatusBadGateway, expected: model.ErrUpstreamUnavailable},
		{name: "every page is missing", status: http.StatusNotFound, expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			cfg := testConfig(t)
			cfg.Index.PackagePageURLTemplate = server.URL + "/p/%s/"
			artifacts := NewArtifacts(cfg)

			writeRecords(t, artifacts.Mapping(),
				record("humble", "foo_pkg", "", "", ""),
				record("jazzy", "bar_pkg", "bar", "", ""),
			)

			err := NewGapFillService(cfg, testClient()).FillMissing(context.Background())
			if tt.expected != nil {
				assert.ErrorIs(t, err, tt.expected)
				assert.NoFileExists(t, artifacts.MappingFilled())
				return
			}

			require.NoError(t, err)
			assert.Len(t, readRecords(t, artifacts.MappingFilled()), 2)
		})
	}
}

func TestFillMissingWithoutMapping(t *testing.T) {
	err := NewGapFillService(testConfig(t), testClient()).FillMissing(context.Background())
	assert.ErrorIs(t, err, model.ErrMissingInput)
}

package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/robotics-oss/ros-repo-metrics/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIndexPackages(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		expected      []model.IndexPackage
		expectedError error
	}{
		{
			name:  "bare list",
			input: `[{"package":"rclcpp","version":"16.0.0-1"},{"package":"ament_cmake","version":"1.3.0-1"}]`,
			expected: []model.IndexPackage{
				{Name: "ament_cmake", Version: "1.3.0-1"},
				{Name: "rclcpp", Version: "16.0.0-1"},
			},
		},
		{
			name:     "object with packages",
			input:    `{"packages":[{"package":"nav2_core","version":"1.1.0"}]}`,
			expected: []model.IndexPackage{{Name: "nav2_core", Version: "1.1.0"}},
		},
		{
			name:     "rows without name and duplicates are skipped",
			input:    `[{"package":"rclcpp"},{"package":" RCLCPP "},{"version":"1"},{"package":""},"junk"]`,
			expected: []model.IndexPackage{{Name: "rclcpp"}},
		},
		{
			name:     "empty list",
			input:    `[]`,
			expected: []model.IndexPackage{},
		},
		{
			name:          "invalid json",
			input:         `[{"package":`,
			expectedError: model.ErrInvalidData,
		},
		{
			name:          "object without list",
			input:         `{"items":{}}`,
			expectedError: model.ErrInvalidData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkgs, err := ParseIndexPackages([]byte(tt.input))
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, pkgs)
		})
	}
}

func TestFetchIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data.humble.json":
			w.Write([]byte(`[{"package":"rclcpp","version":"16.0.0-1"}]`))
		case "/data.jazzy.json":
			w.Write([]byte(`{"packages":[{"package":"rclcpp","version":"28.1.0-1"},{"package":"rclpy","version":"7.1.0-1"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.Index.JSONURLTemplate = server.URL + "/data.%s.json"

	s := NewIndexService(cfg, testClient())
	require.NoError(t, s.FetchIndex(context.Background()))

	humble, err := s.LoadIndexPackages("humble")
	require.NoError(t, err)
	assert.Equal(t, []model.IndexPackage{{Name: "rclcpp", Version: "16.0.0-1"}}, humble)

	jazzy, err := s.LoadIndexPackages("jazzy")
	require.NoError(t, err)
	assert.Len(t, jazzy, 2)
}

func TestFetchIndexUnreachableListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "jazzy") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.Index.JSONURLTemplate = server.URL + "/data.%s.json"

	err := NewIndexService(cfg, testClient()).FetchIndex(context.Background())
	assert.ErrorIs(t, err, model.ErrUpstreamUnavailable)
}

func TestLoadIndexPackagesMissingListing(t *testing.T) {
	_, err := NewIndexService(testConfig(t), testClient()).LoadIndexPackages("humble")
	assert.ErrorIs(t, err, model.ErrMissingInput)
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected bool
	}{
		{name: "case", a: "RCLCPP", b: "rclcpp", expected: true},
		{name: "surrounding whitespace", a: "  nav2_core\t", b: "nav2_core", expected: true},
		{name: "different names", a: "nav2_core", b: "nav2_common", expected: false},
		{name: "composed and decomposed forms", a: "café", b: "café", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeKey(tt.a) == NormalizeKey(tt.b))
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "   ", expected: ""},
		{name: "git suffix and trailing slash", input: "https://github.com/ros2/rclcpp.git/", expected: "https://github.com/ros2/rclcpp"},
		{name: "query and fragment dropped", input: "https://github.com/ros2/rclcpp?tab=readme#top", expected: "https://github.com/ros2/rclcpp"},
		{name: "host lowercased, path kept", input: "HTTPS://GitHub.com/ROS2/RclCpp", expected: "https://github.com/ROS2/RclCpp"},
		{name: "ssh form", input: "git@github.com:ros-planning/navigation2.git", expected: "https://github.com/ros-planning/navigation2"},
		{name: "git protocol", input: "git://github.com/ros/ros_comm.git", expected: "https://github.com/ros/ros_comm"},
		{name: "non github host", input: "https://gitlab.com/group/project.git", expected: "https://gitlab.com/group/project"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeURL(tt.input))
		})
	}
}

func TestParseGithubOwnerRepo(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		expectedOwner string
		expectedRepo  string
	}{
		{name: "https", input: "https://github.com/ros2/rclcpp.git", expectedOwner: "ros2", expectedRepo: "rclcpp"},
		{name: "www and tree path", input: "https://www.github.com/ros2/rclcpp/tree/humble", expectedOwner: "ros2", expectedRepo: "rclcpp"},
		{name: "ssh", input: "git@github.com:ros2/rcl.git", expectedOwner: "ros2", expectedRepo: "rcl"},
		{name: "gitlab", input: "https://gitlab.com/ros2/rclcpp", expectedOwner: "", expectedRepo: ""},
		{name: "owner only", input: "https://github.com/ros2", expectedOwner: "", expectedRepo: ""},
		{name: "empty", input: "", expectedOwner: "", expectedRepo: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo := ParseGithubOwnerRepo(tt.input)
			assert.Equal(t, tt.expectedOwner, owner)
			assert.Equal(t, tt.expectedRepo, repo)
		})
	}
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "github.com", HostOf("https://GitHub.com/ros2/rclcpp"))
	assert.Equal(t, "bitbucket.org", HostOf("https://bitbucket.org/a/b.git"))
	assert.Equal(t, "", HostOf(""))
}

func TestRepoIdentityIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, RepoIdentity("ROS2", "RclCpp"), RepoIdentity("ros2", "rclcpp"))
	assert.Equal(t, "", RepoIdentity("", "rclcpp"))
	assert.Equal(t, "https://github.com/ros2/rclcpp", CanonicalRepoURL("ros2", "rclcpp"))
}

func TestSplitFullName(t *testing.T) {
	owner, repo := SplitFullName(" ros2/rclcpp ")
	assert.Equal(t, "ros2", owner)
	assert.Equal(t, "rclcpp", repo)

	for _, invalid := range []string{"", "ros2", "/rclcpp", "ros2/", "a/b/c"} {
		owner, repo := SplitFullName(invalid)
		assert.Empty(t, owner, invalid)
		assert.Empty(t, repo, invalid)
	}
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/CIDgravity/snakelet"
	"github.com/joho/godotenv"
	"github.com/robotics-oss/ros-repo-metrics/model"
)

// config structure
type Config struct {
	Github    GithubConfig    `mapstructure:"GITHUB"`
	Index     IndexConfig     `mapstructure:"INDEX"`
	Rosdistro RosdistroConfig `mapstructure:"ROSDISTRO"`
	Paths     PathsConfig     `mapstructure:"PATHS"`
	Pipeline  PipelineConfig  `mapstructure:"PIPELINE"`
	Retry     RetryConfig     `mapstructure:"RETRY"`
	Tasks     TasksConfig     `mapstructure:"TASKS"`
	Logs      LogsConfig      `mapstructure:"LOGS"`
}

type GithubConfig struct {
	Token           string        `mapstructure:"Token"` // overridden by GITHUB_TOKEN
	APIBaseURL      string        `mapstructure:"APIBaseURL"`
	PerPage         int           `mapstructure:"PerPage"`
	StatsRetries    int           `mapstructure:"StatsRetries"`
	StatsRetryDelay time.Duration `mapstructure:"StatsRetryDelay"`
}

type IndexConfig struct {
	JSONURLTemplate        string        `mapstructure:"JSONURLTemplate"`        // %s is the distro
	PackagePageURLTemplate string        `mapstructure:"PackagePageURLTemplate"` // %s is the package
	RequestDelay           time.Duration `mapstructure:"RequestDelay"`
	Timeout                time.Duration `mapstructure:"Timeout"`
	UserAgent              string        `mapstructure:"UserAgent"`
}

type RosdistroConfig struct {
	IndexURL string `mapstructure:"IndexURL"`
	// LocalDir, when set, is read as <LocalDir>/<distro>/distribution.yaml instead of the index
	LocalDir string `mapstructure:"LocalDir"`
}

type PathsConfig struct {
	CacheDir string `mapstructure:"CacheDir"`
	OutDir   string `mapstructure:"OutDir"`
	DataDir  string `mapstructure:"DataDir"`
}

type PipelineConfig struct {
	Distros []string `mapstructure:"Distros"`
}

type RetryConfig struct {
	Attempts int           `mapstructure:"Attempts"`
	Delay    time.Duration `mapstructure:"Delay"`
}

type TasksConfig struct {
	MaxParallelTasksAllowed int `mapstructure:"MaxParallelTasksAllowed"`
}

type LogsConfig struct {
	Level            string `mapstructure:"Level"` // error | warn | info | debug - case insensitive
	OutputLogsAsJSON bool   `mapstructure:"OutputLogsAsJSON"`
}

// Load reads the configuration file on top of the defaults.
// An empty path looks for config/config.toml next to the binary, then in the working directory.
// A missing file is not an error: defaults are used.
func Load(path string) (*Config, error) {
	// .env is optional, it only feeds GITHUB_TOKEN
	_ = godotenv.Load()

	cfg := GetDefault()

	configFilePath, err := findConfigFile(path)
	if err != nil {
		return nil, err
	}

	if configFilePath != "" {
		if _, err := snakelet.InitAndLoad(cfg, configFilePath); err != nil {
			return nil, err
		}
	}

	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.Github.Token = token
	}

	return cfg, nil
}

func findConfigFile(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", err
		}
		return path, nil
	}

	dir, err := filepath.Abs(filepath.Dir(os.Args[0]))
	if err != nil {
		return "", err
	}

	for _, candidate := range []string{filepath.Join(dir, "config", "config.toml"), filepath.Join("config", "config.toml")} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}

	return "", nil
}

// GetDefault
func GetDefault() *Config {
	return &Config{
		Github: GithubConfig{
			APIBaseURL:      "https://api.github.com/",
			PerPage:         100,
			StatsRetries:    6,
			StatsRetryDelay: 10 * time.Second,
		},
		Index: IndexConfig{
			JSONURLTemplate:        "https://index.ros.org/search/packages/data.%s.json",
			PackagePageURLTemplate: "https://index.ros.org/p/%s/",
			RequestDelay:           350 * time.Millisecond,
			Timeout:                60 * time.Second,
			UserAgent:              "Mozilla/5.0 (compatible; ros-index-mapper/1.0)",
		},
		Rosdistro: RosdistroConfig{
			IndexURL: "https://raw.githubusercontent.com/ros/rosdistro/master/index-v4.yaml",
		},
		Paths: PathsConfig{
			CacheDir: "cache",
			OutDir:   "out",
			DataDir:  "data/ros_robotics_data",
		},
		Pipeline: PipelineConfig{
			Distros: append([]string(nil), model.DefaultDistros...),
		},
		Retry: RetryConfig{
			Attempts: 3,
			Delay:    time.Second,
		},
		Tasks: TasksConfig{
			MaxParallelTasksAllowed: 1,
		},
		Logs: LogsConfig{
			Level:            "info",
			OutputLogsAsJSON: false,
		},
	}
}

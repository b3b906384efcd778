package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/go-github/v66/github"
	"github.com/google/uuid"
	"github.com/robotics-oss/ros-repo-metrics/config"
	"github.com/robotics-oss/ros-repo-metrics/controller"
	"github.com/robotics-oss/ros-repo-metrics/httputil"
	"github.com/robotics-oss/ros-repo-metrics/logger"
	"github.com/robotics-oss/ros-repo-metrics/service"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

var (
	cfgFile string
	verbose bool
	runFrom string
	runOnly string

	cfg   *config.Config
	runID string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ros-repo-metrics",
	Short: "Join the ROS package index with rosdistro and collect GitHub metrics of the repositories",
	Long: `ros-repo-metrics builds offline research datasets about ROS packages:
package listings from index.ros.org are joined with the rosdistro manifests,
completed from the package pages, and the GitHub repositories behind them are snapshotted.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("unable to load configuration: %w", err)
		}

		logger.Setup(*cfg, verbose)
		runID = uuid.NewString()

		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every stage in order, continuing past failed stages",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runOnly != "" && runFrom != "" {
			return fmt.Errorf("--from and --only cannot be combined")
		}

		first := runFrom
		if runOnly != "" {
			first = runOnly
		}

		start, err := stageStart(first)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pipeline := buildController(ctx, needsGithub(start, runOnly != ""))

		var results []controller.StageResult
		if runOnly != "" {
			result, err := pipeline.RunStage(ctx, runOnly)
			if err != nil {
				return err
			}
			results = append(results, result)
		} else if results, err = pipeline.RunAll(ctx, runFrom); err != nil {
			return err
		}

		if !pipeline.PrintSummary(cmd.OutOrStdout(), results) {
			return fmt.Errorf("one or more stages failed")
		}

		return nil
	},
}

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List the stages in run order",
	Run: func(cmd *cobra.Command, args []string) {
		for i, def := range controller.StageDefinitions {
			fmt.Fprintf(cmd.OutOrStdout(), "%2d. %-20s %s\n", i+1, def.Name, def.Description)
		}
	},
}

// stageCommand runs a single stage given its inputs are already on disk
func stageCommand(def controller.StageDefinition) *cobra.Command {
	return &cobra.Command{
		Use:   def.Name,
		Short: strings.ToUpper(def.Description[:1]) + def.Description[1:],
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := stageStart(def.Name)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pipeline := buildController(ctx, needsGithub(start, true))

			result, err := pipeline.RunStage(ctx, def.Name)
			if err != nil {
				return err
			}

			if !pipeline.PrintSummary(cmd.OutOrStdout(), []controller.StageResult{result}) {
				return fmt.Errorf("stage %s failed", def.Name)
			}

			return nil
		},
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config/config.toml next to the binary or in the working directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logs")

	runCmd.Flags().StringVar(&runFrom, "from", "", "start at this stage")
	runCmd.Flags().StringVar(&runOnly, "only", "", "run this stage only")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stagesCmd)

	for _, def := range controller.StageDefinitions {
		rootCmd.AddCommand(stageCommand(def))
	}
}

func stageStart(name string) (int, error) {
	if name == "" {
		return 0, nil
	}
	return controller.StageIndex(name)
}

// the github quota is only loaded when the feature extraction is part of the run
func needsGithub(start int, single bool) bool {
	extract, _ := controller.StageIndex("extract-features")
	if single {
		return start == extract
	}
	return start <= extract
}

func buildController(ctx context.Context, withGithub bool) controller.PipelineController {
	indexClient := httputil.NewClient(cfg.Index.Timeout, map[string]string{
		"User-Agent": cfg.Index.UserAgent,
		"Accept":     "application/json, application/x-yaml, text/plain, */*",
	}, cfg.Retry.Attempts, cfg.Retry.Delay)

	pageClient := httputil.NewClient(cfg.Index.Timeout, map[string]string{
		"User-Agent":      cfg.Index.UserAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	}, cfg.Retry.Attempts, cfg.Retry.Delay)

	githubClient := newGithubClient()
	githubRateLimiter := rate.NewLimiter(rate.Inf, 0)

	if withGithub {
		// execute first request to github to fetch current rate limits
		log.Debug("loading current rate limit from github")

		limiter, err := service.NewGithubRateLimiter(ctx, githubClient)
		if err != nil {
			log.WithError(err).Warn("unable to load current github rate limits, relying on github rate limit answers")
		} else {
			githubRateLimiter = limiter
		}
	}

	index := service.NewIndexService(*cfg, indexClient)
	rosdistro := service.NewRosdistroService(*cfg, indexClient)

	return controller.NewPipelineController(*cfg, runID, controller.Services{
		Index:     index,
		Rosdistro: rosdistro,
		Join:      service.NewJoinService(*cfg, index, rosdistro),
		Stats:     service.NewStatsService(*cfg),
		GapFill:   service.NewGapFillService(*cfg, pageClient),
		Diagnose:  service.NewDiagnoseService(*cfg),
		Dataset:   service.NewDatasetService(*cfg),
		Repo:      service.NewRepoService(*cfg),
		Github:    service.NewGithubService(*cfg, githubClient, githubRateLimiter, runID),
		Assemble:  service.NewAssembleService(*cfg),
	})
}

// we do here and pass the client to Github service to easily improve tests with mock client
func newGithubClient() *github.Client {
	githubClient := github.NewClient(nil)

	if cfg.Github.Token != "" {
		log.Debug("will setup github client with authorization token")
		githubClient = githubClient.WithAuthToken(cfg.Github.Token)
	} else {
		log.Warn("no GITHUB_TOKEN set, github allows 60 requests per hour")
	}

	if cfg.Github.APIBaseURL != "" {
		base := cfg.Github.APIBaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}

		if u, err := url.Parse(base); err != nil {
			log.WithError(err).Warn("invalid github api base url, using the default one")
		} else {
			githubClient.BaseURL = u
		}
	}

	return githubClient
}

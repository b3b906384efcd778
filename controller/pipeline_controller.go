package controller

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/robotics-oss/ros-repo-metrics/config"
	"github.com/robotics-oss/ros-repo-metrics/model"
	"github.com/robotics-oss/ros-repo-metrics/service"
	log "github.com/sirupsen/logrus"
)

// StageDefinition names a step of the pipeline
type StageDefinition struct {
	Name        string
	Description string
}

// StageDefinitions lists the stages in run order
var StageDefinitions = []StageDefinition{
	{"fetch-index", "download the package index listing of every distribution"},
	{"build-mapping", "build the repository table of every distribution manifest"},
	{"join", "join index packages with manifest repositories"},
	{"stats", "report join statistics per distribution"},
	{"fill-missing", "complete missing repository URLs from package pages"},
	{"diagnose", "split packages into diagnostic buckets"},
	{"build-dataset", "write the resolved GitHub package datasets"},
	{"build-paper-dataset", "write every package with its normalized repository URL"},
	{"extract-repos", "deduplicate GitHub repositories"},
	{"overlap", "compute repository overlap between distributions"},
	{"extract-features", "snapshot GitHub data of every unique repository"},
	{"assemble", "flatten repository snapshots into the final dataset"},
}

// Stage is one independently runnable step of the pipeline
type Stage struct {
	StageDefinition
	Run func(ctx context.Context) error
}

type StageResult struct {
	Stage    string
	Err      error
	Duration time.Duration
}

func (r StageResult) Failed() bool {
	return r.Err != nil
}

// Services groups what the stages run
type Services struct {
	Index     service.IndexService
	Rosdistro service.RosdistroService
	Join      service.JoinService
	Stats     service.StatsService
	GapFill   service.GapFillService
	Diagnose  service.DiagnoseService
	Dataset   service.DatasetService
	Repo      service.RepoService
	Github    service.GithubService
	Assemble  service.AssembleService
}

type PipelineController interface {
	Stages() []Stage
	RunAll(ctx context.Context, from string) ([]StageResult, error)
	RunStage(ctx context.Context, name string) (StageResult, error)
	PrintSummary(w io.Writer, results []StageResult) bool
}

type pipelineController struct {
	stages []Stage
	runID  string
	config config.Config
}

func (s Services) runners() map[string]func(ctx context.Context) error {
	return map[string]func(ctx context.Context) error{
		"fetch-index":         s.Index.FetchIndex,
		"build-mapping":       s.Rosdistro.BuildMapping,
		"join":                s.Join.Join,
		"stats":               s.Stats.Report,
		"fill-missing":        s.GapFill.FillMissing,
		"diagnose":            s.Diagnose.Diagnose,
		"build-dataset":       s.Dataset.BuildFinal,
		"build-paper-dataset": s.Dataset.BuildPaper,
		"extract-repos":       s.Repo.ExtractUnique,
		"overlap":             s.Repo.Overlap,
		"extract-features":    s.Github.ExtractFeatures,
		"assemble":            s.Assemble.Assemble,
	}
}

func NewPipelineController(config config.Config, runID string, services Services) PipelineController {
	runners := services.runners()

	stages := make([]Stage, 0, len(StageDefinitions))
	for _, def := range StageDefinitions {
		stages = append(stages, Stage{StageDefinition: def, Run: runners[def.Name]})
	}

	return pipelineController{
		stages: stages,
		runID:  runID,
		config: config,
	}
}

// StageIndex returns the position of a stage in the run order
func StageIndex(name string) (int, error) {
	for i, def := range StageDefinitions {
		if def.Name == name {
			return i, nil
		}
	}

	return -1, fmt.Errorf("unknown stage %q", name)
}

func (c pipelineController) Stages() []Stage {
	return append([]Stage(nil), c.stages...)
}

// RunAll runs the stages in order starting at from (the first stage when empty).
// A failed stage does not stop the following ones, their own inputs decide whether they can run.
func (c pipelineController) RunAll(ctx context.Context, from string) ([]StageResult, error) {
	start := 0
	if from != "" {
		i, err := StageIndex(from)
		if err != nil {
			return nil, err
		}
		start = i
	}

	results := make([]StageResult, 0, len(c.stages)-start)
	for _, st := range c.stages[start:] {
		if ctx.Err() != nil {
			log.WithField("stage", st.Name).Warn("run interrupted, remaining stages not started")
			break
		}

		results = append(results, c.run(ctx, st))
	}

	return results, nil
}

func (c pipelineController) RunStage(ctx context.Context, name string) (StageResult, error) {
	i, err := StageIndex(name)
	if err != nil {
		return StageResult{}, err
	}

	return c.run(ctx, c.stages[i]), nil
}

func (c pipelineController) run(ctx context.Context, st Stage) StageResult {
	logger := log.WithFields(log.Fields{
		"stage": st.Name,
		"runID": c.runID,
	})
	logger.Info(st.Description)

	started := time.Now()
	err := st.Run(ctx)
	result := StageResult{Stage: st.Name, Err: err, Duration: time.Since(started)}

	if err != nil {
		logger.WithError(err).Error("stage failed")
	} else {
		logger.WithField("duration", result.Duration.Round(time.Millisecond).String()).Info("stage completed")
	}

	return result
}

// PrintSummary writes one line per stage and reports whether every stage succeeded
func (c pipelineController) PrintSummary(w io.Writer, results []StageResult) bool {
	ok := color.New(color.FgGreen, color.Bold)
	ko := color.New(color.FgRed, color.Bold)
	faint := color.New(color.Faint)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "run %s\n", c.runID)

	success := true
	for _, r := range results {
		if r.Failed() {
			success = false
			perr := model.NewPipelineError(r.Err)

			ko.Fprint(w, "✗ ")
			fmt.Fprintf(w, "%-20s ", r.Stage)
			faint.Fprintf(w, "%s\n", r.Duration.Round(time.Millisecond))
			fmt.Fprintf(w, "    %s: %s\n", perr.Code, perr.Message)
			continue
		}

		ok.Fprint(w, "✓ ")
		fmt.Fprintf(w, "%-20s ", r.Stage)
		faint.Fprintf(w, "%s\n", r.Duration.Round(time.Millisecond))
	}

	return success
}

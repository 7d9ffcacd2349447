package news

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/Laisky/topic-news/internal/crew"
	"github.com/Laisky/topic-news/internal/library/llm"
	"github.com/Laisky/topic-news/library/log"
)

// Roles and tasks the pipeline is built from.
const (
	FetcherAgent  = "news_fetcher_agent"
	AnalyzerAgent = "news_analyzer_agent"
	FetchTask     = "fetch_topic_news_task"
	AnalyzeTask   = "analyze_topic_news_task"

	FetchOutputFile   = "fetched_topic_news.md"
	AnalyzeOutputFile = "analyzed_topic_news.md"
)

// Orchestrator runs a crew to completion and returns the path of the final artifact.
type Orchestrator interface {
	RunPipeline(ctx context.Context, c *crew.Crew, inputs crew.Inputs) (artifactPath string, err error)
}

// Option customises a Driver during construction.
type Option func(*Driver)

// WithOrchestrator replaces the sequential crew engine.
func WithOrchestrator(o Orchestrator) Option {
	return func(d *Driver) {
		if o != nil {
			d.orchestrator = o
		}
	}
}

// WithModelFactory replaces how chat models are built.
func WithModelFactory(f ModelFactory) Option {
	return func(d *Driver) {
		if f != nil {
			d.newModel = f
		}
	}
}

// WithEngineFactory replaces how the search engine is built.
func WithEngineFactory(f EngineFactory) Option {
	return func(d *Driver) {
		if f != nil {
			d.newEngine = f
		}
	}
}

// WithObserver attaches an observer that receives every worker step of every run.
func WithObserver(o crew.Observer) Option {
	return func(d *Driver) {
		d.observer = o
	}
}

// WithClock overrides the wall clock used to compute run inputs.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) {
		if now != nil {
			d.now = now
		}
	}
}

// WithLogger overrides the driver logger.
func WithLogger(logger logSDK.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Driver builds and runs the two-step pipeline for one topic at a time.
// It holds no per-run state; concurrent runs share only the output files.
type Driver struct {
	settings     Settings
	orchestrator Orchestrator
	newModel     ModelFactory
	newEngine    EngineFactory
	observer     crew.Observer
	now          func() time.Time
	logger       logSDK.Logger
}

// NewDriver creates a Driver.
func NewDriver(settings Settings, opts ...Option) *Driver {
	settings = settings.withDefaults()
	d := &Driver{
		settings:     settings,
		orchestrator: crew.NewSequential(),
		newModel:     DefaultModelFactory(settings),
		newEngine:    DefaultEngineFactory(settings),
		now:          time.Now,
		logger:       log.Logger.Named("news"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// OutputPaths returns the default fetch and analyze artifact locations,
// used when the tasks document names no output_file.
func (d *Driver) OutputPaths() (fetch, analyze string) {
	return filepath.Join(d.settings.OutputDir, FetchOutputFile),
		filepath.Join(d.settings.OutputDir, AnalyzeOutputFile)
}

// Run executes the pipeline for topic. It never returns an error and never panics:
// the outcome is the returned Report, the logs and the observer events.
//
// Callers are expected to have passed ValidateRequest; Run does not re-check.
func (d *Driver) Run(ctx context.Context, topic string, creds Credentials) (report *Report) {
	report = &Report{
		RunID:     gutils.UUID7(),
		Topic:     topic,
		State:     PhaseIdle,
		Phases:    []Phase{PhaseIdle},
		StartedAt: d.now(),
	}
	logger := d.logger.With(zap.String("run_id", report.RunID), zap.String("topic", topic))
	if ctxLogger := log.FromContext(ctx, nil); ctxLogger != nil {
		logger = ctxLogger.Named("news").With(zap.String("run_id", report.RunID), zap.String("topic", topic))
	}

	defer func() {
		if r := recover(); r != nil {
			d.fail(report, logger, errors.Errorf("panic: %v", r))
		}

		report.FinishedAt = d.now()
		recordRun(report)
		logger.Info("pipeline finished",
			zap.String("state", string(report.State)),
			zap.Duration("cost", report.FinishedAt.Sub(report.StartedAt)))
	}()

	if err := d.run(ctx, report, logger, topic, creds); err != nil {
		d.fail(report, logger, err)
	}
	return report
}

func (d *Driver) run(ctx context.Context, report *Report, logger logSDK.Logger, topic string, creds Credentials) error {
	report.enter(PhaseValidating)
	inputs := crew.NewInputs(d.now(), topic)

	c, analyzePath, err := d.buildCrew(ctx, report, logger, creds)
	if err != nil {
		return errors.Wrap(err, "build crew")
	}

	for _, task := range c.Tasks {
		if task.OutputFile == "" {
			continue
		}
		if err = os.Remove(task.OutputFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return errors.Wrapf(err, "clear stale artifact %q", task.OutputFile)
		}
	}

	report.enter(PhaseFetching)
	logger.Info("kickoff crew",
		zap.String("current_time", inputs.CurrentTime),
		zap.String("week_range", inputs.WeekRange),
		zap.String("month_range", inputs.MonthRange))
	artifactPath, err := d.orchestrator.RunPipeline(ctx, c, inputs)
	if err != nil {
		return errors.Wrap(err, "run crew")
	}
	report.enter(PhaseAnalyzing)

	report.enter(PhaseRendering)
	if strings.TrimSpace(artifactPath) == "" {
		artifactPath = analyzePath
	}
	content, err := os.ReadFile(artifactPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errors.Wrapf(ErrMissingArtifact, "read %q", artifactPath)
		}
		return errors.Wrapf(err, "read artifact %q", artifactPath)
	}

	report.ArtifactPath = artifactPath
	report.Content = string(content)
	report.HTML = RenderMarkdown(report.Content)
	report.Message = MsgCompleted
	report.enter(PhaseDone)
	return nil
}

// buildCrew loads the declarative documents and binds workers and tasks.
// It returns the crew and the analyze artifact path.
func (d *Driver) buildCrew(ctx context.Context, report *Report, logger logSDK.Logger, creds Credentials) (*crew.Crew, string, error) {
	agents, err := crew.LoadAgents(d.settings.AgentsConfig)
	if err != nil {
		return nil, "", errors.Wrap(err, "load agents")
	}
	tasks, err := crew.LoadTasks(d.settings.TasksConfig)
	if err != nil {
		return nil, "", errors.Wrap(err, "load tasks")
	}

	workerModel, err := d.newModel(ctx, creds.LLMAPIKey, d.settings.WorkerModel)
	if err != nil {
		return nil, "", errors.Wrap(err, "new worker model")
	}
	managerModel, err := d.newModel(ctx, creds.LLMAPIKey, d.settings.ManagerModel)
	if err != nil {
		return nil, "", errors.Wrap(err, "new manager model")
	}

	observer := crew.MultiObserver{
		crew.ObserverFunc(func(ev crew.StepEvent) {
			report.addStep(ev)
			if ev.Task == AnalyzeTask {
				report.enter(PhaseAnalyzing)
			}
		}),
		crew.NewLogObserver(logger),
		d.observer,
	}

	fetcher, err := d.newWorker(agents, FetcherAgent, workerModel, observer,
		crew.WithTools(NewSearchTool(d.newEngine(creds.SearchAPIKey))))
	if err != nil {
		return nil, "", errors.WithStack(err)
	}
	analyzer, err := d.newWorker(agents, AnalyzerAgent, workerModel, observer)
	if err != nil {
		return nil, "", errors.WithStack(err)
	}

	defaultFetch, defaultAnalyze := d.OutputPaths()
	fetchPath := d.outputPath(tasks[FetchTask], defaultFetch)
	analyzePath := d.outputPath(tasks[AnalyzeTask], defaultAnalyze)
	fetchTask, err := d.newTask(tasks, FetchTask, fetcher, fetchPath)
	if err != nil {
		return nil, "", errors.WithStack(err)
	}
	analyzeTask, err := d.newTask(tasks, AnalyzeTask, analyzer, analyzePath)
	if err != nil {
		return nil, "", errors.WithStack(err)
	}

	return &crew.Crew{
		RunID:   report.RunID,
		Tasks:   []*crew.Task{fetchTask, analyzeTask},
		Process: crew.ProcessSequential,
		Manager: managerModel,
	}, analyzePath, nil
}

func (d *Driver) newWorker(agents map[string]crew.AgentSpec, name string, model llm.ChatModel,
	observer crew.Observer, extra ...crew.WorkerOption) (*crew.Worker, error) {
	spec, ok := agents[name]
	if !ok {
		return nil, &crew.ConfigError{Path: d.settings.AgentsConfig, Err: errors.Errorf("agent %q not defined", name)}
	}

	opts := append([]crew.WorkerOption{
		crew.WithMaxIter(d.settings.MaxIter),
		crew.WithDelegation(false),
		crew.WithObserver(observer),
	}, extra...)
	w, err := crew.NewWorker(name, spec, model, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "new worker %q", name)
	}
	return w, nil
}

func (d *Driver) newTask(tasks map[string]crew.TaskSpec, name string, worker *crew.Worker, outputFile string) (*crew.Task, error) {
	spec, ok := tasks[name]
	if !ok {
		return nil, &crew.ConfigError{Path: d.settings.TasksConfig, Err: errors.Errorf("task %q not defined", name)}
	}
	if spec.Agent != "" && spec.Agent != worker.Name() {
		return nil, &crew.ConfigError{Path: d.settings.TasksConfig,
			Err: errors.Errorf("task %q is assigned to %q, want %q", name, spec.Agent, worker.Name())}
	}

	t, err := crew.NewTask(name, spec, worker, outputFile)
	if err != nil {
		return nil, errors.Wrapf(err, "new task %q", name)
	}
	return t, nil
}

// outputPath places the output_file named by spec under the output directory.
// Only the base name is kept so a document cannot write outside it.
func (d *Driver) outputPath(spec crew.TaskSpec, fallback string) string {
	name := strings.TrimSpace(spec.OutputFile)
	if name == "" {
		return fallback
	}
	return filepath.Join(d.settings.OutputDir, filepath.Base(name))
}

func (d *Driver) fail(report *Report, logger logSDK.Logger, err error) {
	logger.Error("topic news pipeline failed", zap.Error(err))

	report.Error = err.Error()
	if errors.Is(err, ErrMissingArtifact) {
		report.Message = MsgMissingArtifact
	} else {
		report.Message = "An error occurred: " + err.Error()
	}
	report.enter(PhaseFailed)
}

package news

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/topic-news/internal/crew"
	"github.com/Laisky/topic-news/internal/library/llm"
	"github.com/Laisky/topic-news/library/search"
)

const testAgentsYAML = `
news_fetcher_agent:
  role: Senior News Researcher on {topic}
  goal: Find the latest news about {topic}
  backstory: You dig up fresh stories.
news_analyzer_agent:
  role: News Analyst
  goal: Summarize {topic} news
  backstory: You write sharp briefs.
`

const testTasksYAML = `
fetch_topic_news_task:
  description: Search news about {topic} published {week_range}. Today is {current_time}.
  expected_output: A list of news items with title, url and summary.
  agent: news_fetcher_agent
analyze_topic_news_task:
  description: Analyze the fetched {topic} news.
  expected_output: A markdown report.
  agent: news_analyzer_agent
`

var testNow = time.Date(2024, 5, 8, 9, 30, 0, 0, time.UTC)

type scriptedModel struct {
	mu      sync.Mutex
	replies []string
}

func (m *scriptedModel) Model() string { return "scripted" }

func (m *scriptedModel) Generate(context.Context, string, string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.replies) == 0 {
		return "Final Answer: nothing scripted", nil
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	return r, nil
}

type stubEngine struct {
	queries []string
}

func (s *stubEngine) Name() string { return "stub" }

func (s *stubEngine) Search(_ context.Context, query string) ([]search.Result, error) {
	s.queries = append(s.queries, query)
	return []search.Result{{Title: "EU passes AI Act", URL: "https://example.com/ai-act", Summary: "..."}}, nil
}

// orchestratorFunc adapts a function to Orchestrator.
type orchestratorFunc func(ctx context.Context, c *crew.Crew, inputs crew.Inputs) (string, error)

func (f orchestratorFunc) RunPipeline(ctx context.Context, c *crew.Crew, inputs crew.Inputs) (string, error) {
	return f(ctx, c, inputs)
}

type models struct {
	mu    sync.Mutex
	names []string
	model llm.ChatModel
}

func (m *models) factory(_ context.Context, apiKey, model string) (llm.ChatModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if apiKey == "" {
		return nil, errors.New("missing api key")
	}
	m.names = append(m.names, model)
	return m.model, nil
}

func newTestDriver(t *testing.T, opts ...Option) (*Driver, string, *models) {
	t.Helper()
	dir := t.TempDir()
	agents := filepath.Join(dir, "agents.yaml")
	tasks := filepath.Join(dir, "tasks.yaml")
	require.NoError(t, os.WriteFile(agents, []byte(testAgentsYAML), 0o644))
	require.NoError(t, os.WriteFile(tasks, []byte(testTasksYAML), 0o644))

	ms := &models{model: &scriptedModel{}}
	base := []Option{
		WithClock(func() time.Time { return testNow }),
		WithModelFactory(ms.factory),
		WithEngineFactory(func(string) search.Engine { return &stubEngine{} }),
	}

	d := NewDriver(Settings{
		AgentsConfig: agents,
		TasksConfig:  tasks,
		OutputDir:    filepath.Join(dir, "out"),
	}, append(base, opts...)...)
	return d, dir, ms
}

var testCreds = Credentials{LLMAPIKey: "sk-llm", SearchAPIKey: "serper-key"}

func TestDriverRendersArtifact(t *testing.T) {
	const artifact = "# AI regulation\n\n- The EU AI Act passed."

	var gotInputs crew.Inputs
	var gotCrew *crew.Crew
	d, _, ms := newTestDriver(t, WithOrchestrator(orchestratorFunc(
		func(_ context.Context, c *crew.Crew, inputs crew.Inputs) (string, error) {
			gotInputs, gotCrew = inputs, c
			path := c.Tasks[1].OutputFile
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
			require.NoError(t, os.WriteFile(path, []byte(artifact), 0o644))
			return path, nil
		})))

	report := d.Run(context.Background(), "AI regulation", testCreds)
	require.Equal(t, PhaseDone, report.State)
	require.True(t, report.Succeeded())
	require.Equal(t, artifact, report.Content)
	require.Contains(t, report.HTML, "<h1")
	require.Equal(t, MsgCompleted, report.Message)
	require.Empty(t, report.Error)
	require.Equal(t, []Phase{PhaseIdle, PhaseValidating, PhaseFetching, PhaseAnalyzing, PhaseRendering, PhaseDone}, report.Phases)
	require.NotEmpty(t, report.RunID)

	require.Equal(t, crew.Inputs{
		CurrentTime: "2024-05-08 09:30:00",
		Topic:       "AI regulation",
		WeekRange:   "after:2024-05-01",
		MonthRange:  "after:2024-04-08",
	}, gotInputs)

	require.Equal(t, []string{"gpt-3.5-turbo", "gpt-4-turbo"}, ms.names)
	require.NotNil(t, gotCrew.Manager)
	require.Equal(t, crew.ProcessSequential, gotCrew.Process)
	require.Len(t, gotCrew.Tasks, 2)
	require.Equal(t, FetchTask, gotCrew.Tasks[0].Name)
	require.Equal(t, FetcherAgent, gotCrew.Tasks[0].Worker.Name())
	require.Equal(t, 1, gotCrew.Tasks[0].Worker.MaxIter())
	require.Len(t, gotCrew.Tasks[0].Worker.Tools(), 1)
	require.Equal(t, AnalyzerAgent, gotCrew.Tasks[1].Worker.Name())
	require.Empty(t, gotCrew.Tasks[1].Worker.Tools())
}

func TestDriverMissingArtifact(t *testing.T) {
	d, _, _ := newTestDriver(t, WithOrchestrator(orchestratorFunc(
		func(_ context.Context, c *crew.Crew, _ crew.Inputs) (string, error) {
			return c.Tasks[1].OutputFile, nil
		})))

	var report *Report
	require.NotPanics(t, func() {
		report = d.Run(context.Background(), "AI regulation", testCreds)
	})
	require.Equal(t, PhaseFailed, report.State)
	require.Equal(t, MsgMissingArtifact, report.Message)
	require.Empty(t, report.Content)
	require.Equal(t, PhaseFailed, report.Phases[len(report.Phases)-1])
}

// TestDriverClearsStaleArtifact verifies a previous run's analyze output is never shown as fresh.
func TestDriverClearsStaleArtifact(t *testing.T) {
	d, _, _ := newTestDriver(t, WithOrchestrator(orchestratorFunc(
		func(context.Context, *crew.Crew, crew.Inputs) (string, error) {
			return "", nil
		})))

	fetchPath, analyzePath := d.OutputPaths()
	require.NoError(t, os.MkdirAll(filepath.Dir(analyzePath), 0o755))
	require.NoError(t, os.WriteFile(analyzePath, []byte("stale analysis"), 0o644))
	require.NoError(t, os.WriteFile(fetchPath, []byte("stale fetch"), 0o644))

	report := d.Run(context.Background(), "AI regulation", testCreds)
	require.Equal(t, PhaseFailed, report.State)
	require.Equal(t, MsgMissingArtifact, report.Message)
	require.NotContains(t, report.Content, "stale")

	_, err := os.Stat(fetchPath)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestDriverHonorsTaskOutputFiles(t *testing.T) {
	var gotFetch, gotAnalyze string
	d, dir, _ := newTestDriver(t, WithOrchestrator(orchestratorFunc(
		func(_ context.Context, c *crew.Crew, _ crew.Inputs) (string, error) {
			gotFetch, gotAnalyze = c.Tasks[0].OutputFile, c.Tasks[1].OutputFile
			if err := os.MkdirAll(filepath.Dir(gotAnalyze), 0o755); err != nil {
				return "", err
			}
			return gotAnalyze, os.WriteFile(gotAnalyze, []byte("# Brief"), 0o644)
		})))

	tasks := `
fetch_topic_news_task:
  description: Search {topic}.
  expected_output: news
  agent: news_fetcher_agent
  output_file: raw/custom_fetch.md
analyze_topic_news_task:
  description: Analyze {topic}.
  expected_output: report
  agent: news_analyzer_agent
  output_file: ../custom_analysis.md
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tasks.yaml"), []byte(tasks), 0o644))

	report := d.Run(context.Background(), "AI regulation", testCreds)
	require.Equal(t, PhaseDone, report.State, report.Error)

	outDir := filepath.Join(dir, "out")
	require.Equal(t, filepath.Join(outDir, "custom_fetch.md"), gotFetch)
	require.Equal(t, filepath.Join(outDir, "custom_analysis.md"), gotAnalyze)
	require.Equal(t, gotAnalyze, report.ArtifactPath)
	require.Equal(t, "# Brief", report.Content)
}

func TestDriverOrchestratorError(t *testing.T) {
	d, _, _ := newTestDriver(t, WithOrchestrator(orchestratorFunc(
		func(context.Context, *crew.Crew, crew.Inputs) (string, error) {
			return "", errors.New("openai: 401 unauthorized")
		})))

	report := d.Run(context.Background(), "AI regulation", testCreds)
	require.Equal(t, PhaseFailed, report.State)
	require.Contains(t, report.Message, "An error occurred")
	require.Contains(t, report.Error, "401 unauthorized")
	require.Equal(t, []Phase{PhaseIdle, PhaseValidating, PhaseFetching, PhaseFailed}, report.Phases)
}

func TestDriverRecoversPanic(t *testing.T) {
	d, _, _ := newTestDriver(t, WithOrchestrator(orchestratorFunc(
		func(context.Context, *crew.Crew, crew.Inputs) (string, error) {
			panic("engine exploded")
		})))

	var report *Report
	require.NotPanics(t, func() {
		report = d.Run(context.Background(), "AI regulation", testCreds)
	})
	require.Equal(t, PhaseFailed, report.State)
	require.Contains(t, report.Error, "engine exploded")
	require.False(t, report.FinishedAt.IsZero())
}

func TestDriverConfigLoadError(t *testing.T) {
	d := NewDriver(Settings{
		AgentsConfig: filepath.Join(t.TempDir(), "missing.yaml"),
		TasksConfig:  filepath.Join(t.TempDir(), "missing.yaml"),
		OutputDir:    t.TempDir(),
	}, WithModelFactory((&models{model: &scriptedModel{}}).factory))

	report := d.Run(context.Background(), "AI regulation", testCreds)
	require.Equal(t, PhaseFailed, report.State)
	require.Contains(t, report.Error, "load agents")
	require.Equal(t, []Phase{PhaseIdle, PhaseValidating, PhaseFailed}, report.Phases)
}

func TestDriverMissingCredentialFailsConstruction(t *testing.T) {
	d, _, _ := newTestDriver(t)

	report := d.Run(context.Background(), "AI regulation", Credentials{SearchAPIKey: "k"})
	require.Equal(t, PhaseFailed, report.State)
	require.Contains(t, report.Error, "missing api key")
}

// TestDriverEndToEndWithSequentialEngine runs the real crew engine against scripted models.
func TestDriverEndToEndWithSequentialEngine(t *testing.T) {
	engine := &stubEngine{}
	model := &scriptedModel{replies: []string{
		"Thought: I should search\nAction: Search the internet\nAction Input: {\"query\": \"AI regulation after:2024-05-01\"}",
		"1. EU passes AI Act - https://example.com/ai-act",
		"Thought: I now know the final answer\nFinal Answer: ## Analysis\n\nThe EU AI Act passed.",
	}}
	rec := &crew.Recorder{}

	d, _, _ := newTestDriver(t,
		WithModelFactory((&models{model: model}).factory),
		WithEngineFactory(func(key string) search.Engine {
			require.Equal(t, "serper-key", key)
			return engine
		}),
		WithObserver(rec),
	)

	report := d.Run(context.Background(), "AI regulation", testCreds)
	require.Equal(t, PhaseDone, report.State, report.Error)
	require.Equal(t, "## Analysis\n\nThe EU AI Act passed.", report.Content)
	require.Equal(t, []string{"AI regulation after:2024-05-01"}, engine.queries)

	fetchPath, _ := d.OutputPaths()
	fetched, err := os.ReadFile(fetchPath)
	require.NoError(t, err)
	require.Equal(t, "1. EU passes AI Act - https://example.com/ai-act", string(fetched))

	require.Len(t, report.Steps, 3)
	require.Equal(t, crew.StatusToolCall, report.Steps[0].Status)
	require.Equal(t, "Search the internet", report.Steps[0].Tool)
	require.Contains(t, report.Steps[0].Output, "EU passes AI Act")
	require.Equal(t, crew.StatusForcedFinal, report.Steps[1].Status)
	require.Equal(t, AnalyzeTask, report.Steps[2].Task)
	require.Equal(t, report.Steps, rec.Events())
	require.Equal(t, []Phase{PhaseIdle, PhaseValidating, PhaseFetching, PhaseAnalyzing, PhaseRendering, PhaseDone}, report.Phases)
}

func TestValidateRequest(t *testing.T) {
	require.ErrorIs(t, ValidateRequest("  ", testCreds), ErrMissingTopic)
	require.ErrorIs(t, ValidateRequest("", Credentials{}), ErrMissingTopic)
	require.ErrorIs(t, ValidateRequest("Go", Credentials{LLMAPIKey: "x"}), ErrMissingCredentials)
	require.ErrorIs(t, ValidateRequest("Go", Credentials{SearchAPIKey: "x"}), ErrMissingCredentials)
	require.NoError(t, ValidateRequest("Go", testCreds))
}

func TestSearchToolUnwrapsJSONInput(t *testing.T) {
	engine := &stubEngine{}
	tool := NewSearchTool(engine)

	out, err := tool.Run(context.Background(), `{"search_query": "Go 1.23"}`)
	require.NoError(t, err)
	require.JSONEq(t, `[{"title":"EU passes AI Act","url":"https://example.com/ai-act","summary":"..."}]`, out)

	_, err = tool.Run(context.Background(), "plain query")
	require.NoError(t, err)
	require.Equal(t, []string{"Go 1.23", "plain query"}, engine.queries)
}

func TestSearchToolReportsFailureAsData(t *testing.T) {
	tool := NewSearchTool(failingEngine{})
	out, err := tool.Run(context.Background(), "q")
	require.NoError(t, err)
	require.JSONEq(t, `{"error":"SERPER_API_KEY is not set"}`, out)
}

type failingEngine struct{}

func (failingEngine) Name() string { return "failing" }
func (failingEngine) Search(context.Context, string) ([]search.Result, error) {
	return nil, search.NewError(search.KindMissingCredential, nil)
}

func TestRenderMarkdown(t *testing.T) {
	out := RenderMarkdown("# Title\n\n[link](https://example.com)")
	require.Contains(t, out, "<h1")
	require.Contains(t, out, `target="_blank"`)

	require.Contains(t, out, `rel="nofollow noreferrer noopener"`)

	out = RenderMarkdown("hello <script>alert(1)</script>")
	require.NotContains(t, out, "<script>")

	out = RenderMarkdown("[click](javascript:alert(document.cookie)) and [data](data:text/html;base64,PHNjcmlwdD4=)")
	require.NotContains(t, out, `href="javascript:`)
	require.NotContains(t, out, `href="data:`)
	require.Contains(t, out, "click")

	out = RenderMarkdown("[upper](JavaScript:alert(1)) [short](a) [anchor](#top)")
	require.NotContains(t, out, `href="JavaScript:`)
	require.Contains(t, out, `href="a"`)
	require.Contains(t, out, `href="#top"`)

	out = RenderMarkdown("[mail](mailto:news@example.com)")
	require.Contains(t, out, `href="mailto:news@example.com"`)
}

func TestShippedCrewDocuments(t *testing.T) {
	agents, err := crew.LoadAgents(filepath.Join("..", "..", "config", "agents.yaml"))
	require.NoError(t, err)
	require.Contains(t, agents, FetcherAgent)
	require.Contains(t, agents, AnalyzerAgent)

	tasks, err := crew.LoadTasks(filepath.Join("..", "..", "config", "tasks.yaml"))
	require.NoError(t, err)
	require.Equal(t, FetcherAgent, tasks[FetchTask].Agent)
	require.Equal(t, AnalyzerAgent, tasks[AnalyzeTask].Agent)
	require.Equal(t, FetchOutputFile, tasks[FetchTask].OutputFile)
	require.Equal(t, AnalyzeOutputFile, tasks[AnalyzeTask].OutputFile)

	inputs := crew.NewInputs(time.Date(2024, 5, 8, 10, 0, 0, 0, time.UTC), "golang").Map()
	desc := crew.Interpolate(tasks[FetchTask].Description, inputs)
	require.Contains(t, desc, "golang after:2024-05-01")
	require.NotContains(t, desc, "{topic}")
}

package crew

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"
)

// scriptedModel replies with a fixed sequence and records every prompt it receives.
type scriptedModel struct {
	mu      sync.Mutex
	replies []string
	err     error
	systems []string
	users   []string
}

func (m *scriptedModel) Model() string { return "scripted" }

func (m *scriptedModel) Generate(_ context.Context, system, user string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.systems = append(m.systems, system)
	m.users = append(m.users, user)
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return "Final Answer: (no script)", nil
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply, nil
}

type echoTool struct {
	calls []string
	err   error
}

func (t *echoTool) Name() string        { return "news_search" }
func (t *echoTool) Description() string { return "search news" }
func (t *echoTool) Run(_ context.Context, input string) (string, error) {
	t.calls = append(t.calls, input)
	if t.err != nil {
		return "", t.err
	}
	return `[{"title":"T","url":"u","summary":"s"}]`, nil
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAgentsAndTasks(t *testing.T) {
	dir := t.TempDir()
	agentsPath := writeFile(t, dir, "agents.yaml", `
news_fetcher_agent:
  role: News Fetcher for {topic}
  goal: Fetch news
  backstory: Curious
`)
	tasksPath := writeFile(t, dir, "tasks.yaml", `
fetch_topic_news_task:
  description: Fetch {topic} news {week_range}
  expected_output: a list
  agent: news_fetcher_agent
`)

	agents, err := LoadAgents(agentsPath)
	require.NoError(t, err)
	require.Equal(t, "News Fetcher for {topic}", agents["news_fetcher_agent"].Role)

	tasks, err := LoadTasks(tasksPath)
	require.NoError(t, err)
	require.Equal(t, "news_fetcher_agent", tasks["fetch_topic_news_task"].Agent)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadAgents(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrConfig))

	bad := writeFile(t, dir, "bad.yaml", "news_fetcher_agent: [unclosed")
	_, err = LoadTasks(bad)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrConfig))

	noRole := writeFile(t, dir, "norole.yaml", "a:\n  goal: g\n")
	_, err = LoadAgents(noRole)
	require.ErrorContains(t, err, "has no role")
}

func TestNewInputs(t *testing.T) {
	now := time.Date(2024, 5, 8, 14, 3, 9, 0, time.UTC)
	in := NewInputs(now, "AI agents")

	require.Equal(t, "2024-05-08 14:03:09", in.CurrentTime)
	require.Equal(t, "AI agents", in.Topic)
	require.Equal(t, "after:2024-05-01", in.WeekRange)
	require.Equal(t, "after:2024-04-08", in.MonthRange)
}

func TestInterpolate(t *testing.T) {
	vars := map[string]string{"topic": "Go", "week_range": "after:2024-05-01"}
	require.Equal(t, "news on Go after:2024-05-01 {unknown}",
		Interpolate("news on {topic} {week_range} {unknown}", vars))
	require.Equal(t, "{topic}", Interpolate("{topic}", nil))
}

func TestParseStep(t *testing.T) {
	for _, tc := range []struct {
		name   string
		reply  string
		action string
		input  string
		final  string
	}{
		{name: "final", reply: "Thought: done\nFinal Answer: the news", final: "the news"},
		{name: "plain", reply: "just text", final: "just text"},
		{name: "action", reply: "Thought: search\nAction: news_search\nAction Input: \"Go after:2024-05-01\"", action: "news_search", input: "Go after:2024-05-01"},
		{name: "action with hallucinated observation", reply: "Action: news_search\nAction Input: {\"query\": \"Go\"}\nObservation: fake\nFinal Answer: x", action: "news_search", input: `{"query": "Go"}`},
		{name: "final before action", reply: "Final Answer: ok\nAction: news_search", final: "ok\nAction: news_search"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			st := parseStep(tc.reply)
			require.Equal(t, tc.action, st.action)
			require.Equal(t, tc.input, st.input)
			require.Equal(t, tc.final, st.final)
		})
	}
}

func TestWorkerToolThenForcedFinal(t *testing.T) {
	model := &scriptedModel{replies: []string{
		"Thought: search\nAction: news_search\nAction Input: Go news",
		"- headline one",
	}}
	tool := &echoTool{}
	rec := &Recorder{}

	w, err := NewWorker("news_fetcher_agent", AgentSpec{Role: "Fetcher", Goal: "g", Backstory: "b"}, model,
		WithTools(tool), WithMaxIter(1), WithObserver(rec))
	require.NoError(t, err)

	out, err := w.execute(context.Background(), assignment{runID: "r1", task: "fetch", description: "d", persona: w.persona})
	require.NoError(t, err)
	require.Equal(t, "- headline one", out)
	require.Equal(t, []string{"Go news"}, tool.calls)
	require.Len(t, model.users, 2)
	require.Contains(t, model.users[1], "Observation: [{\"title\":\"T\"")
	require.True(t, strings.HasSuffix(model.users[1], "Final Answer:"))
	require.Contains(t, model.systems[0], "Tool Name: news_search")

	events := rec.Events()
	require.Len(t, events, 2)
	require.Equal(t, StatusToolCall, events[0].Status)
	require.Equal(t, "news_search", events[0].Tool)
	require.Equal(t, "r1", events[0].RunID)
	require.Equal(t, "news_fetcher_agent", events[0].Agent)
	require.Equal(t, StatusForcedFinal, events[1].Status)
	require.Equal(t, 2, events[1].Iteration)
}

func TestWorkerUnknownToolAndToolError(t *testing.T) {
	model := &scriptedModel{replies: []string{
		"Action: web_browse\nAction Input: x",
		"Action: news_search\nAction Input: y",
		"Final Answer: gave up",
	}}
	tool := &echoTool{err: errors.New("quota")}
	rec := &Recorder{}

	w, err := NewWorker("a", AgentSpec{Role: "r"}, model, WithTools(tool), WithMaxIter(2), WithObserver(rec))
	require.NoError(t, err)

	out, err := w.execute(context.Background(), assignment{task: "t"})
	require.NoError(t, err)
	require.Equal(t, "gave up", out)

	events := rec.Events()
	require.Len(t, events, 3)
	require.Equal(t, StatusToolError, events[0].Status)
	require.Contains(t, events[0].Output, "don't exist")
	require.Equal(t, StatusToolError, events[1].Status)
	require.Contains(t, events[1].Output, "quota")
}

func TestWorkerModelError(t *testing.T) {
	rec := &Recorder{}
	w, err := NewWorker("a", AgentSpec{Role: "r"}, &scriptedModel{err: errors.New("401")}, WithObserver(rec))
	require.NoError(t, err)

	_, err = w.execute(context.Background(), assignment{task: "t"})
	require.ErrorContains(t, err, "401")
	require.Equal(t, StatusFailed, rec.Events()[0].Status)
}

func TestNewWorkerRejectsDelegation(t *testing.T) {
	_, err := NewWorker("a", AgentSpec{Role: "r"}, &scriptedModel{}, WithDelegation(true))
	require.Error(t, err)

	_, err = NewWorker("a", AgentSpec{Role: "r"}, nil)
	require.Error(t, err)
}

func TestSequentialRunPipeline(t *testing.T) {
	dir := t.TempDir()
	fetchModel := &scriptedModel{replies: []string{"Final Answer: fetched {topic} list"}}
	analyzeModel := &scriptedModel{replies: []string{"Final Answer: # Analysis"}}

	fetcher, err := NewWorker("news_fetcher_agent", AgentSpec{Role: "Fetcher of {topic}"}, fetchModel)
	require.NoError(t, err)
	analyzer, err := NewWorker("news_analyzer_agent", AgentSpec{Role: "Analyzer"}, analyzeModel)
	require.NoError(t, err)

	fetchPath := filepath.Join(dir, "out", "fetched_topic_news.md")
	analyzePath := filepath.Join(dir, "out", "analyzed_topic_news.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(analyzePath), 0o755))
	require.NoError(t, os.WriteFile(analyzePath, []byte("stale"), 0o644))

	fetchTask, err := NewTask("fetch_topic_news_task", TaskSpec{Description: "fetch {topic} {week_range}"}, fetcher, fetchPath)
	require.NoError(t, err)
	analyzeTask, err := NewTask("analyze_topic_news_task", TaskSpec{Description: "analyze"}, analyzer, analyzePath)
	require.NoError(t, err)

	c := &Crew{RunID: "run", Tasks: []*Task{fetchTask, analyzeTask}, Process: ProcessSequential, Manager: &scriptedModel{}}
	require.Len(t, c.Workers(), 2)

	inputs := NewInputs(time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC), "Go")
	out, err := NewSequential().RunPipeline(context.Background(), c, inputs)
	require.NoError(t, err)
	require.Equal(t, analyzePath, out)

	require.Contains(t, fetchModel.systems[0], "You are Fetcher of Go.")
	require.Contains(t, fetchModel.users[0], "Current Task: fetch Go after:2024-05-01")
	require.Contains(t, analyzeModel.users[0], "This is the context you're working with:\nfetched {topic} list")

	body, err := os.ReadFile(fetchPath)
	require.NoError(t, err)
	require.Equal(t, "fetched {topic} list", string(body))
	body, err = os.ReadFile(analyzePath)
	require.NoError(t, err)
	require.Equal(t, "# Analysis", string(body))
}

func TestSequentialRejectsOtherProcess(t *testing.T) {
	w, err := NewWorker("a", AgentSpec{Role: "r"}, &scriptedModel{})
	require.NoError(t, err)
	task, err := NewTask("t", TaskSpec{Description: "d"}, w, "")
	require.NoError(t, err)

	_, err = NewSequential().RunPipeline(context.Background(), &Crew{Tasks: []*Task{task}, Process: "hierarchical"}, Inputs{})
	require.ErrorContains(t, err, "unsupported crew process")

	_, err = NewSequential().RunPipeline(context.Background(), &Crew{}, Inputs{})
	require.Error(t, err)
}

func TestSequentialCapContext(t *testing.T) {
	s := NewSequential(WithContextLimit(20))
	text := "first paragraph\n\nsecond paragraph that is long"
	capped := s.capContext(text)
	require.LessOrEqual(t, len([]rune(capped)), 20)
	require.Equal(t, "first paragraph", capped)

	require.Equal(t, text, NewSequential(WithContextLimit(0)).capContext(text))
}

func TestMultiObserver(t *testing.T) {
	var got []string
	rec := &Recorder{}
	obs := MultiObserver{nil, rec, ObserverFunc(func(ev StepEvent) { got = append(got, ev.Status) })}
	obs.OnStep(StepEvent{Status: StatusFinalAnswer})

	require.Equal(t, []string{StatusFinalAnswer}, got)
	require.Len(t, rec.Events(), 1)
}

package crew

import (
	"context"
	"fmt"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/Laisky/topic-news/internal/library/llm"
	"github.com/Laisky/topic-news/library/log"
)

const defaultMaxIter = 1

// WorkerOption customises a Worker during construction.
type WorkerOption func(*Worker)

// WithTools attaches tools the worker may call.
func WithTools(tools ...Tool) WorkerOption {
	return func(w *Worker) {
		for _, t := range tools {
			if t != nil {
				w.tools = append(w.tools, t)
			}
		}
	}
}

// WithMaxIter bounds the number of reasoning iterations. Values below 1 are ignored.
func WithMaxIter(n int) WorkerOption {
	return func(w *Worker) {
		if n >= 1 {
			w.maxIter = n
		}
	}
}

// WithObserver attaches a step observer.
func WithObserver(o Observer) WorkerOption {
	return func(w *Worker) {
		w.observer = o
	}
}

// WithDelegation toggles delegation. Only false is supported by the sequential engine.
func WithDelegation(allow bool) WorkerOption {
	return func(w *Worker) {
		w.allowDelegation = allow
	}
}

// WithWorkerLogger overrides the worker logger.
func WithWorkerLogger(logger logSDK.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Worker is a role-bound LLM agent.
type Worker struct {
	name            string
	persona         AgentSpec
	model           llm.ChatModel
	tools           []Tool
	maxIter         int
	allowDelegation bool
	observer        Observer
	logger          logSDK.Logger
}

// NewWorker builds a worker named name from its roles-document entry.
func NewWorker(name string, spec AgentSpec, model llm.ChatModel, opts ...WorkerOption) (*Worker, error) {
	if model == nil {
		return nil, errors.Errorf("worker %q has no chat model", name)
	}

	w := &Worker{
		name:            name,
		persona:         spec,
		model:           model,
		maxIter:         defaultMaxIter,
		allowDelegation: spec.AllowDelegation,
		logger:          log.Logger.Named("worker").With(zap.String("agent", name)),
	}
	if spec.MaxIter >= 1 {
		w.maxIter = spec.MaxIter
	}

	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}

	if w.allowDelegation {
		return nil, errors.Errorf("worker %q: delegation is not supported", name)
	}
	return w, nil
}

// Name returns the worker's roles-document key.
func (w *Worker) Name() string {
	return w.name
}

// MaxIter returns the iteration bound.
func (w *Worker) MaxIter() int {
	return w.maxIter
}

// Tools returns the attached tools.
func (w *Worker) Tools() []Tool {
	return w.tools
}

// assignment is one interpolated task handed to a worker.
type assignment struct {
	runID          string
	task           string
	description    string
	expectedOutput string
	context        string
	persona        AgentSpec
}

func (w *Worker) systemPrompt(persona AgentSpec) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s. %s\nYour personal goal is: %s\n", persona.Role, persona.Backstory, persona.Goal)

	if len(w.tools) > 0 {
		names := make([]string, 0, len(w.tools))
		sb.WriteString("\nYou ONLY have access to the following tools, and should NEVER make up tools that are not listed here:\n\n")
		for _, t := range w.tools {
			names = append(names, t.Name())
			fmt.Fprintf(&sb, "Tool Name: %s\nTool Description: %s\n\n", t.Name(), t.Description())
		}
		fmt.Fprintf(&sb, "Use the following format:\n\n"+
			"Thought: you should always think about what to do\n"+
			"Action: the action to take, only one name of [%s], just the name, exactly as it's written.\n"+
			"Action Input: the input to the action, just a simple plain text\n"+
			"Observation: the result of the action\n\n"+
			"Once all necessary information is gathered:\n\n", strings.Join(names, ", "))
	} else {
		sb.WriteString("\nTo give my best complete final answer to the task use the exact following format:\n\n")
	}
	sb.WriteString("Thought: I now know the final answer\n" +
		"Final Answer: the final answer to the original input question\n")

	return sb.String()
}

func userPrompt(a assignment, scratchpad string, forceFinal bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Current Task: %s\n\nThis is the expect criteria for your final answer: %s\n"+
		"you MUST return the actual complete content as the final answer, not a summary.\n",
		a.description, a.expectedOutput)
	if strings.TrimSpace(a.context) != "" {
		fmt.Fprintf(&sb, "\nThis is the context you're working with:\n%s\n", a.context)
	}
	sb.WriteString("\nBegin! This is VERY important to you, use the tools available and give your best Final Answer, your job depends on it!\n\n")
	sb.WriteString(scratchpad)
	if forceFinal {
		sb.WriteString("\nI've used too many tools for this task. I'm going to give you my absolute BEST Final answer now and I won't use any more tools.\n" +
			"Thought: I now know the final answer\nFinal Answer:")
	}
	return sb.String()
}

// execute runs the reasoning loop for one assignment and returns the final answer.
// At most maxIter model calls may request tools; when they are exhausted one more
// call asks for the final answer.
func (w *Worker) execute(ctx context.Context, a assignment) (string, error) {
	system := w.systemPrompt(a.persona)
	var scratchpad strings.Builder

	for iter := 1; iter <= w.maxIter; iter++ {
		reply, err := w.model.Generate(ctx, system, userPrompt(a, scratchpad.String(), false))
		if err != nil {
			w.emit(a, StepEvent{Status: StatusFailed, Iteration: iter, Output: err.Error()})
			return "", errors.Wrapf(err, "worker %q iteration %d", w.name, iter)
		}

		st := parseStep(reply)
		if !st.isAction() {
			w.emit(a, StepEvent{Status: StatusFinalAnswer, Iteration: iter, Output: st.final})
			return st.final, nil
		}

		observation, status := w.runTool(ctx, st)
		w.emit(a, StepEvent{Status: status, Iteration: iter, Tool: st.action, Input: st.input, Output: observation})
		fmt.Fprintf(&scratchpad, "%s\nObservation: %s\n", strings.TrimSpace(reply), observation)
	}

	reply, err := w.model.Generate(ctx, system, userPrompt(a, scratchpad.String(), true))
	if err != nil {
		w.emit(a, StepEvent{Status: StatusFailed, Iteration: w.maxIter + 1, Output: err.Error()})
		return "", errors.Wrapf(err, "worker %q final answer", w.name)
	}

	st := parseStep(reply)
	answer := st.final
	if st.isAction() {
		// the model insisted on another tool; keep whatever it wrote
		answer = strings.TrimSpace(reply)
	}
	w.emit(a, StepEvent{Status: StatusForcedFinal, Iteration: w.maxIter + 1, Output: answer})
	return answer, nil
}

func (w *Worker) runTool(ctx context.Context, st step) (observation, status string) {
	for _, t := range w.tools {
		if !strings.EqualFold(t.Name(), st.action) {
			continue
		}

		out, err := t.Run(ctx, st.input)
		if err != nil {
			w.logger.Warn("tool failed", zap.String("tool", t.Name()), zap.Error(err))
			return fmt.Sprintf("Tool %s failed: %s", t.Name(), err.Error()), StatusToolError
		}
		return out, StatusToolCall
	}

	names := make([]string, 0, len(w.tools))
	for _, t := range w.tools {
		names = append(names, t.Name())
	}
	return fmt.Sprintf("Action '%s' don't exist, these are the only available Actions: [%s]",
		st.action, strings.Join(names, ", ")), StatusToolError
}

func (w *Worker) emit(a assignment, ev StepEvent) {
	if w.observer == nil {
		return
	}

	ev.RunID = a.runID
	ev.Agent = w.name
	ev.Task = a.task
	ev.At = time.Now().UTC()
	w.observer.OnStep(ev)
}

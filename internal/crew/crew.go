package crew

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/Laisky/topic-news/internal/library/llm"
	"github.com/Laisky/topic-news/library/log"
)

// ProcessSequential is the only supported process.
const ProcessSequential = "sequential"

// DefaultContextLimit caps, in characters, the previous task output handed to the next task.
const DefaultContextLimit = 12000

// Task binds a tasks-document entry to its worker and output file.
type Task struct {
	Name           string
	Description    string
	ExpectedOutput string
	Worker         *Worker
	// OutputFile receives the task output. Empty means the output is not persisted.
	OutputFile string
}

// NewTask builds a task from its tasks-document entry.
func NewTask(name string, spec TaskSpec, worker *Worker, outputFile string) (*Task, error) {
	if worker == nil {
		return nil, errors.Errorf("task %q has no worker", name)
	}

	return &Task{
		Name:           name,
		Description:    spec.Description,
		ExpectedOutput: spec.ExpectedOutput,
		Worker:         worker,
		OutputFile:     outputFile,
	}, nil
}

// Crew is an ordered set of tasks plus the process that runs them.
type Crew struct {
	RunID   string
	Tasks   []*Task
	Process string
	// Manager is the coordinating model. The sequential process does not call it.
	Manager llm.ChatModel
}

// Workers returns the distinct workers in task order.
func (c *Crew) Workers() []*Worker {
	seen := map[*Worker]bool{}
	out := make([]*Worker, 0, len(c.Tasks))
	for _, t := range c.Tasks {
		if !seen[t.Worker] {
			seen[t.Worker] = true
			out = append(out, t.Worker)
		}
	}
	return out
}

// SequentialOption customises a Sequential engine.
type SequentialOption func(*Sequential)

// WithContextLimit overrides DefaultContextLimit. Zero disables the cap.
func WithContextLimit(chars int) SequentialOption {
	return func(s *Sequential) {
		if chars >= 0 {
			s.contextLimit = chars
		}
	}
}

// WithEngineLogger overrides the engine logger.
func WithEngineLogger(logger logSDK.Logger) SequentialOption {
	return func(s *Sequential) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Sequential runs tasks one after another, feeding each output to the next task.
type Sequential struct {
	contextLimit int
	logger       logSDK.Logger
}

// NewSequential creates the sequential engine.
func NewSequential(opts ...SequentialOption) *Sequential {
	s := &Sequential{
		contextLimit: DefaultContextLimit,
		logger:       log.Logger.Named("crew"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// RunPipeline executes every task of c with inputs interpolated into task and role text.
// Each output is written to its task's file, replacing any previous content.
// It returns the output file of the last task.
func (s *Sequential) RunPipeline(ctx context.Context, c *Crew, inputs Inputs) (string, error) {
	if c == nil || len(c.Tasks) == 0 {
		return "", errors.New("crew has no tasks")
	}
	if p := strings.TrimSpace(c.Process); p != "" && p != ProcessSequential {
		return "", errors.Errorf("unsupported crew process %q", c.Process)
	}

	logger := s.logger.With(zap.String("run_id", c.RunID))
	if c.Manager != nil {
		logger.Debug("manager model configured", zap.String("model", c.Manager.Model()))
	}

	vars := inputs.Map()
	var (
		previous   string
		outputPath string
	)
	for _, task := range c.Tasks {
		if err := ctx.Err(); err != nil {
			return "", errors.Wrap(err, "crew run canceled")
		}

		logger.Info("start task", zap.String("task", task.Name), zap.String("agent", task.Worker.Name()))
		persona := task.Worker.persona
		output, err := task.Worker.execute(ctx, assignment{
			runID:          c.RunID,
			task:           task.Name,
			description:    Interpolate(task.Description, vars),
			expectedOutput: Interpolate(task.ExpectedOutput, vars),
			context:        s.capContext(previous),
			persona: AgentSpec{
				Role:      Interpolate(persona.Role, vars),
				Goal:      Interpolate(persona.Goal, vars),
				Backstory: Interpolate(persona.Backstory, vars),
			},
		})
		if err != nil {
			return "", errors.Wrapf(err, "run task %q", task.Name)
		}

		if task.OutputFile != "" {
			if err = writeOutput(task.OutputFile, output); err != nil {
				return "", errors.Wrapf(err, "write output of task %q", task.Name)
			}
		}

		logger.Info("task done",
			zap.String("task", task.Name),
			zap.String("output_file", task.OutputFile),
			zap.Int("output_len", len(output)))
		previous = output
		outputPath = task.OutputFile
	}

	return outputPath, nil
}

// capContext trims text to the first chunk of at most contextLimit characters,
// preferring paragraph and line boundaries.
func (s *Sequential) capContext(text string) string {
	if s.contextLimit <= 0 || len([]rune(text)) <= s.contextLimit {
		return text
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(s.contextLimit),
		textsplitter.WithChunkOverlap(0),
		textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
	)
	chunks, err := splitter.SplitText(text)
	if err != nil || len(chunks) == 0 {
		s.logger.Warn("split context", zap.Error(err))
		return string([]rune(text)[:s.contextLimit])
	}
	return chunks[0]
}

func writeOutput(path, content string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create output dir %q", dir)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errors.Wrapf(err, "write %q", path)
	}
	return nil
}

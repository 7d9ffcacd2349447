package crew

import (
	"sync"
	"time"

	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
)

// Step statuses.
const (
	StatusToolCall    = "tool_call"
	StatusToolError   = "tool_error"
	StatusFinalAnswer = "final_answer"
	StatusForcedFinal = "forced_final_answer"
	StatusFailed      = "failed"
)

// StepEvent describes one worker reasoning step.
type StepEvent struct {
	RunID     string    `json:"run_id"`
	Agent     string    `json:"agent"`
	Task      string    `json:"task"`
	Tool      string    `json:"tool,omitempty"`
	Input     string    `json:"input,omitempty"`
	Output    string    `json:"output"`
	Status    string    `json:"status"`
	Iteration int       `json:"iteration"`
	At        time.Time `json:"at"`
}

// Observer receives step events. Implementations must be safe for the
// caller's goroutine and should not block.
type Observer interface {
	OnStep(StepEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(StepEvent)

func (f ObserverFunc) OnStep(ev StepEvent) {
	f(ev)
}

// MultiObserver fans events out in order. Nil members are skipped.
type MultiObserver []Observer

func (m MultiObserver) OnStep(ev StepEvent) {
	for _, o := range m {
		if o != nil {
			o.OnStep(ev)
		}
	}
}

type logObserver struct {
	logger logSDK.Logger
}

// NewLogObserver logs every step at info level.
func NewLogObserver(logger logSDK.Logger) Observer {
	return &logObserver{logger: logger}
}

func (o *logObserver) OnStep(ev StepEvent) {
	o.logger.Info("worker step",
		zap.String("run_id", ev.RunID),
		zap.String("agent", ev.Agent),
		zap.String("task", ev.Task),
		zap.String("tool", ev.Tool),
		zap.String("status", ev.Status),
		zap.Int("iteration", ev.Iteration),
		zap.Int("output_len", len(ev.Output)),
	)
}

// Recorder keeps every event it observes.
type Recorder struct {
	mu     sync.Mutex
	events []StepEvent
}

func (r *Recorder) OnStep(ev StepEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []StepEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StepEvent(nil), r.events...)
}

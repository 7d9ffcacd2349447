package news

import (
	"sync"
	"time"

	"github.com/Laisky/topic-news/internal/crew"
)

// Phase is a Driver state.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhaseFetching   Phase = "fetching"
	PhaseAnalyzing  Phase = "analyzing"
	PhaseRendering  Phase = "rendering"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// Report is the outcome of one Driver invocation.
type Report struct {
	RunID        string           `json:"run_id"`
	Topic        string           `json:"topic"`
	Phases       []Phase          `json:"phases"`
	State        Phase            `json:"state"`
	Steps        []crew.StepEvent `json:"steps"`
	ArtifactPath string           `json:"artifact_path,omitempty"`
	// Content is the analyze artifact exactly as written.
	Content string `json:"content,omitempty"`
	// HTML is Content rendered from markdown.
	HTML       string    `json:"html,omitempty"`
	Message    string    `json:"message"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	mu sync.Mutex
}

// Succeeded reports whether the run reached PhaseDone.
func (r *Report) Succeeded() bool {
	return r.State == PhaseDone
}

// enter moves the report to p, recording it once. Terminal states are sticky.
func (r *Report) enter(p Phase) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State.Terminal() || r.State == p {
		return false
	}
	r.State = p
	r.Phases = append(r.Phases, p)
	return true
}

func (r *Report) phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.State
}

func (r *Report) addStep(ev crew.StepEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Steps = append(r.Steps, ev)
}

package crew

import "context"

// Tool is an action a worker may take between reasoning steps.
type Tool interface {
	Name() string
	Description() string
	// Run executes the tool. The returned text becomes the worker's observation.
	Run(ctx context.Context, input string) (string, error)
}

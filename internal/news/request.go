// Package news drives the fetch-then-analyze topic news pipeline.
package news

import (
	"strings"

	errors "github.com/Laisky/errors/v2"
)

// User-facing messages.
const (
	MsgMissingTopic       = "Please enter a topic first."
	MsgMissingCredentials = "Please enter both API keys in the sidebar."
	MsgCompleted          = "Process completed!"
	MsgMissingArtifact    = "Analyzed topic news file was not created. Check the crew execution result for details."
	MsgNoLogFile          = "No log file found."
)

var (
	// ErrMissingTopic is returned by ValidateRequest for a blank topic.
	ErrMissingTopic = errors.New(MsgMissingTopic)
	// ErrMissingCredentials is returned by ValidateRequest when either key is blank.
	ErrMissingCredentials = errors.New(MsgMissingCredentials)
	// ErrMissingArtifact means the pipeline finished without writing the analyze output.
	ErrMissingArtifact = errors.New(MsgMissingArtifact)
)

// Credentials are the per-run API keys. They are never read from ambient state.
type Credentials struct {
	LLMAPIKey    string `json:"llm_api_key"`
	SearchAPIKey string `json:"search_api_key"`
}

// Complete reports whether both keys are present.
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.LLMAPIKey) != "" && strings.TrimSpace(c.SearchAPIKey) != ""
}

// ValidateRequest performs the caller-side checks that must pass before Driver.Run.
// The topic is checked first.
func ValidateRequest(topic string, creds Credentials) error {
	if strings.TrimSpace(topic) == "" {
		return ErrMissingTopic
	}
	if !creds.Complete() {
		return ErrMissingCredentials
	}
	return nil
}

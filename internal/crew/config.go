// Package crew runs role-bound LLM workers over an ordered list of tasks.
package crew

import (
	"fmt"
	"os"
	"strings"

	errors "github.com/Laisky/errors/v2"
	"gopkg.in/yaml.v3"
)

// ErrConfig matches every error produced while loading a roles or tasks document.
var ErrConfig = errors.New("crew config")

// ConfigError reports a missing or unparseable declarative document.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("load crew config %q: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrConfig) match any ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// AgentSpec is one entry of the roles document.
type AgentSpec struct {
	Role            string `yaml:"role"`
	Goal            string `yaml:"goal"`
	Backstory       string `yaml:"backstory"`
	MaxIter         int    `yaml:"max_iter,omitempty"`
	AllowDelegation bool   `yaml:"allow_delegation,omitempty"`
}

// TaskSpec is one entry of the tasks document.
type TaskSpec struct {
	Description    string `yaml:"description"`
	ExpectedOutput string `yaml:"expected_output"`
	Agent          string `yaml:"agent"`
	OutputFile     string `yaml:"output_file,omitempty"`
}

// LoadAgents reads the roles document at path.
func LoadAgents(path string) (map[string]AgentSpec, error) {
	specs := map[string]AgentSpec{}
	if err := loadYAML(path, &specs); err != nil {
		return nil, err
	}

	for name, spec := range specs {
		if strings.TrimSpace(spec.Role) == "" {
			return nil, &ConfigError{Path: path, Err: errors.Errorf("agent %q has no role", name)}
		}
	}
	return specs, nil
}

// LoadTasks reads the tasks document at path.
func LoadTasks(path string) (map[string]TaskSpec, error) {
	specs := map[string]TaskSpec{}
	if err := loadYAML(path, &specs); err != nil {
		return nil, err
	}

	for name, spec := range specs {
		if strings.TrimSpace(spec.Description) == "" {
			return nil, &ConfigError{Path: path, Err: errors.Errorf("task %q has no description", name)}
		}
	}
	return specs, nil
}

func loadYAML(path string, out any) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return &ConfigError{Path: path, Err: errors.Wrap(err, "read file")}
	}
	if err = yaml.Unmarshal(body, out); err != nil {
		return &ConfigError{Path: path, Err: errors.Wrap(err, "parse yaml")}
	}
	return nil
}

package news

import (
	"context"
	"strings"
	"time"

	"github.com/Laisky/topic-news/internal/library/llm"
	"github.com/Laisky/topic-news/library/config"
	"github.com/Laisky/topic-news/library/search"
	"github.com/Laisky/topic-news/library/search/serper"
	"github.com/Laisky/topic-news/library/search/serpgoogle"
)

// Settings captures the Driver configuration.
type Settings struct {
	AgentsConfig string
	TasksConfig  string
	OutputDir    string
	MaxIter      int

	LLMBackend   string
	LLMBaseURL   string
	LLMTimeout   time.Duration
	WorkerModel  string
	ManagerModel string

	SearchEngine     string
	SearchEndpoint   string
	SearchNumResults int
	SearchType       string
}

// LoadSettingsFromConfig reads the Driver settings from the shared configuration.
func LoadSettingsFromConfig() Settings {
	return Settings{
		AgentsConfig: config.String(config.KeyCrewAgents, config.DefaultAgentsConfig),
		TasksConfig:  config.String(config.KeyCrewTasks, config.DefaultTasksConfig),
		OutputDir:    config.String(config.KeyCrewOutputDir, config.DefaultOutputDir),
		MaxIter:      config.Int(config.KeyCrewMaxIter, config.DefaultMaxIter),

		LLMBackend:   strings.ToLower(config.String(config.KeyLLMBackend, config.DefaultLLMBackend)),
		LLMBaseURL:   config.String(config.KeyLLMBaseURL, ""),
		LLMTimeout:   config.Duration(config.KeyLLMTimeout, config.DefaultLLMTimeout),
		WorkerModel:  config.String(config.KeyLLMWorkerModel, config.DefaultWorkerModel),
		ManagerModel: config.String(config.KeyLLMManagerModel, config.DefaultManagerModel),

		SearchEngine:     strings.ToLower(config.String(config.KeySearchEngine, config.DefaultSearchEngine)),
		SearchEndpoint:   config.String(config.KeySearchEndpoint, ""),
		SearchNumResults: config.Int(config.KeySearchNumResults, config.DefaultSearchNumResults),
		SearchType:       config.String(config.KeySearchType, config.DefaultSearchType),
	}
}

func (s Settings) withDefaults() Settings {
	if s.AgentsConfig == "" {
		s.AgentsConfig = config.DefaultAgentsConfig
	}
	if s.TasksConfig == "" {
		s.TasksConfig = config.DefaultTasksConfig
	}
	if s.OutputDir == "" {
		s.OutputDir = config.DefaultOutputDir
	}
	if s.MaxIter < 1 {
		s.MaxIter = config.DefaultMaxIter
	}
	if s.WorkerModel == "" {
		s.WorkerModel = config.DefaultWorkerModel
	}
	if s.ManagerModel == "" {
		s.ManagerModel = config.DefaultManagerModel
	}
	if s.SearchNumResults < 2 {
		s.SearchNumResults = config.DefaultSearchNumResults
	}
	if s.SearchType == "" {
		s.SearchType = config.DefaultSearchType
	}
	return s
}

// ModelFactory builds the chat model for one key and model name.
type ModelFactory func(ctx context.Context, apiKey, model string) (llm.ChatModel, error)

// EngineFactory builds the search engine for one search key.
type EngineFactory func(apiKey string) search.Engine

// DefaultModelFactory builds models with the backend named in s.
func DefaultModelFactory(s Settings) ModelFactory {
	return func(ctx context.Context, apiKey, model string) (llm.ChatModel, error) {
		return llm.New(ctx, llm.Config{
			Backend: s.LLMBackend,
			APIKey:  apiKey,
			Model:   model,
			BaseURL: s.LLMBaseURL,
			Timeout: s.LLMTimeout,
		})
	}
}

// DefaultEngineFactory builds the engine named in s. Anything but serp_google means serper.
func DefaultEngineFactory(s Settings) EngineFactory {
	return func(apiKey string) search.Engine {
		if s.SearchEngine == "serp_google" {
			opts := []serpgoogle.Option{
				serpgoogle.WithEndpoint(s.SearchEndpoint),
				serpgoogle.WithNumResults(s.SearchNumResults),
			}
			if s.SearchType != "" {
				opts = append(opts, serpgoogle.WithDefaultParameters(map[string]string{"tbm": s.SearchType}))
			}
			return serpgoogle.NewSearchEngine(apiKey, opts...)
		}

		return serper.NewSearchEngine(apiKey,
			serper.WithEndpoint(s.SearchEndpoint),
			serper.WithNumResults(s.SearchNumResults),
			serper.WithSearchType(s.SearchType),
		)
	}
}

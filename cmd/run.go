package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Laisky/errors/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/Laisky/topic-news/internal/crew"
	"github.com/Laisky/topic-news/internal/news"
	"github.com/Laisky/topic-news/library/log"
)

// Environment fallbacks for keys not given on the command line.
const (
	envLLMAPIKey    = "OPENAI_API_KEY"
	envSearchAPIKey = "SERPER_API_KEY"
)

var runCMD = &cobra.Command{
	Use:   "run",
	Short: "run the pipeline once",
	Long:  `fetch and analyze news for one topic, then print the analyzed report`,
	Args:  gcmd.NoExtraArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if err := initialize(ctx, cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, _ := cmd.Flags().GetString("topic")
		creds := credentialsFromFlags(cmd)
		if err := news.ValidateRequest(topic, creds); err != nil {
			return errors.WithStack(err)
		}

		out := cmd.OutOrStdout()
		driver := news.NewDriver(news.LoadSettingsFromConfig(),
			news.WithObserver(crew.ObserverFunc(func(ev crew.StepEvent) {
				name := ev.Task
				if ev.Tool != "" {
					name = ev.Tool
				}
				fmt.Fprintf(out, "[%s] %s: %s\n", ev.Agent, name, ev.Status)
			})),
		)

		report := driver.Run(cmd.Context(), strings.TrimSpace(topic), creds)
		if !report.Succeeded() {
			return errors.New(report.Message)
		}

		fmt.Fprintln(out, report.Content)
		fmt.Fprintln(out, report.Message)
		return nil
	},
}

func credentialsFromFlags(cmd *cobra.Command) news.Credentials {
	llmKey, _ := cmd.Flags().GetString("llm-api-key")
	searchKey, _ := cmd.Flags().GetString("search-api-key")
	return news.Credentials{
		LLMAPIKey:    firstNonEmpty(llmKey, os.Getenv(envLLMAPIKey)),
		SearchAPIKey: firstNonEmpty(searchKey, os.Getenv(envSearchAPIKey)),
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func init() {
	rootCMD.AddCommand(runCMD)
	runCMD.Flags().StringP("topic", "t", "", "news topic")
	runCMD.Flags().String("llm-api-key", "", "LLM API key, default $"+envLLMAPIKey)
	runCMD.Flags().String("search-api-key", "", "search API key, default $"+envSearchAPIKey)
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Laisky/errors/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/Laisky/topic-news/internal/news"
	"github.com/Laisky/topic-news/library/log"
	"github.com/Laisky/topic-news/library/search"
)

var searchCMD = &cobra.Command{
	Use:   "search",
	Short: "run one news search",
	Long:  `run the configured search engine once and print its outcome as JSON`,
	Args:  gcmd.NoExtraArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if err := initialize(ctx, cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		query, _ := cmd.Flags().GetString("query")
		apiKey, _ := cmd.Flags().GetString("search-api-key")
		apiKey = firstNonEmpty(apiKey, os.Getenv(envSearchAPIKey))

		engine := news.DefaultEngineFactory(news.LoadSettingsFromConfig())(apiKey)
		outcome := search.Run(cmd.Context(), engine, query)

		body, err := json.MarshalIndent(outcome, "", "  ")
		if err != nil {
			return errors.Wrap(err, "marshal outcome")
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(body))
		return nil
	},
}

func init() {
	rootCMD.AddCommand(searchCMD)
	searchCMD.Flags().StringP("query", "q", "", "search query")
	searchCMD.Flags().String("search-api-key", "", "search API key, default $"+envSearchAPIKey)
}

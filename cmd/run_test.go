package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/topic-news/internal/news"
)

func newCredentialCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("llm-api-key", "", "")
	cmd.Flags().String("search-api-key", "", "")
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestCredentialsFromFlagsPrefersFlags(t *testing.T) {
	t.Setenv(envLLMAPIKey, "env-llm")
	t.Setenv(envSearchAPIKey, "env-search")

	cmd := newCredentialCommand(t, "--llm-api-key", " flag-llm ")
	require.Equal(t, news.Credentials{LLMAPIKey: "flag-llm", SearchAPIKey: "env-search"}, credentialsFromFlags(cmd))
}

func TestCredentialsFromFlagsMissing(t *testing.T) {
	t.Setenv(envLLMAPIKey, "")
	t.Setenv(envSearchAPIKey, "")

	creds := credentialsFromFlags(newCredentialCommand(t))
	require.False(t, creds.Complete())
	require.ErrorIs(t, news.ValidateRequest("go", creds), news.ErrMissingCredentials)
}

func TestFirstNonEmpty(t *testing.T) {
	require.Equal(t, "", firstNonEmpty())
	require.Equal(t, "", firstNonEmpty(" ", ""))
	require.Equal(t, "b", firstNonEmpty("", " b ", "c"))
}

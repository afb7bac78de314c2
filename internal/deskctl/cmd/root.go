package cmd

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/sorenmh/gendesk/internal/deskctl/client"
	"github.com/sorenmh/gendesk/internal/deskctl/output"
	"github.com/sorenmh/gendesk/internal/shared/config"
	"github.com/spf13/cobra"
)

var (
	outputFormat string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "deskctl",
	Short: "gendesk CLI for generating and managing desktop apps",
	Long: `deskctl is a command-line client for a gendesk server (deskd).

It allows you to:
  - Generate single-file HTML apps from a prompt and watch them build
  - Regenerate apps and restore earlier versions
  - Rename, trash, restore and permanently delete apps
  - Fetch the generated HTML

Configuration:
  Environment variables:
    GENDESK_URL         - deskd API endpoint (required)
    GENDESK_API_KEY     - deskd API key (required)
    GENDESK_MODEL       - default model for generate and regenerate

  Config file (~/.gendesk/config.yaml):
    url: https://desk.example.com
    apiKey: dk_abc123
    model: claude-sonnet-4-5

  CLI flags override environment variables and config file.

Example usage:
  deskctl generate "a pomodoro timer with a big start button"
  deskctl app list
  deskctl version list "Pomodoro Timer"`,
	SilenceUsage: true,
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	config.InitConfig()
	config.AddFlags(rootCmd)

	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log client activity to stderr")
}

// apiClient validates configuration and returns a client for it
func apiClient() (*client.Client, error) {
	settings := config.Current()
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return client.NewClient(settings.URL, settings.APIKey), nil
}

func printer(cmd *cobra.Command) (*output.Printer, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(cmd.OutOrStdout(), format), nil
}

// logger writes client-side diagnostics to stderr, warnings only unless
// --verbose is set.
func logger(cmd *cobra.Command) logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(cmd.ErrOrStderr())
	l.SetLevel(logrus.WarnLevel)
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// setup is the common preamble of commands that talk to deskd
func setup(cmd *cobra.Command) (*client.Client, *output.Printer, error) {
	p, err := printer(cmd)
	if err != nil {
		return nil, nil, err
	}
	c, err := apiClient()
	if err != nil {
		return nil, nil, err
	}
	return c, p, nil
}

package cmd

import (
	"github.com/sorenmh/gendesk/internal/shared/config"
	"github.com/spf13/cobra"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Configure deskctl settings interactively",
	Long: `Configure deskctl settings interactively or via the global flags.

This command prompts for any setting not already given with --url or
--api-key. The API key is read without echo. Settings are saved to
~/.gendesk/config.yaml unless --config names another file.

Example:
  deskctl configure
  deskctl configure --url https://desk.example.com --api-key dk_abc123`,
	RunE: runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	p, err := printer(cmd)
	if err != nil {
		return err
	}

	settings := config.Current()
	if !cmd.Flags().Changed("url") || !cmd.Flags().Changed("api-key") {
		settings, err = config.Prompt(cmd.InOrStdin(), cmd.OutOrStdout(), settings)
		if err != nil {
			return err
		}
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	if path == "" {
		if path, err = config.DefaultConfigFile(); err != nil {
			return err
		}
	}

	if err := config.Save(path, settings); err != nil {
		return err
	}

	p.Success("Configuration saved to %s", path)
	p.Info("  URL:     %s", settings.URL)
	p.Info("  API Key: %s", config.MaskKey(settings.APIKey))
	if settings.Model != "" {
		p.Info("  Model:   %s", settings.Model)
	}
	return nil
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version of deskctl
	Version = "dev"
	// GitCommit is the git commit hash
	GitCommit = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the deskd server",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, p, err := setup(cmd)
		if err != nil {
			return err
		}

		health, err := c.Health(cmd.Context())
		if err != nil {
			return err
		}

		return p.Print(health, func() {
			p.Info("Server:   %s", health.Status)
			p.Info("Version:  %s", health.Version)
			p.Info("Database: %t", health.DatabaseAccessible)
			p.Info("Storage:  %s", health.Storage)
		})
	},
}

var cliVersionCmd = &cobra.Command{
	Use:   "cli-version",
	Short: "Show deskctl version",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "deskctl version %s\n", Version)
		fmt.Fprintf(out, "commit: %s\n", GitCommit)
		fmt.Fprintf(out, "built: %s\n", BuildTime)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cliVersionCmd)
}

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sorenmh/gendesk/internal/deskctl/output"
	"github.com/spf13/cobra"
)

// promptColumnWidth truncates prompts in version tables
const promptColumnWidth = 48

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Manage app versions",
	Long:  `List an app's versions and restore an earlier one.`,
}

var versionListCmd = &cobra.Command{
	Use:   "list [app]",
	Short: "List versions of an app",
	Long: `List an app's versions, newest first. The current version is the one
whose HTML the app serves, which after a restore need not be the newest.

Example:
  deskctl version list "Tic Tac Toe"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, p, err := setup(cmd)
		if err != nil {
			return err
		}

		appID, err := c.ResolveAppID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		resp, err := c.ListVersions(cmd.Context(), appID)
		if err != nil {
			return err
		}

		if len(resp.Versions) == 0 && !p.Structured() {
			p.Info("No versions found")
			return nil
		}

		return p.Print(resp, func() {
			headers := []string{"VERSION", "CURRENT", "PROMPT", "CREATED"}
			rows := make([][]string, 0, len(resp.Versions))
			for _, v := range resp.Versions {
				current := ""
				if v.IsCurrent {
					current = "*"
				}
				rows = append(rows, []string{
					strconv.Itoa(v.VersionNumber),
					current,
					truncate(v.Prompt, promptColumnWidth),
					output.FormatTime(v.CreatedAt),
				})
			}
			p.Table(headers, rows)
		})
	},
}

var versionRestoreCmd = &cobra.Command{
	Use:   "restore [app] [version]",
	Short: "Make an earlier version current",
	Long: `Restore an earlier version: the app serves that version's HTML and takes
its prompt. The version history is kept.

Example:
  deskctl version restore "Tic Tac Toe" 1`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := strconv.Atoi(args[1])
		if err != nil || number < 1 {
			return fmt.Errorf("version must be a positive integer: %q", args[1])
		}

		c, p, err := setup(cmd)
		if err != nil {
			return err
		}

		appID, err := c.ResolveAppID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		resp, err := c.RestoreVersion(cmd.Context(), appID, number)
		if err != nil {
			return err
		}

		return p.Print(resp, func() {
			p.Success("Restored %s to version %d", resp.App.Name, resp.Version.VersionNumber)
		})
	},
}

var htmlCmd = &cobra.Command{
	Use:   "html [app]",
	Short: "Print or save an app's HTML",
	Long: `Fetch an app's generated HTML document.

Example:
  deskctl html "Tic Tac Toe" > game.html
  deskctl html "Tic Tac Toe" --version 1 --out game-v1.html`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := setup(cmd)
		if err != nil {
			return err
		}

		version, _ := cmd.Flags().GetInt("version")
		out, _ := cmd.Flags().GetString("out")

		appID, err := c.ResolveAppID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		html, err := c.HTML(cmd.Context(), appID, version)
		if err != nil {
			return err
		}

		if out == "" {
			_, err := cmd.OutOrStdout().Write(html)
			return err
		}
		if err := os.WriteFile(out, html, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		return nil
	},
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.AddCommand(versionListCmd)
	versionCmd.AddCommand(versionRestoreCmd)
	rootCmd.AddCommand(htmlCmd)

	htmlCmd.Flags().Int("version", 0, "version number (default: current)")
	htmlCmd.Flags().String("out", "", "write to this file instead of stdout")
}

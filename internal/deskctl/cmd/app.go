package cmd

import (
	"fmt"
	"time"

	"github.com/sorenmh/gendesk/internal/deskctl/output"
	"github.com/sorenmh/gendesk/internal/deskd/models"
	"github.com/spf13/cobra"
)

var appCmd = &cobra.Command{
	Use:   "app",
	Short: "Manage apps",
	Long:  `List, inspect, rename, trash, restore and delete generated apps.`,
}

var appListCmd = &cobra.Command{
	Use:   "list",
	Short: "List apps",
	Long: `List your apps, or the apps in the trash with --trashed.

Example:
  deskctl app list
  deskctl app list --trashed -o yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, p, err := setup(cmd)
		if err != nil {
			return err
		}

		trashed, _ := cmd.Flags().GetBool("trashed")
		resp, err := c.ListApps(cmd.Context(), trashed)
		if err != nil {
			return err
		}

		if len(resp.Apps) == 0 && !p.Structured() {
			if trashed {
				p.Info("Trash is empty")
			} else {
				p.Info("No apps found")
			}
			return nil
		}

		return p.Print(resp, func() {
			headers := []string{"ICON", "NAME", "STATUS", "ID", "CREATED"}
			rows := make([][]string, 0, len(resp.Apps))
			for _, app := range resp.Apps {
				rows = append(rows, []string{
					app.Icon,
					app.Name,
					string(app.Status),
					app.ID,
					output.FormatTime(app.CreatedAt),
				})
			}
			p.Table(headers, rows)
		})
	},
}

var appShowCmd = &cobra.Command{
	Use:   "show [app]",
	Short: "Show app details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, p, err := setup(cmd)
		if err != nil {
			return err
		}

		appID, err := c.ResolveAppID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		app, err := c.GetApp(cmd.Context(), appID)
		if err != nil {
			return err
		}

		return p.Print(app, func() {
			p.Info("App: %s %s", app.Icon, app.Name)
			p.Info("")
			p.Info("  ID:          %s", app.ID)
			p.Info("  Status:      %s", app.Status)
			if app.ErrorMessage != nil {
				p.Info("  Error:       %s", *app.ErrorMessage)
			}
			p.Info("  Description: %s", output.Deref(app.Description))
			p.Info("  Prompt:      %s", app.Prompt)
			p.Info("  Model:       %s", app.Model)
			p.Info("  Build time:  %s", output.Duration(app.GenerationTimeMs))
			p.Info("  Created:     %s", output.FormatTime(app.CreatedAt))
			p.Info("  Updated:     %s (%s)", output.FormatTime(app.UpdatedAt), output.FormatTimeAgo(app.UpdatedAt, time.Now()))
			if app.DeletedAt != nil {
				p.Info("  Trashed:     %s", output.FormatTime(*app.DeletedAt))
			}
		})
	},
}

var appRenameCmd = &cobra.Command{
	Use:   "rename [app]",
	Short: "Rename an app or change its icon",
	Long: `Change an app's name, icon, or both.

Example:
  deskctl app rename "Tic Tac Toe" --name "Noughts and Crosses"
  deskctl app rename "Noughts and Crosses" --icon ⭕`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var req models.UpdateAppRequest
		if cmd.Flags().Changed("name") {
			name, _ := cmd.Flags().GetString("name")
			req.Name = &name
		}
		if cmd.Flags().Changed("icon") {
			icon, _ := cmd.Flags().GetString("icon")
			req.Icon = &icon
		}
		if req.Empty() {
			return fmt.Errorf("at least one of --name or --icon is required")
		}

		c, p, err := setup(cmd)
		if err != nil {
			return err
		}

		appID, err := c.ResolveAppID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		app, err := c.UpdateApp(cmd.Context(), appID, req)
		if err != nil {
			return err
		}

		return p.Print(app, func() {
			p.Success("App updated: %s %s", app.Icon, app.Name)
		})
	},
}

var appTrashCmd = &cobra.Command{
	Use:   "trash [app]",
	Short: "Move an app to the trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, p, err := setup(cmd)
		if err != nil {
			return err
		}

		appID, err := c.ResolveAppID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		app, err := c.TrashApp(cmd.Context(), appID)
		if err != nil {
			return err
		}

		return p.Print(app, func() {
			p.Success("Moved %s to the trash", app.Name)
		})
	},
}

var appRestoreCmd = &cobra.Command{
	Use:   "restore [app]",
	Short: "Restore an app from the trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, p, err := setup(cmd)
		if err != nil {
			return err
		}

		appID, err := c.ResolveAppID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		app, err := c.RestoreApp(cmd.Context(), appID)
		if err != nil {
			return err
		}

		return p.Print(app, func() {
			p.Success("Restored %s", app.Name)
		})
	},
}

var appDeleteCmd = &cobra.Command{
	Use:   "delete [app]",
	Short: "Permanently delete a trashed app",
	Long: `Permanently delete an app, its versions and its stored HTML.

The app must be in the trash; --force trashes it first.

Example:
  deskctl app delete "Tic Tac Toe"
  deskctl app delete "Tic Tac Toe" --force`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, p, err := setup(cmd)
		if err != nil {
			return err
		}

		force, _ := cmd.Flags().GetBool("force")
		appID, err := c.ResolveAppID(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if force {
			app, err := c.GetApp(cmd.Context(), appID)
			if err != nil {
				return err
			}
			if !app.Trashed() {
				if _, err := c.TrashApp(cmd.Context(), appID); err != nil {
					return err
				}
			}
		}

		if err := c.DeleteApp(cmd.Context(), appID); err != nil {
			return err
		}

		p.Success("Permanently deleted %s", appID)
		return nil
	},
}

var appEmptyTrashCmd = &cobra.Command{
	Use:   "empty-trash",
	Short: "Permanently delete every app in the trash",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, p, err := setup(cmd)
		if err != nil {
			return err
		}

		resp, err := c.EmptyTrash(cmd.Context())
		if err != nil {
			return err
		}

		return p.Print(resp, func() {
			p.Success("Deleted %d app(s) from the trash", resp.Deleted)
		})
	},
}

func init() {
	rootCmd.AddCommand(appCmd)
	appCmd.AddCommand(appListCmd)
	appCmd.AddCommand(appShowCmd)
	appCmd.AddCommand(appRenameCmd)
	appCmd.AddCommand(appTrashCmd)
	appCmd.AddCommand(appRestoreCmd)
	appCmd.AddCommand(appDeleteCmd)
	appCmd.AddCommand(appEmptyTrashCmd)

	appListCmd.Flags().Bool("trashed", false, "list apps in the trash")
	appRenameCmd.Flags().String("name", "", "new name")
	appRenameCmd.Flags().String("icon", "", "new icon (a single emoji)")
	appDeleteCmd.Flags().Bool("force", false, "move the app to the trash first if needed")
}

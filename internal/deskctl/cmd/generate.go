package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sorenmh/gendesk/internal/deskctl/client"
	"github.com/sorenmh/gendesk/internal/deskctl/output"
	"github.com/sorenmh/gendesk/internal/deskd/models"
	"github.com/sorenmh/gendesk/internal/desktop"
	"github.com/sorenmh/gendesk/internal/shared/config"
	"github.com/spf13/cobra"
)

// defaultWaitTimeout covers the server's stream ceiling plus slack
const defaultWaitTimeout = 90 * time.Second

var generateCmd = &cobra.Command{
	Use:   "generate [prompt]",
	Short: "Generate a new app from a prompt",
	Long: `Generate a new single-file HTML app from a prompt.

The command returns as soon as deskd accepts the request when --no-wait is
set. Otherwise it follows the app's event stream, prints progress to stderr
and opens a desktop window for the app once it is ready.

Example:
  deskctl generate "a tic-tac-toe game"
  deskctl generate "a unit converter" --model claude-sonnet-4-5 --save converter.html
  deskctl generate "a drum machine" --no-wait -o json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, p, err := setup(cmd)
		if err != nil {
			return err
		}

		prompt := strings.Join(args, " ")
		model := modelFor(cmd)
		noWait, _ := cmd.Flags().GetBool("no-wait")

		if noWait {
			resp, err := c.StartGeneration(cmd.Context(), models.GenerateRequest{Prompt: prompt, Model: model})
			if err != nil {
				return err
			}
			return p.Print(resp, func() {
				p.Success("Generation started")
				p.Info("  App ID: %s", resp.AppID)
				p.Info("  Stream: %s", resp.StreamURL)
			})
		}

		return runWatched(cmd, c, p, func(ctx context.Context, d *desktop.Desktop, done desktop.CompletionFunc) (string, error) {
			return d.Generate(ctx, prompt, model, done)
		})
	},
}

var regenerateCmd = &cobra.Command{
	Use:   "regenerate [app]",
	Short: "Regenerate an app's HTML",
	Long: `Re-run code generation for an existing app, creating a new version.

The app's last prompt is reused unless --prompt is given. The app's name and
icon are kept.

Example:
  deskctl regenerate "Tic Tac Toe"
  deskctl regenerate "Tic Tac Toe" --prompt "a tic-tac-toe game with a score board"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, p, err := setup(cmd)
		if err != nil {
			return err
		}

		prompt, _ := cmd.Flags().GetString("prompt")
		model := modelFor(cmd)

		appID, err := c.ResolveAppID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		app, err := c.GetApp(cmd.Context(), appID)
		if err != nil {
			return err
		}

		return runWatched(cmd, c, p, func(ctx context.Context, d *desktop.Desktop, done desktop.CompletionFunc) (string, error) {
			d.Apps.Upsert(*app)
			return appID, d.Regenerate(ctx, appID, prompt, model, done)
		})
	},
}

// generationResult is the structured output of a watched generation
type generationResult struct {
	App    models.App      `json:"app" yaml:"app"`
	Window *desktop.Window `json:"window,omitempty" yaml:"window,omitempty"`
}

// runWatched starts a generation on a fresh desktop and waits for it to
// reach a terminal state.
func runWatched(cmd *cobra.Command, c *client.Client, p *output.Printer,
	start func(ctx context.Context, d *desktop.Desktop, done desktop.CompletionFunc) (string, error)) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	savePath, _ := cmd.Flags().GetString("save")

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	d := desktop.New(ctx, c, logger(cmd))
	if !p.Structured() {
		unsubscribe := d.Stream.Subscribe(progressPrinter(cmd.ErrOrStderr()))
		defer unsubscribe()
	}

	done := make(chan models.App, 1)
	if _, err := start(ctx, d, func(app models.App) { done <- app }); err != nil {
		return err
	}
	app := <-done
	d.Session.Wait()

	if app.Status != models.StatusReady {
		if p.Structured() {
			if err := p.Print(generationResult{App: app}, nil); err != nil {
				return err
			}
		}
		return fmt.Errorf("generation of %s failed: %s", app.ID, output.Deref(app.ErrorMessage))
	}

	result := generationResult{App: app}
	if windows := d.Windows.ByApp(app.ID); len(windows) > 0 {
		result.Window = &windows[len(windows)-1]
	}

	if savePath != "" {
		html, err := c.HTML(ctx, app.ID, 0)
		if err != nil {
			return err
		}
		if err := os.WriteFile(savePath, html, 0o644); err != nil {
			return fmt.Errorf("failed to save HTML: %w", err)
		}
	}

	return p.Print(result, func() {
		p.Success("Generated %s %s in %s", app.Icon, app.Name, output.Duration(app.GenerationTimeMs))
		p.Info("  ID: %s", app.ID)
		if w := result.Window; w != nil {
			p.Info("  Window: %s at (%d, %d), %dx%d", w.ID, w.X, w.Y, w.Width, w.Height)
		}
		if savePath != "" {
			p.Info("  Saved: %s", savePath)
		}
	})
}

// modelFor returns --model, falling back to the configured default model
func modelFor(cmd *cobra.Command) string {
	if model, _ := cmd.Flags().GetString("model"); model != "" {
		return model
	}
	return config.Current().Model
}

// progressPrinter prints each new progress delta once
func progressPrinter(w io.Writer) func(desktop.StreamSession) {
	printed := 0
	return func(s desktop.StreamSession) {
		if len(s.Progress) < printed {
			printed = 0
		}
		for _, p := range s.Progress[printed:] {
			fmt.Fprintf(w, "[%3d%%] %s\n", p.Percent, p.Message)
		}
		printed = len(s.Progress)
	}
}

func init() {
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(regenerateCmd)

	for _, c := range []*cobra.Command{generateCmd, regenerateCmd} {
		c.Flags().String("model", "", "model to generate with (default: configured model, then the server default)")
		c.Flags().Duration("timeout", defaultWaitTimeout, "how long to wait for the app to finish")
		c.Flags().String("save", "", "write the generated HTML to this file")
	}
	generateCmd.Flags().Bool("no-wait", false, "return once the generation is accepted")
	regenerateCmd.Flags().String("prompt", "", "new prompt (default: the app's last prompt)")
}

package desktop

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/sorenmh/gendesk/internal/deskd/models"
)

// Desktop is the application context: the one place the window manager,
// app cache, stream state and generation session are created and wired.
type Desktop struct {
	Windows *WindowManager
	Apps    *AppCache
	Stream  *StreamState
	Session *Session
}

func New(ctx context.Context, backend Backend, logger logrus.FieldLogger) *Desktop {
	apps := NewAppCache()
	stream := NewStreamState()
	return &Desktop{
		Windows: NewWindowManager(),
		Apps:    apps,
		Stream:  stream,
		Session: NewSession(ctx, backend, apps, stream, logger),
	}
}

// Generate starts a generation and opens a window for the app once it is
// ready. onComplete, if set, runs after that.
func (d *Desktop) Generate(ctx context.Context, prompt, model string, onComplete CompletionFunc) (string, error) {
	return d.Session.Generate(ctx, prompt, model, d.openWhenReady(onComplete))
}

// Regenerate re-runs code generation and opens a window unless the app is
// already showing in one.
func (d *Desktop) Regenerate(ctx context.Context, appID, prompt, model string, onComplete CompletionFunc) error {
	return d.Session.Regenerate(ctx, appID, prompt, model, d.openWhenReady(onComplete))
}

func (d *Desktop) openWhenReady(next CompletionFunc) CompletionFunc {
	return func(app models.App) {
		if app.Status == models.StatusReady && len(d.Windows.ByApp(app.ID)) == 0 {
			d.Windows.OpenWindow(app.ID)
		}
		if next != nil {
			next(app)
		}
	}
}

// RemoveApp drops an app from the desktop and closes its windows, as after
// a trash or permanent delete.
func (d *Desktop) RemoveApp(appID string) {
	d.Windows.CloseWindowsByAppID(appID)
	d.Apps.Remove(appID)
}

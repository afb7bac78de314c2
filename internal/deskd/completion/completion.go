// Package completion wraps the text-completion providers used by the
// generation workflow. Providers return raw model text, which may carry code
// fences or commentary around the payload.
package completion

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/sorenmh/gendesk/internal/deskd/config"
	"golang.org/x/sync/semaphore"
)

// Request is one completion call
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Completer is the text completion capability
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Limited bounds the number of in-flight completion calls
type Limited struct {
	next Completer
	sem  *semaphore.Weighted
}

// NewLimited wraps next so at most n calls run concurrently
func NewLimited(next Completer, n int64) *Limited {
	if n <= 0 {
		n = 1
	}
	return &Limited{next: next, sem: semaphore.NewWeighted(n)}
}

func (l *Limited) Complete(ctx context.Context, req Request) (string, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("waiting for completion slot: %w", err)
	}
	defer l.sem.Release(1)

	return l.next.Complete(ctx, req)
}

// New builds the configured provider behind a concurrency limiter
func New(cfg config.CompletionConfig, logger logrus.FieldLogger) (Completer, error) {
	client := &http.Client{Timeout: cfg.Timeout}

	var provider Completer
	switch cfg.Provider {
	case "anthropic":
		provider = NewAnthropic(cfg.BaseURL, cfg.APIKey, client, logger)
	case "ollama":
		provider = NewOllama(cfg.BaseURL, client, logger)
	default:
		return nil, fmt.Errorf("unsupported completion provider: %s", cfg.Provider)
	}

	return NewLimited(provider, cfg.MaxConcurrent), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

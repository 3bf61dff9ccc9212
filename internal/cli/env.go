package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/keyringdb/internal/metrics"
	"github.com/roach88/keyringdb/internal/notify"
	"github.com/roach88/keyringdb/internal/provider"
	"github.com/roach88/keyringdb/internal/store"
)

// env is an opened store plus the provider over it. Commands defer
// close.
type env struct {
	store    *store.Store
	provider *provider.Provider
}

// envOption adds provider options, such as a notifier, for one command.
type envOption = provider.Option

// openEnv opens the configured database (migrating it forward unless it
// is read-only) and builds a provider over it.
func openEnv(ctx context.Context, opts *RootOptions, extra ...envOption) (*env, error) {
	cfg := opts.Config
	s, err := store.Open(ctx, cfg.Database.Path, cfg.Database.StoreOptions())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to open database %s", cfg.Database.Path), err)
	}

	popts := []provider.Option{
		provider.WithLogger(slog.Default()),
	}
	if cfg.Storage.BlobRoot != "" {
		popts = append(popts, provider.WithBlobRoot(cfg.Storage.BlobRoot))
	}
	popts = append(popts, extra...)

	return &env{store: s, provider: provider.New(s, popts...)}, nil
}

func (e *env) close() {
	if err := e.store.Close(); err != nil {
		slog.Warn("closing database", "error", err)
	}
}

// serveOptions are the provider options the serve command adds: metrics
// and change fan-out to the event stream.
func serveOptions(m *metrics.Metrics, b *notify.Broadcaster) []envOption {
	n := notify.Multi{b}
	opts := []envOption{}
	if m != nil {
		opts = append(opts, provider.WithMetrics(m))
		n = append(n, m.Notifier())
	}
	return append(opts, provider.WithNotifier(n))
}

// Package fetch loads the record sets the credential store is built from.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joshuadavidthomas/aikeys/internal/api"
	"github.com/joshuadavidthomas/aikeys/internal/credstore"
	"github.com/joshuadavidthomas/aikeys/internal/logging"
)

const (
	SourceProviders = "providers"
	SourceSettings  = "personal-settings"
	SourceModels    = "models"
)

// Config holds the parameters for Load.
type Config struct {
	// Timeout bounds each individual list call. Zero means no extra bound
	// beyond ctx.
	Timeout time.Duration
}

// Records is one generation of fetched backend data.
type Records struct {
	Providers []api.ProviderRecord
	Settings  []api.PersonalSettingRecord
	Models    []api.ModelRecord
}

// Outcome reports how one list call went.
type Outcome struct {
	Source   string
	Count    int
	Duration time.Duration
	Err      error
}

// Load fetches providers, personal settings and models concurrently. The
// models list is optional: a 404 yields an empty list. Any other failure
// fails the whole load so a partial generation is never built. onComplete
// may be called from several goroutines at once.
func Load(ctx context.Context, b api.Backend, cfg Config, onComplete func(Outcome)) (Records, error) {
	var out Records
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		recs, err := run(gctx, cfg, SourceProviders, onComplete, b.ListProviders)
		out.Providers = recs
		return err
	})
	g.Go(func() error {
		recs, err := run(gctx, cfg, SourceSettings, onComplete, b.ListMySettings)
		out.Settings = recs
		return err
	})
	g.Go(func() error {
		recs, err := run(gctx, cfg, SourceModels, onComplete, b.ListModels)
		if errors.Is(err, api.ErrNotFound) {
			logging.FromContext(ctx).Debug("models endpoint not available")
			return nil
		}
		out.Models = recs
		return err
	})

	if err := g.Wait(); err != nil {
		return Records{}, err
	}
	return out, nil
}

// Snapshot loads and projects one generation.
func Snapshot(ctx context.Context, b api.Backend, cfg Config) (credstore.Snapshot, error) {
	recs, err := Load(ctx, b, cfg, nil)
	if err != nil {
		return credstore.Snapshot{}, err
	}
	return credstore.Build(recs.Providers, recs.Settings, recs.Models), nil
}

func run[T any](ctx context.Context, cfg Config, source string, onComplete func(Outcome), call func(context.Context) ([]T, error)) ([]T, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	recs, err := call(ctx)
	if err != nil {
		err = fmt.Errorf("loading %s: %w", source, err)
	}
	if onComplete != nil {
		onComplete(Outcome{Source: source, Count: len(recs), Duration: time.Since(start), Err: err})
	}
	return recs, err
}

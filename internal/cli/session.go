package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joshuadavidthomas/aikeys/internal/api"
	"github.com/joshuadavidthomas/aikeys/internal/catalog"
	"github.com/joshuadavidthomas/aikeys/internal/config"
	"github.com/joshuadavidthomas/aikeys/internal/console"
	"github.com/joshuadavidthomas/aikeys/internal/credstore"
	"github.com/joshuadavidthomas/aikeys/internal/display"
	"github.com/joshuadavidthomas/aikeys/internal/fetch"
	"github.com/joshuadavidthomas/aikeys/internal/httpclient"
	"github.com/joshuadavidthomas/aikeys/internal/logging"
	"github.com/joshuadavidthomas/aikeys/internal/models"
	"github.com/joshuadavidthomas/aikeys/internal/mutation"
)

// session is one command's connection to the admin API: the store, the
// coordinator writing through it and the console reading from it.
type session struct {
	cfg     config.Config
	coord   *mutation.Coordinator
	console *console.Console
	metrics *mutation.Metrics
}

func newSession(ctx context.Context, reveal bool) (*session, error) {
	logger := logging.FromContext(ctx)
	cfg := config.Get()

	if err := api.ValidateBaseURL(cfg.API.BaseURL); err != nil {
		return nil, err
	}
	token, source, err := config.LoadToken(cfg)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, fmt.Errorf("no API token configured; run 'aikeys login' or set AIKEYS_TOKEN")
	}
	logger.Debug("session", "api", cfg.API.BaseURL, "token_source", source, "role", cfg.Viewer.Role)

	client := api.New(cfg.API.BaseURL, token, httpclient.NewFromConfig(cfg.API.Timeout))
	metrics := mutation.NewMetrics()
	coord := mutation.New(client, credstore.New(), cfg, mutation.Config{
		Notifier: cliNotifier(),
		Metrics:  metrics,
		Fetch:    fetch.Config{Timeout: time.Duration(cfg.API.Timeout * float64(time.Second))},
	})
	return &session{
		cfg:     cfg,
		coord:   coord,
		console: console.New(coord, cfg, console.Options{RevealKeys: reveal || cfg.Display.RevealKeys}),
		metrics: metrics,
	}, nil
}

// cliNotifier logs warnings. Errors are returned by the command itself, so
// they only reach the debug log here.
func cliNotifier() mutation.Notifier {
	return mutation.NotifierFunc(func(ctx context.Context, n mutation.Notification) {
		if n.Level == mutation.LevelError {
			logging.ForProvider(ctx, n.ProviderID, string(n.Scope)).Debug(n.Message, "op", n.Op)
			return
		}
		mutation.LogNotifier{}.Notify(ctx, n)
	})
}

// load fetches providers, settings and models, behind a spinner on a TTY.
func (s *session) load(ctx context.Context) error {
	var err error
	if serr := s.spin(display.Task{ID: "load", Label: "Loading providers"}, func() error {
		err = s.console.Load(ctx)
		return err
	}); serr != nil {
		return serr
	}
	return err
}

// await blocks on an intent, behind a spinner on a TTY.
func (s *session) await(ctx context.Context, label string, in *console.Intent) error {
	var err error
	if serr := s.spin(display.Task{ID: string(in.Op), Label: label}, func() error {
		err = in.Wait(ctx)
		return err
	}); serr != nil {
		return serr
	}
	return err
}

func (s *session) spin(task display.Task, work func() error) error {
	if !display.SpinnerShouldShow(quiet, structured(), !display.IsTerminal(os.Stdout)) {
		_ = work()
		return nil
	}
	err := display.SpinnerRun([]display.Task{task}, func(onComplete func(display.CompletionInfo)) {
		werr := work()
		info := display.CompletionInfo{ID: task.ID, Success: werr == nil}
		if werr != nil {
			info.Error = werr.Error()
		}
		onComplete(info)
	})
	if err != nil {
		return fmt.Errorf("spinner error: %w", err)
	}
	return nil
}

// close waits for background writes and writes the metrics textfile when
// one is configured.
func (s *session) close(ctx context.Context) {
	s.console.Wait()
	path := metricsFile
	if path == "" {
		path = s.cfg.Metrics.Textfile
	}
	if path == "" {
		return
	}
	if err := s.metrics.WriteTextfile(path); err != nil {
		logging.FromContext(ctx).Warn("writing metrics", "path", path, "err", err)
	}
}

// view returns the loaded view for providerID, or an error naming the
// providers the backend knows about.
func (s *session) view(providerID string) (console.ProviderView, error) {
	if v, ok := s.console.View(providerID); ok {
		return v, nil
	}
	var ids []string
	for _, v := range s.console.Views() {
		ids = append(ids, v.Descriptor.FrontendID)
	}
	return console.ProviderView{}, fmt.Errorf("unknown provider: %s. Available: %s", providerID, strings.Join(ids, ", "))
}

// providerArg normalizes a provider argument: frontend ids, backend names and
// aliases all resolve to the frontend id.
func providerArg(arg string) string {
	id := strings.ToLower(strings.TrimSpace(arg))
	if _, ok := catalog.Metadata(id); ok {
		return id
	}
	return catalog.ResolveFrontendID(id)
}

// activeScope is the record whose activation flag the provider's state
// reflects: the shared one for a super admin using the shared key, the
// personal one otherwise.
func (s *session) activeScope(providerID string) models.Scope {
	if !s.cfg.IsSuperAdmin() {
		return models.ScopePersonal
	}
	if v, ok := s.console.View(providerID); ok {
		return v.State.ActiveScope()
	}
	return models.ScopePersonal
}

func scopeFlag(shared bool) models.Scope {
	if shared {
		return models.ScopeShared
	}
	return models.ScopePersonal
}

// actionResult is the structured output of a mutating command.
type actionResult struct {
	Success  bool         `json:"success" yaml:"success"`
	Provider string       `json:"provider" yaml:"provider"`
	Action   string       `json:"action" yaml:"action"`
	Scope    models.Scope `json:"scope" yaml:"scope"`
	Message  string       `json:"message,omitempty" yaml:"message,omitempty"`
}

package mutation

import (
	"context"

	"github.com/joshuadavidthomas/aikeys/internal/logging"
	"github.com/joshuadavidthomas/aikeys/internal/models"
)

type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notification is a user-facing message about a mutation. Message is safe to
// show as-is; remote rejections carry the server's own text.
type Notification struct {
	Level      Level
	ProviderID string
	Scope      models.Scope
	Op         Op
	Message    string
	Err        error
}

// Notifier delivers notifications to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// LogNotifier writes notifications to the context logger.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n Notification) {
	logger := logging.ForProvider(ctx, n.ProviderID, string(n.Scope))
	switch n.Level {
	case LevelError:
		logger.Error(n.Message, "op", n.Op)
	case LevelWarn:
		logger.Warn(n.Message, "op", n.Op)
	default:
		logger.Info(n.Message, "op", n.Op)
	}
}

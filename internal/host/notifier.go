package host

import "log/slog"

// Severity classifies a notification.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return "unknown"
}

// Notifier shows transient user-facing messages, the stand-in for
// Krita's floating canvas messages. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(sev Severity, msg string)
}

// NopNotifier discards all messages.
func NopNotifier() Notifier { return nopNotifier{} }

type nopNotifier struct{}

func (nopNotifier) Notify(Severity, string) {}

// NewLogNotifier routes messages to log at the matching level.
func NewLogNotifier(log *slog.Logger) Notifier { return logNotifier{log} }

type logNotifier struct {
	log *slog.Logger
}

func (n logNotifier) Notify(sev Severity, msg string) {
	switch sev {
	case SeverityWarning:
		n.log.Warn(msg)
	case SeverityError:
		n.log.Error(msg)
	default:
		n.log.Info(msg)
	}
}

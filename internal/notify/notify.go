// ABOUTME: Fire-and-forget UI refresh notifiers
// ABOUTME: Log, MQTT and no-op implementations of the refresh signal

package notify

import (
	"github.com/charmbracelet/log"
)

// Notifier receives refresh signals. Implementations never block the caller
// on delivery and never report errors.
type Notifier interface {
	Refresh(scope string)
}

// Nop drops every signal.
type Nop struct{}

// Refresh implements Notifier.
func (Nop) Refresh(string) {}

// Log writes each signal to a logger at debug level.
type Log struct {
	Logger *log.Logger
}

// Refresh implements Notifier.
func (l Log) Refresh(scope string) {
	if l.Logger == nil {
		return
	}
	l.Logger.Debug("refresh", "scope", scope)
}

// Multi fans a signal out to several notifiers.
type Multi []Notifier

// Refresh implements Notifier.
func (m Multi) Refresh(scope string) {
	for _, n := range m {
		if n != nil {
			n.Refresh(scope)
		}
	}
}

// Package notify turns journal notices into desktop notifications.
package notify

import (
	"context"

	"github.com/dmitrijs2005/journalkeeper/internal/client/services"
	"github.com/dmitrijs2005/journalkeeper/internal/logging"
	"github.com/gen2brain/beeep"
)

// Notifier shows one message to the user.
type Notifier interface {
	Notify(title, message string) error
}

// Desktop is the beeep-backed notifier.
type Desktop struct{}

func (Desktop) Notify(title, message string) error {
	return beeep.Notify(title, message, "")
}

// Format returns the notification for n.
func Format(n services.Notice) (title, message string) {
	switch {
	case n.StorageError:
		return "Journal not saved", "Could not write the journal on this device. Your text is kept while the app is open."
	case n.NotSynced:
		return "Journal not synced", "Saved on this device. It will be sent when the server is reachable."
	default:
		return "Journal synced", "Everything is on the server."
	}
}

// OnNotice adapts n to services.JournalOptions.OnNotice. Notices are sent
// from a goroutine because the callback runs under the journal lock.
func OnNotice(n Notifier, log logging.Logger) func(services.Notice) {
	if log == nil {
		log = logging.Nop()
	}
	return func(notice services.Notice) {
		title, message := Format(notice)
		go func() {
			if err := n.Notify(title, message); err != nil {
				log.Warn(context.Background(), "desktop notification failed", "error", err)
			}
		}()
	}
}

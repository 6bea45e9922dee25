package alarm

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/beeep"

	"gitlab.com/tinyland/lab/focus-pulse/pkg/timer"
)

// Permission tracks whether the user has allowed desktop notifications.
type Permission int

const (
	PermissionNotAsked Permission = iota
	PermissionGranted
	PermissionDenied
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "not asked"
	}
}

// Notifier posts desktop notifications when a session completes.
// Notifications are only sent after permission has been granted; a
// failed probe marks the permission denied and Announce becomes a
// no-op. Dismissal and display duration are left to the OS.
type Notifier struct {
	mu     sync.Mutex
	perm   Permission
	logger *slog.Logger

	// send is swapped out in tests.
	send func(title, body string) error
}

// NewNotifier creates a Notifier in the not-asked state.
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Notifier{
		logger: logger,
		send: func(title, body string) error {
			return beeep.Notify(title, body, "")
		},
	}
}

// Permission returns the current permission state.
func (n *Notifier) Permission() Permission {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.perm
}

// Request asks the OS for notification access by posting a probe
// notification. It only runs from the not-asked state; repeated calls
// return the settled answer. Triggered by explicit user action, never
// automatically.
func (n *Notifier) Request() Permission {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.perm != PermissionNotAsked {
		return n.perm
	}
	if err := n.send("focus-pulse", "Notifications enabled."); err != nil {
		n.logger.Warn("notifications unavailable", "error", err)
		n.perm = PermissionDenied
	} else {
		n.perm = PermissionGranted
	}
	return n.perm
}

// Announce posts a completion notification for the mode that just
// finished. Best-effort: skipped unless permission is granted, and
// delivery errors are logged and swallowed.
func (n *Notifier) Announce(completed timer.Mode) {
	n.mu.Lock()
	perm := n.perm
	send := n.send
	n.mu.Unlock()

	if perm != PermissionGranted {
		n.logger.Debug("notification skipped", "permission", perm.String())
		return
	}

	title := fmt.Sprintf("%s complete", completed.Title())
	body := "Ready to focus again?"
	if completed == timer.ModeFocus {
		body = "Great job! Time for a break."
	}
	if err := send(title, body); err != nil {
		n.logger.Warn("post notification", "error", err)
	}
}

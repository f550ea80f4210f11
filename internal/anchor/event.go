package anchor

import (
	"fmt"

	"github.com/jask/cloudanchors/internal/shortcode"
)

// EventKind labels a lifecycle notification.
type EventKind int

const (
	HostingStarted EventKind = iota
	HostingSucceeded
	HostingFailed
	ResolvingStarted
	ResolvingSucceeded
	ResolvingFailed
	Cleared
)

func (k EventKind) String() string {
	switch k {
	case HostingStarted:
		return "hosting_started"
	case HostingSucceeded:
		return "hosting_succeeded"
	case HostingFailed:
		return "hosting_failed"
	case ResolvingStarted:
		return "resolving_started"
	case ResolvingSucceeded:
		return "resolving_succeeded"
	case ResolvingFailed:
		return "resolving_failed"
	case Cleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Event is what the lifecycle tells the display channel.
type Event struct {
	Kind     EventKind
	Code     shortcode.Code
	AnchorID string
	Err      error
}

// Message renders the event for a status line.
func (e Event) Message() string {
	switch e.Kind {
	case HostingStarted:
		return "Now hosting anchor..."
	case HostingSucceeded:
		return fmt.Sprintf("Anchor hosted! Short code: %d, cloud id: %s", e.Code, e.AnchorID)
	case HostingFailed:
		return fmt.Sprintf("Error hosting anchor: %v", e.Err)
	case ResolvingStarted:
		return "Now resolving anchor..."
	case ResolvingSucceeded:
		return "Anchor resolved successfully"
	case ResolvingFailed:
		return fmt.Sprintf("Error resolving anchor: %v", e.Err)
	case Cleared:
		return ""
	default:
		return e.Kind.String()
	}
}

// Notifier receives lifecycle events on the polling goroutine. Nothing in
// the lifecycle depends on what a notifier does with them.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

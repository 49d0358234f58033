// Package notify renders a fired reminder to the user: an on-screen
// notification plus spoken text, with an optional Telegram sink. Every
// implementation is best-effort; the coordinator has already committed the
// ledger by the time Render runs.
package notify

import "log"

type Notifier interface {
	// Render shows/speaks one reminder. Errors are advisory.
	Render(title, body string) error
	// Available reports whether this sink can plausibly reach the user.
	Available() bool
}

// Multi fans out to every sink. A failing sink is logged and never blocks
// its siblings; Render only errors when no sink is available at all.
type Multi []Notifier

func (m Multi) Render(title, body string) error {
	if !m.Available() {
		return ErrNoSink
	}
	for _, n := range m {
		if !n.Available() {
			continue
		}
		if err := n.Render(title, body); err != nil {
			log.Println("notify:", err)
		}
	}
	return nil
}

func (m Multi) Available() bool {
	for _, n := range m {
		if n.Available() {
			return true
		}
	}
	return false
}

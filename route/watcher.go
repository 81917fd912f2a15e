package route

import (
	"context"
	"log/slog"

	"github.com/MrEthical07/goSession/session"
)

// StateSource is the part of the session machine a Watcher needs.
type StateSource interface {
	State() session.State
	Subscribe(buffer int) (<-chan session.Transition, func())
}

// Navigator is the UI navigation layer.
type Navigator interface {
	Location() string
	Redirect(path string)
}

// Watcher applies a [Guard] to session transitions and navigation events.
type Watcher struct {
	guard  Guard
	source StateSource
	nav    Navigator
	log    *slog.Logger
}

// NewWatcher wires a guard between a state source and a navigator.
func NewWatcher(guard Guard, source StateSource, nav Navigator, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Watcher{guard: guard, source: source, nav: nav, log: log}
}

// Run evaluates the guard once for the current location and then after every
// transition, until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	events, cancel := w.source.Subscribe(4)
	defer cancel()

	w.evaluate(w.source.State())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-events:
			if !ok {
				return nil
			}
			w.evaluate(t.To)
		}
	}
}

// Navigate applies the guard to a navigation request and returns the path the
// navigator ended up on.
func (w *Watcher) Navigate(target string) string {
	if redirect, ok := w.guard.Decide(w.source.State(), target); ok {
		w.nav.Redirect(redirect)
		return redirect
	}
	w.nav.Redirect(target)
	return target
}

func (w *Watcher) evaluate(state session.State) {
	current := w.nav.Location()
	redirect, ok := w.guard.Decide(state, current)
	if !ok {
		return
	}
	w.log.Debug("route.redirect", "state", state.String(), "from", current, "to", redirect)
	w.nav.Redirect(redirect)
}

package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fentz26/dockgen/internal/poller"
)

const eventBuffer = 64

// Events carries controller events into the bubbletea program. It
// implements poller.Observer and never blocks the controller: when the
// buffer is full the oldest event is dropped.
type Events struct {
	ch chan poller.Event
}

// NewEvents creates an event channel.
func NewEvents() *Events {
	return &Events{ch: make(chan poller.Event, eventBuffer)}
}

// Notify implements poller.Observer.
func (e *Events) Notify(ev poller.Event) {
	select {
	case e.ch <- ev:
		return
	default:
	}
	select {
	case <-e.ch:
	default:
	}
	select {
	case e.ch <- ev:
	default:
	}
}

type pollEventMsg poller.Event

// listen waits for the next controller event.
func (e *Events) listen() tea.Cmd {
	return func() tea.Msg {
		return pollEventMsg(<-e.ch)
	}
}

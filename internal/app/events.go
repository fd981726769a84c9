package app

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"smartnotes/internal/notes"
	"smartnotes/internal/types"
	"smartnotes/internal/view"
)

type storeChangedMsg struct {
	change notes.Change
}

type viewChangedMsg struct {
	state view.State
}

type sessionChangedMsg struct {
	active bool
	reason string
}

type autosaveFailedMsg struct {
	noteID string
	err    error
}

type loginDoneMsg struct {
	session types.Session
	err     error
}

type loadDoneMsg struct {
	refresh bool
	err     error
}

type opDoneMsg struct {
	label   string
	success string
	err     error
}

type aiDoneMsg struct {
	noteID string
	text   string
	err    error
}

// eventBridge turns store, view and session notifications into tea messages.
// Notifications are only wake-ups; the model re-reads state when rendering,
// so a full buffer drops them.
type eventBridge struct {
	ch     chan tea.Msg
	done   chan struct{}
	once   sync.Once
	mu     sync.Mutex
	unsubs []func()
}

func newEventBridge() *eventBridge {
	return &eventBridge{
		ch:   make(chan tea.Msg, 128),
		done: make(chan struct{}),
	}
}

func (b *eventBridge) subscribe(deps Deps) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unsubs = append(b.unsubs,
		deps.Notes.Subscribe(func(change notes.Change) {
			b.publish(storeChangedMsg{change: change})
		}),
		deps.View.Subscribe(func(state view.State) {
			b.publish(viewChangedMsg{state: state})
		}),
		deps.Session.Subscribe(func(session types.Session, active bool) {
			reason := "signed out"
			if active {
				reason = ""
			}
			b.publish(sessionChangedMsg{active: active, reason: reason})
		}),
	)
	deps.Autosave.OnError(func(noteID string, err error) {
		b.publish(autosaveFailedMsg{noteID: noteID, err: err})
	})
}

func (b *eventBridge) publish(msg tea.Msg) {
	select {
	case <-b.done:
	case b.ch <- msg:
	default:
	}
}

func (b *eventBridge) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.ch:
			return msg
		case <-b.done:
			return nil
		}
	}
}

func (b *eventBridge) close() {
	b.once.Do(func() {
		b.mu.Lock()
		unsubs := b.unsubs
		b.unsubs = nil
		b.mu.Unlock()
		for _, unsub := range unsubs {
			unsub()
		}
		close(b.done)
	})
}

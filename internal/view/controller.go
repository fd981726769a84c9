// Package view tracks which screen is current and which folder/note it shows.
package view

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"smartnotes/internal/apperr"
	"smartnotes/internal/notes"
	"smartnotes/internal/types"
)

type Screen string

const (
	Home          Screen = "home"
	FolderContent Screen = "folder"
	NoteView      Screen = "note"
	NoteEditor    Screen = "editor"
)

type State struct {
	Screen    Screen
	FolderID  string
	NoteID    string
	EditingID string
}

// NoteStore is what the controller reads from and creates notes through.
type NoteStore interface {
	GetFolder(id string) (types.Folder, error)
	GetNote(id string) (types.Note, error)
	BeginCreateNote(ctx context.Context, folderID, title, originalText string) (*notes.Op[types.Note], error)
	Subscribe(fn notes.Listener) func()
}

type Listener func(State)

// Controller never holds its lock while calling a store mutator, so store
// notifications can always reach it.
type Controller struct {
	store       NoteStore
	unsubscribe func()

	mu        sync.Mutex
	state     State
	listeners map[int]Listener
	nextSub   int
	outbox    []State
	flushing  bool
}

func New(store NoteStore) *Controller {
	c := &Controller{
		store:     store,
		state:     State{Screen: Home},
		listeners: make(map[int]Listener),
	}
	c.unsubscribe = store.Subscribe(c.onChange)
	return c
}

// Close detaches the controller from the store.
func (c *Controller) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.listeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// OpenFolder shows a folder's notes. It works from any screen.
func (c *Controller) OpenFolder(id string) error {
	c.mu.Lock()
	folder, err := c.store.GetFolder(id)
	if err != nil {
		c.mu.Unlock()
		return apperr.WithOp("open folder", err)
	}
	c.set(State{Screen: FolderContent, FolderID: folder.ID})
	return nil
}

// OpenNote shows a note of the current folder.
func (c *Controller) OpenNote(id string) error {
	const op = "open note"
	c.mu.Lock()
	if c.state.Screen != FolderContent && c.state.Screen != NoteView {
		screen := c.state.Screen
		c.mu.Unlock()
		return invalid(op, screen)
	}
	note, err := c.store.GetNote(id)
	if err != nil {
		c.mu.Unlock()
		return apperr.WithOp(op, err)
	}
	if note.FolderID != c.state.FolderID {
		c.mu.Unlock()
		return apperr.Validation(op, "note", "note does not belong to the open folder")
	}
	c.set(State{Screen: NoteView, FolderID: c.state.FolderID, NoteID: note.ID})
	return nil
}

// EditCurrent opens the editor on the note being viewed.
func (c *Controller) EditCurrent() error {
	const op = "edit note"
	c.mu.Lock()
	if c.state.Screen != NoteView {
		screen := c.state.Screen
		c.mu.Unlock()
		return invalid(op, screen)
	}
	next := c.state
	next.Screen = NoteEditor
	next.EditingID = next.NoteID
	c.set(next)
	return nil
}

// NewNote creates a note in the current folder and opens the editor on it
// before the remote has confirmed it.
func (c *Controller) NewNote(ctx context.Context, title, originalText string) (*notes.Op[types.Note], error) {
	const op = "new note"
	c.mu.Lock()
	if c.state.Screen != FolderContent {
		screen := c.state.Screen
		c.mu.Unlock()
		return nil, invalid(op, screen)
	}
	folderID := c.state.FolderID
	c.mu.Unlock()

	pending, err := c.store.BeginCreateNote(ctx, folderID, title, originalText)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.state.Screen != FolderContent || c.state.FolderID != folderID {
		c.mu.Unlock()
		return pending, nil
	}
	// The create may already have been confirmed or rejected.
	note, err := c.store.GetNote(pending.ID())
	if err != nil {
		c.mu.Unlock()
		return pending, nil
	}
	c.set(State{Screen: NoteEditor, FolderID: folderID, NoteID: note.ID, EditingID: note.ID})
	return pending, nil
}

// FinishEditing leaves the editor and shows the edited note.
func (c *Controller) FinishEditing() error {
	const op = "finish editing"
	c.mu.Lock()
	if c.state.Screen != NoteEditor {
		screen := c.state.Screen
		c.mu.Unlock()
		return invalid(op, screen)
	}
	c.set(State{Screen: NoteView, FolderID: c.state.FolderID, NoteID: c.state.EditingID})
	return nil
}

func (c *Controller) Back() error {
	c.mu.Lock()
	state := c.state
	switch state.Screen {
	case NoteEditor:
		if _, err := c.store.GetNote(state.EditingID); err == nil {
			c.set(State{Screen: NoteView, FolderID: state.FolderID, NoteID: state.EditingID})
		} else {
			c.set(State{Screen: FolderContent, FolderID: state.FolderID})
		}
	case NoteView:
		c.set(State{Screen: FolderContent, FolderID: state.FolderID})
	case FolderContent:
		c.set(State{Screen: Home})
	default:
		c.mu.Unlock()
		return invalid("back", state.Screen)
	}
	return nil
}

// Home returns to the start screen from anywhere.
func (c *Controller) Home() {
	c.mu.Lock()
	c.set(State{Screen: Home})
}

func (c *Controller) onChange(change notes.Change) {
	c.mu.Lock()
	state := c.state
	next := state
	switch change.Kind {
	case notes.FolderConfirmed:
		if next.FolderID == change.PreviousID {
			next.FolderID = change.FolderID
		}
	case notes.NoteConfirmed:
		if next.NoteID == change.PreviousID {
			next.NoteID = change.NoteID
		}
		if next.EditingID == change.PreviousID {
			next.EditingID = change.NoteID
		}
	case notes.FolderRemoved:
		if next.FolderID != "" && next.FolderID == change.FolderID {
			next = State{Screen: Home}
		}
	case notes.NoteRemoved:
		if change.NoteID != "" && (next.NoteID == change.NoteID || next.EditingID == change.NoteID) {
			next = State{Screen: FolderContent, FolderID: next.FolderID}
		}
	case notes.Reloaded:
		next = c.revalidate(next)
	}
	if next == state {
		c.mu.Unlock()
		return
	}
	c.set(next)
}

func (c *Controller) revalidate(state State) State {
	if state.FolderID == "" {
		return State{Screen: Home}
	}
	if _, err := c.store.GetFolder(state.FolderID); err != nil {
		return State{Screen: Home}
	}
	for _, id := range []string{state.NoteID, state.EditingID} {
		if id == "" {
			continue
		}
		if _, err := c.store.GetNote(id); err != nil {
			return State{Screen: FolderContent, FolderID: state.FolderID}
		}
	}
	return state
}

// set stores next, releases the lock and notifies listeners. Callers hold c.mu.
func (c *Controller) set(next State) {
	c.state = next
	c.outbox = append(c.outbox, next)
	c.mu.Unlock()
	c.flush()
}

// flush delivers queued states in the order they were set, to listeners in
// subscription order. Only one goroutine delivers at a time.
func (c *Controller) flush() {
	c.mu.Lock()
	if c.flushing {
		c.mu.Unlock()
		return
	}
	c.flushing = true
	for len(c.outbox) > 0 {
		batch := c.outbox
		c.outbox = nil
		ids := make([]int, 0, len(c.listeners))
		for id := range c.listeners {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		listeners := make([]Listener, 0, len(ids))
		for _, id := range ids {
			listeners = append(listeners, c.listeners[id])
		}
		c.mu.Unlock()
		for _, state := range batch {
			for _, fn := range listeners {
				fn(state)
			}
		}
		c.mu.Lock()
	}
	c.flushing = false
	c.mu.Unlock()
}

func invalid(op string, screen Screen) error {
	return apperr.Validation(op, "screen", fmt.Sprintf("not available on the %s screen", screen))
}

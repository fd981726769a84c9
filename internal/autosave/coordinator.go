// Package autosave coalesces editor changes into occasional content saves.
package autosave

import (
	"context"
	"sync"
	"time"

	"smartnotes/internal/logging"
)

const DefaultQuietWindow = 2 * time.Second

// Saver persists note content. notes.Store.AutosaveContent satisfies it.
type Saver interface {
	AutosaveContent(ctx context.Context, noteID, content string) error
}

type Phase string

const (
	Idle   Phase = "idle"
	Saved  Phase = "saved"
	Dirty  Phase = "unsaved"
	Saving Phase = "saving"
	Failed Phase = "failed"
)

type Status struct {
	NoteID  string
	Phase   Phase
	Err     error
	SavedAt time.Time
}

type Option func(*Coordinator)

func WithQuietWindow(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.window = d
		}
	}
}

func WithClock(clock Clock) Option {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Coordinator tracks the edit buffer of one open note at a time. Each burst
// of edits is followed by a single save once the quiet window elapses; edits
// made while a save is in flight produce exactly one follow-up save.
type Coordinator struct {
	saver   Saver
	clock   Clock
	window  time.Duration
	logger  logging.Logger
	onError func(string, error)
	now     func() time.Time

	mu  sync.Mutex
	cur *editSession
	wg  sync.WaitGroup
}

type editSession struct {
	noteID    string
	buffer    string
	lastSaved string
	attempted string
	timer     Timer
	seq       int
	saving    bool
	followUp  bool
	done      chan struct{}
	err       error
	savedAt   time.Time
	closed    bool
}

func New(saver Saver, opts ...Option) *Coordinator {
	c := &Coordinator{
		saver:  saver,
		clock:  SystemClock(),
		window: DefaultQuietWindow,
		logger: logging.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Open starts tracking noteID with content as its saved state. Unsaved edits
// of a previously open note are saved right away in the background.
func (c *Coordinator) Open(noteID, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev := c.cur; prev != nil {
		c.detach(prev)
	}
	c.cur = &editSession{noteID: noteID, buffer: content, lastSaved: content, attempted: content}
}

// Edit replaces the buffer and restarts the quiet window.
func (c *Coordinator) Edit(content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.cur
	if s == nil {
		return
	}
	s.buffer = content
	if s.buffer == s.lastSaved && !s.saving {
		c.stopTimer(s)
		return
	}
	c.arm(s)
}

// Flush saves pending edits now and waits for any in-flight save.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.mu.Lock()
	s := c.cur
	if s == nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.flush(ctx, s)
}

// Close flushes the open note and stops tracking it. It also waits for saves
// of previously open notes.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	s := c.cur
	c.mu.Unlock()
	var err error
	if s != nil {
		err = c.flush(ctx, s)
		c.mu.Lock()
		if c.cur == s {
			c.stopTimer(s)
			s.closed = true
			c.cur = nil
		}
		c.mu.Unlock()
	}
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// OnError registers fn to be called after a failed save. It runs on the
// saving goroutine and must not block.
func (c *Coordinator) OnError(fn func(noteID string, err error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.cur
	if s == nil {
		return Status{Phase: Idle}
	}
	status := Status{NoteID: s.noteID, Err: s.err, SavedAt: s.savedAt}
	switch {
	case s.saving:
		status.Phase = Saving
	case s.buffer == s.lastSaved:
		status.Phase = Saved
	case s.timer != nil || s.err == nil:
		status.Phase = Dirty
	default:
		status.Phase = Failed
	}
	return status
}

func (c *Coordinator) flush(ctx context.Context, s *editSession) error {
	for {
		c.mu.Lock()
		c.stopTimer(s)
		if s.saving {
			s.followUp = true
			done := s.done
			c.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if s.buffer == s.lastSaved {
			err := s.err
			c.mu.Unlock()
			return err
		}
		if s.buffer == s.attempted && s.err != nil {
			// Already tried and failed; Flush does not retry on its own.
			err := s.err
			c.mu.Unlock()
			return err
		}
		done := c.start(s)
		c.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		c.mu.Lock()
		err := s.err
		clean := s.buffer == s.lastSaved
		c.mu.Unlock()
		if err != nil || clean {
			return err
		}
	}
}

// detach hands a replaced session its final save. Callers hold c.mu.
func (c *Coordinator) detach(s *editSession) {
	c.stopTimer(s)
	s.closed = true
	if s.saving {
		s.followUp = true
		return
	}
	if s.buffer != s.lastSaved && s.buffer != s.attempted {
		c.start(s)
	}
}

// arm restarts the quiet window. Callers hold c.mu.
func (c *Coordinator) arm(s *editSession) {
	c.stopTimer(s)
	s.seq++
	seq := s.seq
	s.timer = c.clock.AfterFunc(c.window, func() { c.fire(s, seq) })
}

func (c *Coordinator) stopTimer(s *editSession) {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.seq++
}

func (c *Coordinator) fire(s *editSession, seq int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.seq != seq || s.closed {
		return
	}
	s.timer = nil
	if s.saving {
		s.followUp = true
		return
	}
	if s.buffer == s.lastSaved {
		return
	}
	c.start(s)
}

// start launches a save of the current buffer. Callers hold c.mu.
func (c *Coordinator) start(s *editSession) <-chan struct{} {
	content := s.buffer
	s.saving = true
	s.followUp = false
	s.attempted = content
	s.done = make(chan struct{})
	done := s.done
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		err := c.saver.AutosaveContent(context.Background(), s.noteID, content)
		c.finish(s, content, err, done)
	}()
	return done
}

func (c *Coordinator) finish(s *editSession, content string, err error, done chan struct{}) {
	c.mu.Lock()
	s.saving = false
	if err != nil {
		s.err = err
	} else {
		s.err = nil
		s.lastSaved = content
		s.savedAt = c.now()
	}
	if s.followUp && s.timer == nil && s.buffer != s.lastSaved && s.buffer != s.attempted {
		c.start(s)
	}
	noteID := s.noteID
	onError := c.onError
	c.mu.Unlock()
	defer close(done)

	if err != nil {
		c.logger.Warn("autosave_failed", logging.F("note_id", noteID), logging.Err(err))
		if onError != nil {
			onError(noteID, err)
		}
	} else {
		c.logger.Debug("autosave_saved", logging.F("note_id", noteID), logging.F("bytes", len(content)))
	}
}

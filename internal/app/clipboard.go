package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	osc52 "github.com/aymanbagabas/go-osc52/v2"

	"smartnotes/internal/notes"
	"smartnotes/internal/types"
)

// noteClipboard copies note text. The system clipboard is tried first; the
// terminal clipboard (OSC52) covers ssh sessions and headless machines.
type noteClipboard struct {
	system   func(string) error
	terminal func(string) error
}

func defaultClipboard() noteClipboard {
	return noteClipboard{
		system: clipboard.WriteAll,
		terminal: func(text string) error {
			return writeTerminalClipboard(text, os.Getenv, openTTY)
		},
	}
}

// Copy reports whether the text went through the terminal clipboard.
func (c noteClipboard) Copy(text string) (bool, error) {
	systemErr := c.system(text)
	if systemErr == nil {
		return false, nil
	}
	terminalErr := c.terminal(text)
	if terminalErr == nil {
		return true, nil
	}
	return false, fmt.Errorf("%s; terminal clipboard: %v", systemClipboardProblem(systemErr, os.Getenv), terminalErr)
}

// noteCopyText is the title line followed by the tag-free content.
func noteCopyText(note types.Note) string {
	title := strings.TrimSpace(note.Title)
	content := strings.TrimSpace(notes.PlainText(note.Content))
	if content == "" {
		return title
	}
	return title + "\n\n" + content
}

func (m *Model) copyNote(noteID string) {
	note, err := m.deps.Notes.GetNote(noteID)
	if err != nil {
		m.setError("copy", err)
		return
	}
	viaTerminal, err := m.clipboard.Copy(noteCopyText(note))
	if err != nil {
		m.setError("copy", err)
		return
	}
	if viaTerminal {
		m.setInfo(fmt.Sprintf("copied %q via terminal clipboard", note.Title))
		return
	}
	m.setInfo(fmt.Sprintf("copied %q", note.Title))
}

var openTTY = func() (io.WriteCloser, error) {
	return os.OpenFile("/dev/tty", os.O_WRONLY, 0)
}

func writeTerminalClipboard(text string, getenv func(string) string, open func() (io.WriteCloser, error)) error {
	if !terminalClipboardEnabled(getenv) {
		return errors.New("not supported by this terminal")
	}
	tty, err := open()
	if err != nil {
		return fmt.Errorf("open /dev/tty: %w", err)
	}
	defer tty.Close()
	_, err = osc52Sequence(text, getenv).WriteTo(tty)
	return err
}

// osc52Sequence wraps the sequence for the multiplexer it has to pass through.
func osc52Sequence(text string, getenv func(string) string) osc52.Sequence {
	seq := osc52.New(text)
	switch {
	case getenv("TMUX") != "":
		return seq.Tmux()
	case strings.HasPrefix(strings.ToLower(getenv("TERM")), "screen"):
		return seq.Screen()
	}
	return seq
}

func terminalClipboardEnabled(getenv func(string) string) bool {
	switch strings.ToLower(strings.TrimSpace(getenv("SMARTNOTES_DISABLE_OSC52"))) {
	case "1", "true", "yes", "on":
		return false
	}
	term := strings.TrimSpace(getenv("TERM"))
	return term != "" && !strings.EqualFold(term, "dumb")
}

func systemClipboardProblem(err error, getenv func(string) string) string {
	if strings.TrimSpace(getenv("DISPLAY")) == "" && strings.TrimSpace(getenv("WAYLAND_DISPLAY")) == "" {
		return "no system clipboard (DISPLAY and WAYLAND_DISPLAY unset)"
	}
	return "system clipboard: " + err.Error()
}

package app

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"smartnotes/internal/types"
)

func envOf(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func TestNoteClipboardPrefersSystem(t *testing.T) {
	terminalUsed := false
	c := noteClipboard{
		system:   func(string) error { return nil },
		terminal: func(string) error { terminalUsed = true; return nil },
	}
	viaTerminal, err := c.Copy("hello")
	if err != nil || viaTerminal || terminalUsed {
		t.Fatalf("expected system copy only, got viaTerminal=%v terminalUsed=%v err=%v", viaTerminal, terminalUsed, err)
	}
}

func TestNoteClipboardFallsBackToTerminal(t *testing.T) {
	var copied string
	c := noteClipboard{
		system:   func(string) error { return errors.New("exit status 1") },
		terminal: func(text string) error { copied = text; return nil },
	}
	viaTerminal, err := c.Copy("hello")
	if err != nil || !viaTerminal || copied != "hello" {
		t.Fatalf("expected terminal copy, got viaTerminal=%v copied=%q err=%v", viaTerminal, copied, err)
	}
}

func TestNoteClipboardReportsBothFailures(t *testing.T) {
	t.Setenv("DISPLAY", "")
	t.Setenv("WAYLAND_DISPLAY", "")
	c := noteClipboard{
		system:   func(string) error { return errors.New("exit status 1") },
		terminal: func(string) error { return errors.New("not supported by this terminal") },
	}
	_, err := c.Copy("hello")
	if err == nil {
		t.Fatalf("expected copy error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "no system clipboard") || !strings.Contains(msg, "not supported by this terminal") {
		t.Fatalf("unexpected error %q", msg)
	}
}

func TestNoteCopyText(t *testing.T) {
	got := noteCopyText(types.Note{Title: " Intro ", Content: "<p>Hello <b>world</b></p>"})
	if got != "Intro\n\nHello world" {
		t.Fatalf("unexpected copy text %q", got)
	}
	if got := noteCopyText(types.Note{Title: "Blank"}); got != "Blank" {
		t.Fatalf("unexpected copy text for empty note %q", got)
	}
}

func TestWriteTerminalClipboard(t *testing.T) {
	var out bytes.Buffer
	open := func() (io.WriteCloser, error) { return nopWriteCloser{&out}, nil }

	if err := writeTerminalClipboard("hi", envOf(map[string]string{"TERM": "xterm-256color"}), open); err != nil {
		t.Fatalf("expected write to succeed, got %v", err)
	}
	if !strings.HasPrefix(out.String(), "\x1b]52;c;") {
		t.Fatalf("expected an OSC52 sequence, got %q", out.String())
	}

	out.Reset()
	if err := writeTerminalClipboard("hi", envOf(map[string]string{"TERM": "xterm", "TMUX": "/tmp/tmux"}), open); err != nil {
		t.Fatalf("expected tmux write to succeed, got %v", err)
	}
	if !strings.HasPrefix(out.String(), "\x1bPtmux;") {
		t.Fatalf("expected a tmux passthrough sequence, got %q", out.String())
	}
}

func TestWriteTerminalClipboardRefusals(t *testing.T) {
	failOpen := func() (io.WriteCloser, error) { return nil, os.ErrNotExist }
	err := writeTerminalClipboard("hi", envOf(map[string]string{"TERM": "xterm"}), failOpen)
	if err == nil || !strings.Contains(err.Error(), "open /dev/tty") {
		t.Fatalf("expected tty error, got %v", err)
	}
	for _, env := range []map[string]string{
		{"TERM": "dumb"},
		{},
		{"TERM": "xterm", "SMARTNOTES_DISABLE_OSC52": "yes"},
	} {
		if err := writeTerminalClipboard("hi", envOf(env), failOpen); err == nil || strings.Contains(err.Error(), "/dev/tty") {
			t.Fatalf("expected terminal clipboard to be refused for %v, got %v", env, err)
		}
	}
}

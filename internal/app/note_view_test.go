package app

import (
	"strings"
	"testing"
	"time"

	xansi "github.com/charmbracelet/x/ansi"

	"smartnotes/internal/types"
)

func TestNoteStyleDropsDocumentMargin(t *testing.T) {
	cfg := noteStyle(true)
	if cfg.Document.Margin == nil || *cfg.Document.Margin != 0 {
		t.Fatalf("expected zero document margin, got %v", cfg.Document.Margin)
	}
	if cfg.BlockQuote.StylePrimitive.Faint == nil || !*cfg.BlockQuote.StylePrimitive.Faint {
		t.Fatalf("expected faint block quotes")
	}
}

func TestNoteMarkdownLayout(t *testing.T) {
	updated := time.Date(2024, 3, 1, 9, 30, 0, 0, time.Local)
	doc := noteMarkdown(types.Note{
		Title:        "Lecture *1*",
		Content:      "<p>Hello <b>world</b></p>",
		OriginalText: "hello wrld",
		UpdatedAt:    updated,
		Pending:      true,
	})
	for _, want := range []string{
		"# Lecture \\*1\\*\n",
		"*updated Mar 1 2024 09:30, syncing*",
		"Hello world\n",
		"## Original text\n\n> hello wrld\n",
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("expected %q in document:\n%s", want, doc)
		}
	}
}

func TestNoteMarkdownSkipsUnchangedOriginal(t *testing.T) {
	doc := noteMarkdown(types.Note{Title: "Plain", Content: "same text", OriginalText: "same text"})
	if strings.Contains(doc, "Original text") {
		t.Fatalf("expected no original section, got:\n%s", doc)
	}
	blank := noteMarkdown(types.Note{Title: "Blank"})
	if !strings.Contains(blank, "_empty note_") {
		t.Fatalf("expected empty marker, got:\n%s", blank)
	}
}

func TestEscapeTitle(t *testing.T) {
	cases := map[string]string{
		"":              "Untitled",
		"# not heading": "\\# not heading",
		"a_b `c`":       "a\\_b \\`c\\`",
		"two\nlines":    "two lines",
	}
	for in, want := range cases {
		if got := escapeTitle(in); got != want {
			t.Fatalf("escapeTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNoteRendererReusesUnchangedDocument(t *testing.T) {
	r := newNoteRenderer(true)
	note := types.Note{ID: "n1", Title: "Intro", Content: "<p>Hello</p>", UpdatedAt: time.Unix(100, 0)}

	first, changed := r.Render(note, 60)
	if !changed {
		t.Fatalf("expected first render to report a change")
	}
	plain := xansi.Strip(first)
	if !strings.Contains(plain, "Intro") || !strings.Contains(plain, "Hello") {
		t.Fatalf("unexpected rendered note %q", plain)
	}
	if _, changed := r.Render(note, 60); changed {
		t.Fatalf("expected unchanged note to be reused")
	}
	if _, changed := r.Render(note, 40); !changed {
		t.Fatalf("expected a width change to re-render")
	}
	note.UpdatedAt = note.UpdatedAt.Add(time.Second)
	if _, changed := r.Render(note, 40); !changed {
		t.Fatalf("expected an edited note to re-render")
	}
}

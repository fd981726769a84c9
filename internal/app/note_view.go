package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	glamouransi "github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	xansi "github.com/charmbracelet/x/ansi"

	"smartnotes/internal/notes"
	"smartnotes/internal/types"
)

// noteRenderer turns a note into the styled document shown by the viewer.
// It remembers the last document, so an unchanged note costs nothing per frame.
type noteRenderer struct {
	dark  bool
	term  *glamour.TermRenderer
	width int

	lastKey string
	lastDoc string
}

func newNoteRenderer(dark bool) *noteRenderer {
	return &noteRenderer{dark: dark}
}

// Render returns the document for note and whether it differs from the one
// returned by the previous call.
func (r *noteRenderer) Render(note types.Note, width int) (string, bool) {
	if width <= 0 {
		width = 80
	}
	key := fmt.Sprintf("%s|%d|%d|%t", note.ID, width, note.UpdatedAt.UnixNano(), note.Pending)
	if key == r.lastKey {
		return r.lastDoc, false
	}
	source := noteMarkdown(note)
	doc := source
	if term := r.renderer(width); term != nil {
		if styled, err := term.Render(source); err == nil {
			doc = xansi.Hardwrap(strings.TrimRight(styled, "\n"), width, true)
		}
	}
	r.lastKey = key
	r.lastDoc = strings.TrimRight(doc, "\n")
	return r.lastDoc, true
}

func (r *noteRenderer) renderer(width int) *glamour.TermRenderer {
	if r.term != nil && r.width == width {
		return r.term
	}
	term, err := glamour.NewTermRenderer(
		glamour.WithStyles(noteStyle(r.dark)),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	r.term = term
	r.width = width
	return term
}

// noteStyle is glamour's stock theme without the document margin, since the
// viewer pane is already padded. The captured original text is quoted faintly.
func noteStyle(dark bool) glamouransi.StyleConfig {
	cfg := styles.LightStyleConfig
	if dark {
		cfg = styles.DarkStyleConfig
	}
	var margin uint
	cfg.Document.Margin = &margin
	cfg.Document.StylePrimitive.BlockPrefix = ""
	cfg.Document.StylePrimitive.BlockSuffix = ""
	faint := true
	grey := "245"
	cfg.BlockQuote.StylePrimitive.Faint = &faint
	cfg.BlockQuote.StylePrimitive.Color = &grey
	return cfg
}

// noteMarkdown lays a note out as markdown: title, a status line, the content
// and, when the note was enhanced, the text it started from.
func noteMarkdown(note types.Note) string {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(escapeTitle(note.Title))
	b.WriteString("\n\n")

	status := "updated " + note.UpdatedAt.Local().Format("Jan 2 2006 15:04")
	if note.Pending {
		status += ", syncing"
	}
	b.WriteString("*" + status + "*\n\n")

	content := strings.TrimSpace(notes.PlainText(note.Content))
	if content == "" {
		b.WriteString("_empty note_\n")
	} else {
		b.WriteString(content)
		b.WriteString("\n")
	}

	original := strings.TrimSpace(notes.PlainText(note.OriginalText))
	if original != "" && original != content {
		b.WriteString("\n## Original text\n\n")
		for _, line := range strings.Split(original, "\n") {
			b.WriteString("> ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// escapeTitle keeps a note title on the heading line as literal text.
func escapeTitle(title string) string {
	title = strings.Join(strings.Fields(title), " ")
	replacer := strings.NewReplacer("\\", "\\\\", "`", "\\`", "*", "\\*", "_", "\\_", "[", "\\[", "]", "\\]")
	title = replacer.Replace(title)
	if title == "" {
		return "Untitled"
	}
	if strings.HasPrefix(title, "#") {
		title = "\\" + title
	}
	return title
}

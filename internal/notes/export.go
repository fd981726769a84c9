package notes

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/microcosm-cc/bluemonday"
	"gopkg.in/yaml.v3"

	"smartnotes/internal/apperr"
	"smartnotes/internal/types"
)

type Format string

const (
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
)

func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "txt", "text":
		return FormatText, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	default:
		return "", apperr.Validation("export", "format", fmt.Sprintf("unknown export format %q", raw))
	}
}

var strictPolicy = bluemonday.StrictPolicy()

// PlainText strips markup from note content.
func PlainText(content string) string {
	return html.UnescapeString(strictPolicy.Sanitize(content))
}

type frontMatter struct {
	Title      string    `yaml:"title"`
	ID         string    `yaml:"id,omitempty"`
	FolderID   string    `yaml:"folder_id,omitempty"`
	CreatedAt  time.Time `yaml:"created_at,omitempty"`
	UpdatedAt  time.Time `yaml:"updated_at,omitempty"`
	ExportedAt time.Time `yaml:"exported_at"`
}

// Export renders note as a downloadable file and returns its name and contents.
func Export(note types.Note, format Format, at time.Time) (string, []byte, error) {
	name := exportFileName(note.Title, at, format)
	switch format {
	case FormatText:
		return name, renderText(note, at), nil
	case FormatMarkdown:
		data, err := renderMarkdown(note, at)
		if err != nil {
			return "", nil, err
		}
		return name, data, nil
	default:
		return "", nil, apperr.Validation("export", "format", fmt.Sprintf("unknown export format %q", format))
	}
}

// ExportNote exports a note held by the store.
func (s *Store) ExportNote(id string, format Format) (string, []byte, error) {
	note, err := s.GetNote(id)
	if err != nil {
		return "", nil, err
	}
	return Export(note, format, s.now())
}

func renderText(note types.Note, at time.Time) []byte {
	var b bytes.Buffer
	title := strings.TrimSpace(note.Title)
	b.WriteString(strings.ToUpper(title))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", runewidth.StringWidth(title)))
	b.WriteString("\n\nSMART NOTES:\n------------\n")
	b.WriteString(strings.TrimSpace(PlainText(note.Content)))
	b.WriteString("\n\nCreated with Smart Notes\n")
	b.WriteString(at.Format("2006-01-02 15:04:05"))
	b.WriteString("\n")
	return b.Bytes()
}

func renderMarkdown(note types.Note, at time.Time) ([]byte, error) {
	meta := frontMatter{
		Title:      note.Title,
		FolderID:   note.FolderID,
		CreatedAt:  note.CreatedAt.UTC(),
		UpdatedAt:  note.UpdatedAt.UTC(),
		ExportedAt: at.UTC(),
	}
	if !IsPlaceholder(note.ID) {
		meta.ID = note.ID
	}
	if IsPlaceholder(note.FolderID) {
		meta.FolderID = ""
	}
	header, err := yaml.Marshal(meta)
	if err != nil {
		return nil, err
	}
	var b bytes.Buffer
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n# ")
	b.WriteString(strings.TrimSpace(note.Title))
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(note.Content))
	b.WriteString("\n")
	return b.Bytes(), nil
}

func exportFileName(title string, at time.Time, format Format) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	base := b.String()
	if strings.Trim(base, "_") == "" {
		base = "note"
	}
	return fmt.Sprintf("%s_%d.%s", base, at.UnixMilli(), format)
}

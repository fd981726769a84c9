package types

import "time"

type Folder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	NoteCount int       `json:"note_count,omitempty"`
	Pending   bool      `json:"-"`
}

type Note struct {
	ID           string    `json:"id"`
	FolderID     string    `json:"folder_id,omitempty"`
	Title        string    `json:"title"`
	OriginalText string    `json:"original_text,omitempty"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
	Pending      bool      `json:"-"`
}

// NoteDraft is the payload of a note creation.
type NoteDraft struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	OriginalText string `json:"original_text"`
}

// NotePatch is a partial note update. Nil fields are left untouched.
type NotePatch struct {
	Title        *string `json:"title,omitempty"`
	OriginalText *string `json:"original_text,omitempty"`
	Content      *string `json:"content,omitempty"`
}

func (p NotePatch) Empty() bool {
	return p.Title == nil && p.OriginalText == nil && p.Content == nil
}

// Apply merges the patch into note and returns the names of the fields it changed.
func (p NotePatch) Apply(note *Note) []string {
	if note == nil {
		return nil
	}
	var changed []string
	if p.Title != nil {
		note.Title = *p.Title
		changed = append(changed, FieldTitle)
	}
	if p.OriginalText != nil {
		note.OriginalText = *p.OriginalText
		changed = append(changed, FieldOriginalText)
	}
	if p.Content != nil {
		note.Content = *p.Content
		changed = append(changed, FieldContent)
	}
	return changed
}

const (
	FieldTitle        = "title"
	FieldOriginalText = "original_text"
	FieldContent      = "content"
)

func StringPtr(value string) *string {
	return &value
}

type Stats struct {
	Folders int `json:"folders"`
	Notes   int `json:"notes"`
}

package client

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"smartnotes/internal/types"
)

// remoteID accepts both numeric and string ids.
type remoteID string

func (id *remoteID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = remoteID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = remoteID(n.String())
	return nil
}

// remoteTime accepts RFC 3339 timestamps as well as the zone-less form the API emits.
type remoteTime time.Time

var remoteTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t *remoteTime) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*t = remoteTime{}
		return nil
	}
	for _, layout := range remoteTimeLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			*t = remoteTime(parsed.UTC())
			return nil
		}
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*t = remoteTime(time.Unix(secs, 0).UTC())
		return nil
	}
	return nil
}

type userDTO struct {
	ID       remoteID `json:"id"`
	Name     string   `json:"name"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Avatar   string   `json:"avatar"`
}

func (u userDTO) toUser() *types.User {
	name := strings.TrimSpace(u.Name)
	if name == "" {
		name = strings.TrimSpace(u.Username)
	}
	return &types.User{
		ID:     string(u.ID),
		Name:   name,
		Email:  u.Email,
		Avatar: u.Avatar,
	}
}

type folderDTO struct {
	ID         remoteID   `json:"id"`
	Name       string     `json:"name"`
	CreatedAt  remoteTime `json:"created_at"`
	NoteCount  int        `json:"note_count"`
	NotesCount int        `json:"notes_count"`
}

func (f folderDTO) toFolder() *types.Folder {
	count := f.NoteCount
	if count == 0 {
		count = f.NotesCount
	}
	return &types.Folder{
		ID:        string(f.ID),
		Name:      f.Name,
		CreatedAt: time.Time(f.CreatedAt),
		NoteCount: count,
	}
}

type noteDTO struct {
	ID           remoteID   `json:"id"`
	FolderID     remoteID   `json:"folder_id"`
	Title        string     `json:"title"`
	OriginalText string     `json:"original_text"`
	Content      string     `json:"content"`
	CreatedAt    remoteTime `json:"created_at"`
	UpdatedAt    remoteTime `json:"updated_at"`
}

func (n noteDTO) toNote(folderID string) *types.Note {
	note := &types.Note{
		ID:           string(n.ID),
		FolderID:     string(n.FolderID),
		Title:        n.Title,
		OriginalText: n.OriginalText,
		Content:      n.Content,
		CreatedAt:    time.Time(n.CreatedAt),
		UpdatedAt:    time.Time(n.UpdatedAt),
	}
	if note.FolderID == "" {
		note.FolderID = folderID
	}
	return note
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type createFolderRequest struct {
	Name string `json:"name"`
}

type updateProfileRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar,omitempty"`
	Password string `json:"password,omitempty"`
}

type processTextRequest struct {
	Text      string `json:"text"`
	Operation string `json:"operation"`
}

package notes

type ChangeKind string

const (
	FolderAdded     ChangeKind = "folder_added"
	FolderConfirmed ChangeKind = "folder_confirmed"
	FolderRemoved   ChangeKind = "folder_removed"
	FolderRestored  ChangeKind = "folder_restored"
	NoteAdded       ChangeKind = "note_added"
	NoteConfirmed   ChangeKind = "note_confirmed"
	NoteUpdated     ChangeKind = "note_updated"
	NoteRemoved     ChangeKind = "note_removed"
	NoteRestored    ChangeKind = "note_restored"
	Reloaded        ChangeKind = "reloaded"
)

// Change describes one transition of the folder/note tree.
type Change struct {
	Kind       ChangeKind
	FolderID   string
	NoteID     string
	PreviousID string
	// Err is the remote failure behind a rollback.
	Err error
}

type Listener func(Change)

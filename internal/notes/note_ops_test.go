package notes

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"smartnotes/internal/apperr"
	"smartnotes/internal/types"
)

func TestCreateNoteWaitsForFolderServerID(t *testing.T) {
	s, fake := newTestStore(t)
	rec := recordChanges(s)
	release := fake.Hold("CreateFolder")

	folderOp, err := s.BeginCreateFolder(context.Background(), "Lectures")
	require.NoError(t, err)
	noteOp, err := s.BeginCreateNote(context.Background(), folderOp.ID(), "Intro", "raw text")
	require.NoError(t, err)

	notes, err := s.ListNotes(folderOp.ID())
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.True(t, notes[0].Pending)
	require.Empty(t, fake.Calls("CreateNote"))

	release()
	folder, err := folderOp.Wait(context.Background())
	require.NoError(t, err)
	note, err := noteOp.Wait(context.Background())
	require.NoError(t, err)

	calls := fake.Calls("CreateNote")
	require.Len(t, calls, 1)
	require.Equal(t, folder.ID, calls[0].ID)
	require.Equal(t, folder.ID, note.FolderID)
	require.Equal(t, "raw text", note.OriginalText)

	confirmed, ok := rec.find(NoteConfirmed)
	require.True(t, ok)
	require.Equal(t, noteOp.ID(), confirmed.PreviousID)
	require.Equal(t, note.ID, confirmed.NoteID)

	byPlaceholder, err := s.GetNote(noteOp.ID())
	require.NoError(t, err)
	require.Equal(t, note.ID, byPlaceholder.ID)
}

func TestCreateNoteInFailedFolder(t *testing.T) {
	s, fake := newTestStore(t)
	release := fake.Hold("CreateFolder")
	fake.FailNext("CreateFolder", apperr.NetworkUnavailable("create folder", context.DeadlineExceeded))

	folderOp, err := s.BeginCreateFolder(context.Background(), "Lectures")
	require.NoError(t, err)
	noteOp, err := s.BeginCreateNote(context.Background(), folderOp.ID(), "Intro", "")
	require.NoError(t, err)

	release()
	_, err = folderOp.Wait(context.Background())
	require.ErrorIs(t, err, apperr.ErrNetworkUnavailable)
	_, err = noteOp.Wait(context.Background())
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.Empty(t, fake.Calls("CreateNote"))
	require.Equal(t, types.Stats{}, s.Stats())
}

func TestCreateNoteValidation(t *testing.T) {
	s, fake := newTestStore(t)
	folder, err := s.CreateFolder(context.Background(), "A")
	require.NoError(t, err)

	_, err = s.CreateNote(context.Background(), folder.ID, "  ", "")
	require.ErrorIs(t, err, apperr.ErrValidation)
	_, err = s.CreateNote(context.Background(), "missing", "Intro", "")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.Empty(t, fake.Calls("CreateNote"))
}

func TestCreateNoteRejectedThenRetried(t *testing.T) {
	s, fake := newTestStore(t)
	folder, err := s.CreateFolder(context.Background(), "A")
	require.NoError(t, err)
	fake.FailNext("CreateNote", apperr.RemoteRejected("create note", 422, "title too long"))

	_, err = s.CreateNote(context.Background(), folder.ID, "Intro", "")
	require.ErrorIs(t, err, apperr.ErrRemoteRejected)
	require.Equal(t, "title too long", apperr.Message(err))
	notes, err := s.ListNotes(folder.ID)
	require.NoError(t, err)
	require.Empty(t, notes)

	_, err = s.CreateNote(context.Background(), folder.ID, "Intro", "")
	require.NoError(t, err)
	notes, _ = s.ListNotes(folder.ID)
	require.Len(t, notes, 1)
}

func TestUpdatesReachRemoteInSubmissionOrder(t *testing.T) {
	s, fake := newTestStore(t)
	folder, err := s.CreateFolder(context.Background(), "A")
	require.NoError(t, err)
	note, err := s.CreateNote(context.Background(), folder.ID, "Intro", "")
	require.NoError(t, err)

	release := fake.Hold("UpdateNote")
	first, err := s.BeginUpdateNote(context.Background(), note.ID, types.NotePatch{Content: types.StringPtr("one")})
	require.NoError(t, err)
	second, err := s.BeginUpdateNote(context.Background(), note.ID, types.NotePatch{Content: types.StringPtr("two")})
	require.NoError(t, err)

	require.True(t, fake.WaitForCalls("UpdateNote", 1, time.Second))
	// The second update stays queued while the first is in flight.
	require.Len(t, fake.Calls("UpdateNote"), 1)

	release()
	_, err = first.Wait(context.Background())
	require.NoError(t, err)
	_, err = second.Wait(context.Background())
	require.NoError(t, err)

	calls := fake.Calls("UpdateNote")
	require.Len(t, calls, 2)
	require.Equal(t, "one", *calls[0].Patch.Content)
	require.Equal(t, "two", *calls[1].Patch.Content)
	require.Equal(t, "two", fake.Notes(folder.ID)[0].Content)
}

func TestUpdateRollbackRestoresOnlyChangedFields(t *testing.T) {
	s, fake := newTestStore(t)
	folder, err := s.CreateFolder(context.Background(), "A")
	require.NoError(t, err)
	note, err := s.CreateNote(context.Background(), folder.ID, "Intro", "raw")
	require.NoError(t, err)

	fake.FailNext("UpdateNote", apperr.NetworkUnavailable("update note", context.DeadlineExceeded))
	_, err = s.UpdateNote(context.Background(), note.ID, types.NotePatch{Title: types.StringPtr("Renamed")})
	require.ErrorIs(t, err, apperr.ErrNetworkUnavailable)

	got, err := s.GetNote(note.ID)
	require.NoError(t, err)
	want := note
	want.UpdatedAt = got.UpdatedAt
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("note after rollback (-want +got):\n%s", diff)
	}
}

func TestUpdateRollbackRebasesLaterPendingUpdate(t *testing.T) {
	s, fake := newTestStore(t)
	folder, err := s.CreateFolder(context.Background(), "A")
	require.NoError(t, err)
	note, err := s.CreateNote(context.Background(), folder.ID, "Intro", "v0")
	require.NoError(t, err)

	release := fake.Hold("UpdateNote")
	fake.FailNext("UpdateNote", apperr.RemoteRejected("update note", 500, "boom"))
	fake.FailNext("UpdateNote", apperr.RemoteRejected("update note", 500, "boom again"))

	first, err := s.BeginUpdateNote(context.Background(), note.ID, types.NotePatch{
		Title:   types.StringPtr("T1"),
		Content: types.StringPtr("v1"),
	})
	require.NoError(t, err)
	second, err := s.BeginUpdateNote(context.Background(), note.ID, types.NotePatch{Content: types.StringPtr("v2")})
	require.NoError(t, err)

	release()
	_, err = first.Wait(context.Background())
	require.Error(t, err)

	// The first rollback restores the title but leaves the newer content alone.
	mid, err := s.GetNote(note.ID)
	require.NoError(t, err)
	require.Equal(t, "Intro", mid.Title)

	_, err = second.Wait(context.Background())
	require.Error(t, err)

	// The second rollback goes back to the value from before both updates.
	final, err := s.GetNote(note.ID)
	require.NoError(t, err)
	require.Equal(t, "Intro", final.Title)
	require.Equal(t, "v0", final.Content)
	require.False(t, final.Pending)
}

func TestUpdateWithoutRollbackKeepsLocalValue(t *testing.T) {
	s, fake := newTestStore(t)
	folder, err := s.CreateFolder(context.Background(), "A")
	require.NoError(t, err)
	note, err := s.CreateNote(context.Background(), folder.ID, "Intro", "")
	require.NoError(t, err)

	fake.FailNext("UpdateNote", apperr.NetworkUnavailable("update note", context.DeadlineExceeded))
	err = s.AutosaveContent(context.Background(), note.ID, "draft")
	require.ErrorIs(t, err, apperr.ErrNetworkUnavailable)

	got, err := s.GetNote(note.ID)
	require.NoError(t, err)
	require.Equal(t, "draft", got.Content)
}

func TestUpdateValidation(t *testing.T) {
	s, fake := newTestStore(t)
	folder, err := s.CreateFolder(context.Background(), "A")
	require.NoError(t, err)
	note, err := s.CreateNote(context.Background(), folder.ID, "Intro", "")
	require.NoError(t, err)

	_, err = s.UpdateNote(context.Background(), note.ID, types.NotePatch{Title: types.StringPtr(" ")})
	require.ErrorIs(t, err, apperr.ErrValidation)
	_, err = s.UpdateNote(context.Background(), "missing", types.NotePatch{Title: types.StringPtr("x")})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	got, err := s.UpdateNote(context.Background(), note.ID, types.NotePatch{})
	require.NoError(t, err)
	require.Equal(t, note.ID, got.ID)
	require.Empty(t, fake.Calls("UpdateNote"))
}

func TestUpdateQueuedBehindPendingCreate(t *testing.T) {
	s, fake := newTestStore(t)
	folder, err := s.CreateFolder(context.Background(), "A")
	require.NoError(t, err)

	release := fake.Hold("CreateNote")
	create, err := s.BeginCreateNote(context.Background(), folder.ID, "Intro", "")
	require.NoError(t, err)
	update, err := s.BeginUpdateNote(context.Background(), create.ID(), types.NotePatch{Content: types.StringPtr("Hello")})
	require.NoError(t, err)

	release()
	note, err := create.Wait(context.Background())
	require.NoError(t, err)
	_, err = update.Wait(context.Background())
	require.NoError(t, err)

	calls := fake.Calls("UpdateNote")
	require.Len(t, calls, 1)
	require.Equal(t, note.ID, calls[0].ID)

	// Local content is not overwritten by the create confirmation.
	got, err := s.GetNote(note.ID)
	require.NoError(t, err)
	require.Equal(t, "Hello", got.Content)
}

func TestDeleteNoteRejectedRestoresPosition(t *testing.T) {
	s, fake := newTestStore(t)
	rec := recordChanges(s)
	folder, err := s.CreateFolder(context.Background(), "A")
	require.NoError(t, err)
	var ids []string
	for _, title := range []string{"one", "two", "three"} {
		note, err := s.CreateNote(context.Background(), folder.ID, title, "")
		require.NoError(t, err)
		ids = append(ids, note.ID)
	}

	fake.FailNext("DeleteNote", apperr.NetworkUnavailable("delete note", context.DeadlineExceeded))
	err = s.DeleteNote(context.Background(), ids[1])
	require.ErrorIs(t, err, apperr.ErrNetworkUnavailable)

	notes, err := s.ListNotes(folder.ID)
	require.NoError(t, err)
	require.Len(t, notes, 3)
	require.Equal(t, ids[1], notes[1].ID)
	_, ok := rec.find(NoteRestored)
	require.True(t, ok)
}

func TestDeleteNoteQueuedBehindFailedCreate(t *testing.T) {
	s, fake := newTestStore(t)
	folder, err := s.CreateFolder(context.Background(), "A")
	require.NoError(t, err)

	release := fake.Hold("CreateNote")
	fake.FailNext("CreateNote", apperr.NetworkUnavailable("create note", context.DeadlineExceeded))
	create, err := s.BeginCreateNote(context.Background(), folder.ID, "Intro", "")
	require.NoError(t, err)
	del, err := s.BeginDeleteNote(context.Background(), create.ID())
	require.NoError(t, err)

	release()
	_, err = create.Wait(context.Background())
	require.Error(t, err)
	_, err = del.Wait(context.Background())
	require.NoError(t, err)
	require.Empty(t, fake.Calls("DeleteNote"))
	require.Equal(t, 0, s.Stats().Notes)
}

func TestDeleteNoteNotFoundCountsAsSuccess(t *testing.T) {
	s, fake := newTestStore(t)
	folder, err := s.CreateFolder(context.Background(), "A")
	require.NoError(t, err)
	note, err := s.CreateNote(context.Background(), folder.ID, "Intro", "")
	require.NoError(t, err)
	fake.FailNext("DeleteNote", apperr.NotFound("delete note", "Note not found"))

	require.NoError(t, s.DeleteNote(context.Background(), note.ID))
	_, err = s.GetNote(note.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestReadsReturnCopies(t *testing.T) {
	s, _ := newTestStore(t)
	folder, err := s.CreateFolder(context.Background(), "A")
	require.NoError(t, err)
	note, err := s.CreateNote(context.Background(), folder.ID, "Intro", "text")
	require.NoError(t, err)

	note.Title = "mutated"
	got, err := s.GetNote(note.ID)
	require.NoError(t, err)
	require.Equal(t, "Intro", got.Title)
}

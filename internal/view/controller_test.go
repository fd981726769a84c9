package view

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"smartnotes/internal/apperr"
	"smartnotes/internal/autosave"
	"smartnotes/internal/notes"
	"smartnotes/internal/testutil"
	"smartnotes/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestController(t *testing.T) (*Controller, *notes.Store, *testutil.FakeGateway) {
	t.Helper()
	fake := testutil.NewFakeGateway()
	fake.SetToken("token")
	store := notes.New(fake, notes.WithDefaultFolder(""))
	require.NoError(t, store.Load(context.Background()))
	ctrl := New(store)
	t.Cleanup(ctrl.Close)
	return ctrl, store, fake
}

func seedFolderWithNote(t *testing.T, store *notes.Store, folderName, title string) (types.Folder, types.Note) {
	t.Helper()
	ctx := context.Background()
	folder, err := store.CreateFolder(ctx, folderName)
	require.NoError(t, err)
	note, err := store.CreateNote(ctx, folder.ID, title, "original")
	require.NoError(t, err)
	return folder, note
}

func TestInitialStateIsHome(t *testing.T) {
	ctrl, _, _ := newTestController(t)
	require.Equal(t, State{Screen: Home}, ctrl.State())
}

func TestNavigationWalk(t *testing.T) {
	ctrl, store, _ := newTestController(t)
	folder, note := seedFolderWithNote(t, store, "Lectures", "Intro")

	require.NoError(t, ctrl.OpenFolder(folder.ID))
	require.Equal(t, State{Screen: FolderContent, FolderID: folder.ID}, ctrl.State())

	require.NoError(t, ctrl.OpenNote(note.ID))
	require.Equal(t, State{Screen: NoteView, FolderID: folder.ID, NoteID: note.ID}, ctrl.State())

	require.NoError(t, ctrl.EditCurrent())
	require.Equal(t, State{Screen: NoteEditor, FolderID: folder.ID, NoteID: note.ID, EditingID: note.ID}, ctrl.State())

	require.NoError(t, ctrl.FinishEditing())
	require.Equal(t, State{Screen: NoteView, FolderID: folder.ID, NoteID: note.ID}, ctrl.State())

	require.NoError(t, ctrl.Back())
	require.Equal(t, FolderContent, ctrl.State().Screen)
	require.NoError(t, ctrl.Back())
	require.Equal(t, State{Screen: Home}, ctrl.State())

	require.NoError(t, ctrl.OpenFolder(folder.ID))
	require.NoError(t, ctrl.OpenNote(note.ID))
	ctrl.Home()
	require.Equal(t, State{Screen: Home}, ctrl.State())
}

func TestInvalidTransitionsLeaveStateUnchanged(t *testing.T) {
	ctrl, store, _ := newTestController(t)
	folder, note := seedFolderWithNote(t, store, "Lectures", "Intro")

	require.ErrorIs(t, ctrl.Back(), apperr.ErrValidation)
	require.ErrorIs(t, ctrl.EditCurrent(), apperr.ErrValidation)
	require.ErrorIs(t, ctrl.FinishEditing(), apperr.ErrValidation)
	require.ErrorIs(t, ctrl.OpenNote(note.ID), apperr.ErrValidation)
	_, err := ctrl.NewNote(context.Background(), "Draft", "")
	require.ErrorIs(t, err, apperr.ErrValidation)
	require.Equal(t, State{Screen: Home}, ctrl.State())

	require.ErrorIs(t, ctrl.OpenFolder("missing"), apperr.ErrNotFound)
	require.Equal(t, State{Screen: Home}, ctrl.State())

	other, err := store.CreateFolder(context.Background(), "Other")
	require.NoError(t, err)
	require.NoError(t, ctrl.OpenFolder(other.ID))
	require.ErrorIs(t, ctrl.OpenNote(note.ID), apperr.ErrValidation)
	require.Equal(t, State{Screen: FolderContent, FolderID: other.ID}, ctrl.State())

	require.NoError(t, ctrl.OpenFolder(folder.ID))
	require.NoError(t, ctrl.OpenNote(note.ID))
	require.NoError(t, ctrl.EditCurrent())
	require.ErrorIs(t, ctrl.OpenNote(note.ID), apperr.ErrValidation)
	require.Equal(t, NoteEditor, ctrl.State().Screen)
}

func TestNewNoteOpensEditorBeforeConfirmation(t *testing.T) {
	ctrl, store, fake := newTestController(t)
	folder, err := store.CreateFolder(context.Background(), "Lectures")
	require.NoError(t, err)
	require.NoError(t, ctrl.OpenFolder(folder.ID))

	release := fake.Hold("CreateNote")
	pending, err := ctrl.NewNote(context.Background(), "Intro", "")
	require.NoError(t, err)
	placeholder := pending.ID()
	require.True(t, notes.IsPlaceholder(placeholder))
	require.Equal(t, State{Screen: NoteEditor, FolderID: folder.ID, NoteID: placeholder, EditingID: placeholder}, ctrl.State())

	release()
	note, err := pending.Wait(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		state := ctrl.State()
		return state.EditingID == note.ID && state.NoteID == note.ID
	}, time.Second, 5*time.Millisecond)
}

func TestRejectedNewNoteReturnsToFolder(t *testing.T) {
	ctrl, store, fake := newTestController(t)
	folder, err := store.CreateFolder(context.Background(), "Lectures")
	require.NoError(t, err)
	require.NoError(t, ctrl.OpenFolder(folder.ID))

	fake.FailNext("CreateNote", apperr.RemoteRejected("create note", 400, "bad note"))
	pending, err := ctrl.NewNote(context.Background(), "Intro", "")
	require.NoError(t, err)
	_, err = pending.Wait(context.Background())
	require.ErrorIs(t, err, apperr.ErrRemoteRejected)
	require.Eventually(t, func() bool {
		return ctrl.State() == State{Screen: FolderContent, FolderID: folder.ID}
	}, time.Second, 5*time.Millisecond)
}

func TestRemovedNoteReturnsToFolder(t *testing.T) {
	ctrl, store, _ := newTestController(t)
	folder, note := seedFolderWithNote(t, store, "Lectures", "Intro")
	require.NoError(t, ctrl.OpenFolder(folder.ID))
	require.NoError(t, ctrl.OpenNote(note.ID))

	require.NoError(t, store.DeleteNote(context.Background(), note.ID))
	require.Equal(t, State{Screen: FolderContent, FolderID: folder.ID}, ctrl.State())
}

func TestReloadDropsVanishedSelections(t *testing.T) {
	ctrl, store, fake := newTestController(t)
	folder, note := seedFolderWithNote(t, store, "Lectures", "Intro")
	require.NoError(t, ctrl.OpenFolder(folder.ID))
	require.NoError(t, ctrl.OpenNote(note.ID))

	require.NoError(t, fake.DeleteNote(context.Background(), note.ID))
	require.NoError(t, store.Refresh(context.Background()))
	require.Equal(t, State{Screen: FolderContent, FolderID: folder.ID}, ctrl.State())

	require.NoError(t, fake.DeleteFolder(context.Background(), folder.ID))
	require.NoError(t, store.Refresh(context.Background()))
	require.Equal(t, State{Screen: Home}, ctrl.State())
}

func TestSubscribeReceivesTransitions(t *testing.T) {
	ctrl, store, _ := newTestController(t)
	folder, err := store.CreateFolder(context.Background(), "Lectures")
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []Screen
	unsubscribe := ctrl.Subscribe(func(state State) {
		mu.Lock()
		seen = append(seen, state.Screen)
		mu.Unlock()
	})
	require.NoError(t, ctrl.OpenFolder(folder.ID))
	ctrl.Home()
	unsubscribe()
	require.NoError(t, ctrl.OpenFolder(folder.ID))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []Screen{FolderContent, Home}, seen)
}

// Lectures/Intro walkthrough: edit, autosave once, delete the folder.
func TestEditThenDeleteFolderScenario(t *testing.T) {
	ctx := context.Background()
	ctrl, store, fake := newTestController(t)

	folder, err := store.CreateFolder(ctx, "Lectures")
	require.NoError(t, err)
	require.NoError(t, ctrl.OpenFolder(folder.ID))

	pending, err := ctrl.NewNote(ctx, "Intro", "")
	require.NoError(t, err)
	note, err := pending.Wait(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return ctrl.State().EditingID == note.ID }, time.Second, 5*time.Millisecond)

	saver := autosave.New(store, autosave.WithQuietWindow(30*time.Millisecond))
	saver.Open(ctrl.State().EditingID, note.Content)
	for _, buffer := range []string{"H", "He", "Hel", "Hell", "Hello"} {
		saver.Edit(buffer)
	}
	require.Eventually(t, func() bool { return len(fake.Calls("UpdateNote")) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, saver.Close(ctx))
	time.Sleep(60 * time.Millisecond)

	updates := fake.Calls("UpdateNote")
	require.Len(t, updates, 1)
	require.Equal(t, note.ID, updates[0].ID)
	require.NotNil(t, updates[0].Patch.Content)
	require.Equal(t, "Hello", *updates[0].Patch.Content)

	require.NoError(t, ctrl.FinishEditing())
	require.NoError(t, store.DeleteFolder(ctx, folder.ID))

	_, err = store.GetNote(note.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.Equal(t, State{Screen: Home}, ctrl.State())
	require.Empty(t, fake.Notes(folder.ID))
}

func TestUnreachableFolderCreateLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	ctrl, store, fake := newTestController(t)

	fake.FailNext("CreateFolder", apperr.NetworkUnavailable("create folder", errors.New("connection refused")))
	release := fake.Hold("CreateFolder")
	pending, err := store.BeginCreateFolder(ctx, "X")
	require.NoError(t, err)
	require.NoError(t, ctrl.OpenFolder(pending.ID()))
	require.Equal(t, FolderContent, ctrl.State().Screen)

	release()
	_, err = pending.Wait(ctx)
	require.True(t, apperr.Is(err, apperr.KindNetworkUnavailable))
	require.Eventually(t, func() bool { return ctrl.State() == State{Screen: Home} }, time.Second, 5*time.Millisecond)

	for _, folder := range store.ListFolders() {
		require.NotEqual(t, "X", folder.Name)
	}
	require.Empty(t, fake.Folders())
}

func TestListenersSeeStatesInOrder(t *testing.T) {
	ctrl, store, _ := newTestController(t)
	folder, err := store.CreateFolder(context.Background(), "Lectures")
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []string
	record := func(name string) Listener {
		return func(state State) {
			mu.Lock()
			seen = append(seen, name+":"+string(state.Screen))
			mu.Unlock()
		}
	}
	ctrl.Subscribe(record("first"))
	// A transition made from inside a listener is delivered after the current
	// state has reached every listener.
	ctrl.Subscribe(func(state State) {
		if state.Screen == FolderContent {
			ctrl.Home()
		}
	})
	ctrl.Subscribe(record("last"))

	require.NoError(t, ctrl.OpenFolder(folder.ID))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{
		"first:" + string(FolderContent),
		"last:" + string(FolderContent),
		"first:" + string(Home),
		"last:" + string(Home),
	}, seen)
	require.Equal(t, Home, ctrl.State().Screen)
}

func TestOpenNoteWhoseIDMatchesItsFolder(t *testing.T) {
	fake := testutil.NewFakeGateway()
	fake.SetToken("token")
	fake.NumberPerTable()
	store := notes.New(fake, notes.WithDefaultFolder(""))
	require.NoError(t, store.Load(context.Background()))
	ctrl := New(store)
	t.Cleanup(ctrl.Close)

	folder, note := seedFolderWithNote(t, store, "Lectures", "Intro")
	require.Equal(t, folder.ID, note.ID)

	require.NoError(t, ctrl.OpenFolder(folder.ID))
	require.NoError(t, ctrl.OpenNote(note.ID))
	state := ctrl.State()
	require.Equal(t, NoteView, state.Screen)
	require.Equal(t, folder.ID, state.FolderID)
	require.Equal(t, note.ID, state.NoteID)
}

package app

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	xansi "github.com/charmbracelet/x/ansi"

	"smartnotes/internal/ai"
	"smartnotes/internal/autosave"
	"smartnotes/internal/gateway"
	"smartnotes/internal/notes"
	"smartnotes/internal/session"
	"smartnotes/internal/testutil"
	"smartnotes/internal/types"
	"smartnotes/internal/view"
)

type testHarness struct {
	model   *Model
	fake    *testutil.FakeGateway
	session *session.Store
	notes   *notes.Store
}

func newTestHarness(t *testing.T, signedIn bool) *testHarness {
	t.Helper()
	fake := testutil.NewFakeGateway()
	fake.AddUser("Ada", "ada@example.com", "secret")
	sess := session.New(fake)
	if signedIn {
		if _, err := sess.Login(context.Background(), types.Credentials{Email: "ada@example.com", Password: "secret"}); err != nil {
			t.Fatalf("login: %v", err)
		}
	}
	guarded := gateway.Guard(fake, sess)
	store := notes.New(guarded, notes.WithDefaultFolder(""))
	ctrl := view.New(store)
	saver := autosave.New(store, autosave.WithQuietWindow(time.Hour))
	model := NewModel(Deps{
		Session:   sess,
		Notes:     store,
		View:      ctrl,
		Autosave:  saver,
		AI:        ai.NewService(guarded, nil),
		ExportDir: t.TempDir(),
	})
	t.Cleanup(func() {
		model.events.close()
		ctrl.Close()
		_ = saver.Close(context.Background())
	})
	if signedIn {
		if err := store.Load(context.Background()); err != nil {
			t.Fatalf("load: %v", err)
		}
	}
	return &testHarness{model: model, fake: fake, session: sess, notes: store}
}

func (h *testHarness) press(msg tea.KeyMsg) tea.Cmd {
	cmd := h.model.handleKey(msg)
	h.model.syncScreen()
	return cmd
}

// run executes cmd and feeds its message back into the model.
func (h *testHarness) run(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected a command")
	}
	h.model.Update(cmd())
}

func runes(text string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)}
}

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
	keySave  = tea.KeyMsg{Type: tea.KeyCtrlS}
	keyAI    = tea.KeyMsg{Type: tea.KeyCtrlG}
)

func TestModelStartsAtLoginWithoutSession(t *testing.T) {
	h := newTestHarness(t, false)
	if h.model.mode != uiModeLogin {
		t.Fatalf("expected login mode, got %v", h.model.mode)
	}

	h.press(runes("ada@example.com"))
	h.press(keyTab)
	h.press(runes("secret"))
	cmd := h.press(keyEnter)
	if cmd == nil {
		t.Fatalf("expected login command")
	}
	msg := cmd()
	done, ok := msg.(loginDoneMsg)
	if !ok {
		t.Fatalf("expected loginDoneMsg, got %T", msg)
	}
	if done.err != nil {
		t.Fatalf("expected login to succeed, got %v", done.err)
	}
	h.model.Update(done)
	if h.model.mode != uiModeBrowse {
		t.Fatalf("expected browse mode after login, got %v", h.model.mode)
	}
	if !strings.Contains(h.model.status, "Ada") {
		t.Fatalf("expected greeting in status, got %q", h.model.status)
	}
}

func TestModelLoginFailureKeepsForm(t *testing.T) {
	h := newTestHarness(t, false)
	h.press(runes("ada@example.com"))
	h.press(keyTab)
	h.press(runes("wrong"))
	h.run(t, h.press(keyEnter))
	if h.model.mode != uiModeLogin {
		t.Fatalf("expected to stay on login, got %v", h.model.mode)
	}
	if !h.model.statusErr || !strings.Contains(h.model.status, "invalid email or password") {
		t.Fatalf("expected credential error, got %q", h.model.status)
	}
	if h.model.login.password.Value() != "" {
		t.Fatalf("expected password to be cleared")
	}
}

func TestModelCreatesFolderAndNoteThenSaves(t *testing.T) {
	h := newTestHarness(t, true)

	h.press(runes("n"))
	if h.model.mode != uiModePrompt {
		t.Fatalf("expected prompt mode, got %v", h.model.mode)
	}
	h.press(runes("Lectures"))
	h.run(t, h.press(keyEnter))
	if folders := h.notes.ListFolders(); len(folders) != 1 || folders[0].Name != "Lectures" {
		t.Fatalf("unexpected folders: %#v", folders)
	}

	h.press(keyEnter)
	if h.model.screen != view.FolderContent {
		t.Fatalf("expected folder screen, got %v", h.model.screen)
	}

	h.press(runes("n"))
	h.press(runes("Intro"))
	createCmd := h.press(keyEnter)
	if h.model.screen != view.NoteEditor {
		t.Fatalf("expected editor after new note, got %v", h.model.screen)
	}
	h.run(t, createCmd)

	h.press(runes("Hello"))
	if phase := h.model.deps.Autosave.Status().Phase; phase != autosave.Dirty {
		t.Fatalf("expected dirty buffer, got %v", phase)
	}
	h.run(t, h.press(keySave))
	updates := h.fake.Calls("UpdateNote")
	if len(updates) != 1 || updates[0].Patch.Content == nil || *updates[0].Patch.Content != "Hello" {
		t.Fatalf("unexpected updates: %#v", updates)
	}

	h.press(keyEsc)
	if h.model.screen != view.NoteView {
		t.Fatalf("expected note view after editing, got %v", h.model.screen)
	}
	if out := xansi.Strip(h.model.View()); !strings.Contains(out, "Hello") {
		t.Fatalf("expected rendered note content, got %q", out)
	}
}

func TestModelDeleteFolderNeedsConfirmation(t *testing.T) {
	h := newTestHarness(t, true)
	if _, err := h.notes.CreateFolder(context.Background(), "Scratch"); err != nil {
		t.Fatalf("create folder: %v", err)
	}

	h.press(runes("d"))
	if h.model.mode != uiModeConfirm {
		t.Fatalf("expected confirm mode, got %v", h.model.mode)
	}
	h.press(keyEsc)
	if len(h.notes.ListFolders()) != 1 {
		t.Fatalf("expected folder to survive cancel")
	}

	h.press(runes("d"))
	h.run(t, h.press(runes("y")))
	if len(h.notes.ListFolders()) != 0 {
		t.Fatalf("expected folder to be deleted")
	}
	if len(h.fake.Calls("DeleteFolder")) != 1 {
		t.Fatalf("expected one remote delete")
	}
}

func TestModelEnhanceReplacesEditorBuffer(t *testing.T) {
	h := newTestHarness(t, true)
	folder, err := h.notes.CreateFolder(context.Background(), "Lectures")
	if err != nil {
		t.Fatalf("create folder: %v", err)
	}
	note, err := h.notes.CreateNote(context.Background(), folder.ID, "Intro", "rough draft")
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	ctrl := h.model.deps.View
	if err := ctrl.OpenFolder(folder.ID); err != nil {
		t.Fatalf("open folder: %v", err)
	}
	if err := ctrl.OpenNote(note.ID); err != nil {
		t.Fatalf("open note: %v", err)
	}
	h.press(runes("e"))
	if h.model.screen != view.NoteEditor {
		t.Fatalf("expected editor, got %v", h.model.screen)
	}

	h.run(t, h.press(keyAI))
	if got := h.model.editor.Value(); got != "enhanced: rough draft" {
		t.Fatalf("unexpected editor value %q", got)
	}
	if phase := h.model.deps.Autosave.Status().Phase; phase != autosave.Dirty {
		t.Fatalf("expected enhanced text to be pending save, got %v", phase)
	}
}

func TestModelReturnsToLoginWhenSessionEnds(t *testing.T) {
	h := newTestHarness(t, true)
	h.press(runes("L"))

	msg := h.model.events.wait()()
	for {
		if _, ok := msg.(sessionChangedMsg); ok {
			break
		}
		msg = h.model.events.wait()()
	}
	h.model.Update(msg)
	if h.model.mode != uiModeLogin {
		t.Fatalf("expected login mode after logout, got %v", h.model.mode)
	}
	if h.model.deps.View.State().Screen != view.Home {
		t.Fatalf("expected view reset to home")
	}
}

func TestModelViewsAndCopiesNote(t *testing.T) {
	h := newTestHarness(t, true)
	ctx := context.Background()
	folder, err := h.notes.CreateFolder(ctx, "Lectures")
	if err != nil {
		t.Fatalf("create folder: %v", err)
	}
	note, err := h.notes.CreateNote(ctx, folder.ID, "Intro", "<p>Hello</p>")
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	if err := h.model.deps.View.OpenFolder(folder.ID); err != nil {
		t.Fatalf("open folder: %v", err)
	}
	if err := h.model.deps.View.OpenNote(note.ID); err != nil {
		t.Fatalf("open note: %v", err)
	}
	h.model.syncScreen()

	if out := xansi.Strip(h.model.View()); !strings.Contains(out, "Intro") || !strings.Contains(out, "Hello") {
		t.Fatalf("expected rendered note in view, got %q", out)
	}

	var copied string
	h.model.clipboard = noteClipboard{
		system:   func(text string) error { copied = text; return nil },
		terminal: func(string) error { t.Fatalf("unexpected terminal clipboard"); return nil },
	}
	h.press(runes("y"))
	if copied != "Intro\n\nHello" {
		t.Fatalf("unexpected clipboard text %q", copied)
	}
	if h.model.statusErr || !strings.Contains(h.model.status, `copied "Intro"`) {
		t.Fatalf("unexpected status %q", h.model.status)
	}
}

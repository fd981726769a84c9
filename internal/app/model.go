package app

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"smartnotes/internal/ai"
	"smartnotes/internal/apperr"
	"smartnotes/internal/autosave"
	"smartnotes/internal/logging"
	"smartnotes/internal/notes"
	"smartnotes/internal/session"
	"smartnotes/internal/types"
	"smartnotes/internal/view"
)

const (
	requestTimeout   = 30 * time.Second
	aiRequestTimeout = 2 * time.Minute
	shutdownWait     = 5 * time.Second
)

// Deps are the core components the terminal UI renders and drives.
type Deps struct {
	Session   *session.Store
	Notes     *notes.Store
	View      *view.Controller
	Autosave  *autosave.Coordinator
	AI        *ai.Service
	Logger    logging.Logger
	ExportDir string
}

type uiMode int

const (
	uiModeBrowse uiMode = iota
	uiModeLogin
	uiModePrompt
	uiModeConfirm
)

type promptKind int

const (
	promptNewFolder promptKind = iota
	promptNewNote
)

type Model struct {
	deps    Deps
	keys    keyMap
	hotkeys []Hotkey
	events  *eventBridge

	width  int
	height int
	mode   uiMode
	screen view.Screen

	login       loginForm
	prompt      textinput.Model
	promptKind  promptKind
	confirmText string
	confirmRun  func() tea.Cmd

	homeCursor   int
	folderCursor int

	editor        textarea.Model
	editorNoteID  string
	editorLoaded  bool
	viewer        viewport.Model
	noteView      *noteRenderer
	clipboard     noteClipboard

	status    string
	statusErr bool
	loading   bool
}

func NewModel(deps Deps) *Model {
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	keys := defaultKeyMap()
	prompt := textinput.New()
	prompt.CharLimit = 200

	editor := textarea.New()
	editor.ShowLineNumbers = false
	editor.Placeholder = "Start typing…"
	editor.CharLimit = 0

	m := &Model{
		deps:    deps,
		keys:    keys,
		hotkeys: DefaultHotkeys(keys),
		events:  newEventBridge(),
		width:   80,
		height:  24,
		screen:  view.Home,
		login:   newLoginForm(deps.Session.RememberedEmail()),
		prompt:  prompt,
		editor:  editor,
		viewer:  viewport.New(80, 18),

		noteView:  newNoteRenderer(true),
		clipboard: defaultClipboard(),
	}
	if !deps.Session.Active() {
		m.mode = uiModeLogin
	}
	m.events.subscribe(deps)
	return m
}

// Run starts the terminal UI and blocks until it exits.
func Run(ctx context.Context, deps Deps) error {
	model := NewModel(deps)
	model.noteView = newNoteRenderer(lipgloss.HasDarkBackground())
	defer model.events.close()
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.events.wait(), textinput.Blink}
	if m.mode != uiModeLogin {
		cmds = append(cmds, m.loadCmd(false))
	}
	return tea.Batch(cmds...)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
	case tea.KeyMsg:
		cmd = m.handleKey(msg)
	case storeChangedMsg:
		m.clampCursors()
		cmd = m.events.wait()
	case viewChangedMsg:
		cmd = m.events.wait()
	case sessionChangedMsg:
		if !msg.active {
			m.enterLogin(msg.reason)
		}
		cmd = m.events.wait()
	case autosaveFailedMsg:
		m.setError("autosave failed", msg.err)
		cmd = m.events.wait()
	case loginDoneMsg:
		cmd = m.finishLogin(msg)
	case loadDoneMsg:
		m.loading = false
		if msg.err != nil {
			m.setError("load failed", msg.err)
		} else if msg.refresh {
			m.setInfo("refreshed")
		}
	case opDoneMsg:
		if msg.err != nil {
			m.setError(msg.label, msg.err)
		} else if msg.success != "" {
			m.setInfo(msg.success)
		}
	case aiDoneMsg:
		m.applyEnhancement(msg)
	default:
		cmd = m.forward(msg)
	}
	return m, tea.Batch(cmd, m.syncScreen())
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	bodyHeight := max(height-4, 3)
	m.editor.SetWidth(max(width-2, 10))
	m.editor.SetHeight(bodyHeight)
	m.viewer.Width = max(width-2, 10)
	m.viewer.Height = bodyHeight
	m.prompt.Width = max(width-20, 10)
}

func (m *Model) forward(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch {
	case m.mode == uiModeLogin:
		cmd = m.login.update(msg)
	case m.mode == uiModePrompt:
		m.prompt, cmd = m.prompt.Update(msg)
	case m.screen == view.NoteEditor:
		m.editor, cmd = m.editor.Update(msg)
	}
	return cmd
}

// syncScreen follows view transitions, including ones driven by the store,
// and opens or leaves the editor accordingly.
func (m *Model) syncScreen() tea.Cmd {
	state := m.deps.View.State()
	previous := m.screen
	m.screen = state.Screen
	var cmd tea.Cmd
	if previous == view.NoteEditor && state.Screen != view.NoteEditor {
		m.editor.Blur()
		m.editorLoaded = false
		cmd = m.flushCmd()
	}
	if state.Screen == view.NoteEditor && !m.editorLoaded {
		m.openEditor(state.EditingID)
	}
	if state.Screen == view.NoteEditor {
		m.editorNoteID = state.EditingID
	}
	if previous != state.Screen {
		m.clampCursors()
	}
	return cmd
}

func (m *Model) openEditor(noteID string) {
	note, err := m.deps.Notes.GetNote(noteID)
	if err != nil {
		m.setError("open editor", err)
		return
	}
	m.editor.SetValue(note.Content)
	m.editor.Focus()
	m.editorNoteID = noteID
	m.editorLoaded = true
	m.deps.Autosave.Open(noteID, note.Content)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}
	switch m.mode {
	case uiModeLogin:
		return m.handleLoginKey(msg)
	case uiModePrompt:
		return m.handlePromptKey(msg)
	case uiModeConfirm:
		return m.handleConfirmKey(msg)
	}
	switch m.screen {
	case view.FolderContent:
		return m.handleFolderKey(msg)
	case view.NoteView:
		return m.handleNoteKey(msg)
	case view.NoteEditor:
		return m.handleEditorKey(msg)
	default:
		return m.handleHomeKey(msg)
	}
}

func (m *Model) quit() tea.Cmd {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()
	if err := m.deps.Autosave.Close(ctx); err != nil {
		m.deps.Logger.Warn("autosave_close_failed", logging.Err(err))
	}
	return tea.Quit
}

func (m *Model) setInfo(text string) {
	m.status = strings.TrimSpace(text)
	m.statusErr = false
}

func (m *Model) setError(label string, err error) {
	if err == nil {
		return
	}
	m.status = label + ": " + apperr.Message(err)
	m.statusErr = true
	m.deps.Logger.Info("ui_error", logging.F("label", label), logging.Err(err))
}

func (m *Model) loadCmd(refresh bool) tea.Cmd {
	m.loading = true
	store := m.deps.Notes
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		var err error
		if refresh {
			err = store.Refresh(ctx)
		} else {
			err = store.Load(ctx)
		}
		return loadDoneMsg{refresh: refresh, err: err}
	}
}

func (m *Model) flushCmd() tea.Cmd {
	saver := m.deps.Autosave
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return opDoneMsg{label: "save", err: saver.Flush(ctx)}
	}
}

// waitOp reports the outcome of a pending store operation.
func waitOp[T any](label, success string, op *notes.Op[T]) tea.Cmd {
	return func() tea.Msg {
		<-op.Done()
		return opDoneMsg{label: label, success: success, err: op.Err()}
	}
}

func (m *Model) currentFolders() []types.Folder {
	return m.deps.Notes.ListFolders()
}

func (m *Model) currentNotes() []types.Note {
	state := m.deps.View.State()
	if state.FolderID == "" {
		return nil
	}
	list, err := m.deps.Notes.ListNotes(state.FolderID)
	if err != nil {
		return nil
	}
	return list
}

func (m *Model) clampCursors() {
	m.homeCursor = clamp(m.homeCursor, len(m.currentFolders()))
	m.folderCursor = clamp(m.folderCursor, len(m.currentNotes()))
}

func clamp(cursor, n int) int {
	if n == 0 || cursor < 0 {
		return 0
	}
	if cursor >= n {
		return n - 1
	}
	return cursor
}

package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"smartnotes/internal/apperr"
	"smartnotes/internal/notes"
	"smartnotes/internal/types"
	"smartnotes/internal/view"
)

func (m *Model) handleHomeKey(msg tea.KeyMsg) tea.Cmd {
	folders := m.currentFolders()
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Up):
		m.homeCursor = clamp(m.homeCursor-1, len(folders))
	case key.Matches(msg, m.keys.Down):
		m.homeCursor = clamp(m.homeCursor+1, len(folders))
	case key.Matches(msg, m.keys.Open):
		if len(folders) == 0 {
			return nil
		}
		if err := m.deps.View.OpenFolder(folders[m.homeCursor].ID); err != nil {
			m.setError("open folder", err)
		}
		m.folderCursor = 0
	case key.Matches(msg, m.keys.New):
		m.startPrompt(promptNewFolder, "folder name")
	case key.Matches(msg, m.keys.Delete):
		if len(folders) == 0 {
			return nil
		}
		folder := folders[m.homeCursor]
		m.askConfirm(fmt.Sprintf("Delete folder %q and all its notes?", folder.Name), func() tea.Cmd {
			op, err := m.deps.Notes.BeginDeleteFolder(context.Background(), folder.ID)
			if err != nil {
				m.setError("delete folder", err)
				return nil
			}
			return waitOp("delete folder", "folder deleted", op)
		})
	case key.Matches(msg, m.keys.Refresh):
		return m.loadCmd(true)
	case key.Matches(msg, m.keys.Logout):
		m.deps.Session.Logout()
	}
	return nil
}

func (m *Model) handleFolderKey(msg tea.KeyMsg) tea.Cmd {
	list := m.currentNotes()
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Back):
		m.back()
	case key.Matches(msg, m.keys.Up):
		m.folderCursor = clamp(m.folderCursor-1, len(list))
	case key.Matches(msg, m.keys.Down):
		m.folderCursor = clamp(m.folderCursor+1, len(list))
	case key.Matches(msg, m.keys.Open):
		if len(list) == 0 {
			return nil
		}
		if err := m.deps.View.OpenNote(list[m.folderCursor].ID); err != nil {
			m.setError("open note", err)
		}
	case key.Matches(msg, m.keys.New):
		m.startPrompt(promptNewNote, "note title")
	case key.Matches(msg, m.keys.Delete):
		if len(list) == 0 {
			return nil
		}
		note := list[m.folderCursor]
		m.askConfirm(fmt.Sprintf("Delete note %q?", note.Title), func() tea.Cmd {
			return m.deleteNote(note.ID)
		})
	}
	return nil
}

func (m *Model) handleNoteKey(msg tea.KeyMsg) tea.Cmd {
	state := m.deps.View.State()
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Back):
		m.back()
	case key.Matches(msg, m.keys.Edit):
		if err := m.deps.View.EditCurrent(); err != nil {
			m.setError("edit", err)
		}
	case key.Matches(msg, m.keys.Copy):
		m.copyNote(state.NoteID)
	case key.Matches(msg, m.keys.Export):
		m.exportNote(state.NoteID)
	case key.Matches(msg, m.keys.Delete):
		noteID := state.NoteID
		m.askConfirm("Delete this note?", func() tea.Cmd {
			return m.deleteNote(noteID)
		})
	default:
		var cmd tea.Cmd
		m.viewer, cmd = m.viewer.Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) handleEditorKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case msg.String() == "esc":
		if err := m.deps.View.FinishEditing(); err != nil {
			m.setError("finish editing", err)
		}
		return nil
	case key.Matches(msg, m.keys.Save):
		return m.flushCmd()
	case key.Matches(msg, m.keys.Enhance):
		return m.enhanceCmd()
	}
	before := m.editor.Value()
	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	if after := m.editor.Value(); after != before {
		m.deps.Autosave.Edit(after)
	}
	return cmd
}

func (m *Model) handlePromptKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.mode = uiModeBrowse
		m.prompt.Blur()
		return nil
	case "enter":
		value := strings.TrimSpace(m.prompt.Value())
		m.mode = uiModeBrowse
		m.prompt.Blur()
		return m.submitPrompt(value)
	}
	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return cmd
}

func (m *Model) handleConfirmKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		run := m.confirmRun
		m.mode = uiModeBrowse
		m.confirmRun = nil
		if run != nil {
			return run()
		}
	case key.Matches(msg, m.keys.Cancel):
		m.mode = uiModeBrowse
		m.confirmRun = nil
	}
	return nil
}

func (m *Model) startPrompt(kind promptKind, placeholder string) {
	m.mode = uiModePrompt
	m.promptKind = kind
	m.prompt.SetValue("")
	m.prompt.Placeholder = placeholder
	m.prompt.Focus()
}

func (m *Model) askConfirm(text string, run func() tea.Cmd) {
	m.mode = uiModeConfirm
	m.confirmText = text
	m.confirmRun = run
}

func (m *Model) submitPrompt(value string) tea.Cmd {
	ctx := context.Background()
	switch m.promptKind {
	case promptNewFolder:
		op, err := m.deps.Notes.BeginCreateFolder(ctx, value)
		if err != nil {
			m.setError("create folder", err)
			return nil
		}
		return waitOp("create folder", "folder created", op)
	case promptNewNote:
		op, err := m.deps.View.NewNote(ctx, value, "")
		if err != nil {
			m.setError("create note", err)
			return nil
		}
		return waitOp("create note", "", op)
	}
	return nil
}

func (m *Model) back() {
	if err := m.deps.View.Back(); err != nil {
		m.setError("back", err)
	}
}

func (m *Model) deleteNote(id string) tea.Cmd {
	op, err := m.deps.Notes.BeginDeleteNote(context.Background(), id)
	if err != nil {
		m.setError("delete note", err)
		return nil
	}
	return waitOp("delete note", "note deleted", op)
}

func (m *Model) exportNote(id string) {
	name, data, err := m.deps.Notes.ExportNote(id, notes.FormatMarkdown)
	if err != nil {
		m.setError("export", err)
		return
	}
	dir := m.deps.ExportDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		m.setError("export", err)
		return
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		m.setError("export", err)
		return
	}
	m.setInfo("exported to " + path)
}

func (m *Model) enhanceCmd() tea.Cmd {
	if m.deps.AI == nil {
		m.setError("AI enhance", apperr.RemoteRejected("enhance text", 0, "AI processing is not configured"))
		return nil
	}
	text := notes.PlainText(m.editor.Value())
	noteID := m.editorNoteID
	service := m.deps.AI
	m.setInfo("enhancing…")
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), aiRequestTimeout)
		defer cancel()
		result, err := service.Enhance(ctx, text, types.AIOperationEnhance)
		return aiDoneMsg{noteID: noteID, text: result.ProcessedText, err: err}
	}
}

func (m *Model) applyEnhancement(msg aiDoneMsg) {
	if msg.err != nil {
		m.setError("AI enhance", msg.err)
		return
	}
	current, errCurrent := m.deps.Notes.GetNote(m.editorNoteID)
	target, errTarget := m.deps.Notes.GetNote(msg.noteID)
	if m.screen != view.NoteEditor || !m.editorLoaded || errCurrent != nil || errTarget != nil || current.ID != target.ID {
		m.setInfo("enhancement discarded: editor closed")
		return
	}
	m.editor.SetValue(msg.text)
	m.deps.Autosave.Edit(msg.text)
	m.setInfo("note enhanced")
}

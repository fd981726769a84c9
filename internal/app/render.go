package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"smartnotes/internal/autosave"
	"smartnotes/internal/types"
	"smartnotes/internal/view"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func (m *Model) View() string {
	var body string
	switch {
	case m.mode == uiModeLogin:
		body = m.renderLogin()
	case m.screen == view.FolderContent:
		body = m.renderFolder()
	case m.screen == view.NoteView:
		body = m.renderNote()
	case m.screen == view.NoteEditor:
		body = m.renderEditor()
	default:
		body = m.renderHome()
	}
	switch m.mode {
	case uiModePrompt:
		body += "\n\n" + m.prompt.View()
	case uiModeConfirm:
		body += "\n\n" + boxStyle.Render(m.confirmText+"  [y/n]")
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderFooter())
}

func (m *Model) renderHeader() string {
	title := "Smart Notes"
	if current, ok := m.deps.Session.Current(); ok {
		name := current.User.Name
		if name == "" {
			name = current.User.Email
		}
		title += " · " + name
	}
	if m.mode != uiModeLogin {
		stats := m.deps.Notes.Stats()
		title += dimStyle.Render(fmt.Sprintf("  %d folders, %d notes", stats.Folders, stats.Notes))
		if pending := m.deps.Notes.Pending(); pending > 0 {
			title += dimStyle.Render(fmt.Sprintf(", %d syncing", pending))
		}
	}
	return headerStyle.Render(title)
}

func (m *Model) renderFooter() string {
	lines := []string{}
	if m.status != "" {
		style := infoStyle
		if m.statusErr {
			style = errorStyle
		}
		lines = append(lines, style.Render(runewidth.Truncate(m.status, m.width, "…")))
	}
	lines = append(lines, dimStyle.Render(renderHotkeys(m.hotkeys, m.activeHotkeyContext(), m.width)))
	return strings.Join(lines, "\n")
}

func (m *Model) renderLogin() string {
	remember := "[ ]"
	if m.login.remember {
		remember = "[x]"
	}
	rows := []string{
		"Sign in",
		"",
		m.login.email.View(),
		m.login.password.View(),
		"",
		remember + " remember me",
	}
	return boxStyle.Render(strings.Join(rows, "\n"))
}

func (m *Model) renderHome() string {
	folders := m.currentFolders()
	if m.loading && len(folders) == 0 {
		return dimStyle.Render("loading…")
	}
	if len(folders) == 0 {
		return dimStyle.Render("No folders yet. Press n to create one.")
	}
	rows := make([]string, 0, len(folders))
	for i, folder := range folders {
		rows = append(rows, m.listRow(i == m.homeCursor, folderLabel(folder), fmt.Sprintf("%d", folder.NoteCount)))
	}
	return strings.Join(rows, "\n")
}

func (m *Model) renderFolder() string {
	state := m.deps.View.State()
	folder, err := m.deps.Notes.GetFolder(state.FolderID)
	if err != nil {
		return dimStyle.Render("folder unavailable")
	}
	rows := []string{headerStyle.Render(folder.Name), ""}
	list := m.currentNotes()
	if len(list) == 0 {
		rows = append(rows, dimStyle.Render("No notes yet. Press n to create one."))
	}
	for i, note := range list {
		rows = append(rows, m.listRow(i == m.folderCursor, noteLabel(note), note.UpdatedAt.Local().Format("Jan 2 15:04")))
	}
	return strings.Join(rows, "\n")
}

func (m *Model) renderNote() string {
	state := m.deps.View.State()
	note, err := m.deps.Notes.GetNote(state.NoteID)
	if err != nil {
		return dimStyle.Render("note unavailable")
	}
	if doc, changed := m.noteView.Render(note, m.viewer.Width); changed {
		m.viewer.SetContent(doc)
		m.viewer.GotoTop()
	}
	return m.viewer.View()
}

func (m *Model) renderEditor() string {
	title := "editing"
	if note, err := m.deps.Notes.GetNote(m.editorNoteID); err == nil {
		title = note.Title
	}
	status := m.deps.Autosave.Status()
	return headerStyle.Render(title) + "  " + dimStyle.Render(autosaveLabel(status)) + "\n" + m.editor.View()
}

func (m *Model) listRow(selected bool, label, detail string) string {
	width := max(m.width-len(detail)-6, 8)
	label = runewidth.FillRight(runewidth.Truncate(label, width, "…"), width)
	row := " " + label + "  " + detail
	if selected {
		return selectedStyle.Render(row)
	}
	return row
}

func folderLabel(folder types.Folder) string {
	if folder.Pending {
		return folder.Name + " (saving)"
	}
	return folder.Name
}

func noteLabel(note types.Note) string {
	if note.Pending {
		return note.Title + " (saving)"
	}
	return note.Title
}

func autosaveLabel(status autosave.Status) string {
	switch status.Phase {
	case autosave.Saving:
		return "saving…"
	case autosave.Dirty:
		return "unsaved changes"
	case autosave.Failed:
		return "save failed"
	case autosave.Saved:
		if !status.SavedAt.IsZero() {
			return "saved " + status.SavedAt.Local().Format("15:04:05")
		}
		return "saved"
	}
	return ""
}

package app

import (
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/mattn/go-runewidth"

	"smartnotes/internal/view"
)

type HotkeyContext int

const (
	HotkeyGlobal HotkeyContext = iota
	HotkeyLogin
	HotkeyHome
	HotkeyFolder
	HotkeyNote
	HotkeyEditor
	HotkeyPrompt
	HotkeyConfirm
)

type keyMap struct {
	Quit      key.Binding
	Up        key.Binding
	Down      key.Binding
	Open      key.Binding
	Back      key.Binding
	New       key.Binding
	Delete    key.Binding
	Refresh   key.Binding
	Logout    key.Binding
	Edit      key.Binding
	Copy      key.Binding
	Export    key.Binding
	Save      key.Binding
	Enhance   key.Binding
	NextField key.Binding
	Remember  key.Binding
	Submit    key.Binding
	Confirm   key.Binding
	Cancel    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:      key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("j/k/↑/↓", "move")),
		Down:      key.NewBinding(key.WithKeys("down", "j")),
		Open:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Back:      key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("esc", "back")),
		New:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new")),
		Delete:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Logout:    key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "log out")),
		Edit:      key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Copy:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy")),
		Export:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "export")),
		Save:      key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
		Enhance:   key.NewBinding(key.WithKeys("ctrl+g"), key.WithHelp("ctrl+g", "AI enhance")),
		NextField: key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "next field")),
		Remember:  key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "remember me")),
		Submit:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
		Confirm:   key.NewBinding(key.WithKeys("y", "enter"), key.WithHelp("y", "confirm")),
		Cancel:    key.NewBinding(key.WithKeys("esc", "n"), key.WithHelp("esc", "cancel")),
	}
}

type Hotkey struct {
	Binding  key.Binding
	Context  HotkeyContext
	Priority int
}

func DefaultHotkeys(keys keyMap) []Hotkey {
	return []Hotkey{
		{Binding: keys.Quit, Context: HotkeyHome, Priority: 90},
		{Binding: keys.Up, Context: HotkeyHome, Priority: 40},
		{Binding: keys.Open, Context: HotkeyHome, Priority: 10},
		{Binding: keys.New, Context: HotkeyHome, Priority: 20},
		{Binding: keys.Delete, Context: HotkeyHome, Priority: 21},
		{Binding: keys.Refresh, Context: HotkeyHome, Priority: 50},
		{Binding: keys.Logout, Context: HotkeyHome, Priority: 80},
		{Binding: keys.Up, Context: HotkeyFolder, Priority: 40},
		{Binding: keys.Open, Context: HotkeyFolder, Priority: 10},
		{Binding: keys.New, Context: HotkeyFolder, Priority: 20},
		{Binding: keys.Delete, Context: HotkeyFolder, Priority: 21},
		{Binding: keys.Back, Context: HotkeyFolder, Priority: 60},
		{Binding: keys.Edit, Context: HotkeyNote, Priority: 10},
		{Binding: keys.Copy, Context: HotkeyNote, Priority: 20},
		{Binding: keys.Export, Context: HotkeyNote, Priority: 21},
		{Binding: keys.Back, Context: HotkeyNote, Priority: 60},
		{Binding: keys.Save, Context: HotkeyEditor, Priority: 10},
		{Binding: keys.Enhance, Context: HotkeyEditor, Priority: 20},
		{Binding: keys.Back, Context: HotkeyEditor, Priority: 60},
		{Binding: keys.NextField, Context: HotkeyLogin, Priority: 10},
		{Binding: keys.Remember, Context: HotkeyLogin, Priority: 20},
		{Binding: keys.Submit, Context: HotkeyLogin, Priority: 30},
		{Binding: keys.Submit, Context: HotkeyPrompt, Priority: 10},
		{Binding: keys.Cancel, Context: HotkeyPrompt, Priority: 20},
		{Binding: keys.Confirm, Context: HotkeyConfirm, Priority: 10},
		{Binding: keys.Cancel, Context: HotkeyConfirm, Priority: 20},
	}
}

func (m *Model) activeHotkeyContext() HotkeyContext {
	switch m.mode {
	case uiModeLogin:
		return HotkeyLogin
	case uiModePrompt:
		return HotkeyPrompt
	case uiModeConfirm:
		return HotkeyConfirm
	}
	switch m.screen {
	case view.FolderContent:
		return HotkeyFolder
	case view.NoteView:
		return HotkeyNote
	case view.NoteEditor:
		return HotkeyEditor
	}
	return HotkeyHome
}

func renderHotkeys(hotkeys []Hotkey, context HotkeyContext, width int) string {
	active := make([]Hotkey, 0, len(hotkeys))
	for _, hotkey := range hotkeys {
		if hotkey.Context == context || hotkey.Context == HotkeyGlobal {
			active = append(active, hotkey)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Priority < active[j].Priority })
	parts := make([]string, 0, len(active))
	for _, hotkey := range active {
		help := hotkey.Binding.Help()
		if help.Key == "" {
			continue
		}
		parts = append(parts, help.Key+" "+help.Desc)
	}
	line := strings.Join(parts, " • ")
	if width > 0 {
		line = runewidth.Truncate(line, width, "…")
	}
	return line
}

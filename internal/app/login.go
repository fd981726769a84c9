package app

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"smartnotes/internal/types"
)

type loginForm struct {
	email    textinput.Model
	password textinput.Model
	focus    int
	remember bool
	busy     bool
}

func newLoginForm(rememberedEmail string) loginForm {
	email := textinput.New()
	email.Placeholder = "email"
	email.CharLimit = 254
	email.SetValue(rememberedEmail)

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	form := loginForm{email: email, password: password, remember: rememberedEmail != ""}
	if rememberedEmail != "" {
		form.focus = 1
	}
	form.applyFocus()
	return form
}

func (f *loginForm) applyFocus() {
	if f.focus == 0 {
		f.email.Focus()
		f.password.Blur()
		return
	}
	f.email.Blur()
	f.password.Focus()
}

func (f *loginForm) next() {
	f.focus = (f.focus + 1) % 2
	f.applyFocus()
}

func (f *loginForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if f.focus == 0 {
		f.email, cmd = f.email.Update(msg)
	} else {
		f.password, cmd = f.password.Update(msg)
	}
	return cmd
}

func (f loginForm) credentials() types.Credentials {
	return types.Credentials{
		Email:    strings.TrimSpace(f.email.Value()),
		Password: f.password.Value(),
		Remember: f.remember,
	}
}

func (m *Model) enterLogin(reason string) {
	m.mode = uiModeLogin
	m.login = newLoginForm(m.deps.Session.RememberedEmail())
	m.deps.View.Home()
	if reason != "" {
		m.setInfo(reason)
	}
}

func (m *Model) handleLoginKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case m.login.busy:
		return nil
	case msg.String() == "esc":
		return m.quit()
	case msg.String() == "tab" || msg.String() == "shift+tab":
		m.login.next()
		return nil
	case msg.String() == "ctrl+r":
		m.login.remember = !m.login.remember
		return nil
	case msg.String() == "enter":
		if m.login.focus == 0 {
			m.login.next()
			return nil
		}
		m.login.busy = true
		m.setInfo("signing in…")
		creds := m.login.credentials()
		store := m.deps.Session
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			session, err := store.Login(ctx, creds)
			return loginDoneMsg{session: session, err: err}
		}
	}
	return m.login.update(msg)
}

func (m *Model) finishLogin(msg loginDoneMsg) tea.Cmd {
	m.login.busy = false
	if msg.err != nil {
		m.login.password.SetValue("")
		m.setError("login failed", msg.err)
		return nil
	}
	m.mode = uiModeBrowse
	name := msg.session.User.Name
	if name == "" {
		name = msg.session.User.Email
	}
	m.setInfo("signed in as " + name)
	return m.loadCmd(false)
}

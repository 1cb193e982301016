package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/HE-Arc/Mind-vs-Wild/internal/session"
	"github.com/HE-Arc/Mind-vs-Wild/pkg/client"
)

type authMode int

const (
	authLogin authMode = iota
	authRegister
)

// Register form field order.
const (
	regUsername = iota
	regEmail
	regFirstName
	regLastName
	regPassword
	regConfirm
)

type loginDoneMsg struct {
	err error
}

func (m loginDoneMsg) failure() error { return m.err }

type registerDoneMsg struct {
	username string
	err      error
}

func (m registerDoneMsg) failure() error { return m.err }

// authModel backs both the login and the register views.
type authModel struct {
	sess *session.Manager
	mode authMode
	form form
}

func newLoginModel(sess *session.Manager, username string) authModel {
	f := newForm("Log in",
		fieldSpec{label: "username", placeholder: "your username"},
		fieldSpec{label: "password", secret: true},
	)
	if username != "" {
		f.inputs[0].SetValue(username)
		f = f.setFocus(1)
	}
	return authModel{sess: sess, mode: authLogin, form: f}
}

func newRegisterModel(sess *session.Manager) authModel {
	f := newForm("Create an account",
		fieldSpec{label: "username"},
		fieldSpec{label: "email", placeholder: "you@example.com"},
		fieldSpec{label: "first name", placeholder: "optional"},
		fieldSpec{label: "last name", placeholder: "optional"},
		fieldSpec{label: "password", secret: true},
		fieldSpec{label: "confirm", secret: true},
	)
	return authModel{sess: sess, mode: authRegister, form: f}
}

func (m authModel) Update(msg tea.Msg) (authModel, tea.Cmd) {
	switch msg := msg.(type) {
	case loginDoneMsg:
		m.form.busy = false
		if msg.err != nil {
			m.form.err = describeAuthError(msg.err)
		}
		return m, nil

	case registerDoneMsg:
		m.form.busy = false
		if msg.err != nil {
			m.form.err = describeAuthError(msg.err)
		}
		return m, nil

	case tea.KeyMsg:
		f, cmd, submitted := m.form.Update(msg)
		m.form = f
		if submitted {
			return m.submit()
		}
		return m, cmd
	}
	return m, nil
}

func (m authModel) submit() (authModel, tea.Cmd) {
	sess := m.sess
	if m.mode == authLogin {
		username, password := m.form.value(0), m.form.raw(1)
		if username == "" || password == "" {
			m.form.err = "username and password are required"
			return m, nil
		}
		m.form.busy = true
		return m, func() tea.Msg {
			return loginDoneMsg{err: sess.Login(context.Background(), username, password)}
		}
	}

	req := client.RegisterRequest{
		Username:  m.form.value(regUsername),
		Email:     m.form.value(regEmail),
		FirstName: m.form.value(regFirstName),
		LastName:  m.form.value(regLastName),
		Password:  m.form.raw(regPassword),
	}
	switch {
	case req.Username == "" || req.Password == "" || req.Email == "":
		m.form.err = "username, email and password are required"
		return m, nil
	case req.Password != m.form.raw(regConfirm):
		m.form.err = "passwords do not match"
		return m, nil
	}
	m.form.busy = true
	return m, func() tea.Msg {
		return registerDoneMsg{username: req.Username, err: sess.Register(context.Background(), req)}
	}
}

func (m authModel) View() string {
	return m.form.View()
}

func describeAuthError(err error) string {
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		return "invalid username or password"
	case client.IsTransport(err):
		return "cannot reach the server"
	}
	if msg := client.Message(err); msg != "" {
		return msg
	}
	return err.Error()
}

package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/HE-Arc/Mind-vs-Wild/internal/guard"
	"github.com/HE-Arc/Mind-vs-Wild/internal/invite"
	"github.com/HE-Arc/Mind-vs-Wild/pkg/domain"
)

type inviteAcceptedMsg struct {
	token string
	group domain.Group
	err   error
}

// inviteModel serves /groups/accept-invite/{token}.
type inviteModel struct {
	resolver *invite.Resolver
	token    string
	busy     bool
	joined   *domain.Group
	err      error
}

func newInviteModel(r *invite.Resolver) inviteModel {
	return inviteModel{resolver: r}
}

func (m inviteModel) open(token string) inviteModel {
	return inviteModel{resolver: m.resolver, token: token}
}

func (m inviteModel) accept() tea.Cmd {
	r, token := m.resolver, m.token
	return func() tea.Msg {
		g, err := r.AcceptInvite(context.Background(), token)
		return inviteAcceptedMsg{token: token, group: g, err: err}
	}
}

func (m inviteModel) Update(msg tea.Msg) (inviteModel, tea.Cmd) {
	switch msg := msg.(type) {
	case inviteAcceptedMsg:
		if msg.token != m.token {
			return m, nil
		}
		m.busy = false
		var lr *invite.LoginRequiredError
		if errors.As(msg.err, &lr) {
			return m, navigateTo(guard.LoginURL(lr.ReturnTo))
		}
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		g := msg.group
		m.joined = &g
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Open):
			if m.joined != nil {
				return m, navigateTo(guard.Group(m.joined.ID))
			}
			if m.busy {
				return m, nil
			}
			m.busy = true
			m.err = nil
			return m, m.accept()
		case key.Matches(msg, keys.Back):
			return m, navigateTo(guard.Groups)
		}
	}
	return m, nil
}

func (m inviteModel) View() string {
	var b strings.Builder
	b.WriteString("  " + titleStyle.Render("Group invitation") + "\n\n")
	b.WriteString("  " + dimStyle.Render("token ") + accentStyle.Render(truncStr(m.token, 48)) + "\n\n")
	switch {
	case m.joined != nil:
		b.WriteString("  " + flashStyle.Render("you joined "+m.joined.Name) + "\n")
		b.WriteString("  " + dimStyle.Render("press enter to open the group") + "\n")
	case m.busy:
		b.WriteString("  " + dimStyle.Render("joining…") + "\n")
	case m.err != nil:
		b.WriteString("  " + errorStyle.Render(describeInviteError(m.err)) + "\n")
	default:
		b.WriteString("  " + normalStyle.Render("press enter to join this group") + "\n")
	}
	return b.String()
}

func (m inviteModel) helpKeys() string {
	return helpLine(keys.Open, keys.Back)
}

func describeInviteError(err error) string {
	switch {
	case errors.Is(err, invite.ErrNotFound):
		return "this invitation does not exist"
	case errors.Is(err, invite.ErrUnusable):
		return "this invitation has expired or was already used"
	case errors.Is(err, invite.ErrNotForYou):
		return "this invitation is addressed to someone else"
	case errors.Is(err, invite.ErrAlreadyMember):
		return "you are already a member of this group"
	case errors.Is(err, invite.ErrEmptyToken):
		return "the invitation link is incomplete"
	}
	return errorText(err)
}

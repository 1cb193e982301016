package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/HE-Arc/Mind-vs-Wild/internal/browser"
	"github.com/HE-Arc/Mind-vs-Wild/internal/directory"
	"github.com/HE-Arc/Mind-vs-Wild/internal/guard"
	"github.com/HE-Arc/Mind-vs-Wild/pkg/client"
	"github.com/HE-Arc/Mind-vs-Wild/pkg/domain"
)

type groupsMode int

const (
	groupsBrowse groupsMode = iota
	groupsCreate
	groupsInviteUser
)

type groupsLoadedMsg struct {
	groups []domain.Group
	err    error
}

func (m groupsLoadedMsg) failure() error { return m.err }

type groupLoadedMsg struct {
	group domain.Group
	err   error
}

func (m groupLoadedMsg) failure() error { return m.err }

type groupCreatedMsg struct {
	group domain.Group
	err   error
}

func (m groupCreatedMsg) failure() error { return m.err }

type inviteMintedMsg struct {
	grant domain.InviteGrant
	err   error
}

func (m inviteMintedMsg) failure() error { return m.err }

type groupLeftMsg struct {
	id  int64
	err error
}

func (m groupLeftMsg) failure() error { return m.err }

// groupsModel serves /groups and /groups/{id}.
type groupsModel struct {
	dir      *directory.Directory
	frontend string

	detailID int64 // 0 on the list view
	groups   []domain.Group
	detail   *domain.Group
	cursor   int
	loading  bool

	mode  groupsMode
	form  form
	grant *domain.InviteGrant

	status string
	err    error
}

func newGroupsModel(dir *directory.Directory, frontend string) groupsModel {
	return groupsModel{dir: dir, frontend: frontend}
}

// inviteLink is the share link of the last minted invite.
func (m groupsModel) inviteLink() string {
	if m.grant == nil {
		return ""
	}
	return guard.InviteLink(m.frontend, m.grant.Token, m.grant.URL)
}

// open enters the list (id == 0) or the detail view of a group.
func (m groupsModel) open(id int64) (groupsModel, tea.Cmd) {
	m.detailID = id
	m.mode = groupsBrowse
	m.err = nil
	m.status = ""
	m.grant = nil
	m.loading = true
	if id == 0 {
		m.groups = m.dir.Groups()
		return m, m.fetchGroups()
	}
	m.detail = nil
	if g, ok := m.dir.Group(id); ok {
		m.detail = &g
	}
	return m, m.fetchGroup(id)
}

func (m groupsModel) editing() bool {
	return m.mode != groupsBrowse
}

func (m groupsModel) fetchGroups() tea.Cmd {
	dir := m.dir
	return func() tea.Msg {
		groups, err := dir.FetchGroups(context.Background())
		return groupsLoadedMsg{groups: groups, err: err}
	}
}

func (m groupsModel) fetchGroup(id int64) tea.Cmd {
	dir := m.dir
	return func() tea.Msg {
		g, err := dir.FetchGroup(context.Background(), id)
		return groupLoadedMsg{group: g, err: err}
	}
}

// selected returns the group actions apply to: the detail group, or the one
// under the cursor.
func (m groupsModel) selected() (domain.Group, bool) {
	if m.detailID != 0 {
		if m.detail == nil {
			return domain.Group{}, false
		}
		return *m.detail, true
	}
	if m.cursor < 0 || m.cursor >= len(m.groups) {
		return domain.Group{}, false
	}
	return m.groups[m.cursor], true
}

func (m groupsModel) Update(msg tea.Msg) (groupsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case groupsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.groups = msg.groups
		if m.cursor >= len(m.groups) {
			m.cursor = max(len(m.groups)-1, 0)
		}
		return m, nil

	case groupLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		if msg.group.ID == m.detailID {
			g := msg.group
			m.detail = &g
		}
		return m, nil

	case groupCreatedMsg:
		m.form.busy = false
		if msg.err != nil {
			m.form.err = errorText(msg.err)
			return m, nil
		}
		m.mode = groupsBrowse
		m.groups = m.dir.Groups()
		m.cursor = len(m.groups) - 1
		m.status = fmt.Sprintf("group %q created", msg.group.Name)
		return m, nil

	case inviteMintedMsg:
		m.form.busy = false
		if msg.err != nil {
			if m.mode == groupsInviteUser {
				m.form.err = errorText(msg.err)
				return m, nil
			}
			m.err = msg.err
			return m, nil
		}
		m.mode = groupsBrowse
		grant := msg.grant
		m.grant = &grant
		m.status = "invite ready"
		return m, nil

	case groupLeftMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.status = "left the group"
		m.groups = m.dir.Groups()
		if m.cursor >= len(m.groups) {
			m.cursor = max(len(m.groups)-1, 0)
		}
		if m.detailID == msg.id {
			return m, navigateTo(guard.Groups)
		}
		return m, nil

	case tea.KeyMsg:
		if m.editing() {
			return m.updateForm(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m groupsModel) updateForm(msg tea.KeyMsg) (groupsModel, tea.Cmd) {
	if key.Matches(msg, keys.Back) {
		m.mode = groupsBrowse
		return m, nil
	}
	f, cmd, submitted := m.form.Update(msg)
	m.form = f
	if !submitted {
		return m, cmd
	}
	dir := m.dir
	switch m.mode {
	case groupsCreate:
		name, desc := m.form.value(0), m.form.value(1)
		if name == "" {
			m.form.err = "a group needs a name"
			return m, nil
		}
		m.form.busy = true
		return m, func() tea.Msg {
			g, err := dir.CreateGroup(context.Background(), name, desc)
			return groupCreatedMsg{group: g, err: err}
		}
	case groupsInviteUser:
		g, ok := m.selected()
		username := m.form.value(0)
		if !ok || username == "" {
			m.form.err = "enter a username"
			return m, nil
		}
		m.form.busy = true
		return m, mintInvite(dir, g.ID, username)
	}
	return m, nil
}

func (m groupsModel) updateKeys(msg tea.KeyMsg) (groupsModel, tea.Cmd) {
	m.status = ""
	m.err = nil
	switch {
	case key.Matches(msg, keys.Up):
		if m.detailID == 0 && m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, keys.Down):
		if m.detailID == 0 && m.cursor < len(m.groups)-1 {
			m.cursor++
		}
	case key.Matches(msg, keys.Open):
		if g, ok := m.selected(); ok && m.detailID == 0 {
			return m, navigateTo(guard.Group(g.ID))
		}
	case key.Matches(msg, keys.Back):
		if m.detailID != 0 {
			return m, navigateTo(guard.Groups)
		}
	case key.Matches(msg, keys.Refresh):
		if m.detailID != 0 {
			m.loading = true
			return m, m.fetchGroup(m.detailID)
		}
		m.loading = true
		return m, m.fetchGroups()
	case key.Matches(msg, keys.New):
		m.mode = groupsCreate
		m.form = newForm("New group",
			fieldSpec{label: "name"},
			fieldSpec{label: "description", placeholder: "optional"},
		)
	case key.Matches(msg, keys.Invite):
		if g, ok := m.selected(); ok {
			m.status = "minting invite…"
			return m, mintInvite(m.dir, g.ID, "")
		}
	case key.Matches(msg, keys.InviteUser):
		if _, ok := m.selected(); ok {
			m.mode = groupsInviteUser
			m.form = newForm("Invite a user", fieldSpec{label: "username"})
		}
	case key.Matches(msg, keys.Copy):
		if m.grant != nil {
			if err := clipboard.WriteAll(m.inviteLink()); err != nil {
				m.err = err
			} else {
				m.status = "invite link copied"
			}
		}
	case key.Matches(msg, keys.Browse):
		if m.grant != nil {
			if err := browser.Open(m.inviteLink()); err != nil {
				m.err = err
			}
		}
	case key.Matches(msg, keys.Leave):
		if g, ok := m.selected(); ok {
			dir := m.dir
			return m, func() tea.Msg {
				return groupLeftMsg{id: g.ID, err: dir.LeaveGroup(context.Background(), g.ID)}
			}
		}
	}
	return m, nil
}

func mintInvite(dir *directory.Directory, groupID int64, username string) tea.Cmd {
	return func() tea.Msg {
		grant, err := dir.InviteUser(context.Background(), groupID, username)
		return inviteMintedMsg{grant: grant, err: err}
	}
}

func (m groupsModel) View() string {
	if m.editing() {
		return m.form.View()
	}
	var b strings.Builder
	if m.detailID != 0 {
		m.viewDetail(&b)
	} else {
		m.viewList(&b)
	}
	if m.grant != nil {
		b.WriteString("\n  " + sectionHeaderStyle.Render("invite link") + "\n")
		b.WriteString("  " + accentStyle.Render(m.inviteLink()) + "\n")
		meta := "expires " + m.grant.ExpiresAt.Local().Format("2006-01-02 15:04")
		if m.grant.InvitedUser != nil {
			meta += " · for " + *m.grant.InvitedUser
		}
		b.WriteString("  " + metaStyle.Render(meta) + "\n")
	}
	switch {
	case m.err != nil:
		b.WriteString("\n  " + errorStyle.Render(errorText(m.err)) + "\n")
	case m.status != "":
		b.WriteString("\n  " + flashStyle.Render(m.status) + "\n")
	}
	return b.String()
}

func (m groupsModel) viewList(b *strings.Builder) {
	b.WriteString("  " + titleStyle.Render("Your groups") + "\n\n")
	if len(m.groups) == 0 {
		if m.loading {
			b.WriteString("  " + dimStyle.Render("loading…") + "\n")
		} else {
			b.WriteString("  " + dimStyle.Render("no groups yet, press n to create one") + "\n")
		}
		return
	}
	for i, g := range m.groups {
		line := fmt.Sprintf("%-28s %s", truncStr(g.Name, 28), metaStyle.Render(fmt.Sprintf("%d members", len(g.Members))))
		if i == m.cursor {
			b.WriteString(selectedRowBg.Render("  > "+selectedStyle.Render(line)) + "\n")
		} else {
			b.WriteString("    " + normalStyle.Render(line) + "\n")
		}
	}
}

func (m groupsModel) viewDetail(b *strings.Builder) {
	if m.detail == nil {
		if m.loading {
			b.WriteString("  " + dimStyle.Render("loading…") + "\n")
		}
		return
	}
	g := m.detail
	b.WriteString("  " + titleStyle.Render(g.Name) + "\n")
	if g.Description != "" {
		b.WriteString("  " + dimStyle.Render(g.Description) + "\n")
	}
	if g.CreatedBy != nil {
		b.WriteString("  " + metaStyle.Render("created by "+g.CreatedBy.Username+" "+formatTime(g.CreatedAt)) + "\n")
	}
	b.WriteString("\n  " + sectionHeaderStyle.Render("members") + "\n")
	for _, mem := range g.Members {
		line := "    " + normalStyle.Render(mem.User.DisplayName())
		if mem.IsAdmin {
			line += " " + adminStyle.Render("admin")
		}
		b.WriteString(line + "\n")
	}
}

func (m groupsModel) helpKeys() string {
	if m.editing() {
		return helpLine(keys.NextField, keys.Open, keys.Back)
	}
	if m.detailID != 0 {
		return helpLine(keys.Invite, keys.InviteUser, keys.Copy, keys.Browse, keys.Leave, keys.Back)
	}
	return helpLine(keys.Up, keys.Down, keys.Open, keys.New, keys.Invite, keys.Leave, keys.Refresh)
}

// errorText renders an error for the status line.
func errorText(err error) string {
	switch {
	case client.IsTransport(err):
		return "cannot reach the server"
	case client.Message(err) != "":
		return client.Message(err)
	}
	return err.Error()
}

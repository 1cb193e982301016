package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/HE-Arc/Mind-vs-Wild/internal/directory"
	"github.com/HE-Arc/Mind-vs-Wild/internal/guard"
	"github.com/HE-Arc/Mind-vs-Wild/pkg/domain"
)

type roomsMode int

const (
	roomsBrowse roomsMode = iota
	roomsCreate
	roomsJoinCode
)

type roomsLoadedMsg struct {
	rooms []domain.Room
	err   error
}

func (m roomsLoadedMsg) failure() error { return m.err }

type roomLoadedMsg struct {
	room domain.Room
	err  error
}

func (m roomLoadedMsg) failure() error { return m.err }

type roomJoinedMsg struct {
	room domain.Room
	err  error
}

func (m roomJoinedMsg) failure() error { return m.err }

type roomCreatedMsg struct {
	room domain.Room
	err  error
}

func (m roomCreatedMsg) failure() error { return m.err }

type roomLeftMsg struct {
	err error
}

func (m roomLeftMsg) failure() error { return m.err }

// roomsModel serves /rooms and /rooms/{code}.
type roomsModel struct {
	dir *directory.Directory

	code    string // "" on the list view
	rooms   []domain.Room
	room    *domain.Room
	cursor  int
	loading bool

	mode roomsMode
	form form

	status string
	err    error
}

func newRoomsModel(dir *directory.Directory) roomsModel {
	return roomsModel{dir: dir}
}

// open enters the list (code == "") or the detail view of a room.
func (m roomsModel) open(code string) (roomsModel, tea.Cmd) {
	m.code = code
	m.mode = roomsBrowse
	m.err = nil
	m.status = ""
	m.loading = true
	dir := m.dir
	if code == "" {
		m.rooms = dir.Rooms()
		return m, m.fetchRooms()
	}
	m.room = nil
	if cur := dir.CurrentRoom(); cur != nil && cur.Code == code {
		m.room = cur
	}
	return m, func() tea.Msg {
		r, err := dir.FetchRoom(context.Background(), code)
		return roomLoadedMsg{room: r, err: err}
	}
}

func (m roomsModel) editing() bool {
	return m.mode != roomsBrowse
}

func (m roomsModel) fetchRooms() tea.Cmd {
	dir := m.dir
	return func() tea.Msg {
		rooms, err := dir.FetchRooms(context.Background())
		return roomsLoadedMsg{rooms: rooms, err: err}
	}
}

func (m roomsModel) Update(msg tea.Msg) (roomsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case roomsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.rooms = msg.rooms
		if m.cursor >= len(m.rooms) {
			m.cursor = max(len(m.rooms)-1, 0)
		}
		return m, nil

	case roomLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		if msg.room.Code == m.code {
			r := msg.room
			m.room = &r
		}
		return m, nil

	case roomJoinedMsg:
		m.form.busy = false
		if msg.err != nil {
			if m.mode == roomsJoinCode {
				m.form.err = errorText(msg.err)
				return m, nil
			}
			m.err = msg.err
			return m, nil
		}
		m.mode = roomsBrowse
		return m, navigateTo(guard.Room(msg.room.Code))

	case roomCreatedMsg:
		m.form.busy = false
		if msg.err != nil {
			m.form.err = errorText(msg.err)
			return m, nil
		}
		m.mode = roomsBrowse
		m.rooms = m.dir.Rooms()
		m.cursor = max(len(m.rooms)-1, 0)
		m.status = fmt.Sprintf("room %q created, code %s", msg.room.Name, msg.room.Code)
		return m, nil

	case roomLeftMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		return m, navigateTo(guard.Rooms)

	case tea.KeyMsg:
		if m.editing() {
			return m.updateForm(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m roomsModel) updateForm(msg tea.KeyMsg) (roomsModel, tea.Cmd) {
	if key.Matches(msg, keys.Back) {
		m.mode = roomsBrowse
		return m, nil
	}
	f, cmd, submitted := m.form.Update(msg)
	m.form = f
	if !submitted {
		return m, cmd
	}
	dir := m.dir
	switch m.mode {
	case roomsJoinCode:
		code := m.form.value(0)
		if code == "" {
			m.form.err = "enter a room code"
			return m, nil
		}
		m.form.busy = true
		return m, func() tea.Msg {
			r, err := dir.JoinRoomByCode(context.Background(), code)
			return roomJoinedMsg{room: r, err: err}
		}
	case roomsCreate:
		name := m.form.value(0)
		if name == "" {
			m.form.err = "a room needs a name"
			return m, nil
		}
		var groupID *int64
		if raw := m.form.value(1); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				m.form.err = "group id must be a positive number"
				return m, nil
			}
			groupID = &id
		}
		m.form.busy = true
		return m, func() tea.Msg {
			r, err := dir.CreateRoom(context.Background(), name, groupID)
			return roomCreatedMsg{room: r, err: err}
		}
	}
	return m, nil
}

func (m roomsModel) updateKeys(msg tea.KeyMsg) (roomsModel, tea.Cmd) {
	m.status = ""
	m.err = nil
	dir := m.dir
	switch {
	case key.Matches(msg, keys.Up):
		if m.code == "" && m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, keys.Down):
		if m.code == "" && m.cursor < len(m.rooms)-1 {
			m.cursor++
		}
	case key.Matches(msg, keys.Open):
		if m.code == "" && m.cursor < len(m.rooms) {
			id := m.rooms[m.cursor].ID
			return m, func() tea.Msg {
				r, err := dir.JoinRoom(context.Background(), id)
				return roomJoinedMsg{room: r, err: err}
			}
		}
	case key.Matches(msg, keys.Back):
		if m.code != "" {
			return m, navigateTo(guard.Rooms)
		}
	case key.Matches(msg, keys.Refresh):
		if m.code != "" {
			return m.open(m.code)
		}
		m.loading = true
		return m, m.fetchRooms()
	case key.Matches(msg, keys.JoinCode):
		m.mode = roomsJoinCode
		m.form = newForm("Join a room", fieldSpec{label: "code", placeholder: "R00001"})
	case key.Matches(msg, keys.New):
		m.mode = roomsCreate
		m.form = newForm("New room",
			fieldSpec{label: "name"},
			fieldSpec{label: "group id", placeholder: "empty for a standalone room"},
		)
	case key.Matches(msg, keys.Leave):
		if m.code != "" {
			return m, func() tea.Msg {
				return roomLeftMsg{err: dir.LeaveRoom(context.Background())}
			}
		}
	}
	return m, nil
}

func (m roomsModel) View() string {
	if m.editing() {
		return m.form.View()
	}
	var b strings.Builder
	if m.code != "" {
		m.viewDetail(&b)
	} else {
		m.viewList(&b)
	}
	switch {
	case m.err != nil:
		b.WriteString("\n  " + errorStyle.Render(errorText(m.err)) + "\n")
	case m.status != "":
		b.WriteString("\n  " + flashStyle.Render(m.status) + "\n")
	}
	return b.String()
}

func (m roomsModel) viewList(b *strings.Builder) {
	b.WriteString("  " + titleStyle.Render("Rooms") + "\n\n")
	if len(m.rooms) == 0 {
		if m.loading {
			b.WriteString("  " + dimStyle.Render("loading…") + "\n")
		} else {
			b.WriteString("  " + dimStyle.Render("no rooms, press n to create one or J to join by code") + "\n")
		}
		return
	}
	for i, r := range m.rooms {
		where := "standalone"
		if !r.Standalone() {
			where = fmt.Sprintf("group %d", *r.GroupID)
		}
		line := fmt.Sprintf("%-8s %-24s %s", r.Code, truncStr(r.Name, 24),
			metaStyle.Render(fmt.Sprintf("%s · %d in", where, len(r.Participants))))
		if i == m.cursor {
			b.WriteString(selectedRowBg.Render("  > "+selectedStyle.Render(line)) + "\n")
		} else {
			b.WriteString("    " + normalStyle.Render(line) + "\n")
		}
	}
}

func (m roomsModel) viewDetail(b *strings.Builder) {
	if m.room == nil {
		if m.loading {
			b.WriteString("  " + dimStyle.Render("loading…") + "\n")
		}
		return
	}
	r := m.room
	b.WriteString("  " + titleStyle.Render(r.Name) + "  " + accentStyle.Render(r.Code) + "\n")
	state := "closed"
	if r.IsActive {
		state = "open"
	}
	b.WriteString("  " + metaStyle.Render(state+" · created "+formatTime(r.CreatedAt)) + "\n")
	b.WriteString("\n  " + sectionHeaderStyle.Render("participants") + "\n")
	for _, p := range r.Participants {
		b.WriteString("    " + normalStyle.Render(p.User.DisplayName()) + "\n")
	}
}

func (m roomsModel) helpKeys() string {
	if m.editing() {
		return helpLine(keys.NextField, keys.Open, keys.Back)
	}
	if m.code != "" {
		return helpLine(keys.Leave, keys.Refresh, keys.Back)
	}
	return helpLine(keys.Up, keys.Down, keys.Open, keys.JoinCode, keys.New, keys.Refresh)
}

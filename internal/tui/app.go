package tui

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/HE-Arc/Mind-vs-Wild/internal/directory"
	"github.com/HE-Arc/Mind-vs-Wild/internal/guard"
	"github.com/HE-Arc/Mind-vs-Wild/internal/invite"
	"github.com/HE-Arc/Mind-vs-Wild/internal/session"
	"github.com/HE-Arc/Mind-vs-Wild/pkg/client"
)

type view int

const (
	viewHome view = iota
	viewAbout
	viewLogin
	viewRegister
	viewProfile
	viewGroups
	viewRooms
	viewInvite
)

// navigateMsg asks the router to go to target (path plus optional query).
type navigateMsg struct {
	target string
}

func navigateTo(target string) tea.Cmd {
	return func() tea.Msg { return navigateMsg{target: target} }
}

// routeDecidedMsg carries the guard's verdict for navigation number seq.
type routeDecidedMsg struct {
	seq      int
	target   string
	decision guard.Decision
}

type logoutDoneMsg struct{}

// failer is implemented by result messages that may carry a backend error.
type failer interface {
	failure() error
}

// Deps wires the TUI to the session layer.
type Deps struct {
	Session   *session.Manager
	Directory *directory.Directory
	Invites   *invite.Resolver
	Version   string
	// FrontendURL roots the invite links shown and copied; empty keeps the
	// backend's links.
	FrontendURL string
	// ReleasesURL is checked for newer releases; empty disables the check.
	ReleasesURL string
	// StartPath is the first view to open: a path or a full app URL such
	// as an invite link. Empty means "/".
	StartPath string
}

// App is the root Bubbletea model. Every view change goes through the
// navigation guard.
type App struct {
	sess        *session.Manager
	dir         *directory.Directory
	version     string
	releasesURL string
	startPath   string

	view    view
	target  string // path (and query) of the view on screen
	seq     int    // latest navigation; older decisions are ignored
	prefill string // username for the next login form

	auth   authModel
	groups groupsModel
	rooms  roomsModel
	invite inviteModel

	helpOpen bool
	gotoOpen bool
	gotoForm form

	flash  string
	update string
	width  int
	height int
	frame  int // logo shimmer animation frame
}

// NewApp creates a new TUI application.
func NewApp(d Deps) App {
	start := targetFromInput(d.StartPath)
	if start == "" {
		start = guard.Root
	}
	return App{
		sess:        d.Session,
		dir:         d.Directory,
		version:     d.Version,
		releasesURL: d.ReleasesURL,
		startPath:   start,
		target:      guard.Root,
		groups:      newGroupsModel(d.Directory, d.FrontendURL),
		rooms:       newRoomsModel(d.Directory),
		invite:      newInviteModel(d.Invites),
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(shimmerTickCmd(), checkVersion(a.version, a.releasesURL), navigateTo(a.startPath))
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if f, ok := msg.(failer); ok && needsLogin(f.failure()) {
		a.flash = "your session has ended, please log in again"
		return a, navigateTo(guard.LoginURL(a.target))
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case shimmerTickMsg:
		a.frame++
		return a, shimmerTickCmd()

	case releaseMsg:
		if msg.release.Tag != "" {
			a.update = "v" + strings.TrimPrefix(msg.release.Tag, "v") + " available"
		}
		return a, nil

	case navigateMsg:
		return a.navigate(msg.target)

	case routeDecidedMsg:
		if msg.seq != a.seq {
			return a, nil
		}
		if !msg.decision.Allowed() {
			return a.navigate(msg.decision.Redirect)
		}
		return a.enter(msg.target)

	case loginDoneMsg:
		a.auth, _ = a.auth.Update(msg)
		if msg.err != nil {
			return a, nil
		}
		a.flash = ""
		return a, navigateTo(guard.ReturnTo(a.target))

	case registerDoneMsg:
		a.auth, _ = a.auth.Update(msg)
		if msg.err != nil {
			return a, nil
		}
		a.flash = "account created, you can log in now"
		a.prefill = msg.username
		return a, navigateTo(guard.Login + queryOf(a.target))

	case logoutDoneMsg:
		a.flash = "logged out"
		return a, navigateTo(guard.Root)

	case groupsLoadedMsg, groupLoadedMsg, groupCreatedMsg, inviteMintedMsg, groupLeftMsg:
		var cmd tea.Cmd
		a.groups, cmd = a.groups.Update(msg)
		return a, cmd

	case roomsLoadedMsg, roomLoadedMsg, roomJoinedMsg, roomCreatedMsg, roomLeftMsg:
		var cmd tea.Cmd
		a.rooms, cmd = a.rooms.Update(msg)
		return a, cmd

	case inviteAcceptedMsg:
		var cmd tea.Cmd
		a.invite, cmd = a.invite.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		return a.updateKeys(msg)
	}
	return a, nil
}

// navigate starts a guarded navigation to target. The decision comes back
// as a routeDecidedMsg.
func (a App) navigate(target string) (App, tea.Cmd) {
	if target == "" {
		target = guard.Root
	}
	a.seq++
	seq, sess := a.seq, a.sess
	return a, func() tea.Msg {
		return routeDecidedMsg{
			seq:      seq,
			target:   target,
			decision: guard.Decide(context.Background(), target, sess),
		}
	}
}

// enter shows the view for an allowed target.
func (a App) enter(target string) (App, tea.Cmd) {
	path, _, _ := strings.Cut(target, "?")
	route, params, ok := guard.Match(path)
	if !ok {
		a.flash = "nothing at " + path
		a.view = viewHome
		a.target = guard.Root
		return a, nil
	}
	a.target = target
	a.helpOpen = false
	a.gotoOpen = false

	var cmd tea.Cmd
	switch route.Pattern {
	case guard.Root:
		a.view = viewHome
	case guard.About:
		a.view = viewAbout
	case guard.Login:
		a.view = viewLogin
		a.auth = newLoginModel(a.sess, a.prefill)
		a.prefill = ""
	case guard.Register:
		a.view = viewRegister
		a.auth = newRegisterModel(a.sess)
	case guard.Profile:
		a.view = viewProfile
		a.groups, cmd = a.groups.open(0)
	case guard.Groups:
		a.view = viewGroups
		a.groups, cmd = a.groups.open(0)
	case guard.GroupPattern:
		id, err := strconv.ParseInt(params["id"], 10, 64)
		if err != nil || id <= 0 {
			a.flash = "invalid group id " + params["id"]
			return a, navigateTo(guard.Groups)
		}
		a.view = viewGroups
		a.groups, cmd = a.groups.open(id)
	case guard.Rooms:
		a.view = viewRooms
		a.rooms, cmd = a.rooms.open("")
	case guard.RoomPattern:
		a.view = viewRooms
		a.rooms, cmd = a.rooms.open(params["code"])
	case guard.AcceptInvitePattern:
		a.view = viewInvite
		a.invite = a.invite.open(params["token"])
		a.invite.busy = true
		cmd = a.invite.accept()
	}
	return a, cmd
}

func (a App) updateKeys(msg tea.KeyMsg) (App, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return a, tea.Quit
	}

	if a.helpOpen {
		if key.Matches(msg, keys.Help, keys.Back) {
			a.helpOpen = false
		} else if key.Matches(msg, keys.Quit) {
			return a, tea.Quit
		}
		return a, nil
	}

	if a.gotoOpen {
		if key.Matches(msg, keys.Back) {
			a.gotoOpen = false
			return a, nil
		}
		f, cmd, submitted := a.gotoForm.Update(msg)
		a.gotoForm = f
		if !submitted {
			return a, cmd
		}
		a.gotoOpen = false
		target := targetFromInput(a.gotoForm.value(0))
		if target == "" {
			return a, nil
		}
		return a.navigate(target)
	}

	// Auth forms take every key; esc leaves them.
	if a.view == viewLogin || a.view == viewRegister {
		if key.Matches(msg, keys.Back) {
			return a.navigate(guard.Root)
		}
		var cmd tea.Cmd
		a.auth, cmd = a.auth.Update(msg)
		return a, cmd
	}

	if !a.isEditing() {
		a.flash = ""
		switch {
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.helpOpen = true
			return a, nil
		case key.Matches(msg, keys.Goto):
			a.gotoOpen = true
			a.gotoForm = newForm("Go to", fieldSpec{label: "path", placeholder: "/rooms or an invite link"})
			return a, nil
		case key.Matches(msg, keys.Home):
			return a.navigate(guard.Root)
		case key.Matches(msg, keys.Groups):
			return a.navigate(guard.Groups)
		case key.Matches(msg, keys.Rooms):
			return a.navigate(guard.Rooms)
		case key.Matches(msg, keys.Profile):
			return a.navigate(guard.Profile)
		case key.Matches(msg, keys.About):
			return a.navigate(guard.About)
		case key.Matches(msg, keys.Login):
			return a.navigate(guard.Login)
		case key.Matches(msg, keys.Signup):
			return a.navigate(guard.Register)
		case key.Matches(msg, keys.Logout):
			if a.sess.Status() != session.StatusAuthenticated {
				return a, nil
			}
			sess := a.sess
			return a, func() tea.Msg {
				sess.Logout(context.Background())
				return logoutDoneMsg{}
			}
		}
	}

	var cmd tea.Cmd
	switch a.view {
	case viewGroups:
		a.groups, cmd = a.groups.Update(msg)
	case viewRooms:
		a.rooms, cmd = a.rooms.Update(msg)
	case viewInvite:
		a.invite, cmd = a.invite.Update(msg)
	}
	return a, cmd
}

func (a App) isEditing() bool {
	switch a.view {
	case viewLogin, viewRegister:
		return true
	case viewGroups:
		return a.groups.editing()
	case viewRooms:
		return a.rooms.editing()
	}
	return false
}

func (a App) View() string {
	logo := renderShimmerLogo(a.frame)
	logoPad := max((a.width-lipgloss.Width(logo))/2, 0)
	header := strings.Repeat(" ", logoPad) + logo

	status := dimStyle.Render("not signed in")
	if u := a.sess.User(); u != nil {
		status = metaStyle.Render("signed in as ") + accentStyle.Render(u.Username)
	}
	if a.update != "" {
		status += metaStyle.Render(" . ") + flashStyle.Render(a.update)
	}
	statusPad := max((a.width-lipgloss.Width(status))/2, 0)
	header += "\n" + strings.Repeat(" ", statusPad) + status

	var body, help string
	switch a.view {
	case viewHome:
		body = homeView(a.sess.User())
		help = helpLine(keys.Groups, keys.Rooms, keys.Login, keys.Logout, keys.Goto, keys.Help, keys.Quit)
	case viewAbout:
		body = aboutView(a.version)
		help = helpLine(keys.Home, keys.Help, keys.Quit)
	case viewLogin, viewRegister:
		body = a.auth.View()
		help = helpLine(keys.NextField, keys.Open, keys.Back)
	case viewProfile:
		body = profileView(a.sess.User(), a.dir.Groups())
		help = helpLine(keys.Groups, keys.Rooms, keys.Logout, keys.Help, keys.Quit)
	case viewGroups:
		body = a.groups.View()
		help = a.groups.helpKeys()
	case viewRooms:
		body = a.rooms.View()
		help = a.rooms.helpKeys()
	case viewInvite:
		body = a.invite.View()
		help = a.invite.helpKeys()
	}
	if a.flash != "" {
		body = "  " + flashStyle.Render(a.flash) + "\n\n" + body
	}
	if a.gotoOpen {
		body = a.gotoForm.View()
		help = helpLine(keys.Open, keys.Back)
	}
	if a.helpOpen {
		body = helpView()
		help = helpLine(keys.Back, keys.Quit)
	}

	// Chrome: header(2) + tabs(1) + help(1)
	chrome := 4
	if a.height > chrome {
		body = truncateToHeight(body, a.height-chrome)
	}
	body = strings.TrimRight(body, "\n")

	return header + "\n" + a.tabBar() + "\n" + body + "\n" + help
}

func (a App) tabBar() string {
	tabs := []struct {
		key  string
		name string
		v    view
	}{
		{"1", "Home", viewHome},
		{"2", "Groups", viewGroups},
		{"3", "Rooms", viewRooms},
		{"4", "Profile", viewProfile},
	}
	if a.width <= 0 {
		return ""
	}
	colWidth := a.width / len(tabs)
	var bar strings.Builder
	for _, t := range tabs {
		var label string
		if t.v == a.view {
			label = accentStyle.Render(t.key) + " " + selectedStyle.Underline(true).Render(t.name)
		} else {
			label = metaStyle.Render(t.key) + " " + dimStyle.Render(t.name)
		}
		w := lipgloss.Width(label)
		left := max((colWidth-w)/2, 0)
		right := max(colWidth-w-left, 0)
		bar.WriteString(strings.Repeat(" ", left) + label + strings.Repeat(" ", right))
	}
	return bar.String()
}

// needsLogin reports whether err means the session is gone.
func needsLogin(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, session.ErrUnauthenticated) || client.IsStatus(err, http.StatusUnauthorized)
}

// queryOf returns the "?query" part of target, or "".
func queryOf(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[i:]
	}
	return ""
}

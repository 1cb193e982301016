package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/HE-Arc/Mind-vs-Wild/internal/credstore"
	"github.com/HE-Arc/Mind-vs-Wild/internal/directory"
	"github.com/HE-Arc/Mind-vs-Wild/internal/guard"
	"github.com/HE-Arc/Mind-vs-Wild/internal/invite"
	"github.com/HE-Arc/Mind-vs-Wild/internal/session"
	"github.com/HE-Arc/Mind-vs-Wild/internal/testkit/fakeapi"
	"github.com/HE-Arc/Mind-vs-Wild/pkg/client"
)

type appFixture struct {
	api  *fakeapi.Server
	sess *session.Manager
	dir  *directory.Directory
	app  App
}

func newAppFixture(t *testing.T) *appFixture {
	t.Helper()
	api := fakeapi.New(t)
	api.AddUser("alice", "pw")
	sess := session.NewManager(client.New(api.URL, ""), credstore.NewMemoryStore(), nil)
	dir := directory.New(sess, nil)
	sess.OnLogout(dir.Reset)
	a := NewApp(Deps{
		Session:   sess,
		Directory: dir,
		Invites:   invite.NewResolver(sess, dir, nil),
		Version:   "dev",
	})
	a.width = 100
	a.height = 40
	return &appFixture{api: api, sess: sess, dir: dir, app: a}
}

func (f *appFixture) login(t *testing.T) {
	t.Helper()
	if err := f.sess.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
}

// send feeds msg to the app and runs every resulting command synchronously
// until no more messages are produced.
func (f *appFixture) send(t *testing.T, msg tea.Msg) {
	t.Helper()
	queue := []tea.Msg{msg}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 200 {
			t.Fatal("message loop did not settle")
		}
		m := queue[0]
		queue = queue[1:]
		if m == nil {
			continue
		}
		if batch, ok := m.(tea.BatchMsg); ok {
			for _, c := range batch {
				if c != nil {
					queue = append(queue, c())
				}
			}
			continue
		}
		if _, ok := m.(tea.QuitMsg); ok {
			continue
		}
		model, cmd := f.app.Update(m)
		f.app = model.(App)
		if cmd != nil {
			queue = append(queue, cmd())
		}
	}
}

func (f *appFixture) goTo(t *testing.T, target string) {
	t.Helper()
	f.send(t, navigateMsg{target: target})
}

func (f *appFixture) typeText(t *testing.T, s string) {
	t.Helper()
	f.send(t, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func (f *appFixture) press(t *testing.T, k tea.KeyType) {
	t.Helper()
	f.send(t, tea.KeyMsg{Type: k})
}

func (f *appFixture) submitLogin(t *testing.T, username, password string) {
	t.Helper()
	f.typeText(t, username)
	f.press(t, tea.KeyEnter)
	f.typeText(t, password)
	f.press(t, tea.KeyEnter)
}

func TestProtectedRouteRedirectsToLoginWithReturnPath(t *testing.T) {
	f := newAppFixture(t)

	f.goTo(t, guard.Profile)

	if f.app.view != viewLogin {
		t.Fatalf("view = %d, want login", f.app.view)
	}
	if want := guard.LoginURL(guard.Profile); f.app.target != want {
		t.Errorf("target = %q, want %q", f.app.target, want)
	}
}

func TestLoginReturnsToProtectedRoute(t *testing.T) {
	f := newAppFixture(t)
	f.goTo(t, guard.Profile)

	f.submitLogin(t, "alice", "pw")

	if f.app.view != viewProfile {
		t.Fatalf("view = %d, want profile", f.app.view)
	}
	if f.app.target != guard.Profile {
		t.Errorf("target = %q, want %q", f.app.target, guard.Profile)
	}
	if !strings.Contains(f.app.View(), "alice") {
		t.Error("expected profile view to show the username")
	}
}

func TestLoginWithBadPasswordStaysOnForm(t *testing.T) {
	f := newAppFixture(t)
	f.goTo(t, guard.Groups)

	f.submitLogin(t, "alice", "wrong")

	if f.app.view != viewLogin {
		t.Fatalf("view = %d, want login", f.app.view)
	}
	if f.app.auth.form.err != "invalid username or password" {
		t.Errorf("form error = %q", f.app.auth.form.err)
	}
	if f.sess.Status() == session.StatusAuthenticated {
		t.Error("session must not be authenticated")
	}
}

func TestGuestOnlyRouteRedirectsWhenSignedIn(t *testing.T) {
	f := newAppFixture(t)
	f.login(t)

	f.goTo(t, guard.Login)

	if f.app.view != viewProfile {
		t.Errorf("view = %d, want profile", f.app.view)
	}
}

func TestPublicRoutesSkipAuth(t *testing.T) {
	f := newAppFixture(t)

	f.goTo(t, guard.About)

	if f.app.view != viewAbout {
		t.Errorf("view = %d, want about", f.app.view)
	}
	if got := f.api.Hits(fakeapi.RouteGetUser); got != 0 {
		t.Errorf("validation calls = %d, want 0", got)
	}
}

func TestStaleRouteDecisionIgnored(t *testing.T) {
	f := newAppFixture(t)
	f.app.seq = 2

	model, cmd := f.app.Update(routeDecidedMsg{seq: 1, target: guard.About, decision: guard.Allow()})
	a := model.(App)

	if cmd != nil {
		t.Error("expected no command for a stale decision")
	}
	if a.view != viewHome {
		t.Errorf("view = %d, want home", a.view)
	}
}

func TestNavigationSupersedesPendingDecision(t *testing.T) {
	f := newAppFixture(t)

	model, first := f.app.Update(navigateMsg{target: guard.Profile})
	f.app = model.(App)
	model, second := f.app.Update(navigateMsg{target: guard.About})
	f.app = model.(App)

	// The profile decision lands last but belongs to an older navigation.
	f.send(t, second())
	f.send(t, first())

	if f.app.view != viewAbout {
		t.Errorf("view = %d, want about", f.app.view)
	}
}

func TestInviteThroughLoginJoinsGroup(t *testing.T) {
	f := newAppFixture(t)
	f.api.AddUser("bob", "pw")
	g := f.api.AddGroup("Quiz crew", "bob")
	token := f.api.AddInvite(g.ID, "")

	f.goTo(t, guard.AcceptInvite(token))

	if f.app.view != viewLogin {
		t.Fatalf("view = %d, want login", f.app.view)
	}
	if got := guard.ReturnTo(f.app.target); got != guard.AcceptInvite(token) {
		t.Fatalf("return path = %q, want %q", got, guard.AcceptInvite(token))
	}

	f.submitLogin(t, "alice", "pw")

	if f.app.view != viewInvite {
		t.Fatalf("view = %d, want invite", f.app.view)
	}
	if f.app.invite.joined == nil || f.app.invite.joined.ID != g.ID {
		t.Fatalf("joined = %+v, want group %d", f.app.invite.joined, g.ID)
	}
	if _, ok := f.dir.Group(g.ID); !ok {
		t.Error("joined group missing from directory")
	}

	f.press(t, tea.KeyEnter)
	if f.app.view != viewGroups || f.app.groups.detailID != g.ID {
		t.Errorf("expected group detail %d, got view %d detail %d", g.ID, f.app.view, f.app.groups.detailID)
	}
}

func TestInviteFailureShowsReason(t *testing.T) {
	f := newAppFixture(t)
	f.login(t)
	f.api.AddUser("bob", "pw")
	g := f.api.AddGroup("Quiz crew", "bob")
	token := f.api.AddInvite(g.ID, "")
	f.api.ExpireInvite(token)

	f.goTo(t, guard.AcceptInvite(token))

	if f.app.view != viewInvite {
		t.Fatalf("view = %d, want invite", f.app.view)
	}
	if !strings.Contains(f.app.View(), "expired or was already used") {
		t.Errorf("expected an expiry explanation, got:\n%s", f.app.View())
	}
	if f.sess.Status() != session.StatusAuthenticated {
		t.Error("invite failure must not end the session")
	}
}

func TestRoomJoinAndLeave(t *testing.T) {
	f := newAppFixture(t)
	f.login(t)
	room := f.api.AddRoom("Friday quiz", nil, "alice")

	f.goTo(t, guard.Rooms)
	if len(f.app.rooms.rooms) != 1 {
		t.Fatalf("rooms = %d, want 1", len(f.app.rooms.rooms))
	}

	f.press(t, tea.KeyEnter)
	if f.app.target != guard.Room(room.Code) {
		t.Fatalf("target = %q, want %q", f.app.target, guard.Room(room.Code))
	}
	if cur := f.dir.CurrentRoom(); cur == nil || cur.Code != room.Code {
		t.Fatalf("current room = %+v, want %s", cur, room.Code)
	}

	f.typeText(t, "x")
	if f.app.target != guard.Rooms {
		t.Errorf("target = %q, want %q", f.app.target, guard.Rooms)
	}
	if f.dir.CurrentRoom() != nil {
		t.Error("current room should be cleared after leaving")
	}
}

func TestJoinRoomByCode(t *testing.T) {
	f := newAppFixture(t)
	f.login(t)
	f.api.AddUser("bob", "pw")
	room := f.api.AddRoom("Open room", nil, "bob")

	f.goTo(t, guard.Rooms)
	f.typeText(t, "J")
	if !f.app.rooms.editing() {
		t.Fatal("expected the join form to open")
	}
	f.typeText(t, room.Code)
	f.press(t, tea.KeyEnter)

	if f.app.target != guard.Room(room.Code) {
		t.Errorf("target = %q, want %q", f.app.target, guard.Room(room.Code))
	}
	for _, r := range f.dir.Rooms() {
		if r.Code == room.Code {
			t.Error("joining by code must not add the room to the list")
		}
	}
}

func TestRejectedTokenRedirectsToLogin(t *testing.T) {
	f := newAppFixture(t)
	f.login(t)
	f.goTo(t, guard.Groups)
	if f.app.view != viewGroups {
		t.Fatalf("view = %d, want groups", f.app.view)
	}

	f.api.RevokeToken(f.sess.Snapshot().Token)
	f.typeText(t, "r")

	if f.app.view != viewLogin {
		t.Fatalf("view = %d, want login", f.app.view)
	}
	if got := guard.ReturnTo(f.app.target); got != guard.Groups {
		t.Errorf("return path = %q, want %q", got, guard.Groups)
	}
	if f.sess.Status() == session.StatusAuthenticated {
		t.Error("session should be torn down")
	}
}

func TestCreateGroupFromList(t *testing.T) {
	f := newAppFixture(t)
	f.login(t)
	f.goTo(t, guard.Groups)

	f.typeText(t, "n")
	f.typeText(t, "Trivia night")
	f.press(t, tea.KeyEnter)
	f.press(t, tea.KeyEnter)

	if f.app.groups.editing() {
		t.Fatalf("form still open, error %q", f.app.groups.form.err)
	}
	groups := f.dir.Groups()
	if len(groups) != 1 || groups[0].Name != "Trivia night" {
		t.Errorf("groups = %+v", groups)
	}
}

func TestRegisterThenLoginIsPrefilled(t *testing.T) {
	f := newAppFixture(t)
	f.goTo(t, guard.Register)

	for _, v := range []string{"carol", "carol@example.com", "", "", "pw", "pw"} {
		if v != "" {
			f.typeText(t, v)
		}
		f.press(t, tea.KeyEnter)
	}

	if f.app.view != viewLogin {
		t.Fatalf("view = %d, want login (form error %q)", f.app.view, f.app.auth.form.err)
	}
	if got := f.app.auth.form.inputs[0].Value(); got != "carol" {
		t.Errorf("prefilled username = %q, want carol", got)
	}
	if f.app.auth.form.focus != 1 {
		t.Errorf("focus = %d, want the password field", f.app.auth.form.focus)
	}
}

func TestRegisterPasswordMismatch(t *testing.T) {
	f := newAppFixture(t)
	f.goTo(t, guard.Register)

	for _, v := range []string{"carol", "carol@example.com", "", "", "pw", "other"} {
		if v != "" {
			f.typeText(t, v)
		}
		f.press(t, tea.KeyEnter)
	}

	if f.app.view != viewRegister {
		t.Fatalf("view = %d, want register", f.app.view)
	}
	if f.app.auth.form.err != "passwords do not match" {
		t.Errorf("form error = %q", f.app.auth.form.err)
	}
	if got := f.api.Hits(fakeapi.RouteRegister); got != 0 {
		t.Errorf("register calls = %d, want 0", got)
	}
}

func TestLogoutReturnsHome(t *testing.T) {
	f := newAppFixture(t)
	f.login(t)
	f.goTo(t, guard.Profile)

	f.typeText(t, "o")

	if f.app.view != viewHome {
		t.Errorf("view = %d, want home", f.app.view)
	}
	if f.sess.Status() == session.StatusAuthenticated {
		t.Error("session should be cleared")
	}
}

func TestGotoPromptAcceptsInviteLink(t *testing.T) {
	f := newAppFixture(t)
	f.login(t)
	f.api.AddUser("bob", "pw")
	g := f.api.AddGroup("Quiz crew", "bob")
	token := f.api.AddInvite(g.ID, "alice")

	f.typeText(t, ":")
	if !f.app.gotoOpen {
		t.Fatal("expected the go-to prompt")
	}
	f.typeText(t, f.api.FrontendURL+guard.AcceptInvite(token))
	f.press(t, tea.KeyEnter)

	if f.app.view != viewInvite {
		t.Fatalf("view = %d, want invite", f.app.view)
	}
	if f.app.invite.joined == nil {
		t.Errorf("expected the invite to be accepted, err %v", f.app.invite.err)
	}
}

func TestUnknownPathFallsBackHome(t *testing.T) {
	f := newAppFixture(t)
	f.login(t)

	f.goTo(t, "/nowhere")

	if f.app.view != viewHome {
		t.Errorf("view = %d, want home", f.app.view)
	}
	if !strings.Contains(f.app.flash, "/nowhere") {
		t.Errorf("flash = %q", f.app.flash)
	}
}

func TestAppGlobalQuitOnQ(t *testing.T) {
	f := newAppFixture(t)
	_, cmd := f.app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command on 'q', got nil")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestAppHelpOverlayToggle(t *testing.T) {
	f := newAppFixture(t)

	f.typeText(t, "h")
	if !f.app.helpOpen {
		t.Fatal("expected help overlay open")
	}
	if !strings.Contains(f.app.View(), "join by code") {
		t.Error("help overlay should list key bindings")
	}
	f.press(t, tea.KeyEsc)
	if f.app.helpOpen {
		t.Error("expected help overlay closed after esc")
	}
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/HE-Arc/Mind-vs-Wild/internal/browser"
	"github.com/HE-Arc/Mind-vs-Wild/internal/guard"
	"github.com/HE-Arc/Mind-vs-Wild/internal/invite"
	"github.com/HE-Arc/Mind-vs-Wild/internal/session"
	"github.com/HE-Arc/Mind-vs-Wild/internal/tui"
	"github.com/HE-Arc/Mind-vs-Wild/pkg/client"
)

type commandFunc func(ctx context.Context, a *app, args []string, stdin io.Reader, stdout io.Writer) error

var commands = map[string]commandFunc{
	"login":        runLogin,
	"register":     runRegister,
	"logout":       runLogout,
	"whoami":       runWhoami,
	"groups":       runGroups,
	"group-create": runGroupCreate,
	"invite":       runInvite,
	"accept":       runAccept,
	"leave-group":  runLeaveGroup,
	"rooms":        runRooms,
	"room-create":  runRoomCreate,
	"join":         runJoin,
	"update":       runUpdate,
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("mvw "+name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// prompter reads answers line by line from stdin.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(stdin io.Reader, stdout io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(stdin), out: stdout}
}

func (p *prompter) ask(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("read %s: %w", label, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runLogin(ctx context.Context, a *app, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := newFlagSet("login")
	username := fs.StringP("username", "u", "", "account username")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p := newPrompter(stdin, stdout)
	if *username == "" {
		v, err := p.ask("username")
		if err != nil {
			return err
		}
		*username = strings.TrimSpace(v)
	}
	password, err := p.ask("password")
	if err != nil {
		return err
	}
	if err := a.sess.Login(ctx, *username, password); err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			return errors.New("invalid username or password")
		}
		return describe(err)
	}
	fmt.Fprintf(stdout, "logged in as %s\n", a.sess.User().DisplayName())
	return nil
}

func runRegister(ctx context.Context, a *app, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := newFlagSet("register")
	var req client.RegisterRequest
	fs.StringVarP(&req.Username, "username", "u", "", "account username")
	fs.StringVarP(&req.Email, "email", "e", "", "email address")
	fs.StringVar(&req.FirstName, "first-name", "", "first name")
	fs.StringVar(&req.LastName, "last-name", "", "last name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p := newPrompter(stdin, stdout)
	for _, f := range []struct {
		label string
		dst   *string
	}{{"username", &req.Username}, {"email", &req.Email}} {
		if *f.dst != "" {
			continue
		}
		v, err := p.ask(f.label)
		if err != nil {
			return err
		}
		*f.dst = strings.TrimSpace(v)
	}
	password, err := p.ask("password")
	if err != nil {
		return err
	}
	confirm, err := p.ask("confirm password")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}
	req.Password = password
	if err := a.sess.Register(ctx, req); err != nil {
		return describe(err)
	}
	fmt.Fprintf(stdout, "account %s created, log in with: mvw login -u %s\n", req.Username, req.Username)
	return nil
}

func runLogout(ctx context.Context, a *app, _ []string, _ io.Reader, stdout io.Writer) error {
	// Restore first so the backend token gets revoked too.
	if err := a.sess.Restore(ctx); err != nil {
		a.log.Debug("restore before logout failed", zap.Error(err))
	}
	a.sess.Logout(ctx)
	fmt.Fprintln(stdout, "logged out")
	printGreeting(stdout)
	return nil
}

func runWhoami(ctx context.Context, a *app, _ []string, _ io.Reader, stdout io.Writer) error {
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	u := a.sess.User()
	fmt.Fprintf(stdout, "%s (%s)\n", u.Username, u.DisplayName())
	if u.Email != "" {
		fmt.Fprintln(stdout, u.Email)
	}
	return nil
}

func runGroups(ctx context.Context, a *app, _ []string, _ io.Reader, stdout io.Writer) error {
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	groups, err := a.dir.FetchGroups(ctx)
	if err != nil {
		return describe(err)
	}
	if len(groups) == 0 {
		fmt.Fprintln(stdout, "no groups yet, create one with: mvw group-create <name>")
		return nil
	}
	me := a.sess.User()
	for _, g := range groups {
		role := ""
		if g.IsAdmin(me.ID) {
			role = "  admin"
		}
		fmt.Fprintf(stdout, "%6d  %-28s %d members%s\n", g.ID, g.Name, len(g.Members), role)
	}
	return nil
}

func runGroupCreate(ctx context.Context, a *app, args []string, _ io.Reader, stdout io.Writer) error {
	fs := newFlagSet("group-create")
	desc := fs.StringP("description", "d", "", "group description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	name := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if name == "" {
		return errors.New("usage: mvw group-create [-d description] <name>")
	}
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	g, err := a.dir.CreateGroup(ctx, name, *desc)
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(stdout, "created group %d %q\n", g.ID, g.Name)
	return nil
}

func runInvite(ctx context.Context, a *app, args []string, _ io.Reader, stdout io.Writer) error {
	fs := newFlagSet("invite")
	user := fs.StringP("user", "u", "", "invite this user only")
	copyLink := fs.Bool("copy", false, "copy the link to the clipboard")
	openLink := fs.Bool("open", false, "open the link in a browser")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: mvw invite [-u user] [--copy] [--open] <group-id>")
	}
	groupID, err := parseID(fs.Arg(0))
	if err != nil {
		return err
	}
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	grant, err := a.dir.InviteUser(ctx, groupID, *user)
	if err != nil {
		return describe(err)
	}
	link := guard.InviteLink(a.cfg.FrontendURL, grant.Token, grant.URL)
	fmt.Fprintf(stdout, "link: %s\n", link)
	fmt.Fprintf(stdout, "expires: %s\n", grant.ExpiresAt.Local().Format("2006-01-02 15:04"))
	if grant.InvitedUser != nil {
		fmt.Fprintf(stdout, "for: %s\n", *grant.InvitedUser)
	}
	if *copyLink {
		if err := clipboard.WriteAll(link); err != nil {
			fmt.Fprintf(stdout, "could not copy: %v\n", err)
		}
	}
	if *openLink {
		if err := browser.Open(link); err != nil {
			fmt.Fprintf(stdout, "could not open a browser: %v\n", err)
		}
	}
	return nil
}

func runAccept(ctx context.Context, a *app, args []string, _ io.Reader, stdout io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: mvw accept <token-or-invite-link>")
	}
	token, err := parseInviteToken(args[0])
	if err != nil {
		return err
	}
	g, err := a.invites.AcceptInvite(ctx, token)
	switch {
	case errors.Is(err, invite.ErrLoginRequired):
		return fmt.Errorf("%w, then run mvw accept again", errNotLoggedIn)
	case err != nil:
		return err
	}
	fmt.Fprintf(stdout, "joined group %d %q\n", g.ID, g.Name)
	return nil
}

func runLeaveGroup(ctx context.Context, a *app, args []string, _ io.Reader, stdout io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: mvw leave-group <group-id>")
	}
	groupID, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	if err := a.dir.LeaveGroup(ctx, groupID); err != nil {
		return describe(err)
	}
	fmt.Fprintf(stdout, "left group %d\n", groupID)
	return nil
}

func runRooms(ctx context.Context, a *app, _ []string, _ io.Reader, stdout io.Writer) error {
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	rooms, err := a.dir.FetchRooms(ctx)
	if err != nil {
		return describe(err)
	}
	if len(rooms) == 0 {
		fmt.Fprintln(stdout, "no rooms")
		return nil
	}
	for _, r := range rooms {
		where := "standalone"
		if !r.Standalone() {
			where = "group " + strconv.FormatInt(*r.GroupID, 10)
		}
		fmt.Fprintf(stdout, "%-8s %-24s %-12s %d in\n", r.Code, r.Name, where, len(r.Participants))
	}
	return nil
}

func runRoomCreate(ctx context.Context, a *app, args []string, _ io.Reader, stdout io.Writer) error {
	fs := newFlagSet("room-create")
	group := fs.Int64P("group", "g", 0, "create the room inside this group")
	if err := fs.Parse(args); err != nil {
		return err
	}
	name := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if name == "" {
		return errors.New("usage: mvw room-create [-g group-id] <name>")
	}
	var groupID *int64
	if *group > 0 {
		groupID = group
	}
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	r, err := a.dir.CreateRoom(ctx, name, groupID)
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(stdout, "created room %s %q\n", r.Code, r.Name)
	return nil
}

func runJoin(ctx context.Context, a *app, args []string, _ io.Reader, stdout io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: mvw join <room-code>")
	}
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	r, err := a.dir.JoinRoomByCode(ctx, args[0])
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(stdout, "joined room %s %q, %d in\n", r.Code, r.Name, len(r.Participants))
	return nil
}

func runUpdate(ctx context.Context, _ *app, _ []string, _ io.Reader, stdout io.Writer) error {
	rel, err := tui.LatestRelease(ctx, tui.ReleasesURL)
	if err != nil {
		return fmt.Errorf("check for updates: %w", err)
	}
	if version == "dev" || !tui.IsNewerVersion(rel.Tag, version) {
		fmt.Fprintf(stdout, "mvw %s is up to date\n", version)
		return nil
	}
	fmt.Fprintf(stdout, "mvw %s is available (you have %s)\n", rel.Tag, version)
	if rel.URL != "" {
		fmt.Fprintf(stdout, "download: %s\n", rel.URL)
	}
	return nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// parseInviteToken accepts a bare token, an accept-invite path or a full
// invite link.
func parseInviteToken(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", invite.ErrEmptyToken
	}
	path := raw
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" {
		path = u.EscapedPath()
	}
	if !strings.Contains(path, "/") {
		return raw, nil
	}
	route, params, ok := guard.Match(path)
	if !ok || route.Pattern != guard.AcceptInvitePattern {
		return "", fmt.Errorf("%q is not an invite link", raw)
	}
	return params["token"], nil
}

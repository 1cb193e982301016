package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/HE-Arc/Mind-vs-Wild/internal/config"
	"github.com/HE-Arc/Mind-vs-Wild/internal/credstore"
	"github.com/HE-Arc/Mind-vs-Wild/internal/directory"
	"github.com/HE-Arc/Mind-vs-Wild/internal/invite"
	"github.com/HE-Arc/Mind-vs-Wild/internal/logging"
	"github.com/HE-Arc/Mind-vs-Wild/internal/session"
	"github.com/HE-Arc/Mind-vs-Wild/internal/tui"
	"github.com/HE-Arc/Mind-vs-Wild/pkg/client"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the wired session layer for one process.
type app struct {
	cfg     config.Config
	log     *zap.Logger
	sess    *session.Manager
	dir     *directory.Directory
	invites *invite.Resolver
	close   func() error
}

func wire(cfg config.Config) (*app, error) {
	log, err := logging.New(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	store, closeStore, err := credstore.Open(cfg.StoreKind(), cfg.CredentialPath)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	api := client.New(cfg.APIURL, "", client.WithTimeout(cfg.HTTPTimeout), client.WithLogger(log))
	sess := session.NewManager(api, store, log)
	dir := directory.New(sess, log)
	sess.OnLogin(func(ctx context.Context) error {
		_, err := dir.FetchGroups(ctx)
		return err
	})
	sess.OnLogout(dir.Reset)

	return &app{
		cfg:     cfg,
		log:     log,
		sess:    sess,
		dir:     dir,
		invites: invite.NewResolver(sess, dir, log),
		close: func() error {
			err := closeStore()
			_ = log.Sync() //nolint:errcheck
			return err
		},
	}, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	name := ""
	if len(args) > 0 {
		name = args[0]
		args = args[1:]
	}

	switch name {
	case "--version", "version", "-v":
		fmt.Fprintln(stdout, "mvw "+version)
		return nil
	case "help", "--help", "-h":
		printHelp(stdout)
		return nil
	}

	cmd, ok := commands[name]
	if !ok && name != "" && name != "open" {
		printHelp(stdout)
		return fmt.Errorf("unknown command %q", name)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a, err := wire(cfg)
	if err != nil {
		return err
	}
	defer a.close() //nolint:errcheck

	if !ok {
		start := ""
		if len(args) > 0 {
			start = args[0]
		}
		return a.runTUI(start)
	}
	a.log.Debug("command", zap.String("name", name), zap.Strings("args", args))
	return cmd(ctx, a, args, stdin, stdout)
}

func (a *app) runTUI(start string) error {
	m := tui.NewApp(tui.Deps{
		Session:     a.sess,
		Directory:   a.dir,
		Invites:     a.invites,
		Version:     version,
		FrontendURL: a.cfg.FrontendURL,
		ReleasesURL: tui.ReleasesURL,
		StartPath:   start,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}

var errNotLoggedIn = errors.New("not logged in, run: mvw login")

// requireSession restores the stored session or fails with errNotLoggedIn.
func (a *app) requireSession(ctx context.Context) error {
	if err := a.sess.Restore(ctx); err != nil {
		if errors.Is(err, session.ErrTokenRejected) {
			return errNotLoggedIn
		}
		return err
	}
	if a.sess.Status() != session.StatusAuthenticated {
		return errNotLoggedIn
	}
	return nil
}

// describe turns backend failures into a one-line message.
func describe(err error) error {
	if msg := client.Message(err); msg != "" {
		return errors.New(strings.TrimSpace(msg))
	}
	if client.IsTransport(err) {
		return fmt.Errorf("cannot reach the server: %w", err)
	}
	return err
}

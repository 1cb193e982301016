// Package session owns the client's authentication state.
//
// A Manager holds the {token, user, status} triple for the whole process and
// is its only writer. Login and logout bump an epoch; backend responses
// started under an older epoch are dropped instead of overwriting newer state.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/HE-Arc/Mind-vs-Wild/internal/credstore"
	"github.com/HE-Arc/Mind-vs-Wild/pkg/client"
	"github.com/HE-Arc/Mind-vs-Wild/pkg/domain"
)

var (
	// ErrUnauthenticated is returned when an operation needs a session and there is none.
	ErrUnauthenticated = errors.New("session: not authenticated")
	// ErrInvalidCredentials is returned by Login when the backend rejects the credentials.
	ErrInvalidCredentials = errors.New("session: invalid credentials")
	// ErrTokenRejected is returned by Restore when the backend refuses the stored token.
	ErrTokenRejected = errors.New("session: stored token rejected")
	// ErrSuperseded is returned by Login when a logout or another login won the race.
	ErrSuperseded = errors.New("session: superseded")
)

// Hook runs after a successful login. Errors are logged, never propagated.
type Hook func(ctx context.Context) error

// Snapshot is a read-only copy of the session.
type Snapshot struct {
	Token  string
	User   *domain.User
	Status Status
}

// Manager implements the session state machine.
type Manager struct {
	api   *client.Client
	store credstore.Store
	log   *zap.Logger

	mu     sync.Mutex
	token  string
	user   *domain.User
	status Status
	epoch  uint64

	restores singleflight.Group

	hooksMu  sync.Mutex
	onLogin  []Hook
	onLogout []func()
}

// NewManager returns a manager in StatusUnknown. api must be an anonymous client.
func NewManager(api *client.Client, store credstore.Store, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		api:   api,
		store: store,
		log:   log.Named("session"),
	}
}

// OnLogin registers a warm-up hook run after every successful login.
func (m *Manager) OnLogin(h Hook) {
	m.hooksMu.Lock()
	m.onLogin = append(m.onLogin, h)
	m.hooksMu.Unlock()
}

// OnLogout registers fn to run whenever the session is torn down or replaced
// by a login under another token.
func (m *Manager) OnLogout(fn func()) {
	m.hooksMu.Lock()
	m.onLogout = append(m.onLogout, fn)
	m.hooksMu.Unlock()
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{Token: m.token, Status: m.status}
	if m.user != nil {
		u := *m.user
		s.User = &u
	}
	return s
}

// Status returns the current status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// User returns a copy of the current user, or nil.
func (m *Manager) User() *domain.User {
	return m.Snapshot().User
}

// Client returns a backend client bound to the current token. A 401 seen by
// that client tears the session down.
func (m *Manager) Client() (*client.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusAuthenticated || m.token == "" {
		return nil, ErrUnauthenticated
	}
	return m.api.With(client.WithUnauthorizedHook(m.invalidate)).WithToken(m.token), nil
}

// Login authenticates against the backend. A nil error means the session is
// now Authenticated and the token persisted. On failure nothing is persisted
// and the session is Unauthenticated.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	m.mu.Lock()
	m.epoch++
	epoch := m.epoch
	m.mu.Unlock()

	s, err := m.api.Login(ctx, username, password)
	if err != nil {
		m.mu.Lock()
		dropped := false
		if m.epoch == epoch {
			dropped = m.token != ""
			m.resetLocked(ctx)
		}
		m.mu.Unlock()
		if dropped {
			m.runLogoutHooks()
		}
		m.log.Info("login failed", zap.String("username", username), zap.Error(err))
		if client.IsStatus(err, http.StatusBadRequest) || client.IsStatus(err, http.StatusUnauthorized) {
			return fmt.Errorf("session.Login: %w", ErrInvalidCredentials)
		}
		return fmt.Errorf("session.Login: %w", err)
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		m.log.Info("login response discarded", zap.String("username", username))
		return fmt.Errorf("session.Login: %w", ErrSuperseded)
	}
	prev := m.token
	if err := m.store.Set(ctx, credstore.TokenKey, s.Token); err != nil {
		m.resetLocked(ctx)
		m.mu.Unlock()
		if prev != "" {
			m.runLogoutHooks()
		}
		return fmt.Errorf("session.Login: persist token: %w", err)
	}
	user := s.User
	// A restore that began after this login started shares its epoch.
	m.epoch++
	m.token = s.Token
	m.user = &user
	m.status = StatusAuthenticated
	m.mu.Unlock()

	// The previous session's caches must not leak into this one.
	if prev != "" && prev != s.Token {
		m.runLogoutHooks()
	}
	m.log.Info("logged in", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	m.runLoginHooks(ctx)
	return nil
}

// Register creates an account. It does not change the session.
func (m *Manager) Register(ctx context.Context, req client.RegisterRequest) error {
	if err := m.api.Register(ctx, req); err != nil {
		return fmt.Errorf("session.Register: %w", err)
	}
	return nil
}

// Restore rebuilds the session from the credential store, validating the
// stored token with the backend. Concurrent calls share one validation. A
// cancelled ctx stops the wait, not the validation.
func (m *Manager) Restore(ctx context.Context) error {
	return m.await(ctx, func(ctx context.Context) error { return m.restore(ctx) })
}

// IsAuthenticated reports whether the session is Authenticated, validating a
// stored token first when the status is not yet known. It fails closed.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	if st := m.Status(); st.settled() {
		return st == StatusAuthenticated
	}
	err := m.await(ctx, func(ctx context.Context) error {
		if m.Status().settled() {
			return nil
		}
		return m.restore(ctx)
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return m.Status() == StatusAuthenticated
}

// Logout clears the session and the stored credential, then tells the backend
// on a best-effort basis. It is safe to call when already logged out.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	token := m.token
	m.epoch++
	m.resetLocked(ctx)
	m.mu.Unlock()

	m.runLogoutHooks()
	if token == "" {
		return
	}
	if err := m.api.WithToken(token).Logout(ctx); err != nil {
		m.log.Warn("backend logout failed", zap.Error(err))
	}
	m.log.Info("logged out")
}

func (m *Manager) await(ctx context.Context, fn func(context.Context) error) error {
	detached := context.WithoutCancel(ctx)
	ch := m.restores.DoChan("restore", func() (any, error) {
		return nil, fn(detached)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) restore(ctx context.Context) error {
	m.mu.Lock()
	epoch := m.epoch
	m.mu.Unlock()

	token, err := m.store.Get(ctx, credstore.TokenKey)
	if err != nil {
		m.mu.Lock()
		if m.epoch == epoch {
			m.clearLocked()
			m.status = StatusUnauthenticated
		}
		m.mu.Unlock()
		if errors.Is(err, credstore.ErrNotFound) {
			return nil
		}
		m.log.Warn("credential store unreadable", zap.Error(err))
		return fmt.Errorf("session.Restore: %w", err)
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return nil
	}
	if m.status != StatusAuthenticated {
		m.status = StatusRestoring
	}
	m.mu.Unlock()

	user, err := m.api.WithToken(token).GetUser(ctx)

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		m.log.Debug("stale validation discarded")
		return nil
	}
	if err != nil {
		m.status = StatusInvalid
		m.log.Info("stored token invalid", zap.Error(err))
		m.resetLocked(ctx)
		m.mu.Unlock()
		m.runLogoutHooks()
		if client.IsTransport(err) {
			return fmt.Errorf("session.Restore: %w", err)
		}
		return fmt.Errorf("session.Restore: %w", ErrTokenRejected)
	}
	m.token = token
	m.user = user
	m.status = StatusAuthenticated
	m.mu.Unlock()

	m.log.Info("session restored", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	return nil
}

// invalidate tears the session down after the backend rejected token,
// unless the session has already moved on to another token.
func (m *Manager) invalidate(token string) {
	m.mu.Lock()
	if m.token == "" || m.token != token {
		m.mu.Unlock()
		return
	}
	m.status = StatusInvalid
	m.resetLocked(context.Background())
	m.mu.Unlock()

	m.log.Info("token rejected by backend, session cleared")
	m.runLogoutHooks()
}

// resetLocked clears memory and the stored credential. m.mu must be held.
func (m *Manager) resetLocked(ctx context.Context) {
	m.clearLocked()
	m.status = StatusUnauthenticated
	if err := m.store.Remove(context.WithoutCancel(ctx), credstore.TokenKey); err != nil {
		m.log.Warn("remove credential failed", zap.Error(err))
	}
}

func (m *Manager) clearLocked() {
	m.token = ""
	m.user = nil
}

func (m *Manager) runLoginHooks(ctx context.Context) {
	m.hooksMu.Lock()
	hooks := append([]Hook(nil), m.onLogin...)
	m.hooksMu.Unlock()
	for _, h := range hooks {
		if err := h(ctx); err != nil {
			m.log.Warn("login warm-up failed", zap.Error(err))
		}
	}
}

func (m *Manager) runLogoutHooks() {
	m.hooksMu.Lock()
	hooks := append([]func(){}, m.onLogout...)
	m.hooksMu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

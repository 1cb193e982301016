package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HE-Arc/Mind-vs-Wild/internal/credstore"
	"github.com/HE-Arc/Mind-vs-Wild/internal/testkit/fakeapi"
	"github.com/HE-Arc/Mind-vs-Wild/pkg/client"
)

func newManager(t *testing.T) (*Manager, *fakeapi.Server, *credstore.MemoryStore) {
	t.Helper()
	srv := fakeapi.New(t)
	store := credstore.NewMemoryStore()
	return NewManager(client.New(srv.URL, ""), store, nil), srv, store
}

func storedToken(t *testing.T, s credstore.Store) string {
	t.Helper()
	v, err := s.Get(context.Background(), credstore.TokenKey)
	if errors.Is(err, credstore.ErrNotFound) {
		return ""
	}
	require.NoError(t, err)
	return v
}

func TestLogin_PersistsAndAuthenticates(t *testing.T) {
	m, srv, store := newManager(t)
	alice := srv.AddUser("alice", "pw")
	ctx := context.Background()

	require.NoError(t, m.Login(ctx, "alice", "pw"))

	snap := m.Snapshot()
	assert.Equal(t, StatusAuthenticated, snap.Status)
	require.NotNil(t, snap.User)
	assert.Equal(t, alice, *snap.User)
	assert.NotEmpty(t, snap.Token)
	assert.Equal(t, snap.Token, storedToken(t, store))
	assert.True(t, m.IsAuthenticated(ctx))
}

func TestLogin_RestoreYieldsSameUser(t *testing.T) {
	m, srv, store := newManager(t)
	srv.AddUser("alice", "pw")
	ctx := context.Background()
	require.NoError(t, m.Login(ctx, "alice", "pw"))
	want := m.User()

	// a fresh process over the same store
	m2 := NewManager(client.New(srv.URL, ""), store, nil)
	require.NoError(t, m2.Restore(ctx))

	assert.Equal(t, StatusAuthenticated, m2.Status())
	assert.Equal(t, want, m2.User())
	assert.Equal(t, 1, srv.Hits(fakeapi.RouteGetUser))
}

func TestLogin_FailureLeavesNoState(t *testing.T) {
	m, srv, store := newManager(t)
	srv.AddUser("alice", "pw")
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, credstore.TokenKey, "stale"))

	err := m.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	snap := m.Snapshot()
	assert.Equal(t, StatusUnauthenticated, snap.Status)
	assert.Empty(t, snap.Token)
	assert.Nil(t, snap.User)
	assert.Empty(t, storedToken(t, store))
	assert.False(t, m.IsAuthenticated(ctx))
}

func TestLogin_TransportFailure(t *testing.T) {
	m, srv, _ := newManager(t)
	srv.Close()

	err := m.Login(context.Background(), "alice", "pw")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidCredentials))
	assert.True(t, client.IsTransport(err))
	assert.Equal(t, StatusUnauthenticated, m.Status())
}

func TestLogin_HookErrorsDoNotFailLogin(t *testing.T) {
	m, srv, _ := newManager(t)
	srv.AddUser("alice", "pw")
	var ran atomic.Int32
	m.OnLogin(func(context.Context) error {
		ran.Add(1)
		return errors.New("warm-up failed")
	})
	m.OnLogin(func(context.Context) error {
		ran.Add(1)
		return nil
	})

	require.NoError(t, m.Login(context.Background(), "alice", "pw"))
	assert.Equal(t, int32(2), ran.Load())
	assert.Equal(t, StatusAuthenticated, m.Status())
}

func TestLogout_ClearsEverything(t *testing.T) {
	m, srv, store := newManager(t)
	srv.AddUser("alice", "pw")
	ctx := context.Background()
	require.NoError(t, m.Login(ctx, "alice", "pw"))
	token := m.Snapshot().Token

	var resets int
	m.OnLogout(func() { resets++ })
	m.Logout(ctx)

	assert.False(t, m.IsAuthenticated(ctx))
	assert.Equal(t, StatusUnauthenticated, m.Status())
	assert.Empty(t, storedToken(t, store))
	assert.False(t, srv.TokenValid(token), "backend token should be revoked")
	assert.Equal(t, 1, resets)

	_, err := m.Client()
	require.ErrorIs(t, err, ErrUnauthenticated)

	// idempotent
	m.Logout(ctx)
	assert.Equal(t, StatusUnauthenticated, m.Status())
	assert.Equal(t, 1, srv.Hits(fakeapi.RouteLogout))
}

func TestLogout_BackendUnreachableStillClears(t *testing.T) {
	m, srv, store := newManager(t)
	srv.AddUser("alice", "pw")
	ctx := context.Background()
	require.NoError(t, m.Login(ctx, "alice", "pw"))
	srv.Close()

	m.Logout(ctx)
	assert.Equal(t, StatusUnauthenticated, m.Status())
	assert.Empty(t, storedToken(t, store))
}

func TestRestore_EmptyStore(t *testing.T) {
	m, srv, _ := newManager(t)
	ctx := context.Background()

	require.NoError(t, m.Restore(ctx))
	require.NoError(t, m.Restore(ctx))
	assert.Equal(t, StatusUnauthenticated, m.Status())
	assert.Nil(t, m.User())
	assert.Zero(t, srv.Hits(fakeapi.RouteGetUser))
}

func TestRestore_RejectedTokenTearsDown(t *testing.T) {
	m, srv, store := newManager(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, credstore.TokenKey, "revoked"))
	var resets int
	m.OnLogout(func() { resets++ })

	err := m.Restore(ctx)
	require.ErrorIs(t, err, ErrTokenRejected)
	assert.Equal(t, StatusUnauthenticated, m.Status())
	assert.Empty(t, storedToken(t, store))
	assert.Equal(t, 1, resets)
	assert.Equal(t, 1, srv.Hits(fakeapi.RouteGetUser))
}

func TestIsAuthenticated_TransportFailureFailsClosed(t *testing.T) {
	m, srv, store := newManager(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, credstore.TokenKey, "whatever"))
	srv.Close()

	assert.False(t, m.IsAuthenticated(ctx))
	assert.Equal(t, StatusUnauthenticated, m.Status())
}

func TestIsAuthenticated_CoalescesValidation(t *testing.T) {
	m, srv, store := newManager(t)
	srv.AddUser("alice", "pw")
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, credstore.TokenKey, srv.IssueToken("alice")))

	release := make(chan struct{})
	arrived := make(chan struct{}, 1)
	srv.Before(fakeapi.RouteGetUser, func() {
		arrived <- struct{}{}
		<-release
	})

	const callers = 8
	results := make([]bool, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = m.IsAuthenticated(ctx)
		}()
	}

	<-arrived
	// let the other callers pile onto the in-flight validation
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, got := range results {
		assert.True(t, got, "caller %d", i)
	}
	assert.Equal(t, 1, srv.Hits(fakeapi.RouteGetUser))
	assert.Equal(t, StatusAuthenticated, m.Status())
}

func TestRestore_StaleResultDiscardedAfterLogin(t *testing.T) {
	m, srv, store := newManager(t)
	srv.AddUser("alice", "pw")
	bob := srv.AddUser("bob", "pw")
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, credstore.TokenKey, srv.IssueToken("alice")))

	release := make(chan struct{})
	arrived := make(chan struct{})
	var once sync.Once
	srv.Before(fakeapi.RouteGetUser, func() {
		once.Do(func() { close(arrived) })
		<-release
	})

	done := make(chan error, 1)
	go func() { done <- m.Restore(ctx) }()
	<-arrived

	require.NoError(t, m.Login(ctx, "bob", "pw"))
	close(release)
	require.NoError(t, <-done)

	snap := m.Snapshot()
	assert.Equal(t, StatusAuthenticated, snap.Status)
	require.NotNil(t, snap.User)
	assert.Equal(t, bob.ID, snap.User.ID)
	assert.Equal(t, snap.Token, storedToken(t, store))
}

func TestRestore_StaleResultDiscardedAfterLogout(t *testing.T) {
	m, srv, store := newManager(t)
	srv.AddUser("alice", "pw")
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, credstore.TokenKey, srv.IssueToken("alice")))

	release := make(chan struct{})
	arrived := make(chan struct{})
	var once sync.Once
	srv.Before(fakeapi.RouteGetUser, func() {
		once.Do(func() { close(arrived) })
		<-release
	})

	done := make(chan error, 1)
	go func() { done <- m.Restore(ctx) }()
	<-arrived

	m.Logout(ctx)
	close(release)
	require.NoError(t, <-done)

	snap := m.Snapshot()
	assert.Equal(t, StatusUnauthenticated, snap.Status)
	assert.Empty(t, snap.Token)
	assert.Nil(t, snap.User)
	assert.Empty(t, storedToken(t, store))
	assert.False(t, m.IsAuthenticated(ctx))
}

func TestRestore_CancelledWaitDoesNotAbortValidation(t *testing.T) {
	m, srv, store := newManager(t)
	srv.AddUser("alice", "pw")
	require.NoError(t, store.Set(context.Background(), credstore.TokenKey, srv.IssueToken("alice")))

	release := make(chan struct{})
	arrived := make(chan struct{})
	var once sync.Once
	srv.Before(fakeapi.RouteGetUser, func() {
		once.Do(func() { close(arrived) })
		<-release
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Restore(ctx) }()
	<-arrived
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(release)
	assert.True(t, m.IsAuthenticated(context.Background()))
	assert.Equal(t, 1, srv.Hits(fakeapi.RouteGetUser))
}

func TestClient_UnauthorizedInvalidatesSession(t *testing.T) {
	m, srv, store := newManager(t)
	srv.AddUser("alice", "pw")
	ctx := context.Background()
	require.NoError(t, m.Login(ctx, "alice", "pw"))
	var resets int
	m.OnLogout(func() { resets++ })

	c, err := m.Client()
	require.NoError(t, err)
	srv.RevokeToken(c.Token())

	_, err = c.ListGroups(ctx)
	require.True(t, client.IsStatus(err, 401))
	assert.Equal(t, StatusUnauthenticated, m.Status())
	assert.Empty(t, storedToken(t, store))
	assert.Equal(t, 1, resets)
}

func TestClient_StaleTokenDoesNotInvalidateNewSession(t *testing.T) {
	m, srv, _ := newManager(t)
	srv.AddUser("alice", "pw")
	ctx := context.Background()
	require.NoError(t, m.Login(ctx, "alice", "pw"))
	old, err := m.Client()
	require.NoError(t, err)

	require.NoError(t, m.Login(ctx, "alice", "pw"))
	srv.RevokeToken(old.Token())

	_, err = old.ListGroups(ctx)
	require.Error(t, err)
	assert.Equal(t, StatusAuthenticated, m.Status())
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "unknown", StatusUnknown.String())
	assert.Equal(t, "authenticated", StatusAuthenticated.String())
	assert.Equal(t, "status(?)", Status(42).String())
}

package directory

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HE-Arc/Mind-vs-Wild/internal/testkit/fakeapi"
	"github.com/HE-Arc/Mind-vs-Wild/pkg/client"
	"github.com/HE-Arc/Mind-vs-Wild/pkg/domain"
)

type staticSource struct {
	c   *client.Client
	err error
}

func (s staticSource) Client() (*client.Client, error) { return s.c, s.err }

func setup(t *testing.T) (*Directory, *fakeapi.Server) {
	t.Helper()
	srv := fakeapi.New(t)
	srv.AddUser("alice", "pw")
	srv.AddUser("bob", "pw")
	c := client.New(srv.URL, srv.IssueToken("alice"))
	return New(staticSource{c: c}, nil), srv
}

func TestFetchGroups(t *testing.T) {
	d, srv := setup(t)
	g1 := srv.AddGroup("Hikers", "alice")
	srv.AddGroup("Not mine", "bob")
	g3 := srv.AddGroup("Climbers", "bob", "alice")

	groups, err := d.FetchGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, g1.ID, groups[0].ID)
	assert.Equal(t, g3.ID, groups[1].ID)
	assert.Equal(t, groups, d.Groups())
}

func TestFetchGroup_SetsCurrent(t *testing.T) {
	d, srv := setup(t)
	g := srv.AddGroup("Hikers", "alice", "bob")
	ctx := context.Background()

	got, err := d.FetchGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, got.Members, 2)
	require.NotNil(t, d.CurrentGroup())
	assert.Equal(t, g.ID, d.CurrentGroup().ID)

	_, err = d.FetchGroup(ctx, 9999)
	require.True(t, client.IsStatus(err, http.StatusNotFound))
	assert.Equal(t, g.ID, d.CurrentGroup().ID, "failed fetch must not clear current group")
}

func TestCreateGroup_AppendsToCache(t *testing.T) {
	d, _ := setup(t)
	ctx := context.Background()

	g, err := d.CreateGroup(ctx, "  Trekkers ", "weekend walks")
	require.NoError(t, err)
	assert.Equal(t, "Trekkers", g.Name)
	assert.True(t, g.IsAdmin(g.CreatedBy.ID))

	cached, ok := d.Group(g.ID)
	require.True(t, ok)
	assert.Equal(t, g, cached)

	_, err = d.CreateGroup(ctx, "", "")
	require.True(t, client.IsStatus(err, http.StatusBadRequest))
	assert.Len(t, d.Groups(), 1)
}

func TestInviteUser_LeavesCacheAlone(t *testing.T) {
	d, srv := setup(t)
	g := srv.AddGroup("Hikers", "alice")
	ctx := context.Background()
	_, err := d.FetchGroups(ctx)
	require.NoError(t, err)
	before := d.Groups()

	open, err := d.InviteUser(ctx, g.ID, "")
	require.NoError(t, err)
	assert.NotEmpty(t, open.Token)
	assert.Nil(t, open.InvitedUser)
	assert.Contains(t, open.URL, "/groups/accept-invite/"+open.Token)

	nominative, err := d.InviteUser(ctx, g.ID, "bob")
	require.NoError(t, err)
	require.NotNil(t, nominative.InvitedUser)
	assert.Equal(t, "bob", *nominative.InvitedUser)

	_, err = d.InviteUser(ctx, g.ID, "nobody")
	require.True(t, client.IsStatus(err, http.StatusBadRequest))

	assert.Equal(t, before, d.Groups())
}

func TestInviteUser_NotAdmin(t *testing.T) {
	d, srv := setup(t)
	g := srv.AddGroup("Bob's", "bob", "alice")

	_, err := d.InviteUser(context.Background(), g.ID, "")
	require.True(t, client.IsStatus(err, http.StatusForbidden))
}

func TestLeaveGroup(t *testing.T) {
	d, srv := setup(t)
	g := srv.AddGroup("Bob's", "bob", "alice")
	keep := srv.AddGroup("Mine", "alice")
	ctx := context.Background()
	_, err := d.FetchGroups(ctx)
	require.NoError(t, err)
	_, err = d.FetchGroup(ctx, g.ID)
	require.NoError(t, err)

	require.NoError(t, d.LeaveGroup(ctx, g.ID))
	_, ok := d.Group(g.ID)
	assert.False(t, ok)
	_, ok = d.Group(keep.ID)
	assert.True(t, ok)
	assert.Nil(t, d.CurrentGroup())
}

func TestLeaveGroup_LastAdminWithMembers(t *testing.T) {
	d, srv := setup(t)
	g := srv.AddGroup("Mine", "alice", "bob")
	ctx := context.Background()
	_, err := d.FetchGroups(ctx)
	require.NoError(t, err)

	err = d.LeaveGroup(ctx, g.ID)
	require.True(t, client.IsStatus(err, http.StatusBadRequest))
	assert.Contains(t, client.Message(err), "administrateur")
	_, ok := d.Group(g.ID)
	assert.True(t, ok, "cache must be unchanged on failure")
}

func TestMergeGroup_Idempotent(t *testing.T) {
	d, _ := setup(t)
	g := domain.Group{ID: 4, Name: "A"}
	gen := d.Generation()

	assert.True(t, d.MergeGroup(gen, g))
	assert.True(t, d.MergeGroup(gen, g))
	g.Name = "B"
	assert.True(t, d.MergeGroup(gen, g))

	groups := d.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, "B", groups[0].Name)
}

func TestMergeGroup_DroppedAfterReset(t *testing.T) {
	d, _ := setup(t)
	gen := d.Generation()

	d.Reset()
	assert.NotEqual(t, gen, d.Generation())
	assert.False(t, d.MergeGroup(gen, domain.Group{ID: 4, Name: "A"}))
	assert.Empty(t, d.Groups())

	assert.True(t, d.MergeGroup(d.Generation(), domain.Group{ID: 4, Name: "A"}))
	assert.Len(t, d.Groups(), 1)
}

func TestRooms_CreateFetchJoinLeave(t *testing.T) {
	d, srv := setup(t)
	g := srv.AddGroup("Hikers", "bob", "alice")
	other := srv.AddRoom("Bob's room", &g.ID, "bob")
	ctx := context.Background()

	r, err := d.CreateRoom(ctx, "Quiz night", &g.ID)
	require.NoError(t, err)
	require.NotNil(t, r.GroupID)
	assert.Equal(t, g.ID, *r.GroupID)
	assert.Len(t, d.Rooms(), 1)

	rooms, err := d.FetchRooms(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 2)

	joined, err := d.JoinRoom(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, other.Code, joined.Code)
	require.NotNil(t, d.CurrentRoom())
	assert.Equal(t, other.Code, d.CurrentRoom().Code)
	assert.Len(t, d.Rooms(), 2, "joining must not touch the list")

	require.NoError(t, d.LeaveRoom(ctx))
	assert.Nil(t, d.CurrentRoom())
	assert.Equal(t, 1, srv.Hits(fakeapi.RouteLeaveRoom))

	// no current room: nothing to do
	require.NoError(t, d.LeaveRoom(ctx))
	assert.Equal(t, 1, srv.Hits(fakeapi.RouteLeaveRoom))
}

func TestJoinRoomByCode_SetsCurrentOnly(t *testing.T) {
	d, srv := setup(t)
	room := srv.AddRoom("Open", nil, "bob")
	ctx := context.Background()

	got, err := d.JoinRoomByCode(ctx, " "+room.Code+" ")
	require.NoError(t, err)
	assert.Equal(t, room.Code, got.Code)
	assert.Equal(t, room.Code, d.CurrentRoom().Code)
	assert.Empty(t, d.Rooms())

	_, err = d.JoinRoomByCode(ctx, "NOPE")
	require.True(t, client.IsStatus(err, http.StatusNotFound))
	assert.Equal(t, room.Code, d.CurrentRoom().Code, "failed join keeps the current room")

	_, err = d.JoinRoomByCode(ctx, "  ")
	require.ErrorIs(t, err, ErrEmptyCode)
}

func TestJoinRoomByCode_ForeignGroup(t *testing.T) {
	d, srv := setup(t)
	g := srv.AddGroup("Private", "bob")
	room := srv.AddRoom("Secret", &g.ID, "bob")

	_, err := d.JoinRoomByCode(context.Background(), room.Code)
	require.True(t, client.IsStatus(err, http.StatusForbidden))
	assert.Nil(t, d.CurrentRoom())
}

func TestJoinRoom_UnknownID(t *testing.T) {
	d, srv := setup(t)

	_, err := d.JoinRoom(context.Background(), 12345)
	require.ErrorIs(t, err, ErrUnknownRoom)
	assert.Equal(t, 1, srv.Hits(fakeapi.RouteListRooms))
}

func TestFetchRoom(t *testing.T) {
	d, srv := setup(t)
	room := srv.AddRoom("Open", nil, "alice")

	got, err := d.FetchRoom(context.Background(), room.Code)
	require.NoError(t, err)
	assert.Equal(t, room.Name, got.Name)
	assert.Equal(t, room.Code, d.CurrentRoom().Code)
}

func TestReset_DropsInFlightResults(t *testing.T) {
	d, srv := setup(t)
	srv.AddGroup("Hikers", "alice")
	srv.Before(fakeapi.RouteListGroups, d.Reset)

	groups, err := d.FetchGroups(context.Background())
	require.NoError(t, err)
	assert.Len(t, groups, 1)
	assert.Empty(t, d.Groups(), "result of a call started before Reset must not be cached")
}

func TestReset_ClearsEverything(t *testing.T) {
	d, srv := setup(t)
	g := srv.AddGroup("Hikers", "alice")
	room := srv.AddRoom("Open", &g.ID, "alice")
	ctx := context.Background()
	_, err := d.FetchGroup(ctx, g.ID)
	require.NoError(t, err)
	_, err = d.FetchGroups(ctx)
	require.NoError(t, err)
	_, err = d.JoinRoomByCode(ctx, room.Code)
	require.NoError(t, err)

	d.Reset()
	assert.Empty(t, d.Groups())
	assert.Empty(t, d.Rooms())
	assert.Nil(t, d.CurrentGroup())
	assert.Nil(t, d.CurrentRoom())
}

func TestNoSession(t *testing.T) {
	errNoSession := errors.New("no session")
	d := New(staticSource{err: errNoSession}, nil)
	ctx := context.Background()

	_, err := d.FetchGroups(ctx)
	require.ErrorIs(t, err, errNoSession)
	_, err = d.CreateRoom(ctx, "x", nil)
	require.ErrorIs(t, err, errNoSession)
	require.NoError(t, d.LeaveRoom(ctx))
}

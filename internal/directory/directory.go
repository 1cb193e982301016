// Package directory caches the groups and rooms visible to the signed-in user
// and performs the backend operations that change them.
//
// The Directory is the only writer of its caches. Backend calls run without the
// lock held; results are applied only if no Reset happened in the meantime.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/HE-Arc/Mind-vs-Wild/pkg/client"
	"github.com/HE-Arc/Mind-vs-Wild/pkg/domain"
)

var (
	// ErrUnknownRoom is returned by JoinRoom when no cached room has the id.
	ErrUnknownRoom = errors.New("directory: unknown room")
	// ErrEmptyCode is returned when a room code is blank.
	ErrEmptyCode = errors.New("directory: empty room code")
)

// ClientSource hands out a backend client bound to the current session.
type ClientSource interface {
	Client() (*client.Client, error)
}

// Directory holds the group and room caches.
type Directory struct {
	src ClientSource
	log *zap.Logger

	mu           sync.RWMutex
	gen          uint64
	groups       []domain.Group
	currentGroup *domain.Group
	rooms        []domain.Room
	currentRoom  *domain.Room
}

// New returns an empty Directory.
func New(src ClientSource, log *zap.Logger) *Directory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Directory{src: src, log: log.Named("directory")}
}

// --- reads ---

// Groups returns a copy of the cached groups.
func (d *Directory) Groups() []domain.Group {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]domain.Group(nil), d.groups...)
}

// Group returns the cached group with id.
func (d *Directory) Group(id int64) (domain.Group, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if i := indexGroup(d.groups, id); i >= 0 {
		return d.groups[i], true
	}
	return domain.Group{}, false
}

// CurrentGroup returns the group last fetched by FetchGroup, or nil.
func (d *Directory) CurrentGroup() *domain.Group {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.currentGroup == nil {
		return nil
	}
	g := *d.currentGroup
	return &g
}

// Rooms returns a copy of the cached rooms.
func (d *Directory) Rooms() []domain.Room {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]domain.Room(nil), d.rooms...)
}

// CurrentRoom returns the room last fetched or joined, or nil.
func (d *Directory) CurrentRoom() *domain.Room {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.currentRoom == nil {
		return nil
	}
	r := *d.currentRoom
	return &r
}

// --- groups ---

// FetchGroups replaces the group cache with the backend's list.
func (d *Directory) FetchGroups(ctx context.Context) ([]domain.Group, error) {
	c, gen, err := d.client()
	if err != nil {
		return nil, fmt.Errorf("directory.FetchGroups: %w", err)
	}
	groups, err := c.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("directory.FetchGroups: %w", err)
	}
	d.apply(gen, func() { d.groups = append([]domain.Group(nil), groups...) })
	d.log.Debug("groups fetched", zap.Int("count", len(groups)))
	return groups, nil
}

// FetchGroup loads one group and makes it the current group.
func (d *Directory) FetchGroup(ctx context.Context, id int64) (domain.Group, error) {
	c, gen, err := d.client()
	if err != nil {
		return domain.Group{}, fmt.Errorf("directory.FetchGroup: %w", err)
	}
	g, err := c.GetGroup(ctx, id)
	if err != nil {
		return domain.Group{}, fmt.Errorf("directory.FetchGroup: %w", err)
	}
	d.apply(gen, func() {
		cur := *g
		d.currentGroup = &cur
		if i := indexGroup(d.groups, g.ID); i >= 0 {
			d.groups[i] = *g
		}
	})
	return *g, nil
}

// CreateGroup creates a group and appends it to the cache.
func (d *Directory) CreateGroup(ctx context.Context, name, description string) (domain.Group, error) {
	c, gen, err := d.client()
	if err != nil {
		return domain.Group{}, fmt.Errorf("directory.CreateGroup: %w", err)
	}
	g, err := c.CreateGroup(ctx, client.CreateGroupRequest{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
	})
	if err != nil {
		return domain.Group{}, fmt.Errorf("directory.CreateGroup: %w", err)
	}
	d.apply(gen, func() { d.mergeGroupLocked(*g) })
	d.log.Info("group created", zap.Int64("group_id", g.ID))
	return *g, nil
}

// InviteUser asks the backend for an invite into groupID. An empty username
// mints an open invite. The cache is not touched.
func (d *Directory) InviteUser(ctx context.Context, groupID int64, username string) (domain.InviteGrant, error) {
	c, _, err := d.client()
	if err != nil {
		return domain.InviteGrant{}, fmt.Errorf("directory.InviteUser: %w", err)
	}
	grant, err := c.InviteToGroup(ctx, groupID, strings.TrimSpace(username))
	if err != nil {
		return domain.InviteGrant{}, fmt.Errorf("directory.InviteUser: %w", err)
	}
	d.log.Info("invite minted", zap.Int64("group_id", groupID), zap.Bool("nominative", grant.InvitedUser != nil))
	return *grant, nil
}

// LeaveGroup leaves groupID and drops it from the cache.
func (d *Directory) LeaveGroup(ctx context.Context, groupID int64) error {
	c, gen, err := d.client()
	if err != nil {
		return fmt.Errorf("directory.LeaveGroup: %w", err)
	}
	if err := c.LeaveGroup(ctx, groupID); err != nil {
		return fmt.Errorf("directory.LeaveGroup: %w", err)
	}
	d.apply(gen, func() {
		if i := indexGroup(d.groups, groupID); i >= 0 {
			d.groups = append(d.groups[:i:i], d.groups[i+1:]...)
		}
		if d.currentGroup != nil && d.currentGroup.ID == groupID {
			d.currentGroup = nil
		}
	})
	d.log.Info("group left", zap.Int64("group_id", groupID))
	return nil
}

// Generation identifies the current cache contents. Reset changes it.
func (d *Directory) Generation() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.gen
}

// MergeGroup inserts g into the cache, replacing an entry with the same id,
// unless the caches were reset since gen was read. Merging the same group
// twice leaves a single entry.
func (d *Directory) MergeGroup(gen uint64, g domain.Group) bool {
	merged := false
	d.apply(gen, func() {
		d.mergeGroupLocked(g)
		merged = true
	})
	return merged
}

// --- rooms ---

// FetchRooms replaces the room cache with the backend's list.
func (d *Directory) FetchRooms(ctx context.Context) ([]domain.Room, error) {
	c, gen, err := d.client()
	if err != nil {
		return nil, fmt.Errorf("directory.FetchRooms: %w", err)
	}
	rooms, err := c.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("directory.FetchRooms: %w", err)
	}
	d.apply(gen, func() { d.rooms = append([]domain.Room(nil), rooms...) })
	d.log.Debug("rooms fetched", zap.Int("count", len(rooms)))
	return rooms, nil
}

// FetchRoom loads the room with code and makes it the current room.
func (d *Directory) FetchRoom(ctx context.Context, code string) (domain.Room, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Room{}, fmt.Errorf("directory.FetchRoom: %w", ErrEmptyCode)
	}
	c, gen, err := d.client()
	if err != nil {
		return domain.Room{}, fmt.Errorf("directory.FetchRoom: %w", err)
	}
	r, err := c.GetRoom(ctx, code)
	if err != nil {
		return domain.Room{}, fmt.Errorf("directory.FetchRoom: %w", err)
	}
	d.apply(gen, func() {
		cur := *r
		d.currentRoom = &cur
	})
	return *r, nil
}

// CreateRoom creates a room, inside groupID when non-nil, and appends it to
// the cache.
func (d *Directory) CreateRoom(ctx context.Context, name string, groupID *int64) (domain.Room, error) {
	c, gen, err := d.client()
	if err != nil {
		return domain.Room{}, fmt.Errorf("directory.CreateRoom: %w", err)
	}
	r, err := c.CreateRoom(ctx, client.CreateRoomRequest{Name: strings.TrimSpace(name), GroupID: groupID})
	if err != nil {
		return domain.Room{}, fmt.Errorf("directory.CreateRoom: %w", err)
	}
	d.apply(gen, func() { d.rooms = append(d.rooms, *r) })
	d.log.Info("room created", zap.Int64("room_id", r.ID), zap.String("code", r.Code))
	return *r, nil
}

// JoinRoomByCode joins the room with code and makes it the current room.
// The room list is left as is.
func (d *Directory) JoinRoomByCode(ctx context.Context, code string) (domain.Room, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Room{}, fmt.Errorf("directory.JoinRoomByCode: %w", ErrEmptyCode)
	}
	c, gen, err := d.client()
	if err != nil {
		return domain.Room{}, fmt.Errorf("directory.JoinRoomByCode: %w", err)
	}
	r, err := c.JoinRoom(ctx, code)
	if err != nil {
		return domain.Room{}, fmt.Errorf("directory.JoinRoomByCode: %w", err)
	}
	d.apply(gen, func() {
		cur := *r
		d.currentRoom = &cur
	})
	d.log.Info("room joined", zap.String("code", r.Code))
	return *r, nil
}

// JoinRoom joins a room by id, resolving the id to its code through the room
// cache. The cache is refreshed once when the id is not in it.
func (d *Directory) JoinRoom(ctx context.Context, id int64) (domain.Room, error) {
	code, ok := d.roomCode(id)
	if !ok {
		if _, err := d.FetchRooms(ctx); err != nil {
			return domain.Room{}, fmt.Errorf("directory.JoinRoom: %w", err)
		}
		if code, ok = d.roomCode(id); !ok {
			return domain.Room{}, fmt.Errorf("directory.JoinRoom: %w", ErrUnknownRoom)
		}
	}
	return d.JoinRoomByCode(ctx, code)
}

// LeaveRoom leaves the current room and clears it. With no current room it
// does nothing.
func (d *Directory) LeaveRoom(ctx context.Context) error {
	cur := d.CurrentRoom()
	if cur == nil {
		return nil
	}
	c, gen, err := d.client()
	if err != nil {
		return fmt.Errorf("directory.LeaveRoom: %w", err)
	}
	if err := c.LeaveRoom(ctx, cur.Code); err != nil {
		return fmt.Errorf("directory.LeaveRoom: %w", err)
	}
	d.apply(gen, func() {
		if d.currentRoom != nil && d.currentRoom.Code == cur.Code {
			d.currentRoom = nil
		}
	})
	d.log.Info("room left", zap.String("code", cur.Code))
	return nil
}

// Reset empties every cache. Results of calls in flight are dropped.
func (d *Directory) Reset() {
	d.mu.Lock()
	d.gen++
	d.groups = nil
	d.currentGroup = nil
	d.rooms = nil
	d.currentRoom = nil
	d.mu.Unlock()
}

func (d *Directory) client() (*client.Client, uint64, error) {
	d.mu.RLock()
	gen := d.gen
	d.mu.RUnlock()
	c, err := d.src.Client()
	if err != nil {
		return nil, 0, err
	}
	return c, gen, nil
}

// apply runs fn under the lock unless the caches were reset since gen.
func (d *Directory) apply(gen uint64, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen != gen {
		d.log.Debug("result dropped after reset")
		return
	}
	fn()
}

func (d *Directory) mergeGroupLocked(g domain.Group) {
	if i := indexGroup(d.groups, g.ID); i >= 0 {
		d.groups[i] = g
		return
	}
	d.groups = append(d.groups, g)
}

func (d *Directory) roomCode(id int64) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, r := range d.rooms {
		if r.ID == id {
			return r.Code, true
		}
	}
	return "", false
}

func indexGroup(groups []domain.Group, id int64) int {
	for i, g := range groups {
		if g.ID == id {
			return i
		}
	}
	return -1
}

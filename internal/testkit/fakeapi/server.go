// Package fakeapi is an in-memory stand-in for the Mind vs Wild backend.
//
// It serves the same routes, status codes and error bodies as the real
// service over httptest, so packages that talk to the backend can be tested
// end to end without a network. Every request is counted per route and a test
// may install a hook that runs before a route is handled.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HE-Arc/Mind-vs-Wild/pkg/domain"
)

// Route names accepted by Hits and Before.
const (
	RouteLogin        = "login"
	RouteRegister     = "register"
	RouteGetUser      = "get_user"
	RouteLogout       = "logout"
	RouteListGroups   = "list_groups"
	RouteCreateGroup  = "create_group"
	RouteGetGroup     = "get_group"
	RouteInvite       = "invite"
	RouteAcceptInvite = "accept_invite"
	RouteLeaveGroup   = "leave_group"
	RouteListRooms    = "list_rooms"
	RouteCreateRoom   = "create_room"
	RouteGetRoom      = "get_room"
	RouteJoinRoom     = "join_room"
	RouteLeaveRoom    = "leave_room"
)

// InviteTTL matches the backend's invitation lifetime.
const InviteTTL = 7 * 24 * time.Hour

type account struct {
	user     domain.User
	password string
}

type invitation struct {
	groupID     int64
	invitedUser string
	expiresAt   time.Time
	used        bool
}

// Server is a running fake backend.
type Server struct {
	*httptest.Server

	// FrontendURL prefixes minted invite URLs.
	FrontendURL string
	// Now is the clock used for invite expiry.
	Now func() time.Time

	mu       sync.Mutex
	nextID   int64
	nextTok  int
	accounts map[string]*account
	tokens   map[string]string
	groups   map[int64]*domain.Group
	invites  map[string]*invitation
	rooms    map[string]*domain.Room
	hits     map[string]int
	before   map[string]func()
}

// New starts a fake backend that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		FrontendURL: "http://frontend.test",
		Now:         time.Now,
		accounts:    make(map[string]*account),
		tokens:      make(map[string]string),
		groups:      make(map[int64]*domain.Group),
		invites:     make(map[string]*invitation),
		rooms:       make(map[string]*domain.Room),
		hits:        make(map[string]int),
		before:      make(map[string]func()),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login/{$}", s.route(RouteLogin, false, s.handleLogin))
	mux.HandleFunc("POST /api/auth/register/{$}", s.route(RouteRegister, false, s.handleRegister))
	mux.HandleFunc("GET /api/auth/get_user/{$}", s.route(RouteGetUser, true, s.handleGetUser))
	mux.HandleFunc("POST /api/auth/logout/{$}", s.route(RouteLogout, true, s.handleLogout))
	mux.HandleFunc("GET /api/groups/{$}", s.route(RouteListGroups, true, s.handleListGroups))
	mux.HandleFunc("POST /api/groups/{$}", s.route(RouteCreateGroup, true, s.handleCreateGroup))
	mux.HandleFunc("GET /api/groups/{id}/{$}", s.route(RouteGetGroup, true, s.handleGetGroup))
	// accept-invite shares its shape with the detail actions, so one pattern
	// serves both and dispatches on the first segment.
	mux.HandleFunc("POST /api/groups/{id}/{action}/{$}", s.handleGroupAction)
	mux.HandleFunc("GET /api/rooms/{$}", s.route(RouteListRooms, true, s.handleListRooms))
	mux.HandleFunc("POST /api/rooms/{$}", s.route(RouteCreateRoom, true, s.handleCreateRoom))
	mux.HandleFunc("GET /api/rooms/{code}/{$}", s.route(RouteGetRoom, true, s.handleGetRoom))
	mux.HandleFunc("POST /api/rooms/{code}/join/{$}", s.route(RouteJoinRoom, true, s.handleJoinRoom))
	mux.HandleFunc("POST /api/rooms/{code}/leave/{$}", s.route(RouteLeaveRoom, true, s.handleLeaveRoom))

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// AddUser registers an account and returns its profile.
func (s *Server) AddUser(username, password string) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(username, password, "")
}

// IssueToken mints a token for an existing user, as a prior login would have.
func (s *Server) IssueToken(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueTokenLocked(username)
}

// RevokeToken deletes token server-side.
func (s *Server) RevokeToken(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

// RevokeAll deletes every token issued to username.
func (s *Server) RevokeAll(username string) {
	s.mu.Lock()
	for tok, owner := range s.tokens {
		if owner == username {
			delete(s.tokens, tok)
		}
	}
	s.mu.Unlock()
}

// TokenValid reports whether the backend still accepts token.
func (s *Server) TokenValid(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tokens[token]
	return ok
}

// AddGroup creates a group owned (as admin) by owner, with extra plain members.
func (s *Server) AddGroup(name, owner string, members ...string) domain.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.createGroupLocked(name, "", s.accounts[owner].user)
	for _, m := range members {
		g.Members = append(g.Members, domain.Member{User: s.accounts[m].user, JoinedAt: s.Now()})
	}
	return copyGroup(g)
}

// AddRoom creates a room, inside groupID when it is non-nil.
func (s *Server) AddRoom(name string, groupID *int64, creator string) domain.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.createRoomLocked(name, groupID, s.accounts[creator].user)
}

// AddInvite mints an invitation for groupID. invitedUser may be empty.
func (s *Server) AddInvite(groupID int64, invitedUser string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inviteLocked(groupID, invitedUser).Token
}

// ExpireInvite moves an invitation's expiry into the past.
func (s *Server) ExpireInvite(token string) {
	s.mu.Lock()
	if inv, ok := s.invites[token]; ok {
		inv.expiresAt = s.Now().Add(-time.Minute)
	}
	s.mu.Unlock()
}

// Group returns the server-side copy of a group.
func (s *Server) Group(id int64) (domain.Group, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return domain.Group{}, false
	}
	return copyGroup(g), true
}

// Room returns the server-side copy of a room.
func (s *Server) Room(code string) (domain.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[code]
	if !ok {
		return domain.Room{}, false
	}
	return *r, true
}

// Hits returns how many requests reached route.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// Before installs fn to run ahead of every request to route. fn runs outside
// the server lock, so it may block to hold a response back.
func (s *Server) Before(route string, fn func()) {
	s.mu.Lock()
	s.before[route] = fn
	s.mu.Unlock()
}

// --- handlers ---

type handler func(w http.ResponseWriter, r *http.Request, caller *domain.User)

func (s *Server) route(name string, auth bool, h handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[name]++
		fn := s.before[name]
		s.mu.Unlock()
		if fn != nil {
			fn()
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		var caller *domain.User
		if auth {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Token ")
			username, known := s.tokens[token]
			if !ok || !known {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid token."})
				return
			}
			u := s.accounts[username].user
			caller = &u
		}
		h(w, r, caller)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, _ *domain.User) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Username == "" || body.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Username and password are required"})
		return
	}
	acc, ok := s.accounts[body.Username]
	if !ok || acc.password != body.Password {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"token":   s.issueTokenLocked(body.Username),
		"user":    acc.user,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request, _ *domain.User) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Username == "" || body.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Username and password are required"})
		return
	}
	if _, ok := s.accounts[body.Username]; ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "User already exists"})
		return
	}
	for _, acc := range s.accounts {
		if body.Email != "" && acc.user.Email == body.Email {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Email already in use"})
			return
		}
	}
	s.addUserLocked(body.Username, body.Password, body.Email)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User created successfully"})
}

func (s *Server) handleGetUser(w http.ResponseWriter, _ *http.Request, caller *domain.User) {
	writeJSON(w, http.StatusOK, map[string]any{"user": caller})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, _ *domain.User) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Token ")
	delete(s.tokens, token)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

func (s *Server) handleListGroups(w http.ResponseWriter, _ *http.Request, caller *domain.User) {
	out := []domain.Group{}
	for id := int64(1); id <= s.nextID; id++ {
		if g, ok := s.groups[id]; ok && g.HasMember(caller.ID) {
			out = append(out, copyGroup(g))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request, caller *domain.User) {
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"name": {"This field may not be blank."}})
		return
	}
	g := s.createGroupLocked(body.Name, body.Description, *caller)
	writeJSON(w, http.StatusCreated, copyGroup(g))
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request, caller *domain.User) {
	g, ok := s.memberGroup(r.PathValue("id"), caller)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "No Group matches the given query."})
		return
	}
	writeJSON(w, http.StatusOK, copyGroup(g))
}

func (s *Server) handleGroupAction(w http.ResponseWriter, r *http.Request) {
	id, action := r.PathValue("id"), r.PathValue("action")
	switch {
	case id == "accept-invite":
		s.route(RouteAcceptInvite, true, func(w http.ResponseWriter, _ *http.Request, caller *domain.User) {
			s.acceptInviteLocked(w, action, caller)
		})(w, r)
	case action == "invite":
		s.route(RouteInvite, true, s.handleInvite)(w, r)
	case action == "leave":
		s.route(RouteLeaveGroup, true, s.handleLeaveGroup)(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request, caller *domain.User) {
	g, ok := s.memberGroup(r.PathValue("id"), caller)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "No Group matches the given query."})
		return
	}
	if !g.IsAdmin(caller.ID) {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Refusé, vous n'êtes pas administrateur du groupe."})
		return
	}
	var body struct {
		Username string `json:"username"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Username != "" {
		acc, ok := s.accounts[body.Username]
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Utilisateur non trouvé."})
			return
		}
		if g.HasMember(acc.user.ID) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Utilisateur déjà membre du groupe."})
			return
		}
	}
	writeJSON(w, http.StatusCreated, s.inviteLocked(g.ID, body.Username))
}

func (s *Server) acceptInviteLocked(w http.ResponseWriter, token string, caller *domain.User) {
	inv, ok := s.invites[token]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Invitation invalide."})
		return
	}
	g, ok := s.groups[inv.groupID]
	if !ok || inv.used || !s.Now().Before(inv.expiresAt) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invitation expirée ou déjà utilisée."})
		return
	}
	if inv.invitedUser != "" && inv.invitedUser != caller.Username {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Cette invitation n'est pas destinée à vous."})
		return
	}
	if g.HasMember(caller.ID) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Vous êtes déjà membre du groupe."})
		return
	}
	g.Members = append(g.Members, domain.Member{User: *caller, JoinedAt: s.Now()})
	inv.used = true
	writeJSON(w, http.StatusOK, copyGroup(g))
}

func (s *Server) handleLeaveGroup(w http.ResponseWriter, r *http.Request, caller *domain.User) {
	g, ok := s.memberGroup(r.PathValue("id"), caller)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "No Group matches the given query."})
		return
	}
	if g.IsAdmin(caller.ID) {
		if len(g.Members) > 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"detail": "Vous êtes le dernier administrateur du groupe. Vous devez transférer votre rôle avant de quitter le groupe.",
			})
			return
		}
		delete(s.groups, g.ID)
		writeJSON(w, http.StatusOK, map[string]string{"detail": "Groupe supprimé."})
		return
	}
	members := g.Members[:0]
	for _, m := range g.Members {
		if m.User.ID != caller.ID {
			members = append(members, m)
		}
	}
	g.Members = members
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Vous avez quitté le groupe."})
}

func (s *Server) handleListRooms(w http.ResponseWriter, _ *http.Request, caller *domain.User) {
	out := []domain.Room{}
	for id := int64(1); id <= s.nextID; id++ {
		for _, room := range s.rooms {
			if room.ID == id && s.canSeeRoomLocked(room, caller) {
				out = append(out, *room)
			}
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request, caller *domain.User) {
	var body struct {
		Name    string `json:"name"`
		GroupID *int64 `json:"group"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"name": {"This field may not be blank."}})
		return
	}
	if body.GroupID != nil {
		g, ok := s.groups[*body.GroupID]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
			return
		}
		if !g.HasMember(caller.ID) {
			writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Vous n'êtes pas membre du groupe."})
			return
		}
	}
	writeJSON(w, http.StatusCreated, s.createRoomLocked(body.Name, body.GroupID, *caller))
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request, _ *domain.User) {
	room, ok := s.rooms[r.PathValue("code")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request, caller *domain.User) {
	room, ok := s.rooms[r.PathValue("code")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	if room.GroupID != nil {
		if g, ok := s.groups[*room.GroupID]; !ok || !g.HasMember(caller.ID) {
			writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Vous n'êtes pas membre du groupe."})
			return
		}
	}
	if !participates(room, caller.ID) {
		room.Participants = append(room.Participants, domain.Participant{User: *caller, JoinedAt: s.Now()})
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *Server) handleLeaveRoom(w http.ResponseWriter, r *http.Request, caller *domain.User) {
	room, ok := s.rooms[r.PathValue("code")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	parts := room.Participants[:0]
	for _, p := range room.Participants {
		if p.User.ID != caller.ID {
			parts = append(parts, p)
		}
	}
	room.Participants = parts
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Vous avez quitté la salle."})
}

// --- state helpers, s.mu held ---

func (s *Server) addUserLocked(username, password, email string) domain.User {
	s.nextID++
	if email == "" {
		email = username + "@example.test"
	}
	u := domain.User{
		ID:        s.nextID,
		Username:  username,
		Email:     email,
		AvatarURL: "https://robohash.org/" + username + "?set=set1",
	}
	s.accounts[username] = &account{user: u, password: password}
	return u
}

func (s *Server) issueTokenLocked(username string) string {
	s.nextTok++
	token := fmt.Sprintf("tok-%s-%d", username, s.nextTok)
	s.tokens[token] = username
	return token
}

func (s *Server) createGroupLocked(name, description string, owner domain.User) *domain.Group {
	s.nextID++
	now := s.Now()
	creator := owner
	g := &domain.Group{
		ID:          s.nextID,
		Name:        name,
		Description: description,
		CreatedBy:   &creator,
		CreatedAt:   now,
		Members:     []domain.Member{{User: owner, IsAdmin: true, JoinedAt: now}},
	}
	s.groups[g.ID] = g
	return g
}

func (s *Server) createRoomLocked(name string, groupID *int64, creator domain.User) *domain.Room {
	s.nextID++
	now := s.Now()
	room := &domain.Room{
		ID:           s.nextID,
		Code:         fmt.Sprintf("R%05d", s.nextID),
		Name:         name,
		GroupID:      groupID,
		CreatedBy:    creator.ID,
		CreatedAt:    now,
		Participants: []domain.Participant{{User: creator, JoinedAt: now}},
		IsActive:     true,
	}
	s.rooms[room.Code] = room
	return room
}

func (s *Server) inviteLocked(groupID int64, invitedUser string) domain.InviteGrant {
	s.nextTok++
	token := fmt.Sprintf("inv-%d-%d", groupID, s.nextTok)
	inv := &invitation{groupID: groupID, invitedUser: invitedUser, expiresAt: s.Now().Add(InviteTTL)}
	s.invites[token] = inv
	grant := domain.InviteGrant{
		Token:     token,
		URL:       s.FrontendURL + "/groups/accept-invite/" + token,
		ExpiresAt: inv.expiresAt,
	}
	if invitedUser != "" {
		grant.InvitedUser = &invitedUser
	}
	return grant
}

func (s *Server) memberGroup(rawID string, caller *domain.User) (*domain.Group, bool) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return nil, false
	}
	g, ok := s.groups[id]
	if !ok || !g.HasMember(caller.ID) {
		return nil, false
	}
	return g, true
}

func (s *Server) canSeeRoomLocked(room *domain.Room, caller *domain.User) bool {
	if room.GroupID != nil {
		g, ok := s.groups[*room.GroupID]
		return ok && g.HasMember(caller.ID)
	}
	return room.CreatedBy == caller.ID || participates(room, caller.ID)
}

func participates(room *domain.Room, userID int64) bool {
	for _, p := range room.Participants {
		if p.User.ID == userID {
			return true
		}
	}
	return false
}

func copyGroup(g *domain.Group) domain.Group {
	cp := *g
	cp.Members = append([]domain.Member(nil), g.Members...)
	return cp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HE-Arc/Mind-vs-Wild/pkg/domain"
)

// RegisterRequest is the payload for creating a new account.
type RegisterRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// CreateGroupRequest is the payload for creating a group.
type CreateGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateRoomRequest is the payload for creating a room.
// A nil GroupID creates a standalone room.
type CreateRoomRequest struct {
	Name    string `json:"name"`
	GroupID *int64 `json:"group,omitempty"`
}

// Client is the Mind vs Wild API client.
// A Client is bound to at most one token; use WithToken to derive another.
type Client struct {
	baseURL        string
	token          string
	httpClient     *http.Client
	log            *zap.Logger
	onUnauthorized func(token string)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient = &http.Client{Timeout: d} }
}

// WithLogger sets the request logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithUnauthorizedHook registers fn to run whenever an authenticated request
// comes back 401. fn receives the token that was rejected.
func WithUnauthorizedHook(fn func(token string)) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// New creates a new API client. token may be empty for anonymous calls.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithToken returns a copy of c that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// With returns a copy of c with opts applied.
func (c *Client) With(opts ...Option) *Client {
	cp := *c
	for _, opt := range opts {
		opt(&cp)
	}
	return &cp
}

// Token returns the token the client authenticates with.
func (c *Client) Token() string { return c.token }

// --- Auth ---

// Login exchanges credentials for a token and the user profile.
func (c *Client) Login(ctx context.Context, username, password string) (*domain.Session, error) {
	var s domain.Session
	body := map[string]string{"username": username, "password": password}
	if err := c.post(ctx, "/api/auth/login/", body, &s); err != nil {
		return nil, fmt.Errorf("client.Login: %w", err)
	}
	if !s.Valid() {
		return nil, fmt.Errorf("client.Login: %w", ErrMalformedResponse)
	}
	return &s, nil
}

// Register creates a new account. It does not log in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	if err := c.post(ctx, "/api/auth/register/", req, nil); err != nil {
		return fmt.Errorf("client.Register: %w", err)
	}
	return nil
}

// GetUser returns the profile behind the client's token.
func (c *Client) GetUser(ctx context.Context) (*domain.User, error) {
	var out struct {
		User domain.User `json:"user"`
	}
	if err := c.get(ctx, "/api/auth/get_user/", &out); err != nil {
		return nil, fmt.Errorf("client.GetUser: %w", err)
	}
	if out.User.Username == "" {
		return nil, fmt.Errorf("client.GetUser: %w", ErrMalformedResponse)
	}
	return &out.User, nil
}

// Logout revokes the client's token on the server.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.post(ctx, "/api/auth/logout/", map[string]string{}, nil); err != nil {
		return fmt.Errorf("client.Logout: %w", err)
	}
	return nil
}

// --- Groups ---

// ListGroups returns the groups the caller belongs to.
func (c *Client) ListGroups(ctx context.Context) ([]domain.Group, error) {
	var groups []domain.Group
	if err := c.get(ctx, "/api/groups/", &groups); err != nil {
		return nil, fmt.Errorf("client.ListGroups: %w", err)
	}
	return groups, nil
}

// GetGroup fetches a single group by ID.
func (c *Client) GetGroup(ctx context.Context, id int64) (*domain.Group, error) {
	var g domain.Group
	if err := c.get(ctx, groupPath(id), &g); err != nil {
		return nil, fmt.Errorf("client.GetGroup: %w", err)
	}
	return &g, nil
}

// CreateGroup creates a group with the caller as admin.
func (c *Client) CreateGroup(ctx context.Context, req CreateGroupRequest) (*domain.Group, error) {
	var g domain.Group
	if err := c.post(ctx, "/api/groups/", req, &g); err != nil {
		return nil, fmt.Errorf("client.CreateGroup: %w", err)
	}
	return &g, nil
}

// InviteToGroup mints an invite token for the group. An empty username
// creates an open invite; otherwise the invite is nominative.
func (c *Client) InviteToGroup(ctx context.Context, groupID int64, username string) (*domain.InviteGrant, error) {
	body := map[string]string{}
	if username != "" {
		body["username"] = username
	}
	var grant domain.InviteGrant
	if err := c.post(ctx, groupPath(groupID)+"invite/", body, &grant); err != nil {
		return nil, fmt.Errorf("client.InviteToGroup: %w", err)
	}
	return &grant, nil
}

// AcceptInvite redeems an invite token and returns the joined group.
func (c *Client) AcceptInvite(ctx context.Context, token string) (*domain.Group, error) {
	var g domain.Group
	if err := c.post(ctx, "/api/groups/accept-invite/"+url.PathEscape(token)+"/", map[string]string{}, &g); err != nil {
		return nil, fmt.Errorf("client.AcceptInvite: %w", err)
	}
	return &g, nil
}

// LeaveGroup removes the caller from the group.
func (c *Client) LeaveGroup(ctx context.Context, groupID int64) error {
	if err := c.post(ctx, groupPath(groupID)+"leave/", map[string]string{}, nil); err != nil {
		return fmt.Errorf("client.LeaveGroup: %w", err)
	}
	return nil
}

// --- Rooms ---

// ListRooms returns the rooms of the caller's groups.
func (c *Client) ListRooms(ctx context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	if err := c.get(ctx, "/api/rooms/", &rooms); err != nil {
		return nil, fmt.Errorf("client.ListRooms: %w", err)
	}
	return rooms, nil
}

// GetRoom fetches a room by code.
func (c *Client) GetRoom(ctx context.Context, code string) (*domain.Room, error) {
	var r domain.Room
	if err := c.get(ctx, roomPath(code), &r); err != nil {
		return nil, fmt.Errorf("client.GetRoom: %w", err)
	}
	return &r, nil
}

// CreateRoom creates a room, optionally inside a group.
func (c *Client) CreateRoom(ctx context.Context, req CreateRoomRequest) (*domain.Room, error) {
	var r domain.Room
	if err := c.post(ctx, "/api/rooms/", req, &r); err != nil {
		return nil, fmt.Errorf("client.CreateRoom: %w", err)
	}
	return &r, nil
}

// JoinRoom joins the room with the given code and returns it.
func (c *Client) JoinRoom(ctx context.Context, code string) (*domain.Room, error) {
	var r domain.Room
	if err := c.post(ctx, roomPath(code)+"join/", map[string]string{}, &r); err != nil {
		return nil, fmt.Errorf("client.JoinRoom: %w", err)
	}
	if r.Code == "" {
		// Some backend revisions answer with a bare detail message.
		r.Code = code
	}
	return &r, nil
}

// LeaveRoom leaves the room with the given code.
func (c *Client) LeaveRoom(ctx context.Context, code string) error {
	if err := c.post(ctx, roomPath(code)+"leave/", map[string]string{}, nil); err != nil {
		return fmt.Errorf("client.LeaveRoom: %w", err)
	}
	return nil
}

func groupPath(id int64) string {
	return "/api/groups/" + strconv.FormatInt(id, 10) + "/"
}

func roomPath(code string) string {
	return "/api/rooms/" + url.PathEscape(code) + "/"
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doRequest(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	return c.doRequest(ctx, http.MethodPost, path, body, out)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("http",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Duration("dur", time.Since(start)),
			zap.Error(err),
		)
		return &TransportError{Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	// metadata only, never payloads
	c.log.Info("http",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", requestID),
		zap.Duration("dur", time.Since(start)),
	)

	if resp.StatusCode >= 400 {
		if resp.StatusCode == http.StatusUnauthorized && c.token != "" && c.onUnauthorized != nil {
			c.onUnauthorized(c.token)
		}
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max error body
		if readErr != nil {
			return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		return &HTTPError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// errorMessage extracts the human-readable part of an error body.
// The backend uses "detail" (REST framework) or "error" (hand-written views).
func errorMessage(body []byte) string {
	var apiErr struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(body, &apiErr) == nil {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		if apiErr.Error != "" {
			return apiErr.Error
		}
	}
	return strings.TrimSpace(string(body))
}

package guard

import (
	"net/url"
	"strconv"
	"strings"
)

// Canonical view paths.
const (
	Root                = "/"
	About               = "/about"
	Login               = "/login"
	Register            = "/register"
	Profile             = "/profile"
	Groups              = "/groups"
	GroupsPrefix        = "/groups/"
	GroupPattern        = GroupsPrefix + "{id}"
	AcceptInvitePrefix  = "/groups/accept-invite/"
	AcceptInvitePattern = AcceptInvitePrefix + "{token}"
	Rooms               = "/rooms"
	RoomsPrefix         = "/rooms/"
	RoomPattern         = RoomsPrefix + "{code}"

	// NextQueryKey carries the return-to path on the login URL.
	NextQueryKey = "next"
)

// Class is the access class of a route.
type Class int

const (
	// Protected routes require an authenticated session.
	Protected Class = iota
	// Public routes are open to everyone.
	Public
	// GuestOnly routes are for visitors without a session.
	GuestOnly
)

func (c Class) String() string {
	switch c {
	case Public:
		return "public"
	case GuestOnly:
		return "guest-only"
	default:
		return "protected"
	}
}

// Route is one entry of the static route table.
type Route struct {
	Pattern string
	Class   Class
}

// table is ordered: literal segments must come before a wildcard that would
// also match them.
var table = []Route{
	{Root, Public},
	{About, Public},
	{AcceptInvitePattern, Public},
	{Login, GuestOnly},
	{Register, GuestOnly},
	{Profile, Protected},
	{Groups, Protected},
	{GroupPattern, Protected},
	{Rooms, Protected},
	{RoomPattern, Protected},
}

// Routes returns a copy of the route table.
func Routes() []Route {
	return append([]Route(nil), table...)
}

// Match finds the route for path (without query) and its wildcard values.
func Match(path string) (Route, map[string]string, bool) {
	segs := split(path)
	for _, r := range table {
		if params, ok := matchSegments(split(r.Pattern), segs); ok {
			return r, params, true
		}
	}
	return Route{}, nil, false
}

// Classify returns the access class of path. Unknown paths are Protected.
func Classify(path string) Class {
	r, _, ok := Match(path)
	if !ok {
		return Protected
	}
	return r.Class
}

// Group returns the group detail path.
func Group(id int64) string {
	return GroupsPrefix + strconv.FormatInt(id, 10)
}

// Room returns the room detail path.
func Room(code string) string {
	return RoomsPrefix + escapeSegment(code)
}

// AcceptInvite returns the invite acceptance path.
func AcceptInvite(token string) string {
	return AcceptInvitePrefix + escapeSegment(token)
}

// InviteLink is the frontend link accepting token, rooted at base. Without a
// base or a token it returns fallback, usually the link the backend minted.
func InviteLink(base, token, fallback string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" || token == "" {
		return fallback
	}
	return base + AcceptInvite(token)
}

func split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func matchSegments(pattern, segs []string) (map[string]string, bool) {
	if len(pattern) != len(segs) {
		return nil, false
	}
	var params map[string]string
	for i, p := range pattern {
		if name, ok := wildcard(p); ok {
			v, err := url.PathUnescape(segs[i])
			if err != nil || v == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string)
			}
			params[name] = v
			continue
		}
		if p != segs[i] {
			return nil, false
		}
	}
	return params, true
}

func wildcard(seg string) (string, bool) {
	if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
		return seg[1 : len(seg)-1], true
	}
	return "", false
}

func escapeSegment(value string) string {
	return url.PathEscape(strings.TrimSpace(value))
}

// Package guard decides whether a navigation may proceed.
//
// Decide is a pure function of the target path and the answer of an
// AuthChecker; it keeps no state. Callers that navigate concurrently are
// responsible for dropping decisions of superseded navigations.
package guard

import (
	"context"
	"net/url"
	"strings"
)

// AuthChecker answers whether the visitor has a live session. Implementations
// must await any validation in flight rather than answer from a stale value.
type AuthChecker interface {
	IsAuthenticated(ctx context.Context) bool
}

// AuthFunc adapts a function to AuthChecker.
type AuthFunc func(ctx context.Context) bool

// IsAuthenticated calls f.
func (f AuthFunc) IsAuthenticated(ctx context.Context) bool { return f(ctx) }

// Decision is the outcome of a navigation check. The zero value allows.
type Decision struct {
	// Redirect is the path to navigate to instead, or "" to allow.
	Redirect string
}

// Allow lets the navigation proceed.
func Allow() Decision { return Decision{} }

// RedirectTo sends the navigation elsewhere.
func RedirectTo(path string) Decision { return Decision{Redirect: path} }

// Allowed reports whether the navigation may proceed.
func (d Decision) Allowed() bool { return d.Redirect == "" }

func (d Decision) String() string {
	if d.Allowed() {
		return "allow"
	}
	return "redirect " + d.Redirect
}

// Decide classifies target and consults auth only when the class needs it.
func Decide(ctx context.Context, target string, auth AuthChecker) Decision {
	path, _, _ := strings.Cut(target, "?")
	switch Classify(path) {
	case Public:
		return Allow()
	case GuestOnly:
		if auth.IsAuthenticated(ctx) {
			return RedirectTo(ReturnTo(target))
		}
		return Allow()
	default:
		if auth.IsAuthenticated(ctx) {
			return Allow()
		}
		return RedirectTo(LoginURL(target))
	}
}

// LoginURL returns the login path carrying target as its return-to value.
func LoginURL(target string) string {
	target = strings.TrimSpace(target)
	if target == "" || target == Root {
		return Login
	}
	return Login + "?" + url.Values{NextQueryKey: {target}}.Encode()
}

// ReturnTo extracts the post-login destination from a login URL. The value is
// sanitized; anything unusable yields Profile.
func ReturnTo(loginURL string) string {
	_, rawQuery, _ := strings.Cut(loginURL, "?")
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return Profile
	}
	return SanitizeNext(q.Get(NextQueryKey))
}

// SanitizeNext accepts only relative paths to known, non guest-only routes,
// keeping their query string. Everything else yields Profile.
func SanitizeNext(raw string) string {
	next := strings.TrimSpace(raw)
	if next == "" {
		return Profile
	}
	parsed, err := url.Parse(next)
	if err != nil || parsed.Scheme != "" || parsed.Host != "" || parsed.User != nil {
		return Profile
	}
	if !strings.HasPrefix(parsed.Path, "/") || strings.HasPrefix(next, "//") {
		return Profile
	}
	r, _, ok := Match(parsed.Path)
	if !ok || r.Class == GuestOnly {
		return Profile
	}
	if parsed.RawQuery != "" {
		return parsed.EscapedPath() + "?" + parsed.RawQuery
	}
	return parsed.EscapedPath()
}

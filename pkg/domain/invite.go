package domain

import "time"

// InviteGrant is what the backend mints when a group admin invites someone.
// The token is single-use; InvitedUser is set for nominative invites only.
type InviteGrant struct {
	Token       string    `json:"invite_token"`
	URL         string    `json:"invite_url"`
	ExpiresAt   time.Time `json:"expires_at"`
	InvitedUser *string   `json:"invited_user,omitempty"`
}

// Expired reports whether the grant is past its expiry at the given instant.
func (g InviteGrant) Expired(now time.Time) bool {
	return !g.ExpiresAt.IsZero() && !now.Before(g.ExpiresAt)
}

package domain

import "time"

// Group is a collaboration group the user belongs to.
type Group struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   *User     `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Members     []Member  `json:"members"`
}

// Member is one membership row of a group.
type Member struct {
	User     User      `json:"user"`
	IsAdmin  bool      `json:"is_admin"`
	JoinedAt time.Time `json:"joined_at"`
}

// HasMember reports whether the user with the given id is a member.
func (g Group) HasMember(userID int64) bool {
	for _, m := range g.Members {
		if m.User.ID == userID {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user with the given id administers the group.
func (g Group) IsAdmin(userID int64) bool {
	for _, m := range g.Members {
		if m.User.ID == userID {
			return m.IsAdmin
		}
	}
	return false
}

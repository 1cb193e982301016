package domain

import "time"

// Room is a play room. It may belong to a group or stand alone.
// Code is the canonical identifier used in URLs and join requests.
type Room struct {
	ID           int64         `json:"id"`
	Code         string        `json:"code"`
	Name         string        `json:"name"`
	GroupID      *int64        `json:"group,omitempty"`
	CreatedBy    int64         `json:"created_by,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	Participants []Participant `json:"participants"`
	IsActive     bool          `json:"is_active"`
}

// Participant is a user currently registered in a room.
type Participant struct {
	User     User      `json:"user"`
	JoinedAt time.Time `json:"joined_at"`
}

// Standalone reports whether the room is not attached to any group.
func (r Room) Standalone() bool {
	return r.GroupID == nil
}

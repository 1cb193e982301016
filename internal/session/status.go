package session

// Status is the session's position in its lifecycle.
type Status int

const (
	// StatusUnknown is the state of a fresh process before any check.
	StatusUnknown Status = iota
	StatusUnauthenticated
	// StatusRestoring means a stored token is being validated by the backend.
	StatusRestoring
	StatusAuthenticated
	// StatusInvalid is transient: a rejected token is torn down immediately
	// after entering it, so callers never observe it at rest.
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusRestoring:
		return "restoring"
	case StatusAuthenticated:
		return "authenticated"
	case StatusInvalid:
		return "invalid"
	default:
		return "status(?)"
	}
}

// settled reports whether the status answers "is the user authenticated"
// without a network round-trip.
func (s Status) settled() bool {
	return s == StatusAuthenticated || s == StatusUnauthenticated
}

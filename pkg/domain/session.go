package domain

// Session is the credential/identity pair the backend returns on login.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Valid reports whether both halves of the pair are present.
func (s Session) Valid() bool {
	return s.Token != "" && s.User.Username != ""
}

package backend

// Credentials are supplied per call and never persisted by the gateway.
type Credentials struct {
	Username string            `json:"username,omitempty"`
	Password string            `json:"password,omitempty"`
	Token    string            `json:"token,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// User returns the username, tolerating a nil receiver.
func (c *Credentials) User() string {
	if c == nil {
		return ""
	}
	return c.Username
}

// HasBasic reports whether a username/password pair is present.
func (c *Credentials) HasBasic() bool {
	return c != nil && c.Username != "" && c.Password != ""
}

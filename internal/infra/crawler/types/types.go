package types

import "maps"

// Session is the cookie set and user-agent presented to the marketplace.
// It is owned by the fetch client and only touched from its goroutine; a
// concurrent caller would need a lock around every read and replace.
type Session struct {
	Cookies   map[string]string
	UserAgent string
}

func (s Session) Clone() Session {
	return Session{Cookies: maps.Clone(s.Cookies), UserAgent: s.UserAgent}
}

// Proxy is an outbound proxy plus its IP rotation endpoint. A nil *Proxy means direct.
type Proxy struct {
	URL         string
	ChangeIPURL string
}

package model

import "time"

// Default contents for a freshly created session.
const (
	DefaultCode     = "// Start coding here\n"
	DefaultLanguage = "javascript"
)

// Session is the unit of shared editable state: one code snippet and its
// language tag, addressed by an opaque id. CreatedAt is epoch milliseconds
// and never changes after creation.
type Session struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	Language  string `json:"language"`
	CreatedAt int64  `json:"createdAt"`
}

// NewSession returns a session with the given id and default contents.
func NewSession(id string) *Session {
	return &Session{
		ID:        id,
		Code:      DefaultCode,
		Language:  DefaultLanguage,
		CreatedAt: time.Now().UnixMilli(),
	}
}

// Clone returns a copy of the session. Stores hand out clones so callers
// never alias the stored record.
func (s *Session) Clone() *Session {
	c := *s
	return &c
}

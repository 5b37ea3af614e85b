package session

import (
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// MetadataAgentUsed is the metadata key Append copies onto Message.AgentUsed.
const MetadataAgentUsed = "agent_used"

// Message is one conversation turn.
type Message struct {
	Role      Role                   `json:"role"`
	Content   string                 `json:"content"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	AgentUsed string                 `json:"agent_used,omitempty"`
}

// Session is a persisted, ordered conversation.
type Session struct {
	ID        string                 `json:"session_id"`
	UserID    string                 `json:"user_id,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	History   []Message              `json:"conversation_history"`
	Metadata  map[string]interface{} `json:"metadata"`
	IsExpired bool                   `json:"is_expired"`
}

// Len returns the number of messages in the conversation.
func (s *Session) Len() int {
	return len(s.History)
}

// Clone returns a copy that shares no slices or maps with s. Metadata values
// are copied shallowly.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.History = make([]Message, len(s.History))
	for i, m := range s.History {
		m.Metadata = cloneMap(m.Metadata)
		c.History[i] = m
	}
	c.Metadata = cloneMap(s.Metadata)
	return &c
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Filter restricts List results. Nil fields match everything.
type Filter struct {
	UserID    *string
	IsExpired *bool
}

// ByUser returns a filter matching sessions owned by userID.
func ByUser(userID string) Filter {
	return Filter{UserID: &userID}
}

// ByExpired returns a filter matching sessions with the given expiry flag.
func ByExpired(expired bool) Filter {
	return Filter{IsExpired: &expired}
}

// Matches reports whether s satisfies every set field of f.
func (f Filter) Matches(s *Session) bool {
	if f.UserID != nil && s.UserID != *f.UserID {
		return false
	}
	if f.IsExpired != nil && s.IsExpired != *f.IsExpired {
		return false
	}
	return true
}

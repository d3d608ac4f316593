package models

import "time"

// Role identifies who authored a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TimestampLayout is the wall-clock format used for message timestamps.
const TimestampLayout = "15:04"

// Message is one transcript entry. Messages are appended and never edited.
type Message struct {
	Role      Role   `json:"role" db:"role"`
	Content   string `json:"content" db:"content"`
	Timestamp string `json:"timestamp" db:"timestamp"`
}

// NewMessage returns a message stamped with t formatted as TimestampLayout.
func NewMessage(role Role, content string, t time.Time) *Message {
	return &Message{Role: role, Content: content, Timestamp: t.Format(TimestampLayout)}
}

// Valid reports whether the role is one a transcript accepts.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

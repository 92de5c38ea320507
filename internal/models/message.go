package models

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message represents a single entry of a session transcript.
// Snapshots store a JSON array of these, oldest first.
type Message struct {
	Role    string `json:"role"`    // "user", "assistant" or "system"
	Content string `json:"content"` // The text content of the message
}

// IsValidRole reports whether role is one of the known message roles.
func IsValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Truncate returns a copy of the most recent limit messages.
// A limit <= 0 keeps every message.
func Truncate(messages []Message, limit int) []Message {
	start := 0
	if limit > 0 && len(messages) > limit {
		start = len(messages) - limit
	}
	out := make([]Message, len(messages)-start)
	copy(out, messages[start:])
	return out
}

// DefaultTranscript is what a session starts with when no snapshot can be loaded.
func DefaultTranscript() []Message {
	return []Message{{Role: RoleAssistant, Content: "**A.R.C. online. Commander authenticated.**"}}
}

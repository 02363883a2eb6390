package domain

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one message in a chat conversation.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// RecentTurns returns at most the last n turns, oldest first.
func RecentTurns(history []Turn, n int) []Turn {
	if n <= 0 {
		return nil
	}
	if n >= len(history) {
		return history
	}
	return history[len(history)-n:]
}

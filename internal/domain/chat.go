package domain

// Chat roles understood by the completion capability.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is the provider-agnostic chat message shape sent to the
// completion capability.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

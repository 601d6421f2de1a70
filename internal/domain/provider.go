package domain

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ModelMessage is one turn of model context.
type ModelMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ModelClient asks the external language model for a completion. The
// resolver owns response-shape validation; the client just moves text.
type ModelClient interface {
	Complete(ctx context.Context, system string, msgs []ModelMessage) (string, error)
}

// Resolution is the structured answer the resolver requires from the
// model: at most these two optional fields, anything else is a resolver
// failure. Both may be present in one cycle; the console re-dispatch
// runs before the chat send.
type Resolution struct {
	Console string `json:"console,omitempty"`
	Chat    string `json:"chat,omitempty"`
}

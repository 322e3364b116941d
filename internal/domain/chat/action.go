package chat

type ActionType string

const (
	ActionCall     ActionType = "call"
	ActionBook     ActionType = "book"
	ActionQuote    ActionType = "quote"
	ActionUpload   ActionType = "upload"
	ActionForm     ActionType = "form"
	ActionEscalate ActionType = "escalate"
)

// Action is a suggestion for the UI. The assistant never executes actions.
type Action struct {
	Type  ActionType     `json:"type"`
	Label string         `json:"label"`
	Data  map[string]any `json:"data,omitempty"`
}

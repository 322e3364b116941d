package chat

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleAgent     Role = "agent"
)

type MessageType string

const (
	MessageText      MessageType = "text"
	MessageVoice     MessageType = "voice"
	MessageImage     MessageType = "image"
	MessageFile      MessageType = "file"
	MessageLocation  MessageType = "location"
	MessageEmergency MessageType = "emergency"
	MessageBooking   MessageType = "booking"
	MessageQuote     MessageType = "quote"
	MessageInsurance MessageType = "insurance"
	MessageFeedback  MessageType = "feedback"
)

// ChatMessage is one turn of a conversation. Messages are appended to history
// and never mutated afterwards.
type ChatMessage struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversation_id"`
	Role           Role             `json:"role"`
	Type           MessageType      `json:"type"`
	Content        string           `json:"content"`
	Metadata       *MessageMetadata `json:"metadata,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
	Language       Language         `json:"language"`
	EmotionalState EmotionalState   `json:"emotional_state,omitempty"`
	Attachments    []Attachment     `json:"attachments,omitempty"`
	AgentID        string           `json:"agent_id,omitempty"`
}

// MessageMetadata carries the analysis attached to a message. A nil field means
// "not computed", which is distinct from an empty value.
type MessageMetadata struct {
	Intent           string         `json:"intent,omitempty"`
	Entities         []Entity       `json:"entities,omitempty"`
	Sentiment        *Sentiment     `json:"sentiment,omitempty"`
	Urgency          *Urgency       `json:"urgency,omitempty"`
	SuggestedActions []Action       `json:"suggested_actions,omitempty"`
	FormData         map[string]any `json:"form_data,omitempty"`
	Location         *Location      `json:"location,omitempty"`
	WeatherAlert     *WeatherAlert  `json:"weather_alert,omitempty"`
}

type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentAudio AttachmentKind = "audio"
	AttachmentFile  AttachmentKind = "file"
)

// Attachment is an opaque reference to uploaded media. URI is either a gs://
// object or an http(s) URL reachable by the analysis collaborators.
type Attachment struct {
	ID       string         `json:"id,omitempty"`
	Kind     AttachmentKind `json:"kind"`
	URI      string         `json:"uri"`
	MimeType string         `json:"mime_type,omitempty"`
	Name     string         `json:"name,omitempty"`
	Size     int64          `json:"size,omitempty"`
}

func (a Attachment) IsImage() bool { return a.Kind == AttachmentImage }
func (a Attachment) IsAudio() bool { return a.Kind == AttachmentAudio }

type Location struct {
	Address   string   `json:"address,omitempty"`
	Suburb    string   `json:"suburb,omitempty"`
	State     string   `json:"state,omitempty"`
	Postcode  string   `json:"postcode,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type WeatherAlert struct {
	Type        string    `json:"type"`
	Severity    string    `json:"severity"`
	Description string    `json:"description,omitempty"`
	IssuedAt    time.Time `json:"issued_at,omitempty"`
}

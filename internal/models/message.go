package models

// Message types accepted on the send path.
const (
	MessageTypeText  = "text"
	MessageTypeEmoji = "emoji"
	MessageTypeMedia = "media"
)

// Attachment describes a stored file referenced by a chat message.
type Attachment struct {
	URL         string `json:"url"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// ChatMessage is the canonical message record broadcast to a session room.
// Messages are relayed once and not retained; the backlog endpoint is a
// deliberately empty projection.
type ChatMessage struct {
	ID          string      `json:"id"`        // ULID
	SessionID   string      `json:"session_id"`
	SenderID    int64       `json:"sender_id"`
	SenderAlias string      `json:"sender_alias"`
	Content     string      `json:"content"`
	Type        string      `json:"type"`      // text, emoji, media
	Timestamp   string      `json:"timestamp"` // RFC3339 UTC
	Attachment  *Attachment `json:"attachment,omitempty"`
	ReplyTo     string      `json:"reply_to,omitempty"`
}

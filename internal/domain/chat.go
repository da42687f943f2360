package domain

import "errors"

var (
	// ErrEmptyQuestion is returned when a chat question is blank.
	ErrEmptyQuestion = errors.New("empty question")
	// ErrKnowledgeService is returned when the knowledge retrieval service fails to answer.
	ErrKnowledgeService = errors.New("knowledge service failed")
)

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of the session-scoped conversation.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
	At      int64    `json:"at"` // Unix timestamp
}

// KnowledgeAnswer is the text answer of the knowledge retrieval service.
type KnowledgeAnswer struct {
	Text      string
	SessionID string // conversation handle to replay on follow-up questions
}

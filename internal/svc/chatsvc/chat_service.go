// Package chatsvc forwards the questions of authenticated sessions to the knowledge
// service and keeps the conversation for the lifetime of the session.
package chatsvc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mkrupp/kbchat/internal/domain"
	"github.com/mkrupp/kbchat/internal/infra/logging"
	"github.com/mkrupp/kbchat/internal/infra/metrics"
	"github.com/mkrupp/kbchat/internal/svc/chatsvc/knowledgeclient"
)

// ChatConfig contains configuration parameters for the chat service.
type ChatConfig struct {
	// StreamChunkSize is the number of runes written per flushed chunk of an answer
	StreamChunkSize int `env:"STREAM_CHUNK_SIZE" default:"16"`
}

// SessionSaver persists a session after the conversation changed.
type SessionSaver interface {
	Save(ctx context.Context, session *domain.Session) error
}

// ChatService answers questions within a session.
type ChatService struct {
	Config    ChatConfig
	Knowledge knowledgeclient.Client
	Sessions  SessionSaver
	Log       logging.Logger
	Metrics   *metrics.Metrics

	// Now returns the current time; replaceable in tests.
	Now func() time.Time
}

// NewChatService creates a ChatService.
func NewChatService(
	knowledge knowledgeclient.Client,
	sessions SessionSaver,
	cfg ChatConfig,
	m *metrics.Metrics,
) *ChatService {
	return &ChatService{
		Config:    cfg,
		Knowledge: knowledge,
		Sessions:  sessions,
		Log:       logging.GetLogger("svc.chatsvc.chat_service"),
		Metrics:   m,
		Now:       time.Now,
	}
}

// Ask forwards question to the knowledge service and records both turns in the session.
// The session must be authenticated. On failure the conversation is left unchanged.
// A knowledge conversation the service no longer accepts is dropped and the question
// is retried once in a new one.
func (s *ChatService) Ask(ctx context.Context, session *domain.Session, question string) (answer string, err error) {
	defer func() {
		if err != nil {
			s.Log.ErrorContext(ctx, "ask failed", "error", err)
		} else {
			s.Log.DebugContext(ctx, "question answered", "turns", len(session.Messages))
		}
	}()

	if !session.Authenticated() {
		return "", domain.ErrNotAuthenticated
	}

	question = strings.TrimSpace(question)
	if question == "" {
		s.Metrics.ChatQuestion(metrics.OutcomeInvalid)

		return "", domain.ErrEmptyQuestion
	}

	asked := s.Now().Unix()

	reply, err := s.Knowledge.Ask(ctx, question, session.KnowledgeSessionID)
	if err != nil && session.KnowledgeSessionID != "" {
		s.Log.WarnContext(ctx, "dropping knowledge conversation", "error", err)

		session.KnowledgeSessionID = ""
		reply, err = s.Knowledge.Ask(ctx, question, "")

		if err != nil {
			if saveErr := s.Sessions.Save(ctx, session); saveErr != nil {
				s.Log.WarnContext(ctx, "failed to save session", "error", saveErr)
			}
		}
	}

	if err != nil {
		s.Metrics.ChatQuestion(metrics.OutcomeError)

		return "", fmt.Errorf("ask knowledge service: %w", err)
	}

	session.Messages = append(session.Messages,
		domain.ChatMessage{Role: domain.ChatRoleUser, Content: question, At: asked},
		domain.ChatMessage{Role: domain.ChatRoleAssistant, Content: reply.Text, At: s.Now().Unix()},
	)

	if reply.SessionID != "" {
		session.KnowledgeSessionID = reply.SessionID
	}

	if err := s.Sessions.Save(ctx, session); err != nil {
		s.Metrics.ChatQuestion(metrics.OutcomeUnavailable)

		return "", fmt.Errorf("save session: %w", err)
	}

	s.Metrics.ChatQuestion(metrics.OutcomeSuccess)

	return reply.Text, nil
}

// History returns a copy of the session's conversation, oldest first.
func (s *ChatService) History(session *domain.Session) []domain.ChatMessage {
	if !session.Authenticated() {
		return []domain.ChatMessage{}
	}

	history := make([]domain.ChatMessage, len(session.Messages))
	copy(history, session.Messages)

	return history
}

// Chunks splits text into pieces of at most size runes. A non-positive size yields
// the whole text as one piece.
func Chunks(text string, size int) []string {
	if size <= 0 || text == "" {
		return []string{text}
	}

	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)

	for len(runes) > 0 {
		n := min(size, len(runes))
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}

	return chunks
}

func isClientError(err error) bool {
	return errors.Is(err, domain.ErrEmptyQuestion)
}

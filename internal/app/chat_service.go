package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"janus-rag/internal/ai"
	"janus-rag/internal/config"
	"janus-rag/internal/logging"
	"janus-rag/internal/model"
)

const (
	retrievalToolName    = "retrieve_documents"
	maxSessionIDLength   = 128
	summaryPreviewLength = 100
	noDocumentsFound     = "No relevant documents were found."
)

type ChatServiceConfig struct {
	TopK       int
	Scope      string
	MaxHistory int
	Retry      ai.RetryPolicy
}

type ChatService struct {
	messages     MessageStore
	chunks       ChunkStore
	embedder     QueryEmbedder
	completer    ai.Completer
	historyCache HistoryCache
	cfg          ChatServiceConfig
	log          logging.Logger
	newSessionID func() string
	now          func() time.Time
}

type ChatInput struct {
	User      *model.User
	Message   string
	SessionID string
}

type ChatResult struct {
	Answer    string              `json:"response"`
	SessionID string              `json:"session_id"`
	Sources   []model.ScoredChunk `json:"sources"`
	ToolCalls []ai.ToolCall       `json:"tool_calls,omitempty"`
}

func NewChatService(
	messages MessageStore,
	chunks ChunkStore,
	embedder QueryEmbedder,
	completer ai.Completer,
	historyCache HistoryCache,
	cfg ChatServiceConfig,
	log logging.Logger,
) *ChatService {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 50
	}
	if cfg.Scope == "" {
		cfg.Scope = config.ScopeOwner
	}
	if log == nil {
		log = logging.Nop()
	}
	return &ChatService{
		messages:     messages,
		chunks:       chunks,
		embedder:     embedder,
		completer:    completer,
		historyCache: historyCache,
		cfg:          cfg,
		log:          log.With("component", "chat"),
		newSessionID: uuid.NewString,
		now:          time.Now,
	}
}

// Chat answers one message. The user message and the answer are persisted
// together only after the model has produced a final answer.
func (s *ChatService) Chat(ctx context.Context, input ChatInput) (*ChatResult, error) {
	if input.User == nil {
		return nil, ErrInvalidInput
	}
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, ErrMessageEmpty
	}
	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		sessionID = s.newSessionID()
	}
	if len(sessionID) > maxSessionIDLength {
		return nil, ErrInvalidSessionID
	}

	ctx, span := tracer.Start(ctx, "app.Chat")
	defer span.End()
	span.SetAttributes(attribute.String("chat.session_id", sessionID))

	user := input.User
	log := s.log.With("user_id", user.ID, "session_id", sessionID)

	history, err := s.loadHistory(ctx, user.ID, sessionID)
	if err != nil {
		return nil, err
	}

	owner := s.ownerFilter(user)
	sources, err := ai.Retry(ctx, s.cfg.Retry, func(ctx context.Context) ([]model.ScoredChunk, error) {
		return s.search(ctx, message, owner)
	})
	if err != nil {
		span.RecordError(err)
		log.Error(ctx, "retrieve context failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrAssistantUnavailable, err)
	}

	req := ai.CompletionRequest{
		SystemInstruction: systemInstruction(user, formatFragments(sources)),
		History:           toTurns(history),
		Message:           message,
		Tools:             []ai.Tool{s.retrievalTool(owner)},
	}
	askedAt := s.now()
	completion, err := ai.Retry(ctx, s.cfg.Retry, func(ctx context.Context) (*ai.CompletionResult, error) {
		return s.completer.Complete(ctx, req)
	})
	if err != nil {
		span.RecordError(err)
		log.Error(ctx, "completion failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrAssistantUnavailable, err)
	}

	userMsg := &model.Message{
		UserID:    user.ID,
		SessionID: sessionID,
		Role:      model.MessageRoleUser,
		Content:   message,
		CreatedAt: askedAt,
	}
	modelMsg := &model.Message{
		UserID:    user.ID,
		SessionID: sessionID,
		Role:      model.MessageRoleModel,
		Content:   completion.Text,
		CreatedAt: s.now(),
	}
	if err := s.messages.CreatePair(ctx, userMsg, modelMsg); err != nil {
		return nil, err
	}
	s.invalidateHistory(ctx, user.ID, sessionID)

	log.Info(ctx, "chat turn completed",
		"history", len(history),
		"sources", len(sources),
		"tool_calls", len(completion.ToolCalls),
	)
	return &ChatResult{
		Answer:    completion.Text,
		SessionID: sessionID,
		Sources:   sources,
		ToolCalls: completion.ToolCalls,
	}, nil
}

func (s *ChatService) loadHistory(ctx context.Context, userID uint, sessionID string) ([]model.Message, error) {
	if s.historyCache != nil {
		cached, hit, err := s.historyCache.GetHistory(ctx, userID, sessionID)
		if err != nil {
			s.log.Warn(ctx, "read history cache failed", "error", err)
		} else if hit {
			return cached, nil
		}
	}

	messages, err := s.messages.ListRecentBySession(ctx, userID, sessionID, s.cfg.MaxHistory)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if err := s.historyCache.SetHistory(ctx, userID, sessionID, messages); err != nil {
			s.log.Warn(ctx, "write history cache failed", "error", err)
		}
	}
	return messages, nil
}

func (s *ChatService) invalidateHistory(ctx context.Context, userID uint, sessionID string) {
	if s.historyCache == nil {
		return
	}
	if err := s.historyCache.DeleteHistory(ctx, userID, sessionID); err != nil {
		s.log.Warn(ctx, "invalidate history cache failed", "error", err)
	}
}

// ownerFilter returns the owner id retrieval is restricted to, or nil for
// the whole corpus.
func (s *ChatService) ownerFilter(user *model.User) *uint {
	id := user.ID
	switch s.cfg.Scope {
	case config.ScopeCorpus:
		return nil
	case config.ScopeVisible:
		if user.Role.CanViewAllDocuments() {
			return nil
		}
		return &id
	default:
		return &id
	}
}

func (s *ChatService) search(ctx context.Context, query string, owner *uint) ([]model.ScoredChunk, error) {
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.chunks.SearchSimilar(ctx, vector, s.cfg.TopK, owner)
}

func (s *ChatService) retrievalTool(owner *uint) ai.Tool {
	return ai.Tool{
		Name:             retrievalToolName,
		Description:      "Searches the user's stored documents and returns the most relevant text fragments.",
		QueryDescription: "What to look for, phrased as a short search query.",
		Call: func(ctx context.Context, query string) (string, error) {
			query = strings.TrimSpace(query)
			if query == "" {
				return noDocumentsFound, nil
			}
			hits, err := s.search(ctx, query, owner)
			if err != nil {
				return "", err
			}
			if len(hits) == 0 {
				return noDocumentsFound, nil
			}
			return formatFragments(hits), nil
		},
	}
}

func formatFragments(chunks []model.ScoredChunk) string {
	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		parts[i] = fmt.Sprintf("Fragment %d:\n%s", i+1, chunk.Content)
	}
	return strings.Join(parts, "\n\n")
}

func systemInstruction(user *model.User, contextBlock string) string {
	var b strings.Builder
	b.WriteString("You are Janus, an assistant that answers questions about the documents stored in this system.\n")
	fmt.Fprintf(&b, "You are talking to %s.\n\n", user.Email)
	b.WriteString("Rules:\n")
	fmt.Fprintf(&b, "- Use the %s tool whenever the answer may depend on stored documents, and prefer its output over your own knowledge.\n", retrievalToolName)
	b.WriteString("- If the documents do not contain the answer, say so plainly instead of guessing.\n")
	b.WriteString("- Always answer in the language the user writes in.\n\n")
	b.WriteString("<context>\n")
	b.WriteString(contextBlock)
	b.WriteString("\n</context>")
	return b.String()
}

func toTurns(messages []model.Message) []ai.Turn {
	turns := make([]ai.Turn, 0, len(messages))
	for _, msg := range messages {
		role := ai.TurnUser
		if msg.Role == model.MessageRoleModel {
			role = ai.TurnModel
		}
		turns = append(turns, ai.Turn{Role: role, Content: msg.Content})
	}
	return turns
}

func (s *ChatService) ListSessions(ctx context.Context, user *model.User) ([]model.SessionSummary, error) {
	if user == nil {
		return nil, ErrInvalidInput
	}
	latest, err := s.messages.LatestPerSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return summarizeSessions(latest), nil
}

// summarizeSessions keeps the newest message of each session and orders the
// sessions by that message, newest first.
func summarizeSessions(messages []model.Message) []model.SessionSummary {
	newest := make(map[string]model.Message, len(messages))
	for _, msg := range messages {
		cur, ok := newest[msg.SessionID]
		if !ok || newerMessage(msg, cur) {
			newest[msg.SessionID] = msg
		}
	}

	summaries := make([]model.SessionSummary, 0, len(newest))
	for _, msg := range newest {
		summaries = append(summaries, model.SessionSummary{
			SessionID:   msg.SessionID,
			LastMessage: truncateRunes(msg.Content, summaryPreviewLength),
			Timestamp:   msg.CreatedAt,
			Role:        msg.Role,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].Timestamp.Equal(summaries[j].Timestamp) {
			return summaries[i].Timestamp.After(summaries[j].Timestamp)
		}
		return summaries[i].SessionID < summaries[j].SessionID
	})
	return summaries
}

func newerMessage(a, b model.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func (s *ChatService) ListSessionMessages(ctx context.Context, user *model.User, sessionID string) ([]model.Message, error) {
	if user == nil || strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidInput
	}
	messages, err := s.messages.ListBySession(ctx, user.ID, sessionID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []model.Message{}
	}
	return messages, nil
}

func (s *ChatService) DeleteSession(ctx context.Context, user *model.User, sessionID string) (int64, error) {
	if user == nil || strings.TrimSpace(sessionID) == "" {
		return 0, ErrInvalidInput
	}
	deleted, err := s.messages.DeleteSession(ctx, user.ID, sessionID)
	if err != nil {
		return 0, err
	}
	s.invalidateHistory(ctx, user.ID, sessionID)
	return deleted, nil
}

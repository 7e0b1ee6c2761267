package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"janus-rag/internal/app"
	"janus-rag/internal/model"
	"janus-rag/internal/transport/http/response"
)

type ChatService interface {
	Chat(ctx context.Context, input app.ChatInput) (*app.ChatResult, error)
	ListSessions(ctx context.Context, user *model.User) ([]model.SessionSummary, error)
	ListSessionMessages(ctx context.Context, user *model.User, sessionID string) ([]model.Message, error)
	DeleteSession(ctx context.Context, user *model.User, sessionID string) (int64, error)
}

type ChatHandler struct {
	chatService ChatService
}

type SendMessageRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id" binding:"max=128"`
}

func NewChatHandler(chatService ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.chatService.Chat(c.Request.Context(), app.ChatInput{
		User:      user,
		Message:   req.Message,
		SessionID: req.SessionID,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrMessageEmpty):
			response.Error(c, http.StatusBadRequest, response.CodeMessageEmpty, err.Error())
		case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrInvalidSessionID):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrAssistantUnavailable):
			response.Error(c, http.StatusServiceUnavailable, response.CodeAssistantUnavailable, app.ErrAssistantUnavailable.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "send message failed")
		}
		return
	}

	response.OK(c, result)
}

func (h *ChatHandler) ListSessions(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	sessions, err := h.chatService.ListSessions(c.Request.Context(), user)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list sessions failed")
		return
	}
	response.OK(c, sessions)
}

func (h *ChatHandler) ListSessionMessages(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	messages, err := h.chatService.ListSessionMessages(c.Request.Context(), user, c.Param("session_id"))
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list messages failed")
		}
		return
	}
	response.OK(c, messages)
}

func (h *ChatHandler) DeleteSession(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	deleted, err := h.chatService.DeleteSession(c.Request.Context(), user, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete session failed")
		}
		return
	}
	response.OK(c, gin.H{
		"deleted_session_id": sessionID,
		"deleted_messages":   deleted,
	})
}

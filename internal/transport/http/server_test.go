package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"janus-rag/internal/app"
	"janus-rag/internal/model"
	"janus-rag/internal/pkg/jwtutil"
	"janus-rag/internal/transport/http/response"
)

var testUser = &model.User{ID: 1, Email: "alice@example.com", Role: model.RoleUser, IsActive: true}

type stubAuth struct{}

func (stubAuth) Register(context.Context, app.RegisterInput) (*app.AuthResult, error) {
	return nil, app.ErrEmailExists
}

func (stubAuth) Login(_ context.Context, in app.LoginInput) (*app.AuthResult, error) {
	if in.Password != "correct-horse" {
		return nil, app.ErrInvalidCredential
	}
	return &app.AuthResult{Token: "good-token", User: testUser}, nil
}

func (stubAuth) Authenticate(_ context.Context, token string) (*model.User, error) {
	switch token {
	case "good-token":
		return testUser, nil
	case "inactive-token":
		return nil, app.ErrInactiveUser
	default:
		return nil, jwtutil.ErrInvalidToken
	}
}

type stubDocuments struct {
	upload    app.UploadInput
	deleteErr error
}

func (s *stubDocuments) Upload(_ context.Context, in app.UploadInput) (*app.UploadResult, error) {
	s.upload = in
	return &app.UploadResult{
		Document: &model.Document{ID: 5, UserID: in.User.ID, Filename: in.Filename},
		State:    app.StatePersisted,
		Outcome:  app.OutcomeIndexed,
		Chunks:   1,
	}, nil
}

func (s *stubDocuments) ListDocuments(context.Context, *model.User) ([]model.Document, error) {
	return []model.Document{}, nil
}

func (s *stubDocuments) GetDocument(_ context.Context, _ *model.User, id uint) (*model.Document, string, error) {
	if id != 5 {
		return nil, "", nil
	}
	return &model.Document{ID: 5}, "https://signed", nil
}

func (s *stubDocuments) DeleteDocument(context.Context, *model.User, uint) error {
	return s.deleteErr
}

type stubChat struct {
	err error
}

func (s *stubChat) Chat(_ context.Context, in app.ChatInput) (*app.ChatResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &app.ChatResult{Answer: "echo: " + in.Message, SessionID: "generated", Sources: []model.ScoredChunk{}}, nil
}

func (s *stubChat) ListSessions(context.Context, *model.User) ([]model.SessionSummary, error) {
	return []model.SessionSummary{}, nil
}

func (s *stubChat) ListSessionMessages(context.Context, *model.User, string) ([]model.Message, error) {
	return []model.Message{}, nil
}

func (s *stubChat) DeleteSession(context.Context, *model.User, string) (int64, error) {
	return 2, nil
}

type testServer struct {
	router *gin.Engine
	docs   *stubDocuments
	chat   *stubChat
}

func newTestServer() *testServer {
	s := &testServer{docs: &stubDocuments{}, chat: &stubChat{}}
	s.router = NewRouterWith(Services{Auth: stubAuth{}, Documents: s.docs, Chat: s.chat}, RouterOptions{
		GinMode:        gin.TestMode,
		MaxUploadBytes: 1 << 10,
	})
	return s
}

func (s *testServer) do(req *http.Request, token string) (*httptest.ResponseRecorder, response.APIResponse) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var body response.APIResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer()

	rec, body := s.do(httptest.NewRequest(http.MethodGet, "/api/documents", nil), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, response.CodeUnauthorized, body.Code)

	rec, body = s.do(httptest.NewRequest(http.MethodGet, "/api/documents", nil), "forged")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, response.CodeUnauthorized, body.Code)

	rec, body = s.do(httptest.NewRequest(http.MethodGet, "/api/chat/sessions", nil), "inactive-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, response.CodeInactiveUser, body.Code)

	rec, _ = s.do(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), "good-token")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginAndRegisterErrors(t *testing.T) {
	s := newTestServer()

	rec, body := s.do(jsonRequest(http.MethodPost, "/api/auth/login", `{"email":"alice@example.com","password":"wrong"}`), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, response.CodeInvalidCredentials, body.Code)

	rec, body = s.do(jsonRequest(http.MethodPost, "/api/auth/register", `{"email":"alice@example.com","password":"long-enough"}`), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, response.CodeEmailExists, body.Code)

	rec, _ = s.do(jsonRequest(http.MethodPost, "/api/auth/register", `{"email":"not-an-email","password":"long-enough"}`), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func multipartUpload(t *testing.T, path, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	s := newTestServer()

	req := multipartUpload(t, "/api/documents/upload?is_boe=true", "notes.txt", "application/octet-stream", []byte("plain words"))
	rec, body := s.do(req, "good-token")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, response.CodeOK, body.Code)

	assert.Equal(t, "notes.txt", s.docs.upload.Filename)
	assert.True(t, s.docs.upload.IsBoe)
	assert.Equal(t, "text/plain; charset=utf-8", s.docs.upload.ContentType)
	assert.Equal(t, testUser.ID, s.docs.upload.User.ID)

	req = multipartUpload(t, "/api/documents/upload", "big.txt", "text/plain", bytes.Repeat([]byte("a"), 2<<10))
	rec, body = s.do(req, "good-token")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, response.CodeFileTooLarge, body.Code)

	req = multipartUpload(t, "/api/documents/upload?is_boe=maybe", "a.txt", "text/plain", []byte("x"))
	rec, _ = s.do(req, "good-token")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentErrors(t *testing.T) {
	s := newTestServer()

	rec, body := s.do(httptest.NewRequest(http.MethodGet, "/api/documents/404", nil), "good-token")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, response.CodeDocumentNotFound, body.Code)

	rec, _ = s.do(httptest.NewRequest(http.MethodGet, "/api/documents/5", nil), "good-token")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"download_url":"https://signed"`)

	rec, _ = s.do(httptest.NewRequest(http.MethodGet, "/api/documents/abc", nil), "good-token")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.docs.deleteErr = app.ErrNotAuthorized
	rec, body = s.do(httptest.NewRequest(http.MethodDelete, "/api/documents/5", nil), "good-token")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, response.CodeForbidden, body.Code)
}

func TestChatMessage(t *testing.T) {
	s := newTestServer()

	rec, _ := s.do(jsonRequest(http.MethodPost, "/api/chat/message", `{"message":"hello"}`), "good-token")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"response":"echo: hello"`)
	assert.Contains(t, rec.Body.String(), `"session_id":"generated"`)

	s.chat.err = errors.Join(app.ErrAssistantUnavailable, errors.New("provider timeout"))
	rec, body := s.do(jsonRequest(http.MethodPost, "/api/chat/message", `{"message":"hello"}`), "good-token")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, response.CodeAssistantUnavailable, body.Code)
	assert.NotContains(t, body.Message, "provider timeout")

	rec, _ = s.do(jsonRequest(http.MethodPost, "/api/chat/message", `{}`), "good-token")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteSession(t *testing.T) {
	s := newTestServer()

	rec, _ := s.do(httptest.NewRequest(http.MethodDelete, "/api/chat/sessions/abc-123", nil), "good-token")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deleted_messages":2`)
	assert.Contains(t, rec.Body.String(), `"deleted_session_id":"abc-123"`)
}

package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"janus-rag/internal/app"
	"janus-rag/internal/model"
	"janus-rag/internal/transport/http/response"
)

type DocumentService interface {
	Upload(ctx context.Context, input app.UploadInput) (*app.UploadResult, error)
	ListDocuments(ctx context.Context, user *model.User) ([]model.Document, error)
	GetDocument(ctx context.Context, user *model.User, id uint) (*model.Document, string, error)
	DeleteDocument(ctx context.Context, user *model.User, id uint) error
}

type DocumentHandler struct {
	documentService DocumentService
	maxUploadBytes  int64
}

func NewDocumentHandler(documentService DocumentService, maxUploadBytes int64) *DocumentHandler {
	return &DocumentHandler{documentService: documentService, maxUploadBytes: maxUploadBytes}
}

// Upload accepts a multipart form with "file". ?is_boe=true routes it to the
// bulletin folder.
func (h *DocumentHandler) Upload(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	isBoe := false
	if raw := c.Query("is_boe"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid is_boe")
			return
		}
		isBoe = parsed
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if h.maxUploadBytes > 0 && file.Size > h.maxUploadBytes {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeFileTooLarge,
			fmt.Sprintf("file too large (max %d bytes)", h.maxUploadBytes))
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}

	result, err := h.documentService.Upload(c.Request.Context(), app.UploadInput{
		User:        user,
		Filename:    file.Filename,
		ContentType: detectContentType(file.Header.Get("Content-Type"), data),
		Data:        data,
		IsBoe:       isBoe,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrEmptyFile):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrFileTooLarge):
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodeFileTooLarge, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "upload failed")
		}
		return
	}

	response.OK(c, result)
}

// detectContentType trusts the part header unless it is missing or generic.
func detectContentType(declared string, data []byte) string {
	if declared != "" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil && mediaType != "application/octet-stream" {
			return declared
		}
	}
	return http.DetectContentType(data)
}

func (h *DocumentHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	docs, err := h.documentService.ListDocuments(c.Request.Context(), user)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		return
	}
	response.OK(c, docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := documentID(c)
	if !ok {
		return
	}

	doc, url, err := h.documentService.GetDocument(c.Request.Context(), user, id)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get document failed")
		return
	}
	if doc == nil {
		response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, app.ErrDocumentNotFound.Error())
		return
	}
	response.OK(c, gin.H{
		"metadata":     doc,
		"download_url": url,
	})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := documentID(c)
	if !ok {
		return
	}

	if err := h.documentService.DeleteDocument(c.Request.Context(), user, id); err != nil {
		switch {
		case errors.Is(err, app.ErrNotAuthorized):
			response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
		case errors.Is(err, app.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete document failed")
		}
		return
	}
	response.OK(c, gin.H{"deleted_document_id": id})
}

func documentID(c *gin.Context) (uint, bool) {
	id64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id64 == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return 0, false
	}
	return uint(id64), true
}

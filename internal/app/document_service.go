package app

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"janus-rag/internal/logging"
	"janus-rag/internal/model"
	"janus-rag/internal/pkg/pdfextract"
	"janus-rag/internal/pkg/textsplit"
)

var tracer = otel.Tracer("janus-rag/app")

var errUndecodableText = errors.New("text is not valid utf-8")

// IngestState is the last pipeline stage an upload reached.
type IngestState string

const (
	StateReceived  IngestState = "received"
	StateStored    IngestState = "stored"
	StateExtracted IngestState = "extracted"
	StateChunked   IngestState = "chunked"
	StateEmbedded  IngestState = "embedded"
	StatePersisted IngestState = "persisted"
)

// IngestOutcome says whether an uploaded document became searchable and, if
// not, why. Every outcome leaves the document record in place.
type IngestOutcome string

const (
	OutcomeIndexed          IngestOutcome = "indexed"
	OutcomeNotIndexed       IngestOutcome = "not_indexed"
	OutcomeUnsupported      IngestOutcome = "unsupported"
	OutcomeEmptyText        IngestOutcome = "empty_text"
	OutcomeExtractionFailed IngestOutcome = "extraction_failed"
	OutcomeEmbeddingFailed  IngestOutcome = "embedding_failed"
	OutcomeIndexFailed      IngestOutcome = "index_failed"
)

type DocumentServiceConfig struct {
	DocsFolder     string
	BoeFolder      string
	ChunkSize      int
	ChunkOverlap   int
	PresignTTL     time.Duration
	MaxUploadBytes int64
	IndexBoe       bool
}

type DocumentService struct {
	docs     DocumentStore
	chunks   ChunkStore
	storage  ObjectStorage
	embedder DocumentEmbedder
	cfg      DocumentServiceConfig
	log      logging.Logger
	newID    func() string
}

type UploadInput struct {
	User        *model.User
	Filename    string
	ContentType string
	Data        []byte
	IsBoe       bool
}

type UploadResult struct {
	Document *model.Document `json:"document"`
	State    IngestState     `json:"state"`
	Outcome  IngestOutcome   `json:"outcome"`
	Chunks   int             `json:"chunks"`
}

func NewDocumentService(
	docs DocumentStore,
	chunks ChunkStore,
	storage ObjectStorage,
	embedder DocumentEmbedder,
	cfg DocumentServiceConfig,
	log logging.Logger,
) *DocumentService {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = textsplit.DefaultChunkSize
		cfg.ChunkOverlap = textsplit.DefaultOverlap
	}
	if cfg.DocsFolder == "" {
		cfg.DocsFolder = "documents"
	}
	if cfg.BoeFolder == "" {
		cfg.BoeFolder = "boe"
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = time.Hour
	}
	if log == nil {
		log = logging.Nop()
	}
	return &DocumentService{
		docs:     docs,
		chunks:   chunks,
		storage:  storage,
		embedder: embedder,
		cfg:      cfg,
		log:      log.With("component", "documents"),
		newID:    uuid.NewString,
	}
}

// Upload stores the file, records it and tries to index its text. Once the
// record exists the upload succeeds; indexing problems only change Outcome.
func (s *DocumentService) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	if input.User == nil {
		return nil, ErrInvalidInput
	}
	filename := cleanFilename(input.Filename)
	if filename == "" {
		return nil, ErrInvalidInput
	}
	if len(input.Data) == 0 {
		return nil, ErrEmptyFile
	}
	if s.cfg.MaxUploadBytes > 0 && int64(len(input.Data)) > s.cfg.MaxUploadBytes {
		return nil, ErrFileTooLarge
	}

	ctx, span := tracer.Start(ctx, "app.Upload")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.content_type", input.ContentType),
		attribute.Int("document.size", len(input.Data)),
		attribute.Bool("document.is_boe", input.IsBoe),
	)

	folder := s.cfg.DocsFolder
	if input.IsBoe {
		folder = s.cfg.BoeFolder
	}
	key := fmt.Sprintf("%s/%d/%s-%s", folder, input.User.ID, s.newID(), filename)

	result := &UploadResult{State: StateReceived}
	if err := s.storage.Put(ctx, key, input.Data, input.ContentType); err != nil {
		return nil, err
	}
	result.State = StateStored

	doc := &model.Document{
		UserID:      input.User.ID,
		Filename:    filename,
		StorageKey:  key,
		Size:        int64(len(input.Data)),
		ContentType: input.ContentType,
		IsBoe:       input.IsBoe,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.log.Error(ctx, "remove orphaned object failed", "key", key, "error", delErr)
		}
		return nil, err
	}
	result.Document = doc

	log := s.log.With("document_id", doc.ID, "user_id", doc.UserID)
	if input.IsBoe && !s.cfg.IndexBoe {
		result.Outcome = OutcomeNotIndexed
		log.Info(ctx, "document stored without indexing", "outcome", result.Outcome)
		return result, nil
	}

	s.index(ctx, log, doc, input.Data, result)
	span.SetAttributes(attribute.String("ingest.outcome", string(result.Outcome)))
	return result, nil
}

func (s *DocumentService) index(ctx context.Context, log logging.Logger, doc *model.Document, data []byte, result *UploadResult) {
	text, supported, err := extractText(doc.ContentType, data)
	if !supported {
		result.Outcome = OutcomeUnsupported
		log.Info(ctx, "content type not indexed", "content_type", doc.ContentType, "outcome", result.Outcome)
		return
	}
	if err != nil {
		result.Outcome = OutcomeExtractionFailed
		log.Warn(ctx, "text extraction failed", "outcome", result.Outcome, "error", err)
		return
	}
	result.State = StateExtracted

	if strings.TrimSpace(text) == "" {
		result.Outcome = OutcomeEmptyText
		log.Info(ctx, "document has no text", "outcome", result.Outcome)
		return
	}
	pieces, err := textsplit.Split(text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if err != nil {
		result.Outcome = OutcomeExtractionFailed
		log.Error(ctx, "split text failed", "outcome", result.Outcome, "error", err)
		return
	}
	result.State = StateChunked

	vectors, err := s.embedder.EmbedDocuments(ctx, pieces)
	if err != nil {
		result.Outcome = OutcomeEmbeddingFailed
		log.Error(ctx, "embed document failed", "outcome", result.Outcome, "chunks", len(pieces), "error", err)
		return
	}
	result.State = StateEmbedded

	chunks := make([]model.DocumentChunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = model.DocumentChunk{
			DocumentID: doc.ID,
			ChunkIndex: i,
			Content:    piece,
			Embedding:  pgvector.NewVector(vectors[i]),
		}
	}
	if err := s.chunks.StoreChunks(ctx, doc.ID, chunks); err != nil {
		result.Outcome = OutcomeIndexFailed
		log.Error(ctx, "store chunks failed", "outcome", result.Outcome, "error", err)
		return
	}
	result.State = StatePersisted
	result.Outcome = OutcomeIndexed
	result.Chunks = len(chunks)
	log.Info(ctx, "document indexed", "outcome", result.Outcome, "chunks", len(chunks))
}

// extractText reports supported=false for content types that are stored but
// never indexed.
func extractText(contentType string, data []byte) (text string, supported bool, err error) {
	mediaType, _, parseErr := mime.ParseMediaType(contentType)
	if parseErr != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}

	switch {
	case mediaType == "application/pdf":
		text, err = pdfextract.ExtractText(data)
		return text, true, err
	case strings.Contains(mediaType, "text"):
		if !utf8.Valid(data) {
			return "", true, errUndecodableText
		}
		return string(data), true, nil
	default:
		return "", false, nil
	}
}

func cleanFilename(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}

func (s *DocumentService) ListDocuments(ctx context.Context, user *model.User) ([]model.Document, error) {
	if user == nil {
		return nil, ErrInvalidInput
	}
	var (
		docs []model.Document
		err  error
	)
	if user.Role.CanViewAllDocuments() {
		docs, err = s.docs.ListAll(ctx)
	} else {
		docs, err = s.docs.ListByUserID(ctx, user.ID)
	}
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []model.Document{}
	}
	return docs, nil
}

// GetDocument returns a nil document when it does not exist or the user may
// not see it.
func (s *DocumentService) GetDocument(ctx context.Context, user *model.User, id uint) (*model.Document, string, error) {
	if user == nil || id == 0 {
		return nil, "", ErrInvalidInput
	}
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if doc == nil || !user.CanView(doc) {
		return nil, "", nil
	}
	url, err := s.storage.PresignedReadURL(ctx, doc.StorageKey, s.cfg.PresignTTL)
	if err != nil {
		return nil, "", err
	}
	return doc, url, nil
}

func (s *DocumentService) DeleteDocument(ctx context.Context, user *model.User, id uint) error {
	if user == nil || id == 0 {
		return ErrInvalidInput
	}
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	if !user.CanDelete(doc) {
		return ErrNotAuthorized
	}

	deleted, err := s.docs.Delete(ctx, doc.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrDocumentNotFound
	}
	if err := s.storage.Delete(ctx, doc.StorageKey); err != nil {
		s.log.Error(ctx, "delete object failed", "document_id", doc.ID, "key", doc.StorageKey, "error", err)
	}
	s.log.Info(ctx, "document deleted", "document_id", doc.ID, "by_user", user.ID)
	return nil
}

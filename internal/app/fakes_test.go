package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"janus-rag/internal/ai"
	"janus-rag/internal/model"
	"janus-rag/internal/repository"
)

type memUsers struct {
	mu     sync.Mutex
	nextID uint
	byID   map[uint]*model.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[uint]*model.User{}}
}

func (m *memUsers) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	m.nextID++
	user.ID = m.nextID
	cp := *user
	m.byID[user.ID] = &cp
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUsers) GetByID(_ context.Context, id uint) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memUsers) UpdateRole(_ context.Context, id uint, role model.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		u.Role = role
	}
	return nil
}

type memDocs struct {
	nextID    uint
	docs      map[uint]*model.Document
	createErr error
}

func newMemDocs(docs ...model.Document) *memDocs {
	m := &memDocs{docs: map[uint]*model.Document{}}
	for i := range docs {
		doc := docs[i]
		m.docs[doc.ID] = &doc
		m.nextID = max(m.nextID, doc.ID)
	}
	return m
}

func (m *memDocs) Create(_ context.Context, doc *model.Document) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	doc.ID = m.nextID
	doc.CreatedAt = time.Now()
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *memDocs) GetByID(_ context.Context, id uint) (*model.Document, error) {
	if doc, ok := m.docs[id]; ok {
		cp := *doc
		return &cp, nil
	}
	return nil, nil
}

func (m *memDocs) ListByUserID(_ context.Context, userID uint) ([]model.Document, error) {
	var out []model.Document
	for _, doc := range m.docs {
		if doc.UserID == userID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (m *memDocs) ListAll(_ context.Context) ([]model.Document, error) {
	var out []model.Document
	for _, doc := range m.docs {
		out = append(out, *doc)
	}
	return out, nil
}

func (m *memDocs) Delete(_ context.Context, id uint) (bool, error) {
	if _, ok := m.docs[id]; !ok {
		return false, nil
	}
	delete(m.docs, id)
	return true, nil
}

type fakeChunks struct {
	stored    map[uint][]model.DocumentChunk
	storeErr  error
	hits      []model.ScoredChunk
	searchErr error

	searches []chunkSearch
}

type chunkSearch struct {
	limit int
	owner *uint
}

func newFakeChunks() *fakeChunks {
	return &fakeChunks{stored: map[uint][]model.DocumentChunk{}}
}

func (f *fakeChunks) StoreChunks(_ context.Context, documentID uint, chunks []model.DocumentChunk) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	f.stored[documentID] = chunks
	return nil
}

func (f *fakeChunks) SearchSimilar(_ context.Context, _ []float32, limit int, ownerID *uint) ([]model.ScoredChunk, error) {
	f.searches = append(f.searches, chunkSearch{limit: limit, owner: ownerID})
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

type fakeStorage struct {
	objects   map[string][]byte
	putErr    error
	deleteErr error
	deleted   []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}}
}

func (f *fakeStorage) Put(_ context.Context, key string, body []byte, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = body
	return nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeStorage) PresignedReadURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return "https://storage.local/" + key + "?ttl=" + ttl.String(), nil
}

type fakeEmbedder struct {
	dims     int
	err      error
	queryErr error
	calls    int
	queries  []string
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dims)
		out[i][0] = float32(i + 1)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.queries = append(f.queries, text)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return make([]float32, f.dims), nil
}

type memMessages struct {
	nextID  uint
	rows    []model.Message
	pairErr error
}

func (m *memMessages) CreatePair(_ context.Context, userMsg, modelMsg *model.Message) error {
	if m.pairErr != nil {
		return m.pairErr
	}
	for _, msg := range []*model.Message{userMsg, modelMsg} {
		m.nextID++
		msg.ID = m.nextID
		m.rows = append(m.rows, *msg)
	}
	return nil
}

func (m *memMessages) ListBySession(_ context.Context, userID uint, sessionID string) ([]model.Message, error) {
	var out []model.Message
	for _, msg := range m.rows {
		if msg.UserID == userID && msg.SessionID == sessionID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memMessages) ListRecentBySession(ctx context.Context, userID uint, sessionID string, limit int) ([]model.Message, error) {
	all, _ := m.ListBySession(ctx, userID, sessionID)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (m *memMessages) LatestPerSession(_ context.Context, userID uint) ([]model.Message, error) {
	var out []model.Message
	for _, msg := range m.rows {
		if msg.UserID == userID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memMessages) DeleteSession(_ context.Context, userID uint, sessionID string) (int64, error) {
	kept := m.rows[:0]
	var n int64
	for _, msg := range m.rows {
		if msg.UserID == userID && msg.SessionID == sessionID {
			n++
			continue
		}
		kept = append(kept, msg)
	}
	m.rows = kept
	return n, nil
}

type scriptedCompleter struct {
	requests []ai.CompletionRequest
	errs     []error
	answer   string
	// toolQuery, when set, makes the completer call the first tool once
	toolQuery string
}

func (c *scriptedCompleter) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResult, error) {
	c.requests = append(c.requests, req)
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	result := &ai.CompletionResult{Text: c.answer}
	if c.toolQuery != "" && len(req.Tools) > 0 {
		output, err := req.Tools[0].Call(ctx, c.toolQuery)
		if err != nil {
			return nil, err
		}
		result.ToolCalls = append(result.ToolCalls, ai.ToolCall{Name: req.Tools[0].Name, Query: c.toolQuery, Output: output})
	}
	return result, nil
}

type memHistory struct {
	entries map[string][]model.Message
	deletes int
}

func newMemHistory() *memHistory {
	return &memHistory{entries: map[string][]model.Message{}}
}

func (h *memHistory) key(userID uint, sessionID string) string {
	return fmt.Sprintf("%d/%s", userID, sessionID)
}

func (h *memHistory) GetHistory(_ context.Context, userID uint, sessionID string) ([]model.Message, bool, error) {
	msgs, ok := h.entries[h.key(userID, sessionID)]
	return msgs, ok, nil
}

func (h *memHistory) SetHistory(_ context.Context, userID uint, sessionID string, messages []model.Message) error {
	h.entries[h.key(userID, sessionID)] = messages
	return nil
}

func (h *memHistory) DeleteHistory(_ context.Context, userID uint, sessionID string) error {
	h.deletes++
	delete(h.entries, h.key(userID, sessionID))
	return nil
}

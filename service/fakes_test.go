package service

import (
	"context"
	"strings"
	"sync"

	"github.com/davitran/docchat-be/types"
)

// fakeDocumentRepo is an in-memory single-document store for service tests.
type fakeDocumentRepo struct {
	mu         sync.Mutex
	doc        *types.Document
	busy       bool
	statuses   []string
	lastError  string
	progress   []float64
	embeddings map[int][]float32
}

func newFakeDocumentRepo(doc *types.Document) *fakeDocumentRepo {
	if doc.ID == "" {
		doc.ID = "doc1"
	}
	return &fakeDocumentRepo{doc: doc, embeddings: make(map[int][]float32)}
}

func (r *fakeDocumentRepo) CreateDocument(ctx context.Context, doc *types.Document) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc.ID = "doc1"
	r.doc = doc
	return doc.ID, nil
}

func (r *fakeDocumentRepo) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doc == nil || r.doc.ID != id {
		return nil, types.ErrNotFound
	}
	copied := *r.doc
	copied.Chunks = append([]types.Chunk(nil), r.doc.Chunks...)
	return &copied, nil
}

func (r *fakeDocumentRepo) ListDocuments(ctx context.Context) ([]*types.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doc == nil {
		return nil, nil
	}
	return []*types.Document{r.doc}, nil
}

func (r *fakeDocumentRepo) DeleteDocument(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doc == nil || r.doc.ID != id {
		return types.ErrNotFound
	}
	r.doc = nil
	return nil
}

func (r *fakeDocumentRepo) TryMarkProcessing(ctx context.Context, id string, staleBefore int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busy {
		return false, nil
	}
	r.doc.EmbeddingStatus = types.EMBEDDING_STATUS_PROCESSING
	return true, nil
}

func (r *fakeDocumentRepo) SetEmbeddingStatus(ctx context.Context, id, status, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
	r.lastError = errMsg
	r.doc.EmbeddingStatus = status
	return nil
}

func (r *fakeDocumentRepo) SetEmbeddingProgress(ctx context.Context, id string, progress float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, progress)
	return nil
}

func (r *fakeDocumentRepo) SetChunkEmbeddings(ctx context.Context, id string, embeddings map[int][]float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for idx, emb := range embeddings {
		r.embeddings[idx] = emb
		if idx < len(r.doc.Chunks) {
			r.doc.Chunks[idx].Embedding = emb
		}
	}
	return nil
}

type fakeConversationRepo struct {
	mu       sync.Mutex
	messages []types.ChatMessage
}

func (r *fakeConversationRepo) GetByDocument(ctx context.Context, documentID string) (*types.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return nil, types.ErrNotFound
	}
	return &types.Conversation{DocumentID: documentID, Messages: r.messages}, nil
}

func (r *fakeConversationRepo) AppendMessages(ctx context.Context, documentID string, messages []types.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, messages...)
	return nil
}

func (r *fakeConversationRepo) DeleteByDocument(ctx context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
	return nil
}

type fakeAnswerer struct {
	answer     string
	lastPrompt string
	err        error
}

func (a *fakeAnswerer) Generate(ctx context.Context, prompt string) (string, error) {
	a.lastPrompt = prompt
	if a.err != nil {
		return "", a.err
	}
	return a.answer, nil
}

func (a *fakeAnswerer) GenerateStream(ctx context.Context, prompt string, handler types.StreamHandler) error {
	a.lastPrompt = prompt
	if a.err != nil {
		return a.err
	}
	for _, word := range strings.SplitAfter(a.answer, " ") {
		handler(word)
	}
	return nil
}

type fakeEmbedder struct {
	mu     sync.Mutex
	fn     func(text string) ([]float32, error)
	called int
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.called++
	e.mu.Unlock()
	if e.fn != nil {
		return e.fn(text)
	}
	return []float32{1, 0}, nil
}

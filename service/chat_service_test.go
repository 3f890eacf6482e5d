package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davitran/docchat-be/types"
)

func newTestChatService(doc *types.Document, answerer *fakeAnswerer, embedder *fakeEmbedder) (*ChatService, *fakeDocumentRepo, *fakeConversationRepo) {
	docs := newFakeDocumentRepo(doc)
	convs := &fakeConversationRepo{}
	var emb Embedder
	if embedder != nil {
		emb = embedder
	}
	chat := NewChatService(
		docs, convs,
		NewKeywordService(5), NewVectorService(),
		answerer, emb,
		types.DocumentServiceConfig{MaxChunks: 5, SimilarityThreshold: 0.5, ContextBudget: 12000},
	)
	return chat, docs, convs
}

func chatTestDocument(status string) *types.Document {
	return &types.Document{
		ID:              "doc1",
		OriginalName:    "resume.pdf",
		Content:         "The candidate is a machine learning expert. A section about cooking recipes follows here.",
		EmbeddingStatus: status,
		Chunks: []types.Chunk{
			{ChunkIndex: 0, Page: 1, Text: "The candidate is a machine learning expert with production experience."},
			{ChunkIndex: 1, Page: 2, Text: "A collection of cooking recipes and food photography tips."},
		},
	}
}

func TestAnswerQuestionKeywordWhenEmbeddingsPending(t *testing.T) {
	answerer := &fakeAnswerer{answer: "They know machine learning."}
	embedder := &fakeEmbedder{}
	chat, _, _ := newTestChatService(chatTestDocument(types.EMBEDDING_STATUS_PENDING), answerer, embedder)

	result, err := chat.AnswerQuestion(context.Background(), "doc1", "machine learning experience")
	require.NoError(t, err)

	assert.Equal(t, types.SEARCH_METHOD_KEYWORD, result.SearchMethod)
	assert.Zero(t, embedder.called, "embedder must not be called before embeddings complete")
	require.NotEmpty(t, result.Citations)
	assert.Equal(t, 1, result.Citations[0].Page)
}

func TestAnswerQuestionVector(t *testing.T) {
	doc := chatTestDocument(types.EMBEDDING_STATUS_COMPLETED)
	doc.Chunks[0].Embedding = []float32{1, 0}
	doc.Chunks[1].Embedding = []float32{0, 1}
	answerer := &fakeAnswerer{answer: "An answer."}
	embedder := &fakeEmbedder{fn: func(string) ([]float32, error) { return []float32{1, 0}, nil }}
	chat, _, _ := newTestChatService(doc, answerer, embedder)

	result, err := chat.AnswerQuestion(context.Background(), "doc1", "machine learning experience")
	require.NoError(t, err)

	assert.Equal(t, types.SEARCH_METHOD_VECTOR, result.SearchMethod)
	require.Len(t, result.SourceChunks, 1)
	assert.Equal(t, 0, result.SourceChunks[0].ChunkIndex)
}

func TestAnswerQuestionVectorFailureFallsBackToKeyword(t *testing.T) {
	doc := chatTestDocument(types.EMBEDDING_STATUS_COMPLETED)
	doc.Chunks[0].Embedding = []float32{1, 0}
	doc.Chunks[1].Embedding = []float32{0, 1}
	answerer := &fakeAnswerer{answer: "An answer."}
	embedder := &fakeEmbedder{fn: func(string) ([]float32, error) {
		return nil, fmt.Errorf("embedding backend down: %w", types.ErrUnavailable)
	}}
	chat, _, _ := newTestChatService(doc, answerer, embedder)

	result, err := chat.AnswerQuestion(context.Background(), "doc1", "machine learning experience")
	require.NoError(t, err)
	assert.Equal(t, types.SEARCH_METHOD_KEYWORD, result.SearchMethod)
}

func TestAnswerQuestionFullDocumentFallback(t *testing.T) {
	answerer := &fakeAnswerer{answer: "An answer."}
	chat, _, _ := newTestChatService(chatTestDocument(types.EMBEDDING_STATUS_PENDING), answerer, nil)

	// every token is a stop word, so lexical search has nothing to work with
	result, err := chat.AnswerQuestion(context.Background(), "doc1", "what is this about")
	require.NoError(t, err)

	assert.Equal(t, types.SEARCH_METHOD_FULL_DOCUMENT, result.SearchMethod)
	assert.Empty(t, result.Citations)
	assert.Contains(t, answerer.lastPrompt, "machine learning expert")
}

func TestAnswerQuestionFullDocumentTruncation(t *testing.T) {
	doc := &types.Document{
		ID:              "doc1",
		OriginalName:    "big.pdf",
		Content:         strings.Repeat("x", 5000),
		EmbeddingStatus: types.EMBEDDING_STATUS_PENDING,
	}
	answerer := &fakeAnswerer{answer: "An answer."}
	docs := newFakeDocumentRepo(doc)
	chat := NewChatService(
		docs, &fakeConversationRepo{},
		NewKeywordService(5), NewVectorService(),
		answerer, nil,
		types.DocumentServiceConfig{MaxChunks: 5, SimilarityThreshold: 0.5, ContextBudget: 1000},
	)

	result, err := chat.AnswerQuestion(context.Background(), "doc1", "what is this about")
	require.NoError(t, err)

	assert.Equal(t, types.SEARCH_METHOD_FULL_DOCUMENT, result.SearchMethod)
	assert.Contains(t, answerer.lastPrompt, "[content truncated]")
	assert.Less(t, len(answerer.lastPrompt), 5000)
}

func TestAnswerQuestionPersistsConversation(t *testing.T) {
	answerer := &fakeAnswerer{answer: "They know machine learning."}
	chat, _, convs := newTestChatService(chatTestDocument(types.EMBEDDING_STATUS_PENDING), answerer, nil)

	_, err := chat.AnswerQuestion(context.Background(), "doc1", "machine learning experience")
	require.NoError(t, err)

	require.Len(t, convs.messages, 2)
	assert.Equal(t, types.MESSAGE_ROLE_USER, convs.messages[0].Role)
	assert.Equal(t, "machine learning experience", convs.messages[0].Content)
	assert.Equal(t, types.MESSAGE_ROLE_ASSISTANT, convs.messages[1].Role)
	assert.Equal(t, "They know machine learning.", convs.messages[1].Content)
}

func TestAnswerQuestionValidation(t *testing.T) {
	answerer := &fakeAnswerer{answer: "unused"}
	chat, _, _ := newTestChatService(chatTestDocument(types.EMBEDDING_STATUS_PENDING), answerer, nil)

	_, err := chat.AnswerQuestion(context.Background(), "doc1", "   ")
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = chat.AnswerQuestion(context.Background(), "missing", "a real question")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestAnswerQuestionStream(t *testing.T) {
	answerer := &fakeAnswerer{answer: "streamed answer text"}
	chat, _, convs := newTestChatService(chatTestDocument(types.EMBEDDING_STATUS_PENDING), answerer, nil)

	var fragments []string
	result, err := chat.AnswerQuestionStream(context.Background(), "doc1", "machine learning experience", func(f string) {
		fragments = append(fragments, f)
	})
	require.NoError(t, err)

	assert.Equal(t, "streamed answer text", strings.Join(fragments, ""))
	assert.Equal(t, "streamed answer text", result.Answer)
	assert.Len(t, convs.messages, 2)
}

// deadlineAnswerer records whether the model calls arrive with a deadline.
type deadlineAnswerer struct {
	hasDeadline       bool
	streamHasDeadline bool
}

func (a *deadlineAnswerer) Generate(ctx context.Context, prompt string) (string, error) {
	_, a.hasDeadline = ctx.Deadline()
	return "an answer", nil
}

func (a *deadlineAnswerer) GenerateStream(ctx context.Context, prompt string, handler types.StreamHandler) error {
	_, a.streamHasDeadline = ctx.Deadline()
	handler("an answer")
	return nil
}

func TestAnswerQuestionBoundsModelCallDeadline(t *testing.T) {
	answerer := &deadlineAnswerer{}
	docs := newFakeDocumentRepo(chatTestDocument(types.EMBEDDING_STATUS_PENDING))
	chat := NewChatService(
		docs, &fakeConversationRepo{},
		NewKeywordService(5), NewVectorService(),
		answerer, nil,
		types.DocumentServiceConfig{MaxChunks: 5, ContextBudget: 12000, AnswerTimeoutSecs: 30},
	)

	_, err := chat.AnswerQuestion(context.Background(), "doc1", "machine learning experience")
	require.NoError(t, err)
	assert.True(t, answerer.hasDeadline, "Generate must run under a bounded deadline")

	_, err = chat.AnswerQuestionStream(context.Background(), "doc1", "machine learning experience", func(string) {})
	require.NoError(t, err)
	assert.True(t, answerer.streamHasDeadline, "GenerateStream must run under a bounded deadline")
}

func TestChunkContextStaysWithinBudget(t *testing.T) {
	chat := NewChatService(
		newFakeDocumentRepo(chatTestDocument(types.EMBEDDING_STATUS_PENDING)), &fakeConversationRepo{},
		NewKeywordService(5), NewVectorService(),
		&fakeAnswerer{}, nil,
		types.DocumentServiceConfig{MaxChunks: 5, ContextBudget: 100},
	)

	// a single chunk bigger than the whole budget, marker included
	results := []types.RelevanceResult{
		{Chunk: types.Chunk{ChunkIndex: 0, Page: 1, Text: strings.Repeat("y", 500)}, Score: 1},
	}
	built := chat.chunkContext(results)

	assert.LessOrEqual(t, len(built), 100)
	assert.Contains(t, built, truncatedMarker)
}

func TestGetConversationEmpty(t *testing.T) {
	answerer := &fakeAnswerer{}
	chat, _, _ := newTestChatService(chatTestDocument(types.EMBEDDING_STATUS_PENDING), answerer, nil)

	conv, err := chat.GetConversation(context.Background(), "doc1")
	require.NoError(t, err)
	assert.Empty(t, conv.Messages)

	_, err = chat.GetConversation(context.Background(), "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestSearchChunksPreview(t *testing.T) {
	answerer := &fakeAnswerer{}
	chat, _, _ := newTestChatService(chatTestDocument(types.EMBEDDING_STATUS_PENDING), answerer, nil)

	method, results, err := chat.SearchChunks(context.Background(), "doc1", "machine learning", 3)
	require.NoError(t, err)
	assert.Equal(t, types.SEARCH_METHOD_KEYWORD, method)
	require.NotEmpty(t, results)
	assert.Equal(t, 0, results[0].Chunk.ChunkIndex)

	_, _, err = chat.SearchChunks(context.Background(), "doc1", "  ", 3)
	assert.ErrorIs(t, err, types.ErrValidation)
}

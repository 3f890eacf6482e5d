package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/davitran/docchat-be/repository"
	"github.com/davitran/docchat-be/types"
)

const (
	excerptLen      = 150
	truncatedMarker = "[content truncated]"
	answerAttempts  = 3
)

// ChatService answers questions about a document. Retrieval degrades through
// three strategies: vector similarity when embeddings are ready, lexical
// keyword scoring otherwise, and the raw document text as a last resort. The
// strategy actually used is attached to every answer.
type ChatService struct {
	documents     repository.DocumentRepo
	conversations repository.ConversationRepo
	keyword       *KeywordService
	vector        *VectorService
	answerer      Answerer
	embedder      Embedder
	maxChunks     int
	threshold     float64
	contextBudget int
	answerTimeout time.Duration
}

func NewChatService(
	documents repository.DocumentRepo,
	conversations repository.ConversationRepo,
	keyword *KeywordService,
	vector *VectorService,
	answerer Answerer,
	embedder Embedder,
	config types.DocumentServiceConfig,
) *ChatService {
	maxChunks := config.MaxChunks
	if maxChunks <= 0 {
		maxChunks = 5
	}
	budget := config.ContextBudget
	if budget <= 0 {
		budget = 12000
	}
	answerTimeout := time.Duration(config.AnswerTimeoutSecs) * time.Second
	if answerTimeout <= 0 {
		answerTimeout = 60 * time.Second
	}
	return &ChatService{
		documents:     documents,
		conversations: conversations,
		keyword:       keyword,
		vector:        vector,
		answerer:      answerer,
		embedder:      embedder,
		maxChunks:     maxChunks,
		threshold:     config.SimilarityThreshold,
		contextBudget: budget,
		answerTimeout: answerTimeout,
	}
}

// retrieval holds the outcome of the strategy chain for one question.
type retrieval struct {
	method  string
	results []types.RelevanceResult
	context string
}

// AnswerQuestion retrieves relevant context for the question, asks the model,
// and persists both sides of the exchange to the document's conversation.
func (s *ChatService) AnswerQuestion(ctx context.Context, documentID, question string) (*types.ChatAnswer, error) {
	doc, question, err := s.prepare(ctx, documentID, question)
	if err != nil {
		return nil, err
	}

	ret := s.retrieve(ctx, doc, question)
	prompt := buildPrompt(doc.OriginalName, ret.context, question)

	// a hung upstream must not hold the request open forever
	genCtx, cancel := context.WithTimeout(ctx, s.answerTimeout)
	defer cancel()

	var answer string
	err = withUpstreamRetry(genCtx, answerAttempts, func() error {
		var genErr error
		answer, genErr = s.answerer.Generate(genCtx, prompt)
		return genErr
	})
	if err != nil {
		return nil, err
	}

	result := s.buildAnswer(answer, ret)
	s.persistExchange(ctx, doc.ID, question, result)
	return result, nil
}

// AnswerQuestionStream is AnswerQuestion with the answer delivered in
// fragments through handler. The returned ChatAnswer carries the full
// accumulated text for the caller's closing frame.
func (s *ChatService) AnswerQuestionStream(ctx context.Context, documentID, question string, handler types.StreamHandler) (*types.ChatAnswer, error) {
	doc, question, err := s.prepare(ctx, documentID, question)
	if err != nil {
		return nil, err
	}

	ret := s.retrieve(ctx, doc, question)
	prompt := buildPrompt(doc.OriginalName, ret.context, question)

	genCtx, cancel := context.WithTimeout(ctx, s.answerTimeout)
	defer cancel()

	var sb strings.Builder
	err = s.answerer.GenerateStream(genCtx, prompt, func(fragment string) {
		sb.WriteString(fragment)
		handler(fragment)
	})
	if err != nil {
		return nil, err
	}

	result := s.buildAnswer(sb.String(), ret)
	s.persistExchange(ctx, doc.ID, question, result)
	return result, nil
}

// GetConversation returns the document's chat history. A document that has
// never been chatted with yields an empty conversation, not an error.
func (s *ChatService) GetConversation(ctx context.Context, documentID string) (*types.Conversation, error) {
	if _, err := s.documents.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	conv, err := s.conversations.GetByDocument(ctx, documentID)
	if errors.Is(err, types.ErrNotFound) {
		return &types.Conversation{DocumentID: documentID, Messages: []types.ChatMessage{}}, nil
	}
	return conv, err
}

// SearchChunks previews retrieval for a query without calling the model.
func (s *ChatService) SearchChunks(ctx context.Context, documentID, query string, limit int) (string, []types.RelevanceResult, error) {
	if strings.TrimSpace(query) == "" {
		return "", nil, fmt.Errorf("%w: query is required", types.ErrValidation)
	}
	doc, err := s.documents.GetDocument(ctx, documentID)
	if err != nil {
		return "", nil, err
	}
	if limit <= 0 || limit > s.maxChunks {
		limit = s.maxChunks
	}

	if results, err := s.tryVector(ctx, doc, query, limit); err == nil {
		return types.SEARCH_METHOD_VECTOR, results, nil
	}
	results, err := s.keyword.ScoreChunks(doc.Chunks, query)
	if err != nil {
		return "", nil, err
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return types.SEARCH_METHOD_KEYWORD, results, nil
}

func (s *ChatService) prepare(ctx context.Context, documentID, question string) (*types.Document, string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, "", fmt.Errorf("%w: message is required", types.ErrValidation)
	}
	doc, err := s.documents.GetDocument(ctx, documentID)
	if err != nil {
		return nil, "", err
	}
	if strings.TrimSpace(doc.Content) == "" && len(doc.Chunks) == 0 {
		return nil, "", fmt.Errorf("%w: document has no text content", types.ErrNoTextExtracted)
	}
	return doc, question, nil
}

// retrieve runs the strategy chain. Strategy failures are recovered here and
// never surface to the caller; the worst case is the full document text.
func (s *ChatService) retrieve(ctx context.Context, doc *types.Document, question string) retrieval {
	if len(doc.Chunks) > 0 {
		if results, err := s.tryVector(ctx, doc, question, s.maxChunks); err == nil {
			return retrieval{
				method:  types.SEARCH_METHOD_VECTOR,
				results: results,
				context: s.chunkContext(results),
			}
		} else if !errors.Is(err, errVectorSkipped) {
			log.Warn().Err(err).Str("document_id", doc.ID).Msg("vector search failed, falling back to keyword")
		}

		results, err := s.keyword.ScoreChunks(doc.Chunks, question)
		if err == nil {
			return retrieval{
				method:  types.SEARCH_METHOD_KEYWORD,
				results: results,
				context: s.chunkContext(results),
			}
		}
		log.Warn().Err(err).Str("document_id", doc.ID).Msg("keyword search failed, falling back to full document")
	}

	return retrieval{
		method:  types.SEARCH_METHOD_FULL_DOCUMENT,
		context: s.fullDocumentContext(doc.Content),
	}
}

// errVectorSkipped means vector search was not attempted at all, as opposed
// to attempted and failed.
var errVectorSkipped = errors.New("vector search not applicable")

func (s *ChatService) tryVector(ctx context.Context, doc *types.Document, query string, limit int) ([]types.RelevanceResult, error) {
	if s.embedder == nil || doc.EmbeddingStatus != types.EMBEDDING_STATUS_COMPLETED {
		return nil, errVectorSkipped
	}
	embedCtx, cancel := context.WithTimeout(ctx, s.answerTimeout)
	defer cancel()
	queryEmbedding, err := s.embedder.Embed(embedCtx, query)
	if err != nil {
		return nil, err
	}
	return s.vector.FindSimilar(doc.Chunks, queryEmbedding, limit, s.threshold)
}

// chunkContext concatenates chunk texts highest score first, stopping at the
// context budget. The first chunk is always represented, truncated if it
// alone blows the budget.
func (s *ChatService) chunkContext(results []types.RelevanceResult) string {
	var sb strings.Builder
	for i, r := range results {
		block := fmt.Sprintf("[Page %d] %s", r.Chunk.Page, r.Chunk.Text)
		if sb.Len()+len(block)+2 > s.contextBudget {
			if i == 0 {
				// reserve room for the marker so the total stays in budget
				keep := s.contextBudget - len(truncatedMarker) - 1
				if keep < 0 {
					keep = 0
				}
				if len(block) > keep {
					block = block[:keep]
				}
				sb.WriteString(block)
				sb.WriteString("\n")
				sb.WriteString(truncatedMarker)
			}
			break
		}
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(block)
	}
	return sb.String()
}

// fullDocumentContext fits the whole document into the budget, keeping head
// and tail around an explicit truncation marker when it does not fit.
func (s *ChatService) fullDocumentContext(content string) string {
	if len(content) <= s.contextBudget {
		return content
	}
	half := (s.contextBudget - len(truncatedMarker) - 4) / 2
	if half <= 0 {
		return content[:s.contextBudget]
	}
	return content[:half] + "\n\n" + truncatedMarker + "\n\n" + content[len(content)-half:]
}

func (s *ChatService) buildAnswer(answer string, ret retrieval) *types.ChatAnswer {
	result := &types.ChatAnswer{
		Answer:       answer,
		SearchMethod: ret.method,
		Citations:    []types.Citation{},
		SourceChunks: []types.SourceChunk{},
	}
	for _, r := range ret.results {
		result.Citations = append(result.Citations, types.Citation{
			Page:    r.Chunk.Page,
			Excerpt: excerpt(r.Chunk.Text),
		})
		result.SourceChunks = append(result.SourceChunks, types.SourceChunk{
			ChunkIndex: r.Chunk.ChunkIndex,
			Page:       r.Chunk.Page,
			Excerpt:    excerpt(r.Chunk.Text),
			Score:      r.Score,
		})
	}
	return result
}

// persistExchange appends the question and answer to the conversation. A
// storage failure here loses history, not the answer, so it only logs.
func (s *ChatService) persistExchange(ctx context.Context, documentID, question string, answer *types.ChatAnswer) {
	now := time.Now().Unix()
	messages := []types.ChatMessage{
		{Role: types.MESSAGE_ROLE_USER, Content: question, CreatedAt: now},
		{Role: types.MESSAGE_ROLE_ASSISTANT, Content: answer.Answer, Citations: answer.Citations, CreatedAt: now},
	}
	if err := s.conversations.AppendMessages(ctx, documentID, messages); err != nil {
		log.Warn().Err(err).Str("document_id", documentID).Msg("failed to persist conversation")
	}
}

func buildPrompt(documentName, context, question string) string {
	var sb strings.Builder
	sb.WriteString("You are a helpful assistant answering questions about the document \"")
	sb.WriteString(documentName)
	sb.WriteString("\".\n\n")
	sb.WriteString("Use only the document content below. If the answer is not in the content, say so.\n\n")
	sb.WriteString("Document content:\n")
	sb.WriteString(context)
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\n\nAnswer:")
	return sb.String()
}

func excerpt(text string) string {
	if len(text) <= excerptLen {
		return text
	}
	return strings.TrimSpace(text[:excerptLen]) + "..."
}

package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/davitran/docchat-be/types"
)

// errModelNotFound means the current model candidate is unknown to the API;
// the next candidate is tried instead.
var errModelNotFound = errors.New("model not found")

// GeminiService implements Answerer and Embedder on the Gemini API. Model
// candidates are an explicit ordered list: a candidate failing with a
// retryable status (404/429/503) hands over to the next one, while fatal
// statuses (400/403) surface immediately.
type GeminiService struct {
	apiKeys         []string
	currentKey      int
	client          *genai.Client
	modelCandidates []string
	embeddingModel  string
	mu              sync.Mutex
}

func NewGeminiService(apiKeys []string, modelCandidates []string, embeddingModel string) (*GeminiService, error) {
	if len(apiKeys) == 0 {
		return nil, errors.New("no API keys provided")
	}
	if len(modelCandidates) == 0 {
		return nil, errors.New("no model candidates provided")
	}

	service := &GeminiService{
		apiKeys:         apiKeys,
		currentKey:      0,
		modelCandidates: modelCandidates,
		embeddingModel:  embeddingModel,
	}
	if err := service.initClient(); err != nil {
		return nil, err
	}
	return service, nil
}

func (s *GeminiService) initClient() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(s.apiKeys[s.currentKey]))
	if err != nil {
		return err
	}
	s.client = client
	return nil
}

func (s *GeminiService) rotateAPIKey() error {
	s.mu.Lock()
	s.currentKey = (s.currentKey + 1) % len(s.apiKeys)
	if err := s.client.Close(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()
	return s.initClient()
}

func (s *GeminiService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client.Close()
}

// getClient snapshots the client pointer; rotateAPIKey replaces it under the
// same lock, so concurrent requests never see a torn write.
func (s *GeminiService) getClient() *genai.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// Generate walks the candidate list until one model produces an answer.
func (s *GeminiService) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for _, modelName := range s.modelCandidates {
		model := s.getClient().GenerativeModel(modelName)
		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			cerr := classifyGeminiError(err)
			if !isCandidateRetryable(cerr) {
				return "", cerr
			}
			log.Warn().Err(cerr).Str("model", modelName).Msg("model candidate failed, trying next")
			if errors.Is(cerr, types.ErrRateLimited) {
				if rerr := s.rotateAPIKey(); rerr != nil {
					log.Warn().Err(rerr).Msg("failed to rotate API key")
				}
			}
			lastErr = cerr
			continue
		}
		return extractResponseText(resp)
	}
	if lastErr == nil {
		lastErr = types.ErrUnavailable
	}
	return "", lastErr
}

// GenerateStream streams fragments from the first candidate that accepts the
// request.
func (s *GeminiService) GenerateStream(ctx context.Context, prompt string, handler types.StreamHandler) error {
	var lastErr error
	for _, modelName := range s.modelCandidates {
		model := s.getClient().GenerativeModel(modelName)
		iter := model.GenerateContentStream(ctx, genai.Text(prompt))

		streamed := false
		for {
			resp, err := iter.Next()
			if err == iterator.Done {
				return nil
			}
			if err != nil {
				cerr := classifyGeminiError(err)
				if streamed || !isCandidateRetryable(cerr) {
					return cerr
				}
				log.Warn().Err(cerr).Str("model", modelName).Msg("model candidate failed, trying next")
				lastErr = cerr
				break
			}
			for _, candidate := range resp.Candidates {
				if candidate.Content == nil {
					continue
				}
				for _, part := range candidate.Content.Parts {
					if text, ok := part.(genai.Text); ok {
						streamed = true
						handler(string(text))
					}
				}
			}
		}
	}
	if lastErr == nil {
		lastErr = types.ErrUnavailable
	}
	return lastErr
}

// Embed returns the embedding vector for text, truncated to the input cap.
func (s *GeminiService) Embed(ctx context.Context, text string) ([]float32, error) {
	em := s.getClient().EmbeddingModel(s.embeddingModel)
	resp, err := em.EmbedContent(ctx, genai.Text(truncateForEmbedding(text)))
	if err != nil {
		return nil, classifyGeminiError(err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", types.ErrMalformedResponse)
	}
	return resp.Embedding.Values, nil
}

func extractResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason == genai.BlockReasonSafety {
		return "", types.ErrSafetyBlocked
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", types.ErrMalformedResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", types.ErrSafetyBlocked
	}
	content := ""
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				content += string(text)
			}
		}
	}
	if content == "" {
		return "", fmt.Errorf("%w: empty candidate content", types.ErrMalformedResponse)
	}
	return content, nil
}

// isCandidateRetryable reports whether the next model candidate should be
// tried after this error.
func isCandidateRetryable(err error) bool {
	return errors.Is(err, errModelNotFound) ||
		errors.Is(err, types.ErrRateLimited) ||
		errors.Is(err, types.ErrUnavailable)
}

func classifyGeminiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", errModelNotFound, gerr.Message)
		case http.StatusTooManyRequests:
			return &types.RetryAfterError{Err: types.ErrRateLimited, RetryAfter: 30 * time.Second}
		case http.StatusServiceUnavailable, http.StatusBadGateway:
			return &types.RetryAfterError{Err: types.ErrUnavailable, RetryAfter: 10 * time.Second}
		case http.StatusRequestEntityTooLarge:
			return types.ErrPayloadTooLarge
		case http.StatusBadRequest, http.StatusForbidden:
			return fmt.Errorf("upstream rejected request: %w", err)
		}
	}
	return err
}

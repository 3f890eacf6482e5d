package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/davitran/docchat-be/types"
)

// OpenAIService implements Answerer and Embedder against any
// OpenAI-compatible endpoint, which covers self-hosted gateways as well.
type OpenAIService struct {
	client         *openai.Client
	model          string
	embeddingModel string
}

func NewOpenAIService(baseURL, apiKey, model, embeddingModel string) *OpenAIService {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIService{
		client:         openai.NewClientWithConfig(config),
		model:          model,
		embeddingModel: embeddingModel,
	}
}

func (s *OpenAIService) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", types.ErrMalformedResponse)
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return "", types.ErrSafetyBlocked
	}
	if choice.Message.Content == "" {
		return "", fmt.Errorf("%w: empty choice content", types.ErrMalformedResponse)
	}
	return choice.Message.Content, nil
}

func (s *OpenAIService) GenerateStream(ctx context.Context, prompt string, handler types.StreamHandler) error {
	stream, err := s.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream: true,
	})
	if err != nil {
		return classifyOpenAIError(err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return classifyOpenAIError(err)
		}
		for _, choice := range resp.Choices {
			if choice.FinishReason == openai.FinishReasonContentFilter {
				return types.ErrSafetyBlocked
			}
			if choice.Delta.Content != "" {
				handler(choice.Delta.Content)
			}
		}
	}
}

func (s *OpenAIService) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{truncateForEmbedding(text)},
		Model: openai.EmbeddingModel(s.embeddingModel),
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", types.ErrMalformedResponse)
	}
	return resp.Data[0].Embedding, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return &types.RetryAfterError{Err: types.ErrRateLimited, RetryAfter: 30 * time.Second}
		case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusInternalServerError:
			return &types.RetryAfterError{Err: types.ErrUnavailable, RetryAfter: 10 * time.Second}
		case http.StatusRequestEntityTooLarge:
			return types.ErrPayloadTooLarge
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("upstream rejected request: %w", err)
		}
	}
	return err
}

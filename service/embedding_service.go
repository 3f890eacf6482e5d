package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/davitran/docchat-be/repository"
	"github.com/davitran/docchat-be/types"
)

// progressEvery is how many chunks go between progress writes.
const progressEvery = 5

// EmbeddingService computes chunk embeddings in the background. Documents are
// processed in batches throttled by a rate limiter, so a large upload does not
// burn through the embedding API quota in one burst. Only one pass runs per
// document at a time; the conditional processing mark in the store is the lock.
type EmbeddingService struct {
	documents  repository.DocumentRepo
	embedder   Embedder
	batchSize  int
	limiter    *rate.Limiter
	maxRetries int
	timeout    time.Duration
	staleAfter time.Duration
}

func NewEmbeddingService(documents repository.DocumentRepo, embedder Embedder, config types.EmbeddingConfig) *EmbeddingService {
	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = 5
	}
	interval := time.Duration(config.BatchIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	timeout := time.Duration(config.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	staleAfter := time.Duration(config.StaleAfterSecs) * time.Second
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &EmbeddingService{
		documents:  documents,
		embedder:   embedder,
		batchSize:  batchSize,
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
		maxRetries: config.MaxRetries,
		timeout:    timeout,
		staleAfter: staleAfter,
	}
}

// Enabled reports whether an embedding provider is configured.
func (s *EmbeddingService) Enabled() bool {
	return s.embedder != nil
}

// Start claims the document for processing and launches the pass in the
// background. Returns types.ErrAlreadyProcessing when a non-stale pass is
// already running for this document.
func (s *EmbeddingService) Start(ctx context.Context, documentID string) error {
	if err := s.claim(ctx, documentID); err != nil {
		return err
	}
	// detached from the request context so the pass survives the response
	go s.run(context.Background(), documentID)
	return nil
}

// Process claims the document and runs the pass synchronously. Used by the
// offline ingestion command.
func (s *EmbeddingService) Process(ctx context.Context, documentID string) error {
	if err := s.claim(ctx, documentID); err != nil {
		return err
	}
	s.run(ctx, documentID)
	return nil
}

func (s *EmbeddingService) claim(ctx context.Context, documentID string) error {
	if !s.Enabled() {
		return fmt.Errorf("%w: no embedding provider configured", types.ErrUnavailable)
	}
	staleBefore := time.Now().Add(-s.staleAfter).Unix()
	ok, err := s.documents.TryMarkProcessing(ctx, documentID, staleBefore)
	if err != nil {
		return err
	}
	if !ok {
		return types.ErrAlreadyProcessing
	}
	return nil
}

func (s *EmbeddingService) run(ctx context.Context, documentID string) {
	start := time.Now()
	doc, err := s.documents.GetDocument(ctx, documentID)
	if err != nil {
		log.Error().Err(err).Str("document_id", documentID).Msg("embedding pass aborted, document fetch failed")
		s.fail(ctx, documentID, err)
		return
	}
	if len(doc.Chunks) == 0 {
		s.fail(ctx, documentID, fmt.Errorf("document has no chunks"))
		return
	}

	total := len(doc.Chunks)
	processed := 0
	failed := 0
	var firstErr error

	for batchStart := 0; batchStart < total; batchStart += s.batchSize {
		if err := s.limiter.Wait(ctx); err != nil {
			s.fail(ctx, documentID, err)
			return
		}
		batchEnd := batchStart + s.batchSize
		if batchEnd > total {
			batchEnd = total
		}

		embeddings := make(map[int][]float32, batchEnd-batchStart)
		for i := batchStart; i < batchEnd; i++ {
			vec, err := s.embedChunk(ctx, doc.Chunks[i].Text)
			if err != nil {
				failed++
				if firstErr == nil {
					firstErr = err
				}
				log.Warn().Err(err).Str("document_id", documentID).Int("chunk", i).Msg("chunk embedding failed")
				continue
			}
			embeddings[i] = vec
		}
		processed = batchEnd

		if err := s.documents.SetChunkEmbeddings(ctx, documentID, embeddings); err != nil {
			s.fail(ctx, documentID, err)
			return
		}
		if processed%progressEvery == 0 || processed == total {
			progress := float64(processed) / float64(total) * 100
			if err := s.documents.SetEmbeddingProgress(ctx, documentID, progress); err != nil {
				log.Warn().Err(err).Str("document_id", documentID).Msg("failed to persist embedding progress")
			}
		}
	}

	if failed > 0 {
		errMsg := fmt.Sprintf("%d of %d chunks failed to embed: %v", failed, total, firstErr)
		s.fail(ctx, documentID, fmt.Errorf("%s", errMsg))
		return
	}

	if err := s.documents.SetEmbeddingStatus(ctx, documentID, types.EMBEDDING_STATUS_COMPLETED, ""); err != nil {
		log.Error().Err(err).Str("document_id", documentID).Msg("failed to mark embedding completed")
		return
	}
	log.Info().
		Str("document_id", documentID).
		Int("chunks", total).
		Dur("took", time.Since(start)).
		Msg("embedding pass completed")
}

func (s *EmbeddingService) embedChunk(ctx context.Context, text string) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var vec []float32
	err := withUpstreamRetry(callCtx, s.maxRetries, func() error {
		var embErr error
		vec, embErr = s.embedder.Embed(callCtx, truncateForEmbedding(text))
		return embErr
	})
	return vec, err
}

func (s *EmbeddingService) fail(ctx context.Context, documentID string, cause error) {
	if err := s.documents.SetEmbeddingStatus(ctx, documentID, types.EMBEDDING_STATUS_FAILED, cause.Error()); err != nil {
		log.Error().Err(err).Str("document_id", documentID).Msg("failed to mark embedding failed")
	}
}

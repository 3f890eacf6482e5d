package service

import (
	"fmt"
	"math"
	"sort"

	"github.com/davitran/docchat-be/types"
)

// VectorService ranks chunks by cosine similarity between their embeddings
// and a query embedding. Pure CPU work over the read-only chunk set, safe to
// call concurrently.
type VectorService struct{}

func NewVectorService() *VectorService {
	return &VectorService{}
}

// CosineSimilarity returns dot(a,b)/(||a||*||b||) clamped to [0,1]. A zero
// norm on either side yields 0. Mismatched dimensionality is a hard error.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", types.ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	normA = math.Sqrt(normA)
	normB = math.Sqrt(normB)
	if normA == 0 || normB == 0 {
		return 0, nil
	}

	sim := dot / (normA * normB)
	if sim < 0 {
		sim = 0
	}
	if sim > 1 {
		sim = 1
	}
	return sim, nil
}

// FindSimilar keeps chunks whose similarity reaches threshold, sorted
// descending and truncated to limit. Chunks without an embedding are skipped;
// an embedding of the wrong dimensionality fails the whole call. Returns
// types.ErrNoEmbeddings when no chunk is usable and types.ErrBelowThreshold
// when everything scored under the threshold.
func (s *VectorService) FindSimilar(chunks []types.Chunk, queryEmbedding []float32, limit int, threshold float64) ([]types.RelevanceResult, error) {
	if len(queryEmbedding) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", types.ErrValidation)
	}
	if limit <= 0 {
		limit = 5
	}

	usable := 0
	var results []types.RelevanceResult
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			continue
		}
		usable++
		sim, err := CosineSimilarity(chunk.Embedding, queryEmbedding)
		if err != nil {
			return nil, err
		}
		if sim >= threshold {
			results = append(results, types.RelevanceResult{Chunk: chunk, Similarity: sim, Score: sim})
		}
	}

	if usable == 0 {
		return nil, types.ErrNoEmbeddings
	}
	if len(results) == 0 {
		return nil, types.ErrBelowThreshold
	}

	// tie-break on chunk index keeps results deterministic
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Chunk.ChunkIndex < results[j].Chunk.ChunkIndex
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

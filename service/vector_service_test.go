package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davitran/docchat-be/types"
)

func TestCosineSimilarity(t *testing.T) {
	sim, err := CosineSimilarity([]float32{1, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)

	sim, err = CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-9)

	// opposing vectors clamp to zero instead of going negative
	sim, err = CosineSimilarity([]float32{1, 0}, []float32{-1, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
}

func TestCosineSimilarityZeroNorm(t *testing.T) {
	sim, err := CosineSimilarity([]float32{0, 0}, []float32{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0})
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
}

func TestFindSimilar(t *testing.T) {
	s := NewVectorService()
	chunks := []types.Chunk{
		{ChunkIndex: 0, Embedding: []float32{1, 0}},
		{ChunkIndex: 1, Embedding: []float32{0, 1}},
	}

	results, err := s.FindSimilar(chunks, []float32{1, 0}, 5, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].Chunk.ChunkIndex)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
}

func TestFindSimilarNoEmbeddings(t *testing.T) {
	s := NewVectorService()
	chunks := []types.Chunk{{ChunkIndex: 0}, {ChunkIndex: 1}}

	_, err := s.FindSimilar(chunks, []float32{1, 0}, 5, 0.5)
	assert.ErrorIs(t, err, types.ErrNoEmbeddings)
}

func TestFindSimilarBelowThreshold(t *testing.T) {
	s := NewVectorService()
	chunks := []types.Chunk{{ChunkIndex: 0, Embedding: []float32{0, 1}}}

	_, err := s.FindSimilar(chunks, []float32{1, 0}, 5, 0.5)
	assert.ErrorIs(t, err, types.ErrBelowThreshold)
}

func TestFindSimilarEmptyQueryEmbedding(t *testing.T) {
	s := NewVectorService()
	chunks := []types.Chunk{{ChunkIndex: 0, Embedding: []float32{1, 0}}}

	_, err := s.FindSimilar(chunks, nil, 5, 0.5)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestFindSimilarSkipsMissingEmbeddings(t *testing.T) {
	s := NewVectorService()
	chunks := []types.Chunk{
		{ChunkIndex: 0},
		{ChunkIndex: 1, Embedding: []float32{1, 0}},
	}

	results, err := s.FindSimilar(chunks, []float32{1, 0}, 5, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Chunk.ChunkIndex)
}

func TestFindSimilarLimitAndOrder(t *testing.T) {
	s := NewVectorService()
	chunks := []types.Chunk{
		{ChunkIndex: 0, Embedding: []float32{0.5, 0.5}},
		{ChunkIndex: 1, Embedding: []float32{1, 0}},
		{ChunkIndex: 2, Embedding: []float32{0.9, 0.1}},
	}

	results, err := s.FindSimilar(chunks, []float32{1, 0}, 2, 0.1)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Chunk.ChunkIndex)
	assert.Equal(t, 2, results[1].Chunk.ChunkIndex)
	assert.GreaterOrEqual(t, results[0].Similarity, results[1].Similarity)
}

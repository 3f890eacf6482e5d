package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davitran/docchat-be/types"
)

func makeChunks(texts ...string) []types.Chunk {
	chunks := make([]types.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = types.Chunk{Text: text, ChunkIndex: i, CharacterCount: len(text)}
	}
	return chunks
}

func TestExtractKeywords(t *testing.T) {
	keywords := ExtractKeywords("What is the candidate's experience with Python?")
	assert.Equal(t, []string{"candidate", "experience", "python"}, keywords)
}

func TestExtractKeywordsDeduplicates(t *testing.T) {
	keywords := ExtractKeywords("python python PYTHON")
	assert.Equal(t, []string{"python"}, keywords)
}

func TestScoreChunksRanking(t *testing.T) {
	s := NewKeywordService(5)
	chunks := makeChunks(
		"The candidate is a machine learning expert with production experience.",
		"A collection of cooking recipes and food photography tips.",
	)

	results, err := s.ScoreChunks(chunks, "machine learning engineer")
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, 0, results[0].Chunk.ChunkIndex)
	assert.Contains(t, results[0].MatchedTerms, "machine")
	assert.Contains(t, results[0].MatchedTerms, "learning")
	assert.False(t, results[0].LowConfidence)
}

func TestScoreChunksMoreMatchesScoreHigher(t *testing.T) {
	s := NewKeywordService(5)
	chunks := makeChunks(
		"Python is mentioned here once among other unrelated filler text.",
		"Python projects in Python using Python tooling for Python work.",
	)

	results, err := s.ScoreChunks(chunks, "python")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 1, results[0].Chunk.ChunkIndex)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestScoreChunksEmptyQuery(t *testing.T) {
	s := NewKeywordService(5)
	chunks := makeChunks("Some document text that is long enough.")

	_, err := s.ScoreChunks(chunks, "what is the")
	assert.ErrorIs(t, err, types.ErrEmptyQuery)

	_, err = s.ScoreChunks(chunks, "   ")
	assert.ErrorIs(t, err, types.ErrEmptyQuery)
}

func TestScoreChunksNoChunks(t *testing.T) {
	s := NewKeywordService(5)

	_, err := s.ScoreChunks(nil, "python")
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestScoreChunksLastResortFallback(t *testing.T) {
	s := NewKeywordService(2)
	chunks := makeChunks(
		"First chunk about gardening and soil preparation methods.",
		"Second chunk about seasonal watering schedules for plants.",
		"Third chunk about pruning fruit trees in late winter.",
	)

	results, err := s.ScoreChunks(chunks, "quantum")
	require.NoError(t, err)
	require.Len(t, results, 2)

	// nothing matched anywhere, so the leading chunks come back flagged
	assert.Equal(t, 0, results[0].Chunk.ChunkIndex)
	assert.Equal(t, 1, results[1].Chunk.ChunkIndex)
	for _, r := range results {
		assert.True(t, r.LowConfidence)
		assert.InDelta(t, fallbackScore, r.Score, 1e-9)
	}
}

func TestScoreChunksTechnicalTermBoost(t *testing.T) {
	s := NewKeywordService(5)
	// same length and same match count; only the vocabulary differs
	chunks := makeChunks(
		"The mongodb layer handles persistence for every request now.",
		"The gardens layer handles persistence for every request now.",
	)

	results, err := s.ScoreChunks(chunks, "mongodb gardens")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].Chunk.ChunkIndex)
}

func TestScoreChunksPhraseBoost(t *testing.T) {
	s := NewKeywordService(5)
	chunks := makeChunks(
		"She worked as a machine learning engineer at the lab.",
		"He studied machine vision and deep learning engineer topics apart.",
	)

	results, err := s.ScoreChunks(chunks, "machine learning engineer")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, 0, results[0].Chunk.ChunkIndex)
}

func TestScoreChunksRespectsMaxChunks(t *testing.T) {
	s := NewKeywordService(2)
	chunks := makeChunks(
		"Python appears in this chunk with plenty of extra words.",
		"Python appears in this chunk with plenty of extra words.",
		"Python appears in this chunk with plenty of extra words.",
		"Python appears in this chunk with plenty of extra words.",
	)

	results, err := s.ScoreChunks(chunks, "python")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

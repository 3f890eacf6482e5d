package service

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"github.com/davitran/docchat-be/types"
)

const (
	// minSentenceLen filters out fragments left behind by stray punctuation
	// and headers during sentence splitting.
	minSentenceLen = 10

	// pageCharDensity drives the estimated page number: ceil(charsSeen/2000).
	// It is a heuristic, not exact pagination; extraction does not preserve
	// true page boundaries.
	pageCharDensity = 2000

	// maxOverlapWords caps the tail carried into the next chunk.
	maxOverlapWords = 15
)

var (
	lineEndingRe   = regexp.MustCompile(`\r\n?`)
	horizSpaceRe   = regexp.MustCompile(`[ \t]+`)
	lineTrimRe     = regexp.MustCompile(`(?m)^[ \t]+|[ \t]+$`)
	multiNewlineRe = regexp.MustCompile(`\n{3,}`)
	paragraphRe    = regexp.MustCompile(`\n[ \t]*\n`)
	sentenceEndRe  = regexp.MustCompile(`[.!?]+`)
)

// PDFService extracts text from PDF files and splits it into bounded,
// overlapping, page-attributed chunks.
type PDFService struct {
	chunkSize    int
	chunkOverlap int
}

// ExtractResult is the outcome of text extraction for one file.
type ExtractResult struct {
	Text      string
	PageCount int
}

func NewPDFService(config types.DocumentServiceConfig) (*PDFService, error) {
	if config.ChunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", types.ErrValidation, config.ChunkSize)
	}
	if config.ChunkOverlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must not be negative, got %d", types.ErrValidation, config.ChunkOverlap)
	}
	return &PDFService{
		chunkSize:    config.ChunkSize,
		chunkOverlap: config.ChunkOverlap,
	}, nil
}

// ExtractText reads the PDF at path and returns its concatenated page text.
// Returns types.ErrNoTextExtracted when the document has no text content at
// all, e.g. scanned images without an OCR layer.
func (s *PDFService) ExtractText(path string) (*ExtractResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat pdf: %w", err)
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}

	var sb strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			log.Warn().Err(err).Int("page", i).Msg("failed to extract page text, skipping")
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n\n")
	}

	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return nil, types.ErrNoTextExtracted
	}
	return &ExtractResult{Text: text, PageCount: numPages}, nil
}

// NormalizeText collapses the raw extracted text into a canonical form:
// uniform newlines, single spaces, trimmed lines, and at most one blank line
// between paragraphs. Idempotent.
func (s *PDFService) NormalizeText(raw string) string {
	text := lineEndingRe.ReplaceAllString(raw, "\n")
	text = horizSpaceRe.ReplaceAllString(text, " ")
	text = lineTrimRe.ReplaceAllString(text, "")
	text = multiNewlineRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// ChunkText splits text into overlapping chunks along sentence boundaries.
// Sentences shorter than minSentenceLen are discarded. Every returned chunk
// has non-empty trimmed text; the last chunk carries whatever remains.
func (s *PDFService) ChunkText(text string) []types.Chunk {
	clean := s.NormalizeText(text)
	if clean == "" {
		return nil
	}

	var chunks []types.Chunk
	currentChunk := ""
	currentPage := 1
	totalCharacters := 0
	chunkStartIndex := 0

	for _, paragraph := range splitIntoParagraphs(clean) {
		for _, sentence := range splitIntoSentences(paragraph) {
			if len(sentence) < minSentenceLen {
				continue
			}

			if len(currentChunk)+len(sentence)+2 > s.chunkSize && len(currentChunk) > 0 {
				if chunk, ok := s.newChunk(currentChunk, currentPage, chunkStartIndex, totalCharacters, len(chunks)); ok {
					chunks = append(chunks, chunk)
				}

				overlapText := s.overlapTail(currentChunk)
				if overlapText != "" {
					currentChunk = overlapText + " " + sentence
				} else {
					currentChunk = sentence
				}
				chunkStartIndex = totalCharacters - len(overlapText)
			} else if currentChunk == "" {
				currentChunk = sentence
			} else {
				currentChunk += ". " + sentence
			}

			totalCharacters += len(sentence)
			if estimatedPage := int(math.Ceil(float64(totalCharacters) / pageCharDensity)); estimatedPage > currentPage {
				currentPage = estimatedPage
			}
		}
	}

	if chunk, ok := s.newChunk(currentChunk, currentPage, chunkStartIndex, totalCharacters, len(chunks)); ok {
		chunks = append(chunks, chunk)
	}

	return chunks
}

// overlapTail returns the last words of a closed chunk, seeding the next one.
// The word count is bounded by the overlap budget, the chunk length, and
// maxOverlapWords.
func (s *PDFService) overlapTail(chunk string) string {
	if chunk == "" || s.chunkOverlap <= 0 {
		return ""
	}
	words := strings.Fields(chunk)
	n := s.chunkOverlap / 10
	if n == 0 {
		n = 1
	}
	if n > len(words) {
		n = len(words)
	}
	if n > maxOverlapWords {
		n = maxOverlapWords
	}
	return strings.Join(words[len(words)-n:], " ")
}

// newChunk builds a chunk with derived counts. Chunks whose trimmed text is
// empty are never emitted.
func (s *PDFService) newChunk(text string, page, startIndex, endIndex, chunkIndex int) (types.Chunk, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.Chunk{}, false
	}
	return types.Chunk{
		Text:           text,
		Page:           page,
		StartIndex:     startIndex,
		EndIndex:       endIndex,
		ChunkIndex:     chunkIndex,
		WordCount:      len(strings.Fields(text)),
		SentenceCount:  len(splitIntoSentences(text)),
		CharacterCount: len(text),
	}, true
}

// Statistics summarizes a chunk set for logging and the upload response.
func (s *PDFService) Statistics(chunks []types.Chunk) types.ChunkStatistics {
	if len(chunks) == 0 {
		return types.ChunkStatistics{}
	}
	stats := types.ChunkStatistics{
		TotalChunks:  len(chunks),
		MinChunkSize: chunks[0].CharacterCount,
	}
	for _, c := range chunks {
		stats.TotalCharacters += c.CharacterCount
		stats.TotalWords += c.WordCount
		if c.CharacterCount < stats.MinChunkSize {
			stats.MinChunkSize = c.CharacterCount
		}
		if c.CharacterCount > stats.MaxChunkSize {
			stats.MaxChunkSize = c.CharacterCount
		}
	}
	stats.AverageChunkSize = stats.TotalCharacters / len(chunks)
	return stats
}

func splitIntoParagraphs(text string) []string {
	parts := paragraphRe.Split(text, -1)
	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ReplaceAll(p, "\n", " "))
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

func splitIntoSentences(paragraph string) []string {
	parts := sentenceEndRe.Split(paragraph, -1)
	sentences := make([]string, 0, len(parts))
	for _, s := range parts {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

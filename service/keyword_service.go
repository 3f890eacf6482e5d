package service

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/davitran/docchat-be/types"
)

const (
	// relevanceThreshold drops chunks that only matched by accident.
	relevanceThreshold = 0.1
	// fallbackScore marks last-resort context so callers can flag it.
	fallbackScore = 0.05
)

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "being": {},
	"have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {},
	"will": {}, "would": {}, "could": {}, "should": {}, "may": {}, "might": {},
	"can": {}, "what": {}, "how": {}, "why": {}, "when": {}, "where": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "from": {}, "into": {},
	"about": {}, "give": {}, "brief": {}, "tell": {}, "show": {}, "me": {},
	"please": {}, "you": {}, "your": {}, "my": {}, "i": {}, "we": {},
	"they": {}, "them": {}, "their": {}, "there": {}, "here": {},
}

// technicalTerms boosts domain nouns that carry more signal than common words
// in the resume/report style documents this service mostly sees.
var technicalTerms = map[string]struct{}{
	"name": {}, "candidate": {}, "experience": {}, "education": {}, "skills": {},
	"technologies": {}, "projects": {}, "developer": {}, "engineer": {},
	"programmer": {}, "analyst": {}, "manager": {}, "intern": {},
	"consultant": {}, "senior": {}, "junior": {}, "lead": {}, "architect": {},
	"designer": {}, "specialist": {},
	"javascript": {}, "typescript": {}, "python": {}, "java": {}, "cpp": {},
	"csharp": {}, "php": {}, "ruby": {}, "go": {}, "rust": {}, "swift": {},
	"kotlin": {}, "scala": {}, "perl": {}, "shell": {}, "bash": {},
	"react": {}, "angular": {}, "vue": {}, "nodejs": {}, "express": {},
	"django": {}, "flask": {}, "spring": {}, "laravel": {}, "rails": {},
	"jquery": {}, "bootstrap": {}, "tailwind": {}, "sass": {}, "scss": {},
	"html": {}, "css": {}, "sql": {}, "nosql": {}, "mongodb": {}, "mysql": {},
	"postgresql": {}, "redis": {}, "elasticsearch": {}, "docker": {},
	"kubernetes": {}, "aws": {}, "azure": {}, "gcp": {}, "jenkins": {},
	"git": {}, "github": {}, "gitlab": {},
	"university": {}, "college": {}, "institute": {}, "degree": {},
	"bachelor": {}, "master": {}, "phd": {}, "certification": {},
	"diploma": {}, "course": {}, "training": {}, "workshop": {}, "seminar": {},
	"company": {}, "organization": {}, "corporation": {}, "startup": {},
	"enterprise": {}, "agency": {}, "firm": {}, "department": {}, "team": {},
	"project": {}, "product": {}, "service": {}, "client": {}, "customer": {},
}

var (
	nonWordRe   = regexp.MustCompile(`[^\w\s]`)
	alphaOnlyRe = regexp.MustCompile(`^[a-z]+$`)
)

// KeywordService ranks chunks against a query by weighted term frequency.
type KeywordService struct {
	maxChunks int
}

func NewKeywordService(maxChunks int) *KeywordService {
	if maxChunks <= 0 {
		maxChunks = 5
	}
	return &KeywordService{maxChunks: maxChunks}
}

// ScoreChunks tokenizes the query and returns chunks sorted by descending
// relevance. Returns types.ErrEmptyQuery if no searchable tokens remain after
// stop-word removal. When nothing clears the relevance threshold it degrades
// through substring matching down to leading-chunk context, flagging those
// results as low confidence.
func (s *KeywordService) ScoreChunks(chunks []types.Chunk, query string) ([]types.RelevanceResult, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks to search", types.ErrValidation)
	}
	keywords := ExtractKeywords(query)
	if len(keywords) == 0 {
		return nil, types.ErrEmptyQuery
	}

	scored := make([]types.RelevanceResult, 0, len(chunks))
	for _, chunk := range chunks {
		scored = append(scored, s.scoreChunk(chunk, keywords, query))
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	relevant := make([]types.RelevanceResult, 0, s.maxChunks)
	for _, r := range scored {
		if r.Score > relevanceThreshold {
			relevant = append(relevant, r)
			if len(relevant) == s.maxChunks {
				break
			}
		}
	}
	if len(relevant) > 0 {
		return relevant, nil
	}

	return s.fallbackResults(chunks, scored, keywords), nil
}

// fallbackResults implements the something-is-better-than-nothing tiers:
// top raw scores, then plain substring hits, then the leading chunks.
func (s *KeywordService) fallbackResults(chunks []types.Chunk, scored []types.RelevanceResult, keywords []string) []types.RelevanceResult {
	var out []types.RelevanceResult
	for _, r := range scored {
		if r.Score > 0 {
			r.LowConfidence = true
			out = append(out, r)
			if len(out) == s.maxChunks {
				break
			}
		}
	}
	if len(out) > 0 {
		return out
	}

	for _, chunk := range chunks {
		lower := strings.ToLower(chunk.Text)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				out = append(out, types.RelevanceResult{Chunk: chunk, Score: fallbackScore, MatchedTerms: []string{kw}, LowConfidence: true})
				break
			}
		}
		if len(out) == s.maxChunks {
			break
		}
	}
	if len(out) > 0 {
		return out
	}

	limit := s.maxChunks
	if limit > len(chunks) {
		limit = len(chunks)
	}
	for _, chunk := range chunks[:limit] {
		out = append(out, types.RelevanceResult{Chunk: chunk, Score: fallbackScore, LowConfidence: true})
	}
	return out
}

func (s *KeywordService) scoreChunk(chunk types.Chunk, keywords []string, originalQuery string) types.RelevanceResult {
	chunkLower := strings.ToLower(chunk.Text)
	queryLower := strings.ToLower(strings.TrimSpace(originalQuery))

	result := types.RelevanceResult{Chunk: chunk}
	totalScore := 0.0

	for _, keyword := range keywords {
		wordRe := regexp.MustCompile(`\b` + regexp.QuoteMeta(keyword) + `\b`)
		exactCount := len(wordRe.FindAllStringIndex(chunkLower, -1))

		if exactCount > 0 {
			result.ExactMatches += exactCount
			result.MatchedTerms = append(result.MatchedTerms, keyword)

			keywordScore := float64(exactCount) * 10
			if len(keyword) > 5 {
				keywordScore *= 1.5
			}
			if _, ok := technicalTerms[keyword]; ok {
				keywordScore *= 2
			}
			totalScore += keywordScore
		}

		// substring hits beyond the exact ones catch compound words
		if extra := strings.Count(chunkLower, keyword) - exactCount; extra > 0 {
			result.PartialMatches += extra
			totalScore += float64(extra) * 2
		}
	}

	if n := len(result.MatchedTerms); n > 1 {
		totalScore *= 1 + float64(n)*0.2
	}
	if len(queryLower) > 10 && strings.Contains(chunkLower, queryLower) {
		totalScore *= 1.5
	}

	// length normalization so long chunks do not win on volume alone
	result.Score = totalScore / math.Sqrt(float64(len(chunk.Text))/100)
	return result
}

// ExtractKeywords lowercases, strips punctuation, and drops stop words and
// short or non-alphabetic tokens, deduplicating while preserving order.
func ExtractKeywords(query string) []string {
	cleaned := nonWordRe.ReplaceAllString(strings.ToLower(query), " ")
	seen := make(map[string]struct{})
	var keywords []string
	for _, word := range strings.Fields(cleaned) {
		if len(word) <= 2 {
			continue
		}
		if _, ok := stopWords[word]; ok {
			continue
		}
		if !alphaOnlyRe.MatchString(word) {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		keywords = append(keywords, word)
	}
	return keywords
}

package types

const (
	EMBEDDING_STATUS_PENDING    = "pending"
	EMBEDDING_STATUS_PROCESSING = "processing"
	EMBEDDING_STATUS_COMPLETED  = "completed"
	EMBEDDING_STATUS_FAILED     = "failed"
)

const (
	SEARCH_METHOD_VECTOR        = "vector"
	SEARCH_METHOD_KEYWORD       = "keyword"
	SEARCH_METHOD_FULL_DOCUMENT = "full-document"
)

// Chunk is a bounded, page-attributed segment of a document's text. Text and
// offsets are immutable after ingestion; only the embedding is filled in later.
type Chunk struct {
	Text           string    `bson:"text" json:"text"`
	Page           int       `bson:"page" json:"page"`
	StartIndex     int       `bson:"start_index" json:"start_index"`
	EndIndex       int       `bson:"end_index" json:"end_index"`
	ChunkIndex     int       `bson:"chunk_index" json:"chunk_index"`
	WordCount      int       `bson:"word_count" json:"word_count"`
	SentenceCount  int       `bson:"sentence_count" json:"sentence_count"`
	CharacterCount int       `bson:"character_count" json:"character_count"`
	Embedding      []float32 `bson:"embedding,omitempty" json:"-"`
}

// Document aggregates the extracted text and its chunk sequence. Chunks are
// owned by the document and never shared across documents.
type Document struct {
	ID                 string  `bson:"_id,omitempty" json:"id"`
	Filename           string  `bson:"filename" json:"filename"`
	OriginalName       string  `bson:"original_name" json:"original_name"`
	StorageKey         string  `bson:"storage_key" json:"-"`
	Size               int64   `bson:"size" json:"size"`
	PageCount          int     `bson:"page_count" json:"page_count"`
	Content            string  `bson:"content" json:"-"`
	Chunks             []Chunk `bson:"chunks" json:"-"`
	EmbeddingStatus    string  `bson:"embedding_status" json:"embedding_status"`
	EmbeddingProgress  float64 `bson:"embedding_progress" json:"embedding_progress"`
	EmbeddingError     string  `bson:"embedding_error,omitempty" json:"embedding_error,omitempty"`
	EmbeddingUpdatedAt int64   `bson:"embedding_updated_at" json:"-"`
	UploadedAt         int64   `bson:"uploaded_at" json:"uploaded_at"`
}

// RelevanceResult is a chunk scored against a query. Transient, never persisted.
// Score is set by the keyword scorer, Similarity by the vector search.
type RelevanceResult struct {
	Chunk          Chunk
	Score          float64
	Similarity     float64
	MatchedTerms   []string
	ExactMatches   int
	PartialMatches int
	LowConfidence  bool
}

// Citation points at the chunk text that informed an answer.
type Citation struct {
	Page    int    `bson:"page" json:"page"`
	Excerpt string `bson:"excerpt" json:"excerpt"`
}

// DocumentServiceConfig contains configuration options for document
// processing and retrieval.
type DocumentServiceConfig struct {
	ChunkSize           int     `mapstructure:"chunk_size"`           // maximum chunk size in characters
	ChunkOverlap        int     `mapstructure:"chunk_overlap"`        // overlap budget between consecutive chunks
	MaxChunks           int     `mapstructure:"max_chunks"`           // chunks handed to the model per question
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"` // minimum cosine similarity for vector hits
	ContextBudget       int     `mapstructure:"context_budget"`       // total context characters per model call
	MaxUploadBytes      int64   `mapstructure:"max_upload_bytes"`
	AnswerTimeoutSecs   int     `mapstructure:"answer_timeout_secs"` // deadline for one answer or query-embedding call
}

// EmbeddingConfig tunes the background embedding worker.
type EmbeddingConfig struct {
	BatchSize       int `mapstructure:"batch_size"`
	BatchIntervalMs int `mapstructure:"batch_interval_ms"`
	MaxRetries      int `mapstructure:"max_retries"`
	TimeoutSecs     int `mapstructure:"timeout_secs"`
	StaleAfterSecs  int `mapstructure:"stale_after_secs"`
}

// RateLimitConfig tunes the per-client HTTP token bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// ChunkStatistics summarizes a chunk set after ingestion.
type ChunkStatistics struct {
	TotalChunks      int `json:"total_chunks"`
	TotalCharacters  int `json:"total_characters"`
	TotalWords       int `json:"total_words"`
	AverageChunkSize int `json:"average_chunk_size"`
	MinChunkSize     int `json:"min_chunk_size"`
	MaxChunkSize     int `json:"max_chunk_size"`
}

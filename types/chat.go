package types

const (
	MESSAGE_ROLE_USER      = "user"
	MESSAGE_ROLE_ASSISTANT = "assistant"
)

// ChatMessage is a single message in a document conversation.
type ChatMessage struct {
	Role      string     `bson:"role" json:"role"`
	Content   string     `bson:"content" json:"content"`
	Citations []Citation `bson:"citations,omitempty" json:"citations,omitempty"`
	CreatedAt int64      `bson:"created_at" json:"created_at"`
}

// Conversation holds the message history for one document.
type Conversation struct {
	ID         string        `bson:"_id,omitempty" json:"id"`
	DocumentID string        `bson:"document_id" json:"document_id"`
	Messages   []ChatMessage `bson:"messages" json:"messages"`
	CreatedAt  int64         `bson:"created_at" json:"created_at"`
	UpdatedAt  int64         `bson:"updated_at" json:"updated_at"`
}

// ChatAnswer is the result of answering a question against a document.
type ChatAnswer struct {
	Answer       string        `json:"answer"`
	Citations    []Citation    `json:"citations"`
	SearchMethod string        `json:"search_method"`
	SourceChunks []SourceChunk `json:"source_chunks"`
}

// SourceChunk describes a retrieved chunk attached to an answer for display.
type SourceChunk struct {
	ChunkIndex int     `json:"chunk_index"`
	Page       int     `json:"page"`
	Excerpt    string  `json:"excerpt"`
	Score      float64 `json:"score"`
}

// StreamHandler receives incremental answer fragments.
type StreamHandler func(fragment string)

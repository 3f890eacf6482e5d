package types

type DataResponse struct {
	Status     string      `json:"status"`
	Message    string      `json:"message,omitempty"`
	RetryAfter int64       `json:"retry_after,omitempty"` // seconds
	Data       interface{} `json:"data,omitempty"`
}

type UploadResponse struct {
	ID              string `json:"id"`
	OriginalName    string `json:"original_name"`
	PageCount       int    `json:"page_count"`
	ChunkCount      int    `json:"chunk_count"`
	Size            int64  `json:"size"`
	EmbeddingStatus string `json:"embedding_status"`
	UploadedAt      int64  `json:"uploaded_at"`
}

type EmbeddingStatusResponse struct {
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Error    string  `json:"error,omitempty"`
}

type ChatResponse struct {
	Answer       string        `json:"answer"`
	Citations    []Citation    `json:"citations"`
	SearchMethod string        `json:"search_method"`
	SourceChunks []SourceChunk `json:"source_chunks"`
}

type SearchChunksResponse struct {
	Method  string        `json:"method"`
	Results []SourceChunk `json:"results"`
}

const (
	TypeWebsocketPing     = "ping"
	TypeWebsocketPong     = "pong"
	TypeWebsocketChat     = "chat"
	TypeWebsocketFragment = "fragment"
	TypeWebsocketDone     = "done"
	TypeWebsocketError    = "error"
)

type WebsocketResponse struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

package types

import "encoding/json"

type ChatRequest struct {
	DocumentID string `json:"document_id"`
	Message    string `json:"message"`
}

type SearchChunksRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type WebsocketRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type WebsocketChatPayload struct {
	DocumentID string `json:"document_id"`
	Message    string `json:"message"`
}

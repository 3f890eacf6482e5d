package service

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/davitran/docchat-be/types"
)

const (
	wsReadLimit    = 64 * 1024
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// WebSocketService streams chat answers over a websocket connection. Each
// connection handles one request at a time; answer fragments are pushed as
// they arrive from the model, followed by a closing frame with citations.
type WebSocketService struct {
	chat     *ChatService
	upgrader websocket.Upgrader
}

func NewWebSocketService(chat *ChatService) *WebSocketService {
	return &WebSocketService{
		chat: chat,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (s *WebSocketService) HandleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	// a single writer guards against interleaved frames from the stream
	// handler and control responses
	var writeMu sync.Mutex
	send := func(resp types.WebsocketResponse) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(resp)
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var req types.WebsocketRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			send(types.WebsocketResponse{Type: types.TypeWebsocketError, Payload: "malformed request"})
			continue
		}

		switch req.Type {
		case types.TypeWebsocketPing:
			if err := send(types.WebsocketResponse{Type: types.TypeWebsocketPong}); err != nil {
				return
			}
		case types.TypeWebsocketChat:
			if err := s.handleChatRequest(r, req.Payload, send); err != nil {
				return
			}
		default:
			send(types.WebsocketResponse{Type: types.TypeWebsocketError, Payload: "unknown request type"})
		}
	}
}

func (s *WebSocketService) handleChatRequest(r *http.Request, payload json.RawMessage, send func(types.WebsocketResponse) error) error {
	var chatReq types.WebsocketChatPayload
	if err := json.Unmarshal(payload, &chatReq); err != nil {
		return send(types.WebsocketResponse{Type: types.TypeWebsocketError, Payload: "malformed chat payload"})
	}

	answer, err := s.chat.AnswerQuestionStream(r.Context(), chatReq.DocumentID, chatReq.Message, func(fragment string) {
		send(types.WebsocketResponse{Type: types.TypeWebsocketFragment, Payload: fragment})
	})
	if err != nil {
		log.Warn().Err(err).Str("document_id", chatReq.DocumentID).Msg("websocket chat failed")
		return send(types.WebsocketResponse{Type: types.TypeWebsocketError, Payload: userFacingMessage(err)})
	}

	return send(types.WebsocketResponse{Type: types.TypeWebsocketDone, Payload: types.ChatResponse{
		Answer:       answer.Answer,
		Citations:    answer.Citations,
		SearchMethod: answer.SearchMethod,
		SourceChunks: answer.SourceChunks,
	}})
}

// userFacingMessage maps internal errors to stable client-safe strings.
func userFacingMessage(err error) string {
	switch {
	case errors.Is(err, types.ErrValidation):
		return "invalid request"
	case errors.Is(err, types.ErrNotFound):
		return "document not found"
	case errors.Is(err, types.ErrNoTextExtracted):
		return "document has no readable text"
	case errors.Is(err, types.ErrRateLimited):
		return "the model is rate limited, try again shortly"
	case errors.Is(err, types.ErrUnavailable):
		return "the model is temporarily unavailable"
	case errors.Is(err, types.ErrSafetyBlocked):
		return "the request was blocked by the model's safety filters"
	default:
		return "failed to answer the question"
	}
}

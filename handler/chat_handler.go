package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	services "github.com/davitran/docchat-be/service"
	"github.com/davitran/docchat-be/types"
)

type ChatHandler struct {
	chatService *services.ChatService
}

func NewChatHandler(chatService *services.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// ChatHandler answers a question about a document in one shot.
func (h *ChatHandler) ChatHandler(c *gin.Context) {
	var req types.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", types.ErrValidation, err.Error()))
		return
	}
	documentID := req.DocumentID
	if documentID == "" {
		documentID = c.Param("id")
	}
	if documentID == "" {
		respondError(c, fmt.Errorf("%w: document_id is required", types.ErrValidation))
		return
	}

	answer, err := h.chatService.AnswerQuestion(c.Request.Context(), documentID, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, types.ChatResponse{
		Answer:       answer.Answer,
		Citations:    answer.Citations,
		SearchMethod: answer.SearchMethod,
		SourceChunks: answer.SourceChunks,
	})
}

func (h *ChatHandler) GetConversationHandler(c *gin.Context) {
	conv, err := h.chatService.GetConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, conv)
}

package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	services "github.com/davitran/docchat-be/service"
	"github.com/davitran/docchat-be/types"
)

type SearchHandler struct {
	chatService *services.ChatService
}

func NewSearchHandler(chatService *services.ChatService) *SearchHandler {
	return &SearchHandler{chatService: chatService}
}

// SearchChunksHandler previews which chunks retrieval would hand to the
// model for a query, without making the model call.
func (h *SearchHandler) SearchChunksHandler(c *gin.Context) {
	var req types.SearchChunksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", types.ErrValidation, err.Error()))
		return
	}

	method, results, err := h.chatService.SearchChunks(c.Request.Context(), c.Param("id"), req.Query, req.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := types.SearchChunksResponse{Method: method, Results: []types.SourceChunk{}}
	for _, r := range results {
		text := r.Chunk.Text
		if len(text) > 200 {
			text = text[:200] + "..."
		}
		resp.Results = append(resp.Results, types.SourceChunk{
			ChunkIndex: r.Chunk.ChunkIndex,
			Page:       r.Chunk.Page,
			Excerpt:    text,
			Score:      r.Score,
		})
	}
	respondOK(c, http.StatusOK, resp)
}

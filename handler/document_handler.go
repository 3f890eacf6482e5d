package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/davitran/docchat-be/repository"
	services "github.com/davitran/docchat-be/service"
	"github.com/davitran/docchat-be/types"
)

type DocumentHandler struct {
	documents     repository.DocumentRepo
	conversations repository.ConversationRepo
	fileService   *services.FileService
	embeddings    *services.EmbeddingService
}

func NewDocumentHandler(
	documents repository.DocumentRepo,
	conversations repository.ConversationRepo,
	fileService *services.FileService,
	embeddings *services.EmbeddingService,
) *DocumentHandler {
	return &DocumentHandler{
		documents:     documents,
		conversations: conversations,
		fileService:   fileService,
		embeddings:    embeddings,
	}
}

func (h *DocumentHandler) ListDocumentsHandler(c *gin.Context) {
	docs, err := h.documents.ListDocuments(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if docs == nil {
		docs = []*types.Document{}
	}
	respondOK(c, http.StatusOK, docs)
}

func (h *DocumentHandler) GetDocumentHandler(c *gin.Context) {
	doc, err := h.documents.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, doc)
}

// ServeDocumentHandler streams the stored PDF inline.
func (h *DocumentHandler) ServeDocumentHandler(c *gin.Context) {
	doc, err := h.documents.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", `inline; filename="`+doc.Filename+`"`)
	c.File(h.fileService.Path(doc.StorageKey))
}

func (h *DocumentHandler) EmbeddingStatusHandler(c *gin.Context) {
	doc, err := h.documents.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, types.EmbeddingStatusResponse{
		Status:   doc.EmbeddingStatus,
		Progress: doc.EmbeddingProgress,
		Error:    doc.EmbeddingError,
	})
}

// ReprocessEmbeddingsHandler restarts the embedding pass. Conflicts with a
// running non-stale pass.
func (h *DocumentHandler) ReprocessEmbeddingsHandler(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.documents.GetDocument(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	if err := h.embeddings.Start(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusAccepted, types.EmbeddingStatusResponse{
		Status: types.EMBEDDING_STATUS_PROCESSING,
	})
}

// DeleteDocumentHandler removes the document, its stored file, and its
// conversation history.
func (h *DocumentHandler) DeleteDocumentHandler(c *gin.Context) {
	id := c.Param("id")
	doc, err := h.documents.GetDocument(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.documents.DeleteDocument(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	if err := h.fileService.Delete(doc.StorageKey); err != nil {
		log.Warn().Err(err).Str("document_id", id).Msg("failed to delete stored file")
	}
	if err := h.conversations.DeleteByDocument(c.Request.Context(), id); err != nil {
		log.Warn().Err(err).Str("document_id", id).Msg("failed to delete conversation")
	}
	respondOK(c, http.StatusOK, gin.H{"deleted": id})
}

package handler

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/davitran/docchat-be/repository"
	services "github.com/davitran/docchat-be/service"
	"github.com/davitran/docchat-be/types"
	"github.com/davitran/docchat-be/utils"
)

type UploadHandler struct {
	fileService    *services.FileService
	pdfService     *services.PDFService
	documents      repository.DocumentRepo
	embeddings     *services.EmbeddingService
	maxUploadBytes int64
}

func NewUploadHandler(
	fileService *services.FileService,
	pdfService *services.PDFService,
	documents repository.DocumentRepo,
	embeddings *services.EmbeddingService,
	maxUploadBytes int64,
) *UploadHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &UploadHandler{
		fileService:    fileService,
		pdfService:     pdfService,
		documents:      documents,
		embeddings:     embeddings,
		maxUploadBytes: maxUploadBytes,
	}
}

// UploadDocumentHandler ingests a PDF: store to disk, extract, chunk,
// persist, then kick off embedding in the background. Extraction or chunking
// failure aborts the whole ingestion; no partial document is left behind.
func (h *UploadHandler) UploadDocumentHandler(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		respondError(c, fmt.Errorf("%w: file field is required", types.ErrValidation))
		return
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".pdf" {
		respondError(c, fmt.Errorf("%w: only .pdf files are supported, got %q", types.ErrValidation, ext))
		return
	}
	if header.Size > h.maxUploadBytes {
		respondError(c, fmt.Errorf("%w: file exceeds %d bytes", types.ErrPayloadTooLarge, h.maxUploadBytes))
		return
	}

	key, err := h.fileService.Store(file, header.Filename)
	if err != nil {
		log.Error().Err(err).Msg("failed to store uploaded file")
		respondError(c, err)
		return
	}

	extracted, err := h.pdfService.ExtractText(h.fileService.Path(key))
	if err != nil {
		h.discard(key)
		respondError(c, err)
		return
	}

	content := h.pdfService.NormalizeText(extracted.Text)
	chunks := h.pdfService.ChunkText(extracted.Text)
	if len(chunks) == 0 {
		h.discard(key)
		respondError(c, fmt.Errorf("%w: document text produced no usable chunks", types.ErrNoTextExtracted))
		return
	}

	doc := &types.Document{
		Filename:        utils.SanitizeFilename(header.Filename),
		OriginalName:    header.Filename,
		StorageKey:      key,
		Size:            header.Size,
		PageCount:       extracted.PageCount,
		Content:         content,
		Chunks:          chunks,
		EmbeddingStatus: types.EMBEDDING_STATUS_PENDING,
	}
	id, err := h.documents.CreateDocument(c.Request.Context(), doc)
	if err != nil {
		h.discard(key)
		log.Error().Err(err).Msg("failed to persist document")
		respondError(c, err)
		return
	}

	if h.embeddings != nil && h.embeddings.Enabled() {
		if err := h.embeddings.Start(c.Request.Context(), id); err != nil && !errors.Is(err, types.ErrAlreadyProcessing) {
			log.Warn().Err(err).Str("document_id", id).Msg("failed to start embedding pass")
		}
	}

	stats := h.pdfService.Statistics(chunks)
	log.Info().
		Str("document_id", id).
		Str("name", header.Filename).
		Int("chunks", stats.TotalChunks).
		Int("pages", extracted.PageCount).
		Msg("document ingested")

	respondOK(c, http.StatusCreated, types.UploadResponse{
		ID:              id,
		OriginalName:    header.Filename,
		PageCount:       extracted.PageCount,
		ChunkCount:      len(chunks),
		Size:            header.Size,
		EmbeddingStatus: doc.EmbeddingStatus,
		UploadedAt:      doc.UploadedAt,
	})
}

func (h *UploadHandler) discard(key string) {
	if err := h.fileService.Delete(key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to remove stored file")
	}
}

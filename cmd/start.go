/*
Copyright © 2026 davitran
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/davitran/docchat-be/config"
	"github.com/davitran/docchat-be/database"
	"github.com/davitran/docchat-be/handler"
	"github.com/davitran/docchat-be/middleware"
	"github.com/davitran/docchat-be/repository"
	"github.com/davitran/docchat-be/service"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the HTTP server",
	Long:  `Starts the document ingestion and chat API server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		mongoClient, err := database.NewMongoClient(ctx, cfg.MongoURI)
		if err != nil {
			return fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		defer mongoClient.Disconnect(context.Background())
		db := mongoClient.Database(cfg.MongoDatabase)

		documentRepo := repository.NewDocumentRepo(db)
		conversationRepo := repository.NewConversationRepo(db)

		pdfService, err := service.NewPDFService(cfg.Document)
		if err != nil {
			return err
		}
		fileService, err := service.NewFileService(cfg.UploadDir)
		if err != nil {
			return err
		}

		answerer, embedder, err := buildAIProvider(cfg)
		if err != nil {
			return err
		}

		keywordService := service.NewKeywordService(cfg.Document.MaxChunks)
		vectorService := service.NewVectorService()
		embeddingService := service.NewEmbeddingService(documentRepo, embedder, cfg.Embedding)
		chatService := service.NewChatService(
			documentRepo, conversationRepo,
			keywordService, vectorService,
			answerer, embedder,
			cfg.Document,
		)
		wsService := service.NewWebSocketService(chatService)

		corsHandler := handler.NewCorsHandler()
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimit)
		uploadHandler := handler.NewUploadHandler(fileService, pdfService, documentRepo, embeddingService, cfg.Document.MaxUploadBytes)
		documentHandler := handler.NewDocumentHandler(documentRepo, conversationRepo, fileService, embeddingService)
		chatHandler := handler.NewChatHandler(chatService)
		searchHandler := handler.NewSearchHandler(chatService)

		gin.SetMode(gin.ReleaseMode)
		router := gin.New()
		router.Use(gin.Recovery())
		router.Use(corsHandler.CorsMiddleware)
		router.Use(rateLimiter.Middleware)

		router.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		apiV1 := router.Group("/api/v1")
		{
			apiV1.POST("/documents", uploadHandler.UploadDocumentHandler)
			apiV1.GET("/documents", documentHandler.ListDocumentsHandler)
			apiV1.GET("/documents/:id", documentHandler.GetDocumentHandler)
			apiV1.DELETE("/documents/:id", documentHandler.DeleteDocumentHandler)
			apiV1.GET("/documents/:id/file", documentHandler.ServeDocumentHandler)
			apiV1.GET("/documents/:id/embeddings", documentHandler.EmbeddingStatusHandler)
			apiV1.POST("/documents/:id/embeddings", documentHandler.ReprocessEmbeddingsHandler)
			apiV1.POST("/documents/:id/search", searchHandler.SearchChunksHandler)
			apiV1.GET("/documents/:id/conversation", chatHandler.GetConversationHandler)
			apiV1.POST("/chat", chatHandler.ChatHandler)
			apiV1.GET("/ws/chat", func(c *gin.Context) {
				wsService.HandleChat(c.Writer, c.Request)
			})
		}

		server := &http.Server{
			Addr:    ":" + cfg.Port,
			Handler: router,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("port", cfg.Port).Str("provider", cfg.AIProvider).Msg("server listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

// buildAIProvider wires the configured provider. Gemini serves both answer
// generation and embeddings; an OpenAI-compatible endpoint does too.
func buildAIProvider(cfg *config.Config) (service.Answerer, service.Embedder, error) {
	switch cfg.AIProvider {
	case "gemini":
		gemini, err := service.NewGeminiService(cfg.Gemini.APIKeys, cfg.Gemini.ModelCandidates, cfg.Gemini.EmbeddingModel)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init gemini: %w", err)
		}
		return gemini, gemini, nil
	case "openai":
		openaiService := service.NewOpenAIService(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.EmbeddingModel)
		return openaiService, openaiService, nil
	default:
		return nil, nil, fmt.Errorf("unknown ai provider %q", cfg.AIProvider)
	}
}

func init() {
	rootCmd.AddCommand(startCmd)
}

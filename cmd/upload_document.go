/*
Copyright © 2026 davitran
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/davitran/docchat-be/config"
	"github.com/davitran/docchat-be/database"
	"github.com/davitran/docchat-be/repository"
	"github.com/davitran/docchat-be/service"
	"github.com/davitran/docchat-be/types"
)

var uploadEmbed bool

// uploadDocumentCmd ingests local PDFs without going through the HTTP API.
// Accepts file and directory paths; directories are scanned one level deep.
var uploadDocumentCmd = &cobra.Command{
	Use:   "upload-document [paths...]",
	Short: "Ingest local PDF files",
	Long: `Extracts, chunks, and stores one or more local PDF files directly,
bypassing the HTTP upload endpoint. With --embed the embedding pass runs
synchronously before the command exits.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx := cmd.Context()
		mongoClient, err := database.NewMongoClient(ctx, cfg.MongoURI)
		if err != nil {
			return fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		defer mongoClient.Disconnect(context.Background())
		db := mongoClient.Database(cfg.MongoDatabase)

		documentRepo := repository.NewDocumentRepo(db)
		pdfService, err := service.NewPDFService(cfg.Document)
		if err != nil {
			return err
		}
		fileService, err := service.NewFileService(cfg.UploadDir)
		if err != nil {
			return err
		}

		var embeddingService *service.EmbeddingService
		if uploadEmbed {
			_, embedder, err := buildAIProvider(cfg)
			if err != nil {
				return err
			}
			embeddingService = service.NewEmbeddingService(documentRepo, embedder, cfg.Embedding)
		}

		paths, err := collectPDFPaths(args)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no PDF files found in %v", args)
		}

		for _, path := range paths {
			id, err := ingestFile(ctx, path, fileService, pdfService, documentRepo)
			if err != nil {
				log.Error().Err(err).Str("path", path).Msg("ingestion failed")
				continue
			}
			log.Info().Str("path", path).Str("document_id", id).Msg("document ingested")

			if embeddingService != nil {
				if err := embeddingService.Process(ctx, id); err != nil {
					log.Error().Err(err).Str("document_id", id).Msg("embedding failed")
				}
			}
		}
		return nil
	},
}

func collectPDFPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
				paths = append(paths, filepath.Join(arg, entry.Name()))
			}
		}
	}
	return paths, nil
}

func ingestFile(
	ctx context.Context,
	path string,
	fileService *service.FileService,
	pdfService *service.PDFService,
	documents repository.DocumentRepo,
) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return "", err
	}

	key, err := fileService.Store(src, filepath.Base(path))
	if err != nil {
		return "", err
	}

	extracted, err := pdfService.ExtractText(fileService.Path(key))
	if err != nil {
		fileService.Delete(key)
		return "", err
	}
	chunks := pdfService.ChunkText(extracted.Text)
	if len(chunks) == 0 {
		fileService.Delete(key)
		return "", fmt.Errorf("%w: no usable chunks", types.ErrNoTextExtracted)
	}

	doc := &types.Document{
		Filename:        filepath.Base(path),
		OriginalName:    filepath.Base(path),
		StorageKey:      key,
		Size:            info.Size(),
		PageCount:       extracted.PageCount,
		Content:         pdfService.NormalizeText(extracted.Text),
		Chunks:          chunks,
		EmbeddingStatus: types.EMBEDDING_STATUS_PENDING,
	}
	id, err := documents.CreateDocument(ctx, doc)
	if err != nil {
		fileService.Delete(key)
		return "", err
	}
	return id, nil
}

func init() {
	rootCmd.AddCommand(uploadDocumentCmd)
	uploadDocumentCmd.Flags().BoolVar(&uploadEmbed, "embed", false, "run the embedding pass synchronously after ingestion")
}

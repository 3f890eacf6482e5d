package service

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/davitran/docchat-be/utils"
)

// FileService stores uploaded PDFs on local disk. Keys are generated, never
// derived solely from client input, so two uploads of the same filename do
// not collide.
type FileService struct {
	uploadDir string
}

func NewFileService(uploadDir string) (*FileService, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &FileService{uploadDir: uploadDir}, nil
}

// Store writes src to disk and returns the storage key.
func (s *FileService) Store(src io.Reader, originalName string) (string, error) {
	ext := filepath.Ext(originalName)
	base := utils.SanitizeFilename(utils.FileNameWithoutExt(originalName))
	key := fmt.Sprintf("%s_%s%s", base, uuid.NewString(), ext)

	dst, err := os.Create(filepath.Join(s.uploadDir, key))
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return key, nil
}

// Path returns the absolute disk path for a storage key.
func (s *FileService) Path(key string) string {
	return filepath.Join(s.uploadDir, filepath.Base(key))
}

func (s *FileService) Open(key string) (*os.File, error) {
	return os.Open(s.Path(key))
}

func (s *FileService) Delete(key string) error {
	err := os.Remove(s.Path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

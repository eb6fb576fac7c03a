package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalBlob 本地文件系统驱动（开发环境），文件由 HTTP 层在 /uploads 下提供
type LocalBlob struct {
	basePath string
	baseURL  string
}

func NewLocalBlob(basePath, baseURL string) *LocalBlob {
	if basePath == "" {
		basePath = "./uploads"
	}
	if baseURL == "" {
		baseURL = "/uploads"
	}
	return &LocalBlob{basePath: basePath, baseURL: strings.TrimSuffix(baseURL, "/")}
}

var _ Blob = (*LocalBlob)(nil)

// Dir is the directory files are written under.
func (s *LocalBlob) Dir() string { return s.basePath }

func (s *LocalBlob) fullPath(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid key: %q", key)
	}
	return filepath.Join(s.basePath, clean), nil
}

func (s *LocalBlob) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	fullPath, err := s.fullPath(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(fullPath, body, 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return s.baseURL + "/" + strings.TrimPrefix(key, "/"), nil
}

func (s *LocalBlob) Delete(_ context.Context, key string) error {
	fullPath, err := s.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	s.removeEmptyDirs(filepath.Dir(fullPath))
	return nil
}

func (s *LocalBlob) KeyFromURL(url string) (string, bool) {
	return keyUnder(s.baseURL, url)
}

// removeEmptyDirs removes empty parent directories up to basePath
func (s *LocalBlob) removeEmptyDirs(dir string) {
	rel, err := filepath.Rel(s.basePath, dir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return
	}
	if err := os.Remove(dir); err == nil {
		s.removeEmptyDirs(filepath.Dir(dir))
	}
}

// Package storage stores company assets (logos, banners) in S3 or on the local filesystem.
package storage

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/LsSens/backend-ecommerce/internal/config"
)

// Blob 对象存储驱动
type Blob interface {
	// Put stores body under key and returns its public URL.
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	// Delete removes the object at key; a missing object is not an error.
	Delete(ctx context.Context, key string) error
	// KeyFromURL maps a public URL produced by Put back to its key.
	KeyFromURL(url string) (string, bool)
}

// Asset folders
const (
	FolderLogos   = "logos"
	FolderBanners = "banners"
)

// NewBlob 根据配置创建存储驱动
func NewBlob(ctx context.Context, cfg config.StorageConfig) (Blob, error) {
	switch cfg.Driver {
	case "local", "":
		return NewLocalBlob(cfg.LocalDir, cfg.LocalBaseURL), nil
	case "s3":
		return NewS3Blob(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

// ContentTypeFor returns the MIME type for key's extension.
func ContentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	if t := mime.TypeByExtension(path.Ext(key)); t != "" {
		return t
	}
	return "application/octet-stream"
}

package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/LsSens/backend-ecommerce/internal/apperr"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Uploader turns data-URL images into stored assets under {folder}/{companyId}/{uuid}.{ext}.
type Uploader struct {
	blob     Blob
	maxBytes int64
	maxWidth int
	logger   *zap.Logger
}

func NewUploader(blob Blob, maxBytes int64, maxWidth int, logger *zap.Logger) *Uploader {
	return &Uploader{blob: blob, maxBytes: maxBytes, maxWidth: maxWidth, logger: logger}
}

// isStored reports whether src is an already-uploaded asset rather than image data.
func (u *Uploader) isStored(src string) bool {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return true
	}
	_, ok := u.blob.KeyFromURL(src)
	return ok
}

// Upload stores one image; URLs pass through unchanged so existing assets can be kept.
func (u *Uploader) Upload(ctx context.Context, src, folder, companyID string) (string, error) {
	if u.isStored(src) {
		return src, nil
	}
	data, ext, err := DecodeDataURL(src)
	if err != nil {
		return "", err
	}
	if u.maxBytes > 0 && int64(len(data)) > u.maxBytes {
		return "", apperr.Invalid(fmt.Sprintf("file too large, maximum is %dMB", u.maxBytes>>20))
	}
	if data, err = Normalize(data, ext, u.maxWidth); err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s/%s/%s.%s", folder, companyID, uuid.NewString(), ext)
	url, err := u.blob.Put(ctx, key, data, ContentTypeFor(key))
	if err != nil {
		return "", apperr.Internal("storage.Upload", err)
	}
	return url, nil
}

// UploadAll uploads srcs concurrently, preserving order. On failure every asset this
// call created is removed again.
func (u *Uploader) UploadAll(ctx context.Context, srcs []string, folder, companyID string) ([]string, error) {
	urls := make([]string, len(srcs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, src := range srcs {
		i, src := i, src
		g.Go(func() error {
			url, err := u.Upload(gctx, src, folder, companyID)
			if err != nil {
				return err
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var created []string
		for i, url := range urls {
			if url != "" && url != srcs[i] {
				created = append(created, url)
			}
		}
		u.Remove(context.WithoutCancel(ctx), created...)
		return nil, err
	}
	return urls, nil
}

// Remove deletes assets best-effort; URLs the store did not produce are skipped.
func (u *Uploader) Remove(ctx context.Context, urls ...string) {
	for _, url := range urls {
		key, ok := u.blob.KeyFromURL(url)
		if !ok {
			continue
		}
		if err := u.blob.Delete(ctx, key); err != nil {
			u.logger.Warn("Asset deletion failed", zap.String("url", url), zap.Error(err))
		}
	}
}

package storage

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/LsSens/backend-ecommerce/internal/apperr"

	"github.com/disintegration/imaging"
)

var mimeToExt = map[string]string{
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// DecodeDataURL decodes "data:image/png;base64,..." or bare base64 (treated as JPEG).
func DecodeDataURL(s string) (data []byte, ext string, err error) {
	payload, mimeType := s, "image/jpeg"
	if strings.HasPrefix(s, "data:") {
		header, body, ok := strings.Cut(s, ",")
		if !ok {
			return nil, "", apperr.Invalid("invalid data URL")
		}
		payload = body
		mimeType, _, _ = strings.Cut(strings.TrimPrefix(header, "data:"), ";")
	}
	ext, ok := mimeToExt[strings.ToLower(mimeType)]
	if !ok {
		return nil, "", apperr.Invalid(fmt.Sprintf("unsupported image type: %s", mimeType))
	}
	data, err = base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, "", apperr.Invalid("image is not valid base64")
	}
	return data, ext, nil
}

// Normalize 按 EXIF 方向旋正并把宽度限制在 maxWidth 以内（webp 原样返回）
func Normalize(data []byte, ext string, maxWidth int) ([]byte, error) {
	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return data, nil
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperr.Invalid("invalid image")
	}
	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

package inference

import (
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/tphakala/wildwatch-go/internal/errors"
)

// DefaultMaxMediaBytes caps media read from disk or accepted as an upload.
const DefaultMaxMediaBytes = 50 << 20

// ContentType resolves the media type of a payload: the declared type first, then
// the file extension, then content sniffing. Parameters are stripped.
func ContentType(declared, filename string, data []byte) string {
	if t, _, err := mime.ParseMediaType(declared); err == nil && t != "application/octet-stream" {
		return t
	}
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); t != "" {
		if mt, _, err := mime.ParseMediaType(t); err == nil {
			return mt
		}
	}
	t, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return t
}

// NewMedia validates a payload and wraps it as Media. Only non-empty images and
// videos up to maxBytes are accepted.
func NewMedia(filename, declaredType string, data []byte, maxBytes int64) (Media, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxMediaBytes
	}
	switch {
	case len(data) == 0:
		return Media{}, mediaError("file is empty")
	case int64(len(data)) > maxBytes:
		return Media{}, mediaError("file exceeds %d bytes", maxBytes)
	}

	contentType := ContentType(declaredType, filename, data)
	if !strings.HasPrefix(contentType, "image/") && !strings.HasPrefix(contentType, "video/") {
		return Media{}, mediaError("unsupported media type %q", contentType)
	}
	return Media{Filename: filename, ContentType: contentType, Data: data}, nil
}

// ReadMediaFile loads an image or video from disk.
func ReadMediaFile(path string, maxBytes int64) (Media, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxMediaBytes
	}
	info, err := os.Stat(path)
	if err != nil {
		return Media{}, errors.New(err).
			Component("inference").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	if info.Size() > maxBytes {
		return Media{}, mediaError("file exceeds %d bytes", maxBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Media{}, errors.New(err).
			Component("inference").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return NewMedia(filepath.Base(path), "", data, maxBytes)
}

func mediaError(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("inference").
		Category(errors.CategoryValidation).
		Build()
}

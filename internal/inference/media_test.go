package inference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/wildwatch-go/internal/errors"
)

var jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

func TestContentType(t *testing.T) {
	tests := []struct {
		name     string
		declared string
		filename string
		data     []byte
		want     string
	}{
		{"declared wins", "video/mp4; codecs=avc1", "clip.bin", nil, "video/mp4"},
		{"octet-stream falls through to extension", "application/octet-stream", "deer.png", nil, "image/png"},
		{"extension", "", "BOAR.JPG", nil, "image/jpeg"},
		{"sniffed", "", "upload", jpegHeader, "image/jpeg"},
		{"sniffed text", "", "notes", []byte("hello"), "text/plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContentType(tt.declared, tt.filename, tt.data))
		})
	}
}

func TestNewMedia(t *testing.T) {
	m, err := NewMedia("fox.jpg", "", jpegHeader, 0)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", m.ContentType)
	assert.False(t, m.IsVideo())

	m, err = NewMedia("fox.mp4", "video/mp4", []byte("....ftypisom"), 0)
	require.NoError(t, err)
	assert.True(t, m.IsVideo())

	_, err = NewMedia("empty.jpg", "", nil, 0)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	_, err = NewMedia("big.jpg", "", make([]byte, 16), 8)
	require.Error(t, err)

	_, err = NewMedia("notes.txt", "", []byte("hello"), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text/plain")
}

func TestReadMediaFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hedgehog.jpg")
	require.NoError(t, os.WriteFile(path, jpegHeader, 0o600))

	m, err := ReadMediaFile(path, 0)
	require.NoError(t, err)
	assert.Equal(t, "hedgehog.jpg", m.Filename)
	assert.Equal(t, jpegHeader, m.Data)

	_, err = ReadMediaFile(path, 4)
	require.Error(t, err)

	_, err = ReadMediaFile(filepath.Join(dir, "missing.jpg"), 0)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}

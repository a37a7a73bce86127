package capture

import (
	"bufio"
	"bytes"
	"image"
	"image/jpeg"
	"io"

	_ "image/png"

	"golang.org/x/image/draw"
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// splitJPEG is a bufio.SplitFunc that yields complete JPEG images from an MJPEG byte
// stream such as ffmpeg's image2pipe output. Bytes before a start-of-image marker are skipped.
func splitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		// keep a trailing 0xFF, it may be the first half of a marker
		if n := len(data); !atEOF && n > 0 && data[n-1] == 0xFF {
			return n - 1, nil, nil
		}
		return len(data), nil, nil
	}

	end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// request more data, dropping any junk before SOI
		return start, nil, nil
	}
	stop := start + len(jpegSOI) + end + len(jpegEOI)
	return stop, data[start:stop], nil
}

// newFrameScanner returns a scanner over an MJPEG stream with room for large frames.
func newFrameScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 512<<10), 16<<20)
	s.Split(splitJPEG)
	return s
}

// Normalize scales img to exactly width x height.
func Normalize(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// EncodeJPEG encodes img at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NormalizeJPEG decodes an encoded image (JPEG or PNG), scales it to width x height
// and re-encodes it as JPEG. Data already at the target size and in JPEG form is returned as is.
func NormalizeJPEG(data []byte, width, height, quality int) ([]byte, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if format == "jpeg" && cfg.Width == width && cfg.Height == height {
		return data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return EncodeJPEG(Normalize(img, width, height), quality)
}

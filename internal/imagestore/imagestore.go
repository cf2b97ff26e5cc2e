// Package imagestore validates uploaded profile images and keeps them on the
// local filesystem.
//
// Every accepted image is decoded and re-encoded as JPEG before it is written,
// so what lands on disk is always a clean JPEG produced by us, never the raw
// bytes a client sent.
package imagestore

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // registers the PNG decoder with image.Decode
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/mentor-match/internal/apperror"
)

const jpegQuality = 90

// Limits bounds an incoming image. A zero field means "no bound".
//
// MaxPixels is checked from the header before decoding: a decoded image costs
// about 4 bytes per pixel whatever its file size, so a few KB of compressed
// PNG can describe gigabytes of bitmap.
type Limits struct {
	MaxBytes  int
	MinSide   int
	MaxSide   int
	MaxPixels int64
}

var (
	// InlineLimits apply to the base64 image embedded in a profile update.
	InlineLimits = Limits{MaxBytes: 1 << 20, MinSide: 500, MaxSide: 1000, MaxPixels: 1000 * 1000}
	// UploadLimits apply to the multipart upload endpoint.
	UploadLimits = Limits{MaxBytes: 5 << 20, MaxSide: 8192, MaxPixels: 4096 * 4096}
)

// Store writes images into one directory.
type Store struct {
	dir string
}

// New creates dir if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("imagestore: creating %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// DecodeBase64 accepts either bare base64 or a data URL
// ("data:image/png;base64,....") and returns the raw bytes.
func DecodeBase64(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 || !strings.HasSuffix(payload[:comma], ";base64") {
			return nil, apperror.ValidationFailed("image", "image must be a base64 data URL")
		}
		payload = payload[comma+1:]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, apperror.ValidationFailed("image", "image is not valid base64")
	}
	return data, nil
}

// Save validates data against lim, re-encodes it as JPEG and writes it under a
// fresh name, which it returns.
func (s *Store) Save(data []byte, lim Limits) (string, error) {
	if len(data) == 0 {
		return "", apperror.ValidationFailed("image", "image is empty")
	}
	if lim.MaxBytes > 0 && len(data) > lim.MaxBytes {
		return "", apperror.ValidationFailed("image",
			fmt.Sprintf("image must be at most %d MB", lim.MaxBytes>>20))
	}

	// DecodeConfig reads only the header, so oversized or bogus images are
	// rejected before any pixel data is allocated.
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", apperror.ValidationFailed("image", "image must be a JPEG or PNG file")
	}
	if format != "jpeg" && format != "png" {
		return "", apperror.ValidationFailed("image", "image must be a JPEG or PNG file")
	}
	if err := lim.checkBounds(cfg.Width, cfg.Height); err != nil {
		return "", err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", apperror.ValidationFailed("image", "image could not be decoded")
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("imagestore: encoding jpeg: %w", err)
	}

	name := xid.New().String() + ".jpg"
	if err := os.WriteFile(filepath.Join(s.dir, name), buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("imagestore: writing %s: %w", name, err)
	}
	return name, nil
}

func (lim Limits) checkBounds(w, h int) error {
	if lim.MinSide > 0 && (w < lim.MinSide || h < lim.MinSide) {
		return apperror.ValidationFailed("image",
			fmt.Sprintf("image must be at least %dx%d pixels", lim.MinSide, lim.MinSide))
	}
	if lim.MaxSide > 0 && (w > lim.MaxSide || h > lim.MaxSide) {
		return apperror.ValidationFailed("image",
			fmt.Sprintf("image must be at most %dx%d pixels", lim.MaxSide, lim.MaxSide))
	}
	if lim.MaxPixels > 0 && int64(w)*int64(h) > lim.MaxPixels {
		return apperror.ValidationFailed("image",
			fmt.Sprintf("image must be at most %d pixels in total", lim.MaxPixels))
	}
	return nil
}

// Delete removes a stored image. A missing file is not an error.
func (s *Store) Delete(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("imagestore: deleting %s: %w", name, err)
	}
	return nil
}

// Path resolves a stored name to its file path. Names are only ever produced
// by Save, so anything containing a path separator is refused.
func (s *Store) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("imagestore: invalid image name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}

// Package signature stores uploaded signature images and hands back the URL
// recorded on a section.
package signature

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrUnsupportedImage = errors.New("signature must be a PNG or JPEG image")
	ErrTooLarge         = errors.New("signature image too large")
	ErrEmpty            = errors.New("signature image is empty")
)

type Store interface {
	Put(ctx context.Context, name string, r io.Reader) (string, error)
}

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
}

// Read loads at most maxBytes of r and checks that it is an image type we
// accept. It returns the bytes and the file extension to use.
func Read(r io.Reader, maxBytes int64) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", ErrEmpty
	}
	if int64(len(data)) > maxBytes {
		return nil, "", ErrTooLarge
	}
	ext, ok := extensions[http.DetectContentType(data)]
	if !ok {
		return nil, "", ErrUnsupportedImage
	}
	return data, ext, nil
}

// ObjectName builds a collision-free name grouped by appraisal and section.
func ObjectName(appraisalID, section, role, ext string) string {
	return path.Join(clean(appraisalID), clean(section), clean(role)+"-"+uuid.NewString()+ext)
}

func clean(part string) string {
	part = strings.TrimSpace(part)
	part = strings.NewReplacer("/", "-", "\\", "-", "..", "-").Replace(part)
	if part == "" {
		return "unknown"
	}
	return part
}

// Upload validates data from r and stores it under an ObjectName.
func Upload(ctx context.Context, store Store, r io.Reader, maxBytes int64, appraisalID, section, role string) (string, error) {
	data, ext, err := Read(r, maxBytes)
	if err != nil {
		return "", err
	}
	url, err := store.Put(ctx, ObjectName(appraisalID, section, role, ext), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("store signature: %w", err)
	}
	return url, nil
}

package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	GroupImageSize = 512
	MaxUploadBytes = 5 << 20
	groupImageType = "image/jpeg"
	groupImageDir  = "group-images"
	jpegQuality    = 85
)

var (
	ErrImageTooLarge = errors.New("image exceeds upload limit")
	ErrInvalidImage  = errors.New("unsupported image")
)

// NormalizeGroupImage decodes an uploaded image, fits it into a square
// bounding box and re-encodes it as JPEG.
func NormalizeGroupImage(r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "read image")
	}
	if len(raw) > MaxUploadBytes {
		return nil, ErrImageTooLarge
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(ErrInvalidImage, err.Error())
	}
	img = imaging.Fit(img, GroupImageSize, GroupImageSize, imaging.Lanczos)

	var out bytes.Buffer
	if err := imaging.Encode(&out, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, errors.Wrap(err, "encode image")
	}
	return out.Bytes(), nil
}

// GroupImageKey returns a fresh object key for a thread's image.
func GroupImageKey(threadID string) string {
	return fmt.Sprintf("%s/%s/%s.jpg", groupImageDir, threadID, uuid.NewString())
}

// UploadGroupImage normalizes and stores an image, returning its object key
// and public URL.
func UploadGroupImage(ctx context.Context, store ObjectStore, threadID string, r io.Reader) (string, string, error) {
	body, err := NormalizeGroupImage(r)
	if err != nil {
		return "", "", err
	}
	key := GroupImageKey(threadID)
	url, err := store.Upload(ctx, key, groupImageType, body)
	if err != nil {
		return "", "", err
	}
	return key, url, nil
}

// ObjectKey recovers the key of an object from its public URL. It reports
// false for URLs the store did not produce.
func ObjectKey(store ObjectStore, url string) (string, bool) {
	key, ok := strings.CutPrefix(url, store.PublicURL(""))
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

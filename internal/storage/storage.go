// Package storage keeps uploaded gift images.
//
// The rest of the app only ever sees an opaque reference string such as
// "/uploads/gifts/cv37rs3pp9olc6atsptg.png". The server mounts the same
// directory under /uploads, so the reference doubles as the image URL.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/xid"

	"github.com/sakif/secret-santa/internal/apperror"
)

// URLPrefix is where the server exposes UploadDir.
const URLPrefix = "/uploads"

const giftsSubdir = "gifts"

// allowedTypes maps the image types we accept to the extension we store.
// SVG is left out on purpose: it can carry script.
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ImageStore stores an image and hands back its reference.
type ImageStore interface {
	Save(ctx context.Context, r io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
}

// DiskStore writes images under a local directory.
type DiskStore struct {
	root     string
	maxBytes int64
}

// NewDiskStore creates root/gifts if needed.
func NewDiskStore(root string, maxBytes int64) (*DiskStore, error) {
	if err := os.MkdirAll(filepath.Join(root, giftsSubdir), 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating upload dir: %w", err)
	}
	return &DiskStore{root: root, maxBytes: maxBytes}, nil
}

// Root is the directory the server should serve under URLPrefix.
func (s *DiskStore) Root() string {
	return s.root
}

// Save sniffs the content type, rejects anything that isn't an allowed
// image or is larger than the limit, and writes the file under a fresh xid.
//
// The type comes from the bytes, never from the client's filename or
// Content-Type header, which are both trivially spoofed.
func (s *DiskStore) Save(_ context.Context, r io.Reader) (string, error) {
	// Read one byte past the limit so "exactly at the limit" is allowed
	// and "over" is detected without reading the whole stream.
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("storage: reading upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", apperror.ValidationFailed("giftImage",
			fmt.Sprintf("Image must be at most %d bytes", s.maxBytes))
	}
	if len(data) == 0 {
		return "", apperror.ValidationFailed("giftImage", "Image is empty")
	}

	mt := mimetype.Detect(data)
	ext, ok := allowedTypes[mt.String()]
	if !ok {
		return "", apperror.ValidationFailed("giftImage",
			fmt.Sprintf("Only image files are allowed (got %s)", mt.String()))
	}

	name := xid.New().String() + ext
	path := filepath.Join(s.root, giftsSubdir, name)
	if err := writeFile(path, data); err != nil {
		return "", err
	}
	return URLPrefix + "/" + giftsSubdir + "/" + name, nil
}

// Delete removes a previously saved image. Unknown or foreign references are
// ignored, and so is a file that is already gone.
func (s *DiskStore) Delete(_ context.Context, ref string) error {
	name, ok := strings.CutPrefix(ref, URLPrefix+"/"+giftsSubdir+"/")
	if !ok || name == "" || strings.ContainsAny(name, `/\`) || name == ".." {
		return nil
	}
	err := os.Remove(filepath.Join(s.root, giftsSubdir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: deleting %s: %w", ref, err)
	}
	return nil
}

// writeFile writes via a temp file and rename so a crash never leaves a
// half-written image behind a valid reference.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("storage: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: writing image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: closing image: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("storage: moving image into place: %w", err)
	}
	return nil
}

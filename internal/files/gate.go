// Package files gates access to stored resources by authorization tier.
package files

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/parleyapp/parley/internal/models"
)

// Tier is an authorization policy bucket for stored resources.
type Tier int

const (
	// TierDocument is admin-only: uploaded consultation documents.
	TierDocument Tier = iota
	// TierAvatar is public-read: profile images. Deliberately
	// unauthenticated — any guessable avatar filename is servable.
	TierAvatar
)

var (
	ErrUnauthorized  = errors.New("authentication required")
	ErrForbidden     = errors.New("insufficient role for this resource")
	ErrInvalidName   = errors.New("invalid filename")
	ErrInvalidFormat = errors.New("unsupported avatar format")
	ErrNotFound      = errors.New("file not found")
)

// documentMIME maps extensions servable at the document tier.
// Unknown extensions fall back to application/octet-stream.
var documentMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// avatarMIME is the avatar tier allow-list: images only, no fallback.
// Kept as a separate set rather than filtering documentMIME so each tier's
// policy stays explicit.
var avatarMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
}

// avatarCacheControl marks avatar responses shared-cache-eligible for 24h.
const avatarCacheControl = "public, max-age=86400"

// FileInfo carries the response metadata for an authorized fetch.
type FileInfo struct {
	ContentType  string
	Size         int64
	Disposition  string // Content-Disposition, empty to omit
	CacheControl string // Cache-Control, empty to omit
}

// BlobStore reads stored resources addressed by filename under a fixed
// root. Open returns ErrNotFound when the file does not exist.
type BlobStore interface {
	Open(ctx context.Context, name string) (io.ReadCloser, int64, error)
}

// Gate authorizes stored-resource fetches. It never writes.
type Gate struct {
	blobs BlobStore
}

// NewGate creates a gate over the given blob store.
func NewGate(blobs BlobStore) *Gate {
	return &Gate{blobs: blobs}
}

// Authorize classifies the request and, if the tier's policy passes,
// returns the byte stream and response metadata. Policy is evaluated fully
// before the store is consulted:
//
//  1. filenames escaping the uploads root are rejected for every tier
//  2. document tier requires an authenticated admin
//  3. avatar tier requires an allow-listed image extension
//  4. only then is the store opened; a missing file is ErrNotFound
//
// The caller owns the returned stream and must close it on every path.
func (g *Gate) Authorize(ctx context.Context, filename string, ident *models.Identity, tier Tier) (io.ReadCloser, *FileInfo, error) {
	if !safeName(filename) {
		return nil, nil, ErrInvalidName
	}

	ext := strings.ToLower(path.Ext(filename))
	info := &FileInfo{}

	switch tier {
	case TierDocument:
		if ident == nil {
			return nil, nil, ErrUnauthorized
		}
		if !ident.IsAdmin() {
			return nil, nil, ErrForbidden
		}
		ct, ok := documentMIME[ext]
		if !ok {
			ct = "application/octet-stream"
		}
		info.ContentType = ct
		info.Disposition = `inline; filename="` + filename + `"`

	case TierAvatar:
		ct, ok := avatarMIME[ext]
		if !ok {
			return nil, nil, ErrInvalidFormat
		}
		info.ContentType = ct
		info.CacheControl = avatarCacheControl

	default:
		return nil, nil, ErrForbidden
	}

	rc, size, err := g.blobs.Open(ctx, filename)
	if err != nil {
		return nil, nil, err
	}
	info.Size = size
	return rc, info, nil
}

// safeName accepts only bare filenames: no separators, no traversal, no
// hidden empties. Checked before anything else, regardless of tier.
func safeName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	if strings.Contains(name, "..") {
		return false
	}
	return true
}

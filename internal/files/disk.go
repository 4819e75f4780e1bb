package files

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Attachment upload limits for the chat send path.
const MaxAttachmentSize = 10 << 20 // 10MB

// attachmentExts is the allow-list for uploaded chat attachments.
var attachmentExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".txt":  true,
}

// AllowedAttachment reports whether the original filename's extension is
// accepted on the upload path.
func AllowedAttachment(filename string) bool {
	return attachmentExts[strings.ToLower(path.Ext(filename))]
}

// DiskStore is a BlobStore backed by a fixed uploads directory.
type DiskStore struct {
	root string
}

// NewDiskStore creates the uploads root if needed and returns a store over it.
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating uploads root: %w", err)
	}
	return &DiskStore{root: root}, nil
}

// Open returns a stream for the named file. The name must already have
// passed the gate's safety checks; Open still refuses anything resolving
// outside the root.
func (d *DiskStore) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	full := filepath.Join(d.root, filepath.Base(name))

	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("opening %q: %w", name, err)
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat %q: %w", name, err)
	}
	if st.IsDir() {
		f.Close()
		return nil, 0, ErrNotFound
	}

	return f, st.Size(), nil
}

// Save writes an uploaded attachment under a generated name, preserving
// only the original extension, and returns the stored name.
func (d *DiskStore) Save(ctx context.Context, originalName string, r io.Reader) (string, int64, error) {
	ext := strings.ToLower(path.Ext(originalName))
	stored := uuid.NewString() + ext

	f, err := os.Create(filepath.Join(d.root, stored))
	if err != nil {
		return "", 0, fmt.Errorf("creating attachment file: %w", err)
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(filepath.Join(d.root, stored))
		return "", 0, fmt.Errorf("writing attachment: %w", err)
	}

	return stored, n, nil
}

// Remove deletes a stored file. Used to roll back an attachment whose
// send failed after storage.
func (d *DiskStore) Remove(ctx context.Context, name string) error {
	return os.Remove(filepath.Join(d.root, filepath.Base(name)))
}

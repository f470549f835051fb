// internal/form/file.go
//
// Uploaded files.  A File is a reference: name, declared MIME type, size, and
// a way to open the bytes.  Validation only looks at the metadata; the API
// client opens the content when it builds the multipart payload.

package form

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageBytes is the per-image size cap (5 MiB).
const MaxImageBytes = 5 * 1024 * 1024

// File is one selected upload.
type File struct {
	Name string
	Type string // declared MIME type
	Size int64
	Open func() (io.ReadCloser, error)
}

// BytesFile wraps in-memory content.
func BytesFile(name, mimeType string, data []byte) File {
	return File{
		Name: name,
		Type: mimeType,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FileFromHeader adapts a parsed multipart header.  Browsers occasionally send
// an empty or generic type; the content is sniffed in that case so the image
// check sees a real MIME type.
func FileFromHeader(fh *multipart.FileHeader) (File, error) {
	f := File{
		Name: fh.Filename,
		Type: fh.Header.Get("Content-Type"),
		Size: fh.Size,
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
	if f.Type != "" && f.Type != "application/octet-stream" {
		return f, nil
	}

	rc, err := fh.Open()
	if err != nil {
		return File{}, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer rc.Close()
	mt, err := mimetype.DetectReader(rc)
	if err != nil {
		return File{}, fmt.Errorf("sniff upload %s: %w", fh.Filename, err)
	}
	f.Type = mt.String()
	return f, nil
}

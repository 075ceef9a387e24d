package tool

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// LocalFile is a file on disk picked for transfer. The content is only read when Open is called.
type LocalFile struct {
	path     string
	name     string
	mimeType string
	size     int64
}

// OpenLocalFile stats path and detects its MIME type, extension first, then by content.
func OpenLocalFile(path string) (*LocalFile, error) {
	return OpenLocalFileAs(path, filepath.Base(path))
}

// OpenLocalFileAs is OpenLocalFile with the display name supplied by the caller,
// e.g. the original name of an upload stored under a temp path.
func OpenLocalFileAs(path, name string) (*LocalFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file")
	}

	fileType := mime.TypeByExtension(filepath.Ext(name))
	if fileType == "" {
		if detected, err := mimetype.DetectFile(path); err == nil {
			fileType = detected.String()
		} else {
			DefaultLogger.Debugf("MIME detection failed for %s: %v", path, err)
		}
	}
	if fileType == "" {
		fileType = "application/octet-stream" // Default MIME type
	}
	// drop parameters such as "; charset=utf-8"
	if i := strings.Index(fileType, ";"); i > 0 {
		fileType = strings.TrimSpace(fileType[:i])
	}

	return &LocalFile{
		path:     path,
		name:     name,
		mimeType: fileType,
		size:     info.Size(),
	}, nil
}

func (f *LocalFile) Name() string     { return f.name }
func (f *LocalFile) Size() int64      { return f.size }
func (f *LocalFile) MimeType() string { return f.mimeType }
func (f *LocalFile) Path() string     { return f.path }

func (f *LocalFile) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

// EncodeBase64 reads r to the end and returns its standard base64 encoding.
func EncodeBase64(r io.Reader) (string, error) {
	var buf bytes.Buffer
	enc := base64.NewEncoder(base64.StdEncoding, &buf)
	if _, err := io.Copy(enc, r); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode file: %w", err)
	}
	return buf.String(), nil
}

// DataURI builds "data:<mime>;base64,<payload>" for image previews.
func DataURI(mimeType string, r io.Reader) (string, error) {
	payload, err := EncodeBase64(r)
	if err != nil {
		return "", err
	}
	return "data:" + mimeType + ";base64," + payload, nil
}

// IsImage reports whether the MIME type gets a preview.
func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

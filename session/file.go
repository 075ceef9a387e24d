package session

import (
	"io"

	"github.com/moyoez/pairdrop-go/tool"
	"github.com/moyoez/pairdrop-go/types"
)

// File is a picked file. *tool.LocalFile implements it.
type File interface {
	Name() string
	Size() int64
	MimeType() string
	Open() (io.ReadCloser, error)
}

type pendingFile struct {
	file    File
	preview string // data URI, images only
}

func (p *pendingFile) info() *types.FileInfo {
	if p == nil {
		return nil
	}
	return &types.FileInfo{
		FileName: p.file.Name(),
		Size:     p.file.Size(),
		FileType: p.file.MimeType(),
		Preview:  p.preview,
	}
}

// buildPreview returns a data URI for images. Failures only cost the preview.
func buildPreview(f File) string {
	if !tool.IsImage(f.MimeType()) {
		return ""
	}
	rc, err := f.Open()
	if err != nil {
		tool.DefaultLogger.Warnf("[Transfer] preview of %s skipped: %v", f.Name(), err)
		return ""
	}
	defer rc.Close()
	uri, err := tool.DataURI(f.MimeType(), rc)
	if err != nil {
		tool.DefaultLogger.Warnf("[Transfer] preview of %s skipped: %v", f.Name(), err)
		return ""
	}
	return uri
}

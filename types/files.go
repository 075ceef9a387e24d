package types

// FileInfo describes the file currently selected for transfer.
type FileInfo struct {
	FileName string `json:"fileName"`
	Size     int64  `json:"size"`
	FileType string `json:"fileType"`
	Preview  string `json:"preview,omitempty"` // data URI, images only
}

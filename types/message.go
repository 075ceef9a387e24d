package types

// Socket message types. One JSON object travels per websocket text frame.
const (
	MessageTypeJoinSession   = "join_session"
	MessageTypeFileUpload    = "file_upload"
	MessageTypeSessionJoined = "session_joined"
	MessageTypeFileUploaded  = "file_uploaded"
	MessageTypeUploadError   = "upload_error"
	MessageTypeError         = "error"

	ConnectionTypeMobile = "mobile"
)

// JoinSessionMessage is sent once the socket is open.
type JoinSessionMessage struct {
	Type           string `json:"type"`
	Code           string `json:"code"`
	ConnectionType string `json:"connectionType"`
	Token          string `json:"token,omitempty"`
}

// FileUploadMessage carries the whole file, base64 encoded, in a single frame.
type FileUploadMessage struct {
	Type      string `json:"type"`
	SessionId string `json:"sessionId"`
	FileId    string `json:"fileId"`
	Filename  string `json:"filename"`
	MimeType  string `json:"mimeType"`
	FileData  string `json:"fileData"`
	FileSize  int64  `json:"fileSize"`
}

// InboundMessage is the union of everything the service sends back.
type InboundMessage struct {
	Type      string `json:"type"`
	SessionId string `json:"sessionId,omitempty"`
	FileId    string `json:"fileId,omitempty"`
	Message   string `json:"message,omitempty"`
}

package session

import (
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/moyoez/pairdrop-go/tool"
	"github.com/moyoez/pairdrop-go/types"
)

func encodeJoin(code, token string) ([]byte, error) {
	return sonic.Marshal(types.JoinSessionMessage{
		Type:           types.MessageTypeJoinSession,
		Code:           code,
		ConnectionType: types.ConnectionTypeMobile,
		Token:          token,
	})
}

// encodeUpload reads the whole file and builds the single file_upload frame.
func encodeUpload(f File, sessionId, fileId string) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer rc.Close()

	data, err := tool.EncodeBase64(rc)
	if err != nil {
		return nil, err
	}
	payload, err := sonic.Marshal(types.FileUploadMessage{
		Type:      types.MessageTypeFileUpload,
		SessionId: sessionId,
		FileId:    fileId,
		Filename:  f.Name(),
		MimeType:  f.MimeType(),
		FileData:  data,
		FileSize:  f.Size(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode upload message: %w", err)
	}
	return payload, nil
}

func decodeInbound(data []byte) (types.InboundMessage, error) {
	var msg types.InboundMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("failed to decode message: %w", err)
	}
	return msg, nil
}

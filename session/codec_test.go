package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyoez/pairdrop-go/types"
)

func TestEncodeJoinOmitsEmptyToken(t *testing.T) {
	data, err := encodeJoin("123456", "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"join_session","code":"123456","connectionType":"mobile"}`, string(data))

	data, err = encodeJoin("123456", "abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"join_session","code":"123456","connectionType":"mobile","token":"abc"}`, string(data))
}

func TestEncodeUpload(t *testing.T) {
	f := &memFile{name: "a.txt", mime: "text/plain", data: []byte("hi")}
	data, err := encodeUpload(f, "s1", "file-1-abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"file_upload","sessionId":"s1","fileId":"file-1-abc","filename":"a.txt",
		"mimeType":"text/plain","fileData":"aGk=","fileSize":2}`, string(data))
}

func TestDecodeInbound(t *testing.T) {
	msg, err := decodeInbound([]byte(`{"type":"session_joined","sessionId":"abc","extra":1}`))
	require.NoError(t, err)
	assert.Equal(t, types.MessageTypeSessionJoined, msg.Type)
	assert.Equal(t, "abc", msg.SessionId)

	_, err = decodeInbound([]byte(`not json`))
	assert.Error(t, err)
}

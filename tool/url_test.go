package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSocketURL(t *testing.T) {
	assert.Equal(t, "wss://h/ws/transfer", BuildSocketURL("wss://h/ws/transfer", ""))
	assert.Equal(t, "wss://h/ws/transfer?token=a%20b%2Fc", BuildSocketURL("wss://h/ws/transfer", "a b/c"))
	assert.Equal(t, "wss://h/ws?x=1&token=t", BuildSocketURL("wss://h/ws?x=1", "t"))
}

func TestBuildAPIURL(t *testing.T) {
	u, err := BuildAPIURL("https://api.example/v1/", "/transfer/validate-code")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example/v1/transfer/validate-code", u)

	_, err = BuildAPIURL("", "/x")
	assert.Error(t, err)

	u, err = BuildSessionURL("https://api.example", "a/b", "/status")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example/transfer/sessions/a%2Fb/status", u)
}

func TestSocketHost(t *testing.T) {
	host, err := SocketHost("wss://desk.example:8443/ws/transfer")
	require.NoError(t, err)
	assert.Equal(t, "desk.example", host)

	_, err = SocketHost("/ws/transfer")
	assert.Error(t, err)
}

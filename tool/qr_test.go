package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidCode(t *testing.T) {
	assert.True(t, IsValidCode("123456"))
	assert.True(t, IsValidCode("  123456 "))
	assert.False(t, IsValidCode("12345"))
	assert.False(t, IsValidCode("1234567"))
	assert.False(t, IsValidCode("12a456"))
	assert.False(t, IsValidCode(""))
}

func TestSanitizeCode(t *testing.T) {
	assert.Equal(t, "123456", SanitizeCode("12-34 56"))
	assert.Equal(t, "123456", SanitizeCode("12345678"))
	assert.Equal(t, "", SanitizeCode("abc"))
}

func TestParsePairingPayload(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		code  string
		token string
	}{
		{"token and code", "tok123:654321", "654321", "tok123"},
		{"bare code", " 654321 ", "654321", ""},
		{"query url", "https://desk.example/api/validate-code?code=654321", "654321", ""},
		{"path url", "https://desk.example:8443/api/validate-code/654321", "654321", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, token, err := ParsePairingPayload(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.token, token)
		})
	}
}

func TestParsePairingPayloadRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "hello", "tok:12345", "https://desk.example/api/validate-code?code=abc"} {
		_, _, err := ParsePairingPayload(raw)
		assert.ErrorIs(t, err, ErrInvalidQRPayload, raw)
	}
}

func TestBuildPairingPayloadRoundTrip(t *testing.T) {
	assert.Equal(t, "123456", BuildPairingPayload("123456", ""))

	code, token, err := ParsePairingPayload(BuildPairingPayload("123456", "abc"))
	require.NoError(t, err)
	assert.Equal(t, "123456", code)
	assert.Equal(t, "abc", token)
}

package transfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"

	"github.com/moyoez/pairdrop-go/tool"
	"github.com/moyoez/pairdrop-go/types"
)

const (
	MsgInvalidCodeFormat = "Invalid code format."
	MsgCodeExpired       = "Code expired or invalid — ask sender for a new one."
	MsgAuthFailed        = "Authentication failed. Please check your bearer token."
	MsgValidateFailed    = "Failed to validate code. Please try again."
	MsgStatusFailed      = "Failed to get session status."
	MsgGenerateFailed    = "Failed to generate code."
	MsgCancelFailed      = "Failed to cancel session."
)

// APIError is a failed REST call. Message is ready for display.
type APIError struct {
	Status  int // 0 when the request never got a response
	Message string
	Err     error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Client talks to the REST side of the desktop service. Pairing does not need it;
// it is the alternate entry point that hands out a socket URL and token.
type Client struct {
	Base  string
	Token string
	HTTP  *http.Client
}

func NewClient(base, token string) *Client {
	return &Client{Base: base, Token: token, HTTP: tool.GetHttpClient()}
}

// ValidateCode exchanges a code for the session's socket URL.
func (c *Client) ValidateCode(ctx context.Context, code string) (*types.ValidateCodeResponse, error) {
	var resp types.ValidateCodeResponse
	status, err := c.call(ctx, http.MethodPost, "/transfer/validate-code", types.ValidateCodeRequest{Code: code}, &resp)
	if err != nil {
		msg := MsgValidateFailed
		switch status {
		case http.StatusBadRequest:
			msg = MsgInvalidCodeFormat
		case http.StatusNotFound:
			msg = MsgCodeExpired
		case http.StatusUnauthorized:
			msg = MsgAuthFailed
		}
		return nil, &APIError{Status: status, Message: msg, Err: err}
	}
	tool.DefaultLogger.Infof("Code validated, session %s expires at %s", resp.SessionId, resp.ExpiresAt)
	return &resp, nil
}

func (c *Client) GetSessionStatus(ctx context.Context, sessionId string) (*types.TransferSessionStatus, error) {
	var resp types.TransferSessionStatus
	status, err := c.call(ctx, http.MethodGet, sessionPath(sessionId, ""), nil, &resp)
	if err != nil {
		return nil, authOr(status, MsgStatusFailed, err)
	}
	return &resp, nil
}

// GenerateCode is the desktop side: it opens a new session and returns its code.
func (c *Client) GenerateCode(ctx context.Context) (*types.GenerateCodeResponse, error) {
	var resp types.GenerateCodeResponse
	status, err := c.call(ctx, http.MethodPost, "/transfer/generate-code", struct{}{}, &resp)
	if err != nil {
		return nil, authOr(status, MsgGenerateFailed, err)
	}
	return &resp, nil
}

func (c *Client) CancelSession(ctx context.Context, sessionId string) error {
	status, err := c.call(ctx, http.MethodPatch, sessionPath(sessionId, "/cancel"), struct{}{}, nil)
	if err != nil {
		return authOr(status, MsgCancelFailed, err)
	}
	tool.DefaultLogger.Infof("Session %s cancelled", sessionId)
	return nil
}

func sessionPath(sessionId, suffix string) string {
	return "/transfer/sessions/" + sessionId + suffix
}

func authOr(status int, fallback string, err error) error {
	if status == http.StatusUnauthorized {
		return &APIError{Status: status, Message: MsgAuthFailed, Err: err}
	}
	return &APIError{Status: status, Message: fallback, Err: err}
}

// call performs one JSON request. It returns the HTTP status (0 without a response)
// and decodes a 2xx body into out when out is not nil.
func (c *Client) call(ctx context.Context, method, path string, body, out any) (int, error) {
	url, err := tool.BuildAPIURL(c.Base, path)
	if err != nil {
		return 0, err
	}

	var reader io.Reader
	if body != nil {
		payload, err := sonic.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := tool.NewHTTPReqWithApplication(http.NewRequestWithContext(ctx, method, url, reader))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %v", err)
	}
	tool.WithBearer(req, c.Token)

	client := c.HTTP
	if client == nil {
		client = tool.GetHttpClient()
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send %s %s: %v", method, path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			tool.DefaultLogger.Errorf("Failed to close response body: %v", err)
		}
	}()

	data, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		tool.DefaultLogger.Warnf("Failed to read response body: %v", readErr)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		tool.DefaultLogger.Debugf("%s %s failed: %s %s", method, path, resp.Status, tool.BytesToString(data))
		return resp.StatusCode, fmt.Errorf("%s %s failed: %s", method, path, resp.Status)
	}
	if out == nil || len(data) == 0 {
		return resp.StatusCode, nil
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to parse response: %v", err)
	}
	return resp.StatusCode, nil
}

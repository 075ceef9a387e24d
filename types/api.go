package types

// ValidateCodeRequest is the body of POST /transfer/validate-code
type ValidateCodeRequest struct {
	Code string `json:"code"`
}

type ValidateCodeResponse struct {
	SessionId string `json:"sessionId"`
	WsUrl     string `json:"wsUrl"`
	ExpiresAt string `json:"expiresAt"`
	Token     string `json:"token,omitempty"`
}

// TransferSessionStatus is returned by GET /transfer/sessions/:id
// Status is one of waiting, connected, transferring, completed, expired, cancelled.
type TransferSessionStatus struct {
	Status    string `json:"status"`
	WsUrl     string `json:"wsUrl,omitempty"`
	ExpiresAt string `json:"expiresAt"`
	Token     string `json:"token,omitempty"`
}

type GenerateCodeResponse struct {
	SessionId string `json:"sessionId"`
	Code      string `json:"code"`
	QrCode    string `json:"qrCode"`
	ExpiresAt string `json:"expiresAt"`
}

// PairRequest is the body of POST /api/self/v1/pair. Either Code or Payload is set.
type PairRequest struct {
	Code    string `json:"code"`
	Token   string `json:"token,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// LifecycleRequest is the body of POST /api/self/v1/lifecycle
type LifecycleRequest struct {
	Visible bool `json:"visible"`
}

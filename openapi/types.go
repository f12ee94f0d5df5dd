package openapi

import (
	"encoding/json"
	"strings"

	"gitlab.com/zlyzol/coinledger/internal/ledger"
)

// GeneralErrorResponse is returned for every failure that carries no detail.
type GeneralErrorResponse struct {
	Error string `json:"error"`
}

// ValidationErrorResponse lists every rejected row of an upload.
type ValidationErrorResponse struct {
	Error   string                     `json:"error"`
	Details []ledger.ValidationFailure `json:"details"`
}

type UploadResponse struct {
	Message  string `json:"message"`
	Accepted int    `json:"accepted"`
}

// BalanceRequest accepts the cutoff either as a string or as a bare epoch number.
type BalanceRequest struct {
	Timestamp json.RawMessage `json:"timestamp"`
}

func (r BalanceRequest) cutoff() string {
	var s string
	if err := json.Unmarshal(r.Timestamp, &s); err == nil {
		return s
	}
	raw := strings.TrimSpace(string(r.Timestamp))
	if raw == "null" {
		return ""
	}
	return raw
}

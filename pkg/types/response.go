package types

import "encoding/json"

// SuccessEnvelope is the {"data": ...} wrapper the API uses for successful responses.
type SuccessEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// ErrorBody captures every error shape the API is known to emit:
// {"message": "..."}, {"error": {"code","message"}} and {"error": "..."}.
type ErrorBody struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

// ResolveMessage returns the first human-readable message present in the body.
func (b ErrorBody) ResolveMessage() (message, code string) {
	if b.Message != "" {
		return b.Message, ""
	}
	if len(b.Error) == 0 {
		return "", ""
	}
	var structured APIError
	if err := json.Unmarshal(b.Error, &structured); err == nil && structured.Message != "" {
		return structured.Message, structured.Code
	}
	var plain string
	if err := json.Unmarshal(b.Error, &plain); err == nil {
		return plain, ""
	}
	return "", ""
}

package apperr

import (
	"encoding/json"
	"net/http"
)

// Response is the JSON body written for a denied or failed request.
type Response struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"status"`
	Hint    string         `json:"hint,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// NewResponse builds the response body for err. Internal and storage errors
// do not leak their cause.
func NewResponse(err error) Response {
	code := CodeOf(err)
	status := HTTPStatus(err)
	msg := err.Error()
	if code == CodeInternal || code == CodeStorage {
		msg = http.StatusText(status)
	}
	return Response{
		Code:    code,
		Message: msg,
		Status:  status,
		Hint:    Hint(err),
		Details: Details(err),
	}
}

// Write renders err as JSON.
func Write(w http.ResponseWriter, err error) {
	resp := NewResponse(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(resp.Status)
	_ = json.NewEncoder(w).Encode(resp)
}

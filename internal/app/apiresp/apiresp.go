// Package apiresp writes the JSON envelope shared by every handler: page
// documents, session state, and report summaries all travel inside it so
// clients decode one shape.
package apiresp

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// ErrorPayload carries a stable machine code alongside the human message.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta echoes the request id so session errors can be matched to server logs.
type Meta struct {
	RequestID string `json:"request_id,omitempty"`
}

// Envelope is the wire shape of every API response. Exactly one of Data and
// Error is populated.
type Envelope struct {
	OK    bool          `json:"ok"`
	Data  any           `json:"data,omitempty"`
	Error *ErrorPayload `json:"error,omitempty"`
	Meta  Meta          `json:"meta"`
}

// WriteOK writes a success envelope holding data.
func WriteOK(w http.ResponseWriter, r *http.Request, status int, data any) {
	write(w, r, status, true, data, "")
}

// WriteError writes a failure envelope. An empty msg falls back to the
// standard status text.
func WriteError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	write(w, r, status, false, nil, msg)
}

func write(w http.ResponseWriter, r *http.Request, status int, ok bool, data any, errMsg string) {
	res := Envelope{
		OK:   ok,
		Meta: Meta{RequestID: middleware.GetReqID(r.Context())},
	}
	if ok {
		res.Data = data
	} else {
		if errMsg == "" {
			errMsg = http.StatusText(status)
		}
		res.Error = &ErrorPayload{Code: codeFromStatus(status), Message: errMsg}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(res)
}

// codeFromStatus maps the statuses the handlers actually emit to their error
// codes; anything unrecognized degrades to a generic code.
func codeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "unprocessable_entity"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		if status >= 200 && status < 300 {
			return ""
		}
		return "error"
	}
}

// Package httputil provides JSON response helpers and middleware shared by
// the plugin inspection API.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/platinummonkey/plugweave/pkg/observability"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error     string            `json:"error"`
	RequestID string            `json:"request_id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// WriteJSON writes data as a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 OK JSON response
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteErrorMessage writes a JSON error body tagged with the request ID, if any
func WriteErrorMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	WriteDetailedError(w, r, status, message, nil)
}

// WriteDetailedError writes a JSON error body with additional context
func WriteDetailedError(w http.ResponseWriter, r *http.Request, status int, message string, details map[string]string) {
	resp := ErrorResponse{Error: message, Details: details}
	if r != nil {
		resp.RequestID = observability.GetRequestID(r.Context())
	}
	_ = WriteJSON(w, status, resp)
}

// WriteError writes err as a JSON error body
func WriteError(w http.ResponseWriter, r *http.Request, status int, err error) {
	WriteErrorMessage(w, r, status, err.Error())
}

// WriteNotFound writes a 404
func WriteNotFound(w http.ResponseWriter, r *http.Request, message string) {
	WriteErrorMessage(w, r, http.StatusNotFound, message)
}

// WriteBadRequest writes a 400
func WriteBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	WriteErrorMessage(w, r, http.StatusBadRequest, message)
}

// WriteInternalError writes a 500 and logs err with the request's logger
func WriteInternalError(w http.ResponseWriter, r *http.Request, err error) {
	if r != nil {
		observability.FromContext(r.Context(), nil).WithError(err).Error("Request failed")
	}
	WriteError(w, r, http.StatusInternalServerError, err)
}

// WriteServiceUnavailable writes a 503
func WriteServiceUnavailable(w http.ResponseWriter, r *http.Request, message string) {
	WriteErrorMessage(w, r, http.StatusServiceUnavailable, message)
}

// Package httputil provides HTTP handler utilities for consistent error
// handling, JSON encoding/decoding, and request parsing.
package httputil

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the nested error object inside every error envelope
type ErrorBody struct {
	Status  int    `json:"status"`
	AppCode int    `json:"appCode,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// ErrorEnvelope is the JSON shape of every error response:
// {"message": "...", "error": {"status": 403, "appCode": 4031}}
type ErrorEnvelope struct {
	Message string    `json:"message"`
	Error   ErrorBody `json:"error"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteErrorMessage writes an error envelope with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorEnvelope{
		Message: message,
		Error:   ErrorBody{Status: status},
	})
}

// WriteAppError writes an error envelope carrying a stable application code
// so API clients can branch without parsing message text
func WriteAppError(w http.ResponseWriter, status, appCode int, message string) {
	WriteJSON(w, status, ErrorEnvelope{
		Message: message,
		Error:   ErrorBody{Status: status, AppCode: appCode},
	})
}

// WriteInternalError writes a 500 envelope. The underlying error detail is
// echoed only when development mode is requested; production responses elide
// it entirely.
func WriteInternalError(w http.ResponseWriter, err error, development bool) {
	envelope := ErrorEnvelope{
		Message: "internal server error",
		Error:   ErrorBody{Status: http.StatusInternalServerError},
	}
	if development && err != nil {
		envelope.Error.Detail = err.Error()
	}
	WriteJSON(w, http.StatusInternalServerError, envelope)
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteUnauthorized writes an unauthorized error (401)
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusUnauthorized, message)
}

// WriteForbidden writes a forbidden error (403)
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusForbidden, message)
}

// WriteNotFound writes a not found error (404)
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusNotFound, message)
}

// WriteConflict writes a conflict error (409)
func WriteConflict(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusConflict, message)
}

// WriteTooManyRequests writes a rate limit error (429)
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusTooManyRequests, message)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes a successful creation response (201 Created)
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a successful response with no content (204)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

package utils

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"climalog/internal/apperr"
)

type errorBody struct {
	Error   string      `json:"error"`
	Code    apperr.Code `json:"code,omitempty"`
	Message string      `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to write JSON", "error", err)
	}
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, errorBody{Error: http.StatusText(status), Message: msg})
}

// WriteAppError maps err through the apperr taxonomy. Unknown errors become a
// 500 without leaking their text.
func WriteAppError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("unhandled error", "error", err)
		msg = "internal error"
	}
	WriteJSON(w, status, errorBody{
		Error:   http.StatusText(status),
		Code:    apperr.CodeOf(err),
		Message: msg,
	})
}

// Package response writes JSON API responses.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type errorResponse struct {
	Error string `json:"error"`
}

// RespondWithError writes {"error": msg}. err is logged, never sent.
func RespondWithError(w http.ResponseWriter, code int, msg string, err error) {
	if code > 499 {
		slog.Error("responding with server error", "status", code, "msg", msg, "error", err)
	} else if err != nil {
		slog.Debug("request rejected", "status", code, "msg", msg, "error", err)
	}
	RespondWithJSON(w, code, errorResponse{Error: msg})
}

func RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("error marshalling JSON", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/KeiJoi/ffxivbingo4all/internal/bingo"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeDomainError maps the bingo error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, bingo.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, bingo.ErrNotFound):
		writeError(w, http.StatusNotFound, "room not found")
	case errors.Is(err, bingo.ErrForbidden):
		writeError(w, http.StatusForbidden, "room key does not match")
	case errors.Is(err, bingo.ErrInvalidMembership):
		writeError(w, http.StatusForbidden, "cheat_detected: seed not issued in this room")
	case errors.Is(err, bingo.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		logger.Error("unhandled error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

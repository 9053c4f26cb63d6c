package server

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/pressline/go-content-server/token"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps sentinel errors from the token package onto HTTP
// statuses. Anything unrecognised is a 500 with a generic message so internal
// detail never leaks to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, token.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, token.ErrNotFound), errors.Is(err, token.ErrOwnerNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, token.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

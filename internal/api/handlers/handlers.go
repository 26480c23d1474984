// Package handlers implements the HTTP endpoints of the kids-bank API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/kids-bank/internal/api/middleware"
	"github.com/dvloznov/kids-bank/internal/cipher"
	"github.com/dvloznov/kids-bank/internal/cloudsync"
	"github.com/dvloznov/kids-bank/internal/state"
)

// maxBodyBytes bounds request bodies, imports included.
const maxBodyBytes = 10 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// writeStateError maps domain errors to status codes and logs the rest.
func writeStateError(w http.ResponseWriter, log zerolog.Logger, err error, msg string) {
	switch {
	case errors.Is(err, state.ErrAccountNotFound),
		errors.Is(err, state.ErrGoalNotFound),
		errors.Is(err, state.ErrTransactionNotFound):
		middleware.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, state.ErrInvalidAmount),
		errors.Is(err, state.ErrNameRequired),
		errors.Is(err, cloudsync.ErrInvalidPairing),
		errors.Is(err, cipher.ErrInvalidKey):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Msg(msg)
		middleware.WriteError(w, http.StatusInternalServerError, msg)
	}
}

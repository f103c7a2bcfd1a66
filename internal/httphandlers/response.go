package httphandlers

import (
	"encoding/json"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"net/http"
	"warden/internal/types"
	"warden/logger"
)

const (
	authorizationHeader = "X-Access-Token"
)

var separator = []byte("\n")

type (
	response struct {
		Error   bool        `json:"error"`
		Message string      `json:"message"`
		Data    interface{} `json:"data"`
	}
)

func badRequest(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, err)
}

func serverError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, err)
}

func unauthorized(w http.ResponseWriter, err error) {
	writeError(w, http.StatusUnauthorized, err)
}

// fail maps the error taxonomy onto status codes.
func fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrValidation):
		badRequest(w, err)
	case errors.Is(err, types.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, types.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err)
	default:
		logger.Error("request failed", zap.Error(err))
		serverError(w, err)
	}
}

func ok(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusOK, response{
		Error:   false,
		Message: message,
		Data:    data,
	})
}

func created(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusCreated, response{
		Error:   false,
		Message: message,
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, errorCode int, err error) {
	errmsg := ""
	if err != nil {
		errmsg = err.Error()
	}
	writeJSON(w, errorCode, response{
		Error:   true,
		Message: errmsg,
	})
}

func writeJSON(w http.ResponseWriter, code int, r response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	data, _ := json.Marshal(r)
	_, _ = w.Write(data)
}

// writeLine writes one newline-delimited JSON value and flushes it.
func writeLine(w http.ResponseWriter, data interface{}) error {
	bytes, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := w.Write(bytes); err != nil {
		return err
	}
	_, _ = w.Write(separator)
	flusher, ok := w.(http.Flusher)
	if ok {
		flusher.Flush()
	}
	return nil
}

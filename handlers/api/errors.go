// Package api holds helpers shared by the JSON API handlers.
package api

import (
	"errors"
	"net/http"

	"birthday-templates/core"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// StatusFor maps a core error kind to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrConstraintViolation):
		return http.StatusConflict
	case errors.Is(err, core.ErrLoadFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error logs err and answers with its status code and a JSON error body.
// Server side failures get msg; client errors get the error text.
func Error(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := StatusFor(err)
	log := logrus.WithFields(logrus.Fields{
		"error":  err,
		"path":   r.URL.Path,
		"status": status,
	})
	text := msg
	if status >= http.StatusInternalServerError {
		log.Error(msg)
	} else {
		log.Warn(msg)
		text = err.Error()
	}
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": text})
}

package middleware

import (
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/render"
)

// DefaultMaxUploadBytes is the request body limit when none is configured.
const DefaultMaxUploadBytes int64 = 10 << 20

// LimitBody rejects requests whose declared length exceeds max and caps
// the body of the rest.
func LimitBody(max int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > max {
				render.Status(r, http.StatusRequestEntityTooLarge)
				render.JSON(w, r, map[string]string{"error": fmt.Sprintf("Upload exceeds %d bytes", max)})
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, max)
			next.ServeHTTP(w, r)
		})
	}
}

// RequireMultipart rejects requests that are not multipart form uploads.
func RequireMultipart(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
			render.Status(r, http.StatusUnsupportedMediaType)
			render.JSON(w, r, map[string]string{"error": "Please upload an image file."})
			return
		}
		next.ServeHTTP(w, r)
	})
}

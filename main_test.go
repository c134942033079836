package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"birthday-templates/core"
	"birthday-templates/persistence"
	"birthday-templates/render"
	"birthday-templates/session"
	"birthday-templates/stores/memory"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	fonts, err := render.NewFonts(false)
	if err != nil {
		t.Fatalf("NewFonts() failed: %v", err)
	}
	t.Cleanup(func() { fonts.Close() })

	store := memory.NewStore()
	adapter := persistence.NewAdapter(store, nil)
	renderer := render.NewRenderer(fonts)
	manager := session.NewManager(adapter, renderer)
	t.Cleanup(manager.Shutdown)
	return &app{store: store, adapter: adapter, renderer: renderer, manager: manager}
}

func uploadRequest(t *testing.T, data []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, _ := mw.CreateFormFile("file", "card.png")
	part.Write(data)
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/templates", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestRouterUploadEditAndDownload(t *testing.T) {
	router := setupRouter(newTestApp(t), 1<<20)

	var img bytes.Buffer
	png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 200, 100)))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, uploadRequest(t, img.Bytes()))
	if rr.Code != http.StatusCreated {
		t.Fatalf("Upload status code mismatch: got %d, want %d (%s)", rr.Code, http.StatusCreated, rr.Body.String())
	}
	var tpl core.Template
	json.Unmarshal(rr.Body.Bytes(), &tpl)

	rr = httptest.NewRecorder()
	body := `{"templateId":"` + tpl.ID + `"}`
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/editor/sessions?wait=true", strings.NewReader(body)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("Open status code mismatch: got %d, want %d (%s)", rr.Code, http.StatusCreated, rr.Body.String())
	}
	var v session.View
	json.Unmarshal(rr.Body.Bytes(), &v)
	if v.Status != session.StatusReady {
		t.Fatalf("Session not ready: %+v", v)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/editor/sessions/"+v.ID+"/quote", strings.NewReader(`{"quote":"Happy birthday"}`)))
	if rr.Code != http.StatusOK {
		t.Errorf("Quote status code mismatch: got %d, want %d", rr.Code, http.StatusOK)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/editor/sessions/"+v.ID+"/save", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("Save status code mismatch: got %d, want %d (%s)", rr.Code, http.StatusOK, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/templates/"+tpl.ID+"/rendered", nil))
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "image/png" {
		t.Errorf("Rendered: status %d, content type %q", rr.Code, rr.Header().Get("Content-Type"))
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/editor/sessions/"+v.ID+"/canvas.png", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("Download status code mismatch: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestRouterUploadLimits(t *testing.T) {
	router := setupRouter(newTestApp(t), 64)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, uploadRequest(t, bytes.Repeat([]byte{0}, 256)))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Status code mismatch: got %d, want %d", rr.Code, http.StatusRequestEntityTooLarge)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/templates", strings.NewReader("{}")))
	if rr.Code != http.StatusUnsupportedMediaType {
		t.Errorf("Status code mismatch: got %d, want %d", rr.Code, http.StatusUnsupportedMediaType)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("MAX_UPLOAD_BYTES", "2048")
	t.Setenv("SESSION_IDLE_TIMEOUT", "nonsense")
	if got := envInt64("MAX_UPLOAD_BYTES", 1); got != 2048 {
		t.Errorf("envInt64() = %d, want 2048", got)
	}
	if got := envDuration("SESSION_IDLE_TIMEOUT", session.DefaultIdleTimeout); got != session.DefaultIdleTimeout {
		t.Errorf("envDuration() = %v, want default", got)
	}
}

package sessions

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"birthday-templates/editor"
	"birthday-templates/persistence"
	canvas "birthday-templates/render"
	"birthday-templates/session"
	"birthday-templates/stores/memory"

	"github.com/go-chi/chi/v5"
)

type testEnv struct {
	manager    *session.Manager
	fonts      *canvas.Fonts
	templateID string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	fonts, err := canvas.NewFonts(false)
	if err != nil {
		t.Fatalf("NewFonts() failed: %v", err)
	}
	t.Cleanup(func() { fonts.Close() })

	adapter := persistence.NewAdapter(memory.NewStore(), nil)
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 400, 200))); err != nil {
		t.Fatal(err)
	}
	tpl, err := adapter.Upload(context.Background(), "card.png", buf.Bytes())
	if err != nil {
		t.Fatalf("Upload() failed: %v", err)
	}

	m := session.NewManager(adapter, canvas.NewRenderer(fonts))
	t.Cleanup(m.Shutdown)
	return &testEnv{manager: m, fonts: fonts, templateID: tpl.ID}
}

func withParams(req *http.Request, params ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(params); i += 2 {
		rctx.URLParams.Add(params[i], params[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func (e *testEnv) open(t *testing.T) session.View {
	t.Helper()
	body := `{"templateId":"` + e.templateID + `","viewportWidth":1024}`
	req := httptest.NewRequest(http.MethodPost, "/api/editor/sessions?wait=true", strings.NewReader(body))
	rr := httptest.NewRecorder()

	HandleOpen(e.manager)(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("Status code mismatch: got %d, want %d (%s)", rr.Code, http.StatusCreated, rr.Body.String())
	}
	var v session.View
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to decode view: %v", err)
	}
	return v
}

func TestHandleOpen(t *testing.T) {
	env := newTestEnv(t)
	v := env.open(t)
	if v.Status != session.StatusReady || v.Canvas == nil || v.Canvas.Width != 800 || v.Canvas.Height != 400 {
		t.Errorf("Unexpected view: %+v", v)
	}

	tests := []struct {
		name           string
		body           string
		expectedStatus int
	}{
		{"narrow viewport", `{"templateId":"x","viewportWidth":30}`, http.StatusBadRequest},
		{"invalid body", `{`, http.StatusBadRequest},
		{"no template", `{}`, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			HandleOpen(env.manager)(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body)))
			if rr.Code != tt.expectedStatus {
				t.Errorf("Status code mismatch: got %d, want %d", rr.Code, tt.expectedStatus)
			}
		})
	}
}

func TestHandleGetAndClose(t *testing.T) {
	env := newTestEnv(t)
	v := env.open(t)

	rr := httptest.NewRecorder()
	HandleGet(env.manager)(rr, withParams(httptest.NewRequest(http.MethodGet, "/", nil), "sid", v.ID))
	if rr.Code != http.StatusOK {
		t.Errorf("Status code mismatch: got %d, want %d", rr.Code, http.StatusOK)
	}

	rr = httptest.NewRecorder()
	HandleClose(env.manager)(rr, withParams(httptest.NewRequest(http.MethodDelete, "/", nil), "sid", v.ID))
	if rr.Code != http.StatusNoContent {
		t.Errorf("Status code mismatch: got %d, want %d", rr.Code, http.StatusNoContent)
	}

	rr = httptest.NewRecorder()
	HandleGet(env.manager)(rr, withParams(httptest.NewRequest(http.MethodGet, "/", nil), "sid", v.ID))
	if rr.Code != http.StatusNotFound {
		t.Errorf("Status code mismatch: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestHandlePointer(t *testing.T) {
	env := newTestEnv(t)
	v := env.open(t)

	quote, _ := v.State.Element("quote")
	box := editor.ElementBox(v.State, quote, env.fonts, 0)
	ev, _ := json.Marshal(editor.PointerEvent{
		Type:    editor.EventDown,
		Pointer: editor.PointerTouch,
		X:       box.X + box.W/2,
		Y:       box.Y + box.H/2,
	})

	rr := httptest.NewRecorder()
	HandlePointer(env.manager)(rr, withParams(httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(ev)), "sid", v.ID))
	if rr.Code != http.StatusOK {
		t.Fatalf("Status code mismatch: got %d, want %d (%s)", rr.Code, http.StatusOK, rr.Body.String())
	}
	var got PointerResponse
	json.Unmarshal(rr.Body.Bytes(), &got)
	if !got.Outcome.PreventDefault || !got.Outcome.Changed {
		t.Errorf("Unexpected outcome: %+v", got.Outcome)
	}
	if got.View.Mode != editor.ModeDragging || got.View.State.Selected != "quote" {
		t.Errorf("Expected quote to be dragged, got mode %s selected %q", got.View.Mode, got.View.State.Selected)
	}
}

func TestHandlePeople(t *testing.T) {
	env := newTestEnv(t)
	v := env.open(t)
	first := v.State.People[0].ID

	rr := httptest.NewRecorder()
	HandleRemovePerson(env.manager)(rr, withParams(httptest.NewRequest(http.MethodDelete, "/", nil), "sid", v.ID, "pid", first))
	if rr.Code != http.StatusConflict {
		t.Fatalf("Status code mismatch: got %d, want %d", rr.Code, http.StatusConflict)
	}
	var note editor.Notification
	json.Unmarshal(rr.Body.Bytes(), &note)
	if note != editor.NotifyCannotRemove {
		t.Errorf("Notification mismatch: %+v", note)
	}

	rr = httptest.NewRecorder()
	HandleAddPerson(env.manager)(rr, withParams(httptest.NewRequest(http.MethodPost, "/", nil), "sid", v.ID))
	if rr.Code != http.StatusCreated {
		t.Fatalf("Status code mismatch: got %d, want %d", rr.Code, http.StatusCreated)
	}
	var added editor.PersonEntry
	json.Unmarshal(rr.Body.Bytes(), &added)

	rr = httptest.NewRecorder()
	body := strings.NewReader(`{"name":"Alice","birthdate":"1990-05-17"}`)
	HandleUpdatePerson(env.manager)(rr, withParams(httptest.NewRequest(http.MethodPatch, "/", body), "sid", v.ID, "pid", added.ID))
	if rr.Code != http.StatusOK {
		t.Fatalf("Status code mismatch: got %d, want %d (%s)", rr.Code, http.StatusOK, rr.Body.String())
	}
	var updated session.View
	json.Unmarshal(rr.Body.Bytes(), &updated)
	if p := updated.State.People[1]; p.Name != "Alice" || p.Birthdate == nil || p.Birthdate.String() != "1990-05-17" {
		t.Errorf("Unexpected person: %+v", p)
	}

	rr = httptest.NewRecorder()
	HandleRemovePerson(env.manager)(rr, withParams(httptest.NewRequest(http.MethodDelete, "/", nil), "sid", v.ID, "pid", first))
	if rr.Code != http.StatusNoContent {
		t.Errorf("Status code mismatch: got %d, want %d", rr.Code, http.StatusNoContent)
	}

	rr = httptest.NewRecorder()
	HandleUpdatePerson(env.manager)(rr, withParams(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{}`)), "sid", v.ID, "pid", "person-missing"))
	if rr.Code != http.StatusNotFound {
		t.Errorf("Status code mismatch: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestHandleQuoteAndStyle(t *testing.T) {
	env := newTestEnv(t)
	v := env.open(t)

	rr := httptest.NewRecorder()
	HandleSetQuote(env.manager)(rr, withParams(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"quote":"Live long"}`)), "sid", v.ID))
	var got session.View
	json.Unmarshal(rr.Body.Bytes(), &got)
	if rr.Code != http.StatusOK || got.State.Quote != "Live long" {
		t.Errorf("SetQuote: status %d, quote %q", rr.Code, got.State.Quote)
	}

	tests := []struct {
		name           string
		body           string
		expectedStatus int
	}{
		{"valid", `{"color":"#ff0000","fontSize":30}`, http.StatusOK},
		{"font too large", `{"fontSize":99}`, http.StatusBadRequest},
		{"bad color", `{"color":"red"}`, http.StatusBadRequest},
		{"invalid body", `[`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			HandleApplyStyle(env.manager)(rr, withParams(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(tt.body)), "sid", v.ID))
			if rr.Code != tt.expectedStatus {
				t.Errorf("Status code mismatch: got %d, want %d (%s)", rr.Code, tt.expectedStatus, rr.Body.String())
			}
		})
	}
}

func TestHandleDownloadAndSave(t *testing.T) {
	env := newTestEnv(t)
	v := env.open(t)

	rr := httptest.NewRecorder()
	HandleDownload(env.manager)(rr, withParams(httptest.NewRequest(http.MethodGet, "/", nil), "sid", v.ID))
	if rr.Code != http.StatusOK {
		t.Fatalf("Status code mismatch: got %d, want %d", rr.Code, http.StatusOK)
	}
	if got := rr.Header().Get("Content-Disposition"); got != `attachment; filename="birthday-template.png"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	img, err := png.Decode(rr.Body)
	if err != nil {
		t.Fatalf("Download is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 800 || b.Dy() != 400 {
		t.Errorf("Download bounds = %v, want 800x400", b)
	}

	rr = httptest.NewRecorder()
	HandleSave(env.manager)(rr, withParams(httptest.NewRequest(http.MethodPost, "/", nil), "sid", v.ID))
	var note editor.Notification
	json.Unmarshal(rr.Body.Bytes(), &note)
	if rr.Code != http.StatusOK || note != editor.NotifySaved {
		t.Errorf("Save: status %d, notification %+v", rr.Code, note)
	}
}

func TestHandleDownload_NoTemplate(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.manager.Open(context.Background(), "", 0)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	HandleDownload(env.manager)(rr, withParams(httptest.NewRequest(http.MethodGet, "/", nil), "sid", s.ID()))
	if rr.Code != http.StatusNotFound {
		t.Errorf("Status code mismatch: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestHandleFonts(t *testing.T) {
	env := newTestEnv(t)
	rr := httptest.NewRecorder()
	HandleFonts(env.fonts)(rr, httptest.NewRequest(http.MethodGet, "/api/editor/fonts", nil))

	var got FontsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Families) != len(editor.FontOptions) || len(got.Resolved) != len(editor.FontOptions) {
		t.Errorf("Unexpected fonts response: %+v", got)
	}
	if got.FontSize != [2]float64{12, 72} || got.LineSpacing != [2]float64{0, 40} {
		t.Errorf("Unexpected ranges: %v %v", got.FontSize, got.LineSpacing)
	}
}

package sessions

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"birthday-templates/core"
	"birthday-templates/editor"
	"birthday-templates/handlers/api"
	canvas "birthday-templates/render"
	"birthday-templates/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// ExportFilename is the download name of an exported canvas.
const ExportFilename = "birthday-template.png"

type (
	OpenRequest struct {
		TemplateID    string  `json:"templateId"`
		ViewportWidth float64 `json:"viewportWidth"`
	}

	PointerResponse struct {
		Outcome editor.Outcome `json:"outcome"`
		View    session.View   `json:"view"`
	}

	QuoteRequest struct {
		Quote string `json:"quote"`
	}

	// FontsResponse describes the style panel: the offered families, the
	// face each one resolves to on this server, and the value ranges.
	FontsResponse struct {
		Families     []string          `json:"families"`
		Resolved     map[string]string `json:"resolved"`
		PresetColors []string          `json:"presetColors"`
		FontSize     [2]float64        `json:"fontSizeRange"`
		LineSpacing  [2]float64        `json:"lineSpacingRange"`
	}
)

// Manager is the part of session.Manager the handlers use.
type Manager interface {
	Open(ctx context.Context, templateID string, viewportWidth float64) (*session.Session, error)
	Get(id string) (*session.Session, error)
	Close(id string) error
}

func lookup(m Manager, w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := m.Get(chi.URLParam(r, "sid"))
	if err != nil {
		api.Error(w, r, err, "")
		return nil, false
	}
	return s, true
}

// currentView answers with the session view. With ?wait=true it blocks
// until the template image has finished loading.
func currentView(w http.ResponseWriter, r *http.Request, s *session.Session, status int) {
	var (
		v   session.View
		err error
	)
	if r.URL.Query().Get("wait") == "true" {
		v, err = s.Wait(r.Context())
	} else {
		v, err = s.View(r.Context())
	}
	if err != nil {
		api.Error(w, r, err, "Failed to read session")
		return
	}
	render.Status(r, status)
	render.JSON(w, r, v)
}

// HandleOpen starts an editor session for a template.
func HandleOpen(m Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OpenRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}
		s, err := m.Open(r.Context(), req.TemplateID, req.ViewportWidth)
		if err != nil {
			api.Error(w, r, err, "Failed to open session")
			return
		}
		currentView(w, r, s, http.StatusCreated)
	}
}

func HandleGet(m Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s, ok := lookup(m, w, r); ok {
			currentView(w, r, s, http.StatusOK)
		}
	}
}

func HandleClose(m Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := m.Close(chi.URLParam(r, "sid")); err != nil {
			api.Error(w, r, err, "")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandlePointer feeds a pointer event to the session's interaction controller.
func HandlePointer(m Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(m, w, r)
		if !ok {
			return
		}
		var ev editor.PointerEvent
		if err := render.DecodeJSON(r.Body, &ev); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid pointer event"})
			return
		}
		out, err := s.Pointer(r.Context(), ev)
		if err != nil {
			api.Error(w, r, err, "Failed to handle pointer event")
			return
		}
		v, err := s.View(r.Context())
		if err != nil {
			api.Error(w, r, err, "Failed to read session")
			return
		}
		render.JSON(w, r, PointerResponse{Outcome: out, View: v})
	}
}

func HandleAddPerson(m Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(m, w, r)
		if !ok {
			return
		}
		p, err := s.AddPerson(r.Context())
		if err != nil {
			api.Error(w, r, err, "Failed to add person")
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, p)
	}
}

func HandleUpdatePerson(m Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(m, w, r)
		if !ok {
			return
		}
		var u editor.PersonUpdate
		if err := render.DecodeJSON(r.Body, &u); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid person update"})
			return
		}
		if err := s.UpdatePerson(r.Context(), chi.URLParam(r, "pid"), u); err != nil {
			api.Error(w, r, err, "Failed to update person")
			return
		}
		currentView(w, r, s, http.StatusOK)
	}
}

// HandleRemovePerson removes a person entry. Removing the last entry is
// refused with the "Cannot Remove" notification as the body.
func HandleRemovePerson(m Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(m, w, r)
		if !ok {
			return
		}
		err := s.RemovePerson(r.Context(), chi.URLParam(r, "pid"))
		if errors.Is(err, core.ErrConstraintViolation) {
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, editor.NotifyCannotRemove)
			return
		}
		if err != nil {
			api.Error(w, r, err, "Failed to remove person")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleSetQuote(m Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(m, w, r)
		if !ok {
			return
		}
		var req QuoteRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}
		if err := s.SetQuote(r.Context(), req.Quote); err != nil {
			api.Error(w, r, err, "Failed to set quote")
			return
		}
		currentView(w, r, s, http.StatusOK)
	}
}

func HandleApplyStyle(m Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(m, w, r)
		if !ok {
			return
		}
		var c editor.StyleChange
		if err := render.DecodeJSON(r.Body, &c); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid style change"})
			return
		}
		if err := s.ApplyStyle(r.Context(), c); err != nil {
			api.Error(w, r, err, "Failed to apply style")
			return
		}
		currentView(w, r, s, http.StatusOK)
	}
}

// HandleDownload streams the canvas as a PNG attachment.
func HandleDownload(m Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(m, w, r)
		if !ok {
			return
		}
		var buf bytes.Buffer
		if err := s.Export(r.Context(), &buf); err != nil {
			api.Error(w, r, err, "Failed to export canvas")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Disposition", `attachment; filename="`+ExportFilename+`"`)
		w.Write(buf.Bytes())
	}
}

// HandleSave persists the session's template. The body is the
// notification the editor shows.
func HandleSave(m Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(m, w, r)
		if !ok {
			return
		}
		err := s.Save(r.Context())
		switch {
		case err == nil:
			render.JSON(w, r, editor.NotifySaved)
		case errors.Is(err, core.ErrSaveFailure):
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, editor.NotifySaveFailed)
		default:
			api.Error(w, r, err, "Failed to save template")
		}
	}
}

// HandleFonts lists the font families and style ranges.
func HandleFonts(fonts *canvas.Fonts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resolved := make(map[string]string, len(editor.FontOptions))
		for _, family := range editor.FontOptions {
			resolved[family] = fonts.Resolved(family)
		}
		render.JSON(w, r, FontsResponse{
			Families:     editor.FontOptions,
			Resolved:     resolved,
			PresetColors: editor.PresetColors,
			FontSize:     [2]float64{editor.MinFontSize, editor.MaxFontSize},
			LineSpacing:  [2]float64{editor.MinLineSpacing, editor.MaxLineSpacing},
		})
	}
}

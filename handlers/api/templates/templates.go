package templates

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"birthday-templates/core"
	"birthday-templates/editor"
	"birthday-templates/handlers/api"
	"birthday-templates/persistence"
	canvas "birthday-templates/render"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// maxMemory is how much of a multipart upload is buffered in memory.
const maxMemory = 8 << 20

type (
	// TemplateResponse is a template with its editor content decoded.
	// Templates that were never saved carry the default elements.
	TemplateResponse struct {
		ID               string               `json:"id"`
		OriginalFilename string               `json:"originalFilename"`
		ContentType      string               `json:"contentType"`
		Elements         []editor.TextElement `json:"elements"`
		People           []editor.PersonEntry `json:"personEntries"`
		Quote            string               `json:"quote"`
		CanvasWidth      int                  `json:"canvasWidth,omitempty"`
		Saved            bool                 `json:"saved"`
		CreatedAt        time.Time            `json:"createdAt"`
		UpdatedAt        time.Time            `json:"updatedAt"`
	}

	// SaveRequest is the body of a template save. Rendered is an optional
	// PNG data URL; when it is missing the server renders the composite on
	// the canvas the bundle was laid out on.
	SaveRequest struct {
		editor.Bundle
		Rendered string `json:"rendered,omitempty"`
	}

	// GenerateRequest overrides the saved people and quote for one render.
	GenerateRequest struct {
		People []editor.PersonEntry `json:"personEntries"`
		Quote  *string              `json:"quote"`
	}
)

// savedBundle returns the template's stored bundle, or the default content
// when it was never saved.
func savedBundle(t *core.Template) (editor.Bundle, bool) {
	if len(t.Bundle) > 0 {
		b, err := editor.DecodeBundle(t.Bundle)
		if err == nil {
			return b, true
		}
		logrus.WithField("template_id", t.ID).WithError(err).Warn("Ignoring unreadable saved bundle")
	}
	return editor.NewState().Bundle(), false
}

func newTemplateResponse(t *core.Template) TemplateResponse {
	b, saved := savedBundle(t)
	state := b.State()
	return TemplateResponse{
		ID:               t.ID,
		OriginalFilename: t.OriginalFilename,
		ContentType:      t.ContentType,
		Elements:         state.Elements,
		People:           state.People,
		Quote:            state.Quote,
		CanvasWidth:      b.CanvasWidth,
		Saved:            saved,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

// HandleUpload stores the multipart "file" field as a new template.
func HandleUpload(adapter *persistence.Adapter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				render.Status(r, http.StatusRequestEntityTooLarge)
				render.JSON(w, r, map[string]string{"error": fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit)})
				return
			}
			api.Error(w, r, fmt.Errorf("parse upload: %w", core.ErrInvalidInput), "Invalid upload")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "File field is required"})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			api.Error(w, r, err, "Failed to read upload")
			return
		}

		template, err := adapter.Upload(r.Context(), header.Filename, data)
		if errors.Is(err, core.ErrInvalidInput) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, editor.NotifyUploadRejected)
			return
		}
		if err != nil {
			api.Error(w, r, err, "Failed to upload template")
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, template)
	}
}

// HandleList returns every template without binary payloads.
func HandleList(store core.TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templates, err := store.List(r.Context())
		if err != nil {
			api.Error(w, r, err, "Failed to list templates")
			return
		}
		if templates == nil {
			templates = []*core.Template{}
		}
		render.JSON(w, r, templates)
	}
}

// HandleGet returns a template with its decoded editor content.
func HandleGet(store core.TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		template, err := store.FindID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			api.Error(w, r, err, "Failed to get template")
			return
		}
		render.JSON(w, r, newTemplateResponse(template))
	}
}

// HandleImage serves the uploaded source image.
func HandleImage(store core.TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		template, err := store.FindID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			api.Error(w, r, err, "Failed to get template image")
			return
		}
		w.Header().Set("Content-Type", template.ContentType)
		w.Write(template.Image)
	}
}

// HandleRendered serves the composite stored by the last save.
func HandleRendered(store core.TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		template, err := store.FindID(r.Context(), id)
		if err != nil {
			api.Error(w, r, err, "Failed to get rendered template")
			return
		}
		if len(template.Rendered) == 0 {
			api.Error(w, r, fmt.Errorf("template %s has not been saved: %w", id, core.ErrNotFound), "")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(template.Rendered)
	}
}

// HandleSave stores the editor content and rendered composite of a template.
func HandleSave(store core.TemplateStore, adapter *persistence.Adapter, renderer *canvas.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			api.Error(w, r, err, "Failed to read request body")
			return
		}
		defer r.Body.Close()

		var req SaveRequest
		if err := json.Unmarshal(body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}
		bundle, err := editor.DecodeBundle(body)
		if err != nil {
			api.Error(w, r, err, "")
			return
		}

		var rendered []byte
		if req.Rendered != "" {
			if _, rendered, err = persistence.DecodeDataURL(req.Rendered); err != nil {
				api.Error(w, r, err, "")
				return
			}
		} else {
			template, err := store.FindID(r.Context(), id)
			if err != nil {
				api.Error(w, r, err, "Failed to save template")
				return
			}
			if rendered, err = renderCanvas(renderer, template.Image, bundle); err != nil {
				api.Error(w, r, fmt.Errorf("%w: %w", core.ErrSaveFailure, err), "Failed to render template")
				return
			}
		}

		if err := adapter.Save(r.Context(), id, bundle, rendered); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				api.Error(w, r, err, "")
				return
			}
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, editor.NotifySaveFailed)
			return
		}

		template, err := store.FindID(r.Context(), id)
		if err != nil {
			api.Error(w, r, err, "Failed to get template")
			return
		}
		render.JSON(w, r, newTemplateResponse(template))
	}
}

// HandleDelete removes a template.
func HandleDelete(store core.TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			api.Error(w, r, err, "Failed to delete template")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleGenerate renders a template at its natural size with the saved
// elements scaled up from the editor canvas, substituting the people and
// quote from the request. Values come from a JSON body or from the name,
// birthdate and quote query parameters.
func HandleGenerate(store core.TemplateStore, renderer *canvas.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		template, err := store.FindID(r.Context(), id)
		if err != nil {
			api.Error(w, r, err, "Failed to get template")
			return
		}

		bundle, _ := savedBundle(template)
		s, err := applyGenerate(r, bundle.State())
		if err != nil {
			api.Error(w, r, err, "")
			return
		}

		png, err := renderNatural(renderer, template.Image, s, bundle.CanvasWidth)
		if err != nil {
			api.Error(w, r, fmt.Errorf("%w: %w", core.ErrLoadFailure, err), "Failed to generate image")
			return
		}
		logrus.WithFields(logrus.Fields{
			"template_id": id,
			"png_length":  len(png),
		}).Info("Generated template image")
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	}
}

func applyGenerate(r *http.Request, s editor.State) (editor.State, error) {
	var req GenerateRequest
	if render.GetRequestContentType(r) == render.ContentTypeJSON && r.ContentLength != 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			return s, fmt.Errorf("decode generate request: %w", core.ErrInvalidInput)
		}
	} else {
		q := r.URL.Query()
		name, birthdate := q.Get("name"), q.Get("birthdate")
		if name != "" || birthdate != "" {
			p := editor.PersonEntry{ID: "person-" + ulid.Make().String(), Name: name}
			if birthdate != "" {
				d, err := editor.ParseDate(birthdate)
				if err != nil {
					return s, err
				}
				p.Birthdate = &d
			}
			req.People = []editor.PersonEntry{p}
		}
		if q.Has("quote") {
			quote := q.Get("quote")
			req.Quote = &quote
		}
	}

	if len(req.People) > 0 {
		s.People = req.People
	}
	if req.Quote != nil {
		s = editor.SetQuote(s, *req.Quote)
	}
	return s, nil
}

// layout returns the decoded template image and the canvas size the
// bundle coordinates refer to. A zero canvasWidth means the default canvas.
func layout(data []byte, canvasWidth int) (img image.Image, size canvas.Size, err error) {
	if img, err = canvas.Decode(data); err != nil {
		return nil, canvas.Size{}, err
	}
	b := img.Bounds()
	if canvasWidth > 0 {
		size, err = canvas.FitWidth(b.Dx(), b.Dy(), canvasWidth)
	} else {
		size, err = canvas.CanvasSize(b.Dx(), b.Dy(), 0)
	}
	return img, size, err
}

// renderCanvas draws the bundle over the template image at the canvas size
// it was edited on, as the editor itself exports it.
func renderCanvas(renderer *canvas.Renderer, data []byte, bundle editor.Bundle) ([]byte, error) {
	bg, size, err := layout(data, bundle.CanvasWidth)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := renderer.RenderPNG(&buf, bg, bundle.State(), size); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderNatural draws s over the template image at the image's own size,
// scaling the canvas coordinates up to match.
func renderNatural(renderer *canvas.Renderer, data []byte, s editor.State, canvasWidth int) ([]byte, error) {
	bg, size, err := layout(data, canvasWidth)
	if err != nil {
		return nil, err
	}
	b := bg.Bounds()
	natural := canvas.Size{Width: b.Dx(), Height: b.Dy(), Scale: 1}

	var buf bytes.Buffer
	if err := renderer.RenderPNG(&buf, bg, s.Scaled(float64(b.Dx())/float64(size.Width)), natural); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Package session runs editor sessions. Each session owns its editor state
// on a single goroutine; API calls are posted to it as closures and run
// one at a time, so the state needs no locking.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"birthday-templates/core"
	"birthday-templates/editor"
	"birthday-templates/persistence"
	"birthday-templates/render"

	"github.com/sirupsen/logrus"
)

// ErrClosed is returned by calls on a closed session.
var ErrClosed = errors.New("session closed")

// Status is the image loading state of a session.
type Status string

const (
	StatusEmpty   Status = "empty"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// Decoder turns template image bytes into pixels.
type Decoder func(data []byte) (image.Image, error)

// View is a snapshot of a session for clients.
type View struct {
	ID           string               `json:"id"`
	TemplateID   string               `json:"templateId,omitempty"`
	Status       Status               `json:"status"`
	Empty        *editor.EmptyState   `json:"empty,omitempty"`
	Canvas       *render.Size         `json:"canvas,omitempty"`
	State        editor.State         `json:"state"`
	Mode         editor.Mode          `json:"mode"`
	Selection    *editor.Box          `json:"selection,omitempty"`
	Notification *editor.Notification `json:"notification,omitempty"`
	Version      uint64               `json:"version"`
}

// Event is delivered to listeners after every change.
type Event struct {
	View         *View
	Notification *editor.Notification
}

// Listener receives session events on the session goroutine. It must not
// call back into the session synchronously.
type Listener func(Event)

type loadResult struct {
	img         image.Image
	err         error
	fetchFailed bool
}

type Session struct {
	id       string
	viewport float64
	adapter  *persistence.Adapter
	renderer *render.Renderer
	decode   Decoder

	inbox     chan func()
	done      chan struct{}
	closeOnce sync.Once
	lastUsed  atomic.Int64

	// Owned by the session goroutine.
	templateID   string
	state        editor.State
	status       Status
	bg           image.Image
	size         render.Size
	canvas       image.Image
	generation   uint64
	version      uint64
	notification *editor.Notification
	listeners    map[int]Listener
	nextListener int
	waiters      []chan View
}

func newSession(id string, viewport float64, adapter *persistence.Adapter, renderer *render.Renderer, decode Decoder) *Session {
	s := &Session{
		id:        id,
		viewport:  viewport,
		adapter:   adapter,
		renderer:  renderer,
		decode:    decode,
		inbox:     make(chan func(), 16),
		done:      make(chan struct{}),
		state:     editor.NewState(),
		status:    StatusEmpty,
		listeners: make(map[int]Listener),
	}
	s.touch()
	go s.run()
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) run() {
	for {
		select {
		case fn := <-s.inbox:
			fn()
		case <-s.done:
			return
		}
	}
}

// Close stops the session goroutine. Pending and later calls fail with ErrClosed.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		logrus.WithField("session_id", s.id).Info("Editor session closed")
	})
}

func (s *Session) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

// LastUsed returns when a client last called the session.
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// call runs fn on the session goroutine and waits for it to finish.
func (s *Session) call(ctx context.Context, fn func()) error {
	s.touch()
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case s.inbox <- wrapped:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues fn without waiting. It is used by background work.
func (s *Session) post(fn func()) {
	select {
	case s.inbox <- fn:
	case <-s.done:
	}
}

// Load starts loading templateID. An empty id shows the empty state. Any
// load still in flight is superseded and its result discarded.
func (s *Session) Load(ctx context.Context, templateID string) error {
	return s.call(ctx, func() { s.load(templateID) })
}

func (s *Session) load(templateID string) {
	s.generation++
	gen := s.generation
	s.templateID = templateID
	s.state = editor.NewState()
	s.bg, s.canvas = nil, nil
	s.notification = nil

	if templateID == "" {
		s.status = StatusEmpty
		s.changed(nil)
		s.release()
		return
	}
	s.status = StatusLoading
	s.changed(nil)

	go func() {
		res := s.fetchAndDecode(templateID)
		s.post(func() { s.finishLoad(gen, res) })
	}()
}

func (s *Session) fetchAndDecode(templateID string) loadResult {
	fetched, ok := s.adapter.Cached(templateID)
	if !ok {
		var err error
		fetched, err = s.adapter.Fetch(context.Background(), templateID)
		if err != nil {
			return loadResult{err: err, fetchFailed: true}
		}
	}
	img, err := s.decode(fetched.Image)
	return loadResult{img: img, err: err}
}

func (s *Session) finishLoad(gen uint64, res loadResult) {
	log := logrus.WithFields(logrus.Fields{"session_id": s.id, "template_id": s.templateID})
	if gen != s.generation {
		log.WithField("generation", gen).Debug("Discarding stale image load")
		return
	}

	if res.err == nil {
		b := res.img.Bounds()
		s.size, res.err = render.CanvasSize(b.Dx(), b.Dy(), s.viewport)
	}
	if res.err != nil {
		log.WithError(res.err).Warn("Failed to load template image")
		s.status = StatusFailed
		s.bg = nil
		note := editor.NotifyImageFailed
		if res.fetchFailed {
			note = editor.NotifyTemplateFailed
		}
		s.changed(&note)
		s.release()
		return
	}

	s.bg = res.img
	s.status = StatusReady
	log.WithField("canvas", fmt.Sprintf("%dx%d", s.size.Width, s.size.Height)).Info("Template image loaded")
	s.changed(nil)
	s.release()
}

// release wakes callers blocked in Wait.
func (s *Session) release() {
	v := s.view()
	for _, w := range s.waiters {
		w <- v
	}
	s.waiters = nil
}

// changed redraws the canvas and notifies listeners.
func (s *Session) changed(note *editor.Notification) {
	s.version++
	if note != nil {
		s.notification = note
	}
	if s.status == StatusReady {
		canvas, err := s.renderer.Render(s.bg, s.state, s.size)
		if err != nil {
			logrus.WithField("session_id", s.id).WithError(err).Error("Failed to render canvas")
		} else {
			s.canvas = canvas
		}
	} else {
		s.canvas = nil
	}

	v := s.view()
	for _, l := range s.listeners {
		l(Event{View: &v, Notification: note})
	}
}

func (s *Session) view() View {
	v := View{
		ID:           s.id,
		TemplateID:   s.templateID,
		Status:       s.status,
		State:        s.state,
		Notification: s.notification,
		Version:      s.version,
	}
	v.Mode, _ = s.state.Mode()
	switch s.status {
	case StatusEmpty, StatusFailed:
		empty := editor.NoTemplate
		v.Empty = &empty
	case StatusReady:
		size := s.size
		v.Canvas = &size
		if el, ok := s.state.Element(s.state.Selected); ok {
			box := editor.ElementBox(s.state, el, s.renderer.Fonts(), 0)
			v.Selection = &box
		}
	}
	return v
}

func (s *Session) notify(note editor.Notification) {
	s.notification = &note
	for _, l := range s.listeners {
		l(Event{Notification: &note})
	}
}

// View returns the current snapshot.
func (s *Session) View(ctx context.Context) (View, error) {
	var v View
	err := s.call(ctx, func() { v = s.view() })
	return v, err
}

// Wait blocks until no image load is in flight and returns the snapshot.
func (s *Session) Wait(ctx context.Context) (View, error) {
	ch := make(chan View, 1)
	err := s.call(ctx, func() {
		if s.status == StatusLoading {
			s.waiters = append(s.waiters, ch)
			return
		}
		ch <- s.view()
	})
	if err != nil {
		return View{}, err
	}
	select {
	case v := <-ch:
		return v, nil
	case <-s.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Subscribe registers l for events and returns a function that removes it.
func (s *Session) Subscribe(ctx context.Context, l Listener) (func(), error) {
	var key int
	err := s.call(ctx, func() {
		key = s.nextListener
		s.nextListener++
		s.listeners[key] = l
	})
	if err != nil {
		return nil, err
	}
	return func() {
		s.post(func() { delete(s.listeners, key) })
	}, nil
}

func (s *Session) requireCanvas() error {
	if s.status != StatusReady {
		return fmt.Errorf("%s %s: %w", editor.NoTemplate.Title, editor.NoTemplate.Hint, core.ErrNotFound)
	}
	return nil
}

// Pointer dispatches a pointer event to the interaction controller.
func (s *Session) Pointer(ctx context.Context, ev editor.PointerEvent) (editor.Outcome, error) {
	var (
		out editor.Outcome
		err error
	)
	callErr := s.call(ctx, func() {
		if err = s.requireCanvas(); err != nil {
			return
		}
		s.state, out = editor.Dispatch(s.state, ev, s.renderer.Fonts())
		if out.Changed {
			s.changed(nil)
		}
	})
	if callErr != nil {
		return out, callErr
	}
	return out, err
}

// AddPerson appends a blank person entry.
func (s *Session) AddPerson(ctx context.Context) (editor.PersonEntry, error) {
	var p editor.PersonEntry
	err := s.call(ctx, func() {
		s.state, p = editor.AddPerson(s.state)
		s.changed(nil)
	})
	return p, err
}

// UpdatePerson edits a person entry.
func (s *Session) UpdatePerson(ctx context.Context, id string, u editor.PersonUpdate) error {
	var err error
	callErr := s.call(ctx, func() {
		var next editor.State
		if next, err = editor.UpdatePerson(s.state, id, u); err != nil {
			return
		}
		s.state = next
		s.changed(nil)
	})
	return errors.Join(callErr, err)
}

// RemovePerson removes a person entry. Removing the last one is refused
// with a "Cannot Remove" notification.
func (s *Session) RemovePerson(ctx context.Context, id string) error {
	var err error
	callErr := s.call(ctx, func() {
		var next editor.State
		next, err = editor.RemovePerson(s.state, id)
		if errors.Is(err, core.ErrConstraintViolation) {
			s.notify(editor.NotifyCannotRemove)
		}
		if err != nil {
			return
		}
		s.state = next
		s.changed(nil)
	})
	return errors.Join(callErr, err)
}

// SetQuote replaces the quote text.
func (s *Session) SetQuote(ctx context.Context, quote string) error {
	return s.call(ctx, func() {
		s.state = editor.SetQuote(s.state, quote)
		s.changed(nil)
	})
}

// ApplyStyle applies a style change to the defaults and the selected element.
func (s *Session) ApplyStyle(ctx context.Context, c editor.StyleChange) error {
	var err error
	callErr := s.call(ctx, func() {
		var next editor.State
		if next, err = editor.ApplyStyle(s.state, c); err != nil {
			return
		}
		s.state = next
		s.changed(nil)
	})
	return errors.Join(callErr, err)
}

// Canvas returns the last rendered canvas.
func (s *Session) Canvas(ctx context.Context) (image.Image, error) {
	var (
		img image.Image
		err error
	)
	callErr := s.call(ctx, func() {
		if err = s.requireCanvas(); err != nil {
			return
		}
		img = s.canvas
	})
	return img, errors.Join(callErr, err)
}

// snapshot captures what Export and Save need from the session goroutine.
type snapshot struct {
	templateID string
	bg         image.Image
	state      editor.State
	size       render.Size
}

func (s *Session) snapshot(ctx context.Context) (snapshot, error) {
	var (
		snap snapshot
		err  error
	)
	callErr := s.call(ctx, func() {
		if err = s.requireCanvas(); err != nil {
			return
		}
		snap = snapshot{templateID: s.templateID, bg: s.bg, state: s.state, size: s.size}
	})
	return snap, errors.Join(callErr, err)
}

// Export writes the current canvas as PNG.
func (s *Session) Export(ctx context.Context, w io.Writer) error {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return err
	}
	if err := s.renderer.RenderPNG(w, snap.bg, snap.state, snap.size); err != nil {
		return err
	}
	s.post(func() { s.notify(editor.NotifyDownloaded) })
	return nil
}

// Save persists the bundle and the rendered canvas. On failure the edits
// stay in the session and a failure notification is sent.
func (s *Session) Save(ctx context.Context) error {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	err = s.renderer.RenderPNG(&buf, snap.bg, snap.state, snap.size)
	if err == nil {
		bundle := snap.state.Bundle()
		bundle.CanvasWidth = snap.size.Width
		err = s.adapter.Save(ctx, snap.templateID, bundle, buf.Bytes())
	} else {
		err = fmt.Errorf("%w: %w", core.ErrSaveFailure, err)
	}

	note := editor.NotifySaved
	if err != nil {
		logrus.WithFields(logrus.Fields{"session_id": s.id, "template_id": snap.templateID}).WithError(err).Error("Failed to save template")
		note = editor.NotifySaveFailed
	}
	s.post(func() { s.notify(note) })
	return err
}

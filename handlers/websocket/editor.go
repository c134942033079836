package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"time"

	"birthday-templates/editor"
	"birthday-templates/session"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// callTimeout bounds a single session call made on behalf of a client.
const callTimeout = 5 * time.Second

// Sessions looks up open editor sessions.
type Sessions interface {
	Get(id string) (*session.Session, error)
}

type emitFunc func(room socketio.Room, event string, args ...any)

type subscription struct {
	sockets int
	cancel  func()
}

// hub relays session events to the socket.io room of each session. A
// session is subscribed once, while at least one socket has joined it.
type hub struct {
	sessions Sessions
	emit     emitFunc

	mu   sync.Mutex
	subs map[string]*subscription
}

func newHub(sessions Sessions, emit emitFunc) *hub {
	return &hub{sessions: sessions, emit: emit, subs: make(map[string]*subscription)}
}

func sessionRoom(id string) socketio.Room {
	return socketio.Room("session:" + id)
}

// acquire returns the session and subscribes its room on first use.
func (h *hub) acquire(ctx context.Context, id string) (*session.Session, error) {
	s, err := h.sessions.Get(id)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		sub.sockets++
		return s, nil
	}

	room := sessionRoom(id)
	cancel, err := s.Subscribe(ctx, func(e session.Event) {
		if e.View != nil {
			h.emit(room, "state", e.View)
		}
		if e.Notification != nil {
			h.emit(room, "notification", e.Notification)
		}
	})
	if err != nil {
		return nil, err
	}
	h.subs[id] = &subscription{sockets: 1, cancel: cancel}
	return s, nil
}

// release drops one socket from a session and unsubscribes after the last.
func (h *hub) release(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.subs[id]
	if !ok {
		return
	}
	sub.sockets--
	if sub.sockets <= 0 {
		sub.cancel()
		delete(h.subs, id)
	}
}

func (h *hub) subscribed(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		return sub.sockets
	}
	return 0
}

// decodePayload converts a socket.io argument, already decoded into maps
// and slices, into a typed value.
func decodePayload(arg any, out any) error {
	data, err := json.Marshal(arg)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// stringArg accepts either a bare string or an object with the given key.
func stringArg(arg any, key string) (string, bool) {
	switch v := arg.(type) {
	case string:
		return v, true
	case map[string]any:
		s, ok := v[key].(string)
		return s, ok
	}
	return "", false
}

func ackPayload(err error) map[string]any {
	if err != nil {
		return map[string]any{"status": "error", "error": err.Error()}
	}
	return map[string]any{"status": "ok"}
}

// SetupSocketIO serves live editing. A client joins a session with
// "join-session" and then sends edits; every change is pushed to all
// sockets in the session as "state", user-visible messages as
// "notification".
func SetupSocketIO(sessions Sessions) *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(1000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	localhostOrigin := regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1|\[::1\])(:\d+)?$`)
	opts.SetCors(&types.Cors{
		Origin:      []any{localhostOrigin},
		Credentials: true,
	})
	srv := socketio.NewServer(nil, opts)

	h := newHub(sessions, func(room socketio.Room, event string, args ...any) {
		_ = srv.To(room).Emit(event, args...)
	})

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		c := &client{hub: h, socket: socket}
		log := logrus.WithField("socket_id", socket.Id())
		log.Debug("Editor client connected")

		socket.On("join-session", c.join)
		socket.On("pointer", c.handler("pointer", func(ctx context.Context, s *session.Session, arg any) error {
			var ev editor.PointerEvent
			if err := decodePayload(arg, &ev); err != nil {
				return fmt.Errorf("invalid pointer event: %w", err)
			}
			_, err := s.Pointer(ctx, ev)
			return err
		}))
		socket.On("quote", c.handler("quote", func(ctx context.Context, s *session.Session, arg any) error {
			quote, ok := stringArg(arg, "quote")
			if !ok {
				return fmt.Errorf("quote text is required")
			}
			return s.SetQuote(ctx, quote)
		}))
		socket.On("style", c.handler("style", func(ctx context.Context, s *session.Session, arg any) error {
			var change editor.StyleChange
			if err := decodePayload(arg, &change); err != nil {
				return fmt.Errorf("invalid style change: %w", err)
			}
			return s.ApplyStyle(ctx, change)
		}))
		socket.On("add-person", c.handler("add-person", func(ctx context.Context, s *session.Session, _ any) error {
			_, err := s.AddPerson(ctx)
			return err
		}))
		socket.On("update-person", c.handler("update-person", func(ctx context.Context, s *session.Session, arg any) error {
			var req struct {
				ID string `json:"id"`
				editor.PersonUpdate
			}
			if err := decodePayload(arg, &req); err != nil {
				return fmt.Errorf("invalid person update: %w", err)
			}
			return s.UpdatePerson(ctx, req.ID, req.PersonUpdate)
		}))
		socket.On("remove-person", c.handler("remove-person", func(ctx context.Context, s *session.Session, arg any) error {
			id, ok := stringArg(arg, "id")
			if !ok {
				return fmt.Errorf("person id is required")
			}
			return s.RemovePerson(ctx, id)
		}))

		socket.On("disconnecting", func(...any) {
			c.leave()
			log.Debug("Editor client disconnected")
		})
		socket.On("disconnect", func(...any) {
			socket.RemoveAllListeners("")
		})
	})

	return srv
}

// client is one socket's view of the session it has joined.
type client struct {
	hub    *hub
	socket *socketio.Socket

	mu        sync.Mutex
	sessionID string
	session   *session.Session
}

func (c *client) join(datas ...any) {
	ack, args := extractAck(datas)
	var id string
	if len(args) > 0 {
		id, _ = stringArg(args[0], "sessionId")
	}
	if id == "" {
		err := fmt.Errorf("session id is required")
		respondWithAck(c.socket, ack, "join-session-ack", ackPayload(err), err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	c.leave()
	s, err := c.hub.acquire(ctx, id)
	if err != nil {
		respondWithAck(c.socket, ack, "join-session-ack", ackPayload(err), err)
		return
	}
	c.socket.Join(sessionRoom(id))

	c.mu.Lock()
	c.sessionID, c.session = id, s
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{"socket_id": c.socket.Id(), "session_id": id}).Info("Socket joined editor session")
	if v, err := s.View(ctx); err == nil {
		_ = c.socket.Emit("state", v)
	}
	respondWithAck(c.socket, ack, "join-session-ack", ackPayload(nil), nil)
}

func (c *client) leave() {
	c.mu.Lock()
	id := c.sessionID
	c.sessionID, c.session = "", nil
	c.mu.Unlock()
	if id == "" {
		return
	}
	c.socket.Leave(sessionRoom(id))
	c.hub.release(id)
}

func (c *client) current() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// handler wraps an edit so it runs against the joined session and is
// answered with an "<event>-ack".
func (c *client) handler(event string, fn func(context.Context, *session.Session, any) error) func(...any) {
	return func(datas ...any) {
		ack, args := extractAck(datas)
		var arg any
		if len(args) > 0 {
			arg = args[0]
		}

		s := c.current()
		var err error
		if s == nil {
			err = fmt.Errorf("join a session first")
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
			err = fn(ctx, s, arg)
			cancel()
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{"socket_id": c.socket.Id(), "event": event}).WithError(err).Warn("Editor event failed")
		}
		respondWithAck(c.socket, ack, event+"-ack", ackPayload(err), err)
	}
}

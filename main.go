package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"birthday-templates/core"
	"birthday-templates/handlers/api/sessions"
	"birthday-templates/handlers/api/templates"
	"birthday-templates/handlers/websocket"
	uploads "birthday-templates/middleware"
	"birthday-templates/persistence"
	"birthday-templates/render"
	"birthday-templates/session"
	"birthday-templates/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

type app struct {
	store    core.TemplateStore
	adapter  *persistence.Adapter
	renderer *render.Renderer
	manager  *session.Manager
}

func setupRouter(a *app, maxUpload int64) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			parsed, err := url.Parse(origin)
			if err != nil {
				return false
			}
			switch parsed.Hostname() {
			case "localhost", "127.0.0.1", "[::1]":
				return parsed.Scheme == "http" || parsed.Scheme == "https"
			}
			return false
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/templates", func(r chi.Router) {
		r.With(uploads.LimitBody(maxUpload), uploads.RequireMultipart).Post("/", templates.HandleUpload(a.adapter))
		r.Get("/", templates.HandleList(a.store))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", templates.HandleGet(a.store))
			r.With(uploads.LimitBody(maxUpload)).Put("/", templates.HandleSave(a.store, a.adapter, a.renderer))
			r.Delete("/", templates.HandleDelete(a.store))
			r.Get("/image", templates.HandleImage(a.store))
			r.Get("/rendered", templates.HandleRendered(a.store))
			r.Post("/generate", templates.HandleGenerate(a.store, a.renderer))
		})
	})

	r.Route("/api/editor", func(r chi.Router) {
		r.Get("/fonts", sessions.HandleFonts(a.renderer.Fonts()))
		r.Post("/sessions", sessions.HandleOpen(a.manager))
		r.Route("/sessions/{sid}", func(r chi.Router) {
			r.Get("/", sessions.HandleGet(a.manager))
			r.Delete("/", sessions.HandleClose(a.manager))
			r.Post("/pointer", sessions.HandlePointer(a.manager))
			r.Post("/people", sessions.HandleAddPerson(a.manager))
			r.Patch("/people/{pid}", sessions.HandleUpdatePerson(a.manager))
			r.Delete("/people/{pid}", sessions.HandleRemovePerson(a.manager))
			r.Put("/quote", sessions.HandleSetQuote(a.manager))
			r.Put("/style", sessions.HandleApplyStyle(a.manager))
			r.Get("/canvas.png", sessions.HandleDownload(a.manager))
			r.Post("/save", sessions.HandleSave(a.manager))
		})
	})

	return r
}

func waitForShutdown(server *http.Server, ioo *socketio.Server, cancel context.CancelFunc, closers ...io.Closer) {
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	s := <-signalC
	logrus.WithField("signal", s.String()).Info("Shutting down")

	ctx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
	ioo.Close(nil)
	cancel()
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close resource")
		}
	}
}

func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		logrus.WithField(key, v).Warn("Ignoring invalid value")
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		logrus.WithField(key, v).Warn("Ignoring invalid value")
		return def
	}
	return d
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":3002", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(1)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var fontDirs []string
	if v := os.Getenv("FONT_DIRS"); v != "" {
		fontDirs = filepath.SplitList(v)
	}
	fonts, err := render.NewFonts(true, fontDirs...)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load fonts")
	}

	store := stores.GetStore()
	adapter := persistence.NewAdapter(store, persistence.NewMemoryCache())
	renderer := render.NewRenderer(fonts)
	manager := session.NewManager(adapter, renderer,
		session.WithIdleTimeout(envDuration("SESSION_IDLE_TIMEOUT", session.DefaultIdleTimeout)))

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Run(ctx)

	a := &app{store: store, adapter: adapter, renderer: renderer, manager: manager}
	r := setupRouter(a, envInt64("MAX_UPLOAD_BYTES", uploads.DefaultMaxUploadBytes))
	ioo := websocket.SetupSocketIO(manager)
	r.Handle("/socket.io/", ioo.ServeHandler(nil))

	server := &http.Server{Addr: *listenAddress, Handler: r}
	logrus.WithField("addr", *listenAddress).Info("Starting server")
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	closers := []io.Closer{fonts}
	if c, ok := store.(io.Closer); ok {
		closers = append(closers, c)
	}
	waitForShutdown(server, ioo, cancel, closers...)
}

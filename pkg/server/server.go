package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/atomicdeploy/tablecrud/pkg/render"
	"github.com/atomicdeploy/tablecrud/pkg/schema"
	"github.com/atomicdeploy/tablecrud/pkg/watcher"
)

const shutdownTimeout = 10 * time.Second

// Store is the data access the handlers need
type Store interface {
	ListRows(ctx context.Context, t schema.Table) ([]schema.Record, error)
	GetRow(ctx context.Context, t schema.Table, id int64) (schema.Record, error)
	InsertRow(ctx context.Context, t schema.Table, rec schema.Record) (int64, error)
	UpdateRow(ctx context.Context, t schema.Table, id int64, rec schema.Record) error
	DeleteRow(ctx context.Context, t schema.Table, id int64) error
	Ping(ctx context.Context) error
}

// Options configures a Server
type Options struct {
	Compression bool
	Logger      zerolog.Logger
}

// Server represents the HTTP/WebSocket server
type Server struct {
	router   *mux.Router
	store    Store
	renderer *render.Renderer
	hub      *Hub
	watcher  *watcher.DirWatcher
	log      zerolog.Logger
}

// NewServer creates a new server instance
func NewServer(st Store, renderer *render.Renderer, opts Options) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		store:    st,
		renderer: renderer,
		hub:      NewHub(opts.Logger),
		log:      opts.Logger,
	}
	s.setupRoutes(opts.Compression)
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes(compress bool) {
	// The WebSocket endpoint stays outside the page middleware, which cannot hijack
	s.router.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)

	pages := s.router.PathPrefix("/").Subrouter()
	pages.Use(requestLogger(s.log))
	if compress {
		pages.Use(compression())
	}

	pages.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	pages.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	pages.HandleFunc("/{table}", s.handleTable).Methods(http.MethodGet)
	pages.HandleFunc("/{table}/new", s.handleNew).Methods(http.MethodGet)
	pages.HandleFunc("/{table}/export", s.handleExport).Methods(http.MethodGet)
	pages.HandleFunc("/{table}/remove", s.handleRemove).Methods(http.MethodDelete)
	pages.HandleFunc("/{table}/edit/{id:[0-9]+}", s.handleEdit).Methods(http.MethodGet)
	pages.HandleFunc("/{table}/{id:[0-9]+}", s.handleRecord).Methods(http.MethodGet)
	pages.HandleFunc("/{table}/{id:[0-9]+}", s.handleSubmit).Methods(http.MethodPost)
}

// ServeHTTP makes Server an http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Hub returns the change feed
func (s *Server) Hub() *Hub {
	return s.hub
}

// StartWatching reloads templates whenever an .html file under dir changes
func (s *Server) StartWatching(dir string, debounce time.Duration) error {
	dw, err := watcher.New(dir, []string{".html"}, debounce, func(path string) {
		s.log.Info().Str("path", path).Msg("Template changed, reloading")
		s.renderer.Reload()
	}, s.log)
	if err != nil {
		return fmt.Errorf("failed to watch templates: %w", err)
	}

	s.watcher = dw
	dw.Start()
	s.log.Info().Str("dir", dir).Msg("Watching templates")
	return nil
}

// Start serves HTTP on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("Starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("Shutting down server")
	s.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

// Close cleans up server resources
func (s *Server) Close() error {
	s.hub.Close()
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

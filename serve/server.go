package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	nextline "github.com/nextline-dev/nextline"
	"github.com/nextline-dev/nextline/model"
)

// maxBodyBytes bounds the request body read for POST /suggest.
const maxBodyBytes = 1 << 20

// Suggester processes a suggestion request and returns a response with its status.
type Suggester interface {
	Suggest(ctx context.Context, req *nextline.Request) (*nextline.Response, int)
	Availability() model.Availability
	Close()
}

// Server serves the suggestion HTTP API.
type Server struct {
	http   *http.Server
	engine Suggester
}

// NewServer creates a server for engine listening on addr.
func NewServer(addr string, engine Suggester) *Server {
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(engine),
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		engine: engine,
	}
}

// Serve accepts connections on l until Close or Shutdown.
func (s *Server) Serve(l net.Listener) error {
	err := s.http.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ListenAndServe listens on the configured address and serves requests.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	slog.Info("listening", "addr", l.Addr().String())
	return s.Serve(l)
}

// Shutdown stops accepting requests, waits for in-flight ones and closes the engine.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.engine.Close()
	return err
}

// NewRouter creates the chi router with all routes.
func NewRouter(engine Suggester) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	h := &handler{engine: engine}
	r.Get("/", h.home)
	r.Post("/suggest", h.suggest)
	r.Get("/healthz", h.health)

	return r
}

type handler struct {
	engine Suggester
}

func (h *handler) home(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, nextline.Banner)
}

func (h *handler) suggest(w http.ResponseWriter, r *http.Request) {
	// An absent or malformed body is treated as an empty request.
	var req nextline.Request
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, &nextline.Response{
			Error: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
		})
		return
	}
	if err == nil && len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			slog.Debug("ignoring malformed request body", "error", err)
			req = nextline.Request{}
		}
	}

	resp, status := h.engine.Suggest(r.Context(), &req)
	writeJSON(w, status, resp)
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	avail := h.engine.Availability()
	health := nextline.Health{
		Status:  "ok",
		Ready:   avail.Ready(),
		Backend: avail.Backend,
		Model:   avail.Model,
	}
	if reason := avail.Reason(); reason != nil {
		health.Reason = reason.Error()
	}
	writeJSON(w, http.StatusOK, health)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal response", "error", err)
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(data, '\n'))
}

// requestLogger logs one line per request at debug level, errors at warn.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		slog.Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start).Round(time.Millisecond),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

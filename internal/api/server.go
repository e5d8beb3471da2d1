// Package api exposes post authoring and publishing over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/abdulachik/crosspost/internal/account"
	"github.com/abdulachik/crosspost/internal/db"
	"github.com/abdulachik/crosspost/internal/inbox"
	"github.com/abdulachik/crosspost/internal/post"
	"github.com/abdulachik/crosspost/internal/publisher"
	"github.com/abdulachik/crosspost/internal/scheduler"
)

// Publisher is the part of the publisher the API drives.
type Publisher interface {
	PublishNow(ctx context.Context, postID int64) (publisher.Outcome, error)
	Republish(ctx context.Context, postID int64) (publisher.Outcome, error)
}

// Accounts lists connected accounts.
type Accounts interface {
	List(ctx context.Context, activeOnly bool) ([]*account.Account, error)
}

// Config holds the server's collaborators. Inbox, Health and Metrics are
// optional.
type Config struct {
	Store     *db.Store
	Publisher Publisher
	Accounts  Accounts
	Inbox     *inbox.Inbox
	Health    *scheduler.Health
	Metrics   http.Handler
	UploadDir string
}

// Server serves the HTTP API.
type Server struct {
	store     *db.Store
	publisher Publisher
	accounts  Accounts
	inbox     *inbox.Inbox
	health    *scheduler.Health
	metrics   http.Handler
	uploadDir string
	now       func() time.Time
}

// New creates a new server.
func New(cfg Config) *Server {
	return &Server{
		store:     cfg.Store,
		publisher: cfg.Publisher,
		accounts:  cfg.Accounts,
		inbox:     cfg.Inbox,
		health:    cfg.Health,
		metrics:   cfg.Metrics,
		uploadDir: cfg.UploadDir,
		now:       time.Now,
	}
}

// Routes returns the router with every endpoint mounted.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/posts", func(r chi.Router) {
		r.Post("/", s.createPost)
		r.Get("/", s.listPosts)
		r.Get("/{id}", s.getPost)
		r.Patch("/{id}", s.updatePost)
		r.Post("/{id}/publish", s.publishPost)
		r.Post("/{id}/republish", s.republishPost)
		r.Post("/{id}/schedule", s.schedulePost)
	})

	r.Get("/accounts", s.listAccounts)

	if s.inbox != nil {
		r.Get("/comments", s.listComments)
		r.Post("/comments/{id}/reply", s.replyToComment)
	}

	r.Get("/health", s.getHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	if s.uploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.uploadDir))))
	}

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeErr maps domain errors to HTTP statuses.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, publisher.ErrNotFound),
		errors.Is(err, inbox.ErrCommentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, publisher.ErrNotClaimable),
		errors.Is(err, publisher.ErrNotRepublishable),
		errors.Is(err, post.ErrInvalidTransition),
		errors.Is(err, inbox.ErrAlreadyReplied),
		errors.Is(err, inbox.ErrAccountUnavailable):
		status = http.StatusConflict
	case errors.Is(err, post.ErrNotInFuture),
		errors.Is(err, inbox.ErrEmptyReply):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func limitParam(r *http.Request, def int64) int64 {
	limit, err := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	if err != nil || limit <= 0 {
		return def
	}
	if limit > 500 {
		return 500
	}
	return limit
}

// Package server exposes the traversal over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/leapstack-labs/bifrost/pkg/bifrost"
	"github.com/leapstack-labs/bifrost/pkg/log"
	"github.com/leapstack-labs/bifrost/pkg/safesql"
)

// Server serves the query API backed by one Bifrost.
type Server struct {
	bifrost *bifrost.Bifrost
	logger  log.Logger
	addr    string
}

// New builds a Server.
func New(b *bifrost.Bifrost, logger log.Logger, addr string) *Server {
	return &Server{bifrost: b, logger: logger, addr: addr}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/api/query", s.handleQuery)
	r.Post("/api/check", s.handleCheck)

	return r
}

// ListenAndServe runs the server until the context is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.InfoContext(ctx, "server listening", "addr", s.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type queryRequest struct {
	Question string `json:"question"`
	SQL      string `json:"sql"`
	Repair   *bool  `json:"repair"`
}

func (q *queryRequest) Bind(*http.Request) error { return nil }

type queryResponse struct {
	SQL string `json:"sql"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`

	status int
}

func (e *errorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.status)
	return nil
}

// handleQuery translates a natural-language question into trusted SQL.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	req := &queryRequest{}
	if err := render.Bind(r, req); err != nil {
		_ = render.Render(w, r, &errorResponse{Error: "invalid request body", status: http.StatusBadRequest})
		return
	}
	if req.Question == "" {
		_ = render.Render(w, r, &errorResponse{Error: "question is required", status: http.StatusBadRequest})
		return
	}

	repair := true
	if req.Repair != nil {
		repair = *req.Repair
	}

	sql, err := s.bifrost.Traverse(r.Context(), req.Question, repair)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	render.JSON(w, r, queryResponse{SQL: sql})
}

// handleCheck validates SQL text without consulting the LLM.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	req := &queryRequest{}
	if err := render.Bind(r, req); err != nil {
		_ = render.Render(w, r, &errorResponse{Error: "invalid request body", status: http.StatusBadRequest})
		return
	}
	if req.SQL == "" {
		_ = render.Render(w, r, &errorResponse{Error: "sql is required", status: http.StatusBadRequest})
		return
	}

	repair := true
	if req.Repair != nil {
		repair = *req.Repair
	}

	sql, err := s.bifrost.ValidateSQL(r.Context(), req.SQL, repair)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	render.JSON(w, r, queryResponse{SQL: sql})
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	resp := &errorResponse{Error: err.Error(), status: http.StatusBadGateway}

	var te safesql.Error
	if errors.As(err, &te) {
		resp.Kind = te.Kind().String()
		resp.status = http.StatusUnprocessableEntity
	}
	_ = render.Render(w, r, resp)
}

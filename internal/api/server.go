// Package api exposes the outreach pipeline over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/abtest"
	"github.com/sells-group/outreach-cli/internal/campaign"
	"github.com/sells-group/outreach-cli/internal/compliance"
	"github.com/sells-group/outreach-cli/internal/docstore"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/pipeline"
	"github.com/sells-group/outreach-cli/internal/reply"
)

// Server holds the components the handlers call into.
type Server struct {
	docs      docstore.Store
	orch      *pipeline.Orchestrator
	gate      *compliance.Gate
	tests     *abtest.Controller
	campaigns *campaign.Store
	log       *zap.Logger
}

// Deps are the components served. Tests may be nil, which disables the
// /abtests routes.
type Deps struct {
	Store        docstore.Store
	Orchestrator *pipeline.Orchestrator
	Gate         *compliance.Gate
	Tests        *abtest.Controller
	Campaigns    *campaign.Store
}

// New creates a Server.
func New(d Deps) *Server {
	return &Server{
		docs:      d.Store,
		orch:      d.Orchestrator,
		gate:      d.Gate,
		tests:     d.Tests,
		campaigns: d.Campaigns,
		log:       zap.L().With(zap.String("component", "api")),
	}
}

// Router builds the route tree. allowedOrigins feeds the CORS policy.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1/orgs/{org}", func(r chi.Router) {
		r.Post("/contacts", s.addContact)
		r.Post("/runs", s.run)
		r.Get("/runs/{id}", s.getRun)
		r.Post("/replies", s.handleReply)
		r.Post("/sweep", s.sweep)

		r.Get("/campaigns/{id}", s.getCampaign)
		r.Post("/campaigns/{id}/dispatch", s.dispatch)
		r.Post("/dispatch", s.dispatchDue)

		r.Get("/compliance/{email}", s.canSend)
		r.Get("/suppressions", s.listSuppressions)
		r.Post("/suppressions", s.suppress)
		r.Delete("/suppressions/{email}", s.unsuppress)
		r.Get("/suppressions/stats", s.suppressionStats)
		r.Post("/bounces", s.bounce)
		r.Post("/complaints", s.complaint)

		if s.tests != nil {
			r.Get("/abtests", s.listTests)
			r.Post("/abtests", s.createTest)
			r.Get("/abtests/{id}", s.getTest)
			r.Post("/abtests/{id}/events", s.recordEvent)
			r.Post("/abtests/{id}/winner", s.declareWinner)
		}
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data) //nolint:errcheck
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// fail maps domain errors to status codes. Unexpected errors are logged and
// reported without detail.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("api: handler failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		respondError(w, status, "internal error")
		return
	}
	respondError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case eris.Is(err, model.ErrInvalidContact),
		eris.Is(err, model.ErrInvalidICP),
		eris.Is(err, compliance.ErrInvalidEmail),
		eris.Is(err, abtest.ErrUnknownVariant),
		eris.Is(err, abtest.ErrUnknownMetric),
		eris.Is(err, reply.ErrEmptyReply):
		return http.StatusBadRequest
	case eris.Is(err, campaign.ErrNotFound),
		eris.Is(err, abtest.ErrNotFound),
		eris.Is(err, compliance.ErrNotSuppressed),
		docstore.IsNotFound(err):
		return http.StatusNotFound
	case eris.Is(err, abtest.ErrCompleted),
		eris.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict
	case eris.Is(err, pipeline.ErrNoClassifier):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// decode reads a JSON body, answering 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

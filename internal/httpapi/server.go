package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/BrandonDHaskell/garita/internal/garita/engine"
	"github.com/BrandonDHaskell/garita/internal/garita/metrics"
	"github.com/BrandonDHaskell/garita/internal/garita/model"
	"github.com/BrandonDHaskell/garita/internal/garita/service"
	"github.com/BrandonDHaskell/garita/internal/garita/store"
	"github.com/BrandonDHaskell/garita/internal/garita/types"
)

// authorHeader carries the opaque operator reference set by the front desk.
const authorHeader = "X-Author"

var errBadInput = errors.New("bad input")

// Registrar is what the HTTP layer needs from the logbook service.
type Registrar interface {
	Register(ctx context.Context, req service.MovementRequest) (service.MovementResult, error)
	ResolveZone(ctx context.Context, dni string) (service.ZoneReport, error)
	History(ctx context.Context, dni string, limit int) ([]model.Movement, error)
	GetPerson(ctx context.Context, dni string) (model.Person, error)
	RenamePerson(ctx context.Context, dni, name string) error
	OpenDetail(ctx context.Context, movementID model.MovementID, payload model.Payload, author string) (model.DetailRecord, error)
	UpdateDetail(ctx context.Context, id model.DetailID, expected model.RecordKind, payload model.Payload, author string) (model.DetailRecord, error)
	GetDetail(ctx context.Context, id model.DetailID) (model.DetailRecord, error)
	ListOpenDetails(ctx context.Context, dni string, kind model.RecordKind) ([]model.DetailRecord, error)
	ControlPoints() []model.ControlPoint
	RefreshControlPoints(ctx context.Context) ([]model.ControlPoint, error)
	Ping(ctx context.Context) error
}

type Dependencies struct {
	Logger    *slog.Logger
	Addr      string
	Registrar Registrar
	// Metrics is served on /metrics when set.
	Metrics *metrics.Metrics
	Now     func() time.Time
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	router     chi.Router
	registrar  Registrar
	now        func() time.Time
}

func NewServer(d Dependencies) *Server {
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}

	r := chi.NewRouter()
	s := &Server{
		logger:    d.Logger,
		router:    r,
		registrar: d.Registrar,
		now:       d.Now,
	}

	r.Use(recovery(d.Logger))
	r.Use(requestID)
	r.Use(loggingMiddleware(d.Logger))
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/movements", s.handleRegister)

		r.Get("/people/{dni}", s.handleGetPerson)
		r.Patch("/people/{dni}", s.handleRenamePerson)
		r.Get("/people/{dni}/zone", s.handleZone)
		r.Get("/people/{dni}/movements", s.handleHistory)
		r.Get("/people/{dni}/details/open", s.handleOpenDetails)

		r.Post("/details", s.handleOpenDetail)
		r.Get("/details/{id}", s.handleGetDetail)
		r.Put("/details/{id}", s.handleUpdateDetail)

		r.Get("/control-points", s.handleControlPoints)
		r.Post("/control-points/refresh", s.handleRefreshControlPoints)
	})

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.registrar.Ping(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "health check failed", slog.Any("error", err))
		writeError(w, http.StatusServiceUnavailable, "unavailable", "store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "server_time": formatTime(s.now())})
}

// decodeJSON decodes a bounded JSON body, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: code, Message: msg})
}

// errorStatus maps service and store errors to a status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrValidationRejected):
		return http.StatusUnprocessableEntity, "rejected"
	case errors.Is(err, service.ErrInvalidDNI):
		return http.StatusBadRequest, "invalid_dni"
	case errors.Is(err, service.ErrInvalidDirection):
		return http.StatusBadRequest, "invalid_direction"
	case errors.Is(err, service.ErrInvalidCategory):
		return http.StatusBadRequest, "invalid_category"
	case errors.Is(err, engine.ErrInvalidPayload):
		return http.StatusBadRequest, "invalid_payload"
	case errors.Is(err, errBadInput):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrUnknownControlPoint):
		return http.StatusNotFound, "unknown_control_point"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, engine.ErrKindMismatch):
		return http.StatusConflict, "kind_mismatch"
	case errors.Is(err, engine.ErrRecordClosed):
		return http.StatusConflict, "record_closed"
	case errors.Is(err, engine.ErrNotOwner):
		return http.StatusConflict, "not_owner"
	case errors.Is(err, engine.ErrTooManyOpen):
		return http.StatusUnprocessableEntity, "too_many_open"
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "conflict"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeServiceError writes err as a JSON error. Server-side failures are
// logged and their detail withheld from the client.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), op+" error",
			slog.Any("error", err),
			slog.String("request_id", RequestIDFrom(r.Context())),
		)
		writeError(w, status, code, "unexpected server error")
		return
	}
	writeError(w, status, code, err.Error())
}

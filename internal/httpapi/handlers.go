package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/BrandonDHaskell/garita/internal/garita/engine"
	"github.com/BrandonDHaskell/garita/internal/garita/model"
	"github.com/BrandonDHaskell/garita/internal/garita/types"
)

// ── Movements ────────────────────────────────────────────────────────────────

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if isProtobuf(r) {
		s.handleRegisterProto(w, r)
		return
	}

	var body types.MovementRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	req, err := movementRequestFromJSON(body, r.Header.Get(authorHeader))
	if err != nil {
		s.writeServiceError(w, r, "register", err)
		return
	}

	res, err := s.registrar.Register(r.Context(), req)
	if err != nil {
		var rej *engine.RejectionError
		if errors.As(err, &rej) {
			writeJSON(w, http.StatusUnprocessableEntity, rejectionResponse(rej, s.now()))
			return
		}
		s.writeServiceError(w, r, "register", err)
		return
	}

	writeJSON(w, http.StatusOK, movementResponse(res, s.now()))
}

func (s *Server) handleRegisterProto(w http.ResponseWriter, r *http.Request) {
	var msg scanRequest
	if err := readProto(r, &msg); err != nil {
		writeProto(w, http.StatusBadRequest, &scanResponse{Reason: "bad_proto", ServerTime: formatTime(s.now())})
		return
	}
	req, err := movementRequestFromProto(&msg, r.Header.Get(authorHeader))
	if err != nil {
		status, code := errorStatus(err)
		writeProto(w, status, &scanResponse{Reason: code, ServerTime: formatTime(s.now())})
		return
	}

	res, err := s.registrar.Register(r.Context(), req)
	if err != nil {
		status, code := errorStatus(err)
		reason := code
		var rej *engine.RejectionError
		if errors.As(err, &rej) {
			reason = rej.Rule
		} else if status == http.StatusInternalServerError {
			s.logger.ErrorContext(r.Context(), "register error", "error", err, "request_id", RequestIDFrom(r.Context()))
		}
		writeProto(w, status, &scanResponse{Reason: reason, ServerTime: formatTime(s.now())})
		return
	}

	writeProto(w, http.StatusOK, scanResponseFrom(res, s.now()))
}

// ── People ───────────────────────────────────────────────────────────────────

func (s *Server) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	p, err := s.registrar.GetPerson(r.Context(), chi.URLParam(r, "dni"))
	if err != nil {
		s.writeServiceError(w, r, "get person", err)
		return
	}
	writeJSON(w, http.StatusOK, personToJSON(p))
}

func (s *Server) handleRenamePerson(w http.ResponseWriter, r *http.Request) {
	var body types.RenameRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		writeError(w, http.StatusBadRequest, "invalid_name", "name is required")
		return
	}

	dni := chi.URLParam(r, "dni")
	if err := s.registrar.RenamePerson(r.Context(), dni, body.Name); err != nil {
		s.writeServiceError(w, r, "rename person", err)
		return
	}
	p, err := s.registrar.GetPerson(r.Context(), dni)
	if err != nil {
		s.writeServiceError(w, r, "get person", err)
		return
	}
	writeJSON(w, http.StatusOK, personToJSON(p))
}

func (s *Server) handleZone(w http.ResponseWriter, r *http.Request) {
	rep, err := s.registrar.ResolveZone(r.Context(), chi.URLParam(r, "dni"))
	if err != nil {
		s.writeServiceError(w, r, "resolve zone", err)
		return
	}
	writeJSON(w, http.StatusOK, zoneReportToJSON(rep, s.now()))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	dni := chi.URLParam(r, "dni")
	ms, err := s.registrar.History(r.Context(), dni, limit)
	if err != nil {
		s.writeServiceError(w, r, "history", err)
		return
	}
	out := types.HistoryResponse{DNI: strings.TrimSpace(dni), Movements: make([]types.Movement, 0, len(ms))}
	for _, m := range ms {
		out.Movements = append(out.Movements, movementToJSON(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOpenDetails(w http.ResponseWriter, r *http.Request) {
	var kind model.RecordKind
	if v := r.URL.Query().Get("kind"); v != "" {
		k, err := model.ParseRecordKind(v)
		if err != nil {
			s.writeServiceError(w, r, "list open details", err)
			return
		}
		kind = k
	}

	dni := chi.URLParam(r, "dni")
	recs, err := s.registrar.ListOpenDetails(r.Context(), dni, kind)
	if err != nil {
		s.writeServiceError(w, r, "list open details", err)
		return
	}
	out := types.DetailList{DNI: strings.TrimSpace(dni), Details: make([]types.Detail, 0, len(recs))}
	for _, rec := range recs {
		out.Details = append(out.Details, detailToJSON(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

// ── Details ──────────────────────────────────────────────────────────────────

func (s *Server) handleOpenDetail(w http.ResponseWriter, r *http.Request) {
	var body types.OpenDetailRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	p, err := decodePayload(body.Kind, body.Payload)
	if err != nil {
		s.writeServiceError(w, r, "open detail", err)
		return
	}

	rec, err := s.registrar.OpenDetail(r.Context(), model.MovementID(body.MovementID), p, r.Header.Get(authorHeader))
	if err != nil {
		s.writeServiceError(w, r, "open detail", err)
		return
	}
	writeJSON(w, http.StatusCreated, detailToJSON(rec))
}

func (s *Server) handleGetDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := detailIDParam(w, r)
	if !ok {
		return
	}
	rec, err := s.registrar.GetDetail(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, "get detail", err)
		return
	}
	writeJSON(w, http.StatusOK, detailToJSON(rec))
}

func (s *Server) handleUpdateDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := detailIDParam(w, r)
	if !ok {
		return
	}
	var body types.UpdateDetailRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	expected, err := model.ParseRecordKind(body.Kind)
	if err != nil {
		s.writeServiceError(w, r, "update detail", err)
		return
	}

	// The payload is decoded as the stored kind so that a caller naming the
	// wrong kind gets a kind mismatch rather than a decode error.
	cur, err := s.registrar.GetDetail(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, "update detail", err)
		return
	}
	p, err := model.DecodePayload(cur.Kind, body.Payload)
	if err != nil {
		s.writeServiceError(w, r, "update detail", err)
		return
	}

	rec, err := s.registrar.UpdateDetail(r.Context(), id, expected, p, r.Header.Get(authorHeader))
	if err != nil {
		s.writeServiceError(w, r, "update detail", err)
		return
	}
	writeJSON(w, http.StatusOK, detailToJSON(rec))
}

func detailIDParam(w http.ResponseWriter, r *http.Request) (model.DetailID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", "detail id must be a positive integer")
		return 0, false
	}
	return model.DetailID(id), true
}

// ── Control points ───────────────────────────────────────────────────────────

func (s *Server) handleControlPoints(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, controlPointsToJSON(s.registrar.ControlPoints()))
}

func (s *Server) handleRefreshControlPoints(w http.ResponseWriter, r *http.Request) {
	points, err := s.registrar.RefreshControlPoints(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "refresh control points", "error", err)
		writeError(w, http.StatusInternalServerError, "refresh_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, controlPointsToJSON(points))
}

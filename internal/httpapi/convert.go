package httpapi

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/BrandonDHaskell/garita/internal/garita/engine"
	"github.com/BrandonDHaskell/garita/internal/garita/model"
	"github.com/BrandonDHaskell/garita/internal/garita/service"
	"github.com/BrandonDHaskell/garita/internal/garita/types"
)

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// parseOptionalTimestamp parses a device-reported timestamp. Empty means
// "use the server clock".
func parseOptionalTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: requested_at: %v", errBadInput, err)
	}
	return t.UTC(), nil
}

// decodePayload resolves kind and decodes raw into that kind's payload.
func decodePayload(kind string, raw json.RawMessage) (model.Payload, error) {
	k, err := model.ParseRecordKind(kind)
	if err != nil {
		return nil, err
	}
	return model.DecodePayload(k, raw)
}

// ── Movements ────────────────────────────────────────────────────────────────

func movementRequestFromJSON(j types.MovementRequest, author string) (service.MovementRequest, error) {
	dir, err := model.ParseDirection(j.Direction)
	if err != nil {
		return service.MovementRequest{}, fmt.Errorf("%w: %v", service.ErrInvalidDirection, err)
	}
	at, err := parseOptionalTimestamp(j.RequestedAt)
	if err != nil {
		return service.MovementRequest{}, err
	}

	req := service.MovementRequest{
		DNI:            j.DNI,
		Name:           strings.TrimSpace(j.Name),
		Category:       model.Category(strings.ToLower(strings.TrimSpace(j.Category))),
		ControlPointID: model.ControlPointID(j.ControlPointID),
		Direction:      dir,
		Author:         author,
		At:             at,
		CloseDetailID:  model.DetailID(j.CloseDetailID),
	}
	if j.Detail != nil {
		p, err := decodePayload(j.Detail.Kind, j.Detail.Payload)
		if err != nil {
			return service.MovementRequest{}, err
		}
		req.Detail = p
	}
	return req, nil
}

func movementRequestFromProto(p *scanRequest, author string) (service.MovementRequest, error) {
	var dir model.Direction
	switch p.Direction {
	case pbDirectionEntry:
		dir = model.Entry
	case pbDirectionExit:
		dir = model.Exit
	default:
		return service.MovementRequest{}, fmt.Errorf("%w: enum value %d", service.ErrInvalidDirection, p.Direction)
	}

	req := service.MovementRequest{
		DNI:            p.DNI,
		Name:           strings.TrimSpace(p.Name),
		ControlPointID: model.ControlPointID(p.ControlPointID),
		Direction:      dir,
		Author:         author,
	}
	if p.RequestedAtMs > 0 {
		req.At = time.UnixMilli(p.RequestedAtMs).UTC()
	}
	return req, nil
}

func movementToJSON(m model.Movement) types.Movement {
	return types.Movement{
		ID:             int64(m.ID),
		DNI:            m.DNI,
		ControlPointID: int(m.ControlPointID),
		Direction:      string(m.Direction),
		At:             formatTime(m.At),
		Synthetic:      m.Synthetic,
		Author:         m.Author,
	}
}

func movementResponse(res service.MovementResult, now time.Time) types.MovementResponse {
	mv := movementToJSON(res.Movement)
	resp := types.MovementResponse{
		OK:          true,
		Accepted:    true,
		Movement:    &mv,
		InsidePlant: res.InsidePlant,
		Zone:        zoneToJSON(res.Zone.Zone),
		ServerTime:  formatTime(now),
	}
	if res.Closure != nil {
		c := movementToJSON(*res.Closure)
		resp.Closure = &c
	}
	if res.Detail != nil {
		d := detailToJSON(*res.Detail)
		resp.Detail = &d
	}
	return resp
}

func rejectionResponse(rej *engine.RejectionError, now time.Time) types.MovementResponse {
	return types.MovementResponse{
		OK:          true,
		Accepted:    false,
		InsidePlant: rej.State.InsidePlant,
		Zone:        zoneToJSON(rej.State.Zone),
		Rejection: &types.Rejection{
			Rule:        rej.Rule,
			Message:     rej.Message,
			InsidePlant: rej.State.InsidePlant,
			Zone:        zoneToJSON(rej.State.Zone),
			State:       rej.State.String(),
		},
		ServerTime: formatTime(now),
	}
}

func scanResponseFrom(res service.MovementResult, now time.Time) *scanResponse {
	out := &scanResponse{
		Accepted:   true,
		MovementID: int64(res.Movement.ID),
		ServerTime: formatTime(now),
	}
	if res.Zone.Zone != nil {
		out.ZoneID = uint32(res.Zone.Zone.ID)
	}
	if res.Closure != nil {
		out.ClosedZoneID = uint32(res.Closure.ControlPointID)
	}
	return out
}

// ── Control points ───────────────────────────────────────────────────────────

func controlPointToJSON(p model.ControlPoint) types.ControlPoint {
	return types.ControlPoint{
		ID:            int(p.ID),
		Name:          p.Name,
		Kind:          string(p.Kind),
		TrackPresence: p.TrackPresence,
		Priority:      p.Priority,
	}
}

func zoneToJSON(p *model.ControlPoint) *types.ControlPoint {
	if p == nil {
		return nil
	}
	cp := controlPointToJSON(*p)
	return &cp
}

func controlPointsToJSON(points []model.ControlPoint) types.ControlPointList {
	out := types.ControlPointList{ControlPoints: make([]types.ControlPoint, 0, len(points))}
	for _, p := range points {
		out.ControlPoints = append(out.ControlPoints, controlPointToJSON(p))
	}
	return out
}

// ── People and details ───────────────────────────────────────────────────────

func zoneReportToJSON(r service.ZoneReport, now time.Time) types.ZoneResponse {
	out := types.ZoneResponse{
		DNI:         r.DNI,
		InsidePlant: r.Presence.InsidePlant,
		Zone:        zoneToJSON(r.Presence.Current.Zone),
		ServerTime:  formatTime(now),
	}
	if len(r.Presence.Zones) > 1 {
		for _, z := range r.Presence.Zones[1:] {
			out.StaleZones = append(out.StaleZones, controlPointToJSON(z))
		}
	}
	return out
}

func personToJSON(p model.Person) types.Person {
	return types.Person{
		DNI:       p.DNI,
		Name:      p.Name,
		Category:  string(p.Category),
		CreatedAt: formatTime(p.CreatedAt),
		UpdatedAt: formatTime(p.UpdatedAt),
	}
}

func detailToJSON(rec model.DetailRecord) types.Detail {
	raw, err := model.EncodePayload(rec.Payload)
	if err != nil {
		raw = []byte("null")
	}
	return types.Detail{
		ID:         int64(rec.ID),
		MovementID: int64(rec.MovementID),
		DNI:        rec.DNI,
		Kind:       string(rec.Kind),
		Open:       rec.IsOpen(),
		Payload:    raw,
		EntryAt:    formatOptional(rec.EntryAt),
		ExitAt:     formatOptional(rec.ExitAt),
		CreatedAt:  formatTime(rec.CreatedAt),
		CreatedBy:  rec.CreatedBy,
		UpdatedAt:  formatTime(rec.UpdatedAt),
		UpdatedBy:  rec.UpdatedBy,
	}
}

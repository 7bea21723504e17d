package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/protobuf/encoding/protowire"
)

// maxRequestBody caps the request body size for both protobuf and JSON
// payloads. Detail payloads are the largest messages and stay well below it.
const maxRequestBody = 64 << 10

// isProtobuf returns true if the request's Content-Type indicates a
// protobuf payload. Turnstile readers send "application/x-protobuf".
func isProtobuf(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == "application/x-protobuf" ||
		ct == "application/protobuf" ||
		ct == "application/octet-stream"
}

// Direction enum values on the wire.
const (
	pbDirectionUnspecified = 0
	pbDirectionEntry       = 1
	pbDirectionExit        = 2
)

// scanRequest is the device message for one badge scan.
//
//	1 dni              string
//	2 control_point_id uint32
//	3 direction        enum (1 ENTRY, 2 EXIT)
//	4 requested_at_ms  int64
//	5 name             string
type scanRequest struct {
	DNI            string
	ControlPointID uint32
	Direction      int32
	RequestedAtMs  int64
	Name           string
}

// scanResponse answers a scan.
//
//	1 accepted       bool
//	2 movement_id    int64
//	3 reason         string
//	4 zone_id        uint32
//	5 closed_zone_id uint32
//	6 server_time    string
type scanResponse struct {
	Accepted     bool
	MovementID   int64
	Reason       string
	ZoneID       uint32
	ClosedZoneID uint32
	ServerTime   string
}

var errWireType = errors.New("unexpected wire type")

func (m *scanRequest) unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		switch num {
		case 1, 5:
			if typ != protowire.BytesType {
				return fmt.Errorf("field %d: %w", num, errWireType)
			}
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			if num == 1 {
				m.DNI = v
			} else {
				m.Name = v
			}
			b = b[n:]
		case 2, 3, 4:
			if typ != protowire.VarintType {
				return fmt.Errorf("field %d: %w", num, errWireType)
			}
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			switch num {
			case 2:
				m.ControlPointID = uint32(v)
			case 3:
				m.Direction = int32(v)
			case 4:
				m.RequestedAtMs = int64(v)
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}

func (m *scanRequest) marshal() []byte {
	var b []byte
	if m.DNI != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, m.DNI)
	}
	if m.ControlPointID != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.ControlPointID))
	}
	if m.Direction != 0 {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Direction))
	}
	if m.RequestedAtMs != 0 {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.RequestedAtMs))
	}
	if m.Name != "" {
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendString(b, m.Name)
	}
	return b
}

func (m *scanResponse) marshal() []byte {
	var b []byte
	if m.Accepted {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	if m.MovementID != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.MovementID))
	}
	if m.Reason != "" {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendString(b, m.Reason)
	}
	if m.ZoneID != 0 {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.ZoneID))
	}
	if m.ClosedZoneID != 0 {
		b = protowire.AppendTag(b, 5, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.ClosedZoneID))
	}
	if m.ServerTime != "" {
		b = protowire.AppendTag(b, 6, protowire.BytesType)
		b = protowire.AppendString(b, m.ServerTime)
	}
	return b
}

func (m *scanResponse) unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case (num == 3 || num == 6) && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			if num == 3 {
				m.Reason = v
			} else {
				m.ServerTime = v
			}
			b = b[n:]
		case num >= 1 && num <= 5 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			switch num {
			case 1:
				m.Accepted = protowire.DecodeBool(v)
			case 2:
				m.MovementID = int64(v)
			case 4:
				m.ZoneID = uint32(v)
			case 5:
				m.ClosedZoneID = uint32(v)
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}

// readProto reads the request body and decodes it into msg.
func readProto(r *http.Request, msg *scanRequest) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return err
	}
	return msg.unmarshal(body)
}

// writeProto encodes msg and writes it with the given HTTP status.
func writeProto(w http.ResponseWriter, status int, msg *scanResponse) {
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.WriteHeader(status)
	_, _ = w.Write(msg.marshal())
}

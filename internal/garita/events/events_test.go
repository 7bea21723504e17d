package events

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAssignsUniqueIDs(t *testing.T) {
	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.FixedZone("PET", -5*3600))
	a := New(MovementRecorded, "12345678", at)
	b := New(MovementRecorded, "12345678", at)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, time.UTC, a.At.Location())
}

func TestLogPublisherWritesStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	p := NewLog(slog.New(slog.NewJSONHandler(&buf, nil)))

	e := New(MovementRejected, "12345678", time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	e.ControlPointID = 1
	e.Direction = "entry"
	e.Rule = "gate.duplicate_entry"
	e.Reason = "already inside the plant"
	e.State = "inside the plant"
	require.NoError(t, p.Publish(context.Background(), e))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "ledger event", rec["msg"])
	assert.Equal(t, "movement.rejected", rec["type"])
	assert.Equal(t, "gate.duplicate_entry", rec["rule"])
	assert.Equal(t, float64(1), rec["control_point_id"])
	assert.NotContains(t, rec, "detail_id")
}

func TestMemoryPublisher(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	at := time.Now()

	require.NoError(t, m.Publish(ctx, New(ZoneClosed, "1", at)))
	require.NoError(t, m.Publish(ctx, New(MovementRecorded, "1", at)))
	require.NoError(t, m.Publish(ctx, New(MovementRecorded, "2", at)))

	assert.Len(t, m.Events(), 3)
	assert.Len(t, m.OfType(MovementRecorded), 2)
	assert.Empty(t, m.OfType(DetailOpened))
}

func TestEventJSONOmitsUnsetFields(t *testing.T) {
	e := New(ZoneClosed, "12345678", time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	e.ControlPointID = 2
	e.Direction = "exit"
	e.Synthetic = true

	b, err := json.Marshal(e)
	require.NoError(t, err)
	s := string(b)
	assert.Contains(t, s, `"synthetic":true`)
	assert.NotContains(t, s, "rule")
	assert.NotContains(t, s, "open")
}

package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/garita/internal/garita/model"
)

func TestFileLoad(t *testing.T) {
	points, err := File{Path: filepath.Join("testdata", "controlpoints.yaml")}.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, points, 4)

	snap, err := NewSnapshot(points)
	require.NoError(t, err)

	assert.Equal(t, model.ControlPointID(1), snap.Gate().ID)

	zones := snap.TrackedZones()
	require.Len(t, zones, 2)
	assert.Equal(t, "Dining Hall", zones[0].Name, "lower priority value resolves first")
	assert.Equal(t, "Chemical Storage", zones[1].Name)

	turnstile, ok := snap.Get(4)
	require.True(t, ok)
	assert.False(t, turnstile.IsTrackedZone())

	all := snap.All()
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("control_points:\n  - id: 1\n    name: Gate\n    kind: gate\n    trak_presence: true\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCatalog))
}

func TestNewSnapshotValidation(t *testing.T) {
	gate := model.ControlPoint{ID: 1, Name: "Gate", Kind: model.KindGate}
	zone := model.ControlPoint{ID: 2, Name: "Dining Hall", Kind: model.KindInternalZone, TrackPresence: true}

	tests := []struct {
		name   string
		points []model.ControlPoint
	}{
		{"no gate", []model.ControlPoint{zone}},
		{"two gates", []model.ControlPoint{gate, {ID: 9, Name: "Back Gate", Kind: model.KindGate}}},
		{"duplicate id", []model.ControlPoint{gate, zone, {ID: 2, Name: "Other", Kind: model.KindInternalZone}}},
		{"non-positive id", []model.ControlPoint{gate, {ID: 0, Name: "Zero", Kind: model.KindInternalZone}}},
		{"blank name", []model.ControlPoint{gate, {ID: 3, Name: "  ", Kind: model.KindInternalZone}}},
		{"unknown kind", []model.ControlPoint{gate, {ID: 3, Name: "Lab", Kind: "lab"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSnapshot(tc.points)
			require.ErrorIs(t, err, ErrInvalidCatalog)
		})
	}
}

func TestZonePriorityTieBreaksOnID(t *testing.T) {
	snap, err := NewSnapshot([]model.ControlPoint{
		{ID: 1, Name: "Gate", Kind: model.KindGate},
		{ID: 7, Name: "B", Kind: model.KindInternalZone, TrackPresence: true},
		{ID: 5, Name: "A", Kind: model.KindInternalZone, TrackPresence: true},
	})
	require.NoError(t, err)

	zones := snap.TrackedZones()
	require.Len(t, zones, 2)
	assert.Equal(t, model.ControlPointID(5), zones[0].ID)
}

func TestRefreshPicksUpFileChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.yaml")
	write := func(doc string) {
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	}
	write("control_points:\n  - {id: 1, name: Gate, kind: gate}\n")

	var synced atomic.Int32
	c, err := New(context.Background(), File{Path: path}, WithOnLoad(func(_ context.Context, points []model.ControlPoint) error {
		synced.Add(1)
		return nil
	}))
	require.NoError(t, err)
	assert.Empty(t, c.Snapshot().TrackedZones())

	write("control_points:\n  - {id: 1, name: Gate, kind: gate}\n  - {id: 2, name: Dining Hall, kind: internal_zone, track_presence: true}\n")
	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.TrackedZones(), 1)
	assert.Same(t, snap, c.Snapshot())
	assert.Equal(t, int32(2), synced.Load())
}

func TestRefreshKeepsPreviousSnapshotOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.yaml")
	require.NoError(t, os.WriteFile(path, []byte("control_points:\n  - {id: 1, name: Gate, kind: gate}\n"), 0o600))

	c, err := New(context.Background(), File{Path: path})
	require.NoError(t, err)
	before := c.Snapshot()

	require.NoError(t, os.WriteFile(path, []byte("control_points: []\n"), 0o600))
	_, err = c.Refresh(context.Background())
	require.ErrorIs(t, err, ErrInvalidCatalog)
	assert.Same(t, before, c.Snapshot())
}

type countingSource struct {
	loads atomic.Int32
	gate  chan struct{}
}

func (s *countingSource) Load(context.Context) ([]model.ControlPoint, error) {
	s.loads.Add(1)
	<-s.gate
	return Default(), nil
}

func TestRefreshCollapsesConcurrentCalls(t *testing.T) {
	src := &countingSource{gate: make(chan struct{})}
	close(src.gate)
	c, err := New(context.Background(), src)
	require.NoError(t, err)
	src.loads.Store(0)

	src.gate = make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Refresh(context.Background())
			assert.NoError(t, err)
		}()
	}
	// Let the callers pile up on the shared load before releasing it.
	for src.loads.Load() == 0 {
	}
	close(src.gate)
	wg.Wait()

	assert.LessOrEqual(t, src.loads.Load(), int32(10))
	assert.GreaterOrEqual(t, src.loads.Load(), int32(1))
}

func TestMustStaticPanicsOnInvalidPoints(t *testing.T) {
	assert.Panics(t, func() { MustStatic(model.ControlPoint{ID: 2, Name: "Zone", Kind: model.KindInternalZone}) })
	assert.NotPanics(t, func() { MustStatic(Default()...) })
}

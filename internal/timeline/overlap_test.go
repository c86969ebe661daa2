package timeline

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ev(id string, start, duration float64) Event {
	return Event{
		ID:        id,
		StartTime: start,
		Duration:  duration,
		Level:     2,
		Region:    Region{X: 0.25, Y: 0.25, Width: 0.5, Height: 0.5},
		Animation: AnimationSmooth,
		TextOverlay: TextOverlay{
			Position: PositionCenter,
		},
	}
}

func TestOverlapsTolerance(t *testing.T) {
	tests := []struct {
		name string
		a, b Event
		want bool
	}{
		{"disjoint", ev("a", 0, 1), ev("b", 2, 1), false},
		{"touching", ev("a", 0, 2), ev("b", 2, 1), false},
		{"within tolerance", ev("a", 0, 2.04), ev("b", 2, 1), false},
		{"beyond tolerance", ev("a", 0, 2.2), ev("b", 2, 1), true},
		{"contained", ev("a", 1, 0.5), ev("b", 0, 3), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.a, tt.b))
			assert.Equal(t, tt.want, Overlaps(tt.b, tt.a))
		})
	}
}

func TestPlace(t *testing.T) {
	tests := []struct {
		name         string
		existing     []Event
		candidate    Event
		total        float64
		wantStart    float64
		wantDuration float64
	}{
		{
			name:         "free slot keeps playhead",
			existing:     []Event{ev("e", 5, 2)},
			candidate:    ev("c", 1, 2),
			total:        10,
			wantStart:    1,
			wantDuration: 2,
		},
		{
			name:         "moves after latest overlapping end",
			existing:     []Event{ev("e1", 2, 2), ev("e2", 3, 2.5)},
			candidate:    ev("c", 3, 2),
			total:        20,
			wantStart:    5.6,
			wantDuration: 2,
		},
		{
			name:         "falls back before earliest overlapping start",
			existing:     []Event{ev("e", 6, 3)},
			candidate:    ev("c", 7, 2),
			total:        10,
			wantStart:    3.9,
			wantDuration: 2,
		},
		{
			name:         "shrinks to the floor when nothing fits",
			existing:     []Event{ev("e", 1, 8.5)},
			candidate:    ev("c", 2, 2),
			total:        10,
			wantStart:    2,
			wantDuration: MinDuration,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Place(tt.candidate, tt.existing, tt.total)
			assert.InDelta(t, tt.wantStart, got.StartTime, 1e-9)
			assert.InDelta(t, tt.wantDuration, got.Duration, 1e-9)
			assert.Equal(t, tt.candidate.ID, got.ID)
		})
	}
}

func TestResolveEditMovesAfterWhenBeforeIsNegative(t *testing.T) {
	s := NewStore(10)
	_, err := s.Insert(ev("b", 2, 2))
	require.NoError(t, err)
	_, err = s.Insert(ev("a", 6, 2))
	require.NoError(t, err)

	start := 1.0
	got, err := s.Edit("a", Patch{StartTime: &start})
	require.NoError(t, err)

	// 2 - 2 - 0.05 is negative, so the event lands after b instead.
	assert.InDelta(t, 4.05, got.StartTime, 1e-9)
	assert.InDelta(t, 2.0, got.Duration, 1e-9)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "a", list[1].ID)
}

func TestResolveEditMovesBeforeWhenThereIsRoom(t *testing.T) {
	s := NewStore(20)
	_, err := s.Insert(ev("b", 5, 2))
	require.NoError(t, err)
	_, err = s.Insert(ev("a", 10, 2))
	require.NoError(t, err)

	start := 4.0
	got, err := s.Edit("a", Patch{StartTime: &start})
	require.NoError(t, err)
	assert.InDelta(t, 5-2-OverlapTolerance, got.StartTime, 1e-9)
	assert.Equal(t, "a", s.List()[0].ID)
}

func TestResolveEditLaterEventClampsToTimelineEnd(t *testing.T) {
	s := NewStore(6)
	_, err := s.Insert(ev("b", 1, 4))
	require.NoError(t, err)
	_, err = s.Insert(ev("a", 5.5, 0.5))
	require.NoError(t, err)

	start, duration := 3.0, 2.5
	got, err := s.Edit("a", Patch{StartTime: &start, Duration: &duration})
	require.NoError(t, err)

	// After b does not fit (5.05 + 2.5 > 6) and before b is negative.
	assert.InDelta(t, 3.5, got.StartTime, 1e-9)
	assert.InDelta(t, 2.5, got.Duration, 1e-9)
}

func TestResolveEditKeepsPairsApart(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		s := NewStore(100)
		_, err := s.Insert(ev("a", r.Float64()*20, 0.5+r.Float64()*2))
		require.NoError(t, err)
		_, err = s.Insert(ev("b", r.Float64()*20, 0.5+r.Float64()*2))
		require.NoError(t, err)

		id := "a"
		if r.Intn(2) == 1 {
			id = "b"
		}
		start := r.Float64() * 20
		_, err = s.Edit(id, Patch{StartTime: &start})
		require.NoError(t, err)

		list := s.List()
		assert.LessOrEqual(t, list[0].StartTime, list[1].StartTime)
		assert.False(t, Overlaps(list[0], list[1]), "iteration %d: %+v", i, list)
	}
}

// A single pass can push the edited event from one neighbour onto another.
// This is kept on purpose; the check below pins the current behaviour.
func TestResolveEditSinglePassLeavesResidualOverlap(t *testing.T) {
	s := NewStore(20)
	for _, e := range []Event{ev("b", 2, 2), ev("c", 4.1, 2), ev("a", 10, 2)} {
		_, err := s.Insert(e)
		require.NoError(t, err)
	}

	start := 1.0
	got, err := s.Edit("a", Patch{StartTime: &start})
	require.NoError(t, err)

	b, err := s.Get("b")
	require.NoError(t, err)
	assert.InDelta(t, 2.05, got.StartTime, 1e-9)
	assert.True(t, Overlaps(got, b))
}

func TestConnections(t *testing.T) {
	events := []Event{ev("c", 4.05, 1), ev("a", 0, 2), ev("b", 2, 2)}
	conns := Connections(events, DefaultConnectionThreshold)
	require.Len(t, conns, 2)
	assert.Equal(t, "a", conns[0].From.ID)
	assert.Equal(t, "b", conns[0].To.ID)
	assert.InDelta(t, 0.05, conns[1].Gap, 1e-9)
}

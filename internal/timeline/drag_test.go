package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDragClamps(t *testing.T) {
	tests := []struct {
		name         string
		mode         DragMode
		delta        float64
		wantStart    float64
		wantDuration float64
	}{
		{"move left stops at zero", DragMove, -10, 0, 2},
		{"move right stops at timeline end", DragMove, 50, 8, 2},
		{"resize start keeps minimum", DragResizeStart, 5, 4.5, MinDuration},
		{"resize start grows left", DragResizeStart, -1, 2, 3},
		{"resize end keeps minimum", DragResizeEnd, -5, 3, MinDuration},
		{"resize end stops at timeline end", DragResizeEnd, 20, 3, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(10)
			_, err := s.Insert(ev("a", 3, 2))
			require.NoError(t, err)

			d, err := s.BeginDrag("a", tt.mode)
			require.NoError(t, err)
			got, err := d.Update(tt.delta)
			require.NoError(t, err)

			assert.InDelta(t, tt.wantStart, got.StartTime, 1e-9)
			assert.InDelta(t, tt.wantDuration, got.Duration, 1e-9)
		})
	}
}

func TestDragUpdatesAreRelativeToOrigin(t *testing.T) {
	s := NewStore(10)
	_, err := s.Insert(ev("a", 3, 2))
	require.NoError(t, err)

	d, err := s.BeginDrag("a", DragMove)
	require.NoError(t, err)
	_, err = d.Update(1)
	require.NoError(t, err)
	got, err := d.Update(2)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, got.StartTime, 1e-9)

	got, err = d.Cancel()
	require.NoError(t, err)
	assert.InDelta(t, 3.0, got.StartTime, 1e-9)

	_, err = d.Update(1)
	assert.ErrorIs(t, err, ErrDragEnded)
}

func TestDragResolvesOverlapWithNeighbour(t *testing.T) {
	s := NewStore(20)
	_, err := s.Insert(ev("a", 1, 2))
	require.NoError(t, err)
	_, err = s.Insert(ev("b", 6, 2))
	require.NoError(t, err)

	d, err := s.BeginDrag("a", DragMove)
	require.NoError(t, err)
	got, err := d.Update(4)
	require.NoError(t, err)
	d.End()

	b, err := s.Get("b")
	require.NoError(t, err)
	assert.False(t, Overlaps(got, b))
	assert.InDelta(t, 6-2-OverlapTolerance, got.StartTime, 1e-9)
}

func TestHitTest(t *testing.T) {
	events := []Event{ev("a", 1, 2), ev("b", 5, 2)}

	id, mode, ok := HitTest(events, 1.02, 0.1)
	require.True(t, ok)
	assert.Equal(t, "a", id)
	assert.Equal(t, DragResizeStart, mode)

	id, mode, ok = HitTest(events, 6.98, 0.1)
	require.True(t, ok)
	assert.Equal(t, "b", id)
	assert.Equal(t, DragResizeEnd, mode)

	id, mode, ok = HitTest(events, 2, 0.1)
	require.True(t, ok)
	assert.Equal(t, "a", id)
	assert.Equal(t, DragMove, mode)

	_, _, ok = HitTest(events, 4, 0.1)
	assert.False(t, ok)
}

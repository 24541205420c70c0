//nolint:funlen // ok for tests
package safetycar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/f1log-recorder-go/pkg/model"
)

const uid = uint64(42)

func TestStartWindowIdempotent(t *testing.T) {
	tr := NewTracker()
	assert.True(t, tr.StartWindow(uid, model.SafetyCar, 100, "test"))
	// a second deploy notification must not open a second window
	assert.False(t, tr.StartWindow(uid, model.SafetyCar, 105, "test"))
	require.Len(t, tr.Windows(uid), 1)
	assert.InDelta(t, 100.0, tr.Windows(uid)[0].Start, 0.001)
}

func TestEndWithoutOpenWindow(t *testing.T) {
	tr := NewTracker()
	assert.False(t, tr.EndWindow(uid, model.SafetyCar, 100, "test"))
	assert.Empty(t, tr.Windows(uid))
}

func TestWindowLifecycle(t *testing.T) {
	tr := NewTracker()
	tr.StartWindow(uid, model.SafetyCar, 100, "test")
	tr.EndWindow(uid, model.SafetyCar, 200, "test")
	tr.StartWindow(uid, model.VirtualSafetyCar, 300, "test")
	tr.EndWindow(uid, model.VirtualSafetyCar, 320, "test")

	windows := tr.Windows(uid)
	require.Len(t, windows, 2)
	assert.Equal(t, model.SafetyCar, windows[0].Kind)
	assert.InDelta(t, 200.0, windows[0].End, 0.001)
	assert.False(t, windows[0].Open)
	assert.Equal(t, model.VirtualSafetyCar, windows[1].Kind)
}

func TestIndependentKinds(t *testing.T) {
	tr := NewTracker()
	tr.StartWindow(uid, model.SafetyCar, 100, "test")
	// VSC has no open window, the end is a no-op
	assert.False(t, tr.EndWindow(uid, model.VirtualSafetyCar, 110, "test"))
	assert.True(t, tr.Windows(uid)[0].Open)
}

func TestOverlapKind(t *testing.T) {
	tr := NewTracker()
	tr.StartWindow(uid, model.SafetyCar, 100, "test")
	tr.EndWindow(uid, model.SafetyCar, 200, "test")

	tests := []struct {
		name       string
		start, end float64
		want       model.SafetyCarKind
		overlaps   bool
	}{
		{"fully inside", 120, 180, model.SafetyCar, true},
		{"straddles start", 80, 120, model.SafetyCar, true},
		{"straddles end", 180, 220, model.SafetyCar, true},
		{"before", 10, 90, "", false},
		{"after", 210, 300, "", false},
		{"touching end within epsilon", 199.96, 260, "", false},
		{"touching start within epsilon", 20, 100.04, "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			kind, ok := tr.OverlapKind(uid, tc.start, tc.end, 0.05)
			assert.Equal(t, tc.overlaps, ok)
			assert.Equal(t, tc.want, kind)
		})
	}
}

func TestOpenWindowExtendsToSessionEnd(t *testing.T) {
	tr := NewTracker()
	tr.StartWindow(uid, model.VirtualSafetyCar, 500, "test")

	// a lap long after the deploy still overlaps while the window is open
	kind, ok := tr.OverlapKind(uid, 5000, 5090, 0.05)
	require.True(t, ok)
	assert.Equal(t, model.VirtualSafetyCar, kind)
}

func TestCloseOpenWindows(t *testing.T) {
	tr := NewTracker()
	tr.StartWindow(uid, model.SafetyCar, 100, "test")
	tr.CloseOpenWindows(uid)

	windows := tr.Windows(uid)
	require.Len(t, windows, 1)
	assert.False(t, windows[0].Open)
	assert.InDelta(t, float64(model.OpenEndedWindowEnd), windows[0].End, 0.1)

	// force-closed windows still cover the rest of the session
	_, ok := tr.OverlapKind(uid, 9000, 9100, 0.05)
	assert.True(t, ok)
}

func TestWindowsPerSession(t *testing.T) {
	tr := NewTracker()
	tr.StartWindow(uid, model.SafetyCar, 100, "test")
	other := uint64(77)
	assert.Empty(t, tr.Windows(other))
	_, ok := tr.OverlapKind(other, 100, 200, 0.05)
	assert.False(t, ok)
}

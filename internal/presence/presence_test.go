package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecide_FirstScanIsEntry(t *testing.T) {
	t0 := time.Now()

	d, err := Decide("", time.Time{}, false, t0, DefaultCooldown, GateActions)
	require.NoError(t, err)
	assert.Equal(t, "in", d.Action)
	assert.True(t, d.Entering)
}

func TestDecide_TogglesAfterEntry(t *testing.T) {
	t0 := time.Now()

	d, err := Decide("in", t0, true, t0.Add(60*time.Second), DefaultCooldown, GateActions)
	require.NoError(t, err)
	assert.Equal(t, "out", d.Action)
	assert.False(t, d.Entering)
}

func TestDecide_TogglesAfterExit(t *testing.T) {
	t0 := time.Now()

	d, err := Decide("out", t0, true, t0.Add(60*time.Second), DefaultCooldown, GateActions)
	require.NoError(t, err)
	assert.Equal(t, "in", d.Action)
	assert.True(t, d.Entering)
}

func TestDecide_CooldownRejectsRapidRetap(t *testing.T) {
	t0 := time.Now()

	_, err := Decide("in", t0, true, t0.Add(10*time.Second), DefaultCooldown, GateActions)
	assert.ErrorIs(t, err, ErrDuplicateScan)
}

func TestDecide_ExactCooldownBoundaryIsAccepted(t *testing.T) {
	t0 := time.Now()

	d, err := Decide("in", t0, true, t0.Add(DefaultCooldown), DefaultCooldown, GateActions)
	require.NoError(t, err)
	assert.Equal(t, "out", d.Action)
}

// Consecutive accepted scans must strictly alternate entry and exit, and the
// presence flag derived from the last action must track Entering.
func TestDecide_AlternationProperty(t *testing.T) {
	acts := []Actions{GateActions, CirculationActions, BoardingActions, AttendanceActions}

	for _, a := range acts {
		lastAction := ""
		lastAt := time.Time{}
		hasLast := false
		at := time.Now()

		for i := 0; i < 10; i++ {
			d, err := Decide(lastAction, lastAt, hasLast, at, DefaultCooldown, a)
			require.NoError(t, err)
			if hasLast {
				assert.NotEqual(t, lastAction, d.Action, "consecutive log rows must not share an action")
			}
			assert.Equal(t, IsEntry(d.Action, a), d.Entering)

			lastAction = d.Action
			lastAt = at
			hasLast = true
			at = at.Add(time.Minute)
		}
	}
}

func TestDecide_CirculationActions(t *testing.T) {
	t0 := time.Now()

	d, err := Decide("", time.Time{}, false, t0, DefaultCooldown, CirculationActions)
	require.NoError(t, err)
	assert.Equal(t, "checkout", d.Action)

	d, err = Decide("checkout", t0, true, t0.Add(time.Hour), DefaultCooldown, CirculationActions)
	require.NoError(t, err)
	assert.Equal(t, "return", d.Action)
}

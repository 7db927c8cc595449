package event_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nostrkit.dev/event"
	"nostrkit.dev/internal/gen"
)

// TestGeneratedEventsRoundTripAndVerify fuzzes Marshal/Unmarshal/Verify
// against randomly generated, validly signed events, the same property
// the teacher's random event generator exercised the wire codec with.
func TestGeneratedEventsRoundTripAndVerify(t *testing.T) {
	for i := 0; i < 50; i++ {
		ev, wireSize, err := gen.Event(256)
		require.NoError(t, err)
		require.Greater(t, wireSize, 0)
		require.True(t, ev.Verify())

		b := ev.Marshal(nil)
		require.Equal(t, wireSize, len(b))

		round := event.New()
		rem, err := round.Unmarshal(b)
		require.NoError(t, err)
		require.Empty(t, rem)
		require.True(t, round.Verify())
		require.Equal(t, ev.IdString(), round.IdString())
		require.Equal(t, ev.ContentString(), round.ContentString())
	}
}

package connectivity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManualWatcherPublishesLevels(t *testing.T) {
	w := NewManualWatcher(false)
	require.False(t, w.Online())

	w.Set(true)
	require.True(t, w.Online())
	require.True(t, <-w.Changes())

	w.Set(false)
	require.False(t, <-w.Changes())
}

func TestManualWatcherNeverBlocksOnSlowConsumer(t *testing.T) {
	w := NewManualWatcher(false)

	// Nobody drains the channel; flaps beyond the buffer must be dropped
	// rather than stall the platform callback.
	for i := 0; i < 100; i++ {
		w.Set(i%2 == 0)
	}
	require.False(t, w.Online())
}

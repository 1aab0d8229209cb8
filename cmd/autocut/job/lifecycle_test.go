package job

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLifecycle(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		lc := newLifecycle("a.mp4")
		require.Equal(t, StatePending, lc.current())

		for _, tc := range []struct {
			event    string
			expected string
		}{
			{eventProbe, StateProbing},
			{eventExtract, StateExtracting},
			{eventDetect, StateDetecting},
			{eventCut, StateCutting},
			{eventFinish, StateDone},
		} {
			require.NoError(t, lc.event(context.Background(), tc.event))
			require.Equal(t, tc.expected, lc.current())
		}
	})

	t.Run("failure from any running state", func(t *testing.T) {
		lc := newLifecycle("a.mp4")
		require.NoError(t, lc.event(context.Background(), eventProbe))
		require.NoError(t, lc.event(context.Background(), eventExtract))
		require.NoError(t, lc.event(context.Background(), eventFail))
		require.Equal(t, StateFailed, lc.current())
	})

	t.Run("out of order", func(t *testing.T) {
		lc := newLifecycle("a.mp4")
		err := lc.event(context.Background(), eventCut)
		require.ErrorContains(t, err, "failed to cut from state pending")
		require.Equal(t, StatePending, lc.current())
	})

	t.Run("terminal states", func(t *testing.T) {
		lc := newLifecycle("a.mp4")
		require.NoError(t, lc.event(context.Background(), eventFail))
		require.Error(t, lc.event(context.Background(), eventFail))
		require.Error(t, lc.event(context.Background(), eventProbe))
		require.Equal(t, StateFailed, lc.current())
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		lc := newLifecycle("a.mp4")
		require.NoError(t, lc.event(ctx, eventFail))
		require.Equal(t, StateFailed, lc.current())
	})
}

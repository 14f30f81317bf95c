package taskgroup

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCollect_PreservesOrder(t *testing.T) {
	items := []int{5, 1, 3}
	outcomes := Collect(context.Background(), items, 0, func(ctx context.Context, item int) (int, error) {
		time.Sleep(time.Duration(item) * time.Millisecond)
		return item * 10, nil
	})
	require.Len(t, outcomes, 3)
	for i, outcome := range outcomes {
		require.Equal(t, items[i]*10, outcome.Value)
		require.Equal(t, i, outcome.Index)
		require.False(t, outcome.Recovered())
	}
}

func TestCollect_FailureDegradesToZero(t *testing.T) {
	boom := errors.New("boom")
	outcomes := Collect(context.Background(), []string{"ok", "bad", "ok2"}, 2, func(ctx context.Context, item string) ([]string, error) {
		if item == "bad" {
			return []string{"ignored"}, boom
		}
		return []string{item}, nil
	})
	require.Len(t, outcomes, 3)
	require.Equal(t, []string{"ok"}, outcomes[0].Value)
	require.True(t, outcomes[1].Recovered())
	require.ErrorIs(t, outcomes[1].Err, boom)
	require.Nil(t, outcomes[1].Value)
	require.Equal(t, []string{"ok2"}, outcomes[2].Value)
}

func TestCollect_FailureDoesNotCancelSiblings(t *testing.T) {
	outcomes := Collect(context.Background(), []int{0, 1}, 0, func(ctx context.Context, item int) (int, error) {
		if item == 0 {
			return 0, errors.New("fail fast")
		}
		time.Sleep(5 * time.Millisecond)
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 1, nil
	})
	require.NoError(t, outcomes[1].Err)
	require.Equal(t, 1, outcomes[1].Value)
}

func TestCollect_RecoversPanics(t *testing.T) {
	outcomes := Collect(context.Background(), []int{1}, 0, func(ctx context.Context, item int) (int, error) {
		panic("kaboom")
	})
	require.True(t, outcomes[0].Recovered())
	require.Contains(t, outcomes[0].Err.Error(), "kaboom")
}

func TestCollect_RespectsLimit(t *testing.T) {
	var inFlight, peak int32
	Collect(context.Background(), make([]int, 8), 2, func(ctx context.Context, item int) (int, error) {
		current := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if current <= old || atomic.CompareAndSwapInt32(&peak, old, current) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return 0, nil
	})
	require.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestCollect_Empty(t *testing.T) {
	outcomes := Collect(context.Background(), []int(nil), 0, func(ctx context.Context, item int) (int, error) {
		return item, nil
	})
	require.Empty(t, outcomes)
}

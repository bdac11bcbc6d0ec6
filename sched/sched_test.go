package sched_test

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/fiberio/fiber"
	"github.com/momentics/fiberio/sched"
)

func TestSleepSuspendsFiber(t *testing.T) {
	start := time.Now()
	err := sched.Run(context.Background(), func(ctx context.Context) error {
		sched.Sleep(ctx, 20*time.Millisecond)
		return nil
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSleepersWakeInDeadlineOrder(t *testing.T) {
	var order []int
	err := sched.Run(context.Background(), func(ctx context.Context) error {
		var dones []*fiber.Ivar[error]
		for _, d := range []struct {
			id    int
			delay time.Duration
		}{{1, 30 * time.Millisecond}, {0, 5 * time.Millisecond}} {
			d := d
			dones = append(dones, fiber.Go(ctx, func(ctx context.Context) error {
				sched.Sleep(ctx, d.delay)
				order = append(order, d.id)
				return nil
			}))
		}
		for _, done := range dones {
			done.Read(ctx)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, order)
}

func TestDeadlockDetection(t *testing.T) {
	err := sched.Run(context.Background(), func(ctx context.Context) error {
		fiber.NewIvar[int]().Read(ctx) // unfillable, nothing else running
		return nil
	})
	require.ErrorIs(t, err, sched.ErrDeadlock)
}

func TestWaitProcessReapsChild(t *testing.T) {
	err := sched.Run(context.Background(), func(ctx context.Context) error {
		cmd := exec.Command("true")
		require.NoError(t, cmd.Start())
		status, err := sched.WaitProcess(ctx, cmd.Process.Pid)
		require.NoError(t, err)
		require.True(t, status.Exited())
		require.Equal(t, 0, status.ExitStatus())
		return nil
	})
	require.NoError(t, err)
}

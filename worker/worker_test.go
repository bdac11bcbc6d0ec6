package worker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/fiberio/sched"
	"github.com/momentics/fiberio/worker"
)

func TestOffloadReturnsValue(t *testing.T) {
	err := sched.Run(context.Background(), func(ctx context.Context) error {
		w := worker.New(ctx)
		task, err := worker.Submit(w, func() (int, error) { return 6 * 7, nil })
		require.NoError(t, err)
		v, err := task.Await(ctx)
		require.NoError(t, err)
		require.Equal(t, 42, v)
		return w.Close(ctx)
	})
	require.NoError(t, err)
}

func TestJobsCompleteInSubmissionOrder(t *testing.T) {
	err := sched.Run(context.Background(), func(ctx context.Context) error {
		w := worker.New(ctx)
		var order []int
		var tasks []*worker.Task[int]
		for i := 0; i < 5; i++ {
			i := i
			task, err := worker.Submit(w, func() (int, error) {
				order = append(order, i) // worker thread runs jobs one at a time
				return i, nil
			})
			require.NoError(t, err)
			tasks = append(tasks, task)
		}
		for i, task := range tasks {
			v, err := task.Await(ctx)
			require.NoError(t, err)
			require.Equal(t, i, v)
		}
		require.Equal(t, []int{0, 1, 2, 3, 4}, order)
		return w.Close(ctx)
	})
	require.NoError(t, err)
}

func TestThunkErrorSurfaces(t *testing.T) {
	sentinel := errors.New("thunk failed")
	err := sched.Run(context.Background(), func(ctx context.Context) error {
		w := worker.New(ctx)
		task, err := worker.Submit(w, func() (struct{}, error) { return struct{}{}, sentinel })
		require.NoError(t, err)
		_, err = task.Await(ctx)
		require.ErrorIs(t, err, sentinel)
		return w.Close(ctx)
	})
	require.NoError(t, err)
}

func TestPanicCapturedWithBacktrace(t *testing.T) {
	err := sched.Run(context.Background(), func(ctx context.Context) error {
		w := worker.New(ctx)
		task, err := worker.Submit(w, func() (int, error) { panic("boom") })
		require.NoError(t, err)
		_, err = task.Await(ctx)

		var pe *worker.PanicError
		require.ErrorAs(t, err, &pe)
		require.Equal(t, "boom", pe.Value)
		require.NotEmpty(t, pe.Stack)

		// The scheduler survives: another job still runs.
		task2, err := worker.Submit(w, func() (int, error) { return 1, nil })
		require.NoError(t, err)
		v, err := task2.Await(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, v)
		return w.Close(ctx)
	})
	require.NoError(t, err)
}

func TestCancelDropsUnconsumedJob(t *testing.T) {
	err := sched.Run(context.Background(), func(ctx context.Context) error {
		w := worker.New(ctx)
		release := make(chan struct{})
		blocker, err := worker.Submit(w, func() (struct{}, error) {
			<-release
			return struct{}{}, nil
		})
		require.NoError(t, err)

		victim, err := worker.Submit(w, func() (int, error) { return 0, nil })
		require.NoError(t, err)
		victim.Cancel()
		victim.Cancel() // idempotent

		close(release)
		_, err = blocker.Await(ctx)
		require.NoError(t, err)
		_, err = victim.Await(ctx)
		require.ErrorIs(t, err, worker.ErrCancelled)
		return w.Close(ctx)
	})
	require.NoError(t, err)
}

func TestSubmitAfterCloseFails(t *testing.T) {
	err := sched.Run(context.Background(), func(ctx context.Context) error {
		w := worker.New(ctx)
		require.NoError(t, w.Close(ctx))
		_, err := worker.Submit(w, func() (int, error) { return 0, nil })
		require.ErrorIs(t, err, worker.ErrStopped)
		require.ErrorIs(t, w.Close(ctx), worker.ErrStopped)
		return nil
	})
	require.NoError(t, err)
}

package systems

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

func TestNewJobSystemRejectsBadSizes(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}

func TestRunAndWait(t *testing.T) {
	js, err := NewJobSystem(4, 8)
	require.NoError(t, err)
	defer js.Shutdown()

	var completed, callbacks atomic.Int32
	boom := errors.New("boom")
	tasks := make([]metadata.JobTask, 6)
	for i := range tasks {
		fail := i == 3
		tasks[i] = metadata.JobTask{
			Name:        "task",
			InputParams: i,
			OnStart: func(input any, out chan<- any) error {
				if fail {
					return boom
				}
				out <- input.(int) * 2
				return nil
			},
			OnComplete: func(results []any) {
				completed.Add(1)
			},
			OnCompletionCallback: func() {
				callbacks.Add(1)
			},
		}
	}

	errs := js.RunAndWait(tasks)
	require.Len(t, errs, 6)
	for i, err := range errs {
		if i == 3 {
			assert.ErrorIs(t, err, boom)
		} else {
			assert.NoError(t, err)
		}
	}
	assert.Equal(t, int32(5), completed.Load())
	assert.Equal(t, int32(6), callbacks.Load())
}

func TestJobResultsReachOnComplete(t *testing.T) {
	js, err := NewJobSystem(1, 0)
	require.NoError(t, err)
	defer js.Shutdown()

	var got []any
	errs := js.RunAndWait([]metadata.JobTask{{
		Name: "results",
		OnStart: func(input any, out chan<- any) error {
			out <- "a"
			out <- "b"
			return nil
		},
		OnComplete: func(results []any) { got = results },
	}})
	assert.NoError(t, errs[0])
	assert.Equal(t, []any{"a", "b"}, got)
}

func TestSubmitAfterShutdown(t *testing.T) {
	js, err := NewJobSystem(2, 0)
	require.NoError(t, err)
	require.NoError(t, js.Shutdown())
	require.NoError(t, js.Shutdown())

	err = js.Submit(metadata.JobTask{OnStart: func(any, chan<- any) error { return nil }})
	assert.ErrorIs(t, err, ErrJobSystemClosed)

	err = js.Submit(metadata.JobTask{Name: "empty"})
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

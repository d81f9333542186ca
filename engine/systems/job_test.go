package systems

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobSystemValidatesArguments(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)

	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}

func TestJobSystemRunsCallbacks(t *testing.T) {
	js, err := NewJobSystem(4, 0)
	require.NoError(t, err)

	var (
		mu      sync.Mutex
		results []int
		failed  atomic.Int32
	)
	boom := errors.New("boom")

	for i := 0; i < 10; i++ {
		i := i
		require.NoError(t, js.Submit(JobTask{
			Name: "square",
			Run: func() (interface{}, error) {
				if i%5 == 0 {
					return nil, boom
				}
				return i * i, nil
			},
			OnComplete: func(result interface{}) {
				mu.Lock()
				results = append(results, result.(int))
				mu.Unlock()
			},
			OnFailure: func(err error) {
				assert.ErrorIs(t, err, boom)
				failed.Add(1)
			},
		}))
	}
	js.Wait()

	assert.Len(t, results, 8)
	assert.Equal(t, int32(2), failed.Load())
	assert.NoError(t, js.Shutdown())
}

func TestJobSystemRecoversPanics(t *testing.T) {
	js, err := NewJobSystem(1, 1)
	require.NoError(t, err)

	var got error
	require.NoError(t, js.Submit(JobTask{
		Name:      "panics",
		Run:       func() (interface{}, error) { panic("oops") },
		OnFailure: func(err error) { got = err },
	}))
	require.NoError(t, js.Submit(JobTask{Name: "nil entry point", OnFailure: func(err error) {}}))
	js.Wait()

	require.Error(t, got)
	assert.Contains(t, got.Error(), "oops")

	ran := false
	require.NoError(t, js.Submit(JobTask{Name: "after", Run: func() (interface{}, error) { ran = true; return nil, nil }}))
	js.Wait()
	assert.True(t, ran, "worker must survive a panicking job")
	assert.NoError(t, js.Shutdown())
}

func TestSubmitAfterShutdown(t *testing.T) {
	js, err := NewJobSystem(2, 0)
	require.NoError(t, err)
	assert.NoError(t, js.Shutdown())
	assert.NoError(t, js.Shutdown())
	assert.ErrorIs(t, js.Submit(JobTask{Name: "late"}), ErrJobSystemClosed)
}

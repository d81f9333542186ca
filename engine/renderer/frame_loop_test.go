package renderer

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/spaghettifunk/vkcube/engine/core"
	"github.com/spaghettifunk/vkcube/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fenceState uint8

const (
	fenceSignaled fenceState = iota
	fenceReset
	fencePending
)

// fakeBackend emulates the swapchain and slot synchronization of a device.
type fakeBackend struct {
	t      *testing.T
	calls  []string
	fences [MaxFramesInFlight]fenceState

	imageCount uint32
	nextImage  uint32
	width      uint32
	height     uint32

	acquireStatus []PresentStatus
	presentStatus []PresentStatus
	stale         bool

	recordedSlots []uint32
	uniforms      []scene.UniformBufferObject
	recreateSizes [][2]uint32
	idleWaits     int

	acquireErr error
	presentErr error

	// onPresent runs inside Present, before it returns.
	onPresent func()
}

func newFakeBackend(t *testing.T) *fakeBackend {
	return &fakeBackend{t: t, imageCount: 3, width: 800, height: 600}
}

func (b *fakeBackend) WaitForFence(slot uint32) error {
	b.calls = append(b.calls, fmt.Sprintf("wait:%d", slot))
	require.NotEqual(b.t, fenceReset, b.fences[slot], "waiting on a fence that will never be signaled")
	b.fences[slot] = fenceSignaled
	return nil
}

func (b *fakeBackend) AcquireNextImage(slot uint32) (uint32, PresentStatus, error) {
	b.calls = append(b.calls, fmt.Sprintf("acquire:%d", slot))
	if b.acquireErr != nil {
		return 0, StatusOptimal, b.acquireErr
	}
	if b.stale {
		return 0, StatusOutOfDate, nil
	}
	status := StatusOptimal
	if len(b.acquireStatus) > 0 {
		status, b.acquireStatus = b.acquireStatus[0], b.acquireStatus[1:]
	}
	if status == StatusOutOfDate {
		b.stale = true
		return 0, status, nil
	}
	idx := b.nextImage
	b.nextImage = (b.nextImage + 1) % b.imageCount
	return idx, status, nil
}

func (b *fakeBackend) RecordFrame(slot uint32, imageIndex uint32, ubo *scene.UniformBufferObject) error {
	b.calls = append(b.calls, fmt.Sprintf("record:%d:%d", slot, imageIndex))
	require.Equal(b.t, fenceSignaled, b.fences[slot], "slot %d re-recorded while in flight", slot)
	require.False(b.t, b.stale, "recording against a stale swapchain")
	b.fences[slot] = fenceReset
	b.recordedSlots = append(b.recordedSlots, slot)
	b.uniforms = append(b.uniforms, *ubo)
	return nil
}

func (b *fakeBackend) Submit(slot uint32) error {
	b.calls = append(b.calls, fmt.Sprintf("submit:%d", slot))
	require.Equal(b.t, fenceReset, b.fences[slot])
	b.fences[slot] = fencePending
	return nil
}

func (b *fakeBackend) Present(slot uint32, imageIndex uint32) (PresentStatus, error) {
	b.calls = append(b.calls, fmt.Sprintf("present:%d:%d", slot, imageIndex))
	if b.onPresent != nil {
		b.onPresent()
	}
	if b.presentErr != nil {
		return StatusOptimal, b.presentErr
	}
	if b.stale {
		return StatusOutOfDate, nil
	}
	status := StatusOptimal
	if len(b.presentStatus) > 0 {
		status, b.presentStatus = b.presentStatus[0], b.presentStatus[1:]
	}
	if status == StatusOutOfDate {
		b.stale = true
	}
	return status, nil
}

func (b *fakeBackend) RecreateSwapchain(width, height uint32) error {
	b.calls = append(b.calls, fmt.Sprintf("recreate:%dx%d", width, height))
	require.NotZero(b.t, width)
	require.NotZero(b.t, height)
	for i, f := range b.fences {
		require.NotEqual(b.t, fencePending, f, "slot %d still in flight during recreation", i)
	}
	b.width, b.height = width, height
	b.stale = false
	b.nextImage = 0
	b.recreateSizes = append(b.recreateSizes, [2]uint32{width, height})
	return nil
}

func (b *fakeBackend) WaitIdle() error {
	b.calls = append(b.calls, "idle")
	b.idleWaits++
	for i := range b.fences {
		if b.fences[i] == fencePending {
			b.fences[i] = fenceSignaled
		}
	}
	return nil
}

func (b *fakeBackend) Extent() (uint32, uint32) {
	return b.width, b.height
}

type fakeWindow struct {
	width, height int
	resized       bool
	closeAfter    int
	polls         int
	waits         int
	// sizes handed out by successive WaitEvents calls
	onWait [][2]int
}

func (w *fakeWindow) ShouldClose() bool {
	return w.closeAfter >= 0 && w.polls >= w.closeAfter
}

func (w *fakeWindow) PollEvents() {
	w.polls++
}

func (w *fakeWindow) WaitEvents() {
	w.waits++
	if len(w.onWait) > 0 {
		w.width, w.height = w.onWait[0][0], w.onWait[0][1]
		w.onWait = w.onWait[1:]
	}
}

func (w *fakeWindow) FramebufferSize() (int, int) {
	return w.width, w.height
}

func (w *fakeWindow) ConsumeResized() bool {
	r := w.resized
	w.resized = false
	return r
}

func (w *fakeWindow) resize(width, height int) {
	w.width, w.height = width, height
	w.resized = true
}

func newWindow() *fakeWindow {
	return &fakeWindow{width: 800, height: 600, closeAfter: -1}
}

func TestRunFrameOrdering(t *testing.T) {
	b := newFakeBackend(t)
	fl := NewFrameLoop(b, newWindow())

	require.NoError(t, fl.RunFrame())
	assert.Equal(t, []string{"wait:0", "acquire:0", "record:0:0", "submit:0", "present:0:0"}, b.calls)
	assert.Equal(t, uint32(1), fl.Slot())
	assert.Equal(t, FrameStateIdle, fl.State())
	assert.Equal(t, uint64(1), fl.FrameCount())
}

func TestSlotsCycle(t *testing.T) {
	b := newFakeBackend(t)
	fl := NewFrameLoop(b, newWindow())

	for i := 0; i < 10; i++ {
		assert.Equal(t, uint32(i)%MaxFramesInFlight, fl.Slot())
		require.NoError(t, fl.RunFrame())
	}
	assert.Equal(t, []uint32{0, 1, 0, 1, 0, 1, 0, 1, 0, 1}, b.recordedSlots)
}

func TestFenceWaitedBeforeReuse(t *testing.T) {
	b := newFakeBackend(t)
	fl := NewFrameLoop(b, newWindow())

	for i := 0; i < 6; i++ {
		require.NoError(t, fl.RunFrame())
	}

	lastWait := map[string]int{}
	for i, c := range b.calls {
		var slot, image int
		if n, _ := fmt.Sscanf(c, "wait:%d", &slot); n == 1 {
			lastWait[fmt.Sprint(slot)] = i
		}
		if n, _ := fmt.Sscanf(c, "record:%d:%d", &slot, &image); n == 2 {
			w, ok := lastWait[fmt.Sprint(slot)]
			require.True(t, ok, "slot %d recorded without a fence wait", slot)
			assert.Less(t, w, i)
		}
	}
}

func TestAcquireOutOfDateRecreates(t *testing.T) {
	b := newFakeBackend(t)
	w := newWindow()
	fl := NewFrameLoop(b, w)

	require.NoError(t, fl.RunFrame())
	b.acquireStatus = []PresentStatus{StatusOutOfDate}

	require.NoError(t, fl.RunFrame())
	assert.Equal(t, uint32(1), fl.Slot(), "invalidated iterations keep the slot")
	assert.Equal(t, [][2]uint32{{800, 600}}, b.recreateSizes)
	assert.Equal(t, uint64(1), fl.Recreations())

	require.NoError(t, fl.RunFrame())
	assert.Equal(t, []uint32{0, 1}, b.recordedSlots)
	assert.Equal(t, "present:1:0", b.calls[len(b.calls)-1])
	assert.Equal(t, uint32(0), fl.Slot())
}

func TestSuboptimalAcquireRecreates(t *testing.T) {
	b := newFakeBackend(t)
	fl := NewFrameLoop(b, newWindow())

	b.acquireStatus = []PresentStatus{StatusSuboptimal}
	require.NoError(t, fl.RunFrame())
	assert.Empty(t, b.recordedSlots)
	assert.Len(t, b.recreateSizes, 1)
	assert.Equal(t, uint32(0), fl.Slot())
}

func TestPresentStaleRecreates(t *testing.T) {
	for _, status := range []PresentStatus{StatusOutOfDate, StatusSuboptimal} {
		t.Run(status.String(), func(t *testing.T) {
			b := newFakeBackend(t)
			fl := NewFrameLoop(b, newWindow())

			b.presentStatus = []PresentStatus{status}
			require.NoError(t, fl.RunFrame())
			assert.Equal(t, uint32(0), fl.Slot())
			assert.Len(t, b.recreateSizes, 1)
			assert.Equal(t, "idle", b.calls[len(b.calls)-2], "device drained before rebuild")

			require.NoError(t, fl.RunFrame())
			assert.Equal(t, []uint32{0, 0}, b.recordedSlots)
			assert.Equal(t, uint32(1), fl.Slot())
		})
	}
}

func TestResizeBeforeAcquireSkipsFrame(t *testing.T) {
	b := newFakeBackend(t)
	w := newWindow()
	fl := NewFrameLoop(b, w)

	w.resize(640, 480)
	require.NoError(t, fl.RunFrame())
	assert.Equal(t, []string{"wait:0", "idle", "recreate:640x480"}, b.calls)
	assert.Empty(t, b.recordedSlots, "nothing is recorded against the old extent")
	assert.Zero(t, fl.FrameCount())
	assert.Equal(t, uint32(0), fl.Slot())
	assert.False(t, w.resized)

	require.NoError(t, fl.RunFrame())
	assert.Equal(t, []uint32{0}, b.recordedSlots)
	assert.Equal(t, uint32(1), fl.Slot())
	width, height := b.Extent()
	assert.Equal(t, uint32(640), width)
	assert.Equal(t, uint32(480), height)
}

func TestResizeDuringFrameRecreates(t *testing.T) {
	b := newFakeBackend(t)
	w := newWindow()
	fl := NewFrameLoop(b, w)

	b.onPresent = func() {
		w.resize(640, 480)
		b.onPresent = nil
	}
	require.NoError(t, fl.RunFrame())
	assert.Equal(t, [][2]uint32{{640, 480}}, b.recreateSizes)
	assert.Equal(t, uint64(1), fl.FrameCount())
	assert.Equal(t, uint32(0), fl.Slot(), "invalidated iterations keep the slot")
	assert.Equal(t, "recreate:640x480", b.calls[len(b.calls)-1])
}

func TestRepeatedResizesRecover(t *testing.T) {
	b := newFakeBackend(t)
	w := newWindow()
	fl := NewFrameLoop(b, w)

	for i := 0; i < 20; i++ {
		if i%3 == 0 {
			b.acquireStatus = []PresentStatus{StatusOutOfDate}
		} else {
			w.resize(800+i, 600+i)
		}
		require.NoError(t, fl.RunFrame())
		require.NoError(t, fl.RunFrame())
	}

	assert.Equal(t, uint64(20), fl.Recreations())
	last := b.recreateSizes[len(b.recreateSizes)-1]
	assert.Equal(t, [2]uint32{819, 619}, last)

	// after every rebuild the following acquire succeeded and was recorded
	for i, c := range b.calls {
		if strings.HasPrefix(c, "recreate") {
			require.Greater(t, len(b.calls), i+3)
			assert.Contains(t, b.calls[i+2], "acquire:")
			assert.Contains(t, b.calls[i+3], "record:")
		}
	}
}

func TestMinimizedWindowBlocksUntilRestored(t *testing.T) {
	b := newFakeBackend(t)
	w := newWindow()
	fl := NewFrameLoop(b, w)

	w.resize(0, 0)
	w.onWait = [][2]int{{0, 0}, {0, 0}, {300, 200}}
	require.NoError(t, fl.RunFrame())

	assert.Equal(t, 3, w.waits)
	assert.Equal(t, [][2]uint32{{300, 200}}, b.recreateSizes)
	assert.Equal(t, FrameStateIdle, fl.State())

	assert.Empty(t, b.recordedSlots)

	require.NoError(t, fl.RunFrame())
	assert.Len(t, b.recordedSlots, 1)
}

func TestMinimizedWindowClosed(t *testing.T) {
	b := newFakeBackend(t)
	w := newWindow()
	fl := NewFrameLoop(b, w)

	w.resize(0, 0)
	w.closeAfter = 0
	require.NoError(t, fl.RunFrame())
	assert.Empty(t, b.recreateSizes)
	assert.Zero(t, w.waits)
}

func TestInvalidateForcesRebuild(t *testing.T) {
	b := newFakeBackend(t)
	fl := NewFrameLoop(b, newWindow())

	require.NoError(t, fl.RunFrame())
	fl.Invalidate()
	require.NoError(t, fl.RunFrame())

	assert.Equal(t, []string{"wait:1", "idle", "recreate:800x600"}, b.calls[5:])
	assert.Equal(t, uint32(1), fl.Slot())
}

func TestFatalErrors(t *testing.T) {
	boom := errors.New("device lost")

	b := newFakeBackend(t)
	b.acquireErr = boom
	err := NewFrameLoop(b, newWindow()).RunFrame()
	assert.True(t, core.IsFatal(err))
	assert.ErrorIs(t, err, boom)

	b = newFakeBackend(t)
	b.presentErr = boom
	err = NewFrameLoop(b, newWindow()).RunFrame()
	assert.True(t, core.IsFatal(err))
	assert.ErrorIs(t, err, boom)
}

func TestRun(t *testing.T) {
	b := newFakeBackend(t)
	w := newWindow()
	w.closeAfter = 5
	fl := NewFrameLoop(b, w)

	require.NoError(t, fl.Run())
	assert.Equal(t, uint64(5), fl.FrameCount())
	assert.Equal(t, "idle", b.calls[len(b.calls)-1])

	// uniforms only depend on the elapsed time, which never goes backwards
	for i := 1; i < len(b.uniforms); i++ {
		assert.Equal(t, b.uniforms[0].View, b.uniforms[i].View)
		assert.Equal(t, b.uniforms[0].Proj, b.uniforms[i].Proj)
	}
}

func TestRunStopsOnError(t *testing.T) {
	b := newFakeBackend(t)
	b.presentErr = errors.New("surface lost")
	w := newWindow()
	fl := NewFrameLoop(b, w)

	err := fl.Run()
	require.Error(t, err)
	assert.True(t, core.IsFatal(err))
	assert.Equal(t, 1, w.polls)
	assert.Equal(t, 1, b.idleWaits)
}

func TestRunUpdateHook(t *testing.T) {
	b := newFakeBackend(t)
	w := newWindow()
	w.closeAfter = 3
	fl := NewFrameLoop(b, w)

	var deltas []float64
	fl.SetUpdateHook(func(delta float64) error {
		deltas = append(deltas, delta)
		return nil
	})
	require.NoError(t, fl.Run())
	require.Len(t, deltas, 3)
	for _, d := range deltas {
		assert.GreaterOrEqual(t, d, 0.0)
	}
}

func TestRunUpdateHookError(t *testing.T) {
	b := newFakeBackend(t)
	w := newWindow()
	fl := NewFrameLoop(b, w)

	hookErr := errors.New("quit requested")
	fl.SetUpdateHook(func(float64) error { return hookErr })

	err := fl.Run()
	assert.ErrorIs(t, err, hookErr)
	assert.Equal(t, uint64(1), fl.FrameCount())
	assert.Equal(t, 1, b.idleWaits)
}

func TestStateTransitions(t *testing.T) {
	b := newFakeBackend(t)
	w := newWindow()
	fl := NewFrameLoop(b, w)

	var seen []FrameState
	fl.SetStateHook(func(from, to FrameState) {
		require.Equal(t, fl.State(), from)
		seen = append(seen, to)
	})

	require.NoError(t, fl.RunFrame())
	assert.Equal(t, []FrameState{
		FrameStateAcquiring,
		FrameStateRecording,
		FrameStateSubmitted,
		FrameStatePresenting,
		FrameStateIdle,
	}, seen)

	seen = nil
	b.acquireStatus = []PresentStatus{StatusSuboptimal}
	require.NoError(t, fl.RunFrame())
	assert.Equal(t, []FrameState{FrameStateAcquiring, FrameStateInvalidated, FrameStateIdle}, seen)

	seen = nil
	b.presentStatus = []PresentStatus{StatusOutOfDate}
	require.NoError(t, fl.RunFrame())
	assert.Equal(t, []FrameState{
		FrameStateAcquiring,
		FrameStateRecording,
		FrameStateSubmitted,
		FrameStatePresenting,
		FrameStateInvalidated,
		FrameStateIdle,
	}, seen)
}

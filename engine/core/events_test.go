package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type listener struct {
	name string
	got  []SystemEventCode
}

func TestEventRegisterAndFire(t *testing.T) {
	es := NewEventSystem()
	first := &listener{name: "first"}
	second := &listener{name: "second"}

	record := func(handled bool) FnOnEvent {
		return func(code SystemEventCode, sender interface{}, inst interface{}, data EventContext) bool {
			l := inst.(*listener)
			l.got = append(l.got, code)
			return handled
		}
	}

	assert.True(t, es.Register(EVENT_CODE_KEY_PRESSED, first, record(false)))
	assert.True(t, es.Register(EVENT_CODE_KEY_PRESSED, second, record(true)))
	assert.False(t, es.Register(EVENT_CODE_KEY_PRESSED, first, record(false)), "duplicate listener")
	assert.False(t, es.Register(EVENT_CODE_KEY_PRESSED, &listener{}, nil), "nil callback")

	assert.True(t, es.Fire(EVENT_CODE_KEY_PRESSED, nil, EventContext{}))
	assert.Equal(t, []SystemEventCode{EVENT_CODE_KEY_PRESSED}, first.got)
	assert.Equal(t, []SystemEventCode{EVENT_CODE_KEY_PRESSED}, second.got)

	assert.False(t, es.Fire(EVENT_CODE_RESIZED, nil, EventContext{}), "nobody listens")
}

func TestEventHandledStopsPropagation(t *testing.T) {
	es := NewEventSystem()
	calls := 0
	stop := func(SystemEventCode, interface{}, interface{}, EventContext) bool {
		calls++
		return true
	}
	es.Register(EVENT_CODE_APPLICATION_QUIT, "a", stop)
	es.Register(EVENT_CODE_APPLICATION_QUIT, "b", stop)

	assert.True(t, es.Fire(EVENT_CODE_APPLICATION_QUIT, nil, EventContext{}))
	assert.Equal(t, 1, calls)
}

func TestEventUnregister(t *testing.T) {
	es := NewEventSystem()
	var sizes [][2]uint32
	onResize := func(code SystemEventCode, sender interface{}, inst interface{}, data EventContext) bool {
		sizes = append(sizes, [2]uint32{data.Data.U32[0], data.Data.U32[1]})
		return false
	}
	es.Register(EVENT_CODE_RESIZED, "window", onResize)

	ctx := EventContext{}
	ctx.Data.U32[0] = 640
	ctx.Data.U32[1] = 480
	es.Fire(EVENT_CODE_RESIZED, nil, ctx)

	assert.True(t, es.Unregister(EVENT_CODE_RESIZED, "window"))
	assert.False(t, es.Unregister(EVENT_CODE_RESIZED, "window"))
	es.Fire(EVENT_CODE_RESIZED, nil, ctx)

	assert.Equal(t, [][2]uint32{{640, 480}}, sizes)
}

func TestEventShutdown(t *testing.T) {
	es := NewEventSystem()
	es.Register(EVENT_CODE_ASSET_CHANGED, nil, func(SystemEventCode, interface{}, interface{}, EventContext) bool {
		return true
	})
	es.Shutdown()
	assert.False(t, es.Fire(EVENT_CODE_ASSET_CHANGED, nil, EventContext{}))
}

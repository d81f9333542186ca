package renderer

// MaxFramesInFlight is the number of frame slots, the upper bound of frames
// queued on the GPU at any time.
const MaxFramesInFlight uint32 = 2

type FrameState uint8

const (
	FrameStateIdle FrameState = iota
	FrameStateAcquiring
	FrameStateRecording
	FrameStateSubmitted
	FrameStatePresenting
	FrameStateInvalidated
)

func (s FrameState) String() string {
	switch s {
	case FrameStateIdle:
		return "idle"
	case FrameStateAcquiring:
		return "acquiring"
	case FrameStateRecording:
		return "recording"
	case FrameStateSubmitted:
		return "submitted"
	case FrameStatePresenting:
		return "presenting"
	case FrameStateInvalidated:
		return "invalidated"
	default:
		return "unknown"
	}
}

package tts

// Decision is the verdict a worker loop receives from Checkpoint.
type Decision int

const (
	// Continue means no control request is pending.
	Continue Decision = iota
	// PauseAndWait means a pause was honored: the worker blocked inside
	// Checkpoint until the session was resumed. Callers treat it like
	// Continue; the distinct value exists so loops can log the wait.
	PauseAndWait
	// StopNow means stop or quit was requested and the worker must wind
	// down without touching the queue again.
	StopNow
)

// String returns the string representation of the decision.
func (d Decision) String() string {
	switch d {
	case Continue:
		return "continue"
	case PauseAndWait:
		return "pause-and-wait"
	case StopNow:
		return "stop-now"
	default:
		return "unknown"
	}
}

// ProducerState tracks where the synthesis loop currently is.
type ProducerState int32

const (
	// ProducerIdle indicates the loop has not started.
	ProducerIdle ProducerState = iota
	// ProducerFetching indicates the loop is pulling the next segment.
	ProducerFetching
	// ProducerSynthesizing indicates a segment is being synthesized.
	ProducerSynthesizing
	// ProducerEnqueuing indicates frames are being pushed to the queue.
	ProducerEnqueuing
	// ProducerDraining indicates input is exhausted and the queue is
	// being closed so the consumer can finish.
	ProducerDraining
	// ProducerDone indicates the loop has exited.
	ProducerDone
)

// String returns the string representation of the state.
func (s ProducerState) String() string {
	switch s {
	case ProducerIdle:
		return "idle"
	case ProducerFetching:
		return "fetching"
	case ProducerSynthesizing:
		return "synthesizing"
	case ProducerEnqueuing:
		return "enqueuing"
	case ProducerDraining:
		return "draining"
	case ProducerDone:
		return "done"
	default:
		return "unknown"
	}
}

// ConsumerState tracks where the playback loop currently is.
type ConsumerState int32

const (
	// ConsumerIdle indicates the loop has not started.
	ConsumerIdle ConsumerState = iota
	// ConsumerWaiting indicates the loop is blocked on the frame queue.
	ConsumerWaiting
	// ConsumerPlaying indicates a frame is being written to the output.
	ConsumerPlaying
	// ConsumerDone indicates the loop has exited.
	ConsumerDone
)

// String returns the string representation of the state.
func (s ConsumerState) String() string {
	switch s {
	case ConsumerIdle:
		return "idle"
	case ConsumerWaiting:
		return "waiting"
	case ConsumerPlaying:
		return "playing"
	case ConsumerDone:
		return "done"
	default:
		return "unknown"
	}
}

// EngineState summarizes the whole session for display.
type EngineState int32

const (
	// EngineIdle indicates Start has not been called.
	EngineIdle EngineState = iota
	// EngineRunning indicates both loops are live.
	EngineRunning
	// EnginePaused indicates playback is held at a checkpoint.
	EnginePaused
	// EngineStopping indicates a stop was requested and the loops are
	// winding down.
	EngineStopping
	// EngineDone indicates both loops have exited.
	EngineDone
	// EngineError indicates the session ended with a fatal error.
	EngineError
)

// String returns the string representation of the state.
func (s EngineState) String() string {
	switch s {
	case EngineIdle:
		return "idle"
	case EngineRunning:
		return "running"
	case EnginePaused:
		return "paused"
	case EngineStopping:
		return "stopping"
	case EngineDone:
		return "done"
	case EngineError:
		return "error"
	default:
		return "unknown"
	}
}

package tts

import "sync"

// ControlState is the shared control plane between the UI, the
// synthesis producer and the playback consumer. All control is a
// single mutex-guarded set of flags plus one condition variable, so a
// worker observes requests at its next checkpoint without polling and
// a paused worker sleeps until something actually changes.
//
// Request methods are idempotent and safe to call from any goroutine,
// including concurrently with checkpoints.
type ControlState struct {
	mu   sync.Mutex
	cond *sync.Cond

	paused        bool
	stopRequested bool
	quitRequested bool
}

// NewControlState creates a control plane with no requests pending.
func NewControlState() *ControlState {
	c := &ControlState{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// RequestPause asks workers to hold at their next checkpoint. It
// reports whether the request changed anything: pausing an already
// paused or stopping session is a no-op.
func (c *ControlState) RequestPause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.paused || c.stopRequested {
		return false
	}
	c.paused = true

	return true
}

// RequestResume lifts a pause and wakes every worker blocked in
// Checkpoint. Resuming a session that is not paused is a no-op.
func (c *ControlState) RequestResume() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.paused {
		return false
	}
	c.paused = false

	c.cond.Broadcast()

	return true
}

// RequestStop asks workers to wind down. Paused workers wake
// immediately and see StopNow at the checkpoint they were blocked in.
// Repeated stops are no-ops.
func (c *ControlState) RequestStop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopRequested {
		return false
	}
	c.stopRequested = true

	c.cond.Broadcast()

	return true
}

// RequestQuit asks for full teardown. Quit implies stop: workers wind
// down exactly as for RequestStop, and the session additionally tears
// down its resources once the loops exit. Repeated quits are no-ops.
func (c *ControlState) RequestQuit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.quitRequested {
		return false
	}
	c.quitRequested = true
	c.stopRequested = true

	c.cond.Broadcast()

	return true
}

// Checkpoint is the single cooperative control point for worker loops.
// It returns Continue when nothing is pending, blocks while the
// session is paused, and returns StopNow once stop or quit has been
// requested, including when the request arrives mid-pause. A worker
// that slept through a pause gets PauseAndWait after the resume.
//
// Checkpoint never spins: a paused worker waits on the condition
// variable and runs again only after a resume, stop or quit broadcast.
func (c *ControlState) Checkpoint() Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopRequested {
		return StopNow
	}
	if !c.paused {
		return Continue
	}

	for c.paused && !c.stopRequested {
		c.cond.Wait()
	}

	if c.stopRequested {
		return StopNow
	}
	return PauseAndWait
}

// Paused reports whether a pause is currently in effect.
func (c *ControlState) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.paused
}

// StopRequested reports whether stop or quit has been requested.
func (c *ControlState) StopRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stopRequested
}

// QuitRequested reports whether a full teardown has been requested.
func (c *ControlState) QuitRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.quitRequested
}

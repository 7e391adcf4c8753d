package tts

import (
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// consumer is the playback half of a session. It pops frames from the
// queue and writes them to the output, which blocks until the device
// has room. Control is re-checked after every pop and before every
// write, so a stop abandons whatever is still queued instead of
// playing it to the end.
type consumer struct {
	queue   *FrameQueue
	out     Output
	ctrl    *ControlState
	format  AudioFormat
	log     *log.Logger
	publish func(Event)

	// stop ends the whole session; the consumer calls it when the
	// output fails, since audio written to a dead sink is lost anyway.
	stop func(StopReason)

	state atomic.Int32

	framesPlayed atomic.Int64
	playedNanos  atomic.Int64

	// err holds the device failure that ended playback. Written before
	// the loop exits, read only after both loops are done.
	err error
}

func newConsumer(queue *FrameQueue, out Output, ctrl *ControlState, format AudioFormat, logger *log.Logger, publish func(Event), stop func(StopReason)) *consumer {
	return &consumer{
		queue:   queue,
		out:     out,
		ctrl:    ctrl,
		format:  format,
		log:     logger.WithPrefix("consumer"),
		publish: publish,
		stop:    stop,
	}
}

// State returns the loop's current lifecycle state.
func (c *consumer) State() ConsumerState {
	return ConsumerState(c.state.Load())
}

func (c *consumer) setState(s ConsumerState) {
	c.state.Store(int32(s))
}

// Played returns the total audio time written to the output so far.
func (c *consumer) Played() int64 {
	return c.playedNanos.Load()
}

// run drives the playback loop until the queue reports end of stream
// or a stop request is observed.
func (c *consumer) run() {
	defer c.setState(ConsumerDone)

	for {
		if c.ctrl.Checkpoint() == StopNow {
			c.log.Debug("stopping")
			return
		}

		c.setState(ConsumerWaiting)
		frame, err := c.queue.Pop()
		if err != nil {
			// Queue closed and drained: the stream is over.
			c.log.Debug("end of stream")
			return
		}

		// A stop may have arrived while blocked in Pop. Re-checking
		// here is what makes stop immediate: the popped frame and
		// everything still queued are abandoned, not played. A pause
		// holds the frame at this checkpoint and plays it on resume.
		if c.ctrl.Checkpoint() == StopNow {
			c.log.Debug("dropping frame after stop", "segment", frame.Segment, "frame", frame.Index)
			return
		}

		c.setState(ConsumerPlaying)
		if err := c.out.Write(frame); err != nil {
			c.err = NewDeviceError("write", err)
			c.log.Error("output write failed", "err", err)
			c.stop(StopReasonError)
			return
		}

		length := frame.Duration(c.format)
		c.framesPlayed.Add(1)
		c.playedNanos.Add(int64(length))
		c.publish(FramePlayedEvent{
			Segment:    frame.Segment,
			Index:      frame.Index,
			Length:     length,
			QueueDepth: c.queue.Len(),
		})
	}
}

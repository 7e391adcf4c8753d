package tts

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// producer is the synthesis half of a session. It pulls segments from
// the source one at a time, renders each to PCM, cuts the PCM into
// frames and pushes them into the queue. Control requests are observed
// at a checkpoint before every fetch and before every push, so the
// loop never holds audio hostage for longer than one frame.
type producer struct {
	source  SegmentSource
	synth   Synthesizer
	queue   *FrameQueue
	ctrl    *ControlState
	cfg     Config
	log     *log.Logger
	publish func(Event)

	state atomic.Int32

	// Counters, read live by Status and finally by the session stats.
	segments    atomic.Int64
	skipped     atomic.Int64
	framesCut   atomic.Int64
	bytesSynth  atomic.Int64
	synthMillis atomic.Int64

	// err holds the failure that ended production early. It is written
	// before the loop exits and read only after both loops are done.
	err error
}

func newProducer(cfg Config, source SegmentSource, synth Synthesizer, queue *FrameQueue, ctrl *ControlState, logger *log.Logger, publish func(Event)) *producer {
	return &producer{
		source:  source,
		synth:   synth,
		queue:   queue,
		ctrl:    ctrl,
		cfg:     cfg,
		log:     logger.WithPrefix("producer"),
		publish: publish,
	}
}

// State returns the loop's current lifecycle state.
func (p *producer) State() ProducerState {
	return ProducerState(p.state.Load())
}

func (p *producer) setState(s ProducerState) {
	p.state.Store(int32(s))
}

// run drives the synthesis loop until the input is exhausted, a fatal
// error occurs, or a stop request is observed. On the first two it
// closes the queue so buffered frames still play out; on a stop the
// queue is already closed by whoever requested the stop.
func (p *producer) run(ctx context.Context) {
	defer p.setState(ProducerDone)

	frameBytes := p.cfg.FrameBytes()
	align := p.synth.Format().BlockAlign()

	for {
		if p.ctrl.Checkpoint() == StopNow {
			p.log.Debug("stopping")
			return
		}

		p.setState(ProducerFetching)
		seg, err := p.source.Next()
		if err == io.EOF {
			p.drain()
			return
		}
		if err != nil {
			p.err = err
			p.log.Error("segment source failed", "err", err)
			p.drain()
			return
		}
		if seg.IsEmpty() {
			continue
		}

		p.setState(ProducerSynthesizing)
		p.publish(SegmentStartedEvent{Index: seg.Index, Text: seg.Text})

		start := time.Now()
		sctx, cancel := context.WithTimeout(ctx, p.cfg.SynthTimeout)
		pcm, err := p.synth.Synthesize(sctx, seg.Text)
		cancel()
		elapsed := time.Since(start)

		if err != nil {
			if ctx.Err() != nil {
				// The session was stopped mid-synthesis.
				p.log.Debug("synthesis canceled", "segment", seg.Index)
				return
			}
			if IsTransientSynthesis(err) {
				p.skipped.Add(1)
				p.log.Warn("skipping segment", "segment", seg.Index, "err", err)
				p.publish(SegmentSkippedEvent{Index: seg.Index, Err: err})
				continue
			}
			// Fatal or unclassified: stop producing but let whatever
			// is already queued play out.
			p.err = err
			p.log.Error("synthesis failed", "segment", seg.Index, "err", err)
			p.drain()
			return
		}

		frames := splitFrames(seg.Index, pcm, frameBytes, align)

		p.segments.Add(1)
		p.framesCut.Add(int64(len(frames)))
		p.bytesSynth.Add(int64(len(pcm)))
		p.synthMillis.Add(elapsed.Milliseconds())
		p.publish(SegmentSynthesizedEvent{
			Index:   seg.Index,
			Bytes:   len(pcm),
			Frames:  len(frames),
			Elapsed: elapsed,
		})
		p.log.Debug("segment synthesized",
			"segment", seg.Index,
			"bytes", len(pcm),
			"frames", len(frames),
			"elapsed", elapsed)

		p.setState(ProducerEnqueuing)
		for _, frame := range frames {
			if p.ctrl.Checkpoint() == StopNow {
				p.log.Debug("stopping mid-segment", "segment", seg.Index)
				return
			}
			if err := p.queue.Push(frame); err != nil {
				// Queue closed underneath us: a stop is in progress.
				p.log.Debug("queue closed during push", "segment", seg.Index)
				return
			}
		}
	}
}

// drain closes the queue so the consumer plays out the buffered frames
// and then sees end of stream.
func (p *producer) drain() {
	p.setState(ProducerDraining)

	queued := p.queue.Len()
	p.queue.Close()
	p.publish(DrainingEvent{Queued: queued})
	p.log.Debug("draining", "queued", queued)
}

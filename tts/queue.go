package tts

import (
	"sync"
	"time"
)

// QueueStats tracks frame queue throughput.
type QueueStats struct {
	TotalEnqueued int64
	TotalDequeued int64
	CurrentSize   int
	PeakSize      int
	LastEnqueue   time.Time
	LastDequeue   time.Time
}

// FrameQueue is the bounded buffer between the synthesis producer and
// the playback consumer. It is the only channel through which audio
// flows, and its close semantics carry the end-of-stream signal:
//
//   - Push blocks while the queue is full and fails with ErrQueueClosed
//     once the queue is closed, even if the close arrives mid-wait.
//   - Pop blocks while the queue is empty. After Close it keeps serving
//     the remaining frames in order and reports ErrQueueClosed only once
//     the queue is drained.
//   - Close is idempotent and wakes every goroutine blocked on either
//     side.
//
// All methods are safe for concurrent use.
type FrameQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	frames   []AudioFrame
	capacity int
	closed   bool
	stats    QueueStats
}

// NewFrameQueue creates a queue holding at most capacity frames.
// A non-positive capacity falls back to DefaultQueueCapacity.
func NewFrameQueue(capacity int) *FrameQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}

	q := &FrameQueue{
		frames:   make([]AudioFrame, 0, capacity),
		capacity: capacity,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)

	return q
}

// Push appends a frame to the tail of the queue, blocking while the
// queue is at capacity. It returns ErrQueueClosed if the queue is
// closed before or during the wait; the frame is then dropped.
func (q *FrameQueue) Push(frame AudioFrame) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.frames) >= q.capacity && !q.closed {
		q.notFull.Wait()
	}

	if q.closed {
		return ErrQueueClosed
	}

	q.frames = append(q.frames, frame)
	q.stats.TotalEnqueued++
	q.stats.LastEnqueue = time.Now()
	if len(q.frames) > q.stats.PeakSize {
		q.stats.PeakSize = len(q.frames)
	}

	q.notEmpty.Signal()

	return nil
}

// Pop removes and returns the oldest frame, blocking while the queue is
// empty. After Close, Pop drains the remaining frames in FIFO order and
// reports ErrQueueClosed only once nothing is left. That ordering lets
// the producer finish a stream cleanly: close the queue and every frame
// already buffered still reaches the consumer.
func (q *FrameQueue) Pop() (AudioFrame, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.frames) == 0 && !q.closed {
		q.notEmpty.Wait()
	}

	if len(q.frames) == 0 {
		return AudioFrame{}, ErrQueueClosed
	}

	frame := q.frames[0]
	q.frames = q.frames[1:]
	q.stats.TotalDequeued++
	q.stats.LastDequeue = time.Now()

	q.notFull.Signal()

	return frame, nil
}

// Close marks the queue closed and wakes every blocked Push and Pop.
// Frames already in the queue stay available to Pop. Calling Close more
// than once is a no-op.
func (q *FrameQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true

	q.notEmpty.Broadcast()
	q.notFull.Broadcast()

	return nil
}

// Closed reports whether Close has been called.
func (q *FrameQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.closed
}

// Len returns the number of frames currently buffered.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.frames)
}

// Cap returns the queue capacity.
func (q *FrameQueue) Cap() int {
	return q.capacity
}

// Stats returns a snapshot of queue statistics.
func (q *FrameQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := q.stats
	stats.CurrentSize = len(q.frames)

	return stats
}

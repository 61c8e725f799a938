package gateway

import (
	"errors"
	"sync"
)

// ErrQueueFull is returned by AsyncPublisher.Publish when the hand-off queue
// to the replication layer is saturated.
var ErrQueueFull = errors.New("gateway: publish queue full")

type publishJob struct {
	sessionID int64
	seqNo     int64
	payload   []byte
}

// AsyncPublisher is the wrapping session.Publisher's doc comment asks
// callers needing back-pressure handling to provide themselves: it
// decouples a FIX Session's locked transition from Raft commit latency.
// Publish enqueues the command and returns immediately; the actual
// replication, including the blocking wait for local apply, runs on a pool
// of background workers draining the queue against Publication directly.
type AsyncPublisher struct {
	pub    *Publication
	logger Logger
	jobs   chan publishJob
	wg     sync.WaitGroup
}

// NewAsyncPublisher wraps pub with an async hand-off queue of depth
// queueDepth, drained by workers background goroutines that call
// pub.Publish (itself bounded by Publication's publish timeout).
func NewAsyncPublisher(pub *Publication, logger Logger, queueDepth, workers int) *AsyncPublisher {
	if queueDepth <= 0 {
		queueDepth = 1024
	}
	if workers <= 0 {
		workers = 1
	}
	a := &AsyncPublisher{
		pub:    pub,
		logger: logger,
		jobs:   make(chan publishJob, queueDepth),
	}
	a.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go a.worker()
	}
	return a
}

// Publish implements session.Publisher without importing the session
// package: it matches Publisher's method set structurally. It never blocks
// on Raft commit -- the command is queued for a background worker, or
// ErrQueueFull is returned immediately if the queue is saturated, which is
// exactly the signal a caller holding a Session's lock needs to log and
// move on rather than stall the FIX state machine.
func (a *AsyncPublisher) Publish(sessionID int64, seqNo int64, payload []byte) error {
	job := publishJob{
		sessionID: sessionID,
		seqNo:     seqNo,
		payload:   append([]byte(nil), payload...),
	}
	select {
	case a.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (a *AsyncPublisher) worker() {
	defer a.wg.Done()
	for job := range a.jobs {
		if err := a.pub.Publish(job.sessionID, job.seqNo, job.payload); err != nil {
			a.logger.Debug("async publish failed", "session_id", job.sessionID, "seq_no", job.seqNo, "err", err)
		}
	}
}

// Close stops accepting new work and blocks until every queued job has been
// handed to Publication.Publish. Callers must stop issuing Publish calls
// before calling Close.
func (a *AsyncPublisher) Close() {
	close(a.jobs)
	a.wg.Wait()
}

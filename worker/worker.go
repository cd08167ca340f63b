// Package worker implements the stateless computation unit of the
// pool. A worker folds each chunk it receives and sends the partial
// back to its manager; workers share nothing and run independently.
package worker

import (
	"log"
	"sync"
	"time"

	"scatter/agg"
	"scatter/protocol"
)

const defaultQueueSize = 32

// Config tunes a Worker. The zero value gives a small task buffer and
// no heartbeats.
type Config struct {
	// QueueSize buffers the inbound task channel.
	QueueSize int
	// HeartbeatInterval is how often liveness is reported to the
	// manager. 0 disables heartbeats.
	HeartbeatInterval time.Duration
}

// Worker receives chunk tasks and answers each with one partial
// result. It holds no state across tasks.
type Worker struct {
	id         int
	cfg        Config
	tasks      chan protocol.ChunkTask
	partials   chan<- protocol.PartialResult
	heartbeats chan<- protocol.Heartbeat
	quit       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
}

func New(id int, cfg Config) *Worker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	return &Worker{
		id:    id,
		cfg:   cfg,
		tasks: make(chan protocol.ChunkTask, cfg.QueueSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Ref returns the handle the manager's pool addresses this worker by.
// Valid before Start, so a pool can be built from unstarted workers.
func (w *Worker) Ref() protocol.WorkerRef {
	return protocol.WorkerRef{ID: w.id, Tasks: w.tasks}
}

// Start launches the task loop, wired to the manager's partials and
// heartbeats channels. heartbeats may be nil when liveness tracking is
// off.
func (w *Worker) Start(partials chan<- protocol.PartialResult, heartbeats chan<- protocol.Heartbeat) {
	w.partials = partials
	w.heartbeats = heartbeats
	go w.run()
}

// Stop shuts the task loop down. Buffered tasks are discarded. Safe to
// call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
	<-w.done
}

func (w *Worker) run() {
	defer close(w.done)

	var tick <-chan time.Time
	if w.cfg.HeartbeatInterval > 0 && w.heartbeats != nil {
		ticker := time.NewTicker(w.cfg.HeartbeatInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case task := <-w.tasks:
			w.handle(task)
		case <-tick:
			w.beat()
		case <-w.quit:
			return
		}
	}
}

func (w *Worker) handle(task protocol.ChunkTask) {
	op, ok := agg.Lookup(task.Op)
	if !ok {
		// the manager validates ops before dispatch, so this is a
		// foreign or corrupted task
		log.Printf("worker %d: unknown op %q, dropping chunk %d of job %s",
			w.id, task.Op, task.ChunkIndex, task.JobID)
		return
	}
	value := agg.Fold(task.Values, op)
	select {
	case w.partials <- protocol.PartialResult{
		JobID:      task.JobID,
		ChunkIndex: task.ChunkIndex,
		WorkerID:   w.id,
		Value:      value,
	}:
	case <-w.quit:
	}
}

func (w *Worker) beat() {
	select {
	case w.heartbeats <- protocol.Heartbeat{WorkerID: w.id}:
	default:
		// manager busy; skip this beat rather than block
	}
}

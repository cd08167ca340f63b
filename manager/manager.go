// Package manager implements the scatter-gather coordinator. The
// manager accepts aggregation requests, splits the data into contiguous
// chunks, fans them out over a fixed worker pool and folds the partial
// results back into a single reply.
package manager

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"scatter/agg"
	"scatter/protocol"
)

const (
	defaultSweepInterval = 500 * time.Millisecond
	defaultQueueSize     = 64
)

// Config tunes a Manager. The zero value gives round-robin dispatch,
// no default job deadline and no worker liveness tracking.
type Config struct {
	// Policy selects the chunk-dispatch strategy.
	Policy Policy
	// DefaultTimeout is applied to requests that carry no timeout of
	// their own. 0 means jobs have no deadline unless the request sets
	// one.
	DefaultTimeout time.Duration
	// SweepInterval is how often deadlines and worker liveness are
	// checked.
	SweepInterval time.Duration
	// HeartbeatTimeout marks a worker dead when no heartbeat arrived
	// within it. 0 disables liveness tracking entirely.
	HeartbeatTimeout time.Duration
	// QueueSize buffers the inbound request/partial/heartbeat channels.
	QueueSize int
}

// job tracks one in-flight request: which chunks went out, which came
// back, and the running combination of their values.
type job struct {
	id       string
	op       agg.Op
	expected int
	received map[int]uint64 // chunk index -> partial value
	assigned map[int]int    // chunk index -> worker id
	acc      uint64
	replyTo  chan<- protocol.Reply
	deadline time.Time // zero means no deadline
}

// Manager owns the live-job table and the worker pool. All state is
// mutated only by the run loop, one message at a time, so no locking
// is needed anywhere in this package.
type Manager struct {
	cfg  Config
	pool *pool
	jobs map[string]*job

	requests   chan protocol.Request
	partials   chan protocol.PartialResult
	heartbeats chan protocol.Heartbeat
	quit       chan struct{}
	done       chan struct{}
}

// New builds a manager over a fixed set of worker handles. The set is
// wired once at bootstrap and never resized.
func New(refs []protocol.WorkerRef, cfg Config) *Manager {
	if cfg.Policy == "" {
		cfg.Policy = RoundRobin
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	return &Manager{
		cfg:        cfg,
		pool:       newPool(refs, cfg.Policy, cfg.HeartbeatTimeout),
		jobs:       make(map[string]*job),
		requests:   make(chan protocol.Request, cfg.QueueSize),
		partials:   make(chan protocol.PartialResult, cfg.QueueSize),
		heartbeats: make(chan protocol.Heartbeat, cfg.QueueSize),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Requests is where external callers submit work.
func (m *Manager) Requests() chan<- protocol.Request { return m.requests }

// Partials is where pool workers deliver chunk results.
func (m *Manager) Partials() chan<- protocol.PartialResult { return m.partials }

// Heartbeats is where pool workers report liveness.
func (m *Manager) Heartbeats() chan<- protocol.Heartbeat { return m.heartbeats }

// Start launches the run loop.
func (m *Manager) Start() {
	go m.run()
}

// Stop shuts the run loop down. In-flight jobs are abandoned; their
// callers get no reply.
func (m *Manager) Stop() {
	close(m.quit)
	<-m.done
}

func (m *Manager) run() {
	defer close(m.done)
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case req := <-m.requests:
			m.onRequest(req)
		case pr := <-m.partials:
			m.onPartialResult(pr)
		case hb := <-m.heartbeats:
			m.pool.markSeen(hb.WorkerID, time.Now())
		case now := <-ticker.C:
			m.sweep(now)
		case <-m.quit:
			return
		}
	}
}

// onRequest validates the request, partitions the data and dispatches
// one chunk per selected worker. Empty data is answered immediately
// with the op's identity, without creating a job.
func (m *Manager) onRequest(req protocol.Request) {
	op, ok := agg.Lookup(req.Op)
	if !ok {
		m.reply(req.ReplyTo, protocol.Reply{Err: fmt.Sprintf("unknown aggregation op %q", req.Op)})
		return
	}
	if len(req.Data) == 0 {
		m.reply(req.ReplyTo, protocol.Reply{Result: op.Identity})
		return
	}
	eligible := m.pool.eligibleCount()
	if eligible == 0 {
		m.reply(req.ReplyTo, protocol.Reply{Err: "no eligible workers in pool"})
		return
	}

	id := uuid.NewString()
	chunks := partition(req.Data, eligible)
	j := &job{
		id:       id,
		op:       op,
		expected: len(chunks),
		received: make(map[int]uint64, len(chunks)),
		assigned: make(map[int]int, len(chunks)),
		acc:      op.Identity,
		replyTo:  req.ReplyTo,
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = m.cfg.DefaultTimeout
	}
	if timeout > 0 {
		j.deadline = time.Now().Add(timeout)
	}

	for i, values := range chunks {
		ws, ok := m.pool.selectWorker()
		if !ok {
			// eligibility was checked above; only reachable if the pool
			// emptied mid-loop, which it cannot
			break
		}
		task := protocol.ChunkTask{JobID: id, ChunkIndex: i, Values: values, Op: op.Name}
		select {
		case ws.ref.Tasks <- task:
			ws.outstanding++
			j.assigned[i] = ws.ref.ID
		default:
			// never block the loop on a wedged worker; the chunk stays
			// unanswered and the job resolves through its deadline
			log.Printf("manager: worker %d task queue full, chunk %d of job %s not dispatched",
				ws.ref.ID, i, id)
		}
	}
	m.jobs[id] = j
	log.Printf("manager: job %s: %d values in %d chunks", id, len(req.Data), j.expected)
}

// onPartialResult records one chunk's value. Partials for unknown jobs
// or already-recorded chunks are logged and dropped; they are expected
// after completions, timeouts and retries, never fatal.
func (m *Manager) onPartialResult(pr protocol.PartialResult) {
	j, ok := m.jobs[pr.JobID]
	if !ok {
		log.Printf("manager: stale partial for job %s chunk %d from worker %d",
			pr.JobID, pr.ChunkIndex, pr.WorkerID)
		return
	}
	if pr.ChunkIndex < 0 || pr.ChunkIndex >= j.expected {
		log.Printf("manager: job %s: partial with bad chunk index %d", j.id, pr.ChunkIndex)
		return
	}
	if _, dup := j.received[pr.ChunkIndex]; dup {
		log.Printf("manager: job %s: duplicate partial for chunk %d", j.id, pr.ChunkIndex)
		return
	}

	j.received[pr.ChunkIndex] = pr.Value
	j.acc = j.op.Combine(j.acc, pr.Value)
	m.pool.release(pr.WorkerID)

	if len(j.received) == j.expected {
		m.reply(j.replyTo, protocol.Reply{JobID: j.id, Result: j.acc})
		delete(m.jobs, j.id)
		log.Printf("manager: job %s complete, result %d", j.id, j.acc)
	}
}

// sweep expires jobs past their deadline and refreshes worker liveness.
func (m *Manager) sweep(now time.Time) {
	m.pool.sweep(now)
	for id, j := range m.jobs {
		if j.deadline.IsZero() || !now.After(j.deadline) {
			continue
		}
		for idx, wid := range j.assigned {
			if _, ok := j.received[idx]; !ok {
				m.pool.release(wid)
			}
		}
		m.reply(j.replyTo, protocol.Reply{JobID: id, Err: "job timed out"})
		delete(m.jobs, id)
		log.Printf("manager: job %s timed out with %d of %d chunks received",
			id, len(j.received), j.expected)
	}
}

// reply delivers without blocking; replyTo channels are expected to be
// buffered for their single reply.
func (m *Manager) reply(to chan<- protocol.Reply, r protocol.Reply) {
	if to == nil {
		return
	}
	select {
	case to <- r:
	default:
		log.Printf("manager: reply channel full, dropping reply for job %s", r.JobID)
	}
}

// Ask submits data for aggregation and blocks until the reply arrives.
// A failure reply comes back as an error.
func (m *Manager) Ask(data []uint64, op string) (uint64, error) {
	return m.AskTimeout(data, op, 0)
}

// AskTimeout is Ask with a per-job deadline.
func (m *Manager) AskTimeout(data []uint64, op string, timeout time.Duration) (uint64, error) {
	replyCh := make(chan protocol.Reply, 1)
	m.requests <- protocol.Request{Data: data, Op: op, Timeout: timeout, ReplyTo: replyCh}
	r := <-replyCh
	if r.Failed() {
		return 0, errors.New(r.Err)
	}
	return r.Result, nil
}

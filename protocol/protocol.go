// Package protocol defines the messages exchanged between the manager
// and its workers, and the handle type used to address a worker.
package protocol

import "time"

// Request asks the manager to aggregate Data with the named op. ReplyTo
// receives exactly one Reply; it should be buffered so the manager
// never blocks on a slow caller. Timeout > 0 sets a per-job deadline,
// 0 falls back to the manager's default.
type Request struct {
	Data    []uint64      `json:"data"`
	Op      string        `json:"op"`
	Timeout time.Duration `json:"timeout,omitempty"`
	ReplyTo chan<- Reply  `json:"-"`
}

// ChunkTask is one contiguous slice of a request's data, assigned to a
// single worker. Immutable once sent.
type ChunkTask struct {
	JobID      string   `json:"job_id"`
	ChunkIndex int      `json:"chunk_index"`
	Values     []uint64 `json:"values"`
	Op         string   `json:"op"`
}

// PartialResult carries one chunk's fold back to the manager. WorkerID
// identifies the sender so the pool can release its load slot.
type PartialResult struct {
	JobID      string `json:"job_id"`
	ChunkIndex int    `json:"chunk_index"`
	WorkerID   int    `json:"worker_id"`
	Value      uint64 `json:"value"`
}

// Reply is the single response sent for a request. Err is empty on
// success; a non-empty Err means the job failed (timeout, no eligible
// workers, unknown op) and Result carries no meaning.
type Reply struct {
	JobID  string `json:"job_id,omitempty"`
	Result uint64 `json:"result"`
	Err    string `json:"err,omitempty"`
}

// Failed reports whether the reply is a failure reply.
func (r Reply) Failed() bool { return r.Err != "" }

// Heartbeat tells the manager a worker is still alive.
type Heartbeat struct {
	WorkerID int `json:"worker_id"`
}

// WorkerRef is the addressable handle the manager holds for one worker.
// The pool list is built once at startup and never resized.
type WorkerRef struct {
	ID    int
	Tasks chan<- ChunkTask
}

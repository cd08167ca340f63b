package manager

import (
	"log"
	"time"

	"scatter/protocol"
)

// Policy names a chunk-dispatch strategy.
type Policy string

const (
	// RoundRobin cycles through eligible workers in pool order.
	RoundRobin Policy = "round-robin"
	// LeastLoaded picks the eligible worker with the fewest outstanding
	// chunks, lowest pool index on ties.
	LeastLoaded Policy = "least-loaded"
)

type workerState struct {
	ref         protocol.WorkerRef
	outstanding int
	lastSeen    time.Time
	alive       bool
}

// pool holds the fixed worker set plus the dispatch cursor and load
// table. It is owned by the manager's run loop and never locked.
type pool struct {
	workers   []*workerState
	byID      map[int]*workerState
	policy    Policy
	cursor    int
	hbTimeout time.Duration // 0 disables liveness tracking
}

func newPool(refs []protocol.WorkerRef, policy Policy, hbTimeout time.Duration) *pool {
	p := &pool{
		workers:   make([]*workerState, 0, len(refs)),
		byID:      make(map[int]*workerState, len(refs)),
		policy:    policy,
		hbTimeout: hbTimeout,
	}
	now := time.Now()
	for _, ref := range refs {
		ws := &workerState{ref: ref, lastSeen: now, alive: true}
		p.workers = append(p.workers, ws)
		p.byID[ref.ID] = ws
	}
	return p
}

func (p *pool) eligible(ws *workerState) bool {
	return p.hbTimeout == 0 || ws.alive
}

func (p *pool) eligibleCount() int {
	n := 0
	for _, ws := range p.workers {
		if p.eligible(ws) {
			n++
		}
	}
	return n
}

// selectWorker picks the next worker per the configured policy. It
// never blocks; ok is false only when no worker is eligible.
func (p *pool) selectWorker() (ws *workerState, ok bool) {
	if len(p.workers) == 0 {
		return nil, false
	}
	switch p.policy {
	case LeastLoaded:
		for _, w := range p.workers {
			if !p.eligible(w) {
				continue
			}
			if ws == nil || w.outstanding < ws.outstanding {
				ws = w
			}
		}
		return ws, ws != nil
	default: // round-robin
		for i := 0; i < len(p.workers); i++ {
			w := p.workers[(p.cursor+i)%len(p.workers)]
			if !p.eligible(w) {
				continue
			}
			p.cursor = (p.cursor + i + 1) % len(p.workers)
			return w, true
		}
		return nil, false
	}
}

// markSeen records a heartbeat from the worker.
func (p *pool) markSeen(id int, now time.Time) {
	ws, ok := p.byID[id]
	if !ok {
		log.Printf("manager: heartbeat from unknown worker %d", id)
		return
	}
	ws.lastSeen = now
	ws.alive = true
}

// release frees one outstanding-chunk slot for the worker.
func (p *pool) release(id int) {
	ws, ok := p.byID[id]
	if !ok {
		return
	}
	if ws.outstanding > 0 {
		ws.outstanding--
	}
}

// sweep marks workers dead when nothing has been heard from them within
// the heartbeat timeout.
func (p *pool) sweep(now time.Time) {
	if p.hbTimeout == 0 {
		return
	}
	for _, ws := range p.workers {
		if ws.alive && now.Sub(ws.lastSeen) > p.hbTimeout {
			ws.alive = false
			log.Printf("manager: detected DEAD worker %d (lastSeen=%s)",
				ws.ref.ID, ws.lastSeen.Format(time.RFC3339))
		}
	}
}

package manager

import (
	"testing"
	"time"

	"scatter/protocol"
)

func testRefs(n int) []protocol.WorkerRef {
	refs := make([]protocol.WorkerRef, n)
	for i := range refs {
		refs[i] = protocol.WorkerRef{ID: i, Tasks: make(chan protocol.ChunkTask, 8)}
	}
	return refs
}

func TestRoundRobinCycles(t *testing.T) {
	p := newPool(testRefs(3), RoundRobin, 0)
	var order []int
	for i := 0; i < 6; i++ {
		ws, ok := p.selectWorker()
		if !ok {
			t.Fatal("selectWorker failed with eligible workers")
		}
		order = append(order, ws.ref.ID)
	}
	want := []int{0, 1, 2, 0, 1, 2}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRoundRobinSkipsDeadWorkers(t *testing.T) {
	p := newPool(testRefs(3), RoundRobin, time.Second)
	p.byID[1].alive = false
	for i := 0; i < 4; i++ {
		ws, ok := p.selectWorker()
		if !ok {
			t.Fatal("selectWorker failed with eligible workers")
		}
		if ws.ref.ID == 1 {
			t.Fatal("selected a dead worker")
		}
	}
}

func TestLeastLoadedPrefersIdle(t *testing.T) {
	p := newPool(testRefs(3), LeastLoaded, 0)
	p.byID[0].outstanding = 2
	p.byID[1].outstanding = 1
	ws, _ := p.selectWorker()
	if ws.ref.ID != 2 {
		t.Errorf("selected worker %d, want 2", ws.ref.ID)
	}
}

func TestLeastLoadedTieBreaksOnLowestIndex(t *testing.T) {
	p := newPool(testRefs(4), LeastLoaded, 0)
	p.byID[0].outstanding = 3
	// workers 1, 2, 3 all tied at zero
	ws, _ := p.selectWorker()
	if ws.ref.ID != 1 {
		t.Errorf("selected worker %d, want 1", ws.ref.ID)
	}
}

func TestSelectWorkerEmptyPool(t *testing.T) {
	p := newPool(nil, RoundRobin, 0)
	if _, ok := p.selectWorker(); ok {
		t.Fatal("selectWorker succeeded on an empty pool")
	}
}

func TestSweepMarksDead(t *testing.T) {
	p := newPool(testRefs(2), RoundRobin, 10*time.Millisecond)
	now := time.Now()
	p.markSeen(0, now)
	p.byID[1].lastSeen = now.Add(-time.Second)

	p.sweep(now)
	if !p.byID[0].alive {
		t.Error("fresh worker marked dead")
	}
	if p.byID[1].alive {
		t.Error("silent worker still alive")
	}
	if n := p.eligibleCount(); n != 1 {
		t.Errorf("eligibleCount = %d, want 1", n)
	}

	// a heartbeat revives it
	p.markSeen(1, now)
	if n := p.eligibleCount(); n != 2 {
		t.Errorf("eligibleCount after revival = %d, want 2", n)
	}
}

func TestSweepDisabledWithoutTimeout(t *testing.T) {
	p := newPool(testRefs(1), RoundRobin, 0)
	p.byID[0].lastSeen = time.Now().Add(-time.Hour)
	p.sweep(time.Now())
	if n := p.eligibleCount(); n != 1 {
		t.Errorf("eligibleCount = %d, want 1", n)
	}
}

func TestReleaseFloorsAtZero(t *testing.T) {
	p := newPool(testRefs(1), LeastLoaded, 0)
	p.release(0)
	if p.byID[0].outstanding != 0 {
		t.Errorf("outstanding = %d, want 0", p.byID[0].outstanding)
	}
	p.release(99) // unknown id is a no-op
}

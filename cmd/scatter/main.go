package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"scatter/manager"
	"scatter/protocol"
	"scatter/worker"
)

const (
	heartbeatInterval = 3 * time.Second
	heartbeatTimeout  = 10 * time.Second
)

func main() {
	log.SetFlags(0)

	numWorkers := flag.Int("workers", 3, "size of the worker pool")
	dataSize := flag.Int("n", 1000, "aggregate the sequence 1..n")
	op := flag.String("op", "sum", "aggregation op (sum, product, max, min)")
	policy := flag.String("policy", string(manager.RoundRobin), "dispatch policy (round-robin, least-loaded)")
	timeout := flag.Duration("timeout", 10*time.Second, "per-job deadline")
	flag.Parse()

	workers := make([]*worker.Worker, 0, *numWorkers)
	refs := make([]protocol.WorkerRef, 0, *numWorkers)
	for i := 0; i < *numWorkers; i++ {
		w := worker.New(i, worker.Config{HeartbeatInterval: heartbeatInterval})
		workers = append(workers, w)
		refs = append(refs, w.Ref())
	}

	mgr := manager.New(refs, manager.Config{
		Policy:           manager.Policy(*policy),
		DefaultTimeout:   *timeout,
		HeartbeatTimeout: heartbeatTimeout,
	})

	mgr.Start()
	for _, w := range workers {
		w.Start(mgr.Partials(), mgr.Heartbeats())
	}

	data := make([]uint64, *dataSize)
	for i := range data {
		data[i] = uint64(i + 1)
	}

	fmt.Printf("scatter: %d values over %d workers, op=%s\n", len(data), *numWorkers, *op)
	result, err := mgr.Ask(data, *op)
	if err != nil {
		log.Fatalf("scatter: request failed: %v", err)
	}
	fmt.Printf("scatter: result = %d\n", result)

	if *op == "sum" {
		n := uint64(*dataSize)
		if want := n * (n + 1) / 2; result != want {
			log.Fatalf("scatter: sum mismatch: got %d, want %d", result, want)
		}
	}

	for _, w := range workers {
		w.Stop()
	}
	mgr.Stop()
}

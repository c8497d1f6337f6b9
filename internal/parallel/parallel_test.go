package parallel

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestFor(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 16}

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
}

func TestForRangeCoversDisjointChunks(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 3, MinChunkSize: 10}

	n := 100
	seen := make([]int32, n)
	var mu sync.Mutex
	var chunks int

	ForRange(n, func(start, end int) {
		mu.Lock()
		chunks++
		mu.Unlock()
		for i := start; i < end; i++ {
			atomic.AddInt32(&seen[i], 1)
		}
	}, cfg)

	for i, v := range seen {
		if v != 1 {
			t.Fatalf("index %d visited %d times", i, v)
		}
	}
	if chunks != 3 {
		t.Errorf("Expected 3 chunks, got %d", chunks)
	}
}

func TestFor_Sequential(t *testing.T) {
	cfg := Config{Enabled: false}

	var calls int
	ForRange(100, func(start, end int) {
		calls++
		if start != 0 || end != 100 {
			t.Errorf("Expected [0, 100), got [%d, %d)", start, end)
		}
	}, cfg)

	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestFor_SmallChunk(t *testing.T) {
	// Inputs below two chunks run on the caller's goroutine.
	cfg := DefaultConfig()

	var calls int
	ForRange(cfg.MinChunkSize, func(_, _ int) { calls++ }, cfg)
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}

	ForRange(0, func(_, _ int) { t.Error("f called for empty range") }, cfg)
}

package agent

import (
	"sync"
	"sync/atomic"
)

// StreamRegistry tracks live streaming sessions and supports graceful
// draining: once draining starts, new streams are rejected while
// in-flight ones finish naturally.
//
// The mutex makes the draining check and wg.Add atomic in Add,
// preventing a race where StartDraining+Wait slips between the check
// and the increment.
type StreamRegistry struct {
	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
	count    atomic.Int64
}

// NewStreamRegistry creates an empty registry.
func NewStreamRegistry() *StreamRegistry {
	return &StreamRegistry{}
}

// Add registers a new live stream. Returns false while draining,
// meaning the stream should be refused.
func (sr *StreamRegistry) Add() bool {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	if sr.draining {
		return false
	}
	sr.wg.Add(1)
	sr.count.Add(1)
	return true
}

// Done marks a stream as finished. Must be called exactly once per
// successful Add.
func (sr *StreamRegistry) Done() {
	sr.count.Add(-1)
	sr.wg.Done()
}

// StartDraining makes all future Add calls return false.
func (sr *StreamRegistry) StartDraining() {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.draining = true
}

// ActiveCount returns the number of live streams.
func (sr *StreamRegistry) ActiveCount() int64 {
	return sr.count.Load()
}

// Wait blocks until every added stream has called Done.
func (sr *StreamRegistry) Wait() {
	sr.wg.Wait()
}

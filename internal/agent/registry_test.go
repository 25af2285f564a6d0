package agent

import (
	"sync"
	"testing"
)

func TestStreamRegistry_AddAndDone(t *testing.T) {
	sr := NewStreamRegistry()

	if sr.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0", sr.ActiveCount())
	}

	if !sr.Add() {
		t.Error("Add() should return true when not draining")
	}
	if !sr.Add() {
		t.Error("Add() should return true when not draining")
	}
	if sr.ActiveCount() != 2 {
		t.Errorf("ActiveCount() = %d, want 2", sr.ActiveCount())
	}

	sr.Done()
	sr.Done()
	if sr.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0 after all Done()", sr.ActiveCount())
	}
}

func TestStreamRegistry_Draining(t *testing.T) {
	sr := NewStreamRegistry()

	if !sr.Add() {
		t.Error("Add() should succeed before draining")
	}

	sr.StartDraining()

	if sr.Add() {
		t.Error("Add() should return false when draining")
	}
	if sr.ActiveCount() != 1 {
		t.Errorf("ActiveCount() = %d, want 1 (the pre-drain stream)", sr.ActiveCount())
	}

	sr.Done()
	if sr.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0", sr.ActiveCount())
	}
}

func TestStreamRegistry_WaitBlocksUntilDone(t *testing.T) {
	sr := NewStreamRegistry()

	sr.Add()
	sr.Add()

	done := make(chan struct{})
	go func() {
		sr.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Error("Wait() should block while streams are active")
	default:
	}

	sr.Done()
	select {
	case <-done:
		t.Error("Wait() should block while a stream is active")
	default:
	}

	sr.Done()
	<-done
}

func TestStreamRegistry_ConcurrentAddAndDone(t *testing.T) {
	sr := NewStreamRegistry()
	const n = 100

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if sr.Add() {
				sr.Done()
			}
		}()
	}
	wg.Wait()

	if sr.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0", sr.ActiveCount())
	}
	sr.Wait() // must not block
}

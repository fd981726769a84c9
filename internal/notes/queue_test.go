package notes

import (
	"sync"
	"testing"
	"time"
)

func TestEntityQueueRunsFIFOPerKey(t *testing.T) {
	q := newEntityQueue()
	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	gate := make(chan struct{})
	for i := 0; i < 5; i++ {
		prev, release := q.enqueue("note")
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer release()
			waitFor(prev)
			if i == 0 {
				<-gate
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}(i)
	}
	close(gate)
	wg.Wait()
	for i, got := range order {
		if got != i {
			t.Fatalf("unexpected order %v", order)
		}
	}
	if q.busy() != 0 {
		t.Fatalf("expected queue to drain, got %d keys", q.busy())
	}
}

func TestEntityQueueKeysAreIndependent(t *testing.T) {
	q := newEntityQueue()
	_, releaseA := q.enqueue("a")
	defer releaseA()
	prevB, releaseB := q.enqueue("b")
	defer releaseB()
	if prevB != nil {
		t.Fatalf("expected no predecessor for a different key")
	}
	tail := q.tail("a")
	select {
	case <-tail:
		t.Fatalf("tail should be open while a is held")
	case <-time.After(10 * time.Millisecond):
	}
	releaseA()
	select {
	case <-tail:
	case <-time.After(time.Second):
		t.Fatalf("tail should close after release")
	}
}

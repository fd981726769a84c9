package notes

import "sync"

// entityQueue serialises remote mutations per entity. Keys are internal refs, so
// an entity keeps its queue when the server assigns its id.
type entityQueue struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
}

func newEntityQueue() *entityQueue {
	return &entityQueue{tails: make(map[string]chan struct{})}
}

// enqueue reserves the next slot for key. The returned channel is closed when
// the previous slot is released (nil when there is none).
func (q *entityQueue) enqueue(key string) (<-chan struct{}, func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	prev := q.tails[key]
	mine := make(chan struct{})
	q.tails[key] = mine
	var once sync.Once
	release := func() {
		once.Do(func() {
			q.mu.Lock()
			if q.tails[key] == mine {
				delete(q.tails, key)
			}
			q.mu.Unlock()
			close(mine)
		})
	}
	return prev, release
}

// tail returns a channel closed once every slot queued so far for key is released.
func (q *entityQueue) tail(key string) <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	if ch, ok := q.tails[key]; ok {
		return ch
	}
	return nil
}

func (q *entityQueue) busy() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tails)
}

func waitFor(ch <-chan struct{}) {
	if ch != nil {
		<-ch
	}
}

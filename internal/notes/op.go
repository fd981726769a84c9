package notes

import "context"

// Op is a pending store mutation. It completes once the remote store answered.
type Op[T any] struct {
	id    string
	done  chan struct{}
	value T
	err   error
}

func newOp[T any](id string) *Op[T] {
	return &Op[T]{id: id, done: make(chan struct{})}
}

func completedOp[T any](id string, value T, err error) *Op[T] {
	op := newOp[T](id)
	op.finish(value, err)
	return op
}

// ID is the id of the entity the operation acts on. For creates it is the
// placeholder id assigned locally.
func (o *Op[T]) ID() string {
	return o.id
}

func (o *Op[T]) Done() <-chan struct{} {
	return o.done
}

// Err returns the outcome once Done is closed, nil before that.
func (o *Op[T]) Err() error {
	select {
	case <-o.done:
		return o.err
	default:
		return nil
	}
}

// Wait blocks until the operation completes or ctx ends. Cancelling ctx does not
// cancel the operation.
func (o *Op[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-o.done:
		return o.value, o.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (o *Op[T]) finish(value T, err error) {
	o.value = value
	o.err = err
	close(o.done)
}

package registry

import "context"

// Locker provides mutual exclusion for promotions.
type Locker interface {
	// Lock blocks until the lock is acquired or ctx is done.
	//
	// The returned function releases the lock.
	Lock(ctx context.Context) (unlock func() error, err error)
}

type mutexLocker struct {
	sem chan struct{}
}

// NewMutexLocker returns a Locker for promotions within a process.
func NewMutexLocker() Locker {
	return &mutexLocker{sem: make(chan struct{}, 1)}
}

func (m *mutexLocker) Lock(ctx context.Context) (func() error, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case m.sem <- struct{}{}:
		return func() error {
			<-m.sem
			return nil
		}, nil
	}
}

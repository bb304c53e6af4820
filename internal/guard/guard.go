package guard

import (
	"context"
	"errors"
	"sync"
)

// ErrReentrant is returned when a guarded call re-enters the same lock.
var ErrReentrant = errors.New("reentrant call")

type heldKey struct {
	lock *Lock
}

// Lock serializes mutating calls on one component and rejects re-entry.
//
// Enter marks the returned context as holding the lock. Collaborators that call
// back into the component must pass that context along; a nested Enter on the
// same Lock then fails with ErrReentrant instead of deadlocking. Calls from
// unrelated contexts block until the lock is released, so a callback that
// drops the context and re-enters on the same goroutine never returns.
type Lock struct {
	mu sync.Mutex
}

// Enter acquires the lock. The caller must invoke the returned release func.
func (l *Lock) Enter(ctx context.Context) (context.Context, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if Held(ctx, l) {
		return ctx, func() {}, ErrReentrant
	}
	l.mu.Lock()
	var once sync.Once
	release := func() {
		once.Do(l.mu.Unlock)
	}
	return context.WithValue(ctx, heldKey{lock: l}, true), release, nil
}

// Held reports whether ctx was derived from an Enter on l.
func Held(ctx context.Context, l *Lock) bool {
	if ctx == nil {
		return false
	}
	held, _ := ctx.Value(heldKey{lock: l}).(bool)
	return held
}

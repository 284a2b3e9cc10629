// sleeplock is a long-term lock that may be held across disk I/O.
//
// Unlike a sync.Mutex, a thread waiting for a sleeplock parks on a condition
// variable, and the lock can report whether it is currently held, which
// the buffer cache uses to catch callers that touch a buffer they did not
// lock.
package sleeplock

import (
	"sync"
)

type Lock struct {
	mu      *sync.Mutex
	cond    *sync.Cond
	held    bool
	waiters uint64
	name    string
}

func MkLock(name string) *Lock {
	mu := new(sync.Mutex)
	return &Lock{
		mu:   mu,
		cond: sync.NewCond(mu),
		name: name,
	}
}

func (lk *Lock) Acquire() {
	lk.mu.Lock()
	for lk.held {
		lk.waiters += 1
		lk.cond.Wait()
		lk.waiters -= 1
	}
	lk.held = true
	lk.mu.Unlock()
}

func (lk *Lock) Release() {
	lk.mu.Lock()
	if !lk.held {
		panic("release " + lk.name)
	}
	lk.held = false
	if lk.waiters > 0 {
		lk.cond.Signal()
	}
	lk.mu.Unlock()
}

// Holding reports whether the lock is held. There is no notion of an owning
// thread, so this only detects use of a lock that nobody holds.
func (lk *Lock) Holding() bool {
	lk.mu.Lock()
	held := lk.held
	lk.mu.Unlock()
	return held
}

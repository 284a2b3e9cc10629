package bio

// lru orders the slots of the buffer pool by how recently they were
// released. Links are slot indices; index n (one past the last slot) is the
// list head, so head.next is the most recently released slot and head.prev
// the least.
type lru struct {
	next []uint64
	prev []uint64
	head uint64
}

// mkLru builds the list by pushing slots 0..n-1 to the front in turn, so
// slot 0 starts out least recently used.
func mkLru(n uint64) *lru {
	l := &lru{
		next: make([]uint64, n+1),
		prev: make([]uint64, n+1),
		head: n,
	}
	l.next[n] = n
	l.prev[n] = n
	for i := uint64(0); i < n; i++ {
		l.pushFront(i)
	}
	return l
}

func (l *lru) unlink(i uint64) {
	l.next[l.prev[i]] = l.next[i]
	l.prev[l.next[i]] = l.prev[i]
}

func (l *lru) pushFront(i uint64) {
	l.next[i] = l.next[l.head]
	l.prev[i] = l.head
	l.prev[l.next[l.head]] = i
	l.next[l.head] = i
}

func (l *lru) moveToFront(i uint64) {
	l.unlink(i)
	l.pushFront(i)
}

// mostRecent iterates from most to least recently released, stopping when
// f returns false.
func (l *lru) mostRecent(f func(i uint64) bool) {
	for i := l.next[l.head]; i != l.head; i = l.next[i] {
		if !f(i) {
			return
		}
	}
}

// leastRecent iterates from least to most recently released, stopping when
// f returns false.
func (l *lru) leastRecent(f func(i uint64) bool) {
	for i := l.prev[l.head]; i != l.head; i = l.prev[i] {
		if !f(i) {
			return
		}
	}
}

package keyset

import (
	"iter"
	"sync"

	"github.com/eaugeas/keyset/container/interval"
)

// Locked serializes the access to a Set, allowing concurrent readers
// and a single writer. The sequences returned by InOrder and Range
// hold the read lock while they are consumed, so a consumer must not
// modify the set from within the loop.
type Locked struct {
	mu  sync.RWMutex
	set Set
}

// NewLocked wraps set. The caller must not use set directly afterwards
func NewLocked(set Set) *Locked {
	return &Locked{set: set}
}

func (l *Locked) Insert(key int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.set.Insert(key)
}

func (l *Locked) Delete(key int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.set.Delete(key)
}

func (l *Locked) Search(key int) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.set.Search(key)
}

func (l *Locked) InOrder() iter.Seq[int] {
	return func(yield func(int) bool) {
		l.mu.RLock()
		defer l.mu.RUnlock()
		for key := range l.set.InOrder() {
			if !yield(key) {
				return
			}
		}
	}
}

func (l *Locked) Range(i interval.Int) iter.Seq[int] {
	return func(yield func(int) bool) {
		l.mu.RLock()
		defer l.mu.RUnlock()
		for key := range l.set.Range(i) {
			if !yield(key) {
				return
			}
		}
	}
}

func (l *Locked) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.set.Len()
}

func (l *Locked) Height() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.set.Height()
}

func (l *Locked) Validate() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.set.Validate()
}

// Snapshot returns a copy of the keys of the set in ascending order
func (l *Locked) Snapshot() []int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys := make([]int, 0, l.set.Len())
	for key := range l.set.InOrder() {
		keys = append(keys, key)
	}
	return keys
}

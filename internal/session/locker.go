package session

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 256

// Locker serializes work on the same session ID. IDs are hashed onto a fixed
// set of mutexes, so unrelated sessions may occasionally share a stripe.
type Locker struct {
	stripes [lockStripes]sync.Mutex
}

// Lock blocks until id is free and returns the matching unlock function.
func (l *Locker) Lock(id string) (unlock func()) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	mu := &l.stripes[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

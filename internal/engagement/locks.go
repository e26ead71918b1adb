package engagement

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 256

// keyLocks serialises work on the same key within this process using a fixed
// set of mutexes. Distinct keys may share a stripe.
type keyLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *keyLocks) lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	mu := &l.stripes[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

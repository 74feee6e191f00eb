package conversation

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairLocksSerializeSameKey(t *testing.T) {
	locks := newPairLocks()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.Lock("a:b")
			defer release()
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Zero(t, locks.size())
}

func TestPairLocksIndependentKeys(t *testing.T) {
	locks := newPairLocks()
	releaseA := locks.Lock("a:b")
	releaseB := locks.Lock("c:d")
	assert.Equal(t, 2, locks.size())

	releaseA()
	releaseB()
	assert.Zero(t, locks.size())
}

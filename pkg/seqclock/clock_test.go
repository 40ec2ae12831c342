package seqclock

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClock_Next(t *testing.T) {
	c := New(0)

	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}

func TestClock_Seed(t *testing.T) {
	c := New(100)

	assert.Equal(t, int64(100), c.Current())
	assert.Equal(t, int64(101), c.Next())
}

func TestClock_ConcurrentNoDuplicatesNoGaps(t *testing.T) {
	const (
		goroutines = 16
		perWorker  = 200
	)

	c := New(0)
	results := make(chan int64, goroutines*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				results <- c.Next()
			}
		}()
	}
	wg.Wait()
	close(results)

	var values []int64
	for v := range results {
		values = append(values, v)
	}
	require.Len(t, values, goroutines*perWorker)

	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	for i, v := range values {
		assert.Equal(t, int64(i+1), v, "sequence must have no duplicates and no gaps")
	}
}

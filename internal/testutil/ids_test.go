package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceGenerator_Sequence(t *testing.T) {
	gen := NewSequenceGenerator("")

	assert.Equal(t, "req-0001", gen.Generate())
	assert.Equal(t, "req-0002", gen.Generate())

	gen.Reset()
	assert.Equal(t, "req-0001", gen.Generate())
}

func TestSequenceGenerator_ThreadSafe(t *testing.T) {
	gen := NewSequenceGenerator("x")
	const workers = 20
	const perWorker = 50

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				id := gen.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}

func TestFixedGenerator(t *testing.T) {
	assert.Equal(t, "abc", NewFixedGenerator("abc").Generate())
	assert.Equal(t, "test-request", NewFixedGenerator("").Generate())
}

package utils

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	tomb "gopkg.in/tomb.v2"
)

func TestWorkerPool_ProcessesTasks(t *testing.T) {
	pool := NewWorkerPool(4, zerolog.Nop())
	assert.Equal(t, 4, pool.Size())
	assert.Equal(t, TASK_CHAN_SIZE, pool.Capacity())

	var (
		mu   sync.Mutex
		seen = make(map[int]bool)
	)
	var tb tomb.Tomb
	pool.Setup(&tb, func(t *tomb.Tomb, task any) error {
		mu.Lock()
		defer mu.Unlock()
		seen[task.(int)] = true
		return nil
	})

	for i := 0; i < 50; i++ {
		assert.True(t, pool.AddTask(&tb, i))
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 50
	}, time.Second, 5*time.Millisecond)

	tb.Kill(nil)
	assert.NoError(t, tb.Wait())
	assert.False(t, pool.AddTask(&tb, 51))
}

func TestWorkerPool_ErrorKillsTomb(t *testing.T) {
	pool := NewWorkerPool(2, zerolog.Nop())
	errBoom := errors.New("boom")

	var tb tomb.Tomb
	pool.Setup(&tb, func(t *tomb.Tomb, task any) error {
		return errBoom
	})
	pool.AddTask(&tb, struct{}{})

	assert.ErrorIs(t, tb.Wait(), errBoom)
}

func TestWorkerPool_ZeroSize(t *testing.T) {
	assert.Equal(t, 1, NewWorkerPool(0, zerolog.Nop()).Size())
}

package utils

import (
	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"
)

const (
	TASK_CHAN_SIZE = 100
)

type WorkerFunction = func(t *tomb.Tomb, task any) error

// WorkerPool runs a fixed number of workers consuming a shared task queue.
// Tasks are opaque to the pool; a worker function may push a task back with
// AddTask to have it picked up again later.
type WorkerPool struct {
	n     int      // number of workers
	tasks chan any // task queue
	log   zerolog.Logger
}

func NewWorkerPool(size uint, log zerolog.Logger) *WorkerPool {
	if size == 0 {
		size = 1
	}
	return &WorkerPool{
		n:     int(size),
		tasks: make(chan any, TASK_CHAN_SIZE),
		log:   log.With().Str("component", "worker_pool").Logger(),
	}
}

func (pool *WorkerPool) Size() int {
	return pool.n
}

// Capacity is the number of tasks the queue holds before AddTask blocks.
func (pool *WorkerPool) Capacity() int {
	return cap(pool.tasks)
}

// Setup starts the workers under t. They stop when t is dying or when the
// work function returns an error, which kills t.
func (pool *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunction) {
	for id := 0; id < pool.n; id++ {
		t.Go(func() error {
			return pool.worker(t, id, work)
		})
	}
}

// AddTask queues a task. Returns false once t is dying.
func (pool *WorkerPool) AddTask(t *tomb.Tomb, task any) bool {
	select {
	case <-t.Dying():
		return false
	default:
	}
	select {
	case pool.tasks <- task:
		return true
	case <-t.Dying():
		return false
	}
}

// Workers wait on tasks in the task queue and action them.
func (pool *WorkerPool) worker(t *tomb.Tomb, id int, work WorkerFunction) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-pool.tasks:
			if err := work(t, task); err != nil {
				pool.log.Error().Err(err).Int("id", id).Msg("worker exiting")
				return err
			}
		}
	}
}

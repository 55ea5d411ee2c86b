package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultMaxWorkers = 4
	DefaultQueueSize  = 256

	submitTimeout = time.Second
)

type Task = func()

// WorkerPool runs tasks on a fixed number of goroutines. A panicking task is
// logged and does not take its worker down.
type WorkerPool struct {
	tasks         chan Task
	wg            sync.WaitGroup
	activeWorkers int
	busyWorkers   int
	maxWorkers    int
	logger        zerolog.Logger
	mu            sync.RWMutex

	// stateMu guards started and stopped so Submit never races close(tasks)
	stateMu sync.RWMutex
	started bool
	stopped bool
}

func NewWorkerPool(maxWorkers, queueSize int, logger zerolog.Logger) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &WorkerPool{
		tasks:      make(chan Task, queueSize),
		maxWorkers: maxWorkers,
		logger:     logger.With().Str("component", "worker_pool").Logger(),
	}
}

func (wp *WorkerPool) Start(ctx context.Context) error {
	wp.stateMu.Lock()
	defer wp.stateMu.Unlock()
	if wp.started {
		return nil
	}
	wp.started = true

	for i := 0; i < wp.maxWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	wp.logger.Info().Int("max_workers", wp.maxWorkers).Int("queue_capacity", cap(wp.tasks)).Msg("Worker pool started")
	return nil
}

// Stop drains queued tasks and waits for the workers to exit.
func (wp *WorkerPool) Stop() error {
	wp.stateMu.Lock()
	if wp.stopped {
		wp.stateMu.Unlock()
		return nil
	}
	wp.stopped = true
	close(wp.tasks)
	wp.stateMu.Unlock()

	wp.wg.Wait()

	wp.logger.Info().Msg("Worker pool stopped")
	return nil
}

// Submit enqueues task, waiting up to a second when the queue is full. It
// reports false when the task was dropped.
func (wp *WorkerPool) Submit(task Task) bool {
	wp.stateMu.RLock()
	defer wp.stateMu.RUnlock()
	if wp.stopped {
		wp.logger.Warn().Msg("Task submitted to stopped worker pool")
		return false
	}

	select {
	case wp.tasks <- task:
		return true
	default:
	}

	wp.logger.Warn().Msg("Worker pool task queue is full")
	select {
	case wp.tasks <- task:
		return true
	case <-time.After(submitTimeout):
		wp.logger.Error().Msg("Failed to submit task to worker pool (timeout)")
		return false
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	wp.mu.Lock()
	wp.activeWorkers++
	wp.mu.Unlock()

	for task := range wp.tasks {
		wp.run(id, task)
	}

	wp.mu.Lock()
	wp.activeWorkers--
	wp.mu.Unlock()

	wp.logger.Debug().Int("worker_id", id).Msg("Worker stopped")
}

func (wp *WorkerPool) run(id int, task Task) {
	wp.mu.Lock()
	wp.busyWorkers++
	wp.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error().
				Int("worker_id", id).
				Interface("panic", r).
				Msg("Worker recovered from panic")
		}

		wp.mu.Lock()
		wp.busyWorkers--
		wp.mu.Unlock()
	}()

	task()
}

func (wp *WorkerPool) GetActiveWorkers() int {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	return wp.activeWorkers
}

func (wp *WorkerPool) GetQueueLength() int {
	return len(wp.tasks)
}

func (wp *WorkerPool) GetStats() map[string]interface{} {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	return map[string]interface{}{
		"active_workers": wp.activeWorkers,
		"busy_workers":   wp.busyWorkers,
		"max_workers":    wp.maxWorkers,
		"queue_length":   len(wp.tasks),
		"queue_capacity": cap(wp.tasks),
	}
}

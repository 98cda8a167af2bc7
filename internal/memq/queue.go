package memq

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ivolkova/luthier/internal/job"
)

type JobHandler func(ctx context.Context, j *job.Job) error

type JobQueue interface {
	Enqueue(ctx context.Context, j *job.Job) (uuid.UUID, error)
	Status(ctx context.Context, id uuid.UUID) (*job.Job, bool)
	StartConsumers(ctx context.Context, n int, handler JobHandler)
	Len() int
	Close() error
}

type memQueue struct {
	buf     chan *job.Job
	maxWait time.Duration

	mu   sync.RWMutex
	jobs map[uuid.UUID]*job.Job
}

func NewMemoryQueue(buffer int, maxJobDuration time.Duration) JobQueue {
	return &memQueue{
		buf:     make(chan *job.Job, buffer),
		maxWait: maxJobDuration,
		jobs:    make(map[uuid.UUID]*job.Job, buffer),
	}
}

func (q *memQueue) Enqueue(ctx context.Context, j *job.Job) (uuid.UUID, error) {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	j.Status = job.StatusQueued
	j.Enqueued = time.Now()

	select {
	case q.buf <- j:
		q.mu.Lock()
		q.jobs[j.ID] = j
		q.mu.Unlock()
		return j.ID, nil
	case <-ctx.Done():
		return uuid.Nil, ctx.Err()
	}
}

// Status returns a snapshot of the job so callers never observe a consumer
// mid-update.
func (q *memQueue) Status(ctx context.Context, id uuid.UUID) (*job.Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	j, ok := q.jobs[id]
	if !ok {
		return nil, false
	}
	cp := *j
	return &cp, true
}

func (q *memQueue) StartConsumers(ctx context.Context, n int, handler JobHandler) {
	for i := 0; i < n; i++ {
		go func(workerID int) {
			for {
				select {
				case <-ctx.Done():
					return
				case j := <-q.buf:
					now := time.Now()
					q.mu.Lock()
					j.Status = job.StatusRunning
					j.Started = &now
					q.mu.Unlock()

					runCtx, cancel := context.WithTimeout(ctx, q.maxWait)
					err := handler(runCtx, j)
					cancel()

					fin := time.Now()
					q.mu.Lock()
					j.Finished = &fin
					if err != nil {
						j.Status = job.StatusFailed
						j.Error = err.Error()
					} else {
						j.Status = job.StatusSucceeded
					}
					q.mu.Unlock()

					if err != nil {
						slog.Error("job failed", "id", j.ID, "type", j.Type, "err", err, "worker", workerID)
					} else {
						slog.Info("job done", "id", j.ID, "type", j.Type, "worker", workerID)
					}
				}
			}
		}(i + 1)
	}
}

func (q *memQueue) Len() int {
	return len(q.buf)
}

func (q *memQueue) Close() error {
	// In-memory queue doesn't need cleanup
	return nil
}

// SimulateHandler is a stand-in consumer for local development and tests.
func SimulateHandler(delay time.Duration) JobHandler {
	return func(ctx context.Context, j *job.Job) error {
		select {
		case <-time.After(delay):
			return nil
		case <-ctx.Done():
			return errors.New("job timeout/canceled")
		}
	}
}

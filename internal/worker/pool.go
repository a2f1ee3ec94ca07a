// Package worker is the in-process task pool behind the orchestrator's
// fire-and-forget submission: Submit returns immediately and each job runs
// as its own unit of concurrent work on a fixed set of workers.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrQueueFull is returned when the job queue cannot accept more work.
// Surfacing it at submit time keeps the no-silent-drops guarantee.
var ErrQueueFull = errors.New("job queue is full")

// Job is a unit of work to be executed by the pool.
type Job interface {
	Execute(ctx context.Context) error
	ID() string
}

// Worker pulls jobs from its own channel after registering it with the
// shared worker pool.
type worker struct {
	id         int
	workerPool chan chan Job
	jobChannel chan Job
	quit       chan struct{}
	wg         *sync.WaitGroup
	log        *logrus.Logger
}

func newWorker(id int, workerPool chan chan Job, wg *sync.WaitGroup, log *logrus.Logger) *worker {
	return &worker{
		id:         id,
		workerPool: workerPool,
		jobChannel: make(chan Job),
		quit:       make(chan struct{}),
		wg:         wg,
		log:        log,
	}
}

// start makes the worker listen for jobs on its channel. Job errors are
// logged only: the job itself records its failure state, and one job's
// failure must not affect the worker or its siblings.
func (w *worker) start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			// Register this worker's channel so the dispatcher can find it.
			w.workerPool <- w.jobChannel

			select {
			case job := <-w.jobChannel:
				entry := w.log.WithFields(logrus.Fields{"worker": w.id, "job_id": job.ID()})
				entry.Info("Worker started job")
				if err := job.Execute(ctx); err != nil {
					entry.WithField("error", err.Error()).Error("Job finished with error")
				} else {
					entry.Info("Worker finished job")
				}
			case <-w.quit:
				return
			}
		}
	}()
}

func (w *worker) stop() {
	close(w.quit)
}

// Dispatcher manages a pool of workers and routes submitted jobs to
// whichever worker is free.
type Dispatcher struct {
	maxWorkers int
	workerPool chan chan Job
	jobQueue   chan Job
	workers    []*worker
	wg         sync.WaitGroup
	quit       chan struct{}
	log        *logrus.Logger
}

// NewDispatcher creates a dispatcher with maxWorkers workers and a job
// queue of queueSize.
func NewDispatcher(maxWorkers, queueSize int, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		maxWorkers: maxWorkers,
		workerPool: make(chan chan Job, maxWorkers),
		jobQueue:   make(chan Job, queueSize),
		workers:    make([]*worker, 0, maxWorkers),
		quit:       make(chan struct{}),
		log:        log,
	}
}

// Run starts the workers and the dispatch loop. ctx is handed to every
// job execution.
func (d *Dispatcher) Run(ctx context.Context) {
	d.log.WithField("workers", d.maxWorkers).Info("Dispatcher starting")
	for i := 1; i <= d.maxWorkers; i++ {
		w := newWorker(i, d.workerPool, &d.wg, d.log)
		d.workers = append(d.workers, w)
		w.start(ctx)
	}
	go d.dispatch()
}

func (d *Dispatcher) dispatch() {
	for {
		select {
		case job := <-d.jobQueue:
			go func(job Job) {
				jobChannel := <-d.workerPool
				jobChannel <- job
			}(job)
		case <-d.quit:
			return
		}
	}
}

// Submit enqueues a job without blocking. A full queue is an error the
// caller must surface, never a dropped job.
func (d *Dispatcher) Submit(job Job) error {
	select {
	case d.jobQueue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop shuts down the dispatch loop and waits for in-flight jobs to
// finish. Queued but undispatched jobs are abandoned; the stale-job reaper
// returns them to a terminal state on next start.
func (d *Dispatcher) Stop() {
	close(d.quit)
	for _, w := range d.workers {
		w.stop()
	}
	d.wg.Wait()
	d.log.Info("Dispatcher stopped")
}

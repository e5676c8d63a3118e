package stegano

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

// ParallelConfig controls the worker pool that runs hide/reveal calls
type ParallelConfig struct {
	// MaxWorkers is the number of worker goroutines
	// If 0, defaults to runtime.NumCPU()
	MaxWorkers int

	// QueueSize is the number of jobs that may wait for a worker
	// If 0, defaults to MaxWorkers
	QueueSize int

	// Logger receives worker panics; logrus.New() when nil
	Logger *logrus.Logger
}

// Validate checks if the parallel configuration is valid
func (p *ParallelConfig) Validate() error {
	if p.MaxWorkers < 0 {
		return errors.New("parallel max workers cannot be negative")
	}
	if p.MaxWorkers > 1024 {
		return errors.New("parallel max workers must not exceed 1024")
	}
	if p.QueueSize < 0 {
		return errors.New("parallel queue size cannot be negative")
	}
	return nil
}

// DefaultParallelConfig returns the default worker pool configuration
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{
		MaxWorkers: runtime.NumCPU(),
	}
}

// job is one unit of CPU-bound work; result receives exactly one value
type job struct {
	run    func() (any, error)
	result chan jobResult
}

type jobResult struct {
	value any
	err   error
}

// Pool runs façade calls on a fixed set of workers so that callers on a
// request loop never do the transform work themselves. A caller that stops
// waiting gets ctx.Err(); the worker finishes the job and the result is
// dropped.
type Pool struct {
	stegano *Stegano
	logger  *logrus.Logger
	jobs    chan job
	closed  chan struct{}
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// NewPool starts the workers
func NewPool(s *Stegano, config ParallelConfig) (*Pool, error) {
	if s == nil {
		return nil, fmt.Errorf("stegano cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid parallel config: %w", err)
	}

	numWorkers := config.MaxWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	queue := config.QueueSize
	if queue <= 0 {
		queue = numWorkers
	}
	logger := config.Logger
	if logger == nil {
		logger = logrus.New()
	}

	p := &Pool{
		stegano: s,
		logger:  logger,
		jobs:    make(chan job, queue),
		closed:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	for w := 0; w < numWorkers; w++ {
		p.wg.Add(1)
		go p.worker(w)
	}
	return p, nil
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case j := <-p.jobs:
			j.result <- p.runJob(id, j)
		case <-p.closed:
			return
		}
	}
}

// runJob converts a panic in the job into an error
func (p *Pool) runJob(id int, j job) (res jobResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithField("worker", id).Errorf("panic in stegano worker: %v", r)
			res = jobResult{err: fmt.Errorf("panic in stegano worker: %v", r)}
		}
	}()
	v, err := j.run()
	return jobResult{value: v, err: err}
}

// submit queues run and waits for its result or for ctx
func (p *Pool) submit(ctx context.Context, run func() (any, error)) (any, error) {
	select {
	case <-p.closed:
		return nil, ErrPoolClosed
	default:
	}

	j := job{run: run, result: make(chan jobResult, 1)}
	select {
	case p.jobs <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.closed:
		return nil, ErrPoolClosed
	}

	select {
	case res := <-j.result:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		// every worker has exited, so a finished job has already delivered
		select {
		case res := <-j.result:
			return res.value, res.err
		default:
			return nil, ErrPoolClosed
		}
	}
}

// Hide runs Stegano.Hide on a worker
func (p *Pool) Hide(ctx context.Context, image []byte, message string, format Format) ([]byte, error) {
	v, err := p.submit(ctx, func() (any, error) {
		return p.stegano.Hide(image, message, format)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Reveal runs Stegano.Reveal on a worker
func (p *Pool) Reveal(ctx context.Context, image []byte) (string, error) {
	v, err := p.submit(ctx, func() (any, error) {
		return p.stegano.Reveal(image)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Capacity runs Stegano.Capacity on a worker
func (p *Pool) Capacity(ctx context.Context, image []byte) (int, error) {
	v, err := p.submit(ctx, func() (any, error) {
		return p.stegano.Capacity(image)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// Close stops the workers after their current job. Callers whose job was
// still queued receive ErrPoolClosed.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.closed)
		p.wg.Wait()
		close(p.done)
	})
}

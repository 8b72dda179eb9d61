package meshing

import (
	"context"
	"sync"

	"voxren/internal/voxel"
)

// Job is one chunk-meshing request. Gen is the chunk generation captured at
// snapshot time; consumers compare it against the live chunk to detect and
// drop stale results (e.g. the chunk was rewritten or unloaded while the
// job was in flight).
type Job struct {
	Coord voxel.Coord
	Gen   uint64
	Input *Input
	Arena *Arena

	// BudgetFaces > 0 selects single-pass generous emission with that face
	// budget; zero selects exact two-pass emission.
	BudgetFaces int

	// ResultChan receives the outcome when the job completes.
	ResultChan chan JobResult
}

// JobResult is the outcome of one mesh job.
type JobResult struct {
	Coord     voxel.Coord
	Gen       uint64
	Mesh      Result
	Truncated bool
	Err       error
}

// WorkerPool manages goroutines for mesh generation. Independent chunks
// mesh fully in parallel; the arena's atomic cursors are the only shared
// synchronization inside the pass.
type WorkerPool struct {
	jobQueue chan Job
	workers  int
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewWorkerPool creates a mesh worker pool with the given parallelism.
func NewWorkerPool(workers int, queueSize int) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	pool := &WorkerPool{
		jobQueue: make(chan Job, queueSize),
		workers:  workers,
		ctx:      ctx,
		cancel:   cancel,
	}
	for i := 0; i < workers; i++ {
		pool.wg.Add(1)
		go pool.worker()
	}
	return pool
}

// Submit queues a mesh job without blocking. Returns false when the queue
// is full; the chunk stays dirty and is retried next frame.
func (p *WorkerPool) Submit(job Job) bool {
	select {
	case p.jobQueue <- job:
		return true
	default:
		return false
	}
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobQueue:
			var res JobResult
			res.Coord = job.Coord
			res.Gen = job.Gen
			if job.BudgetFaces > 0 {
				res.Mesh, res.Truncated, res.Err = EmitGenerous(job.Input, job.Arena, job.BudgetFaces)
			} else {
				res.Mesh, res.Err = Emit(job.Input, job.Arena)
			}
			select {
			case job.ResultChan <- res:
			case <-p.ctx.Done():
				return
			}
		case <-p.ctx.Done():
			return
		}
	}
}

// Shutdown gracefully stops the workers.
func (p *WorkerPool) Shutdown() {
	p.cancel()
	p.wg.Wait()
}

// QueueLen returns the current number of queued jobs.
func (p *WorkerPool) QueueLen() int {
	return len(p.jobQueue)
}

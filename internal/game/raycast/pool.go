package raycast

import (
	"runtime"
	"sync"
)

// ColumnPool casts screen columns on a fixed set of goroutines. Each column
// is written by exactly one worker and Cast returns only after every band
// has finished, so the depth buffer is complete before sprites read it.
type ColumnPool struct {
	numWorkers int
	jobChan    chan columnJob
	wg         sync.WaitGroup
	running    bool
	mu         sync.Mutex
}

// columnJob is one contiguous band of columns
type columnJob struct {
	cam        Camera
	grid       Grid
	hits       []Hit
	depth      DepthBuffer
	lo, hi     int
	resultChan chan<- struct{}
}

// minParallelColumns is the width below which a frame is cast inline.
const minParallelColumns = 64

// NewColumnPool creates a pool with numWorkers goroutines.
// If numWorkers is 0, it defaults to NumCPU.
func NewColumnPool(numWorkers int) *ColumnPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	// Cap at reasonable maximum
	if numWorkers > 16 {
		numWorkers = 16
	}

	return &ColumnPool{numWorkers: numWorkers}
}

// Start launches the workers
func (p *ColumnPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	p.running = true
	// Stop closed the previous channel
	p.jobChan = make(chan columnJob, p.numWorkers*2)
	p.wg.Add(p.numWorkers)
	for i := 0; i < p.numWorkers; i++ {
		go p.worker(p.jobChan)
	}
}

// Stop drains the workers and waits for them to exit
func (p *ColumnPool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.jobChan)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *ColumnPool) worker(jobs <-chan columnJob) {
	defer p.wg.Done()

	for job := range jobs {
		castRange(job.cam, job.grid, job.hits, job.depth, job.lo, job.hi)
		job.resultChan <- struct{}{}
	}
}

// Cast fills hits and depth for every column, in parallel when the pool is
// running and the frame is wide enough.
func (p *ColumnPool) Cast(cam Camera, grid Grid, hits []Hit, depth DepthBuffer) {
	width := len(hits)
	if width == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running || width < minParallelColumns {
		CastFrame(cam, grid, hits, depth)
		return
	}

	bandSize := (width + p.numWorkers - 1) / p.numWorkers
	resultChan := make(chan struct{}, p.numWorkers)
	numJobs := 0

	for lo := 0; lo < width; lo += bandSize {
		hi := lo + bandSize
		if hi > width {
			hi = width
		}

		job := columnJob{
			cam:        cam,
			grid:       grid,
			hits:       hits,
			depth:      depth,
			lo:         lo,
			hi:         hi,
			resultChan: resultChan,
		}

		select {
		case p.jobChan <- job:
			numJobs++
		default:
			// Channel full, cast this band here
			castRange(cam, grid, hits, depth, lo, hi)
		}
	}

	// Barrier: wait for all bands
	for i := 0; i < numJobs; i++ {
		<-resultChan
	}
}

// NumWorkers returns the number of workers in the pool
func (p *ColumnPool) NumWorkers() int {
	return p.numWorkers
}

// IsRunning returns whether the pool is currently running
func (p *ColumnPool) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Package pool implements the persistent worker thread pool that backs
// parallel task dispatch: workers drain jobs via atomic fetch-add on a
// shared job index and the caller blocks on a done condition until every
// job has completed.
package pool

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// InitFunc is called once per worker when the pool starts, returning
// thread-local data handed to every JobFunc invocation on that worker.
type InitFunc func(workerIdx int, userData any) any

// CleanupFunc is called once per worker before it exits.
type CleanupFunc func(threadLocal any, userData any)

// JobFunc is the unit of parallel work.
type JobFunc func(jobIdx uint32, threadLocal any, userData any)

// Desc configures a new Pool.
type Desc struct {
	NumWorkers int // 0 means auto (one per logical CPU, see DefaultWorkerCount)
	Init       InitFunc
	Cleanup    CleanupFunc
	UserData   any
}

// Pool is a persistent set of worker goroutines.
type Pool struct {
	numWorkers int
	mu         sync.Mutex
	workCond   *sync.Cond
	doneCond   *sync.Cond
	running    bool

	totalJobs     uint32
	nextJobIdx    atomic.Int32
	completedJobs atomic.Int32

	jobFn    JobFunc
	jobUser  any
	initFn   InitFunc
	cleanup  CleanupFunc
	initUser any

	wg sync.WaitGroup
}

// DefaultWorkerCount returns the pool's default worker count: one per
// logical CPU.
func DefaultWorkerCount() int {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	return n
}

// New creates and starts a pool per desc.
func New(desc Desc) *Pool {
	n := desc.NumWorkers
	if n <= 0 {
		n = DefaultWorkerCount()
	}

	p := &Pool{
		numWorkers: n,
		running:    true,
		initFn:     desc.Init,
		cleanup:    desc.Cleanup,
		initUser:   desc.UserData,
	}
	p.workCond = sync.NewCond(&p.mu)
	p.doneCond = sync.NewCond(&p.mu)

	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(idx int) {
	defer p.wg.Done()

	var threadLocal any
	if p.initFn != nil {
		threadLocal = p.initFn(idx, p.initUser)
	}

	for {
		p.mu.Lock()
		for p.running && p.nextJobIdx.Load() >= int32(p.totalJobs) {
			p.workCond.Wait()
		}
		if !p.running {
			p.mu.Unlock()
			break
		}
		p.mu.Unlock()

		for {
			jobID := p.nextJobIdx.Add(1) - 1
			if jobID >= int32(p.totalJobs) {
				break
			}
			p.jobFn(uint32(jobID), threadLocal, p.jobUser)

			finished := p.completedJobs.Add(1)
			if finished == int32(p.totalJobs) {
				p.mu.Lock()
				p.doneCond.Signal()
				p.mu.Unlock()
			}
		}
	}

	if p.cleanup != nil {
		p.cleanup(threadLocal, p.initUser)
	}
}

// Run executes jobCount independent jobs in parallel and blocks until all
// have completed. Must not be called from within a job (no reentrancy).
func (p *Pool) Run(jobCount uint32, jobFn JobFunc, userData any) {
	if jobCount == 0 {
		return
	}

	p.mu.Lock()
	p.jobFn = jobFn
	p.jobUser = userData
	p.totalJobs = jobCount
	p.nextJobIdx.Store(0)
	p.completedJobs.Store(0)
	p.workCond.Broadcast()

	for p.completedJobs.Load() < int32(jobCount) {
		p.doneCond.Wait()
	}
	p.mu.Unlock()
}

// NumWorkers returns the number of workers in the pool.
func (p *Pool) NumWorkers() int { return p.numWorkers }

// Shutdown signals all workers to stop and waits for them to exit.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.running = false
	p.workCond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

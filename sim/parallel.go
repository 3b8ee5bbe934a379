package sim

import (
	"runtime"
	"sync"
)

// workChunk represents a range of node slots for a worker to process.
type workChunk struct {
	start, end int
	fn         func(start, end, worker int)
}

// workerPool runs stage fan-outs over persistent worker goroutines. Each
// dispatch is a full barrier: run returns only after every chunk finished,
// which is what separates the Sensing, Deciding and Committing phases.
type workerPool struct {
	numWorkers int
	threshold  int // below this many items, run serially

	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

// newWorkerPool sizes a pool. workers == 0 means GOMAXPROCS.
func newWorkerPool(workers, threshold int) *workerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if threshold < 1 {
		threshold = 1
	}
	return &workerPool{
		numWorkers: workers,
		threshold:  threshold,
	}
}

// start launches the persistent worker goroutines.
func (p *workerPool) start() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// stop signals all workers to exit and waits for them.
func (p *workerPool) stop() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

func (p *workerPool) worker(workerID int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			chunk.fn(chunk.start, chunk.end, workerID)
			p.doneChan <- struct{}{}
		}
	}
}

// run applies fn to [0, n) and blocks until all of it is done. Small n
// runs on the calling goroutine; larger n is chunked evenly across the
// pool. fn must confine its writes to per-slot output and the worker's own
// scratch, which is what makes the fan-out safe without locks.
func (p *workerPool) run(n int, fn func(start, end, worker int)) {
	if n == 0 {
		return
	}
	if n < p.threshold || p.numWorkers == 1 {
		fn(0, n, 0)
		return
	}

	if !p.running {
		p.start()
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers

	chunksDispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		p.workChan <- workChunk{start: start, end: end, fn: fn}
		chunksDispatched++
	}

	for i := 0; i < chunksDispatched; i++ {
		<-p.doneChan
	}
}

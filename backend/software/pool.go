package software

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// groupJob is one thread group of a dispatch.
type groupJob struct {
	x, y uint32
	run  func(x, y uint32)
	wg   *sync.WaitGroup
}

// groupPool runs thread groups on a fixed set of goroutines.
//
// Each worker owns a queue and steals from the others when its own queue is
// empty, which balances dispatches where some groups (those covering
// geometry) are much slower than others (those covering sky).
type groupPool struct {
	workers int
	queues  []chan groupJob
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// newGroupPool starts a pool. If workers is 0 or negative, GOMAXPROCS is used.
func newGroupPool(workers int) *groupPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	queueSize := max(workers*4, 8)

	p := &groupPool{
		workers: workers,
		queues:  make([]chan groupJob, workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan groupJob, queueSize)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *groupPool) worker(id int) {
	defer p.wg.Done()

	own := p.queues[id]
	for {
		select {
		case <-p.done:
			p.drain(own)
			return
		case job := <-own:
			job.exec()
		default:
			if job, ok := p.steal(id); ok {
				job.exec()
				continue
			}
			select {
			case <-p.done:
				p.drain(own)
				return
			case job := <-own:
				job.exec()
			}
		}
	}
}

func (j groupJob) exec() {
	defer j.wg.Done()
	j.run(j.x, j.y)
}

func (p *groupPool) drain(q chan groupJob) {
	for {
		select {
		case job := <-q:
			job.exec()
		default:
			return
		}
	}
}

func (p *groupPool) steal(self int) (groupJob, bool) {
	for i := range p.workers {
		if i == self {
			continue
		}
		select {
		case job := <-p.queues[i]:
			return job, true
		default:
		}
	}
	return groupJob{}, false
}

// dispatch runs run for every group in [0,gx) x [0,gy) and returns when all
// of them have finished. Groups are dealt round-robin, row by row.
func (p *groupPool) dispatch(gx, gy uint32, run func(x, y uint32)) {
	total := int(gx) * int(gy)
	if total == 0 || !p.running.Load() {
		return
	}

	var wg sync.WaitGroup
	wg.Add(total)
	i := 0
	for y := range gy {
		for x := range gx {
			job := groupJob{x: x, y: y, run: run, wg: &wg}
			select {
			case p.queues[i%p.workers] <- job:
			case <-p.done:
				wg.Done()
			}
			i++
		}
	}
	wg.Wait()
}

// close stops the workers after the queued groups have run.
// It is safe to call more than once.
func (p *groupPool) close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

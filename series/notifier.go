package series

import "sync"

// notifyPool is the shared executor for subscriber wakeups. Dispatching
// off the writer's goroutine keeps mutation latency independent of
// consumer behavior: a slow subscriber delays other wakeups, never the
// writer.
var notifyPool = newWorkerPool(4, 1024)

type workerPool struct {
	tasks   chan func()
	workers int
	once    sync.Once
}

func newWorkerPool(workers, backlog int) *workerPool {
	return &workerPool{
		tasks:   make(chan func(), backlog),
		workers: workers,
	}
}

func (p *workerPool) start() {
	for i := 0; i < p.workers; i++ {
		go p.loop()
	}
}

func (p *workerPool) loop() {
	for task := range p.tasks {
		task()
	}
}

// enqueue hands the task to a worker. When the backlog is full the task
// runs on a fresh goroutine: the writer must not block on consumers.
func (p *workerPool) enqueue(task func()) {
	p.once.Do(p.start)
	select {
	case p.tasks <- task:
	default:
		go task()
	}
}

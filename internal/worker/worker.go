package worker

type Worker struct {
	pool       *jobChannelPool
	handler    Handler
	jobChannel chan Job
}

func NewWorker(pool *jobChannelPool, handler Handler) *Worker {
	return &Worker{
		pool:       pool,
		handler:    handler,
		jobChannel: make(chan Job),
	}
}

func (w *Worker) Start() {
	go func() {
		for {
			select {
			case job := <-w.jobChannel:
				switch job.Type {
				case Stop:
					w.pool.retire(w.jobChannel)
					return
				case Persist:
					w.handler.HandleSubmission(job.Submission)
				}
				job.complete()
				w.pool.Release(w.jobChannel)
			case <-w.pool.quit:
				return
			}
		}
	}()
}

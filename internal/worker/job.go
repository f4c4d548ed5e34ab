package worker

import "time"

type JobType int

const (
	Persist JobType = iota
	Stop
)

func (t JobType) String() string {
	switch t {
	case Persist:
		return "persist"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

// Submission is a chat message accepted from a connection and waiting to be persisted.
type Submission struct {
	ConnectionID string
	Body         string
	ReceivedAt   time.Time
}

// Job is the unit the dispatcher hands to workers. Jobs sharing a ConnectionID
// run one at a time, in the order they were submitted.
type Job struct {
	Type       JobType
	Submission Submission

	finish func()
}

func (job Job) key() string {
	return job.Submission.ConnectionID
}

func (job Job) complete() {
	if job.finish != nil {
		job.finish()
	}
}

// Handler executes persist jobs on a worker goroutine.
type Handler interface {
	HandleSubmission(sub Submission)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(sub Submission)

func (f HandlerFunc) HandleSubmission(sub Submission) {
	f(sub)
}

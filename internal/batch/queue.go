package batch

import "vidspeed/internal/model"

// jobQueue is the FIFO of pending jobs. It is only touched by the control
// goroutine.
type jobQueue struct {
	items []*model.Job
}

func (q *jobQueue) Push(job *model.Job) {
	q.items = append(q.items, job)
}

func (q *jobQueue) Pop() (*model.Job, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	job := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return job, true
}

func (q *jobQueue) Len() int {
	return len(q.items)
}

// Drain empties the queue and returns what was left in order.
func (q *jobQueue) Drain() []*model.Job {
	rest := q.items
	q.items = nil
	return rest
}

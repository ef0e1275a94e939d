package scheduler

import (
	"container/heap"
	"time"

	"github.com/Nozer-Taz/isco-bot/internal/domain"
)

// Payload is what a fired job needs to build and address a reminder.
type Payload struct {
	EventID     int64
	Title       string
	Description string
	MediaRef    string
	Kind        domain.Kind
	Label       string
	UserID      int64 // 0 addresses every user
}

// Broadcast reports whether the payload targets all users.
func (p Payload) Broadcast() bool { return p.UserID == 0 }

// Job is a pending timed trigger.
type Job struct {
	ID      string
	DueAt   time.Time
	Payload Payload
}

type entry struct {
	job   Job
	index int
}

// jobQueue is a min-heap ordered by due time, then id.
type jobQueue []*entry

var _ heap.Interface = (*jobQueue)(nil)

func (q jobQueue) Len() int { return len(q) }

func (q jobQueue) Less(i, j int) bool {
	if q[i].job.DueAt.Equal(q[j].job.DueAt) {
		return q[i].job.ID < q[j].job.ID
	}
	return q[i].job.DueAt.Before(q[j].job.DueAt)
}

func (q jobQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *jobQueue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// coalesce drops per-user jobs whose (event, kind) is also covered by a
// broadcast job in the same batch. Order of the remaining jobs is kept.
func coalesce(batch []Job) (out []Job, dropped int) {
	type key struct {
		event int64
		kind  domain.Kind
	}
	broadcast := make(map[key]bool)
	for _, j := range batch {
		if j.Payload.Broadcast() {
			broadcast[key{j.Payload.EventID, j.Payload.Kind}] = true
		}
	}
	for _, j := range batch {
		if !j.Payload.Broadcast() && broadcast[key{j.Payload.EventID, j.Payload.Kind}] {
			dropped++
			continue
		}
		out = append(out, j)
	}
	return out, dropped
}

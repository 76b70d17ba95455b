package dispatch

import (
	"github.com/iayvob/palboti-backend/internal/mqtt"
)

// Queue is an in-memory FIFO of pending tasks for one robot. Intake order
// is arrival order; the priority field is recorded on the task but does not
// reorder the queue. Preempted tasks re-enter at the front so they resume
// before anything that arrived later.
//
// Queue is a value type: mutating operations return a new Queue, which keeps
// the simulator's state machine purely functional.
type Queue struct {
	items []mqtt.TaskSpec
}

// Len returns the number of pending tasks
func (q Queue) Len() int {
	return len(q.items)
}

// Push appends a task at the tail
func (q Queue) Push(t mqtt.TaskSpec) Queue {
	items := make([]mqtt.TaskSpec, 0, len(q.items)+1)
	items = append(items, q.items...)
	items = append(items, t)
	return Queue{items: items}
}

// PushFront inserts a task at the head of the queue
func (q Queue) PushFront(t mqtt.TaskSpec) Queue {
	items := make([]mqtt.TaskSpec, 0, len(q.items)+1)
	items = append(items, t)
	items = append(items, q.items...)
	return Queue{items: items}
}

// Pop removes and returns the task at the head of the queue
func (q Queue) Pop() (mqtt.TaskSpec, Queue, bool) {
	if len(q.items) == 0 {
		return mqtt.TaskSpec{}, q, false
	}
	head := q.items[0]
	rest := make([]mqtt.TaskSpec, len(q.items)-1)
	copy(rest, q.items[1:])
	return head, Queue{items: rest}, true
}

// Remove deletes the task with the given id, if present
func (q Queue) Remove(taskID int64) (Queue, bool) {
	for i, t := range q.items {
		if t.ID == taskID {
			items := make([]mqtt.TaskSpec, 0, len(q.items)-1)
			items = append(items, q.items[:i]...)
			items = append(items, q.items[i+1:]...)
			return Queue{items: items}, true
		}
	}
	return q, false
}

// Tasks returns a copy of the pending tasks in queue order
func (q Queue) Tasks() []mqtt.TaskSpec {
	out := make([]mqtt.TaskSpec, len(q.items))
	copy(out, q.items)
	return out
}

package dispatch

import (
	"testing"

	"github.com/iayvob/palboti-backend/internal/mqtt"
)

func task(id int64) mqtt.TaskSpec {
	return mqtt.TaskSpec{ID: id, Type: "scan"}
}

func TestQueue_FIFOOrder(t *testing.T) {
	var q Queue
	q = q.Push(task(1))
	q = q.Push(task(2))
	q = q.Push(task(3))

	if q.Len() != 3 {
		t.Fatalf("Expected 3 tasks, got %d", q.Len())
	}

	for want := int64(1); want <= 3; want++ {
		head, rest, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop() returned no task, expected id %d", want)
		}
		if head.ID != want {
			t.Errorf("Expected task %d, got %d", want, head.ID)
		}
		q = rest
	}

	if _, _, ok := q.Pop(); ok {
		t.Error("Expected empty queue after draining")
	}
}

func TestQueue_PushFront(t *testing.T) {
	var q Queue
	q = q.Push(task(1))
	q = q.Push(task(2))

	// A preempted task goes back to the front
	q = q.PushFront(task(9))

	head, _, ok := q.Pop()
	if !ok || head.ID != 9 {
		t.Errorf("Expected preempted task 9 at head, got %v (ok=%v)", head.ID, ok)
	}
}

func TestQueue_Remove(t *testing.T) {
	var q Queue
	q = q.Push(task(1))
	q = q.Push(task(2))
	q = q.Push(task(3))

	q, removed := q.Remove(2)
	if !removed {
		t.Fatal("Expected task 2 to be removed")
	}
	if q.Len() != 2 {
		t.Errorf("Expected 2 tasks after removal, got %d", q.Len())
	}

	q, removed = q.Remove(42)
	if removed {
		t.Error("Removing an unknown task should be a no-op")
	}

	head, rest, _ := q.Pop()
	second, _, _ := rest.Pop()
	if head.ID != 1 || second.ID != 3 {
		t.Errorf("Expected remaining order [1 3], got [%d %d]", head.ID, second.ID)
	}
}

func TestQueue_ValueSemantics(t *testing.T) {
	var q Queue
	q = q.Push(task(1))

	q2 := q.Push(task(2))
	if q.Len() != 1 {
		t.Errorf("Original queue mutated by Push: len=%d", q.Len())
	}
	if q2.Len() != 2 {
		t.Errorf("Expected new queue len 2, got %d", q2.Len())
	}
}

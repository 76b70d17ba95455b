package mqtt

import (
	"time"
)

// Task message types on TopicTasks
const (
	MessageTypeNewTask    = "new_task"
	MessageTypeCancelTask = "cancel_task"
)

// StatusMessage is the full status snapshot a robot publishes every tick
type StatusMessage struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Status        string    `json:"status"`
	Battery       float64   `json:"battery"`
	Location      string    `json:"location"`
	Load          *string   `json:"load"`
	LastUpdated   time.Time `json:"lastUpdated"`
	CurrentTaskID *int64    `json:"currentTaskId"`
}

// PositionMessage is a position-only update
type PositionMessage struct {
	RobotID  string `json:"robotId"`
	Location string `json:"location"`
}

// TaskSpec is the wire form of a task sent to robots
type TaskSpec struct {
	ID             int64     `json:"id"`
	Type           string    `json:"type"`
	Priority       string    `json:"priority"`
	ProductID      string    `json:"productId"`
	SourceLocation string    `json:"sourceLocation"`
	TargetLocation string    `json:"targetLocation"`
	RobotID        string    `json:"robotId"`
	CreatedAt      time.Time `json:"createdAt"`
}

// TaskEnvelope wraps task intake and cancellation messages on TopicTasks
type TaskEnvelope struct {
	Type   string    `json:"type"`
	Task   *TaskSpec `json:"task,omitempty"`
	TaskID int64     `json:"taskId,omitempty"`
}

// CompletionMessage is published when a robot finishes a task
type CompletionMessage struct {
	TaskID      int64     `json:"taskId"`
	CompletedAt time.Time `json:"completedAt"`
	Status      string    `json:"status"`
}

package dispatch

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iayvob/palboti-backend/internal/model"
	"github.com/iayvob/palboti-backend/internal/mqtt"
)

// ErrInvalidTask is returned when a task request is missing fields required
// for its kind
var ErrInvalidTask = errors.New("invalid task request")

// TaskStore is the persistence surface the dispatcher needs
type TaskStore interface {
	CreateTask(task *model.Task) error
	GetTask(id int64) (*model.Task, error)
	UpdateTaskStatus(id int64, status string) error
}

// Publisher sends messages on the message channel
type Publisher interface {
	Publish(topic string, payload interface{}) error
}

// Dispatcher validates and persists incoming task requests and forwards
// them to robots over the message channel. Cancellation flows the same way:
// the database row is updated here, the robot learns about it via a cancel
// message.
type Dispatcher struct {
	store TaskStore
	pub   Publisher
	log   *logrus.Entry
}

// NewDispatcher creates a new task dispatcher
func NewDispatcher(store TaskStore, pub Publisher, logger *logrus.Entry) *Dispatcher {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{
		store: store,
		pub:   pub,
		log:   logger.WithField("component", "task-dispatcher"),
	}
}

// TaskRequest is an incoming request to create a task
type TaskRequest struct {
	Type           string `json:"type"`
	Priority       string `json:"priority"`
	ProductID      string `json:"productId"`
	SourceLocation string `json:"sourceLocation"`
	TargetLocation string `json:"targetLocation"`
	RobotID        string `json:"robotId"`
}

func validKind(kind string) bool {
	switch kind {
	case model.TaskKindPickup, model.TaskKindDelivery, model.TaskKindScan,
		model.TaskKindMaintenance, model.TaskKindCharging:
		return true
	}
	return false
}

func validPriority(priority string) bool {
	switch priority {
	case model.TaskPriorityLow, model.TaskPriorityMedium, model.TaskPriorityHigh:
		return true
	}
	return false
}

// Validate checks that the request carries the fields its kind requires
func (r TaskRequest) Validate() error {
	if !validKind(r.Type) {
		return fmt.Errorf("%w: unknown task type %q", ErrInvalidTask, r.Type)
	}
	if r.Priority != "" && !validPriority(r.Priority) {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidTask, r.Priority)
	}
	// Pickup and delivery need a product and somewhere to pick it up from
	if r.Type == model.TaskKindPickup || r.Type == model.TaskKindDelivery {
		if r.ProductID == "" || r.SourceLocation == "" {
			return fmt.Errorf("%w: productId and sourceLocation are required for %s tasks", ErrInvalidTask, r.Type)
		}
	}
	return nil
}

// Enqueue validates the request, persists a pending task and publishes it
// to the robot's intake topic. Invalid requests are rejected with a logged
// warning and produce no task.
func (d *Dispatcher) Enqueue(req TaskRequest) (*model.Task, error) {
	if err := req.Validate(); err != nil {
		d.log.Warnf("Rejecting task request: %v", err)
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = model.TaskPriorityMedium
	}

	task := &model.Task{
		Type:           req.Type,
		Status:         model.TaskStatusPending,
		Priority:       priority,
		ProductID:      req.ProductID,
		SourceLocation: req.SourceLocation,
		TargetLocation: req.TargetLocation,
		RobotID:        req.RobotID,
	}

	if err := d.store.CreateTask(task); err != nil {
		return nil, fmt.Errorf("failed to persist task: %w", err)
	}

	envelope := mqtt.TaskEnvelope{
		Type: mqtt.MessageTypeNewTask,
		Task: &mqtt.TaskSpec{
			ID:             task.ID,
			Type:           task.Type,
			Priority:       task.Priority,
			ProductID:      task.ProductID,
			SourceLocation: task.SourceLocation,
			TargetLocation: task.TargetLocation,
			RobotID:        task.RobotID,
			CreatedAt:      task.CreatedAt,
		},
	}

	// The task stays pending if the publish fails; the robot will never see
	// it until it is re-dispatched, but the record of intent is durable.
	if err := d.pub.Publish(mqtt.TopicTasks, envelope); err != nil {
		d.log.Errorf("Failed to publish task %d: %v", task.ID, err)
	} else {
		d.log.Infof("Dispatched task %d (%s) to robot %q", task.ID, task.Type, task.RobotID)
	}

	return task, nil
}

// Cancel cancels a task. Pending and in-progress tasks are marked cancelled
// and a cancel message is sent so the owning robot drops the task; unknown
// or already-finished tasks are a no-op.
func (d *Dispatcher) Cancel(taskID int64) error {
	task, err := d.store.GetTask(taskID)
	if err != nil {
		return fmt.Errorf("failed to load task %d: %w", taskID, err)
	}
	if task == nil {
		d.log.Infof("Cancel for unknown task %d ignored", taskID)
		return nil
	}

	switch task.Status {
	case model.TaskStatusCompleted, model.TaskStatusFailed, model.TaskStatusCancelled:
		return nil
	}

	if err := d.store.UpdateTaskStatus(taskID, model.TaskStatusCancelled); err != nil {
		return fmt.Errorf("failed to cancel task %d: %w", taskID, err)
	}

	envelope := mqtt.TaskEnvelope{
		Type:   mqtt.MessageTypeCancelTask,
		TaskID: taskID,
	}
	if err := d.pub.Publish(mqtt.TopicTasks, envelope); err != nil {
		d.log.Errorf("Failed to publish cancel for task %d: %v", taskID, err)
	}

	d.log.Infof("Cancelled task %d", taskID)
	return nil
}

package robot

import (
	"time"

	"github.com/iayvob/palboti-backend/internal/dispatch"
	"github.com/iayvob/palboti-backend/internal/model"
	"github.com/iayvob/palboti-backend/internal/mqtt"
)

// Simulation constants. Battery rates are percent per tick.
const (
	BatteryDrainActive  = 0.05
	BatteryDrainIdle    = 0.01
	BatteryChargeRate   = 0.5
	LowBatteryThreshold = 10.0
	ChargedThreshold    = 95.0
	MinBatteryForTask   = 15.0

	DefaultTickInterval = 5 * time.Second
	DefaultTaskDuration = 30 * time.Second

	// progressEpsilon absorbs float accumulation error so that e.g. three
	// ticks of a six-tick task count as the 50% waypoint
	progressEpsilon = 1e-9
)

// ActiveTask is the task a robot is currently executing. Progress runs from
// 0 to 100.
type ActiveTask struct {
	Spec     mqtt.TaskSpec
	Progress float64
}

// Machine is the complete state of one simulated robot. It is a value type:
// Step returns a new Machine and never mutates its input, which makes the
// transition logic testable without a timer or a broker.
type Machine struct {
	ID       string
	Name     string
	State    string
	Battery  float64
	Location string
	Load     *string
	Task     *ActiveTask
	Queue    dispatch.Queue
	Home     string

	TickInterval time.Duration
	TaskDuration time.Duration
}

// Config holds the initial parameters for a robot machine
type Config struct {
	ID           string
	Name         string
	Home         string
	TickInterval time.Duration
	TaskDuration time.Duration
}

// NewMachine creates a machine in its initial state: idle, full battery, at
// the home location.
func NewMachine(cfg Config) Machine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.TaskDuration <= 0 {
		cfg.TaskDuration = DefaultTaskDuration
	}
	return Machine{
		ID:           cfg.ID,
		Name:         cfg.Name,
		State:        model.RobotStateIdle,
		Battery:      100,
		Location:     cfg.Home,
		Home:         cfg.Home,
		TickInterval: cfg.TickInterval,
		TaskDuration: cfg.TaskDuration,
	}
}

// Event is an input to the state machine
type Event interface {
	isEvent()
}

// Tick advances the simulation by one fixed interval
type Tick struct {
	Now time.Time
}

// TaskReceived delivers a new task from the intake topic
type TaskReceived struct {
	Spec mqtt.TaskSpec
}

// CancelReceived delivers a task cancellation
type CancelReceived struct {
	TaskID int64
	Now    time.Time
}

func (Tick) isEvent()           {}
func (TaskReceived) isEvent()   {}
func (CancelReceived) isEvent() {}

// Effect is an outbound message the caller must publish
type Effect interface {
	isEffect()
}

// PublishStatus carries a full status snapshot for the status topic
type PublishStatus struct {
	Message mqtt.StatusMessage
}

// PublishPosition carries a position update for the position topic
type PublishPosition struct {
	Message mqtt.PositionMessage
}

// PublishCompletion carries a task completion notice
type PublishCompletion struct {
	Message mqtt.CompletionMessage
}

func (PublishStatus) isEffect()     {}
func (PublishPosition) isEffect()   {}
func (PublishCompletion) isEffect() {}

// Snapshot builds the full status message for the machine as it stands
func (m Machine) Snapshot(now time.Time) mqtt.StatusMessage {
	var taskID *int64
	if m.Task != nil {
		id := m.Task.Spec.ID
		taskID = &id
	}
	return mqtt.StatusMessage{
		ID:            m.ID,
		Name:          m.Name,
		Status:        m.State,
		Battery:       m.Battery,
		Location:      m.Location,
		Load:          m.Load,
		LastUpdated:   now,
		CurrentTaskID: taskID,
	}
}

// Step applies one event and returns the next machine state plus the
// messages to publish. All transition logic lives here.
func Step(m Machine, ev Event) (Machine, []Effect) {
	switch e := ev.(type) {
	case Tick:
		return stepTick(m, e.Now)
	case TaskReceived:
		return stepTaskReceived(m, e.Spec)
	case CancelReceived:
		return stepCancel(m, e)
	}
	return m, nil
}

func stepTaskReceived(m Machine, spec mqtt.TaskSpec) (Machine, []Effect) {
	// Tasks addressed to a different robot are not ours to run
	if spec.RobotID != "" && spec.RobotID != m.ID {
		return m, nil
	}
	m.Queue = m.Queue.Push(spec)
	return m, nil
}

func stepCancel(m Machine, e CancelReceived) (Machine, []Effect) {
	if m.Task != nil && m.Task.Spec.ID == e.TaskID {
		m.Task = nil
		m.State = model.RobotStateIdle
		return m, []Effect{PublishStatus{Message: m.Snapshot(e.Now)}}
	}
	m.Queue, _ = m.Queue.Remove(e.TaskID)
	return m, nil
}

func stepTick(m Machine, now time.Time) (Machine, []Effect) {
	var effects []Effect
	prevLocation := m.Location

	// 1. Battery update
	switch m.State {
	case model.RobotStateCharging:
		m.Battery = minFloat(100, m.Battery+BatteryChargeRate)
	case model.RobotStateIdle:
		m.Battery = maxFloat(0, m.Battery-BatteryDrainIdle)
	default:
		m.Battery = maxFloat(0, m.Battery-BatteryDrainActive)
	}

	// 2. Low-battery guard: preempt whatever is running and charge
	if m.Battery < LowBatteryThreshold && m.State != model.RobotStateCharging {
		if m.Task != nil {
			m.Queue = m.Queue.PushFront(m.Task.Spec)
			m.Task = nil
		}
		m.State = model.RobotStateCharging
	}

	// 3. Charging completion. A charging-kind task finishes through normal
	// task progress instead, so it completes rather than being dropped.
	if m.State == model.RobotStateCharging && m.Battery >= ChargedThreshold && m.Task == nil {
		m.State = model.RobotStateIdle
	}

	// 4. Task intake
	if m.Task == nil && m.State == model.RobotStateIdle &&
		m.Battery >= MinBatteryForTask && m.Queue.Len() > 0 {
		spec, rest, _ := m.Queue.Pop()
		m.Queue = rest
		m.Task = &ActiveTask{Spec: spec}
		m = enterTaskState(m, spec)
	}

	// 5. Task progress. The intake tick counts toward progress too.
	if m.Task != nil {
		var done []Effect
		m, done = advanceTask(m, now)
		effects = append(effects, done...)
	}

	if m.Location != prevLocation {
		effects = append(effects, PublishPosition{Message: mqtt.PositionMessage{
			RobotID:  m.ID,
			Location: m.Location,
		}})
	}

	// 6. Heartbeat: the full snapshot goes out every tick no matter what
	effects = append(effects, PublishStatus{Message: m.Snapshot(now)})
	return m, effects
}

func enterTaskState(m Machine, spec mqtt.TaskSpec) Machine {
	switch spec.Type {
	case model.TaskKindPickup, model.TaskKindDelivery:
		m.State = model.RobotStateMoving
		if spec.SourceLocation != "" {
			m.Location = spec.SourceLocation
		}
	case model.TaskKindScan:
		m.State = model.RobotStateScanning
		if spec.SourceLocation != "" {
			m.Location = spec.SourceLocation
		}
	case model.TaskKindCharging:
		m.State = model.RobotStateCharging
	default:
		m.State = model.RobotStateMaintenance
	}
	return m
}

func advanceTask(m Machine, now time.Time) (Machine, []Effect) {
	task := *m.Task
	task.Progress += float64(m.TickInterval) / float64(m.TaskDuration) * 100
	spec := task.Spec

	// Halfway point: a pickup has reached its source, a delivery has picked
	// the product up and heads for the target
	if task.Progress+progressEpsilon >= 50 && m.State == model.RobotStateMoving {
		switch spec.Type {
		case model.TaskKindPickup:
			m.State = model.RobotStateLoading
			if spec.SourceLocation != "" {
				m.Location = spec.SourceLocation
			}
			load := spec.ProductID
			m.Load = &load
		case model.TaskKindDelivery:
			if spec.TargetLocation != "" {
				m.Location = spec.TargetLocation
			}
			load := spec.ProductID
			m.Load = &load
		}
	}

	if task.Progress+progressEpsilon >= 100 {
		effects := []Effect{PublishCompletion{Message: mqtt.CompletionMessage{
			TaskID:      spec.ID,
			CompletedAt: now,
			Status:      "completed",
		}}}
		if spec.Type == model.TaskKindDelivery {
			if spec.TargetLocation != "" {
				m.Location = spec.TargetLocation
			}
			m.Load = nil
		}
		m.State = model.RobotStateIdle
		m.Task = nil
		return m, effects
	}

	m.Task = &task
	return m, nil
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

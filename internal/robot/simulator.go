package robot

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iayvob/palboti-backend/internal/mqtt"
)

// Channel is the slice of the message-channel client the simulator uses
type Channel interface {
	Publish(topic string, payload interface{}) error
	Subscribe(topic string, handler mqtt.Handler) (*mqtt.Registration, error)
}

// warehouse zones used for randomly generated tasks
var randomTaskLocations = []string{"A1", "A2", "A3", "B1", "B2", "B3", "C1", "C2", "C3"}

// Simulator drives one robot machine on a fixed tick. It runs a single
// event loop: timer ticks and inbound channel messages are serialized
// through one goroutine, so the machine state never needs locking.
type Simulator struct {
	machine     Machine
	channel     Channel
	log         *logrus.Entry
	events      chan Event
	ctx         context.Context
	cancel      context.CancelFunc
	randomTasks bool
	rng         *rand.Rand
	nextFakeID  int64
	taskReg     *mqtt.Registration
}

// SimulatorConfig holds simulator construction parameters
type SimulatorConfig struct {
	Machine     Machine
	Channel     Channel
	Logger      *logrus.Entry
	RandomTasks bool
}

// NewSimulator creates a simulator for one robot
func NewSimulator(cfg SimulatorConfig) *Simulator {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Simulator{
		machine:     cfg.Machine,
		channel:     cfg.Channel,
		log:         logger.WithField("component", "robot-simulator").WithField("robot", cfg.Machine.ID),
		events:      make(chan Event, 16),
		ctx:         ctx,
		cancel:      cancel,
		randomTasks: cfg.RandomTasks,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		nextFakeID:  1_000_000,
	}
}

// Start subscribes to the task topic, publishes an initial status snapshot
// and begins the tick loop.
func (s *Simulator) Start() error {
	reg, err := s.channel.Subscribe(mqtt.TopicTasks, s.handleTaskMessage)
	if err != nil {
		return err
	}
	s.taskReg = reg

	if err := s.channel.Publish(mqtt.TopicRobotStatus, s.machine.Snapshot(time.Now())); err != nil {
		s.log.Warnf("Failed to publish initial status: %v", err)
	}

	s.log.Infof("Starting robot simulation (tick %s, task duration %s)",
		s.machine.TickInterval, s.machine.TaskDuration)

	go s.loop()
	return nil
}

// Stop terminates the tick loop and unregisters the task handler
func (s *Simulator) Stop() {
	s.cancel()
	if s.taskReg != nil {
		s.taskReg.Cancel()
	}
	s.log.Info("Robot simulation stopped")
}

// handleTaskMessage parses inbound task-topic messages into events.
// Malformed messages are logged and dropped; they never reach the loop.
func (s *Simulator) handleTaskMessage(_ string, payload []byte) {
	var envelope mqtt.TaskEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.log.Warnf("Dropping malformed task message: %v", err)
		return
	}

	switch envelope.Type {
	case mqtt.MessageTypeNewTask:
		if envelope.Task == nil {
			s.log.Warn("Dropping new_task message without a task")
			return
		}
		s.events <- TaskReceived{Spec: *envelope.Task}
	case mqtt.MessageTypeCancelTask:
		if envelope.TaskID == 0 {
			s.log.Warn("Dropping cancel_task message without a task id")
			return
		}
		s.events <- CancelReceived{TaskID: envelope.TaskID, Now: time.Now()}
	default:
		s.log.Warnf("Dropping task message with unknown type %q", envelope.Type)
	}
}

func (s *Simulator) loop() {
	ticker := time.NewTicker(s.machine.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			s.maybeGenerateRandomTask()
			s.apply(Tick{Now: now})
		case ev := <-s.events:
			s.apply(ev)
		case <-s.ctx.Done():
			return
		}
	}
}

// apply advances the machine and publishes the resulting effects. Publish
// failures are logged; the tick cadence does not depend on the channel.
func (s *Simulator) apply(ev Event) {
	next, effects := Step(s.machine, ev)
	s.machine = next

	for _, effect := range effects {
		var err error
		switch e := effect.(type) {
		case PublishStatus:
			err = s.channel.Publish(mqtt.TopicRobotStatus, e.Message)
		case PublishPosition:
			err = s.channel.Publish(mqtt.TopicRobotPosition, e.Message)
		case PublishCompletion:
			s.log.Infof("Completed task %d", e.Message.TaskID)
			err = s.channel.Publish(mqtt.TopicTaskCompleted, e.Message)
		}
		if err != nil {
			s.log.Warnf("Failed to publish effect: %v", err)
		}
	}
}

// maybeGenerateRandomTask enqueues a synthetic task once in a while when
// the robot has nothing to do, mirroring real warehouse traffic for demos
func (s *Simulator) maybeGenerateRandomTask() {
	if !s.randomTasks || s.machine.Task != nil || s.machine.Queue.Len() > 0 {
		return
	}
	if s.rng.Float64() >= 0.1 {
		return
	}

	kinds := []string{"pickup", "delivery", "scan"}
	kind := kinds[s.rng.Intn(len(kinds))]
	source := randomTaskLocations[s.rng.Intn(len(randomTaskLocations))]
	target := ""
	if kind == "delivery" {
		for target == "" || target == source {
			target = randomTaskLocations[s.rng.Intn(len(randomTaskLocations))]
		}
	}

	s.nextFakeID++
	spec := mqtt.TaskSpec{
		ID:             s.nextFakeID,
		Type:           kind,
		Priority:       "medium",
		ProductID:      "P-SIM",
		SourceLocation: source,
		TargetLocation: target,
		RobotID:        s.machine.ID,
		CreatedAt:      time.Now(),
	}

	s.log.Infof("Generated random task %d (%s)", spec.ID, spec.Type)
	s.events <- TaskReceived{Spec: spec}
}

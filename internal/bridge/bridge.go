package bridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/iayvob/palboti-backend/internal/model"
	"github.com/iayvob/palboti-backend/internal/mqtt"
)

// Channel is the slice of the message-channel client the bridge uses
type Channel interface {
	Subscribe(topic string, handler mqtt.Handler) (*mqtt.Registration, error)
}

// StatusStore persists robot status, audit entries and task completions
type StatusStore interface {
	// ApplyStatus merges the given fields into the robot's durable record
	// and returns the merged result. Fields absent from the map keep their
	// stored values.
	ApplyStatus(ctx context.Context, robotID string, fields map[string]interface{}) (*model.Robot, error)
	AppendAudit(ctx context.Context, audit *model.StatusAudit) error
	// StartTask records that a robot has begun executing the task
	StartTask(ctx context.Context, taskID int64, robotID string) error
	CompleteTask(ctx context.Context, taskID int64, completedAt time.Time) error
}

// Cache holds the latest status per robot for fast reads
type Cache interface {
	SetRobotStatus(ctx context.Context, robot *model.Robot) error
}

// Broadcaster pushes merged robot records to connected dashboard clients
type Broadcaster interface {
	BroadcastRobotStatus(robot *model.Robot)
}

// Bridge subscribes to the robot topics and mirrors everything the robots
// publish into MySQL, Redis and the websocket fan-out. It is the only
// writer of robot rows; the API layer reads them.
type Bridge struct {
	channel     Channel
	store       StatusStore
	cache       Cache
	broadcaster Broadcaster
	log         *logrus.Entry
	regs        []*mqtt.Registration
}

// Config holds bridge construction parameters. Cache and Broadcaster are
// optional; a nil value disables that sink.
type Config struct {
	Channel     Channel
	Store       StatusStore
	Cache       Cache
	Broadcaster Broadcaster
	Logger      *logrus.Entry
}

// New creates a bridge. Call Start to begin consuming.
func New(cfg Config) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Bridge{
		channel:     cfg.Channel,
		store:       cfg.Store,
		cache:       cfg.Cache,
		broadcaster: cfg.Broadcaster,
		log:         logger.WithField("component", "bridge"),
	}
}

// Start subscribes to the status, position and completion topics
func (b *Bridge) Start() error {
	subs := []struct {
		topic   string
		handler mqtt.Handler
	}{
		{mqtt.TopicRobotStatus, b.handleStatus},
		{mqtt.TopicRobotPosition, b.handlePosition},
		{mqtt.TopicTaskCompleted, b.handleCompletion},
	}
	for _, sub := range subs {
		reg, err := b.channel.Subscribe(sub.topic, sub.handler)
		if err != nil {
			b.Stop()
			return err
		}
		b.regs = append(b.regs, reg)
	}
	b.log.Info("Bridge started")
	return nil
}

// Stop unregisters all topic handlers
func (b *Bridge) Stop() {
	for _, reg := range b.regs {
		reg.Cancel()
	}
	b.regs = nil
}

// handleStatus applies a status snapshot. Fields the message omits are left
// untouched in the stored record, so a partial snapshot never wipes data.
func (b *Bridge) handleStatus(_ string, payload []byte) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		b.log.Warnf("Dropping malformed status message: %v", err)
		return
	}

	var msg mqtt.StatusMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.log.Warnf("Dropping malformed status message: %v", err)
		return
	}
	if msg.ID == "" {
		b.log.Warn("Dropping status message without a robot id")
		return
	}

	fields := make(map[string]interface{})
	if _, ok := raw["name"]; ok {
		fields["name"] = msg.Name
	}
	if _, ok := raw["status"]; ok {
		fields["status"] = msg.Status
	}
	if _, ok := raw["battery"]; ok {
		fields["battery"] = msg.Battery
	}
	if _, ok := raw["location"]; ok {
		fields["location"] = msg.Location
	}
	if _, ok := raw["load"]; ok {
		fields["load"] = msg.Load
	}
	if _, ok := raw["currentTaskId"]; ok {
		fields["currentTaskId"] = msg.CurrentTaskID
	}
	if _, ok := raw["lastUpdated"]; ok {
		fields["lastUpdated"] = msg.LastUpdated
	}

	b.apply(msg.ID, fields, payload)

	// A snapshot naming a current task means the robot has started it
	if msg.CurrentTaskID != nil {
		ctx := context.Background()
		if err := b.store.StartTask(ctx, *msg.CurrentTaskID, msg.ID); err != nil {
			b.log.Errorf("Failed to mark task %d in progress: %v", *msg.CurrentTaskID, err)
		}
	}
}

// handlePosition applies a position-only update
func (b *Bridge) handlePosition(_ string, payload []byte) {
	var msg mqtt.PositionMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.log.Warnf("Dropping malformed position message: %v", err)
		return
	}
	if msg.RobotID == "" {
		b.log.Warn("Dropping position message without a robot id")
		return
	}

	b.apply(msg.RobotID, map[string]interface{}{
		"location": msg.Location,
	}, payload)
}

// handleCompletion marks the finished task in the database
func (b *Bridge) handleCompletion(_ string, payload []byte) {
	var msg mqtt.CompletionMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.log.Warnf("Dropping malformed completion message: %v", err)
		return
	}
	if msg.TaskID == 0 {
		b.log.Warn("Dropping completion message without a task id")
		return
	}

	ctx := context.Background()
	if err := b.store.CompleteTask(ctx, msg.TaskID, msg.CompletedAt); err != nil {
		b.log.Errorf("Failed to complete task %d: %v", msg.TaskID, err)
	}
}

// apply merges fields into the durable record and pushes the result to the
// cache and the broadcaster. Sink failures are logged; they never block the
// merge or each other.
func (b *Bridge) apply(robotID string, fields map[string]interface{}, payload []byte) {
	ctx := context.Background()

	robot, err := b.store.ApplyStatus(ctx, robotID, fields)
	if err != nil {
		// The live view still reflects the latest message even when the
		// durable write fails.
		b.log.Errorf("Failed to persist status for robot %s: %v", robotID, err)
		robot = &model.Robot{ID: robotID}
		mergeRobotFields(robot, fields)
	}

	audit := &model.StatusAudit{
		RobotID:  robot.ID,
		Status:   robot.Status,
		Battery:  robot.Battery,
		Location: robot.Location,
		Change:   datatypes.JSON(payload),
	}
	if err := b.store.AppendAudit(ctx, audit); err != nil {
		b.log.Errorf("Failed to append status audit for robot %s: %v", robotID, err)
	}

	if b.cache != nil {
		if err := b.cache.SetRobotStatus(ctx, robot); err != nil {
			b.log.Warnf("Failed to refresh status cache for robot %s: %v", robotID, err)
		}
	}

	if b.broadcaster != nil {
		b.broadcaster.BroadcastRobotStatus(robot)
	}
}

package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/iayvob/palboti-backend/internal/model"
)

// GormStatusStore is the MySQL-backed StatusStore
type GormStatusStore struct {
	db *gorm.DB
}

// NewGormStatusStore creates a status store backed by the given database
func NewGormStatusStore(db *gorm.DB) *GormStatusStore {
	return &GormStatusStore{db: db}
}

// ApplyStatus merges fields into the robot row, creating the row on first
// sight of a robot id
func (s *GormStatusStore) ApplyStatus(ctx context.Context, robotID string, fields map[string]interface{}) (*model.Robot, error) {
	var robot model.Robot
	err := s.db.WithContext(ctx).First(&robot, "id = ?", robotID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		robot = model.Robot{
			ID:      robotID,
			Status:  model.RobotStateIdle,
			Battery: 100,
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to query robot: %w", err)
	}

	mergeRobotFields(&robot, fields)

	if err := s.db.WithContext(ctx).Save(&robot).Error; err != nil {
		return nil, fmt.Errorf("failed to save robot: %w", err)
	}
	return &robot, nil
}

func mergeRobotFields(robot *model.Robot, fields map[string]interface{}) {
	if v, ok := fields["name"].(string); ok {
		robot.Name = v
	}
	if v, ok := fields["status"].(string); ok {
		robot.Status = v
	}
	if v, ok := fields["battery"].(float64); ok {
		robot.Battery = v
	}
	if v, ok := fields["location"].(string); ok {
		robot.Location = v
	}
	if v, ok := fields["load"]; ok {
		load, _ := v.(*string)
		robot.Load = load
	}
	if v, ok := fields["currentTaskId"]; ok {
		taskID, _ := v.(*int64)
		robot.CurrentTaskID = taskID
	}
	// A message without its own timestamp still counts as a mutation, so
	// the stamp always moves forward.
	if v, ok := fields["lastUpdated"].(time.Time); ok {
		robot.LastUpdated = v
	} else {
		robot.LastUpdated = time.Now()
	}
}

// AppendAudit inserts one status-change record
func (s *GormStatusStore) AppendAudit(ctx context.Context, audit *model.StatusAudit) error {
	return s.db.WithContext(ctx).Create(audit).Error
}

// StartTask marks a pending task in progress and records which robot took
// it. Heartbeats repeat the task id every tick, so anything other than the
// pending -> in_progress edge is ignored.
func (s *GormStatusStore) StartTask(ctx context.Context, taskID int64, robotID string) error {
	var task model.Task
	err := s.db.WithContext(ctx).First(&task, taskID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to query task: %w", err)
	}

	if task.Status != model.TaskStatusPending {
		return nil
	}

	return s.db.WithContext(ctx).Model(&model.Task{}).Where("id = ?", taskID).
		Updates(map[string]interface{}{
			"status":   model.TaskStatusInProgress,
			"robot_id": robotID,
		}).Error
}

// CompleteTask marks a task completed and stamps the completion time.
// Completions for unknown or already-finished tasks are ignored so replayed
// messages stay harmless.
func (s *GormStatusStore) CompleteTask(ctx context.Context, taskID int64, completedAt time.Time) error {
	var task model.Task
	err := s.db.WithContext(ctx).First(&task, taskID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to query task: %w", err)
	}

	if !model.ValidStatusTransition(task.Status, model.TaskStatusCompleted) {
		return nil
	}

	return s.db.WithContext(ctx).Model(&model.Task{}).Where("id = ?", taskID).
		Updates(map[string]interface{}{
			"status":       model.TaskStatusCompleted,
			"completed_at": completedAt,
		}).Error
}

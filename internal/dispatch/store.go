package dispatch

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/iayvob/palboti-backend/internal/model"
)

// GormTaskStore is the MySQL-backed TaskStore
type GormTaskStore struct {
	db *gorm.DB
}

// NewGormTaskStore creates a task store backed by the given database
func NewGormTaskStore(db *gorm.DB) *GormTaskStore {
	return &GormTaskStore{db: db}
}

// CreateTask inserts a new task row
func (s *GormTaskStore) CreateTask(task *model.Task) error {
	return s.db.Create(task).Error
}

// GetTask returns a task by id, or (nil, nil) when it does not exist
func (s *GormTaskStore) GetTask(id int64) (*model.Task, error) {
	var task model.Task
	if err := s.db.First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query task: %w", err)
	}
	return &task, nil
}

// UpdateTaskStatus sets a task's lifecycle status, enforcing the legal
// transition set
func (s *GormTaskStore) UpdateTaskStatus(id int64, status string) error {
	task, err := s.GetTask(id)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("task %d not found", id)
	}
	if !model.ValidStatusTransition(task.Status, status) {
		return fmt.Errorf("illegal task transition %s -> %s for task %d", task.Status, status, id)
	}
	return s.db.Model(&model.Task{}).Where("id = ?", id).
		Update("status", status).Error
}

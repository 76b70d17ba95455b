package model

import (
	"time"
)

// Task kinds
const (
	TaskKindPickup      = "pickup"
	TaskKindDelivery    = "delivery"
	TaskKindScan        = "scan"
	TaskKindMaintenance = "maintenance"
	TaskKindCharging    = "charging"
)

// Task lifecycle states. Legal transitions:
//
//	pending -> in_progress -> completed | failed | cancelled
//	pending -> cancelled
//	in_progress -> pending (preempted for charging)
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
	TaskStatusCancelled  = "cancelled"
)

// Task priorities
const (
	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
)

// Task represents a unit of work dispatched to a robot. Rows are retained
// after completion for history; the core never hard-deletes them.
type Task struct {
	ID             int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Type           string     `gorm:"column:type;type:varchar(16);not null;index" json:"type"`
	Status         string     `gorm:"column:status;type:varchar(16);not null;default:pending;index" json:"status"`
	Priority       string     `gorm:"column:priority;type:varchar(8);not null;default:medium" json:"priority"`
	ProductID      string     `gorm:"column:product_id;type:varchar(32)" json:"productId"`
	SourceLocation string     `gorm:"column:source_location;type:varchar(32)" json:"sourceLocation"`
	TargetLocation string     `gorm:"column:target_location;type:varchar(32)" json:"targetLocation"`
	RobotID        string     `gorm:"column:robot_id;type:varchar(32);index" json:"robotId"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	CompletedAt    *time.Time `gorm:"column:completed_at" json:"completedAt"`
}

// TableName specifies the table name for Task
func (Task) TableName() string {
	return "tasks"
}

// ValidStatusTransition reports whether moving a task from one lifecycle
// state to another is legal.
func ValidStatusTransition(from, to string) bool {
	switch from {
	case TaskStatusPending:
		return to == TaskStatusInProgress || to == TaskStatusCancelled
	case TaskStatusInProgress:
		return to == TaskStatusCompleted || to == TaskStatusFailed ||
			to == TaskStatusCancelled || to == TaskStatusPending
	}
	return false
}

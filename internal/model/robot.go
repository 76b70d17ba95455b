package model

import (
	"time"
)

// Robot operational states
const (
	RobotStateIdle        = "idle"
	RobotStateMoving      = "moving"
	RobotStateLoading     = "loading"
	RobotStateScanning    = "scanning"
	RobotStateCharging    = "charging"
	RobotStateMaintenance = "maintenance"
)

// Robot is the durable copy of a robot's last known status. The simulator
// owns the live state; this record is eventually consistent with it and is
// only written by the bridge.
type Robot struct {
	ID            string    `gorm:"column:id;type:varchar(32);primaryKey" json:"id"`
	Name          string    `gorm:"column:name;type:varchar(64);not null" json:"name"`
	Status        string    `gorm:"column:status;type:varchar(16);not null;default:idle" json:"status"`
	Battery       float64   `gorm:"column:battery;not null;default:100" json:"battery"`
	Location      string    `gorm:"column:location;type:varchar(32)" json:"location"`
	Load          *string   `gorm:"column:load;type:varchar(32)" json:"load"`
	CurrentTaskID *int64    `gorm:"column:current_task_id" json:"currentTaskId"`
	LastUpdated   time.Time `gorm:"column:last_updated;not null" json:"lastUpdated"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for Robot
func (Robot) TableName() string {
	return "robots"
}

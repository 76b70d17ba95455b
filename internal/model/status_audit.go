package model

import (
	"time"

	"gorm.io/datatypes"
)

// StatusAudit records one status-change event for a robot, written by the
// bridge whenever a status or position message is applied. Change holds the
// raw fields the message carried.
type StatusAudit struct {
	ID        int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	RobotID   string         `gorm:"column:robot_id;type:varchar(32);not null;index:idx_robot_created" json:"robotId"`
	Status    string         `gorm:"column:status;type:varchar(16)" json:"status"`
	Battery   float64        `gorm:"column:battery" json:"battery"`
	Location  string         `gorm:"column:location;type:varchar(32)" json:"location"`
	Change    datatypes.JSON `gorm:"column:change;type:json" json:"change"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime;index:idx_robot_created" json:"createdAt"`
}

// TableName specifies the table name for StatusAudit
func (StatusAudit) TableName() string {
	return "status_audits"
}

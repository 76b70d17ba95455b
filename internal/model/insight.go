package model

import (
	"gorm.io/datatypes"
)

// Insight severities
const (
	InsightSeverityInfo     = "info"
	InsightSeverityWarning  = "warning"
	InsightSeverityCritical = "critical"
)

// Insight represents an operational insight shown on the dashboard. The
// text itself comes from a Generator (rule-based or an external AI call);
// Metadata keeps the raw figures the insight was derived from.
type Insight struct {
	BaseModel
	Kind         string         `gorm:"column:kind;type:varchar(32);not null;index" json:"kind"`
	Severity     string         `gorm:"column:severity;type:varchar(16);not null;default:info" json:"severity"`
	Title        string         `gorm:"column:title;type:varchar(128);not null" json:"title"`
	Body         string         `gorm:"column:body;type:text" json:"body"`
	Metadata     datatypes.JSON `gorm:"column:metadata;type:json" json:"metadata"`
	Acknowledged bool           `gorm:"column:acknowledged;not null;default:false" json:"acknowledged"`
}

// TableName specifies the table name for Insight
func (Insight) TableName() string {
	return "insights"
}

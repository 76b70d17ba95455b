package model

// Zone represents a physical warehouse zone (a shelf section robots can
// reach, e.g. "A1")
type Zone struct {
	ID       string `gorm:"column:id;type:varchar(16);primaryKey" json:"id"`
	Name     string `gorm:"column:name;type:varchar(64);not null" json:"name"`
	Stage    int    `gorm:"column:stage;not null;default:1" json:"stage"`
	Capacity int    `gorm:"column:capacity;not null;default:10" json:"capacity"`
	BaseTimestamps
}

// TableName specifies the table name for Zone
func (Zone) TableName() string {
	return "zones"
}

// Slot represents one shelf slot inside a zone; a slot holds at most one
// product at a time
type Slot struct {
	ID        int64   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ZoneID    string  `gorm:"column:zone_id;type:varchar(16);not null;index" json:"zoneId"`
	Position  int     `gorm:"column:position;not null" json:"position"`
	ProductID *string `gorm:"column:product_id;type:varchar(32)" json:"productId"`
	BaseTimestamps
}

// TableName specifies the table name for Slot
func (Slot) TableName() string {
	return "slots"
}

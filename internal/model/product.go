package model

// Product statuses
const (
	ProductStatusStored      = "stored"
	ProductStatusProcessing  = "processing"
	ProductStatusReadyToShip = "ready-to-ship"
	ProductStatusShipped     = "shipped"
)

// Product represents an item tracked in the warehouse
type Product struct {
	ID       string  `gorm:"column:id;type:varchar(32);primaryKey" json:"id"`
	Name     string  `gorm:"column:name;type:varchar(128);not null" json:"name"`
	Category string  `gorm:"column:category;type:varchar(32);not null;index" json:"category"`
	Status   string  `gorm:"column:status;type:varchar(16);not null;default:stored;index" json:"status"`
	Location string  `gorm:"column:location;type:varchar(64)" json:"location"`
	Weight   float64 `gorm:"column:weight" json:"weight"`
	Tags     string  `gorm:"column:tags;type:varchar(255)" json:"tags"`
	BaseTimestamps
}

// TableName specifies the table name for Product
func (Product) TableName() string {
	return "products"
}

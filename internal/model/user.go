package model

// User represents a dashboard user
type User struct {
	BaseModel
	Username     string `gorm:"column:username;type:varchar(64);not null;uniqueIndex" json:"username"`
	PasswordHash string `gorm:"column:password_hash;type:varchar(128);not null" json:"-"`
	Role         string `gorm:"column:role;type:varchar(16);not null;default:viewer" json:"role"`
	Email        string `gorm:"column:email;type:varchar(128)" json:"email"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

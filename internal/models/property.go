package models

import "time"

// Property is the subset of a listing the enquiry engine reads and counts against
type Property struct {
	ID             uint     `json:"id" gorm:"primaryKey"`
	Title          string   `json:"title" gorm:"type:varchar(255);not null"`
	PropertyType   *string  `json:"property_type,omitempty" gorm:"type:varchar(50)"`
	Price          *float64 `json:"price,omitempty"`
	Status         string   `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	InquiriesCount int      `json:"inquiries_count" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name
func (Property) TableName() string {
	return "properties"
}

package models

import "time"

// NotificationAudience is who a ledger entry was addressed to
type NotificationAudience string

const (
	AudienceSubmitter NotificationAudience = "submitter"
	AudienceAgent     NotificationAudience = "agent"
	AudienceUser      NotificationAudience = "user"
)

// EnquiryNotification is one per-channel outcome in the notification ledger
type EnquiryNotification struct {
	ID        uint                 `json:"id" gorm:"primaryKey"`
	EnquiryID *uint                `json:"enquiry_id" gorm:"index"`
	UserID    *uint                `json:"user_id" gorm:"index"`
	Audience  NotificationAudience `json:"audience" gorm:"type:varchar(20);not null"`
	Template  string               `json:"template" gorm:"type:varchar(64);not null"`
	Channel   string               `json:"channel" gorm:"type:varchar(10);not null"`
	Recipient string               `json:"recipient" gorm:"type:varchar(255)"` // masked
	Sent      bool                 `json:"sent" gorm:"not null;default:false"`
	Error     string               `json:"error,omitempty" gorm:"type:text"`
	MessageID string               `json:"message_id,omitempty" gorm:"type:varchar(255)"`
	CreatedAt time.Time            `json:"created_at"`
}

// TableName specifies the table name
func (EnquiryNotification) TableName() string {
	return "enquiry_notifications"
}

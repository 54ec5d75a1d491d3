package models

import "time"

// SettingAutoAssignAgents gates agent auto-assignment
const SettingAutoAssignAgents = "auto_assign_agents"

// SystemSetting is a process-wide key/value setting
type SystemSetting struct {
	Key       string    `json:"key" gorm:"primaryKey;type:varchar(100)"`
	Value     string    `json:"value" gorm:"type:text;not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name
func (SystemSetting) TableName() string {
	return "system_settings"
}

// TicketSequence reserves ticket numbers for one calendar day
type TicketSequence struct {
	Day       string    `json:"day" gorm:"primaryKey;type:varchar(8)"`
	LastSeq   int       `json:"last_seq" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name
func (TicketSequence) TableName() string {
	return "ticket_sequences"
}

package models

import "time"

// NoteType classifies an enquiry note
type NoteType string

const (
	NoteTypeInternal            NoteType = "internal"
	NoteTypeClientCommunication NoteType = "client_communication"
	NoteTypeSystem              NoteType = "system"
	NoteTypeFollowUpReminder    NoteType = "follow_up_reminder"
)

// CommunicationMethod is how a client communication happened
type CommunicationMethod string

const (
	MethodPhone    CommunicationMethod = "phone"
	MethodEmail    CommunicationMethod = "email"
	MethodWhatsApp CommunicationMethod = "whatsapp"
	MethodInPerson CommunicationMethod = "in_person"
	MethodSystem   CommunicationMethod = "system"
)

func (t NoteType) IsValid() bool {
	switch t {
	case NoteTypeInternal, NoteTypeClientCommunication, NoteTypeSystem, NoteTypeFollowUpReminder:
		return true
	}
	return false
}

func (m CommunicationMethod) IsValid() bool {
	switch m {
	case MethodPhone, MethodEmail, MethodWhatsApp, MethodInPerson, MethodSystem:
		return true
	}
	return false
}

// EnquiryNote is an append-only annotation. A nil AuthorID means the system wrote it.
type EnquiryNote struct {
	ID                  uint                 `json:"id" gorm:"primaryKey"`
	EnquiryID           uint                 `json:"enquiry_id" gorm:"not null;index:idx_enquiry_notes_enquiry_created,priority:1"`
	AuthorID            *uint                `json:"author_id"`
	Note                string               `json:"note" gorm:"type:text;not null"`
	NoteType            NoteType             `json:"note_type" gorm:"type:varchar(32);not null;default:'internal'"`
	CommunicationMethod *CommunicationMethod `json:"communication_method,omitempty" gorm:"type:varchar(20)"`
	NextFollowUpDate    *time.Time           `json:"next_follow_up_date,omitempty"`
	CreatedAt           time.Time            `json:"created_at" gorm:"index:idx_enquiry_notes_enquiry_created,priority:2"`
}

// TableName specifies the table name
func (EnquiryNote) TableName() string {
	return "enquiry_notes"
}

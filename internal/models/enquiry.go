package models

import (
	"math"
	"time"
)

// EnquiryStatus is the case state of an enquiry
type EnquiryStatus string

const (
	EnquiryStatusNew        EnquiryStatus = "new"
	EnquiryStatusAssigned   EnquiryStatus = "assigned"
	EnquiryStatusInProgress EnquiryStatus = "in_progress"
	EnquiryStatusResolved   EnquiryStatus = "resolved"
	EnquiryStatusClosed     EnquiryStatus = "closed"
)

// EnquiryPriority ranks enquiries for agents
type EnquiryPriority string

const (
	PriorityLow    EnquiryPriority = "low"
	PriorityMedium EnquiryPriority = "medium"
	PriorityHigh   EnquiryPriority = "high"
	PriorityUrgent EnquiryPriority = "urgent"
)

// OpenEnquiryStatuses count towards an agent's load
var OpenEnquiryStatuses = []EnquiryStatus{
	EnquiryStatusNew,
	EnquiryStatusAssigned,
	EnquiryStatusInProgress,
}

var enquiryTransitions = map[EnquiryStatus][]EnquiryStatus{
	EnquiryStatusNew:        {EnquiryStatusAssigned, EnquiryStatusInProgress, EnquiryStatusClosed},
	EnquiryStatusAssigned:   {EnquiryStatusInProgress, EnquiryStatusResolved, EnquiryStatusClosed},
	EnquiryStatusInProgress: {EnquiryStatusResolved, EnquiryStatusClosed},
	EnquiryStatusResolved:   {EnquiryStatusClosed, EnquiryStatusInProgress},
}

// IsValid reports whether s is a known status
func (s EnquiryStatus) IsValid() bool {
	switch s {
	case EnquiryStatusNew, EnquiryStatusAssigned, EnquiryStatusInProgress, EnquiryStatusResolved, EnquiryStatusClosed:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is legal
func (s EnquiryStatus) CanTransitionTo(next EnquiryStatus) bool {
	for _, allowed := range enquiryTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsValid reports whether p is a known priority
func (p EnquiryPriority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Enquiry is a lead submitted against the platform or a property
type Enquiry struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	TicketNumber string `json:"ticket_number" gorm:"type:varchar(32);uniqueIndex;not null"`
	UserID       *uint  `json:"user_id" gorm:"index:idx_enquiries_user_created,priority:1"`

	Name         string `json:"name" gorm:"type:varchar(255);not null"`
	Email        string `json:"email" gorm:"type:varchar(255);not null"`
	Phone        string `json:"phone" gorm:"type:varchar(20);not null"`
	Requirements string `json:"requirements" gorm:"type:text;not null"`

	PropertyID    *uint    `json:"property_id" gorm:"index"`
	PropertyTitle *string  `json:"property_title,omitempty" gorm:"type:varchar(255)"`
	PropertyPrice *float64 `json:"property_price,omitempty"`

	Source    string `json:"source" gorm:"type:varchar(50);not null;default:'website'"`
	UserAgent string `json:"user_agent,omitempty" gorm:"type:text"`
	PageURL   string `json:"page_url,omitempty" gorm:"type:varchar(500)"`
	IPAddress string `json:"-" gorm:"type:varchar(45)"`

	Status     EnquiryStatus   `json:"status" gorm:"type:varchar(20);not null;default:'new';index:idx_enquiries_assignee_status,priority:2"`
	Priority   EnquiryPriority `json:"priority" gorm:"type:varchar(20);not null;default:'medium'"`
	AssignedTo *uint           `json:"assigned_to" gorm:"index:idx_enquiries_assignee_status,priority:1"`

	// SLA
	FirstResponseAt *time.Time `json:"first_response_at"`
	ResolvedAt      *time.Time `json:"resolved_at"`

	ResolutionNotes            *string `json:"resolution_notes,omitempty" gorm:"type:text"`
	CustomerSatisfactionRating *int    `json:"customer_satisfaction_rating,omitempty"`

	AccountCreationOffered      bool `json:"account_creation_offered" gorm:"not null;default:false"`
	AccountCreatedDuringEnquiry bool `json:"account_created_during_enquiry" gorm:"not null;default:false"`

	CreatedAt time.Time `json:"created_at" gorm:"index:idx_enquiries_user_created,priority:2"`
	UpdatedAt time.Time `json:"updated_at"`

	Assignee *User         `json:"assignee,omitempty" gorm:"foreignKey:AssignedTo"`
	Notes    []EnquiryNote `json:"notes,omitempty" gorm:"foreignKey:EnquiryID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name
func (Enquiry) TableName() string {
	return "enquiries"
}

// ResponseTimeHours is the time to first response, if any
func (e *Enquiry) ResponseTimeHours() *float64 {
	if e.FirstResponseAt == nil {
		return nil
	}
	hours := math.Round(e.FirstResponseAt.Sub(e.CreatedAt).Hours()*100) / 100
	return &hours
}

// EnquiryFilter holds list filters. Zero values are ignored.
type EnquiryFilter struct {
	Status     EnquiryStatus
	Priority   EnquiryPriority
	AssignedTo *uint
	UserID     *uint
	PropertyID *uint
	Source     string
	Search     string
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	Limit      int
}

// TrackingView is the public projection of an enquiry. It carries no submitter PII.
type TrackingView struct {
	TicketNumber      string          `json:"ticket_number"`
	Status            EnquiryStatus   `json:"status"`
	Priority          EnquiryPriority `json:"priority"`
	CreatedAt         time.Time       `json:"created_at"`
	FirstResponseAt   *time.Time      `json:"first_response_at"`
	ResponseTimeHours *float64        `json:"response_time_hours"`
	ResolvedAt        *time.Time      `json:"resolved_at"`
	AssignedAgent     *AgentContact   `json:"assigned_agent,omitempty"`
}

// AgentContact is what the public may see of an assigned agent
type AgentContact struct {
	Name       string  `json:"name"`
	Phone      string  `json:"phone,omitempty"`
	AgencyName *string `json:"agency_name,omitempty"`
}

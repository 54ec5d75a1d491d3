package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRole is the actor class of a user
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAgent UserRole = "agent"
	RoleAdmin UserRole = "admin"
)

// UserStatus is the account lifecycle state
type UserStatus string

const (
	UserStatusActive              UserStatus = "active"
	UserStatusInactive            UserStatus = "inactive"
	UserStatusSuspended           UserStatus = "suspended"
	UserStatusPendingVerification UserStatus = "pending_verification"
)

// User is an account. Agent-specific columns are null for other roles.
type User struct {
	ID   uint      `json:"id" gorm:"primaryKey"`
	UUID uuid.UUID `json:"uuid" gorm:"type:uuid;uniqueIndex;not null"`

	Name         string     `json:"name" gorm:"type:varchar(255);not null"`
	Email        *string    `json:"email,omitempty" gorm:"type:varchar(255);uniqueIndex"`
	Phone        *string    `json:"phone,omitempty" gorm:"type:varchar(20);uniqueIndex"`
	PasswordHash string     `json:"-" gorm:"type:varchar(255)"`
	Role         UserRole   `json:"role" gorm:"type:varchar(20);not null;default:'user';index"`
	Status       UserStatus `json:"status" gorm:"type:varchar(32);not null;default:'active';index"`

	EmailVerifiedAt            *time.Time `json:"email_verified_at,omitempty"`
	PhoneVerifiedAt            *time.Time `json:"phone_verified_at,omitempty"`
	EmailVerificationToken     *string    `json:"-" gorm:"type:varchar(128);index"`
	EmailVerificationExpiresAt *time.Time `json:"-"`
	PhoneVerificationCode      *string    `json:"-" gorm:"type:varchar(6)"`
	PhoneVerificationExpiresAt *time.Time `json:"-"`

	// Agent profile
	LicenseNumber   *string  `json:"license_number,omitempty" gorm:"type:varchar(64);uniqueIndex"`
	AgencyName      *string  `json:"agency_name,omitempty" gorm:"type:varchar(255)"`
	CommissionRate  *float64 `json:"commission_rate,omitempty"`
	ExperienceYears *int     `json:"experience_years,omitempty"`
	Specialization  *string  `json:"specialization,omitempty" gorm:"type:text"`
	AgentRating     *float64 `json:"agent_rating,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}

// BeforeCreate assigns the public UUID
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UUID == uuid.Nil {
		u.UUID = uuid.New()
	}
	return nil
}

// IsAssignableAgent reports whether the user can receive enquiries
func (u *User) IsAssignableAgent() bool {
	return u.Role == RoleAgent && u.Status == UserStatusActive && u.EmailVerifiedAt != nil
}

// ContactEmail returns the email or an empty string
func (u *User) ContactEmail() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

// ContactPhone returns the phone or an empty string
func (u *User) ContactPhone() string {
	if u.Phone == nil {
		return ""
	}
	return *u.Phone
}

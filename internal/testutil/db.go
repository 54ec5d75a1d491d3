// Package testutil provides an in-memory database and seed helpers for tests.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tesseract-hub/enquiry-service/internal/database"
	"github.com/tesseract-hub/enquiry-service/internal/models"
)

// NewTestDB opens a private in-memory SQLite database migrated like production.
// A single connection keeps the memory database alive and serialises transactions.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func ptr[T any](v T) *T {
	return &v
}

// AgentOption customises a seeded agent
type AgentOption func(*models.User)

func WithRating(r float64) AgentOption {
	return func(u *models.User) { u.AgentRating = ptr(r) }
}

func WithSpecialization(s string) AgentOption {
	return func(u *models.User) { u.Specialization = ptr(s) }
}

func WithStatus(s models.UserStatus) AgentOption {
	return func(u *models.User) { u.Status = s }
}

func Unverified() AgentOption {
	return func(u *models.User) { u.EmailVerifiedAt = nil }
}

// CreateAgent seeds an active, email-verified agent
func CreateAgent(t *testing.T, db *gorm.DB, name, email, phone string, opts ...AgentOption) *models.User {
	t.Helper()
	verified := time.Now().UTC().Add(-24 * time.Hour)
	agent := &models.User{
		Name:            name,
		Email:           ptr(email),
		Phone:           ptr(phone),
		Role:            models.RoleAgent,
		Status:          models.UserStatusActive,
		EmailVerifiedAt: &verified,
		AgencyName:      ptr(name + " Realty"),
	}
	for _, opt := range opts {
		opt(agent)
	}
	require.NoError(t, db.Create(agent).Error)
	return agent
}

// CreateUser seeds a user with the given role
func CreateUser(t *testing.T, db *gorm.DB, role models.UserRole, name, email, phone string) *models.User {
	t.Helper()
	user := &models.User{
		Name:   name,
		Role:   role,
		Status: models.UserStatusActive,
	}
	if email != "" {
		user.Email = ptr(email)
	}
	if phone != "" {
		user.Phone = ptr(phone)
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateProperty seeds a property
func CreateProperty(t *testing.T, db *gorm.DB, title, propertyType string) *models.Property {
	t.Helper()
	property := &models.Property{Title: title, Status: "active"}
	if propertyType != "" {
		property.PropertyType = ptr(propertyType)
	}
	require.NoError(t, db.Create(property).Error)
	return property
}

// EnableAutoAssign stores the auto_assign_agents setting
func EnableAutoAssign(t *testing.T, db *gorm.DB, enabled bool) {
	t.Helper()
	value := "false"
	if enabled {
		value = "true"
	}
	require.NoError(t, db.Save(&models.SystemSetting{Key: models.SettingAutoAssignAgents, Value: value}).Error)
}

// SeedOpenEnquiries gives agent n open enquiries
func SeedOpenEnquiries(t *testing.T, db *gorm.DB, agent *models.User, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		enquiry := &models.Enquiry{
			TicketNumber: "TKT-SEED-" + agent.UUID.String()[:8] + "-" + string(rune('A'+i)),
			Name:         "Seed",
			Email:        "seed@x.test",
			Phone:        "9000000000",
			Requirements: "seeded enquiry for load",
			Status:       models.EnquiryStatusAssigned,
			Priority:     models.PriorityMedium,
			AssignedTo:   &agent.ID,
		}
		require.NoError(t, db.Create(enquiry).Error)
	}
}

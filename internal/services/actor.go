package services

import "github.com/tesseract-hub/enquiry-service/internal/models"

// Actor is the authenticated caller of an operation
type Actor struct {
	UserID    uint
	Role      models.UserRole
	Email     string
	IPAddress string
	UserAgent string
}

func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == models.RoleAdmin
}

func (a *Actor) IsAgent() bool {
	return a != nil && a.Role == models.RoleAgent
}

func (a *Actor) userID() *uint {
	if a == nil || a.UserID == 0 {
		return nil
	}
	id := a.UserID
	return &id
}

// canView reports whether the actor may read the enquiry
func (a *Actor) canView(e *models.Enquiry) bool {
	switch {
	case a == nil:
		return false
	case a.Role == models.RoleAdmin:
		return true
	case a.Role == models.RoleAgent:
		return e.AssignedTo != nil && *e.AssignedTo == a.UserID
	default:
		return e.UserID != nil && *e.UserID == a.UserID
	}
}

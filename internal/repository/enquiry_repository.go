package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tesseract-hub/enquiry-service/internal/models"
)

// EnquiryRepository handles database operations for enquiries and their notes.
// It is bound to either the pool or an open transaction.
type EnquiryRepository struct {
	db *gorm.DB
}

// NewEnquiryRepository creates a new enquiry repository
func NewEnquiryRepository(db *gorm.DB) *EnquiryRepository {
	return &EnquiryRepository{db: db}
}

// Create inserts a new enquiry
func (r *EnquiryRepository) Create(ctx context.Context, enquiry *models.Enquiry) error {
	return r.db.WithContext(ctx).Omit("Assignee", "Notes").Create(enquiry).Error
}

// GetByID retrieves an enquiry with its assignee and optionally its notes
func (r *EnquiryRepository) GetByID(ctx context.Context, id uint, includeNotes bool) (*models.Enquiry, error) {
	var enquiry models.Enquiry
	err := r.withRelations(ctx, includeNotes).First(&enquiry, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &enquiry, nil
}

// GetByTicket retrieves an enquiry by ticket number
func (r *EnquiryRepository) GetByTicket(ctx context.Context, ticket string, includeNotes bool) (*models.Enquiry, error) {
	var enquiry models.Enquiry
	err := r.withRelations(ctx, includeNotes).First(&enquiry, "ticket_number = ?", ticket).Error
	if err != nil {
		return nil, err
	}
	return &enquiry, nil
}

func (r *EnquiryRepository) withRelations(ctx context.Context, includeNotes bool) *gorm.DB {
	query := r.db.WithContext(ctx).Preload("Assignee")
	if includeNotes {
		query = query.Preload("Notes", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		})
	}
	return query
}

// List retrieves enquiries with filtering and pagination, newest first
func (r *EnquiryRepository) List(ctx context.Context, filter models.EnquiryFilter) ([]models.Enquiry, int64, error) {
	var enquiries []models.Enquiry
	var total int64

	query := r.applyFilters(r.db.WithContext(ctx).Model(&models.Enquiry{}), filter)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := models.NormalizePage(filter.Page, filter.Limit)
	err := query.
		Preload("Assignee").
		Order("created_at DESC, id DESC").
		Offset(models.Offset(page, limit)).
		Limit(limit).
		Find(&enquiries).Error
	if err != nil {
		return nil, 0, err
	}
	return enquiries, total, nil
}

func (r *EnquiryRepository) applyFilters(query *gorm.DB, filter models.EnquiryFilter) *gorm.DB {
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}
	if filter.AssignedTo != nil {
		query = query.Where("assigned_to = ?", *filter.AssignedTo)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.PropertyID != nil {
		query = query.Where("property_id = ?", *filter.PropertyID)
	}
	if filter.Source != "" {
		query = query.Where("source = ?", filter.Source)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(strings.TrimSpace(filter.Search)) + "%"
		query = query.Where(
			"LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ? OR LOWER(requirements) LIKE ? OR LOWER(ticket_number) LIKE ?",
			pattern, pattern, pattern, pattern, pattern,
		)
	}
	if filter.DateFrom != nil {
		query = query.Where("created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("created_at <= ?", *filter.DateTo)
	}
	return query
}

// UpdateFields applies a column patch to one enquiry
func (r *EnquiryRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Enquiry{}).Where("id = ?", id).Updates(fields).Error
}

// AssignIfNew assigns an agent only while the enquiry is still new.
// It reports whether the row was claimed.
func (r *EnquiryRepository) AssignIfNew(ctx context.Context, id, agentID uint, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Enquiry{}).
		Where("id = ? AND status = ?", id, models.EnquiryStatusNew).
		Updates(map[string]interface{}{
			"assigned_to":       agentID,
			"status":            models.EnquiryStatusAssigned,
			"first_response_at": gorm.Expr("COALESCE(first_response_at, ?)", now),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkFirstResponse stamps first_response_at unless already set
func (r *EnquiryRepository) MarkFirstResponse(ctx context.Context, id uint, now time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Enquiry{}).
		Where("id = ?", id).
		Update("first_response_at", gorm.Expr("COALESCE(first_response_at, ?)", now)).Error
}

// OpenLoadByAgent counts open enquiries per agent
func (r *EnquiryRepository) OpenLoadByAgent(ctx context.Context, agentIDs []uint) (map[uint]int64, error) {
	load := make(map[uint]int64, len(agentIDs))
	if len(agentIDs) == 0 {
		return load, nil
	}

	var rows []struct {
		AgentID   uint
		OpenCount int64
	}
	err := r.db.WithContext(ctx).Model(&models.Enquiry{}).
		Select("assigned_to AS agent_id, COUNT(*) AS open_count").
		Where("assigned_to IN ? AND status IN ?", agentIDs, models.OpenEnquiryStatuses).
		Group("assigned_to").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		load[row.AgentID] = row.OpenCount
	}
	return load, nil
}

// CreateNote appends a note
func (r *EnquiryRepository) CreateNote(ctx context.Context, note *models.EnquiryNote) error {
	return r.db.WithContext(ctx).Create(note).Error
}

// NextTicketSequence reserves the next ticket sequence for day (YYYYMMDD).
// Two first-of-day inserts racing surface as a unique violation; the caller's transaction retries.
func (r *EnquiryRepository) NextTicketSequence(ctx context.Context, day string) (int, error) {
	db := r.db.WithContext(ctx)

	result := db.Model(&models.TicketSequence{}).
		Where("day = ?", day).
		UpdateColumn("last_seq", gorm.Expr("last_seq + 1"))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		seq := models.TicketSequence{Day: day, LastSeq: 1}
		if err := db.Create(&seq).Error; err != nil {
			return 0, err
		}
		return 1, nil
	}

	var seq models.TicketSequence
	if err := db.First(&seq, "day = ?", day).Error; err != nil {
		return 0, err
	}
	return seq.LastSeq, nil
}

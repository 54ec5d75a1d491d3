package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tesseract-hub/enquiry-service/internal/apperrors"
	"github.com/tesseract-hub/enquiry-service/internal/middleware"
	"github.com/tesseract-hub/enquiry-service/internal/models"
	"github.com/tesseract-hub/enquiry-service/internal/policy"
	"github.com/tesseract-hub/enquiry-service/internal/services"
)

// EnquiryHandler handles enquiry endpoints
type EnquiryHandler struct {
	enquiries *services.EnquiryService
	audit     *services.AuditService
	logger    *logrus.Logger
}

// NewEnquiryHandler creates a new enquiry handler
func NewEnquiryHandler(enquiries *services.EnquiryService, audit *services.AuditService, logger *logrus.Logger) *EnquiryHandler {
	return &EnquiryHandler{
		enquiries: enquiries,
		audit:     audit,
		logger:    logger,
	}
}

type assignedAgentResponse struct {
	Name       string  `json:"name"`
	AgencyName *string `json:"agency_name"`
}

type createEnquiryResponse struct {
	TicketNumber   string                       `json:"ticket_number"`
	Status         models.EnquiryStatus         `json:"status"`
	AccountCreated bool                         `json:"account_created"`
	AssignedAgent  *assignedAgentResponse       `json:"assigned_agent,omitempty"`
	Notifications  services.NotificationSummary `json:"notifications"`
}

// CreateEnquiry accepts a public submission
// POST /api/v1/enquiries
func (h *EnquiryHandler) CreateEnquiry(c *gin.Context) {
	var input services.CreateEnquiryInput
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}
	input.IPAddress = c.ClientIP()
	input.UserAgent = c.Request.UserAgent()

	result, err := h.enquiries.CreateEnquiry(c.Request.Context(), input, middleware.GetActor(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := createEnquiryResponse{
		TicketNumber:   result.Enquiry.TicketNumber,
		Status:         result.Enquiry.Status,
		AccountCreated: result.AccountCreated,
		Notifications:  result.Notifications,
	}
	if result.AssignedAgent != nil {
		resp.AssignedAgent = &assignedAgentResponse{
			Name:       result.AssignedAgent.Name,
			AgencyName: result.AssignedAgent.AgencyName,
		}
	}
	respondOK(c, http.StatusCreated, resp)
}

// OnRateLimited records a throttled submission as a security event
func (h *EnquiryHandler) OnRateLimited(c *gin.Context) {
	h.audit.Record(c.Request.Context(), policy.KindSecurityEvent, services.AuditEntry{
		Action:      "rate_limit_exceeded",
		TableName:   "enquiries",
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
		Description: "Enquiry submission rate limit exceeded",
		Severity:    models.SeverityMedium,
		NewValues: map[string]interface{}{
			"path":       c.FullPath(),
			"request_id": c.GetString(middleware.ContextRequestID),
		},
	})
}

// TrackEnquiry returns the public status of a ticket
// GET /api/v1/enquiries/track/:ticket
func (h *EnquiryHandler) TrackEnquiry(c *gin.Context) {
	view, err := h.enquiries.TrackEnquiry(c.Request.Context(), c.Param("ticket"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, view)
}

// ListEnquiries lists enquiries visible to the caller
// GET /api/v1/enquiries
func (h *EnquiryHandler) ListEnquiries(c *gin.Context) {
	q := newQueryParser(c)
	filter := models.EnquiryFilter{
		Status:     models.EnquiryStatus(c.Query("status")),
		Priority:   models.EnquiryPriority(c.Query("priority")),
		AssignedTo: q.uintPtr("assigned_to"),
		UserID:     q.uintPtr("user_id"),
		PropertyID: q.uintPtr("property_id"),
		Source:     c.Query("source"),
		Search:     c.Query("search"),
		DateFrom:   q.date("date_from"),
		DateTo:     q.dateEnd("date_to"),
		Page:       q.intValue("page", 1),
		Limit:      q.intValue("limit", models.DefaultPageSize),
	}
	if err := q.err(); err != nil {
		respondError(c, h.logger, err)
		return
	}
	filter.Page, filter.Limit = models.NormalizePage(filter.Page, filter.Limit)

	enquiries, pagination, err := h.enquiries.ListEnquiries(c.Request.Context(), filter, middleware.GetActor(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, enquiries, pagination)
}

// GetEnquiry returns one enquiry by id or ticket number
// GET /api/v1/enquiries/:id
func (h *EnquiryHandler) GetEnquiry(c *gin.Context) {
	q := newQueryParser(c)
	includeNotes := q.boolValue("include_notes")
	if err := q.err(); err != nil {
		respondError(c, h.logger, err)
		return
	}

	enquiry, err := h.enquiries.GetEnquiry(c.Request.Context(), c.Param("id"), includeNotes, middleware.GetActor(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, enquiry)
}

// UpdateEnquiry applies a partial update
// PUT /api/v1/enquiries/:id
func (h *EnquiryHandler) UpdateEnquiry(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var input services.UpdateEnquiryInput
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}

	result, err := h.enquiries.UpdateEnquiry(c.Request.Context(), id, input, middleware.GetActor(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, result)
}

// AssignEnquiry assigns an agent
// POST /api/v1/enquiries/:id/assign
func (h *EnquiryHandler) AssignEnquiry(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var input services.AssignEnquiryInput
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}

	result, err := h.enquiries.AssignEnquiry(c.Request.Context(), id, input, middleware.GetActor(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, result)
}

// AddNote appends a note
// POST /api/v1/enquiries/:id/notes
func (h *EnquiryHandler) AddNote(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var input services.AddNoteInput
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}

	note, err := h.enquiries.AddEnquiryNote(c.Request.Context(), id, input, middleware.GetActor(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusCreated, note)
}

// BulkUpdate applies one patch to many enquiries
// POST /api/v1/enquiries/bulk-update
func (h *EnquiryHandler) BulkUpdate(c *gin.Context) {
	var input services.BulkUpdateInput
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}

	result, err := h.enquiries.BulkUpdate(c.Request.Context(), input, middleware.GetActor(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(result.StatusCode(), gin.H{
		"success": len(result.Failed) == 0,
		"data":    result,
	})
}

// ListNotifications returns the notification ledger of an enquiry
// GET /api/v1/enquiries/:id/notifications
func (h *EnquiryHandler) ListNotifications(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	notifications, err := h.enquiries.ListNotifications(c.Request.Context(), id, middleware.GetActor(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, notifications)
}

func requireActor(c *gin.Context) (*services.Actor, error) {
	actor := middleware.GetActor(c)
	if actor == nil {
		return nil, apperrors.Authentication("authentication required")
	}
	return actor, nil
}

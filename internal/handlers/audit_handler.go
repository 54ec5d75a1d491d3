package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tesseract-hub/enquiry-service/internal/models"
	"github.com/tesseract-hub/enquiry-service/internal/services"
)

// AuditHandler handles audit trail and DPDPA compliance endpoints
type AuditHandler struct {
	audit  *services.AuditService
	logger *logrus.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(audit *services.AuditService, logger *logrus.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, logger: logger}
}

// ListAuditTrail lists audit records with filtering and pagination
// GET /api/v1/audit/trail
func (h *AuditHandler) ListAuditTrail(c *gin.Context) {
	q := newQueryParser(c)
	filter := models.AuditLogFilter{
		TableName:     c.Query("table_name"),
		RecordID:      q.uintPtr("record_id"),
		UserID:        q.uintPtr("user_id"),
		Action:        c.Query("action"),
		Severity:      models.AuditSeverity(c.Query("severity")),
		LawfulPurpose: models.LawfulPurpose(c.Query("lawful_purpose")),
		FromDate:      q.date("from_date"),
		ToDate:        q.dateEnd("to_date"),
		Page:          q.intValue("page", 1),
		Limit:         q.intValue("limit", models.DefaultPageSize),
	}
	if err := q.err(); err != nil {
		respondError(c, h.logger, err)
		return
	}
	filter.Page, filter.Limit = models.NormalizePage(filter.Page, filter.Limit)

	logs, pagination, err := h.audit.ListAuditTrail(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, logs, pagination)
}

// GetAuditRecord retrieves a single audit record
// GET /api/v1/audit/:id
func (h *AuditHandler) GetAuditRecord(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	log, err := h.audit.GetRecord(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, log)
}

// ComplianceReport summarises DPDPA posture of the audit log
// GET /api/v1/audit/dpdpa-report
func (h *AuditHandler) ComplianceReport(c *gin.Context) {
	report, err := h.audit.ComplianceReport(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, report)
}

// Cleanup runs the retention sweep now
// POST /api/v1/audit/dpdpa-cleanup
func (h *AuditHandler) Cleanup(c *gin.Context) {
	actor, err := requireActor(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	result, err := h.audit.SweepExpired(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.WithFields(logrus.Fields{
		"deleted_count": result.DeletedCount,
		"actor_id":      actor.UserID,
	}).Info("Manual audit retention sweep completed")
	respondOK(c, http.StatusOK, result)
}

// ExtendRetention places a record on legal hold
// POST /api/v1/audit/:id/extend-retention
func (h *AuditHandler) ExtendRetention(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	actor, err := requireActor(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var input services.ExtendRetentionInput
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}

	log, err := h.audit.ExtendRetention(c.Request.Context(), id, input, actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, log)
}

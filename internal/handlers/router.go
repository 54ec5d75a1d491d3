package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tesseract-hub/enquiry-service/internal/metrics"
	"github.com/tesseract-hub/enquiry-service/internal/middleware"
	"github.com/tesseract-hub/enquiry-service/internal/models"
)

// RouterDeps holds everything the HTTP surface is assembled from
type RouterDeps struct {
	Logger         *logrus.Logger
	AllowedOrigins []string
	Tokens         middleware.TokenValidator
	RateLimiter    *middleware.RateLimiter
	SubmitRule     middleware.RateLimitRule

	Enquiries *EnquiryHandler
	Audit     *AuditHandler
	Accounts  *AccountHandler
	Health    *HealthHandler
}

// NewRouter builds the gin engine with middleware and all routes
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.Logger(deps.Logger))
	router.Use(middleware.SetupCORS(deps.AllowedOrigins))
	router.Use(metrics.Middleware())

	router.GET("/health", deps.Health.Health)
	router.GET("/ready", deps.Health.Ready)
	router.GET("/metrics", metrics.Handler())

	authRequired := middleware.AuthRequired(deps.Tokens)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	v1 := router.Group("/api/v1")

	enquiries := v1.Group("/enquiries")
	{
		enquiries.POST("",
			deps.RateLimiter.Middleware(deps.SubmitRule, deps.Enquiries.OnRateLimited),
			middleware.OptionalAuth(deps.Tokens),
			deps.Enquiries.CreateEnquiry,
		)
		enquiries.GET("/track/:ticket", deps.Enquiries.TrackEnquiry)

		enquiries.GET("", authRequired, deps.Enquiries.ListEnquiries)
		enquiries.POST("/bulk-update", authRequired, adminOnly, deps.Enquiries.BulkUpdate)
		enquiries.GET("/:id", authRequired, deps.Enquiries.GetEnquiry)
		enquiries.PUT("/:id", authRequired, deps.Enquiries.UpdateEnquiry)
		enquiries.POST("/:id/assign", authRequired, adminOnly, deps.Enquiries.AssignEnquiry)
		enquiries.POST("/:id/notes", authRequired, deps.Enquiries.AddNote)
		enquiries.GET("/:id/notifications", authRequired, deps.Enquiries.ListNotifications)
	}

	audit := v1.Group("/audit", authRequired, adminOnly)
	{
		audit.GET("/trail", deps.Audit.ListAuditTrail)
		audit.GET("/dpdpa-report", deps.Audit.ComplianceReport)
		audit.POST("/dpdpa-cleanup", deps.Audit.Cleanup)
		audit.GET("/:id", deps.Audit.GetAuditRecord)
		audit.POST("/:id/extend-retention", deps.Audit.ExtendRetention)
	}

	accounts := v1.Group("/accounts", authRequired)
	{
		accounts.POST("/:id/resend-verification", deps.Accounts.ResendVerification)
	}

	return router
}

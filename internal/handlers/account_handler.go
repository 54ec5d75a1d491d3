package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tesseract-hub/enquiry-service/internal/services"
)

// AccountHandler handles account verification endpoints
type AccountHandler struct {
	identity *services.IdentityService
	logger   *logrus.Logger
}

func NewAccountHandler(identity *services.IdentityService, logger *logrus.Logger) *AccountHandler {
	return &AccountHandler{identity: identity, logger: logger}
}

// ResendVerification issues fresh verification credentials for a pending account
// POST /api/v1/accounts/:id/resend-verification
func (h *AccountHandler) ResendVerification(c *gin.Context) {
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

	result, err := h.identity.ResendVerification(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, result)
}

package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tesseract-hub/enquiry-service/internal/apperrors"
	"github.com/tesseract-hub/enquiry-service/internal/models"
	"github.com/tesseract-hub/enquiry-service/internal/repository"
)

// AgentCandidate is an eligible agent and its open enquiry load
type AgentCandidate struct {
	Agent models.User
	Load  int64
}

// AgentAssigner picks one agent for a new enquiry
type AgentAssigner struct {
	autoAssignDefault bool
	logger            *logrus.Logger
}

// NewAgentAssigner creates an assigner. autoAssignDefault applies while the setting is unset.
func NewAgentAssigner(autoAssignDefault bool, logger *logrus.Logger) *AgentAssigner {
	return &AgentAssigner{autoAssignDefault: autoAssignDefault, logger: logger}
}

// SelectAgent returns the top-ranked eligible agent, or nil when auto-assignment
// is off or no agent is eligible. It must run inside the enquiry transaction so
// load counts include assignments made by transactions that committed before it.
func (a *AgentAssigner) SelectAgent(ctx context.Context, tx *gorm.DB, enquiry *models.Enquiry) (*models.User, error) {
	enabled, err := repository.NewSettingsRepository(tx).GetBool(ctx, models.SettingAutoAssignAgents, a.autoAssignDefault)
	if err != nil {
		return nil, apperrors.FromDB(err, "failed to read auto-assign setting")
	}
	if !enabled {
		return nil, nil
	}

	agents, err := repository.NewUserRepository(tx).ListAssignableAgents(ctx)
	if err != nil {
		return nil, apperrors.FromDB(err, "failed to list agents")
	}
	if len(agents) == 0 {
		a.logger.WithField("enquiry_id", enquiry.ID).Info("No eligible agents for auto-assignment")
		return nil, nil
	}

	propertyType, err := a.propertyType(ctx, tx, enquiry)
	if err != nil {
		return nil, err
	}
	pool := filterBySpecialization(agents, propertyType)

	ids := make([]uint, len(pool))
	for i := range pool {
		ids[i] = pool[i].ID
	}
	load, err := repository.NewEnquiryRepository(tx).OpenLoadByAgent(ctx, ids)
	if err != nil {
		return nil, apperrors.FromDB(err, "failed to count agent load")
	}

	candidates := make([]AgentCandidate, len(pool))
	for i := range pool {
		candidates[i] = AgentCandidate{Agent: pool[i], Load: load[pool[i].ID]}
	}
	ranked := RankAgents(candidates)
	selected := ranked[0].Agent

	a.logger.WithFields(logrus.Fields{
		"enquiry_id":    enquiry.ID,
		"agent_id":      selected.ID,
		"agent_load":    ranked[0].Load,
		"candidates":    len(ranked),
		"property_type": propertyType,
	}).Info("Agent selected for enquiry")
	return &selected, nil
}

func (a *AgentAssigner) propertyType(ctx context.Context, tx *gorm.DB, enquiry *models.Enquiry) (string, error) {
	if enquiry.PropertyID == nil {
		return "", nil
	}
	property, err := repository.NewPropertyRepository(tx).GetByID(ctx, *enquiry.PropertyID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.FromDB(err, "failed to load property")
	}
	if property.PropertyType == nil {
		return "", nil
	}
	return strings.TrimSpace(*property.PropertyType), nil
}

// filterBySpecialization keeps agents whose specialization mentions propertyType,
// plus agents with no specialization. An empty result falls back to every agent.
func filterBySpecialization(agents []models.User, propertyType string) []models.User {
	if propertyType == "" {
		return agents
	}
	token := strings.ToLower(propertyType)
	matched := make([]models.User, 0, len(agents))
	for _, agent := range agents {
		if agent.Specialization == nil || strings.TrimSpace(*agent.Specialization) == "" ||
			strings.Contains(strings.ToLower(*agent.Specialization), token) {
			matched = append(matched, agent)
		}
	}
	if len(matched) == 0 {
		return agents
	}
	return matched
}

// RankAgents orders candidates by rating descending (unrated last), then open
// load ascending, then id ascending. The input is not modified.
func RankAgents(candidates []AgentCandidate) []AgentCandidate {
	ranked := make([]AgentCandidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		ri, rj := ranked[i].Agent.AgentRating, ranked[j].Agent.AgentRating
		switch {
		case ri != nil && rj == nil:
			return true
		case ri == nil && rj != nil:
			return false
		case ri != nil && rj != nil && *ri != *rj:
			return *ri > *rj
		}
		if ranked[i].Load != ranked[j].Load {
			return ranked[i].Load < ranked[j].Load
		}
		return ranked[i].Agent.ID < ranked[j].Agent.ID
	})
	return ranked
}

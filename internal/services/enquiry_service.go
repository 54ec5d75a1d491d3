package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tesseract-hub/enquiry-service/internal/apperrors"
	"github.com/tesseract-hub/enquiry-service/internal/database"
	"github.com/tesseract-hub/enquiry-service/internal/metrics"
	"github.com/tesseract-hub/enquiry-service/internal/models"
	"github.com/tesseract-hub/enquiry-service/internal/policy"
	"github.com/tesseract-hub/enquiry-service/internal/repository"
	"github.com/tesseract-hub/enquiry-service/internal/templates"
)

const (
	actionEnquiryCreated  = "enquiry_created"
	actionEnquiryUpdated  = "enquiry_updated"
	actionEnquiryAssigned = "enquiry_assigned"
	tableEnquiries        = "enquiries"
)

var ticketPattern = regexp.MustCompile(`^TKT-`)

// CreateEnquiryResult is the outcome of a submission
type CreateEnquiryResult struct {
	Enquiry        *models.Enquiry
	UserID         *uint
	AccountCreated bool
	AssignedAgent  *models.User
	Notifications  NotificationSummary
	Deliveries     []Delivery
}

// EnquiryUpdateResult is the outcome of an update or assignment
type EnquiryUpdateResult struct {
	Enquiry       *models.Enquiry     `json:"enquiry"`
	Changed       bool                `json:"changed"`
	Notifications NotificationSummary `json:"notifications"`
}

// BulkFailure is one failed item of a bulk update
type BulkFailure struct {
	ID    uint   `json:"id"`
	Error string `json:"error"`
}

// BulkUpdateResult reports a bulk update item by item
type BulkUpdateResult struct {
	Successful []uint        `json:"successful"`
	Failed     []BulkFailure `json:"failed"`
}

// StatusCode is 200 when every item succeeded, 207 on partial success and 422 when all failed
func (r *BulkUpdateResult) StatusCode() int {
	switch {
	case len(r.Failed) == 0:
		return http.StatusOK
	case len(r.Successful) == 0:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusMultiStatus
	}
}

// EnquiryService orchestrates the enquiry lifecycle
type EnquiryService struct {
	store     *database.Store
	identity  *IdentityService
	assigner  *AgentAssigner
	audit     *AuditService
	notifier  *Notifier
	passwords *PasswordService
	publisher EventPublisher
	location  *time.Location
	logger    *logrus.Logger
}

// NewEnquiryService creates a new enquiry service. Ticket dates are taken in location.
func NewEnquiryService(
	store *database.Store,
	identity *IdentityService,
	assigner *AgentAssigner,
	audit *AuditService,
	notifier *Notifier,
	passwords *PasswordService,
	publisher EventPublisher,
	location *time.Location,
	logger *logrus.Logger,
) *EnquiryService {
	if location == nil {
		location = time.UTC
	}
	return &EnquiryService{
		store:     store,
		identity:  identity,
		assigner:  assigner,
		audit:     audit,
		notifier:  notifier,
		passwords: passwords,
		publisher: publisher,
		location:  location,
		logger:    logger,
	}
}

// CreateEnquiry records a submission atomically: identity resolution, the enquiry
// row, the property counter, auto-assignment and audit. Notifications are sent
// after commit and their outcomes never fail the call.
func (s *EnquiryService) CreateEnquiry(ctx context.Context, input CreateEnquiryInput, actor *Actor) (*CreateEnquiryResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	// an authenticated user submits as themself
	linkActor := actor != nil && actor.Role == models.RoleUser && actor.UserID != 0

	var passwordHash string
	if input.CreateAccount && !linkActor {
		hash, err := s.passwords.HashPassword(input.Password)
		if err != nil {
			return nil, err
		}
		passwordHash = hash
	}

	var (
		enquiry    *models.Enquiry
		resolution *Resolution
		agent      *models.User
	)
	err := s.store.WithinTx(ctx, func(tx *gorm.DB) error {
		enquiry, resolution, agent = nil, &Resolution{}, nil
		now := time.Now().UTC()

		if linkActor {
			resolution.UserID = actor.userID()
		} else {
			res, err := s.identity.Resolve(ctx, tx, input.Email, input.Phone, ResolveOptions{
				CreateAccount: input.CreateAccount,
				PasswordHash:  passwordHash,
				Name:          input.Name,
			})
			if err != nil {
				return err
			}
			resolution = res
		}

		e := &models.Enquiry{
			UserID:                      resolution.UserID,
			Name:                        input.Name,
			Email:                       input.Email,
			Phone:                       input.Phone,
			Requirements:                input.Requirements,
			PropertyTitle:               input.PropertyTitle,
			PropertyPrice:               input.PropertyPrice,
			Source:                      input.Source,
			UserAgent:                   input.UserAgent,
			PageURL:                     input.PageURL,
			IPAddress:                   input.IPAddress,
			Status:                      models.EnquiryStatusNew,
			Priority:                    models.PriorityMedium,
			AccountCreationOffered:      input.CreateAccount,
			AccountCreatedDuringEnquiry: resolution.Created,
			CreatedAt:                   now,
			UpdatedAt:                   now,
		}
		if input.PropertyID != nil {
			if err := s.attachProperty(ctx, tx, e, uint(*input.PropertyID)); err != nil {
				return err
			}
		}

		repo := repository.NewEnquiryRepository(tx)
		ticket, err := s.nextTicketNumber(ctx, repo, now)
		if err != nil {
			return err
		}
		e.TicketNumber = ticket
		if err := repo.Create(ctx, e); err != nil {
			return err
		}

		if e.PropertyID != nil {
			if _, err := repository.NewPropertyRepository(tx).IncrementInquiries(ctx, *e.PropertyID); err != nil {
				return err
			}
		}

		selected, err := s.assigner.SelectAgent(ctx, tx, e)
		if err != nil {
			return err
		}
		if selected != nil {
			claimed, err := repo.AssignIfNew(ctx, e.ID, selected.ID, now)
			if err != nil {
				return err
			}
			if claimed {
				e.AssignedTo = &selected.ID
				e.Assignee = selected
				e.Status = models.EnquiryStatusAssigned
				e.FirstResponseAt = &now
				if err := repo.CreateNote(ctx, systemNote(e.ID, nil, fmt.Sprintf("Automatically assigned to %s", selected.Name))); err != nil {
					return err
				}
				agent = selected
			}
		}

		s.audit.RecordInTx(ctx, tx, policy.KindUserAction, AuditEntry{
			Action:      actionEnquiryCreated,
			TableName:   tableEnquiries,
			RecordID:    &e.ID,
			UserID:      e.UserID,
			IPAddress:   input.IPAddress,
			UserAgent:   input.UserAgent,
			Description: fmt.Sprintf("Enquiry %s submitted", e.TicketNumber),
			Severity:    models.SeverityLow,
			NewValues:   enquirySnapshot(e),
		})
		if resolution.Created {
			s.audit.RecordInTx(ctx, tx, policy.KindUserAction, AuditEntry{
				Action:      actionAccountCreated,
				TableName:   "users",
				RecordID:    resolution.UserID,
				UserID:      resolution.UserID,
				IPAddress:   input.IPAddress,
				UserAgent:   input.UserAgent,
				Description: fmt.Sprintf("Account created with enquiry %s, verification pending", e.TicketNumber),
				Severity:    models.SeverityLow,
				NewValues: map[string]interface{}{
					"email":  input.Email,
					"phone":  input.Phone,
					"status": models.UserStatusPendingVerification,
				},
			})
		}

		enquiry = e
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithField("email", MaskEmail(input.Email)).Warn("Failed to create enquiry")
		return nil, err
	}

	metrics.EnquiriesCreated.WithLabelValues(enquiry.Source, strconv.FormatBool(agent != nil)).Inc()
	s.logger.WithFields(logrus.Fields{
		"enquiry_id":      enquiry.ID,
		"ticket_number":   enquiry.TicketNumber,
		"status":          enquiry.Status,
		"account_created": resolution.Created,
	}).Info("Enquiry created")

	go publish(s.publisher, s.logger, SubjectEnquiryCreated, newEnquiryEvent(enquiry, actor))

	var reqs []AudienceRequest
	if resolution.Created && resolution.User != nil && resolution.Credentials != nil {
		req := verificationRequest(resolution.User, resolution.Credentials)
		req.Audience = models.AudienceSubmitter
		req.Vars[templates.VarTicketNumber] = enquiry.TicketNumber
		reqs = append(reqs, req)
	}
	if agent != nil {
		reqs = append(reqs, agentRequest(templates.EnquiryNewAgent, agent, enquiry, nil))
	}
	deliveries := s.notifier.Deliver(ctx, &enquiry.ID, reqs)

	return &CreateEnquiryResult{
		Enquiry:        enquiry,
		UserID:         resolution.UserID,
		AccountCreated: resolution.Created,
		AssignedAgent:  agent,
		Notifications:  Summarize(deliveries),
		Deliveries:     deliveries,
	}, nil
}

func (s *EnquiryService) attachProperty(ctx context.Context, tx *gorm.DB, e *models.Enquiry, propertyID uint) error {
	property, err := repository.NewPropertyRepository(tx).GetByID(ctx, propertyID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.Validation("validation failed", apperrors.Field("property_id", "property not found"))
	}
	if err != nil {
		return err
	}
	e.PropertyID = &property.ID
	if e.PropertyTitle == nil {
		e.PropertyTitle = &property.Title
	}
	if e.PropertyPrice == nil {
		e.PropertyPrice = property.Price
	}
	return nil
}

// nextTicketNumber reserves TKT-YYYYMMDD-NNNN for the local day of now
func (s *EnquiryService) nextTicketNumber(ctx context.Context, repo *repository.EnquiryRepository, now time.Time) (string, error) {
	day := now.In(s.location).Format("20060102")
	seq, err := repo.NextTicketSequence(ctx, day)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("TKT-%s-%04d", day, seq), nil
}

// GetEnquiry finds an enquiry by numeric id or ticket number within the actor's scope
func (s *EnquiryService) GetEnquiry(ctx context.Context, identifier string, includeNotes bool, actor *Actor) (*models.Enquiry, error) {
	if actor == nil {
		return nil, apperrors.Authentication("authentication required")
	}
	enquiry, err := s.lookup(ctx, repository.NewEnquiryRepository(s.store.DB()), identifier, includeNotes)
	if err != nil {
		return nil, err
	}
	if !actor.canView(enquiry) {
		return nil, apperrors.Authorization("not allowed to view this enquiry")
	}
	return enquiry, nil
}

func (s *EnquiryService) lookup(ctx context.Context, repo *repository.EnquiryRepository, identifier string, includeNotes bool) (*models.Enquiry, error) {
	identifier = strings.TrimSpace(identifier)
	var (
		enquiry *models.Enquiry
		err     error
	)
	if ticketPattern.MatchString(identifier) {
		enquiry, err = repo.GetByTicket(ctx, identifier, includeNotes)
	} else {
		id, parseErr := strconv.ParseUint(identifier, 10, 64)
		if parseErr != nil || id == 0 {
			return nil, apperrors.Validation("validation failed",
				apperrors.Field("id", "must be a numeric id or a ticket number"))
		}
		enquiry, err = repo.GetByID(ctx, uint(id), includeNotes)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("enquiry")
		}
		return nil, apperrors.FromDB(err, "failed to get enquiry")
	}
	return enquiry, nil
}

// TrackEnquiry returns the public projection of an enquiry. It never exposes submitter PII.
func (s *EnquiryService) TrackEnquiry(ctx context.Context, ticket string) (*models.TrackingView, error) {
	ticket = strings.TrimSpace(ticket)
	if !ticketPattern.MatchString(ticket) {
		return nil, apperrors.Validation("validation failed", apperrors.Field("ticket_number", "must start with TKT-"))
	}
	enquiry, err := s.lookup(ctx, repository.NewEnquiryRepository(s.store.DB()), ticket, false)
	if err != nil {
		return nil, err
	}

	view := &models.TrackingView{
		TicketNumber:      enquiry.TicketNumber,
		Status:            enquiry.Status,
		Priority:          enquiry.Priority,
		CreatedAt:         enquiry.CreatedAt,
		FirstResponseAt:   enquiry.FirstResponseAt,
		ResponseTimeHours: enquiry.ResponseTimeHours(),
		ResolvedAt:        enquiry.ResolvedAt,
	}
	if enquiry.Assignee != nil {
		view.AssignedAgent = &models.AgentContact{
			Name:       enquiry.Assignee.Name,
			Phone:      enquiry.Assignee.ContactPhone(),
			AgencyName: enquiry.Assignee.AgencyName,
		}
	}
	return view, nil
}

// ListEnquiries returns a page of enquiries scoped to the actor: admins see
// all, agents their assignments, users their own submissions.
func (s *EnquiryService) ListEnquiries(ctx context.Context, filter models.EnquiryFilter, actor *Actor) ([]models.Enquiry, models.Pagination, error) {
	if actor == nil {
		return nil, models.Pagination{}, apperrors.Authentication("authentication required")
	}
	var fields []apperrors.FieldError
	if filter.Status != "" && !filter.Status.IsValid() {
		fields = append(fields, apperrors.Field("status", "unknown status"))
	}
	if filter.Priority != "" && !filter.Priority.IsValid() {
		fields = append(fields, apperrors.Field("priority", "unknown priority"))
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateFrom.After(*filter.DateTo) {
		fields = append(fields, apperrors.Field("date_from", "must not be after date_to"))
	}
	if len(fields) > 0 {
		return nil, models.Pagination{}, apperrors.Validation("validation failed", fields...)
	}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleAgent:
		filter.AssignedTo = actor.userID()
	default:
		filter.UserID = actor.userID()
	}

	enquiries, total, err := repository.NewEnquiryRepository(s.store.DB()).List(ctx, filter)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list enquiries")
		return nil, models.Pagination{}, apperrors.FromDB(err, "failed to list enquiries")
	}
	return enquiries, models.NewPagination(filter.Page, filter.Limit, total), nil
}

// UpdateEnquiry applies a patch. Admins may update any enquiry; agents only
// those assigned to them and never the assignee. A patch that changes nothing
// is a no-op and appends no note.
func (s *EnquiryService) UpdateEnquiry(ctx context.Context, id uint, input UpdateEnquiryInput, actor *Actor) (*EnquiryUpdateResult, error) {
	if actor == nil {
		return nil, apperrors.Authentication("authentication required")
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if input.AssignedTo != nil && !actor.IsAdmin() {
		return nil, apperrors.Authorization("only admins can reassign enquiries")
	}
	return s.change(ctx, id, input, actor, "", actionEnquiryUpdated)
}

// AssignEnquiry assigns an enquiry to an active, verified agent and notifies them
func (s *EnquiryService) AssignEnquiry(ctx context.Context, id uint, input AssignEnquiryInput, actor *Actor) (*EnquiryUpdateResult, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.Authorization("only admins can assign enquiries")
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	agentID := input.AgentID
	return s.change(ctx, id, UpdateEnquiryInput{AssignedTo: &agentID}, actor, input.Reason, actionEnquiryAssigned)
}

// enquiryChange is the planned effect of a patch on one enquiry
type enquiryChange struct {
	fields      map[string]interface{}
	summary     []string
	oldValues   map[string]interface{}
	newValues   map[string]interface{}
	fromStatus  models.EnquiryStatus
	toStatus    models.EnquiryStatus
	newAssignee *models.User
}

func (s *EnquiryService) change(ctx context.Context, id uint, patch UpdateEnquiryInput, actor *Actor, reason, action string) (*EnquiryUpdateResult, error) {
	var (
		updated *models.Enquiry
		plan    *enquiryChange
	)
	err := s.store.WithinTx(ctx, func(tx *gorm.DB) error {
		updated, plan = nil, nil
		repo := repository.NewEnquiryRepository(tx)

		current, err := repo.GetByID(ctx, id, false)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("enquiry")
			}
			return err
		}
		if !actor.IsAdmin() && !(actor.IsAgent() && actor.canView(current)) {
			return apperrors.Authorization("not allowed to update this enquiry")
		}
		if action == actionEnquiryAssigned && current.AssignedTo != nil && *current.AssignedTo == *patch.AssignedTo {
			return apperrors.Validation("enquiry is already assigned to this agent",
				apperrors.Field("agent_id", "enquiry is already assigned to this agent"))
		}

		now := time.Now().UTC()
		p, err := s.planChange(ctx, tx, current, patch, now)
		if err != nil {
			return err
		}
		if len(p.fields) == 0 {
			updated, plan = current, p
			return nil
		}

		if err := repo.UpdateFields(ctx, id, p.fields); err != nil {
			return err
		}
		note := strings.Join(p.summary, "; ")
		if reason != "" {
			note += ". Reason: " + reason
		}
		if err := repo.CreateNote(ctx, systemNote(id, actor.userID(), note)); err != nil {
			return err
		}

		kind := policy.KindUserAction
		if actor.IsAdmin() {
			kind = policy.KindAdminAction
		}
		s.audit.RecordInTx(ctx, tx, kind, AuditEntry{
			Action:      action,
			TableName:   tableEnquiries,
			RecordID:    &current.ID,
			UserID:      actor.userID(),
			OldValues:   p.oldValues,
			NewValues:   p.newValues,
			IPAddress:   actor.IPAddress,
			UserAgent:   actor.UserAgent,
			Description: note,
			Severity:    models.SeverityLow,
		})

		fresh, err := repo.GetByID(ctx, id, false)
		if err != nil {
			return err
		}
		updated, plan = fresh, p
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &EnquiryUpdateResult{Enquiry: updated, Changed: len(plan.fields) > 0}
	if !result.Changed {
		return result, nil
	}

	if plan.toStatus != plan.fromStatus {
		metrics.StatusTransitions.WithLabelValues(string(plan.fromStatus), string(plan.toStatus)).Inc()
	}
	s.logger.WithFields(logrus.Fields{
		"enquiry_id": updated.ID,
		"actor_id":   actor.UserID,
		"changes":    plan.summary,
	}).Info("Enquiry updated")

	subject := SubjectEnquiryUpdated
	if plan.newAssignee != nil {
		subject = SubjectEnquiryAssigned
		vars := map[string]string{templates.VarReason: reason}
		if actor.Email != "" {
			vars[templates.VarAssignedBy] = actor.Email
		}
		deliveries := s.notifier.Deliver(ctx, &updated.ID, []AudienceRequest{
			agentRequest(templates.EnquiryAssigned, plan.newAssignee, updated, vars),
		})
		result.Notifications = Summarize(deliveries)
	}
	go publish(s.publisher, s.logger, subject, newEnquiryEvent(updated, actor))
	return result, nil
}

// planChange validates patch against the stored enquiry and computes the column updates
func (s *EnquiryService) planChange(ctx context.Context, tx *gorm.DB, e *models.Enquiry, patch UpdateEnquiryInput, now time.Time) (*enquiryChange, error) {
	plan := &enquiryChange{
		fields:     make(map[string]interface{}),
		oldValues:  make(map[string]interface{}),
		newValues:  make(map[string]interface{}),
		fromStatus: e.Status,
		toStatus:   e.Status,
	}

	if patch.Status != nil && *patch.Status != e.Status {
		if !e.Status.CanTransitionTo(*patch.Status) {
			return nil, apperrors.Validation("illegal status transition",
				apperrors.Field("status", fmt.Sprintf("cannot change status from %s to %s", e.Status, *patch.Status)))
		}
		plan.toStatus = *patch.Status
	}

	if patch.AssignedTo != nil && (e.AssignedTo == nil || *e.AssignedTo != *patch.AssignedTo) {
		if e.Status == models.EnquiryStatusClosed {
			return nil, apperrors.Validation("closed enquiries cannot be reassigned")
		}
		agent, err := eligibleAgent(ctx, tx, *patch.AssignedTo)
		if err != nil {
			return nil, err
		}
		plan.fields["assigned_to"] = agent.ID
		plan.oldValues["assigned_to"] = e.AssignedTo
		plan.newValues["assigned_to"] = agent.ID
		plan.summary = append(plan.summary, fmt.Sprintf("Assigned to %s", agent.Name))
		plan.newAssignee = agent
		if plan.toStatus == models.EnquiryStatusNew {
			plan.toStatus = models.EnquiryStatusAssigned
		}
	}

	if plan.toStatus != e.Status {
		plan.fields["status"] = plan.toStatus
		plan.oldValues["status"] = e.Status
		plan.newValues["status"] = plan.toStatus
		plan.summary = append(plan.summary, fmt.Sprintf("Status changed from %s to %s", e.Status, plan.toStatus))

		if e.Status == models.EnquiryStatusNew || plan.toStatus == models.EnquiryStatusResolved {
			plan.fields["first_response_at"] = gorm.Expr("COALESCE(first_response_at, ?)", now)
		}
		switch {
		case plan.toStatus == models.EnquiryStatusResolved:
			plan.fields["resolved_at"] = now
		case e.Status == models.EnquiryStatusResolved && plan.toStatus == models.EnquiryStatusInProgress:
			plan.fields["resolved_at"] = nil
			plan.summary = append(plan.summary, "Enquiry reopened")
		}
	}

	if patch.Priority != nil && *patch.Priority != e.Priority {
		plan.fields["priority"] = *patch.Priority
		plan.oldValues["priority"] = e.Priority
		plan.newValues["priority"] = *patch.Priority
		plan.summary = append(plan.summary, fmt.Sprintf("Priority changed from %s to %s", e.Priority, *patch.Priority))
	}

	if patch.ResolutionNotes != nil {
		notes := strings.TrimSpace(*patch.ResolutionNotes)
		if e.ResolutionNotes == nil || *e.ResolutionNotes != notes {
			plan.fields["resolution_notes"] = notes
			plan.summary = append(plan.summary, "Resolution notes updated")
		}
	}

	if patch.CustomerSatisfactionRating != nil {
		rating := *patch.CustomerSatisfactionRating
		if e.CustomerSatisfactionRating == nil || *e.CustomerSatisfactionRating != rating {
			plan.fields["customer_satisfaction_rating"] = rating
			plan.oldValues["customer_satisfaction_rating"] = e.CustomerSatisfactionRating
			plan.newValues["customer_satisfaction_rating"] = rating
			plan.summary = append(plan.summary, fmt.Sprintf("Customer satisfaction rated %d", rating))
		}
	}

	return plan, nil
}

func eligibleAgent(ctx context.Context, tx *gorm.DB, agentID uint) (*models.User, error) {
	agent, err := repository.NewUserRepository(tx).GetByID(ctx, agentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Validation("validation failed", apperrors.Field("agent_id", "agent not found"))
	}
	if err != nil {
		return nil, err
	}
	if !agent.IsAssignableAgent() {
		return nil, apperrors.Validation("validation failed",
			apperrors.Field("agent_id", "must be an active agent with a verified email"))
	}
	return agent, nil
}

// AddEnquiryNote appends a note. Users may only add client communication notes
// to their own enquiries. A client communication note by staff on a new enquiry
// counts as the first response.
func (s *EnquiryService) AddEnquiryNote(ctx context.Context, id uint, input AddNoteInput, actor *Actor) (*models.EnquiryNote, error) {
	if actor == nil {
		return nil, apperrors.Authentication("authentication required")
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if input.NoteType == models.NoteTypeSystem {
		return nil, apperrors.Validation("validation failed",
			apperrors.Field("note_type", "system notes are written by the service only"))
	}

	var note *models.EnquiryNote
	err := s.store.WithinTx(ctx, func(tx *gorm.DB) error {
		note = nil
		repo := repository.NewEnquiryRepository(tx)

		enquiry, err := repo.GetByID(ctx, id, false)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("enquiry")
			}
			return err
		}
		if !actor.canView(enquiry) {
			return apperrors.Authorization("not allowed to add notes to this enquiry")
		}
		staff := actor.IsAdmin() || actor.IsAgent()
		if !staff && input.NoteType != models.NoteTypeClientCommunication {
			return apperrors.Authorization("users may only add client communication notes")
		}

		n := &models.EnquiryNote{
			EnquiryID:           enquiry.ID,
			AuthorID:            actor.userID(),
			Note:                input.Note,
			NoteType:            input.NoteType,
			CommunicationMethod: input.CommunicationMethod,
			NextFollowUpDate:    input.NextFollowUpDate,
		}
		if err := repo.CreateNote(ctx, n); err != nil {
			return err
		}
		if staff && input.NoteType == models.NoteTypeClientCommunication && enquiry.Status == models.EnquiryStatusNew {
			if err := repo.MarkFirstResponse(ctx, enquiry.ID, time.Now().UTC()); err != nil {
				return err
			}
		}
		note = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

// BulkUpdate applies one patch to up to 50 enquiries, each in its own transaction
func (s *EnquiryService) BulkUpdate(ctx context.Context, input BulkUpdateInput, actor *Actor) (*BulkUpdateResult, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.Authorization("only admins can bulk update enquiries")
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	result := &BulkUpdateResult{Successful: []uint{}, Failed: []BulkFailure{}}
	for _, id := range input.EnquiryIDs {
		if _, err := s.UpdateEnquiry(ctx, id, input.Updates, actor); err != nil {
			result.Failed = append(result.Failed, BulkFailure{ID: id, Error: apperrors.MessageOf(err)})
			continue
		}
		result.Successful = append(result.Successful, id)
	}

	s.logger.WithFields(logrus.Fields{
		"actor_id":   actor.UserID,
		"successful": len(result.Successful),
		"failed":     len(result.Failed),
	}).Info("Bulk enquiry update completed")
	return result, nil
}

// ListNotifications returns the delivery outcomes recorded for an enquiry
func (s *EnquiryService) ListNotifications(ctx context.Context, id uint, actor *Actor) ([]models.EnquiryNotification, error) {
	enquiry, err := s.GetEnquiry(ctx, strconv.FormatUint(uint64(id), 10), false, actor)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleUser {
		return nil, apperrors.Authorization("not allowed to view notification history")
	}
	entries, err := repository.NewNotificationRepository(s.store.DB()).ListByEnquiry(ctx, enquiry.ID)
	if err != nil {
		return nil, apperrors.FromDB(err, "failed to list notifications")
	}
	return entries, nil
}

func systemNote(enquiryID uint, authorID *uint, text string) *models.EnquiryNote {
	method := models.MethodSystem
	return &models.EnquiryNote{
		EnquiryID:           enquiryID,
		AuthorID:            authorID,
		Note:                text,
		NoteType:            models.NoteTypeSystem,
		CommunicationMethod: &method,
	}
}

func agentRequest(template string, agent *models.User, e *models.Enquiry, extra map[string]string) AudienceRequest {
	vars := map[string]string{
		templates.VarTicketNumber:  e.TicketNumber,
		templates.VarEnquiryID:     strconv.FormatUint(uint64(e.ID), 10),
		templates.VarCustomerName:  e.Name,
		templates.VarCustomerEmail: e.Email,
		templates.VarCustomerPhone: e.Phone,
		templates.VarRequirements:  e.Requirements,
	}
	if e.PropertyTitle != nil {
		vars[templates.VarPropertyTitle] = *e.PropertyTitle
	}
	for k, v := range extra {
		vars[k] = v
	}
	return AudienceRequest{
		Audience: models.AudienceAgent,
		DispatchRequest: DispatchRequest{
			Channels: AllChannels,
			Template: template,
			Recipient: Recipient{
				UserID: &agent.ID,
				Name:   agent.Name,
				Email:  agent.ContactEmail(),
				Phone:  agent.ContactPhone(),
			},
			Vars: vars,
		},
	}
}

func enquirySnapshot(e *models.Enquiry) map[string]interface{} {
	return map[string]interface{}{
		"ticket_number": e.TicketNumber,
		"name":          e.Name,
		"email":         e.Email,
		"phone":         e.Phone,
		"source":        e.Source,
		"property_id":   e.PropertyID,
		"status":        e.Status,
	}
}

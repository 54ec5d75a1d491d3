package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesseract-hub/enquiry-service/internal/apperrors"
	"github.com/tesseract-hub/enquiry-service/internal/models"
	"github.com/tesseract-hub/enquiry-service/internal/services"
	"github.com/tesseract-hub/enquiry-service/internal/testutil"
)

var ticketFormat = regexp.MustCompile(`^TKT-\d{8}-\d+$`)

func submit(t *testing.T, env *testEnv, input services.CreateEnquiryInput) *services.CreateEnquiryResult {
	t.Helper()
	result, err := env.enquiries.CreateEnquiry(context.Background(), input, nil)
	require.NoError(t, err)
	return result
}

func fieldNames(err error) []string {
	var names []string
	for _, f := range apperrors.FieldsOf(err) {
		names = append(names, f.Field)
	}
	return names
}

func TestCreateEnquiryPublicSubmission(t *testing.T) {
	env := newTestEnv(t)

	result := submit(t, env, validSubmission())

	e := result.Enquiry
	assert.Regexp(t, ticketFormat, e.TicketNumber)
	assert.Equal(t, models.EnquiryStatusNew, e.Status)
	assert.Equal(t, models.PriorityMedium, e.Priority)
	assert.Equal(t, "website", e.Source)
	assert.False(t, result.AccountCreated)
	assert.Nil(t, result.UserID)
	assert.Nil(t, result.AssignedAgent)
	assert.False(t, result.Notifications.Email.Attempted)
	assert.False(t, result.Notifications.SMS.Attempted)
	assert.Empty(t, env.email.messages())
	assert.Empty(t, env.sms.messages())

	var audits int64
	require.NoError(t, env.db.Model(&models.AuditLog{}).Count(&audits).Error)
	assert.Zero(t, audits)
}

func TestCreateEnquiryAutoAssignsAndNotifiesAgentOnly(t *testing.T) {
	env := newTestEnv(t)
	testutil.EnableAutoAssign(t, env.db, true)
	agent := testutil.CreateAgent(t, env.db, "Ravi", "ravi@homes.test", "9811111111", testutil.WithRating(4.5))

	result := submit(t, env, validSubmission())

	require.NotNil(t, result.AssignedAgent)
	assert.Equal(t, agent.ID, result.AssignedAgent.ID)
	assert.Equal(t, models.EnquiryStatusAssigned, result.Enquiry.Status)
	require.NotNil(t, result.Enquiry.AssignedTo)
	assert.Equal(t, agent.ID, *result.Enquiry.AssignedTo)
	assert.NotNil(t, result.Enquiry.FirstResponseAt)

	emails := env.email.messages()
	require.Len(t, emails, 1)
	assert.Equal(t, "ravi@homes.test", emails[0].To)
	assert.Contains(t, emails[0].Body, result.Enquiry.TicketNumber)
	require.Len(t, env.sms.messages(), 1)
	assert.True(t, result.Notifications.Email.Sent)
	assert.True(t, result.Notifications.SMS.Sent)

	stored, err := env.enquiries.GetEnquiry(context.Background(), result.Enquiry.TicketNumber, true, agentActor(agent))
	require.NoError(t, err)
	require.Len(t, stored.Notes, 1)
	assert.Equal(t, models.NoteTypeSystem, stored.Notes[0].NoteType)
	assert.Equal(t, "Automatically assigned to Ravi", stored.Notes[0].Note)
}

func TestCreateEnquiryWithAccount(t *testing.T) {
	env := newTestEnv(t)
	input := validSubmission()
	input.CreateAccount = true
	input.Password = "s3cret-pass"

	result := submit(t, env, input)

	assert.True(t, result.AccountCreated)
	assert.True(t, result.Enquiry.AccountCreatedDuringEnquiry)
	assert.True(t, result.Enquiry.AccountCreationOffered)
	require.NotNil(t, result.UserID)

	var user models.User
	require.NoError(t, env.db.First(&user, *result.UserID).Error)
	assert.Equal(t, models.UserStatusPendingVerification, user.Status)
	assert.Equal(t, models.RoleUser, user.Role)
	require.NotNil(t, user.EmailVerificationToken)
	assert.NotEmpty(t, *user.EmailVerificationToken)
	require.NotNil(t, user.PhoneVerificationCode)
	assert.Len(t, *user.PhoneVerificationCode, 6)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)
	assert.True(t, services.NewPasswordService(4).VerifyPassword("s3cret-pass", user.PasswordHash))

	emails := env.email.messages()
	require.Len(t, emails, 1)
	assert.Equal(t, "a@x.test", emails[0].To)
	assert.Contains(t, emails[0].Body, *user.EmailVerificationToken)
	sms := env.sms.messages()
	require.Len(t, sms, 1)
	assert.Contains(t, sms[0].Body, *user.PhoneVerificationCode)

	var ledger []models.EnquiryNotification
	require.NoError(t, env.db.Where("enquiry_id = ?", result.Enquiry.ID).Find(&ledger).Error)
	require.Len(t, ledger, 2)
	for _, entry := range ledger {
		assert.Equal(t, models.AudienceSubmitter, entry.Audience)
		assert.True(t, entry.Sent)
		assert.NotContains(t, entry.Recipient, "a@x.test")
	}

	var audits []models.AuditLog
	require.NoError(t, env.db.Find(&audits).Error)
	require.Len(t, audits, 1)
	assert.Equal(t, "account_created_verification_pending", audits[0].Action)
	assert.NotContains(t, string(audits[0].NewValues), "a@x.test")
}

func TestCreateEnquiryAccountRequiresPassword(t *testing.T) {
	env := newTestEnv(t)
	input := validSubmission()
	input.CreateAccount = true

	_, err := env.enquiries.CreateEnquiry(context.Background(), input, nil)

	require.True(t, apperrors.Is(err, apperrors.KindValidation))
	assert.Contains(t, fieldNames(err), "password")
}

func TestCreateEnquiryPartialNotificationFailure(t *testing.T) {
	env := newTestEnv(t)
	testutil.EnableAutoAssign(t, env.db, true)
	testutil.CreateAgent(t, env.db, "Ravi", "ravi@homes.test", "9811111111")
	env.sms.err = errors.New("msg91: gateway unavailable")

	result := submit(t, env, validSubmission())

	assert.True(t, result.Notifications.Email.Sent)
	assert.False(t, result.Notifications.SMS.Sent)
	assert.True(t, result.Notifications.SMS.Attempted)
	assert.NotEmpty(t, result.Notifications.SMS.Error)

	var ledger []models.EnquiryNotification
	require.NoError(t, env.db.Where("enquiry_id = ?", result.Enquiry.ID).Order("channel ASC").Find(&ledger).Error)
	require.Len(t, ledger, 2)
	assert.Equal(t, "email", ledger[0].Channel)
	assert.True(t, ledger[0].Sent)
	assert.Equal(t, "sms", ledger[1].Channel)
	assert.False(t, ledger[1].Sent)
	assert.NotEmpty(t, ledger[1].Error)
	assert.Equal(t, models.AudienceAgent, ledger[1].Audience)
}

func TestCreateEnquiryTicketSequence(t *testing.T) {
	env := newTestEnv(t)

	first := submit(t, env, validSubmission())
	second := submit(t, env, validSubmission())

	assert.Regexp(t, `-0001$`, first.Enquiry.TicketNumber)
	assert.Regexp(t, `-0002$`, second.Enquiry.TicketNumber)
	assert.Equal(t, first.Enquiry.TicketNumber[:13], second.Enquiry.TicketNumber[:13])
}

func TestCreateEnquiryValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*services.CreateEnquiryInput)
		field  string
		valid  bool
		phone  string
	}{
		{name: "valid", mutate: func(in *services.CreateEnquiryInput) {}, valid: true, phone: "9876543210"},
		{name: "phone starting with 5", mutate: func(in *services.CreateEnquiryInput) { in.Phone = "5123456789" }, field: "phone"},
		{name: "phone starting with 9", mutate: func(in *services.CreateEnquiryInput) { in.Phone = "9123456789" }, valid: true, phone: "9123456789"},
		{name: "phone with country code", mutate: func(in *services.CreateEnquiryInput) { in.Phone = "+919123456789" }, valid: true, phone: "9123456789"},
		{name: "phone with separators", mutate: func(in *services.CreateEnquiryInput) { in.Phone = "98765 43210" }, valid: true, phone: "9876543210"},
		{name: "short name", mutate: func(in *services.CreateEnquiryInput) { in.Name = "A" }, field: "name"},
		{name: "bad email", mutate: func(in *services.CreateEnquiryInput) { in.Email = "not-an-email" }, field: "email"},
		{name: "short requirements", mutate: func(in *services.CreateEnquiryInput) { in.Requirements = "2BHK" }, field: "requirements"},
		{name: "short password", mutate: func(in *services.CreateEnquiryInput) {
			in.CreateAccount = true
			in.Password = "short"
		}, field: "password"},
		{name: "non-positive property", mutate: func(in *services.CreateEnquiryInput) {
			id := int64(0)
			in.PropertyID = &id
		}, field: "property_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validSubmission()
			tt.mutate(&input)
			err := input.Validate()
			if tt.valid {
				require.NoError(t, err)
				assert.Equal(t, tt.phone, input.Phone)
				return
			}
			require.True(t, apperrors.Is(err, apperrors.KindValidation), "got %v", err)
			assert.Contains(t, fieldNames(err), tt.field)
		})
	}
}

func TestCreateEnquiryWithProperty(t *testing.T) {
	env := newTestEnv(t)
	property := testutil.CreateProperty(t, env.db, "Sea View Villa", "villa")
	input := validSubmission()
	id := int64(property.ID)
	input.PropertyID = &id

	result := submit(t, env, input)

	require.NotNil(t, result.Enquiry.PropertyID)
	assert.Equal(t, property.ID, *result.Enquiry.PropertyID)
	require.NotNil(t, result.Enquiry.PropertyTitle)
	assert.Equal(t, "Sea View Villa", *result.Enquiry.PropertyTitle)

	var stored models.Property
	require.NoError(t, env.db.First(&stored, property.ID).Error)
	assert.Equal(t, 1, stored.InquiriesCount)

	missing := int64(9999)
	input = validSubmission()
	input.PropertyID = &missing
	_, err := env.enquiries.CreateEnquiry(context.Background(), input, nil)
	require.True(t, apperrors.Is(err, apperrors.KindValidation))
	assert.Contains(t, fieldNames(err), "property_id")

	var count int64
	require.NoError(t, env.db.Model(&models.Enquiry{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreateEnquiryLinksAuthenticatedUser(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, models.RoleUser, "Meera", "meera@x.test", "9822222222")
	actor := &services.Actor{UserID: user.ID, Role: models.RoleUser}

	result, err := env.enquiries.CreateEnquiry(context.Background(), validSubmission(), actor)
	require.NoError(t, err)

	require.NotNil(t, result.Enquiry.UserID)
	assert.Equal(t, user.ID, *result.Enquiry.UserID)
	assert.False(t, result.AccountCreated)
}

func TestEnquiryLookupRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	admin := adminActor(t, env.db)
	created := submit(t, env, validSubmission()).Enquiry
	ctx := context.Background()

	byTicket, err := env.enquiries.GetEnquiry(ctx, created.TicketNumber, false, admin)
	require.NoError(t, err)
	byID, err := env.enquiries.GetEnquiry(ctx, strconv.FormatUint(uint64(created.ID), 10), false, admin)
	require.NoError(t, err)

	assert.Equal(t, created.ID, byTicket.ID)
	assert.Equal(t, byTicket.TicketNumber, byID.TicketNumber)
	assert.Equal(t, "a@x.test", byID.Email)
	assert.Equal(t, "9876543210", byID.Phone)

	_, err = env.enquiries.GetEnquiry(ctx, "TKT-20990101-0001", false, admin)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	_, err = env.enquiries.GetEnquiry(ctx, "not-a-ticket", false, admin)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	_, err = env.enquiries.GetEnquiry(ctx, created.TicketNumber, false, nil)
	assert.True(t, apperrors.Is(err, apperrors.KindAuthentication))
}

func TestTrackEnquiryHidesSubmitterPII(t *testing.T) {
	env := newTestEnv(t)
	testutil.EnableAutoAssign(t, env.db, true)
	testutil.CreateAgent(t, env.db, "Ravi", "ravi@homes.test", "9811111111")
	created := submit(t, env, validSubmission()).Enquiry

	view, err := env.enquiries.TrackEnquiry(context.Background(), created.TicketNumber)
	require.NoError(t, err)

	assert.Equal(t, created.TicketNumber, view.TicketNumber)
	assert.Equal(t, models.EnquiryStatusAssigned, view.Status)
	require.NotNil(t, view.AssignedAgent)
	assert.Equal(t, "Ravi", view.AssignedAgent.Name)
	assert.Equal(t, "9811111111", view.AssignedAgent.Phone)
	require.NotNil(t, view.ResponseTimeHours)
	assert.GreaterOrEqual(t, *view.ResponseTimeHours, 0.0)

	raw, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "a@x.test")
	assert.NotContains(t, string(raw), "9876543210")
	assert.NotContains(t, string(raw), "Asha")
	assert.NotContains(t, string(raw), "2BHK")

	_, err = env.enquiries.TrackEnquiry(context.Background(), "12")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	_, err = env.enquiries.TrackEnquiry(context.Background(), "TKT-20990101-0009")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestUpdateEnquiryStatusLifecycle(t *testing.T) {
	env := newTestEnv(t)
	admin := adminActor(t, env.db)
	ctx := context.Background()
	created := submit(t, env, validSubmission()).Enquiry
	assert.Nil(t, created.FirstResponseAt)

	started, err := env.enquiries.UpdateEnquiry(ctx, created.ID, services.UpdateEnquiryInput{Status: statusPtr(models.EnquiryStatusInProgress)}, admin)
	require.NoError(t, err)
	assert.True(t, started.Changed)
	assert.Equal(t, models.EnquiryStatusInProgress, started.Enquiry.Status)
	require.NotNil(t, started.Enquiry.FirstResponseAt)
	firstResponse := *started.Enquiry.FirstResponseAt

	resolved, err := env.enquiries.UpdateEnquiry(ctx, created.ID, services.UpdateEnquiryInput{Status: statusPtr(models.EnquiryStatusResolved)}, admin)
	require.NoError(t, err)
	require.NotNil(t, resolved.Enquiry.ResolvedAt)
	assert.False(t, resolved.Enquiry.ResolvedAt.Before(*resolved.Enquiry.FirstResponseAt))
	assert.True(t, firstResponse.Equal(*resolved.Enquiry.FirstResponseAt))

	reopened, err := env.enquiries.UpdateEnquiry(ctx, created.ID, services.UpdateEnquiryInput{Status: statusPtr(models.EnquiryStatusInProgress)}, admin)
	require.NoError(t, err)
	assert.Equal(t, models.EnquiryStatusInProgress, reopened.Enquiry.Status)
	assert.Nil(t, reopened.Enquiry.ResolvedAt)
	require.NotNil(t, reopened.Enquiry.FirstResponseAt)
	assert.True(t, firstResponse.Equal(*reopened.Enquiry.FirstResponseAt))

	stored, err := env.enquiries.GetEnquiry(ctx, created.TicketNumber, true, admin)
	require.NoError(t, err)
	require.Len(t, stored.Notes, 3)
	assert.Equal(t, "Status changed from new to in_progress", stored.Notes[0].Note)
	assert.Contains(t, stored.Notes[2].Note, "Enquiry reopened")
	require.NotNil(t, stored.Notes[0].AuthorID)
	assert.Equal(t, admin.UserID, *stored.Notes[0].AuthorID)
}

func TestUpdateEnquiryRejectsIllegalTransition(t *testing.T) {
	env := newTestEnv(t)
	admin := adminActor(t, env.db)
	created := submit(t, env, validSubmission()).Enquiry

	_, err := env.enquiries.UpdateEnquiry(context.Background(), created.ID, services.UpdateEnquiryInput{Status: statusPtr(models.EnquiryStatusResolved)}, admin)

	require.True(t, apperrors.Is(err, apperrors.KindValidation))
	assert.Contains(t, fieldNames(err), "status")

	stored, err := env.enquiries.GetEnquiry(context.Background(), created.TicketNumber, true, admin)
	require.NoError(t, err)
	assert.Equal(t, models.EnquiryStatusNew, stored.Status)
	assert.Empty(t, stored.Notes)
}

func TestUpdateEnquiryNoOpAppendsNoNote(t *testing.T) {
	env := newTestEnv(t)
	admin := adminActor(t, env.db)
	created := submit(t, env, validSubmission()).Enquiry
	same := models.PriorityMedium

	result, err := env.enquiries.UpdateEnquiry(context.Background(), created.ID, services.UpdateEnquiryInput{Priority: &same}, admin)
	require.NoError(t, err)
	assert.False(t, result.Changed)

	var notes int64
	require.NoError(t, env.db.Model(&models.EnquiryNote{}).Where("enquiry_id = ?", created.ID).Count(&notes).Error)
	assert.Zero(t, notes)

	_, err = env.enquiries.UpdateEnquiry(context.Background(), created.ID, services.UpdateEnquiryInput{}, admin)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestUpdateEnquiryAuthorization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := adminActor(t, env.db)
	agent := testutil.CreateAgent(t, env.db, "Ravi", "ravi@homes.test", "9811111111")
	other := testutil.CreateAgent(t, env.db, "Kiran", "kiran@homes.test", "9833333333")
	created := submit(t, env, validSubmission()).Enquiry

	_, err := env.enquiries.UpdateEnquiry(ctx, created.ID, services.UpdateEnquiryInput{Status: statusPtr(models.EnquiryStatusInProgress)}, agentActor(agent))
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization))

	_, err = env.enquiries.AssignEnquiry(ctx, created.ID, services.AssignEnquiryInput{AgentID: agent.ID}, admin)
	require.NoError(t, err)

	_, err = env.enquiries.UpdateEnquiry(ctx, created.ID, services.UpdateEnquiryInput{Status: statusPtr(models.EnquiryStatusInProgress)}, agentActor(agent))
	require.NoError(t, err)
	_, err = env.enquiries.UpdateEnquiry(ctx, created.ID, services.UpdateEnquiryInput{AssignedTo: &other.ID}, agentActor(agent))
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization))
	_, err = env.enquiries.UpdateEnquiry(ctx, created.ID, services.UpdateEnquiryInput{Status: statusPtr(models.EnquiryStatusResolved)}, agentActor(other))
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization))
	_, err = env.enquiries.UpdateEnquiry(ctx, created.ID, services.UpdateEnquiryInput{Status: statusPtr(models.EnquiryStatusResolved)}, nil)
	assert.True(t, apperrors.Is(err, apperrors.KindAuthentication))
	_, err = env.enquiries.UpdateEnquiry(ctx, 9999, services.UpdateEnquiryInput{Status: statusPtr(models.EnquiryStatusResolved)}, admin)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestAssignEnquiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := adminActor(t, env.db)
	agent := testutil.CreateAgent(t, env.db, "Ravi", "ravi@homes.test", "9811111111")
	unverified := testutil.CreateAgent(t, env.db, "Uma", "uma@homes.test", "9844444444", testutil.Unverified())
	created := submit(t, env, validSubmission()).Enquiry

	result, err := env.enquiries.AssignEnquiry(ctx, created.ID, services.AssignEnquiryInput{AgentID: agent.ID, Reason: "Kochi specialist"}, admin)
	require.NoError(t, err)

	assert.True(t, result.Changed)
	assert.Equal(t, models.EnquiryStatusAssigned, result.Enquiry.Status)
	require.NotNil(t, result.Enquiry.AssignedTo)
	assert.Equal(t, agent.ID, *result.Enquiry.AssignedTo)
	assert.NotNil(t, result.Enquiry.FirstResponseAt)
	assert.True(t, result.Notifications.Email.Sent)

	emails := env.email.messages()
	require.Len(t, emails, 1)
	assert.Equal(t, "ravi@homes.test", emails[0].To)
	assert.Contains(t, emails[0].Body, "Kochi specialist")

	notes, err := env.enquiries.GetEnquiry(ctx, created.TicketNumber, true, admin)
	require.NoError(t, err)
	require.Len(t, notes.Notes, 1)
	assert.Equal(t, "Assigned to Ravi; Status changed from new to assigned. Reason: Kochi specialist", notes.Notes[0].Note)

	_, err = env.enquiries.AssignEnquiry(ctx, created.ID, services.AssignEnquiryInput{AgentID: agent.ID}, admin)
	require.True(t, apperrors.Is(err, apperrors.KindValidation))
	assert.Contains(t, fieldNames(err), "agent_id")
	assert.Len(t, env.email.messages(), 1)

	_, err = env.enquiries.AssignEnquiry(ctx, created.ID, services.AssignEnquiryInput{AgentID: unverified.ID}, admin)
	require.True(t, apperrors.Is(err, apperrors.KindValidation))
	assert.Contains(t, fieldNames(err), "agent_id")

	_, err = env.enquiries.AssignEnquiry(ctx, created.ID, services.AssignEnquiryInput{AgentID: agent.ID}, agentActor(agent))
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization))

	_, err = env.enquiries.UpdateEnquiry(ctx, created.ID, services.UpdateEnquiryInput{Status: statusPtr(models.EnquiryStatusClosed)}, admin)
	require.NoError(t, err)
	other := testutil.CreateAgent(t, env.db, "Kiran", "kiran@homes.test", "9833333333")
	_, err = env.enquiries.AssignEnquiry(ctx, created.ID, services.AssignEnquiryInput{AgentID: other.ID}, admin)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestAddEnquiryNote(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := adminActor(t, env.db)
	user := testutil.CreateUser(t, env.db, models.RoleUser, "Meera", "meera@x.test", "9822222222")
	owner := &services.Actor{UserID: user.ID, Role: models.RoleUser}
	created, err := env.enquiries.CreateEnquiry(ctx, validSubmission(), owner)
	require.NoError(t, err)
	id := created.Enquiry.ID

	_, err = env.enquiries.AddEnquiryNote(ctx, id, services.AddNoteInput{Note: "Internal remark"}, owner)
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization))

	note, err := env.enquiries.AddEnquiryNote(ctx, id, services.AddNoteInput{
		Note:     "Please call after 6pm",
		NoteType: models.NoteTypeClientCommunication,
	}, owner)
	require.NoError(t, err)
	assert.Equal(t, user.ID, *note.AuthorID)

	stranger := testutil.CreateUser(t, env.db, models.RoleUser, "Dev", "dev@x.test", "9855555555")
	_, err = env.enquiries.AddEnquiryNote(ctx, id, services.AddNoteInput{
		Note:     "Hello",
		NoteType: models.NoteTypeClientCommunication,
	}, &services.Actor{UserID: stranger.ID, Role: models.RoleUser})
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization))

	_, err = env.enquiries.AddEnquiryNote(ctx, id, services.AddNoteInput{Note: "forged", NoteType: models.NoteTypeSystem}, admin)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	stored, err := env.enquiries.GetEnquiry(ctx, strconv.FormatUint(uint64(id), 10), false, admin)
	require.NoError(t, err)
	assert.Nil(t, stored.FirstResponseAt)

	method := models.MethodPhone
	_, err = env.enquiries.AddEnquiryNote(ctx, id, services.AddNoteInput{
		Note:                "Called the customer",
		NoteType:            models.NoteTypeClientCommunication,
		CommunicationMethod: &method,
	}, admin)
	require.NoError(t, err)

	stored, err = env.enquiries.GetEnquiry(ctx, strconv.FormatUint(uint64(id), 10), true, admin)
	require.NoError(t, err)
	assert.NotNil(t, stored.FirstResponseAt)
	assert.Equal(t, models.EnquiryStatusNew, stored.Status)
	assert.Len(t, stored.Notes, 2)
}

func TestListEnquiriesScoping(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := adminActor(t, env.db)
	agent := testutil.CreateAgent(t, env.db, "Ravi", "ravi@homes.test", "9811111111")
	user := testutil.CreateUser(t, env.db, models.RoleUser, "Meera", "meera@x.test", "9822222222")
	owner := &services.Actor{UserID: user.ID, Role: models.RoleUser}

	_, err := env.enquiries.CreateEnquiry(ctx, validSubmission(), owner)
	require.NoError(t, err)
	public := submit(t, env, validSubmission()).Enquiry
	submit(t, env, validSubmission())
	_, err = env.enquiries.AssignEnquiry(ctx, public.ID, services.AssignEnquiryInput{AgentID: agent.ID}, admin)
	require.NoError(t, err)

	all, page, err := env.enquiries.ListEnquiries(ctx, models.EnquiryFilter{}, admin)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, int64(3), page.Total)

	assigned, _, err := env.enquiries.ListEnquiries(ctx, models.EnquiryFilter{}, agentActor(agent))
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, public.ID, assigned[0].ID)

	own, _, err := env.enquiries.ListEnquiries(ctx, models.EnquiryFilter{}, owner)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, user.ID, *own[0].UserID)

	_, err = env.enquiries.GetEnquiry(ctx, public.TicketNumber, false, owner)
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization))

	_, _, err = env.enquiries.ListEnquiries(ctx, models.EnquiryFilter{Status: "pending"}, admin)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestBulkUpdatePartialSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := adminActor(t, env.db)
	first := submit(t, env, validSubmission()).Enquiry
	second := submit(t, env, validSubmission()).Enquiry
	high := models.PriorityHigh

	result, err := env.enquiries.BulkUpdate(ctx, services.BulkUpdateInput{
		EnquiryIDs: []uint{first.ID, 9999, second.ID, first.ID},
		Updates:    services.UpdateEnquiryInput{Priority: &high},
	}, admin)
	require.NoError(t, err)

	assert.ElementsMatch(t, []uint{first.ID, second.ID}, result.Successful)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, uint(9999), result.Failed[0].ID)
	assert.Equal(t, "enquiry not found", result.Failed[0].Error)
	assert.Equal(t, 207, result.StatusCode())

	stored, err := env.enquiries.GetEnquiry(ctx, second.TicketNumber, false, admin)
	require.NoError(t, err)
	assert.Equal(t, models.PriorityHigh, stored.Priority)

	_, err = env.enquiries.BulkUpdate(ctx, services.BulkUpdateInput{
		EnquiryIDs: []uint{first.ID},
		Updates:    services.UpdateEnquiryInput{Priority: &high},
	}, &services.Actor{UserID: 1, Role: models.RoleAgent})
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization))
}

func TestBulkUpdateResultStatusCode(t *testing.T) {
	assert.Equal(t, 200, (&services.BulkUpdateResult{Successful: []uint{1}}).StatusCode())
	assert.Equal(t, 422, (&services.BulkUpdateResult{Failed: []services.BulkFailure{{ID: 1}}}).StatusCode())
	assert.Equal(t, 207, (&services.BulkUpdateResult{Successful: []uint{2}, Failed: []services.BulkFailure{{ID: 1}}}).StatusCode())
}

func TestListNotifications(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := adminActor(t, env.db)
	testutil.EnableAutoAssign(t, env.db, true)
	testutil.CreateAgent(t, env.db, "Ravi", "ravi@homes.test", "9811111111")
	created := submit(t, env, validSubmission()).Enquiry

	entries, err := env.enquiries.ListNotifications(ctx, created.ID, admin)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, "enquiry_new_agent", entry.Template)
		assert.NotEqual(t, "ravi@homes.test", entry.Recipient)
	}
}

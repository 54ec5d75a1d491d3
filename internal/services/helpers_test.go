package services_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tesseract-hub/enquiry-service/internal/config"
	"github.com/tesseract-hub/enquiry-service/internal/database"
	"github.com/tesseract-hub/enquiry-service/internal/models"
	"github.com/tesseract-hub/enquiry-service/internal/policy"
	"github.com/tesseract-hub/enquiry-service/internal/repository"
	"github.com/tesseract-hub/enquiry-service/internal/services"
	"github.com/tesseract-hub/enquiry-service/internal/testutil"
)

// fakeProvider records messages and fails with err when set
type fakeProvider struct {
	mu      sync.Mutex
	name    string
	channel services.Channel
	err     error
	delay   time.Duration
	sent    []*services.Message
	calls   int
}

func newFakeProvider(name string, channel services.Channel) *fakeProvider {
	return &fakeProvider{name: name, channel: channel}
}

func (f *fakeProvider) Send(ctx context.Context, message *services.Message) (*services.SendResult, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return &services.SendResult{ProviderName: f.name, Success: false, Error: f.err}, f.err
	}
	f.sent = append(f.sent, message)
	return &services.SendResult{
		ProviderID:   fmt.Sprintf("%s-%d", f.name, len(f.sent)),
		ProviderName: f.name,
		Success:      true,
	}, nil
}

func (f *fakeProvider) GetName() string {
	return f.name
}

func (f *fakeProvider) SupportsChannel() services.Channel {
	return f.channel
}

func (f *fakeProvider) messages() []*services.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*services.Message, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// lockedBuffer is a bytes.Buffer safe for concurrent log writes
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testNotificationConfig() config.NotificationConfig {
	return config.NotificationConfig{
		EmailTimeout: time.Second,
		SMSTimeout:   time.Second,
		CompanyName:  "Tesseract Homes",
		FrontendURL:  "https://homes.test",
		SupportEmail: "support@homes.test",
	}
}

type testEnv struct {
	db        *gorm.DB
	store     *database.Store
	email     *fakeProvider
	sms       *fakeProvider
	fallback  *lockedBuffer
	audit     *services.AuditService
	identity  *services.IdentityService
	enquiries *services.EnquiryService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	logger := quietLogger()
	store := database.NewStore(db, logger)

	email := newFakeProvider("fake-email", services.ChannelEmail)
	sms := newFakeProvider("fake-sms", services.ChannelSMS)
	dispatcher := services.NewNotificationDispatcher(email, sms, testNotificationConfig(), logger)
	ledger := services.NewNotificationLedger(repository.NewNotificationRepository(db), logger)
	notifier := services.NewNotifier(dispatcher, ledger)

	fallbackBuf := &lockedBuffer{}
	fallback := logrus.New()
	fallback.SetOutput(fallbackBuf)
	fallback.SetFormatter(&logrus.JSONFormatter{})

	audit := services.NewAuditService(store, policy.NewSanitizer("test-pepper"), nil, fallback, logger)
	identity := services.NewIdentityService(store, audit, notifier, logger)
	assigner := services.NewAgentAssigner(false, logger)
	passwords := services.NewPasswordService(bcrypt.MinCost)
	enquiries := services.NewEnquiryService(store, identity, assigner, audit, notifier, passwords, nil, time.UTC, logger)

	return &testEnv{
		db:        db,
		store:     store,
		email:     email,
		sms:       sms,
		fallback:  fallbackBuf,
		audit:     audit,
		identity:  identity,
		enquiries: enquiries,
	}
}

func adminActor(t *testing.T, db *gorm.DB) *services.Actor {
	t.Helper()
	admin := testutil.CreateUser(t, db, models.RoleAdmin, "Admin", "admin@homes.test", "9000000099")
	return &services.Actor{UserID: admin.ID, Role: models.RoleAdmin, Email: "admin@homes.test", IPAddress: "10.0.0.1"}
}

func agentActor(agent *models.User) *services.Actor {
	return &services.Actor{UserID: agent.ID, Role: models.RoleAgent, Email: agent.ContactEmail()}
}

func validSubmission() services.CreateEnquiryInput {
	return services.CreateEnquiryInput{
		Name:         "Asha",
		Email:        "a@x.test",
		Phone:        "9876543210",
		Requirements: "Looking for 2BHK in Kochi.",
	}
}

func statusPtr(s models.EnquiryStatus) *models.EnquiryStatus {
	return &s
}

package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tesseract-hub/enquiry-service/internal/apperrors"
	"github.com/tesseract-hub/enquiry-service/internal/database"
	"github.com/tesseract-hub/enquiry-service/internal/models"
	"github.com/tesseract-hub/enquiry-service/internal/policy"
	"github.com/tesseract-hub/enquiry-service/internal/repository"
	"github.com/tesseract-hub/enquiry-service/internal/templates"
)

const (
	emailTokenBytes       = 32
	emailTokenTTL         = 24 * time.Hour
	phoneCodeTTL          = 10 * time.Minute
	actionAccountCreated  = "account_created_verification_pending"
	actionVerificationRes = "verification_credentials_resent"
)

// ResolveOptions controls account creation during resolution
type ResolveOptions struct {
	CreateAccount bool
	PasswordHash  string
	Name          string
}

// VerificationCredentials are freshly issued verification secrets, kept only
// long enough to be dispatched
type VerificationCredentials struct {
	EmailToken          string
	EmailTokenExpiresAt time.Time
	PhoneCode           string
	PhoneCodeExpiresAt  time.Time
}

// Resolution is the outcome of identity resolution
type Resolution struct {
	UserID      *uint
	Created     bool
	User        *models.User
	Credentials *VerificationCredentials
}

// ResendResult reports a verification resend
type ResendResult struct {
	UserID        uint                `json:"user_id"`
	Notifications NotificationSummary `json:"notifications"`
}

// IdentityService finds or creates the account behind an enquiry
type IdentityService struct {
	store    *database.Store
	audit    *AuditService
	notifier *Notifier
	logger   *logrus.Logger
}

// NewIdentityService creates a new identity service
func NewIdentityService(store *database.Store, audit *AuditService, notifier *Notifier, logger *logrus.Logger) *IdentityService {
	return &IdentityService{
		store:    store,
		audit:    audit,
		notifier: notifier,
		logger:   logger,
	}
}

// Resolve returns the user matching email or phone. With no match and account
// creation requested, it creates a pending-verification user in tx. A racing
// creation surfaces as a Duplicate error; re-running the transaction finds the winner.
func (s *IdentityService) Resolve(ctx context.Context, tx *gorm.DB, email, phone string, opts ResolveOptions) (*Resolution, error) {
	users := repository.NewUserRepository(tx)

	existing, err := users.FindByEmailOrPhone(ctx, email, phone)
	if err == nil {
		return &Resolution{UserID: &existing.ID, User: existing}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.FromDB(err, "failed to look up account")
	}
	if !opts.CreateAccount || opts.PasswordHash == "" {
		return &Resolution{}, nil
	}

	creds, err := newVerificationCredentials(time.Now().UTC())
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Name:                       opts.Name,
		Email:                      &email,
		Phone:                      &phone,
		PasswordHash:               opts.PasswordHash,
		Role:                       models.RoleUser,
		Status:                     models.UserStatusPendingVerification,
		EmailVerificationToken:     &creds.EmailToken,
		EmailVerificationExpiresAt: &creds.EmailTokenExpiresAt,
		PhoneVerificationCode:      &creds.PhoneCode,
		PhoneVerificationExpiresAt: &creds.PhoneCodeExpiresAt,
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, apperrors.FromDB(err, "failed to create account")
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   MaskEmail(email),
	}).Info("Account created during enquiry")
	return &Resolution{UserID: &user.ID, Created: true, User: user, Credentials: creds}, nil
}

// ResendVerification issues new credentials to a pending account and sends them again.
// Only admins and the account owner may ask.
func (s *IdentityService) ResendVerification(ctx context.Context, userID uint, actor *Actor) (*ResendResult, error) {
	if actor == nil || (!actor.IsAdmin() && actor.UserID != userID) {
		return nil, apperrors.Authorization("not allowed to resend verification for this account")
	}

	var (
		user  *models.User
		creds *VerificationCredentials
	)
	err := s.store.WithinTx(ctx, func(tx *gorm.DB) error {
		users := repository.NewUserRepository(tx)
		u, err := users.GetByID(ctx, userID)
		if err != nil {
			return apperrors.FromDB(err, "failed to get account")
		}
		if u.Status != models.UserStatusPendingVerification {
			return apperrors.Validation("account is not pending verification")
		}

		c, err := newVerificationCredentials(time.Now().UTC())
		if err != nil {
			return err
		}
		if err := users.SetVerificationCredentials(ctx, u.ID, c.EmailToken, c.EmailTokenExpiresAt, c.PhoneCode, c.PhoneCodeExpiresAt); err != nil {
			return err
		}

		s.audit.RecordInTx(ctx, tx, policy.KindUserAction, AuditEntry{
			Action:      actionVerificationRes,
			TableName:   "users",
			RecordID:    &u.ID,
			UserID:      actor.userID(),
			IPAddress:   actor.IPAddress,
			UserAgent:   actor.UserAgent,
			Description: "Verification credentials reissued",
			Severity:    models.SeverityLow,
		})
		user, creds = u, c
		return nil
	})
	if err != nil {
		return nil, err
	}

	deliveries := s.notifier.Deliver(ctx, nil, []AudienceRequest{verificationRequest(user, creds)})
	return &ResendResult{UserID: user.ID, Notifications: Summarize(deliveries)}, nil
}

func verificationRequest(user *models.User, creds *VerificationCredentials) AudienceRequest {
	return AudienceRequest{
		Audience: models.AudienceUser,
		DispatchRequest: DispatchRequest{
			Channels: AllChannels,
			Template: templates.AccountVerification,
			Recipient: Recipient{
				UserID: &user.ID,
				Name:   user.Name,
				Email:  user.ContactEmail(),
				Phone:  user.ContactPhone(),
			},
			Vars: map[string]string{
				templates.VarVerificationToken: creds.EmailToken,
				templates.VarVerificationCode:  creds.PhoneCode,
				templates.VarCodeExpiryMinutes: strconv.Itoa(int(phoneCodeTTL / time.Minute)),
			},
		},
	}
}

func newVerificationCredentials(now time.Time) (*VerificationCredentials, error) {
	token, err := randomToken(emailTokenBytes)
	if err != nil {
		return nil, err
	}
	code, err := randomDigits(6)
	if err != nil {
		return nil, err
	}
	return &VerificationCredentials{
		EmailToken:          token,
		EmailTokenExpiresAt: now.Add(emailTokenTTL),
		PhoneCode:           code,
		PhoneCodeExpiresAt:  now.Add(phoneCodeTTL),
	}, nil
}

// randomToken returns n random bytes, base64url encoded without padding
func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// randomDigits returns a zero-padded numeric code of the given length
func randomDigits(length int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}

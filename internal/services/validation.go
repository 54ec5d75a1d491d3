package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tesseract-hub/enquiry-service/internal/apperrors"
	"github.com/tesseract-hub/enquiry-service/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return e164Pattern.MatchString(fl.Field().String())
	})
	return v
}

// validateStruct runs tag validation and converts failures into field errors
func validateStruct(input interface{}) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Wrap(err, apperrors.KindValidation, "invalid input")
	}
	fields := make([]apperrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperrors.Field(fe.Field(), fieldMessage(fe)))
	}
	return apperrors.Validation("validation failed", fields...)
}

func fieldMessage(fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "phone":
		return "must be a valid phone number"
	case "min":
		if isString {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must contain at least %s items", fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must contain at most %s items", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return "is invalid"
	}
}

// CreateEnquiryInput is a public enquiry submission
type CreateEnquiryInput struct {
	Name          string   `json:"name" validate:"required,min=2,max=255"`
	Email         string   `json:"email" validate:"required,email,max=255"`
	Phone         string   `json:"phone" validate:"required,phone"`
	Requirements  string   `json:"requirements" validate:"required,min=10,max=2000"`
	PropertyID    *int64   `json:"property_id" validate:"omitempty,gt=0"`
	PropertyTitle *string  `json:"property_title" validate:"omitempty,max=255"`
	PropertyPrice *float64 `json:"property_price" validate:"omitempty,gte=0"`
	Source        string   `json:"source" validate:"omitempty,max=50"`
	PageURL       string   `json:"page_url" validate:"omitempty,max=500"`
	CreateAccount bool     `json:"create_account"`
	Password      string   `json:"password" validate:"omitempty,min=8,max=72"`

	UserAgent string `json:"-"`
	IPAddress string `json:"-"`
}

// Validate trims and normalizes the input in place, then checks it.
// Phones must be Indian mobiles; a +91 prefix is stripped.
func (in *CreateEnquiryInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = phoneSeparators.Replace(strings.TrimSpace(in.Phone))
	in.Requirements = strings.TrimSpace(in.Requirements)
	in.Source = strings.TrimSpace(in.Source)
	if in.Source == "" {
		in.Source = "website"
	}

	if err := validateStruct(in); err != nil {
		return err
	}
	if in.CreateAccount && in.Password == "" {
		return apperrors.Validation("validation failed",
			apperrors.Field("password", "is required when create_account is true"))
	}

	mobile, err := NormalizeIndianMobile(in.Phone)
	if err != nil {
		return err
	}
	in.Phone = mobile
	return nil
}

// UpdateEnquiryInput is a partial update. Nil fields are left unchanged.
type UpdateEnquiryInput struct {
	Status                     *models.EnquiryStatus   `json:"status"`
	Priority                   *models.EnquiryPriority `json:"priority"`
	AssignedTo                 *uint                   `json:"assigned_to" validate:"omitempty,gt=0"`
	ResolutionNotes            *string                 `json:"resolution_notes" validate:"omitempty,max=5000"`
	CustomerSatisfactionRating *int                    `json:"customer_satisfaction_rating" validate:"omitempty,gte=1,lte=5"`
}

// IsEmpty reports whether the patch names no field
func (in *UpdateEnquiryInput) IsEmpty() bool {
	return in.Status == nil && in.Priority == nil && in.AssignedTo == nil &&
		in.ResolutionNotes == nil && in.CustomerSatisfactionRating == nil
}

// Validate checks field values; transition legality is checked against the stored enquiry
func (in *UpdateEnquiryInput) Validate() error {
	if in.IsEmpty() {
		return apperrors.Validation("no fields to update")
	}
	if err := validateStruct(in); err != nil {
		return err
	}
	var fields []apperrors.FieldError
	if in.Status != nil && !in.Status.IsValid() {
		fields = append(fields, apperrors.Field("status", "must be one of new, assigned, in_progress, resolved, closed"))
	}
	if in.Priority != nil && !in.Priority.IsValid() {
		fields = append(fields, apperrors.Field("priority", "must be one of low, medium, high, urgent"))
	}
	if len(fields) > 0 {
		return apperrors.Validation("validation failed", fields...)
	}
	return nil
}

// AssignEnquiryInput is a manual assignment
type AssignEnquiryInput struct {
	AgentID uint   `json:"agent_id" validate:"required"`
	Reason  string `json:"reason" validate:"omitempty,max=500"`
}

func (in *AssignEnquiryInput) Validate() error {
	in.Reason = strings.TrimSpace(in.Reason)
	return validateStruct(in)
}

// AddNoteInput is a new enquiry note
type AddNoteInput struct {
	Note                string                      `json:"note" validate:"required,max=2000"`
	NoteType            models.NoteType             `json:"note_type"`
	CommunicationMethod *models.CommunicationMethod `json:"communication_method"`
	NextFollowUpDate    *time.Time                  `json:"next_follow_up_date"`
}

// Validate trims the note and defaults the type to internal
func (in *AddNoteInput) Validate() error {
	in.Note = strings.TrimSpace(in.Note)
	if in.NoteType == "" {
		in.NoteType = models.NoteTypeInternal
	}
	if err := validateStruct(in); err != nil {
		return err
	}
	var fields []apperrors.FieldError
	if !in.NoteType.IsValid() {
		fields = append(fields, apperrors.Field("note_type", "must be one of internal, client_communication, system, follow_up_reminder"))
	}
	if in.CommunicationMethod != nil && !in.CommunicationMethod.IsValid() {
		fields = append(fields, apperrors.Field("communication_method", "must be one of phone, email, whatsapp, in_person, system"))
	}
	if len(fields) > 0 {
		return apperrors.Validation("validation failed", fields...)
	}
	return nil
}

// BulkUpdateInput applies one patch to several enquiries
type BulkUpdateInput struct {
	EnquiryIDs []uint             `json:"enquiry_ids" validate:"required,min=1,max=50,dive,gt=0"`
	Updates    UpdateEnquiryInput `json:"updates"`
}

// Validate checks the id list and the patch, dropping duplicate ids
func (in *BulkUpdateInput) Validate() error {
	if err := validateStruct(in); err != nil {
		return err
	}
	seen := make(map[uint]struct{}, len(in.EnquiryIDs))
	ids := in.EnquiryIDs[:0]
	for _, id := range in.EnquiryIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	in.EnquiryIDs = ids
	return in.Updates.Validate()
}

// ExtendRetentionInput places an audit record on legal hold
type ExtendRetentionInput struct {
	Days   int    `json:"days" validate:"required,gte=1,lte=3650"`
	Reason string `json:"reason" validate:"required,min=3,max=1000"`
}

func (in *ExtendRetentionInput) Validate() error {
	in.Reason = strings.TrimSpace(in.Reason)
	return validateStruct(in)
}

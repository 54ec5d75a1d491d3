package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesseract-hub/enquiry-service/internal/apperrors"
	"github.com/tesseract-hub/enquiry-service/internal/models"
	"github.com/tesseract-hub/enquiry-service/internal/services"
)

func TestCreateEnquiryInputNormalizes(t *testing.T) {
	input := services.CreateEnquiryInput{
		Name:         "  Asha  ",
		Email:        " A@X.Test ",
		Phone:        "+91 98765-43210",
		Requirements: "  Looking for 2BHK in Kochi.  ",
	}

	require.NoError(t, input.Validate())

	assert.Equal(t, "Asha", input.Name)
	assert.Equal(t, "a@x.test", input.Email)
	assert.Equal(t, "9876543210", input.Phone)
	assert.Equal(t, "Looking for 2BHK in Kochi.", input.Requirements)
	assert.Equal(t, "website", input.Source)
}

func TestCreateEnquiryInputReportsEveryField(t *testing.T) {
	input := services.CreateEnquiryInput{}

	err := input.Validate()

	require.True(t, apperrors.Is(err, apperrors.KindValidation))
	assert.ElementsMatch(t, []string{"name", "email", "phone", "requirements"}, fieldNames(err))
}

func TestUpdateEnquiryInputValidate(t *testing.T) {
	bogus := models.EnquiryStatus("pending")
	urgent := models.PriorityUrgent
	rating := 6
	valid := 5

	tests := []struct {
		name  string
		input services.UpdateEnquiryInput
		field string
	}{
		{name: "empty patch", input: services.UpdateEnquiryInput{}},
		{name: "unknown status", input: services.UpdateEnquiryInput{Status: &bogus}, field: "status"},
		{name: "rating above range", input: services.UpdateEnquiryInput{CustomerSatisfactionRating: &rating}, field: "customer_satisfaction_rating"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			require.True(t, apperrors.Is(err, apperrors.KindValidation))
			if tt.field != "" {
				assert.Contains(t, fieldNames(err), tt.field)
			}
		})
	}

	ok := services.UpdateEnquiryInput{Priority: &urgent, CustomerSatisfactionRating: &valid}
	assert.NoError(t, ok.Validate())
}

func TestAddNoteInputValidate(t *testing.T) {
	input := services.AddNoteInput{Note: "  Called back  "}
	require.NoError(t, input.Validate())
	assert.Equal(t, models.NoteTypeInternal, input.NoteType)
	assert.Equal(t, "Called back", input.Note)

	bad := services.AddNoteInput{Note: "x", NoteType: "gossip"}
	err := bad.Validate()
	require.True(t, apperrors.Is(err, apperrors.KindValidation))
	assert.Contains(t, fieldNames(err), "note_type")

	blank := services.AddNoteInput{Note: "   "}
	err = blank.Validate()
	require.True(t, apperrors.Is(err, apperrors.KindValidation))
	assert.Contains(t, fieldNames(err), "note")
}

func TestBulkUpdateInputValidate(t *testing.T) {
	high := models.PriorityHigh

	input := services.BulkUpdateInput{EnquiryIDs: []uint{3, 1, 3, 2, 1}, Updates: services.UpdateEnquiryInput{Priority: &high}}
	require.NoError(t, input.Validate())
	assert.Equal(t, []uint{3, 1, 2}, input.EnquiryIDs)

	tooMany := make([]uint, 51)
	for i := range tooMany {
		tooMany[i] = uint(i + 1)
	}
	input = services.BulkUpdateInput{EnquiryIDs: tooMany, Updates: services.UpdateEnquiryInput{Priority: &high}}
	err := input.Validate()
	require.True(t, apperrors.Is(err, apperrors.KindValidation))
	assert.Contains(t, fieldNames(err), "enquiry_ids")

	input = services.BulkUpdateInput{EnquiryIDs: []uint{1}}
	assert.True(t, apperrors.Is(input.Validate(), apperrors.KindValidation))
}

func TestNormalizeIndianMobile(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"9123456789", "9123456789", true},
		{"+919123456789", "9123456789", true},
		{"919123456789", "9123456789", true},
		{"6000000000", "6000000000", true},
		{"5123456789", "", false},
		{"912345678", "", false},
		{"+14155550100", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := services.NormalizeIndianMobile(tt.in)
			if !tt.ok {
				assert.True(t, apperrors.Is(err, apperrors.KindValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMasking(t *testing.T) {
	assert.Equal(t, "a***@x.test", services.MaskEmail("asha@x.test"))
	assert.Equal(t, "***", services.MaskEmail("no-at-sign"))
	assert.Equal(t, "******3210", services.MaskPhone("9876543210"))
	assert.Equal(t, "****", services.MaskPhone("123"))
}

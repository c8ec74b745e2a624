package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cdrp/console-gateway/internal/dto"
)

func TestFormValidatorMessages(t *testing.T) {
	v := NewFormValidator()

	errs := v.Validate(dto.UserDraft{Name: "", Email: "nope", Role: "superuser"})
	assert.Equal(t, map[string]string{
		"name":  "Name is required",
		"email": "Email must be a valid email address",
		"role":  "Role must be one of: citizen, charity, government, admin",
	}, errs)

	assert.Empty(t, v.Validate(dto.UserDraft{Name: "Ada", Email: "ada@example.org", Role: "citizen"}))
}

func TestFormValidatorLengthAndRange(t *testing.T) {
	v := NewFormValidator()
	start := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)

	errs := v.Validate(dto.CampaignDraft{
		Title:            "Relief",
		Description:      "Food parcels",
		Location:         "Harbour",
		StartDate:        &start,
		EndDate:          &end,
		VolunteersNeeded: 0,
	})
	assert.Equal(t, map[string]string{"volunteersNeeded": "Volunteers needed must be at least 1"}, errs)

	long := make([]byte, 121)
	for i := range long {
		long[i] = 'a'
	}
	errs = v.Validate(dto.OrganizationDraft{Name: string(long), Email: "org@example.org", Website: "not a url"})
	assert.Equal(t, "Name must be at most 120 characters", errs["name"])
	assert.Equal(t, "Website must be a valid URL", errs["website"])
}

func TestFieldNames(t *testing.T) {
	names := FieldNames(dto.NewsDraft{})
	assert.Len(t, names, 4)
	assert.Contains(t, names, "imageUrl")
	assert.Contains(t, names, "category")
}

func TestFormFieldsTypesValuesByDraftField(t *testing.T) {
	fields := FormFields(dto.CampaignDraft{}, map[string]string{
		"title":            "2026",
		"description":      "null",
		"startDate":        "2026-11-01T00:00:00Z",
		"endDate":          "",
		"volunteersNeeded": " 12 ",
		"sponsor":          "7",
	})

	assert.JSONEq(t, `"2026"`, string(fields["title"]))
	assert.JSONEq(t, `"null"`, string(fields["description"]))
	assert.JSONEq(t, `"2026-11-01T00:00:00Z"`, string(fields["startDate"]))
	assert.JSONEq(t, `null`, string(fields["endDate"]))
	assert.JSONEq(t, `12`, string(fields["volunteersNeeded"]))
	assert.JSONEq(t, `"7"`, string(fields["sponsor"]))
}

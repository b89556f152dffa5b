package validation

import (
	"errors"
	"testing"
	"time"

	apperrors "landreg-workers/internal/common/errors"
	"landreg-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func TestIdentityNumber(t *testing.T) {
	rules := NewFieldRules(12)

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"plain digits", "123456789012", "123456789012", false},
		{"grouped", "1234 5678-9012", "123456789012", false},
		{"too short", "12345678901", "", true},
		{"letters", "12345678901A", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rules.IdentityNumber(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseArea(t *testing.T) {
	area, err := ParseArea(1250.5)
	require.NoError(t, err)
	assert.Equal(t, 1250.5, area)

	area, err = ParseArea("300,25")
	require.NoError(t, err)
	assert.Equal(t, 300.25, area)

	_, err = ParseArea(0.0)
	assert.Error(t, err)
	_, err = ParseArea("large")
	assert.Error(t, err)
	_, err = ParseArea(true)
	assert.Error(t, err)
}

func TestValidateForCreate_Applicant(t *testing.T) {
	rules := NewFieldRules(12)

	t.Run("name alias satisfies lastName", func(t *testing.T) {
		result := rules.ValidateForCreate(models.EntityApplicant, map[string]interface{}{
			"identityNumber": "123456789012",
			"name":           "Rakoto",
			"birthDate":      "1980-02-29",
		}, testNow)
		assert.True(t, result.Valid, "%v", result.Errors)
	})

	t.Run("collects every problem", func(t *testing.T) {
		result := rules.ValidateForCreate(models.EntityApplicant, map[string]interface{}{
			"identityNumber": "1234",
			"birthDate":      "02/03/1980",
		}, testNow)

		assert.False(t, result.Valid)
		assert.True(t, result.HasErrors("identityNumber"))
		assert.True(t, result.HasErrors("lastName"))
		assert.True(t, result.HasErrors("birthDate"))

		err := result.Err()
		assert.True(t, errors.Is(err, apperrors.ErrValidation))
	})
}

func TestValidateForCreate_Parcel(t *testing.T) {
	rules := NewFieldRules(12)

	result := rules.ValidateForCreate(models.EntityParcel, map[string]interface{}{
		"lotIdentifier": "L-12",
		"vocation":      "agricultural",
		"area":          -4.0,
	}, testNow)

	assert.False(t, result.Valid)
	assert.True(t, result.HasErrors("area"))
	assert.False(t, result.HasErrors("lotIdentifier"))
}

func TestValidateFields_OnlyListedAndPresent(t *testing.T) {
	rules := NewFieldRules(12)
	payload := map[string]interface{}{
		"identityNumber": "bad",
		"phone":          "034 00 000 00",
	}

	result := rules.ValidateFields(models.EntityApplicant, payload, []string{"phone", "address"}, testNow)
	assert.True(t, result.Valid)

	result = rules.ValidateFields(models.EntityApplicant, payload, []string{"vocation"}, testNow)
	assert.True(t, result.HasErrors("vocation"))
}

func TestColumnValue(t *testing.T) {
	rules := NewFieldRules(12)
	payload := map[string]interface{}{
		"identityNumber": "1234 5678 9012",
		"name":           " Rabe ",
		"birthDate":      "1975-11-03",
	}

	spec, _ := models.LookupField(models.EntityApplicant, "identityNumber")
	v, err := rules.ColumnValue(models.EntityApplicant, spec, payload)
	require.NoError(t, err)
	assert.Equal(t, "123456789012", v)

	spec, _ = models.LookupField(models.EntityApplicant, "lastName")
	v, err = rules.ColumnValue(models.EntityApplicant, spec, payload)
	require.NoError(t, err)
	assert.Equal(t, "Rabe", v)

	spec, _ = models.LookupField(models.EntityApplicant, "birthDate")
	v, err = rules.ColumnValue(models.EntityApplicant, spec, payload)
	require.NoError(t, err)
	assert.Equal(t, "1975-11-03", v)
}

func TestValidateForCreate_ShortApplicantKeys(t *testing.T) {
	rules := NewFieldRules(12)
	payload := map[string]interface{}{"identity": "123456789012", "name": "RAKOTO"}

	assert.True(t, rules.ValidateForCreate(models.EntityApplicant, payload, testNow).Valid)

	values, err := rules.ColumnValues(models.EntityApplicant, payload, nil)
	require.NoError(t, err)
	assert.Equal(t, "123456789012", values["identity_number"])
	assert.Equal(t, "RAKOTO", values["last_name"])

	result := rules.ValidateForCreate(models.EntityApplicant, map[string]interface{}{"identity": "12", "name": "RAKOTO"}, testNow)
	assert.True(t, result.HasErrors("identityNumber"))
}

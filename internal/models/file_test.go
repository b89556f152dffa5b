package models

import (
	"errors"
	"testing"

	apperrors "landreg-workers/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFileOwner(t *testing.T) {
	owner, err := DecodeFileOwner("PARCEL", "STAGING", "7b1c0e4a-8f0e-4c55-9d3c-0c6a1f9a2b10")
	require.NoError(t, err)
	assert.Equal(t, EntityParcel, owner.Kind())
	assert.Equal(t, OriginStaging, owner.Ref().Origin)

	for _, tc := range [][3]string{
		{"DOSSIER", "STAGING", "x"},
		{"APPLICANT", "ARCHIVE", "x"},
		{"APPLICANT", "PRODUCTION", " "},
	} {
		_, err := DecodeFileOwner(tc[0], tc[1], tc[2])
		assert.True(t, errors.Is(err, apperrors.ErrIntegrity), "%v", tc)
	}
}

func TestRelinked_KeepsKind(t *testing.T) {
	owner := OwnedByApplicant{Record: StagingRef("a1")}
	moved := Relinked(owner, 42)

	assert.Equal(t, EntityApplicant, moved.Kind())
	assert.Equal(t, RecordRef{Origin: OriginProduction, ID: "42"}, moved.Ref())

	view := StagingFile{ID: "f1", Owner: moved}.View()
	assert.Equal(t, "42", view.OwnerID)
	assert.Equal(t, OriginProduction, view.OwnerOrigin)
}

func TestNormalizeIdentityNumber(t *testing.T) {
	assert.Equal(t, "123456789012", NormalizeIdentityNumber("1234 5678-9012"))
	assert.Equal(t, "", NormalizeIdentityNumber(" -- "))
}

func TestWithCase_DoesNotMutate(t *testing.T) {
	payload := map[string]interface{}{"lotIdentifier": "L-12"}
	out := WithCase(payload, "CO-2024-001")

	assert.Equal(t, "CO-2024-001", out[FieldCaseOpeningNumber])
	_, present := payload[FieldCaseOpeningNumber]
	assert.False(t, present)
}

func TestLookupField_NameAlias(t *testing.T) {
	f, ok := LookupField(EntityApplicant, "name")
	require.True(t, ok)
	assert.Equal(t, "last_name", f.Column)

	f, ok = LookupField(EntityApplicant, "identity")
	require.True(t, ok)
	assert.Equal(t, FieldIdentityNumber, f.Key)

	_, ok = LookupField(EntityParcel, "identity")
	assert.False(t, ok)

	_, ok = LookupField(EntityParcel, "identityNumber")
	assert.False(t, ok)
}

func TestIdentity_ShortKeyFallback(t *testing.T) {
	assert.Equal(t, "123456789012", Identity(map[string]interface{}{"identity": " 123456789012 "}))
	assert.Equal(t, "111", Identity(map[string]interface{}{"identityNumber": "111", "identity": "222"}))

	rec := StagingRecord{EntityType: EntityApplicant, Payload: map[string]interface{}{"identity": "1234 5678 9012"}}
	assert.Equal(t, "123456789012", rec.IdentityNumber())
	assert.Equal(t, "123456789012", rec.NaturalKey())
}

package models

import (
	"fmt"
	"strconv"
	"strings"
)

// EntityType distinguishes the two kinds of staged records.
type EntityType string

const (
	EntityApplicant EntityType = "APPLICANT"
	EntityParcel    EntityType = "PARCEL"
)

// ParseEntityType accepts the type case-insensitively.
func ParseEntityType(s string) (EntityType, error) {
	switch EntityType(strings.ToUpper(strings.TrimSpace(s))) {
	case EntityApplicant:
		return EntityApplicant, nil
	case EntityParcel:
		return EntityParcel, nil
	default:
		return "", fmt.Errorf("unknown entity type %q", s)
	}
}

func (t EntityType) Valid() bool {
	return t == EntityApplicant || t == EntityParcel
}

// StagingTable is the staging table holding records of type t.
func (t EntityType) StagingTable() string {
	if t == EntityParcel {
		return "staging_parcels"
	}
	return "staging_applicants"
}

// ProductionTable is the authoritative registry table for type t.
func (t EntityType) ProductionTable() string {
	if t == EntityParcel {
		return "parcels"
	}
	return "applicants"
}

// Origin tells whether a RecordRef points at staging or production.
type Origin string

const (
	OriginStaging    Origin = "STAGING"
	OriginProduction Origin = "PRODUCTION"
)

func (o Origin) Valid() bool {
	return o == OriginStaging || o == OriginProduction
}

// Payload field names shared by ingest, matching and promotion.
const (
	FieldIdentityNumber      = "identityNumber"
	FieldIdentityShort       = "identity"
	FieldLastName            = "lastName"
	FieldName                = "name"
	FieldFirstNames          = "firstNames"
	FieldBirthDate           = "birthDate"
	FieldBirthPlace          = "birthPlace"
	FieldAddress             = "address"
	FieldPhone               = "phone"
	FieldGender              = "gender"
	FieldLotIdentifier       = "lotIdentifier"
	FieldTitleReference      = "titleReference"
	FieldVocation            = "vocation"
	FieldArea                = "area"
	FieldLocality            = "locality"
	FieldOwnerIdentityNumber = "ownerIdentityNumber"
	FieldCaseOpeningNumber   = "caseOpeningNumber"
)

// PayloadString returns payload[key] as trimmed text. Numbers are formatted,
// anything else yields "".
func PayloadString(payload map[string]interface{}, key string) string {
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

// NormalizeIdentityNumber strips every non-digit character.
func NormalizeIdentityNumber(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Identity reads identityNumber, falling back to the short identity field.
// The value is returned as captured, not normalized.
func Identity(payload map[string]interface{}) string {
	if v := PayloadString(payload, FieldIdentityNumber); v != "" {
		return v
	}
	return PayloadString(payload, FieldIdentityShort)
}

// LastName reads lastName, falling back to the legacy name field.
func LastName(payload map[string]interface{}) string {
	if v := PayloadString(payload, FieldLastName); v != "" {
		return v
	}
	return PayloadString(payload, FieldName)
}

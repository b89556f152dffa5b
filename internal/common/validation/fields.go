package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"landreg-workers/internal/models"
)

// identity numbers may be captured with spaces, dots or dashes between digit groups
var identityPattern = regexp.MustCompile(`^[0-9][0-9 .\-]*$`)

const birthDateLayout = "2006-01-02"

// FieldRules are the interactive field rules applied before a staged record
// is written to production.
type FieldRules struct {
	IdentityDigits int
}

func NewFieldRules(identityDigits int) FieldRules {
	if identityDigits <= 0 {
		identityDigits = 12
	}
	return FieldRules{IdentityDigits: identityDigits}
}

// IdentityNumber validates raw and returns its normalized digits.
func (r FieldRules) IdentityNumber(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !identityPattern.MatchString(raw) {
		return "", fmt.Errorf("must contain only digits and separators")
	}
	digits := models.NormalizeIdentityNumber(raw)
	if len(digits) != r.IdentityDigits {
		return "", fmt.Errorf("must have exactly %d digits, got %d", r.IdentityDigits, len(digits))
	}
	return digits, nil
}

// ParseArea accepts a JSON number or a numeric string and requires it to be positive.
func ParseArea(v interface{}) (float64, error) {
	var area float64
	switch val := v.(type) {
	case float64:
		area = val
	case int:
		area = float64(val)
	case int64:
		area = float64(val)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(val, ",", ".")), 64)
		if err != nil {
			return 0, fmt.Errorf("must be a number")
		}
		area = parsed
	default:
		return 0, fmt.Errorf("must be a number")
	}
	if area <= 0 {
		return 0, fmt.Errorf("must be greater than zero")
	}
	return area, nil
}

// ParseBirthDate requires an ISO date that is not in the future.
func ParseBirthDate(s string, now time.Time) (time.Time, error) {
	d, err := time.Parse(birthDateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("must be an ISO date (YYYY-MM-DD)")
	}
	if d.After(now) {
		return time.Time{}, fmt.Errorf("must not be in the future")
	}
	return d, nil
}

// ValidateForCreate checks required fields and the format of every present field.
func (r FieldRules) ValidateForCreate(t models.EntityType, payload map[string]interface{}, now time.Time) *ValidationResult {
	result := NewResult()
	for _, spec := range models.FieldsFor(t) {
		if spec.Required && !present(t, payload, spec.Key) {
			result.Add(spec.Key, "required field missing", CodeRequired)
		}
	}
	result.Merge(r.ValidateFields(t, payload, nil, now))
	return result
}

// ValidateFields checks the format of the listed keys that are present in
// payload; a nil list means every known key.
func (r FieldRules) ValidateFields(t models.EntityType, payload map[string]interface{}, keys []string, now time.Time) *ValidationResult {
	result := NewResult()
	if keys == nil {
		for _, spec := range models.FieldsFor(t) {
			keys = append(keys, spec.Key)
		}
	}

	for _, key := range keys {
		spec, ok := models.LookupField(t, key)
		if !ok {
			result.Add(key, fmt.Sprintf("not a %s field", strings.ToLower(string(t))), CodeUnknownField)
			continue
		}
		if !present(t, payload, spec.Key) {
			continue
		}
		if err := r.checkValue(t, spec, payload, now); err != nil {
			result.Add(spec.Key, err.Error(), CodeInvalidFormat)
		}
	}
	return result
}

// ColumnValue converts a present payload field into the value stored in its
// production column. It assumes the field passed ValidateFields.
func (r FieldRules) ColumnValue(t models.EntityType, spec models.FieldSpec, payload map[string]interface{}) (interface{}, error) {
	raw := fieldString(t, payload, spec.Key)
	switch spec.Kind {
	case models.FieldIdentity:
		return r.IdentityNumber(raw)
	case models.FieldNumber:
		return ParseArea(payload[spec.Key])
	case models.FieldDate:
		d, err := time.Parse(birthDateLayout, raw)
		if err != nil {
			return nil, err
		}
		return d.Format(birthDateLayout), nil
	default:
		return raw, nil
	}
}

// ColumnValues converts the present fields among keys (nil means every
// known field) into production column values keyed by column.
func (r FieldRules) ColumnValues(t models.EntityType, payload map[string]interface{}, keys []string) (map[string]interface{}, error) {
	if keys == nil {
		for _, spec := range models.FieldsFor(t) {
			keys = append(keys, spec.Key)
		}
	}

	values := make(map[string]interface{}, len(keys))
	for _, key := range keys {
		spec, ok := models.LookupField(t, key)
		if !ok {
			return nil, fmt.Errorf("%s: not a %s field", key, strings.ToLower(string(t)))
		}
		if !present(t, payload, spec.Key) {
			continue
		}
		v, err := r.ColumnValue(t, spec, payload)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", spec.Key, err)
		}
		values[spec.Column] = v
	}
	return values, nil
}

func (r FieldRules) checkValue(t models.EntityType, spec models.FieldSpec, payload map[string]interface{}, now time.Time) error {
	switch spec.Kind {
	case models.FieldIdentity:
		_, err := r.IdentityNumber(fieldString(t, payload, spec.Key))
		return err
	case models.FieldNumber:
		_, err := ParseArea(payload[spec.Key])
		return err
	case models.FieldDate:
		_, err := ParseBirthDate(fieldString(t, payload, spec.Key), now)
		return err
	default:
		return nil
	}
}

// present reports whether key carries a non-blank text or numeric value.
func present(t models.EntityType, payload map[string]interface{}, key string) bool {
	return fieldString(t, payload, key) != ""
}

func fieldString(t models.EntityType, payload map[string]interface{}, key string) string {
	if t == models.EntityApplicant {
		switch key {
		case models.FieldIdentityNumber:
			return models.Identity(payload)
		case models.FieldLastName:
			return models.LastName(payload)
		}
	}
	return models.PayloadString(payload, key)
}

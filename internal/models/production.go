package models

import "time"

// FieldKind tells how a payload value is stored in the production column.
type FieldKind int

const (
	FieldText FieldKind = iota
	FieldDate
	FieldNumber
	FieldIdentity
)

// FieldSpec maps a payload key onto a production column.
type FieldSpec struct {
	Key      string
	Column   string
	Kind     FieldKind
	Required bool
}

var ApplicantFields = []FieldSpec{
	{Key: FieldIdentityNumber, Column: "identity_number", Kind: FieldIdentity, Required: true},
	{Key: FieldLastName, Column: "last_name", Kind: FieldText, Required: true},
	{Key: FieldFirstNames, Column: "first_names", Kind: FieldText},
	{Key: FieldBirthDate, Column: "birth_date", Kind: FieldDate},
	{Key: FieldBirthPlace, Column: "birth_place", Kind: FieldText},
	{Key: FieldAddress, Column: "address", Kind: FieldText},
	{Key: FieldPhone, Column: "phone", Kind: FieldText},
	{Key: FieldGender, Column: "gender", Kind: FieldText},
}

var ParcelFields = []FieldSpec{
	{Key: FieldLotIdentifier, Column: "lot_identifier", Kind: FieldText, Required: true},
	{Key: FieldTitleReference, Column: "title_reference", Kind: FieldText},
	{Key: FieldVocation, Column: "vocation", Kind: FieldText, Required: true},
	{Key: FieldArea, Column: "area", Kind: FieldNumber, Required: true},
	{Key: FieldLocality, Column: "locality", Kind: FieldText},
	{Key: FieldOwnerIdentityNumber, Column: "owner_identity_number", Kind: FieldIdentity},
}

// FieldsFor returns the column whitelist for t.
func FieldsFor(t EntityType) []FieldSpec {
	if t == EntityParcel {
		return ParcelFields
	}
	return ApplicantFields
}

// LookupField finds the spec for a payload key. On applicants the short
// identity key resolves to identityNumber and the legacy name key to lastName.
func LookupField(t EntityType, key string) (FieldSpec, bool) {
	if t == EntityApplicant {
		switch key {
		case FieldIdentityShort:
			key = FieldIdentityNumber
		case FieldName:
			key = FieldLastName
		}
	}
	for _, f := range FieldsFor(t) {
		if f.Key == key {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// ProductionEntityRef identifies the production entity a promotion produced.
type ProductionEntityRef struct {
	EntityType EntityType `json:"entityType"`
	ID         int64      `json:"id"`
	District   int        `json:"district"`
	Created    bool       `json:"created"`
}

// DecisionKind is the moderator's promotion choice.
type DecisionKind string

const (
	DecisionCreate DecisionKind = "CREATE"
	DecisionMerge  DecisionKind = "MERGE"
)

// Decision is Create, or MergeInto an existing entity optionally limited to
// the listed payload fields. Note ends up on the archived staging row.
type Decision struct {
	Kind      DecisionKind
	MatchedID int64
	Fields    []string
	Note      string
}

func Create() Decision {
	return Decision{Kind: DecisionCreate}
}

func MergeInto(matchedID int64, fields ...string) Decision {
	return Decision{Kind: DecisionMerge, MatchedID: matchedID, Fields: fields}
}

// PromotionTrail records which production entity an archived staging record became.
type PromotionTrail struct {
	StagingID    string
	EntityType   EntityType
	BatchID      string
	ProductionID int64
	District     int
	Decision     DecisionKind
	PromotedBy   string
	PromotedAt   time.Time
}

// Ref converts the trail into the reference a replayed promotion returns.
func (t *PromotionTrail) Ref() *ProductionEntityRef {
	return &ProductionEntityRef{
		EntityType: t.EntityType,
		ID:         t.ProductionID,
		District:   t.District,
		Created:    t.Decision == DecisionCreate,
	}
}

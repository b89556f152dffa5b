package models

import (
	"fmt"
	"strings"
	"time"

	apperrors "landreg-workers/internal/common/errors"
)

// RecordRef points at one record in either record space.
type RecordRef struct {
	Origin Origin `json:"origin"`
	ID     string `json:"id"`
}

// StagingRef references a staging row by its UUID.
func StagingRef(id string) RecordRef {
	return RecordRef{Origin: OriginStaging, ID: id}
}

// ProductionRef references a production row by its numeric id.
func ProductionRef(id int64) RecordRef {
	return RecordRef{Origin: OriginProduction, ID: fmt.Sprintf("%d", id)}
}

// FileOwner is exactly one of OwnedByApplicant or OwnedByParcel. A file
// always has an owner, and the owner always says which record space it is in.
type FileOwner interface {
	Kind() EntityType
	Ref() RecordRef
	isFileOwner()
}

type OwnedByApplicant struct {
	Record RecordRef
}

type OwnedByParcel struct {
	Record RecordRef
}

func (o OwnedByApplicant) Kind() EntityType { return EntityApplicant }
func (o OwnedByParcel) Kind() EntityType    { return EntityParcel }
func (o OwnedByApplicant) Ref() RecordRef   { return o.Record }
func (o OwnedByParcel) Ref() RecordRef      { return o.Record }
func (OwnedByApplicant) isFileOwner()       {}
func (OwnedByParcel) isFileOwner()          {}

// NewFileOwner builds the owner variant for kind.
func NewFileOwner(kind EntityType, ref RecordRef) (FileOwner, error) {
	if !ref.Origin.Valid() || strings.TrimSpace(ref.ID) == "" {
		return nil, fmt.Errorf("invalid owner reference %+v", ref)
	}
	switch kind {
	case EntityApplicant:
		return OwnedByApplicant{Record: ref}, nil
	case EntityParcel:
		return OwnedByParcel{Record: ref}, nil
	default:
		return nil, fmt.Errorf("invalid owner kind %q", kind)
	}
}

// DecodeFileOwner rebuilds an owner from its three columns. Anything the
// union cannot represent is an integrity violation.
func DecodeFileOwner(kind, origin, ref string) (FileOwner, error) {
	owner, err := NewFileOwner(EntityType(kind), RecordRef{Origin: Origin(origin), ID: ref})
	if err != nil {
		return nil, apperrors.NewIntegrityViolationError(fmt.Sprintf("staging file owner: %v", err))
	}
	return owner, nil
}

// Relinked returns the same owner kind pointing at production entity id.
func Relinked(owner FileOwner, productionID int64) FileOwner {
	ref := ProductionRef(productionID)
	if owner.Kind() == EntityParcel {
		return OwnedByParcel{Record: ref}
	}
	return OwnedByApplicant{Record: ref}
}

// StagingFile is an attachment received with a batch.
type StagingFile struct {
	ID                string
	BatchID           string
	CaseOpeningNumber string
	TargetDistrict    int
	IdentityNumber    string
	LotIdentifier     string
	Category          string
	FileName          string
	StorageKey        string
	Owner             FileOwner
	CreatedAt         time.Time
}

// FileView is the JSON form of a StagingFile.
type FileView struct {
	ID          string     `json:"id"`
	Category    string     `json:"category"`
	FileName    string     `json:"fileName"`
	StorageKey  string     `json:"storageKey"`
	OwnerType   EntityType `json:"ownerType"`
	OwnerOrigin Origin     `json:"ownerOrigin"`
	OwnerID     string     `json:"ownerId"`
}

func (f StagingFile) View() FileView {
	v := FileView{
		ID:         f.ID,
		Category:   f.Category,
		FileName:   f.FileName,
		StorageKey: f.StorageKey,
	}
	if f.Owner != nil {
		v.OwnerType = f.Owner.Kind()
		v.OwnerOrigin = f.Owner.Ref().Origin
		v.OwnerID = f.Owner.Ref().ID
	}
	return v
}

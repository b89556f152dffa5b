// Package testsupport provides an in-memory staging and production store
// with the same transition semantics as the Postgres repositories.
package testsupport

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	apperrors "landreg-workers/internal/common/errors"
	"landreg-workers/internal/models"
	"landreg-workers/internal/repository"
)

// Entity is a production applicant or parcel row.
type Entity struct {
	ID        int64
	District  int
	Columns   map[string]interface{}
	CreatedAt time.Time
}

// Store is safe for concurrent use. Every transition holds the lock for its
// whole write set, which gives the same all-or-nothing behaviour as the
// database transaction.
type Store struct {
	mu         sync.Mutex
	nextID     int64
	batches    map[string]models.ImportBatch
	records    map[string]*models.StagingRecord
	files      []*models.StagingFile
	promotions map[string]models.PromotionTrail
	production map[models.EntityType][]*Entity
	now        func() time.Time

	// FailNext makes the next storage call return this error once.
	FailNext error
}

func NewStore() *Store {
	return &Store{
		batches:    make(map[string]models.ImportBatch),
		records:    make(map[string]*models.StagingRecord),
		promotions: make(map[string]models.PromotionTrail),
		production: make(map[models.EntityType][]*Entity),
		now:        time.Now,
	}
}

func (s *Store) failure() error {
	err := s.FailNext
	s.FailNext = nil
	return err
}

// ==========================
// Seeding and inspection
// ==========================

// StartIDsAt makes the next production row get id next.
func (s *Store) StartIDsAt(next int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = next - 1
}

// SeedEntity adds a production row and returns its id.
func (s *Store) SeedEntity(t models.EntityType, district int, columns map[string]interface{}) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertEntity(t, district, columns).ID
}

// AddRecord stores rec as is.
func (s *Store) AddRecord(rec models.StagingRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.Status == nil {
		rec.Status = models.Pending{}
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	s.records[rec.ID] = &rec
}

// AddFile stores f as is.
func (s *Store) AddFile(f models.StagingFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, &f)
}

// Record returns a copy of the staging record with id, or nil.
func (s *Store) Record(id string) *models.StagingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}

// Entity returns a copy of a production row, or nil.
func (s *Store) Entity(t models.EntityType, id int64) *Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.find(t, id)
	if e == nil {
		return nil
	}
	cp := *e
	cp.Columns = make(map[string]interface{}, len(e.Columns))
	for k, v := range e.Columns {
		cp.Columns[k] = v
	}
	return &cp
}

// EntityCount returns the number of production rows of type t.
func (s *Store) EntityCount(t models.EntityType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.production[t])
}

// Files returns copies of every stored file.
func (s *Store) Files() []models.StagingFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.StagingFile, 0, len(s.files))
	for _, f := range s.files {
		out = append(out, *f)
	}
	return out
}

// Batches returns the number of stored import batches.
func (s *Store) Batches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func (s *Store) insertEntity(t models.EntityType, district int, columns map[string]interface{}) *Entity {
	s.nextID++
	cols := make(map[string]interface{}, len(columns))
	for k, v := range columns {
		cols[k] = v
	}
	e := &Entity{ID: s.nextID, District: district, Columns: cols, CreatedAt: s.now()}
	s.production[t] = append(s.production[t], e)
	return e
}

func (s *Store) find(t models.EntityType, id int64) *Entity {
	for _, e := range s.production[t] {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// ==========================
// repository.ProductionReader
// ==========================

func (s *Store) FindApplicantsByIdentity(_ context.Context, identity string) ([]models.MatchCandidate, error) {
	return s.candidates(models.EntityApplicant, func(e *Entity) bool {
		return e.Columns["identity_number"] == identity
	})
}

func (s *Store) FindParcelsByLot(_ context.Context, caseOpeningNumber string, district int, lot string) ([]models.MatchCandidate, error) {
	return s.candidates(models.EntityParcel, func(e *Entity) bool {
		return e.District == district && e.Columns["case_opening_number"] == caseOpeningNumber && e.Columns["lot_identifier"] == lot
	})
}

func (s *Store) FindParcelsByTitle(_ context.Context, title string) ([]models.MatchCandidate, error) {
	return s.candidates(models.EntityParcel, func(e *Entity) bool {
		return e.Columns["title_reference"] == title
	})
}

func (s *Store) candidates(t models.EntityType, match func(*Entity) bool) ([]models.MatchCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return nil, err
	}
	var out []models.MatchCandidate
	for _, e := range s.production[t] {
		if match(e) {
			out = append(out, models.MatchCandidate{ID: e.ID, District: e.District})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ==========================
// Staging reads
// ==========================

func (s *Store) GetRecord(_ context.Context, t models.EntityType, id string) (*models.StagingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return nil, err
	}
	rec, ok := s.records[id]
	if !ok || rec.EntityType != t {
		return nil, apperrors.NewRecordNotFoundError(string(t), id)
	}
	cp := *rec
	return &cp, nil
}

func (s *Store) LatestPendingByCase(_ context.Context, t models.EntityType, caseOpeningNumber string, district int) (*models.StagingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.StagingRecord
	for _, rec := range s.records {
		if rec.EntityType != t || rec.CaseOpeningNumber != caseOpeningNumber || rec.TargetDistrict != district {
			continue
		}
		if _, pending := rec.Status.(models.Pending); !pending {
			continue
		}
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) || (rec.CreatedAt.Equal(latest.CreatedAt) && rec.ID > latest.ID) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, apperrors.NewRecordNotFoundError(string(t), fmt.Sprintf("case %s district %d", caseOpeningNumber, district))
	}
	cp := *latest
	return &cp, nil
}

func (s *Store) FilesForRecord(_ context.Context, rec *models.StagingRecord) ([]models.StagingFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.StagingFile
	for _, f := range s.files {
		if s.attachedTo(f, rec) {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (s *Store) attachedTo(f *models.StagingFile, rec *models.StagingRecord) bool {
	if f.Owner.Kind() != rec.EntityType {
		return false
	}
	if f.Owner.Ref().ID == rec.ID {
		return true
	}
	key := rec.NaturalKey()
	return key != "" && f.CaseOpeningNumber == rec.CaseOpeningNumber && f.TargetDistrict == rec.TargetDistrict && fileKey(f, rec.EntityType) == key
}

func fileKey(f *models.StagingFile, t models.EntityType) string {
	if t == models.EntityParcel {
		return f.LotIdentifier
	}
	return f.IdentityNumber
}

func (s *Store) GetPromotion(_ context.Context, stagingID string) (*models.PromotionTrail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trail, ok := s.promotions[stagingID]
	if !ok {
		return nil, nil
	}
	return &trail, nil
}

// ==========================
// Staging writes
// ==========================

func (s *Store) CreateBatch(_ context.Context, w repository.BatchWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return err
	}
	if w.Batch.SubmissionKey != "" {
		for _, b := range s.batches {
			if b.TargetDistrict == w.Batch.TargetDistrict && b.SubmissionKey == w.Batch.SubmissionKey {
				return apperrors.NewDuplicateEntityError("import batch submission key already used")
			}
		}
	}
	for _, f := range w.Files {
		if f.Owner == nil {
			return apperrors.NewIntegrityViolationError(fmt.Sprintf("file %s has no owner", f.ID))
		}
	}

	s.batches[w.Batch.ID] = w.Batch
	for i := range w.Records {
		rec := w.Records[i]
		rec.Status = models.Pending{}
		s.records[rec.ID] = &rec
	}
	for i := range w.Files {
		f := w.Files[i]
		s.files = append(s.files, &f)
	}
	return nil
}

func (s *Store) Reject(_ context.Context, t models.EntityType, id string, rejected models.Rejected) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return err
	}
	rec, err := s.pending(t, id)
	if err != nil {
		return err
	}
	rec.Status = rejected
	return nil
}

func (s *Store) Promote(_ context.Context, w repository.PromotionWrite) (*repository.PromotionOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return nil, err
	}
	rec, err := s.pending(w.EntityType, w.StagingID)
	if err != nil {
		return nil, err
	}
	if err := checkColumns(w.EntityType, w.Values); err != nil {
		return nil, err
	}

	var ref *models.ProductionEntityRef
	switch w.Decision.Kind {
	case models.DecisionCreate:
		if id, ok := w.Values["identity_number"]; ok && w.EntityType == models.EntityApplicant {
			for _, e := range s.production[models.EntityApplicant] {
				if e.Columns["identity_number"] == id {
					return nil, apperrors.NewDuplicateEntityError("applicants_identity_number_key")
				}
			}
		}
		cols := w.Values
		if w.EntityType == models.EntityParcel {
			cols = withColumn(cols, "case_opening_number", w.CaseOpeningNumber)
		}
		e := s.insertEntity(w.EntityType, w.District, cols)
		ref = &models.ProductionEntityRef{EntityType: w.EntityType, ID: e.ID, District: e.District, Created: true}
	case models.DecisionMerge:
		e := s.find(w.EntityType, w.Decision.MatchedID)
		if e == nil {
			return nil, apperrors.NewEntityNotFoundError(string(w.EntityType), w.Decision.MatchedID)
		}
		for k, v := range w.Values {
			e.Columns[k] = v
		}
		ref = &models.ProductionEntityRef{EntityType: w.EntityType, ID: e.ID, District: e.District}
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown decision %q", w.Decision.Kind))
	}

	var relinked int64
	for _, f := range s.files {
		if f.Owner.Ref().Origin != models.OriginStaging || !s.attachedTo(f, rec) {
			continue
		}
		f.Owner = models.Relinked(f.Owner, ref.ID)
		relinked++
	}

	s.promotions[rec.ID] = models.PromotionTrail{
		StagingID:    rec.ID,
		EntityType:   w.EntityType,
		BatchID:      w.BatchID,
		ProductionID: ref.ID,
		District:     ref.District,
		Decision:     w.Decision.Kind,
		PromotedBy:   w.Archived.By,
		PromotedAt:   w.Archived.At,
	}
	rec.Status = w.Archived
	return &repository.PromotionOutcome{Ref: ref, FilesRelinked: relinked}, nil
}

// pending returns the stored record when it is still PENDING, else the
// error a lost compare-and-swap reports.
func (s *Store) pending(t models.EntityType, id string) (*models.StagingRecord, error) {
	rec, ok := s.records[id]
	if !ok || rec.EntityType != t {
		return nil, apperrors.NewRecordNotFoundError(string(t), id)
	}
	if models.IsTerminal(rec.Status) {
		return nil, apperrors.NewAlreadyProcessedError(id, string(rec.Status.Code()))
	}
	return rec, nil
}

func checkColumns(t models.EntityType, values map[string]interface{}) error {
	allowed := make(map[string]bool)
	for _, spec := range models.FieldsFor(t) {
		allowed[spec.Column] = true
	}
	for col := range values {
		if !allowed[col] {
			return apperrors.NewValidationError(fmt.Sprintf("column %q is not writable", col))
		}
	}
	return nil
}

func withColumn(cols map[string]interface{}, k string, v interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(cols)+1)
	for key, val := range cols {
		out[key] = val
	}
	out[k] = v
	return out
}

// ==========================
// Moderation list
// ==========================

func (s *Store) List(_ context.Context, f models.ListFilter) ([]models.ListEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := []models.ListEntry{}
	typeOK := func(t models.EntityType) bool { return f.EntityType == "" || f.EntityType == t }

	for _, rec := range s.records {
		if _, pending := rec.Status.(models.Pending); !pending || !typeOK(rec.EntityType) {
			continue
		}
		if (f.District > 0 && rec.TargetDistrict != f.District) || (f.BatchID != "" && rec.BatchID != f.BatchID) {
			continue
		}
		label := models.PayloadString(rec.Payload, models.FieldVocation)
		if rec.EntityType == models.EntityApplicant {
			label = models.LastName(rec.Payload)
		}
		entries = append(entries, models.ListEntry{
			Origin: models.OriginStaging, EntityType: rec.EntityType, ID: rec.ID, District: rec.TargetDistrict,
			CaseOpeningNumber: rec.CaseOpeningNumber, Label: label, Key: rec.NaturalKey(), CreatedAt: rec.CreatedAt,
		})
	}

	for _, t := range []models.EntityType{models.EntityApplicant, models.EntityParcel} {
		if !typeOK(t) {
			continue
		}
		for _, e := range s.production[t] {
			if f.District > 0 && e.District != f.District {
				continue
			}
			if f.BatchID != "" && !s.promotedFrom(t, e.ID, f.BatchID) {
				continue
			}
			entries = append(entries, productionEntry(t, e))
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if a.Origin != b.Origin {
			return a.Origin < b.Origin
		}
		return a.ID < b.ID
	})

	f = f.Normalized()
	limit := f.Limit
	if f.Offset >= len(entries) {
		return []models.ListEntry{}, nil
	}
	if f.Offset > 0 {
		entries = entries[f.Offset:]
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Store) promotedFrom(t models.EntityType, id int64, batchID string) bool {
	for _, p := range s.promotions {
		if p.EntityType == t && p.ProductionID == id && p.BatchID == batchID {
			return true
		}
	}
	return false
}

func productionEntry(t models.EntityType, e *Entity) models.ListEntry {
	str := func(k string) string {
		v, _ := e.Columns[k].(string)
		return v
	}
	entry := models.ListEntry{
		Origin:     models.OriginProduction,
		EntityType: t,
		ID:         strconv.FormatInt(e.ID, 10),
		District:   e.District,
		CreatedAt:  e.CreatedAt,
	}
	if t == models.EntityParcel {
		entry.CaseOpeningNumber = str("case_opening_number")
		entry.Label = str("vocation")
		entry.Key = str("lot_identifier")
	} else {
		entry.Label = str("last_name")
		entry.Key = str("identity_number")
	}
	return entry
}

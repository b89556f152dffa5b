package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	apperrors "landreg-workers/internal/common/errors"
	"landreg-workers/internal/common/logger"
	"landreg-workers/internal/matcher"
	"landreg-workers/internal/models"
	"landreg-workers/internal/notify"
	"landreg-workers/internal/promotion"
	"landreg-workers/internal/testsupport"
	"landreg-workers/pkg/recordschema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	events []notify.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e notify.Event) error {
	p.events = append(p.events, e)
	return nil
}

type memoryReplay struct {
	entries map[string]*Summary
}

func (m *memoryReplay) Lookup(_ context.Context, key string) (*Summary, bool, error) {
	s, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	cp := *s
	return &cp, true, nil
}

func (m *memoryReplay) Remember(_ context.Context, key string, s *Summary) error {
	cp := *s
	m.entries[key] = &cp
	return nil
}

type brokenReplay struct{}

func (brokenReplay) Lookup(context.Context, string) (*Summary, bool, error) {
	return nil, false, errors.New("connection refused")
}
func (brokenReplay) Remember(context.Context, string, *Summary) error {
	return errors.New("connection refused")
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("00000000-0000-4000-8000-%012d", n)
	}
}

type fixture struct {
	store  *testsupport.Store
	pub    *recordingPublisher
	replay ReplayCache
}

func newService(t *testing.T, f *fixture) *Service {
	t.Helper()
	log := logger.NewTestLogger(t)
	schemas, err := recordschema.NewValidator(recordschema.Default())
	require.NoError(t, err)
	if f.store == nil {
		f.store = testsupport.NewStore()
	}
	if f.pub == nil {
		f.pub = &recordingPublisher{}
	}
	return NewService(Dependencies{
		Store:     f.store,
		Matcher:   matcher.New(f.store, log),
		Schemas:   schemas,
		Replay:    f.replay,
		Publisher: f.pub,
		Logger:    log,
		Now:       func() time.Time { return time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC) },
		NewID:     sequentialIDs(),
	}, Config{MaxRecordsPerBatch: 10})
}

func intPtr(i int) *int { return &i }

func baseRequest() Request {
	return Request{
		TargetDistrict:    5,
		CaseOpeningNumber: "CO-2024-001",
		SubmittedBy:       "surveyor-7",
		Records: []RecordInput{
			{Type: "applicant", Payload: map[string]interface{}{"identityNumber": "123 456 789 012", "lastName": "RAKOTO"}},
			{Type: "PARCEL", Payload: map[string]interface{}{"lotIdentifier": "L-12", "area": 1250.5}},
		},
	}
}

func TestIngest_StagesValidRecords(t *testing.T) {
	f := &fixture{}
	summary, err := newService(t, f).Ingest(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.TotalRecords)
	assert.Equal(t, 2, summary.AcceptedRecords)
	assert.Zero(t, summary.RejectedRecords)
	assert.False(t, summary.Replayed)
	require.Len(t, summary.Records, 2)

	for _, rs := range summary.Records {
		require.True(t, rs.Accepted)
		rec := f.store.Record(rs.StagingID)
		require.NotNil(t, rec)
		assert.Equal(t, summary.BatchID, rec.BatchID)
		assert.Equal(t, "CO-2024-001", rec.CaseOpeningNumber)
		assert.IsType(t, models.Pending{}, rec.Status)
		require.NotNil(t, rs.Match)
		assert.Equal(t, models.MatchNew, rs.Match.Outcome)
	}
	assert.Equal(t, "APPLICANT", summary.Records[0].Type)
	assert.Equal(t, 1, f.store.Batches())

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, notify.EventBatchIngested, f.pub.events[0].Type)
	assert.Equal(t, summary.BatchID, f.pub.events[0].BatchID)
}

func TestIngest_MatchHintAgainstRegistry(t *testing.T) {
	f := &fixture{store: testsupport.NewStore()}
	id := f.store.SeedEntity(models.EntityApplicant, 3, map[string]interface{}{"identity_number": "123456789012"})

	summary, err := newService(t, f).Ingest(context.Background(), baseRequest())
	require.NoError(t, err)

	match := summary.Records[0].Match
	require.NotNil(t, match)
	assert.Equal(t, models.MatchMatched, match.Outcome)
	require.NotNil(t, match.MatchedID)
	assert.Equal(t, id, *match.MatchedID)
	assert.False(t, match.SameDistrict)
}

func TestIngest_InvalidRecordsDoNotFailTheBatch(t *testing.T) {
	f := &fixture{}
	req := baseRequest()
	req.Records = append(req.Records,
		RecordInput{Type: "APPLICANT", Payload: map[string]interface{}{"lastName": "RABE", "nickname": "R"}},
		RecordInput{Type: "DOSSIER", Payload: map[string]interface{}{}},
	)

	summary, err := newService(t, f).Ingest(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.TotalRecords)
	assert.Equal(t, 2, summary.AcceptedRecords)
	assert.Equal(t, 2, summary.RejectedRecords)

	bad := summary.Records[2]
	assert.False(t, bad.Accepted)
	assert.Empty(t, bad.StagingID)
	fields := map[string]string{}
	for _, v := range bad.Errors {
		fields[v.Field] = v.Code
	}
	assert.Equal(t, "REQUIRED", fields["identityNumber"])
	assert.Equal(t, "ADDITIONAL_PROPERTY_NOT_ALLOWED", fields["nickname"])

	unknown := summary.Records[3]
	require.Len(t, unknown.Errors, 1)
	assert.Equal(t, "type", unknown.Errors[0].Field)
}

func TestIngest_FileOwnership(t *testing.T) {
	f := &fixture{}
	req := baseRequest()
	req.Records = append(req.Records, RecordInput{Type: "APPLICANT", Payload: map[string]interface{}{"lastName": "RABE"}})
	req.Files = []FileInput{
		{Category: "ID_CARD", FileName: "cin.pdf", StorageKey: "k/cin.pdf", IdentityNumber: "123456789012"},
		{Category: "PLAN", FileName: "plan.pdf", StorageKey: "k/plan.pdf", LotIdentifier: "L-12"},
		{Category: "PHOTO", FileName: "p.jpg", StorageKey: "k/p.jpg", RecordIndex: intPtr(1)},
		{Category: "ID_CARD", FileName: "other.pdf", StorageKey: "k/other.pdf", IdentityNumber: "999999999999"},
		{Category: "PHOTO", FileName: "bad.jpg", StorageKey: "k/bad.jpg", RecordIndex: intPtr(2)},
		{Category: "PHOTO", FileName: "", StorageKey: "k/empty"},
	}

	summary, err := newService(t, f).Ingest(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, summary.Files, 6)

	applicantID := summary.Records[0].StagingID
	parcelID := summary.Records[1].StagingID

	assert.True(t, summary.Files[0].Accepted)
	assert.Equal(t, models.EntityApplicant, summary.Files[0].OwnerType)
	assert.Equal(t, applicantID, summary.Files[0].OwnerID)

	assert.True(t, summary.Files[1].Accepted)
	assert.Equal(t, parcelID, summary.Files[1].OwnerID)

	assert.True(t, summary.Files[2].Accepted)
	assert.Equal(t, models.EntityParcel, summary.Files[2].OwnerType)

	for _, i := range []int{3, 4, 5} {
		assert.False(t, summary.Files[i].Accepted, "file %d", i)
		assert.NotEmpty(t, summary.Files[i].Reason, "file %d", i)
	}

	stored := f.store.Files()
	require.Len(t, stored, 3)
	for _, file := range stored {
		require.NotNil(t, file.Owner)
		assert.Equal(t, models.OriginStaging, file.Owner.Ref().Origin)
	}
}

func TestIngest_RequestValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"missing district", func(r *Request) { r.TargetDistrict = 0 }},
		{"missing case", func(r *Request) { r.CaseOpeningNumber = "  " }},
		{"missing submitter", func(r *Request) { r.SubmittedBy = "" }},
		{"no records", func(r *Request) { r.Records = nil }},
		{"too many records", func(r *Request) {
			for len(r.Records) <= 10 {
				r.Records = append(r.Records, r.Records[0])
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fixture{}
			req := baseRequest()
			tt.mutate(&req)

			_, err := newService(t, f).Ingest(context.Background(), req)
			assert.True(t, errors.Is(err, apperrors.ErrValidation), "got %v", err)
			assert.Zero(t, f.store.Batches())
		})
	}
}

func TestIngest_ReplayReturnsOriginalSummary(t *testing.T) {
	f := &fixture{replay: &memoryReplay{entries: map[string]*Summary{}}}
	svc := newService(t, f)
	req := baseRequest()
	req.SubmissionKey = "tablet-3/0042"

	first, err := svc.Ingest(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Ingest(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.BatchID, second.BatchID)
	assert.Equal(t, 1, f.store.Batches())
	assert.Len(t, f.pub.events, 1)
}

func TestIngest_DuplicateSubmissionKeyWithoutCache(t *testing.T) {
	f := &fixture{}
	svc := newService(t, f)
	req := baseRequest()
	req.SubmissionKey = "tablet-3/0042"

	_, err := svc.Ingest(context.Background(), req)
	require.NoError(t, err)
	_, err = svc.Ingest(context.Background(), req)
	assert.True(t, errors.Is(err, apperrors.ErrDuplicateEntity), "got %v", err)
	assert.Equal(t, 1, f.store.Batches())
}

func TestIngest_ReplayCacheOutageIsTolerated(t *testing.T) {
	f := &fixture{replay: brokenReplay{}}
	req := baseRequest()
	req.SubmissionKey = "tablet-3/0042"

	summary, err := newService(t, f).Ingest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.AcceptedRecords)
	assert.False(t, summary.Replayed)
}

func TestIngest_ResubmissionAfterRejectionStagesNewBatch(t *testing.T) {
	f := &fixture{replay: &memoryReplay{entries: map[string]*Summary{}}}
	svc := newService(t, f)
	log := logger.NewTestLogger(t)
	executor := promotion.NewExecutor(promotion.Dependencies{
		Store:   f.store,
		Matcher: matcher.New(f.store, log),
		Logger:  log,
	}, promotion.Config{IdentityNumberDigits: 12})
	moderator := models.Actor{Identity: "moderator-1", Districts: []int{5}}

	first, err := svc.Ingest(context.Background(), baseRequest())
	require.NoError(t, err)
	rejectedID := first.Records[0].StagingID
	require.NoError(t, executor.Reject(context.Background(), models.EntityApplicant, rejectedID, moderator, "typo in name"))

	second, err := svc.Ingest(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.False(t, second.Replayed)
	assert.NotEqual(t, first.BatchID, second.BatchID)
	assert.Equal(t, 2, f.store.Batches())
	assert.IsType(t, models.Rejected{}, f.store.Record(rejectedID).Status)

	resubmitted := f.store.Record(second.Records[0].StagingID)
	require.NotNil(t, resubmitted)
	assert.NotEqual(t, rejectedID, resubmitted.ID)
	assert.IsType(t, models.Pending{}, resubmitted.Status)
}

func TestIngest_ShortApplicantKeysPromoteToProduction(t *testing.T) {
	f := &fixture{}
	req := baseRequest()
	req.Records = []RecordInput{
		{Type: "APPLICANT", Payload: map[string]interface{}{"identity": "123456789012", "name": "RAKOTO"}},
	}

	summary, err := newService(t, f).Ingest(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, summary.AcceptedRecords, "errors: %v", summary.Records[0].Errors)
	require.NotNil(t, summary.Records[0].Match)
	assert.Equal(t, models.MatchNew, summary.Records[0].Match.Outcome)

	stagingID := summary.Records[0].StagingID
	assert.Equal(t, "123456789012", f.store.Record(stagingID).IdentityNumber())

	log := logger.NewTestLogger(t)
	executor := promotion.NewExecutor(promotion.Dependencies{
		Store:   f.store,
		Matcher: matcher.New(f.store, log),
		Logger:  log,
	}, promotion.Config{IdentityNumberDigits: 12})

	ref, err := executor.Promote(context.Background(), models.EntityApplicant, stagingID, models.Create(),
		models.Actor{Identity: "moderator-1", Districts: []int{5}})
	require.NoError(t, err)
	assert.True(t, ref.Created)
	assert.IsType(t, models.Archived{}, f.store.Record(stagingID).Status)

	entity := f.store.Entity(models.EntityApplicant, ref.ID)
	require.NotNil(t, entity)
	assert.Equal(t, "123456789012", entity.Columns["identity_number"])
	assert.Equal(t, "RAKOTO", entity.Columns["last_name"])
}

func TestIngest_StorageFailureIsReturned(t *testing.T) {
	f := &fixture{store: testsupport.NewStore()}
	f.store.FailNext = apperrors.NewTransientError("create batch", errors.New("connection reset"))

	_, err := newService(t, f).Ingest(context.Background(), baseRequest())
	assert.True(t, errors.Is(err, apperrors.ErrTransient), "got %v", err)
	assert.Empty(t, f.pub.events)
}

func TestReplayKey(t *testing.T) {
	req := baseRequest()
	assert.Empty(t, ReplayKey(&req))

	req.SubmissionKey = "k-1"
	assert.Equal(t, "staging:ingest:5:key:k-1", ReplayKey(&req))
}

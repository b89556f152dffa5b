package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"landreg-workers/internal/common/aws"
	apperrors "landreg-workers/internal/common/errors"
	"landreg-workers/internal/common/logger"
	"landreg-workers/internal/models"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: awssdk.String("msg-1")}, nil
}

func TestSNSPublisher_Publish(t *testing.T) {
	api := &fakeSNS{}
	p := NewSNSPublisher(aws.NewSNSClientWithAPI(api, "arn:aws:sns:eu-west-1:123:staging"), logger.NewTestLogger(t))

	err := p.Publish(context.Background(), Event{
		Type:         EventRecordPromoted,
		EntityType:   models.EntityApplicant,
		StagingID:    "s-1",
		District:     5,
		ProductionID: 42,
		OccurredAt:   time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, api.inputs, 1)

	in := api.inputs[0]
	assert.Equal(t, "arn:aws:sns:eu-west-1:123:staging", awssdk.ToString(in.TopicArn))
	assert.Equal(t, "record.promoted", awssdk.ToString(in.MessageAttributes["eventType"].StringValue))
	assert.Equal(t, "5", awssdk.ToString(in.MessageAttributes["district"].StringValue))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(awssdk.ToString(in.Message)), &body))
	assert.Equal(t, "APPLICANT", body["entityType"])
	assert.Equal(t, float64(42), body["productionId"])
}

func TestSNSPublisher_FailureIsNotificationError(t *testing.T) {
	api := &fakeSNS{err: errors.New("throttled")}
	p := NewSNSPublisher(aws.NewSNSClientWithAPI(api, "arn"), logger.NewTestLogger(t))

	err := p.Publish(context.Background(), Event{Type: EventBatchIngested})
	assert.True(t, errors.Is(err, apperrors.ErrNotificationFailed))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestDeliver_SwallowsFailures(t *testing.T) {
	api := &fakeSNS{err: errors.New("throttled")}
	p := NewSNSPublisher(aws.NewSNSClientWithAPI(api, "arn"), logger.NewTestLogger(t))

	assert.NotPanics(t, func() {
		Deliver(context.Background(), p, logger.NewTestLogger(t), Event{Type: EventRecordRejected})
		Deliver(context.Background(), nil, logger.NewTestLogger(t), Event{Type: EventRecordRejected})
	})
	assert.Len(t, api.inputs, 1)
}

package route53

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsroute53 "github.com/aws/aws-sdk-go-v2/service/route53"
	r53types "github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/cloudjob/internal/job"
)

var fastPoll = job.PollConfig{
	MaxDuration: 200 * time.Millisecond,
	Period:      time.Millisecond,
	MaxPeriod:   5 * time.Millisecond,
	Multiplier:  1.5,
}

type mockAPI struct {
	GetChangeFunc func(ctx context.Context, in *awsroute53.GetChangeInput) (*awsroute53.GetChangeOutput, error)
	ChangeFunc    func(ctx context.Context, in *awsroute53.ChangeResourceRecordSetsInput) (*awsroute53.ChangeResourceRecordSetsOutput, error)
	getCalls      int
}

func (m *mockAPI) GetChange(ctx context.Context, in *awsroute53.GetChangeInput, _ ...func(*awsroute53.Options)) (*awsroute53.GetChangeOutput, error) {
	m.getCalls++
	return m.GetChangeFunc(ctx, in)
}

func (m *mockAPI) ChangeResourceRecordSets(ctx context.Context, in *awsroute53.ChangeResourceRecordSetsInput, _ ...func(*awsroute53.Options)) (*awsroute53.ChangeResourceRecordSetsOutput, error) {
	return m.ChangeFunc(ctx, in)
}

func changeOutput(id string, status r53types.ChangeStatus) *awsroute53.GetChangeOutput {
	submitted := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return &awsroute53.GetChangeOutput{ChangeInfo: &r53types.ChangeInfo{
		Id:          aws.String(id),
		Status:      status,
		SubmittedAt: &submitted,
		Comment:     aws.String("upsert A web.example.com"),
	}}
}

func TestClient_Fetch(t *testing.T) {
	tests := []struct {
		name   string
		status r53types.ChangeStatus
		want   job.Status
	}{
		{"pending", r53types.ChangeStatusPending, job.StatusInProgress},
		{"in sync", r53types.ChangeStatusInsync, job.StatusSucceeded},
		{"unknown", r53types.ChangeStatus("REPLICATING"), job.StatusUnrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockAPI{GetChangeFunc: func(_ context.Context, in *awsroute53.GetChangeInput) (*awsroute53.GetChangeOutput, error) {
				return changeOutput(aws.ToString(in.Id), tt.status), nil
			}}

			rec, err := NewClient(api).Fetch(context.Background(), "/change/C1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Status)
			assert.Equal(t, "/change/C1", rec.ID)
			assert.Equal(t, "upsert A web.example.com", rec.Command)
			assert.Equal(t, 2024, rec.Created.Year())
		})
	}
}

func TestClient_FetchNoSuchChange(t *testing.T) {
	api := &mockAPI{GetChangeFunc: func(context.Context, *awsroute53.GetChangeInput) (*awsroute53.GetChangeOutput, error) {
		return nil, &r53types.NoSuchChange{Message: aws.String("A change with the specified change ID does not exist.")}
	}}

	_, err := NewClient(api).Fetch(context.Background(), "/change/missing")
	assert.ErrorIs(t, err, job.ErrNotFound)
}

func TestClient_UpsertAndWait(t *testing.T) {
	var submitted *awsroute53.ChangeResourceRecordSetsInput
	api := &mockAPI{
		ChangeFunc: func(_ context.Context, in *awsroute53.ChangeResourceRecordSetsInput) (*awsroute53.ChangeResourceRecordSetsOutput, error) {
			submitted = in
			return &awsroute53.ChangeResourceRecordSetsOutput{ChangeInfo: &r53types.ChangeInfo{
				Id:     aws.String("/change/C2"),
				Status: r53types.ChangeStatusPending,
			}}, nil
		},
	}
	api.GetChangeFunc = func(_ context.Context, in *awsroute53.GetChangeInput) (*awsroute53.GetChangeOutput, error) {
		if api.getCalls < 3 {
			return changeOutput(aws.ToString(in.Id), r53types.ChangeStatusPending), nil
		}
		return changeOutput(aws.ToString(in.Id), r53types.ChangeStatusInsync), nil
	}

	h, err := NewClient(api, job.WithPollConfig(fastPoll)).UpsertAndWait(context.Background(), RecordRequest{
		ZoneID: "Z123",
		Name:   "web.example.com",
		Values: []string{"203.0.113.5"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/change/C2", h.JobID)
	assert.Equal(t, "web.example.com", h.ResourceID)

	require.NotNil(t, submitted)
	assert.Equal(t, "Z123", aws.ToString(submitted.HostedZoneId))
	change := submitted.ChangeBatch.Changes[0]
	assert.Equal(t, r53types.ChangeActionUpsert, change.Action)
	assert.Equal(t, r53types.RRTypeA, change.ResourceRecordSet.Type)
	assert.Equal(t, int64(defaultTTL), aws.ToInt64(change.ResourceRecordSet.TTL))
	assert.Equal(t, "203.0.113.5", aws.ToString(change.ResourceRecordSet.ResourceRecords[0].Value))
}

func TestClient_UpsertAndWaitTimesOut(t *testing.T) {
	api := &mockAPI{
		ChangeFunc: func(context.Context, *awsroute53.ChangeResourceRecordSetsInput) (*awsroute53.ChangeResourceRecordSetsOutput, error) {
			return &awsroute53.ChangeResourceRecordSetsOutput{ChangeInfo: &r53types.ChangeInfo{Id: aws.String("/change/C3")}}, nil
		},
		GetChangeFunc: func(_ context.Context, in *awsroute53.GetChangeInput) (*awsroute53.GetChangeOutput, error) {
			return changeOutput(aws.ToString(in.Id), r53types.ChangeStatusPending), nil
		},
	}

	_, err := NewClient(api, job.WithPollConfig(fastPoll)).UpsertAndWait(context.Background(), RecordRequest{
		ZoneID: "Z123",
		Name:   "web.example.com",
		Values: []string{"203.0.113.5"},
	})
	var timeout *job.TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "/change/C3", timeout.JobID)
	assert.Equal(t, job.StatusInProgress, timeout.LastStatus)
}

func TestClient_UpsertValidation(t *testing.T) {
	api := &mockAPI{ChangeFunc: func(context.Context, *awsroute53.ChangeResourceRecordSetsInput) (*awsroute53.ChangeResourceRecordSetsOutput, error) {
		return nil, errors.New("unexpected call")
	}}

	_, err := NewClient(api).Upsert(context.Background(), RecordRequest{ZoneID: "Z123", Name: "web.example.com"})
	assert.EqualError(t, err, "at least one record value is required")
}

// Package route53 tracks Route53 record changes until they are in sync
package route53

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsroute53 "github.com/aws/aws-sdk-go-v2/service/route53"
	r53types "github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/aws/smithy-go"

	"github.com/celestiaorg/cloudjob/internal/config"
	"github.com/celestiaorg/cloudjob/internal/job"
	"github.com/celestiaorg/cloudjob/internal/logger"
)

const defaultTTL = 300

// API is the subset of the Route53 client used here
type API interface {
	GetChange(ctx context.Context, params *awsroute53.GetChangeInput, optFns ...func(*awsroute53.Options)) (*awsroute53.GetChangeOutput, error)
	ChangeResourceRecordSets(ctx context.Context, params *awsroute53.ChangeResourceRecordSetsInput, optFns ...func(*awsroute53.Options)) (*awsroute53.ChangeResourceRecordSetsOutput, error)
}

// Client submits record changes and waits for them. Job ids are change ids.
type Client struct {
	api       API
	completer *job.Completer
}

// NewClient creates a Client over api
func NewClient(api API, opts ...job.CompleterOption) *Client {
	c := &Client{api: api}
	c.completer = job.NewCompleter(c, opts...)
	return c
}

// NewFromConfig creates a Client using the default AWS credential chain
func NewFromConfig(ctx context.Context, cfg *config.AWSConfig, opts ...job.CompleterOption) (*Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return NewClient(awsroute53.NewFromConfig(awsCfg), opts...), nil
}

// Completer returns the completer used by UpsertAndWait
func (c *Client) Completer() *job.Completer {
	return c.completer
}

// Fetch implements job.StatusQuery using GetChange
func (c *Client) Fetch(ctx context.Context, jobID string) (*job.Record, error) {
	out, err := c.api.GetChange(ctx, &awsroute53.GetChangeInput{Id: aws.String(jobID)})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchChange" {
			return nil, fmt.Errorf("change %s: %w: %w", jobID, job.ErrNotFound, err)
		}
		return nil, fmt.Errorf("failed to get change %s: %w", jobID, err)
	}
	if out.ChangeInfo == nil {
		return nil, fmt.Errorf("change %s: empty response", jobID)
	}

	info := out.ChangeInfo
	rec := &job.Record{ID: jobID, Command: aws.ToString(info.Comment)}
	if info.SubmittedAt != nil {
		rec.Created = *info.SubmittedAt
	}
	switch info.Status {
	case r53types.ChangeStatusPending:
		rec.Status = job.StatusInProgress
	case r53types.ChangeStatusInsync:
		rec.Status = job.StatusSucceeded
		rec.Progress = 100
	default:
		rec.Status = job.StatusUnrecognized
	}
	return rec, nil
}

// RecordRequest describes one record set to upsert
type RecordRequest struct {
	ZoneID string
	Name   string
	// Type defaults to A
	Type string
	// TTL defaults to 300 seconds
	TTL    int64
	Values []string
}

// Validate validates the record request
func (r *RecordRequest) Validate() error {
	if r.ZoneID == "" {
		return fmt.Errorf("hosted zone id is required")
	}
	if r.Name == "" {
		return fmt.Errorf("record name is required")
	}
	if len(r.Values) == 0 {
		return fmt.Errorf("at least one record value is required")
	}
	return nil
}

// Upsert submits an UPSERT for the record set and returns the change handle
func (c *Client) Upsert(ctx context.Context, req RecordRequest) (job.Handle, error) {
	if err := req.Validate(); err != nil {
		return job.Handle{}, err
	}
	rrType := strings.ToUpper(req.Type)
	if rrType == "" {
		rrType = string(r53types.RRTypeA)
	}
	ttl := req.TTL
	if ttl == 0 {
		ttl = defaultTTL
	}

	records := make([]r53types.ResourceRecord, 0, len(req.Values))
	for _, v := range req.Values {
		records = append(records, r53types.ResourceRecord{Value: aws.String(v)})
	}

	out, err := c.api.ChangeResourceRecordSets(ctx, &awsroute53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(req.ZoneID),
		ChangeBatch: &r53types.ChangeBatch{
			Comment: aws.String(fmt.Sprintf("upsert %s %s", rrType, req.Name)),
			Changes: []r53types.Change{{
				Action: r53types.ChangeActionUpsert,
				ResourceRecordSet: &r53types.ResourceRecordSet{
					Name:            aws.String(req.Name),
					Type:            r53types.RRType(rrType),
					TTL:             aws.Int64(ttl),
					ResourceRecords: records,
				},
			}},
		},
	})
	if err != nil {
		return job.Handle{}, fmt.Errorf("failed to upsert %s: %w", req.Name, err)
	}
	if out.ChangeInfo == nil {
		return job.Handle{}, fmt.Errorf("upsert of %s returned no change", req.Name)
	}
	return job.Handle{ResourceID: req.Name, JobID: aws.ToString(out.ChangeInfo.Id)}, nil
}

// UpsertAndWait upserts the record set and waits until the change is in sync
func (c *Client) UpsertAndWait(ctx context.Context, req RecordRequest) (job.Handle, error) {
	h, err := c.Upsert(ctx, req)
	if err != nil {
		return job.Handle{}, err
	}
	logger.Infof("Waiting for change %s on %s", h.JobID, req.Name)
	if err := c.completer.Wait(ctx, h); err != nil {
		return h, err
	}
	return h, nil
}

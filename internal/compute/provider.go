// Package compute selects the job status source of each supported provider
package compute

import (
	"context"
	"fmt"

	"github.com/celestiaorg/cloudjob/internal/compute/cloudstack"
	"github.com/celestiaorg/cloudjob/internal/compute/digitalocean"
	"github.com/celestiaorg/cloudjob/internal/compute/route53"
	"github.com/celestiaorg/cloudjob/internal/config"
	"github.com/celestiaorg/cloudjob/internal/db/models"
	"github.com/celestiaorg/cloudjob/internal/job"
	"github.com/celestiaorg/cloudjob/test/mocks"
)

// NewStatusQuery creates the job status source for provider
func NewStatusQuery(ctx context.Context, provider models.ProviderID, cfg *config.Config) (job.StatusQuery, error) {
	switch provider {
	case models.ProviderCloudStack:
		client, err := cloudstack.NewClient(&cfg.CloudStack)
		if err != nil {
			return nil, err
		}
		return client, nil
	case models.ProviderDO:
		services, err := digitalocean.NewServices(&cfg.DigitalOcean)
		if err != nil {
			return nil, err
		}
		return digitalocean.NewActions(services.Actions), nil
	case models.ProviderRoute53:
		client, err := route53.NewFromConfig(ctx, &cfg.AWS)
		if err != nil {
			return nil, err
		}
		return client, nil
	case models.ProviderDOMock:
		return digitalocean.NewActions(mocks.NewMockDOServices().MockActionService), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// NewCompleter creates a completer polling provider with the configured
// backoff. opts are applied after the poll configuration.
func NewCompleter(ctx context.Context, provider models.ProviderID, cfg *config.Config, opts ...job.CompleterOption) (*job.Completer, error) {
	query, err := NewStatusQuery(ctx, provider, cfg)
	if err != nil {
		return nil, err
	}
	all := append([]job.CompleterOption{job.WithPollConfig(cfg.Poll)}, opts...)
	return job.NewCompleter(query, all...), nil
}

// IsValidProvider checks whether the given provider ID is supported.
func IsValidProvider(provider models.ProviderID) bool {
	if _, ok := validProviders[provider]; !ok {
		return false
	}
	return true
}

var validProviders = map[models.ProviderID]struct{}{
	models.ProviderCloudStack: {},
	models.ProviderDO:         {},
	models.ProviderRoute53:    {},
	models.ProviderDOMock:     {},
}

package test

import (
	"context"

	"github.com/celestiaorg/cloudjob/internal/compute/digitalocean"
	"github.com/celestiaorg/cloudjob/internal/db/models"
	"github.com/celestiaorg/cloudjob/internal/db/repos"
	"github.com/celestiaorg/cloudjob/internal/job"
	"github.com/celestiaorg/cloudjob/pkg/api/v1/handlers"
	"github.com/celestiaorg/cloudjob/test/mocks"
)

// SetupMockDOClient sets up the mock DigitalOcean services
func SetupMockDOClient(suite *Suite) {
	suite.MockDO = mocks.NewMockDOServices()
}

// completers serves do-mock jobs from the suite's mock services so tests can
// script action outcomes. Other providers are built from the suite config.
func (s *Suite) completers() handlers.CompleterFactory {
	fallback := handlers.ProviderCompleters(s.Config, s.JobRepo)
	return func(ctx context.Context, provider models.ProviderID) (*job.Completer, error) {
		if provider != models.ProviderDOMock {
			return fallback(ctx, provider)
		}
		return job.NewCompleter(digitalocean.NewActions(s.MockDO.MockActionService),
			job.WithPollConfig(s.Config.Poll),
			job.WithRecorder(repos.NewJobRecorder(s.JobRepo, provider)),
		), nil
	}
}

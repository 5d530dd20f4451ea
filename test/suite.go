package test

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/celestiaorg/cloudjob/internal/config"
	"github.com/celestiaorg/cloudjob/internal/db/repos"
	"github.com/celestiaorg/cloudjob/internal/job"
	"github.com/celestiaorg/cloudjob/pkg/api/v1/client"
	"github.com/celestiaorg/cloudjob/test/mocks"
)

// DefaultTestTimeout is the default timeout for test suites.
const DefaultTestTimeout = 30 * time.Second

// Suite encapsulates all components needed for integration testing.
// It provides a complete test setup with:
//   - File based SQLite ledger
//   - Real API server
//   - Real API client
//   - Mocked DigitalOcean services
type Suite struct {
	t *testing.T

	// Server components
	App    *fiber.App
	Server *httptest.Server

	// Client components
	APIClient client.Client

	// Database components
	DB      *gorm.DB
	JobRepo *repos.JobRepository

	// Mock providers
	MockDO *mocks.MockDOServices

	// Config holds the poll budget used by the server's completers
	Config *config.Config

	ctx        context.Context
	cancelFunc context.CancelFunc

	cleanup     func()
	cleanupOnce sync.Once
}

var _ suite.TestingSuite = (*Suite)(nil)

// SetS sets the suite instance for this suite
func (s *Suite) SetS(_ suite.TestingSuite) {
	// Required by suite.TestingSuite
}

// SetT sets the testing.T instance for this suite
func (s *Suite) SetT(t *testing.T) {
	s.t = t
}

// T returns the testing.T instance for this suite
func (s *Suite) T() *testing.T {
	return s.t
}

// testPollConfig keeps awaited jobs well inside the client timeout
func testPollConfig() job.PollConfig {
	return job.PollConfig{
		MaxDuration: 500 * time.Millisecond,
		Period:      time.Millisecond,
		MaxPeriod:   20 * time.Millisecond,
		Multiplier:  2,
	}
}

// NewSuite creates a new test suite.
// The suite must be cleaned up after use by calling Cleanup.
func NewSuite(t *testing.T) *Suite {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTestTimeout)

	s := &Suite{
		t:          t,
		ctx:        ctx,
		cancelFunc: cancel,
		Config:     &config.Config{Poll: testPollConfig()},
	}

	s.cleanup = func() {
		if s.cancelFunc != nil {
			s.cancelFunc()
		}
	}

	SetupTestDB(s, nil)
	SetupMockDOClient(s)
	SetupServer(s)

	return s
}

// Cleanup tears down the test suite, releasing all resources.
// This should be deferred immediately after creating the suite.
func (s *Suite) Cleanup() {
	s.cleanupOnce.Do(func() {
		if s.cleanup != nil {
			s.cleanup()
		}
	})
}

// Context returns the suite's context, which is automatically
// canceled when the suite is cleaned up.
func (s *Suite) Context() context.Context {
	return s.ctx
}

// Require returns a require.Assertions instance for this suite.
func (s *Suite) Require() *require.Assertions {
	return require.New(s.t)
}

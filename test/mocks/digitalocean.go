package mocks

import (
	"context"
	"sync"

	"github.com/digitalocean/godo"

	"github.com/celestiaorg/cloudjob/internal/compute/digitalocean"
)

// This file contains the mock implementations of the DigitalOcean services.
// Every method delegates to its Func field when set and otherwise answers from
// StandardResponses.

// MockDOServices groups the mock services
type MockDOServices struct {
	MockActionService           *MockActionService
	MockReservedIPService       *MockReservedIPService
	MockReservedIPActionService *MockReservedIPActionService
	MockKeyService              *MockKeyService
	MockRegionService           *MockRegionService
	StandardResponses           *StandardResponses
}

// NewMockDOServices creates mock services answering from standard responses
func NewMockDOServices() *MockDOServices {
	std := newStandardResponses()
	return &MockDOServices{
		MockActionService:           &MockActionService{std: std},
		MockReservedIPService:       &MockReservedIPService{std: std},
		MockReservedIPActionService: &MockReservedIPActionService{std: std},
		MockKeyService:              &MockKeyService{std: std},
		MockRegionService:           &MockRegionService{std: std},
		StandardResponses:           std,
	}
}

// Services returns the mocks as digitalocean.Services
func (m *MockDOServices) Services() *digitalocean.Services {
	return &digitalocean.Services{
		Actions:           m.MockActionService,
		ReservedIPs:       m.MockReservedIPService,
		ReservedIPActions: m.MockReservedIPActionService,
		Keys:              m.MockKeyService,
		Regions:           m.MockRegionService,
	}
}

// callCounter counts calls per method
type callCounter struct {
	mu    sync.Mutex
	calls map[string]int
}

func (c *callCounter) record(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = make(map[string]int)
	}
	c.calls[method]++
}

// Calls returns how many times method was called
func (c *callCounter) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// MockActionService implements digitalocean.ActionService
type MockActionService struct {
	callCounter
	std     *StandardResponses
	GetFunc func(ctx context.Context, id int) (*godo.Action, *godo.Response, error)
}

// Get returns an action
func (s *MockActionService) Get(ctx context.Context, id int) (*godo.Action, *godo.Response, error) {
	s.record("Get")
	if s.GetFunc != nil {
		return s.GetFunc(ctx, id)
	}
	action := *s.std.Action
	action.ID = id
	return &action, nil, nil
}

// MockReservedIPService implements digitalocean.ReservedIPService
type MockReservedIPService struct {
	callCounter
	std        *StandardResponses
	ListFunc   func(ctx context.Context, opt *godo.ListOptions) ([]godo.ReservedIP, *godo.Response, error)
	CreateFunc func(ctx context.Context, req *godo.ReservedIPCreateRequest) (*godo.ReservedIP, *godo.Response, error)
}

// List lists reserved IPs
func (s *MockReservedIPService) List(ctx context.Context, opt *godo.ListOptions) ([]godo.ReservedIP, *godo.Response, error) {
	s.record("List")
	if s.ListFunc != nil {
		return s.ListFunc(ctx, opt)
	}
	return s.std.ReservedIPs, nil, nil
}

// Create reserves a new IP in the requested region
func (s *MockReservedIPService) Create(ctx context.Context, req *godo.ReservedIPCreateRequest) (*godo.ReservedIP, *godo.Response, error) {
	s.record("Create")
	if s.CreateFunc != nil {
		return s.CreateFunc(ctx, req)
	}
	return &godo.ReservedIP{IP: DefaultNewIP, Region: &godo.Region{Slug: req.Region, Available: true}}, nil, nil
}

// MockReservedIPActionService implements digitalocean.ReservedIPActionService
type MockReservedIPActionService struct {
	callCounter
	std        *StandardResponses
	AssignFunc func(ctx context.Context, ip string, dropletID int) (*godo.Action, *godo.Response, error)
}

// Assign starts an assign action
func (s *MockReservedIPActionService) Assign(ctx context.Context, ip string, dropletID int) (*godo.Action, *godo.Response, error) {
	s.record("Assign")
	if s.AssignFunc != nil {
		return s.AssignFunc(ctx, ip, dropletID)
	}
	action := *s.std.Action
	action.Status = godo.ActionInProgress
	action.ResourceID = dropletID
	return &action, nil, nil
}

// MockKeyService implements digitalocean.KeyService
type MockKeyService struct {
	callCounter
	std        *StandardResponses
	ListFunc   func(ctx context.Context, opt *godo.ListOptions) ([]godo.Key, *godo.Response, error)
	CreateFunc func(ctx context.Context, req *godo.KeyCreateRequest) (*godo.Key, *godo.Response, error)
}

// List lists SSH keys
func (s *MockKeyService) List(ctx context.Context, opt *godo.ListOptions) ([]godo.Key, *godo.Response, error) {
	s.record("List")
	if s.ListFunc != nil {
		return s.ListFunc(ctx, opt)
	}
	return s.std.Keys, nil, nil
}

// Create uploads an SSH key
func (s *MockKeyService) Create(ctx context.Context, req *godo.KeyCreateRequest) (*godo.Key, *godo.Response, error) {
	s.record("Create")
	if s.CreateFunc != nil {
		return s.CreateFunc(ctx, req)
	}
	return &godo.Key{ID: DefaultKeyID2, Name: req.Name, PublicKey: req.PublicKey, Fingerprint: DefaultKeyFingerprint2}, nil, nil
}

// MockRegionService implements digitalocean.RegionService
type MockRegionService struct {
	callCounter
	std      *StandardResponses
	ListFunc func(ctx context.Context, opt *godo.ListOptions) ([]godo.Region, *godo.Response, error)
}

// List lists regions
func (s *MockRegionService) List(ctx context.Context, opt *godo.ListOptions) ([]godo.Region, *godo.Response, error) {
	s.record("List")
	if s.ListFunc != nil {
		return s.ListFunc(ctx, opt)
	}
	return s.std.Regions, nil, nil
}

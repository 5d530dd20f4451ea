// Package digitalocean runs DigitalOcean actions, reserved IPs and SSH keys
// through the job completion protocol.
package digitalocean

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/digitalocean/godo"

	"github.com/celestiaorg/cloudjob/internal/config"
	"github.com/celestiaorg/cloudjob/internal/job"
)

// ActionService is the subset of godo.ActionsService used here
type ActionService interface {
	Get(ctx context.Context, id int) (*godo.Action, *godo.Response, error)
}

// ReservedIPService is the subset of godo.ReservedIPsService used here
type ReservedIPService interface {
	List(ctx context.Context, opt *godo.ListOptions) ([]godo.ReservedIP, *godo.Response, error)
	Create(ctx context.Context, createRequest *godo.ReservedIPCreateRequest) (*godo.ReservedIP, *godo.Response, error)
}

// ReservedIPActionService is the subset of godo.ReservedIPActionsService used here
type ReservedIPActionService interface {
	Assign(ctx context.Context, ip string, dropletID int) (*godo.Action, *godo.Response, error)
}

// KeyService is the subset of godo.KeysService used here
type KeyService interface {
	List(ctx context.Context, opt *godo.ListOptions) ([]godo.Key, *godo.Response, error)
	Create(ctx context.Context, createRequest *godo.KeyCreateRequest) (*godo.Key, *godo.Response, error)
}

// RegionService is the subset of godo.RegionsService used here
type RegionService interface {
	List(ctx context.Context, opt *godo.ListOptions) ([]godo.Region, *godo.Response, error)
}

// Services groups the API services the package talks to
type Services struct {
	Actions           ActionService
	ReservedIPs       ReservedIPService
	ReservedIPActions ReservedIPActionService
	Keys              KeyService
	Regions           RegionService
}

// NewServices creates the services from a token
func NewServices(cfg *config.DigitalOceanConfig) (*Services, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	client := godo.NewFromToken(cfg.Token)
	if cfg.BaseURL != "" {
		if err := godo.SetBaseURL(cfg.BaseURL)(client); err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}
	}
	return FromGodo(client), nil
}

// FromGodo wraps an existing godo client
func FromGodo(client *godo.Client) *Services {
	return &Services{
		Actions:           client.Actions,
		ReservedIPs:       client.ReservedIPs,
		ReservedIPActions: client.ReservedIPActions,
		Keys:              client.Keys,
		Regions:           client.Regions,
	}
}

// perPage is the page size used for every list call
const perPage = 200

// listAll walks every page of a paginated list call
func listAll[T any](ctx context.Context, list func(context.Context, *godo.ListOptions) ([]T, *godo.Response, error)) ([]T, error) {
	var all []T
	opt := &godo.ListOptions{PerPage: perPage}
	for {
		items, resp, err := list(ctx, opt)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if resp == nil || resp.Links == nil || resp.Links.IsLastPage() {
			return all, nil
		}
		page, err := resp.Links.CurrentPage()
		if err != nil {
			return nil, fmt.Errorf("failed to read page: %w", err)
		}
		opt.Page = page + 1
	}
}

// errorStatus returns the HTTP status and message of a godo error
func errorStatus(err error) (int, string, bool) {
	var errResp *godo.ErrorResponse
	if !errors.As(err, &errResp) || errResp.Response == nil {
		return 0, "", false
	}
	return errResp.Response.StatusCode, errResp.Message, true
}

// isNotFound reports whether err is a 404 from the API
func isNotFound(err error) bool {
	status, _, ok := errorStatus(err)
	return ok && status == http.StatusNotFound
}

// isAlreadyInUse reports whether err is the 422 the API returns for a duplicate
func isAlreadyInUse(err error) bool {
	status, msg, ok := errorStatus(err)
	return ok && status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "already in use")
}

// classify maps godo errors onto the job sentinels
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case isNotFound(err):
		return fmt.Errorf("%w: %w", job.ErrNotFound, err)
	case isAlreadyInUse(err):
		return fmt.Errorf("%w: %w", job.ErrResourceAlreadyExists, err)
	default:
		return err
	}
}

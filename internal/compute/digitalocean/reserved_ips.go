package digitalocean

import (
	"context"
	"fmt"
	"strconv"

	"github.com/digitalocean/godo"

	"github.com/celestiaorg/cloudjob/internal/job"
	"github.com/celestiaorg/cloudjob/internal/logger"
)

// ReservedIPs reuses and allocates reserved IPs
type ReservedIPs struct {
	ips       ReservedIPService
	actions   ReservedIPActionService
	regions   RegionService
	completer *job.Completer
}

// NewReservedIPs creates a ReservedIPs. Assign actions are awaited through completer.
func NewReservedIPs(s *Services, completer *job.Completer) *ReservedIPs {
	return &ReservedIPs{
		ips:       s.ReservedIPs,
		actions:   s.ReservedIPActions,
		regions:   s.Regions,
		completer: completer,
	}
}

// Obtain returns an unassigned reserved IP in region, reserving a new one when
// none is free
func (r *ReservedIPs) Obtain(ctx context.Context, region string) (*godo.ReservedIP, error) {
	o := &job.Obtainer[*godo.ReservedIP]{
		Name: fmt.Sprintf("reserved IPs in %s", region),
		Precondition: func(ctx context.Context) error {
			return r.checkRegion(ctx, region)
		},
		List: func(ctx context.Context) ([]*godo.ReservedIP, error) {
			all, err := listAll(ctx, r.ips.List)
			if err != nil {
				return nil, classify(err)
			}
			var free []*godo.ReservedIP
			for i := range all {
				ip := &all[i]
				if ip.Droplet == nil && !ip.Locked && ip.Region != nil && ip.Region.Slug == region {
					free = append(free, ip)
				}
			}
			return free, nil
		},
		Allocate: func(ctx context.Context) (job.Submitted[*godo.ReservedIP], error) {
			ip, _, err := r.ips.Create(ctx, &godo.ReservedIPCreateRequest{Region: region})
			if err != nil {
				return job.Submitted[*godo.ReservedIP]{}, classify(err)
			}
			logger.Infof("Reserved IP %s in %s", ip.IP, region)
			return job.Finished(ip), nil
		},
		Completer: r.completer,
	}
	return o.Obtain(ctx)
}

func (r *ReservedIPs) checkRegion(ctx context.Context, slug string) error {
	regions, err := listAll(ctx, r.regions.List)
	if err != nil {
		return fmt.Errorf("failed to list regions: %w", classify(err))
	}
	for _, region := range regions {
		if region.Slug != slug {
			continue
		}
		if !region.Available {
			return job.Unmet("region %s is not available", slug)
		}
		return nil
	}
	return job.Unmet("region %s does not exist", slug)
}

// Assign attaches ip to a droplet and waits for the assign action
func (r *ReservedIPs) Assign(ctx context.Context, ip string, dropletID int) error {
	action, _, err := r.actions.Assign(ctx, ip, dropletID)
	if err != nil {
		return fmt.Errorf("failed to assign %s to droplet %d: %w", ip, dropletID, classify(err))
	}
	h := job.Handle{ResourceID: ip, JobID: strconv.Itoa(action.ID)}
	if err := r.completer.Wait(ctx, h); err != nil {
		return err
	}
	logger.Infof("Assigned reserved IP %s to droplet %d", ip, dropletID)
	return nil
}

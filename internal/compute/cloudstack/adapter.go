package cloudstack

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/celestiaorg/cloudjob/internal/job"
	"github.com/celestiaorg/cloudjob/internal/logger"
	"github.com/celestiaorg/cloudjob/internal/types"
)

const (
	protocolTCP = "tcp"
	anyCIDR     = "0.0.0.0/0"
	// ruleStateDeleting marks a forwarding rule that is already being removed
	ruleStateDeleting = "Deleting"
)

// Adapter runs the create-if-needed flows on top of a Client
type Adapter struct {
	client    *Client
	completer *job.Completer
}

// NewAdapter creates an Adapter whose jobs are polled through client
func NewAdapter(client *Client, opts ...job.CompleterOption) *Adapter {
	return &Adapter{
		client:    client,
		completer: job.NewCompleter(client, opts...),
	}
}

// Client returns the underlying API client
func (a *Adapter) Client() *Client {
	return a.client
}

// Completer returns the completer used for every job the adapter waits on
func (a *Adapter) Completer() *job.Completer {
	return a.completer
}

// SecurityGroupRequest describes the security group EnsureSecurityGroup converges on
type SecurityGroupRequest struct {
	ZoneID      string
	Name        string
	Description string
	// Ports are opened over TCP for each of CIDRs
	Ports []int
	// CIDRs defaults to 0.0.0.0/0
	CIDRs []string
}

// EnsureSecurityGroup returns the group named req.Name, creating it if needed,
// with ingress open on every requested port
func (a *Adapter) EnsureSecurityGroup(ctx context.Context, req SecurityGroupRequest) (*types.SecurityGroup, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("security group name is required")
	}
	cidrs := req.CIDRs
	if len(cidrs) == 0 {
		cidrs = []string{anyCIDR}
	}

	e := &job.Ensurer[*types.SecurityGroup]{
		Name: fmt.Sprintf("security group %q", req.Name),
		Precondition: func(ctx context.Context) error {
			zone, err := a.client.GetZone(ctx, req.ZoneID)
			if err != nil {
				return fmt.Errorf("failed to get zone %s: %w", req.ZoneID, err)
			}
			if !zone.SecurityGroupsEnabled {
				return job.Unmet("zone %s does not support security groups", zone.Name)
			}
			return nil
		},
		Find: func(ctx context.Context) (*types.SecurityGroup, bool, error) {
			return a.client.GetSecurityGroupByName(ctx, req.Name)
		},
		Create: func(ctx context.Context) (job.Submitted[*types.SecurityGroup], error) {
			group, err := a.client.CreateSecurityGroup(ctx, req.Name, req.Description)
			if err != nil {
				return job.Submitted[*types.SecurityGroup]{}, err
			}
			logger.Infof("Created security group %s (%s)", group.Name, group.ID)
			return job.Finished(group), nil
		},
		Reconcile: func(ctx context.Context, group *types.SecurityGroup) (*types.SecurityGroup, error) {
			return a.authorizeMissing(ctx, group, req.Ports, cidrs)
		},
		Completer: a.completer,
	}
	return e.Ensure(ctx)
}

// authorizeMissing opens every port not yet covered and re-reads the group
func (a *Adapter) authorizeMissing(ctx context.Context, group *types.SecurityGroup, ports []int, cidrs []string) (*types.SecurityGroup, error) {
	var jobIDs []string
	for _, port := range ports {
		var missing []string
		for _, cidr := range cidrs {
			if !group.HasIngress(protocolTCP, port, cidr) {
				missing = append(missing, cidr)
			}
		}
		if len(missing) == 0 {
			continue
		}
		h, err := a.client.AuthorizeIngress(ctx, IngressRequest{
			SecurityGroupID: group.ID,
			Protocol:        protocolTCP,
			StartPort:       port,
			EndPort:         port,
			CIDRs:           missing,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to authorize port %d on %s: %w", port, group.Name, err)
		}
		jobIDs = append(jobIDs, h.JobID)
	}
	if len(jobIDs) == 0 {
		return group, nil
	}

	if err := a.completer.AwaitAll(ctx, jobIDs...); err != nil {
		return nil, err
	}
	updated, found, err := a.client.GetSecurityGroupByName(ctx, group.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to reload security group %s: %w", group.Name, err)
	}
	if !found {
		return nil, fmt.Errorf("security group %s: %w", group.Name, job.ErrNotFound)
	}
	return updated, nil
}

// ObtainPublicIP returns an unused public address on networkID, allocating one
// when none is free
func (a *Adapter) ObtainPublicIP(ctx context.Context, networkID string) (*types.PublicIPAddress, error) {
	var network *types.Network

	o := &job.Obtainer[*types.PublicIPAddress]{
		Name: "public IP addresses",
		Precondition: func(ctx context.Context) error {
			n, err := a.client.GetNetwork(ctx, networkID)
			if err != nil {
				return fmt.Errorf("failed to get network %s: %w", networkID, err)
			}
			zone, err := a.client.GetZone(ctx, n.ZoneID)
			if err != nil {
				return fmt.Errorf("failed to get zone %s: %w", n.ZoneID, err)
			}
			if zone.NetworkType != types.NetworkTypeAdvanced {
				return job.Unmet("zone %s uses %s networking, public addresses need an advanced zone", zone.Name, zone.NetworkType)
			}
			network = n
			return nil
		},
		List: func(ctx context.Context) ([]*types.PublicIPAddress, error) {
			all, err := a.client.ListPublicIPAddresses(ctx, networkID)
			if err != nil {
				return nil, err
			}
			var free []*types.PublicIPAddress
			for i := range all {
				if all[i].Available() {
					free = append(free, &all[i])
				}
			}
			return free, nil
		},
		Allocate: func(ctx context.Context) (job.Submitted[*types.PublicIPAddress], error) {
			h, err := a.client.AssociateIPAddress(ctx, network.ZoneID, networkID)
			if err != nil {
				return job.Submitted[*types.PublicIPAddress]{}, err
			}
			logger.Infof("Allocating public IP on network %s (job %s)", networkID, h.JobID)
			return job.Pending[*types.PublicIPAddress](h), nil
		},
		Completer: a.completer,
	}
	return o.Obtain(ctx)
}

// Deploy submits a deployment and waits for the machine
func (a *Adapter) Deploy(ctx context.Context, req DeployRequest) (*types.VirtualMachine, error) {
	h, err := a.client.DeployVirtualMachine(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to deploy virtual machine: %w", err)
	}
	logger.Infof("Deploying virtual machine %s (job %s)", h.ResourceID, h.JobID)
	return job.CompleteAs[*types.VirtualMachine](ctx, a.completer, h)
}

// NodeRequest describes a machine CreateNode provisions
type NodeRequest struct {
	Deploy DeployRequest
	// Group names the security group shared by the machines of a group. It is
	// only used in zones with security groups and when Ports is set.
	Group string
	// Ports are opened inbound, through the security group or the NAT rules
	Ports []int
	// StaticNAT maps a public address onto the machine on each of its networks
	StaticNAT bool
	// CIDRs restricts firewall rules and defaults to 0.0.0.0/0
	CIDRs []string
}

// Node is a provisioned machine with the network resources created for it
type Node struct {
	VirtualMachine  *types.VirtualMachine     `json:"virtualmachine"`
	SecurityGroup   *types.SecurityGroup      `json:"securitygroup,omitempty"`
	PublicIPs       []*types.PublicIPAddress  `json:"publicips,omitempty"`
	ForwardingRules []*types.IPForwardingRule `json:"ipforwardingrules,omitempty"`
	FirewallRules   []*types.FirewallRule     `json:"firewallrules,omitempty"`
}

// CreateNode ensures the group's security group, deploys the machine and,
// when asked, statically NATs a public address to it with one rule per port.
// Forwarding rules are used on 2.x management servers, firewall rules after.
// Resources created before a failure are left in place for DestroyVirtualMachine.
func (a *Adapter) CreateNode(ctx context.Context, req NodeRequest) (*Node, error) {
	if req.StaticNAT && len(req.Deploy.NetworkIDs) == 0 {
		return nil, fmt.Errorf("static NAT requires at least one network")
	}
	node := &Node{}
	deploy := req.Deploy

	if req.Group != "" && len(req.Ports) > 0 && len(deploy.SecurityGroupIDs) == 0 {
		zone, err := a.client.GetZone(ctx, deploy.ZoneID)
		if err != nil {
			return nil, fmt.Errorf("failed to get zone %s: %w", deploy.ZoneID, err)
		}
		if zone.SecurityGroupsEnabled {
			group, err := a.EnsureSecurityGroup(ctx, SecurityGroupRequest{
				ZoneID: deploy.ZoneID,
				Name:   req.Group,
				Ports:  req.Ports,
			})
			if err != nil {
				return nil, err
			}
			node.SecurityGroup = group
			deploy.SecurityGroupIDs = []string{group.ID}
		}
	}

	vm, err := a.Deploy(ctx, deploy)
	if err != nil {
		return nil, err
	}
	node.VirtualMachine = vm
	if !req.StaticNAT {
		return node, nil
	}

	caps, err := a.client.GetCapabilities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get capabilities: %w", err)
	}
	forwarding := strings.HasPrefix(caps.CloudStackVersion, "2")

	for _, networkID := range deploy.NetworkIDs {
		ip, err := a.ObtainPublicIP(ctx, networkID)
		if err != nil {
			return nil, err
		}
		if err := a.client.EnableStaticNAT(ctx, ip.ID, vm.ID); err != nil {
			return nil, fmt.Errorf("failed to enable static NAT of %s on %s: %w", vm.ID, ip.IPAddress, err)
		}
		logger.Debugf("Static NAT %s -> %s on network %s", ip.IPAddress, vm.ID, networkID)
		node.PublicIPs = append(node.PublicIPs, ip)

		if forwarding {
			rules, err := openPorts[*types.IPForwardingRule](ctx, a, ip.ID, req.Ports, nil, a.client.CreateIPForwardingRule)
			if err != nil {
				return nil, err
			}
			node.ForwardingRules = append(node.ForwardingRules, rules...)
		} else {
			cidrs := req.CIDRs
			if len(cidrs) == 0 {
				cidrs = []string{anyCIDR}
			}
			rules, err := openPorts[*types.FirewallRule](ctx, a, ip.ID, req.Ports, cidrs, a.client.CreateFirewallRule)
			if err != nil {
				return nil, err
			}
			node.FirewallRules = append(node.FirewallRules, rules...)
		}
	}

	// The machine now reports its NATed address
	if node.VirtualMachine, err = a.client.GetVirtualMachine(ctx, vm.ID); err != nil {
		return nil, fmt.Errorf("failed to reload virtual machine %s: %w", vm.ID, err)
	}
	logger.Infof("Created node %s (%s)", vm.Name, vm.ID)
	return node, nil
}

// openPorts submits one TCP rule per port, then waits for every rule job
func openPorts[R any](ctx context.Context, a *Adapter, ipID string, ports []int, cidrs []string,
	create func(context.Context, RuleRequest) (job.Handle, error)) ([]R, error) {
	handles := make([]job.Handle, 0, len(ports))
	for _, port := range ports {
		h, err := create(ctx, RuleRequest{
			IPAddressID: ipID,
			Protocol:    protocolTCP,
			StartPort:   port,
			EndPort:     port,
			CIDRs:       cidrs,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open port %d on %s: %w", port, ipID, err)
		}
		handles = append(handles, h)
	}

	rules := make([]R, 0, len(handles))
	for _, h := range handles {
		rule, err := job.CompleteAs[R](ctx, a.completer, h)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// DestroyVirtualMachine tears down the static NAT of a machine, releases its
// addresses and destroys it. Each step waits for its jobs before the next one
// starts. Missing resources are skipped.
func (a *Adapter) DestroyVirtualMachine(ctx context.Context, vmID string) error {
	rules, err := a.client.ListIPForwardingRules(ctx, vmID)
	if err != nil && !errors.Is(err, job.ErrNotFound) {
		return fmt.Errorf("failed to list forwarding rules of %s: %w", vmID, err)
	}

	var ipIDs []string
	seen := make(map[string]bool)
	addIP := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ipIDs = append(ipIDs, id)
		}
	}

	var ruleJobs []string
	for _, rule := range rules {
		addIP(rule.IPAddressID)
		if strings.EqualFold(rule.State, ruleStateDeleting) {
			continue
		}
		h, err := a.client.DeleteIPForwardingRule(ctx, rule.ID)
		if err != nil {
			return fmt.Errorf("failed to delete forwarding rule %s: %w", rule.ID, err)
		}
		ruleJobs = append(ruleJobs, h.JobID)
	}
	if err := a.completer.AwaitAll(ctx, ruleJobs...); err != nil {
		return err
	}

	vm, err := a.client.GetVirtualMachine(ctx, vmID)
	switch {
	case err == nil:
		addIP(vm.PublicIPID)
	case errors.Is(err, job.ErrNotFound):
		logger.Debugf("Virtual machine %s already gone", vmID)
	default:
		return fmt.Errorf("failed to get virtual machine %s: %w", vmID, err)
	}

	if err := a.releaseAll(ctx, ipIDs, a.client.DisableStaticNAT, "disable static NAT on"); err != nil {
		return err
	}
	if err := a.releaseAll(ctx, ipIDs, a.client.DisassociateIPAddress, "disassociate"); err != nil {
		return err
	}

	h, err := a.client.DestroyVirtualMachine(ctx, vmID)
	if err != nil {
		return fmt.Errorf("failed to destroy virtual machine %s: %w", vmID, err)
	}
	if err := a.completer.Wait(ctx, h); err != nil {
		return err
	}
	logger.Infof("Destroyed virtual machine %s", vmID)
	return nil
}

// releaseAll runs op on every address and waits for all the resulting jobs
func (a *Adapter) releaseAll(ctx context.Context, ipIDs []string, op func(context.Context, string) (job.Handle, error), verb string) error {
	jobIDs := make([]string, 0, len(ipIDs))
	for _, id := range ipIDs {
		h, err := op(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to %s %s: %w", verb, id, err)
		}
		jobIDs = append(jobIDs, h.JobID)
	}
	return a.completer.AwaitAll(ctx, jobIDs...)
}

package cloudstack

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/celestiaorg/cloudjob/internal/job"
	"github.com/celestiaorg/cloudjob/internal/types"
)

// GetZone returns the zone with the given id
func (c *Client) GetZone(ctx context.Context, zoneID string) (*types.Zone, error) {
	params := url.Values{}
	params.Set("id", zoneID)

	var resp struct {
		Count int          `json:"count"`
		Zones []types.Zone `json:"zone"`
	}
	if err := c.do(ctx, "listZones", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Zones) == 0 {
		return nil, fmt.Errorf("zone %s: %w", zoneID, job.ErrNotFound)
	}
	return &resp.Zones[0], nil
}

// ListSecurityGroups lists security groups, optionally filtered by name
func (c *Client) ListSecurityGroups(ctx context.Context, name string) ([]types.SecurityGroup, error) {
	params := url.Values{}
	if name != "" {
		params.Set("securitygroupname", name)
	}

	var resp struct {
		Count  int                   `json:"count"`
		Groups []types.SecurityGroup `json:"securitygroup"`
	}
	if err := c.do(ctx, "listSecurityGroups", params, &resp); err != nil {
		return nil, err
	}
	return resp.Groups, nil
}

// GetSecurityGroupByName returns the group called name. found is false when
// there is none.
func (c *Client) GetSecurityGroupByName(ctx context.Context, name string) (*types.SecurityGroup, bool, error) {
	groups, err := c.ListSecurityGroups(ctx, name)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.IsNotFound() {
			return nil, false, nil
		}
		return nil, false, err
	}
	for i := range groups {
		// The name filter is a prefix match on some versions
		if groups[i].Name == name {
			return &groups[i], true, nil
		}
	}
	return nil, false, nil
}

// CreateSecurityGroup creates a security group. The call is synchronous.
func (c *Client) CreateSecurityGroup(ctx context.Context, name, description string) (*types.SecurityGroup, error) {
	params := url.Values{}
	params.Set("name", name)
	if description != "" {
		params.Set("description", description)
	}

	var resp struct {
		Group types.SecurityGroup `json:"securitygroup"`
	}
	if err := c.do(ctx, "createSecurityGroup", params, &resp); err != nil {
		return nil, err
	}
	return &resp.Group, nil
}

// IngressRequest describes one ingress authorization
type IngressRequest struct {
	SecurityGroupID string
	Protocol        string
	StartPort       int
	EndPort         int
	CIDRs           []string
}

// AuthorizeIngress submits an ingress authorization
func (c *Client) AuthorizeIngress(ctx context.Context, req IngressRequest) (job.Handle, error) {
	params := url.Values{}
	params.Set("securitygroupid", req.SecurityGroupID)
	params.Set("protocol", req.Protocol)
	params.Set("startport", strconv.Itoa(req.StartPort))
	params.Set("endport", strconv.Itoa(req.EndPort))
	if len(req.CIDRs) > 0 {
		params.Set("cidrlist", strings.Join(req.CIDRs, ","))
	}
	return c.doAsync(ctx, "authorizeSecurityGroupIngress", params)
}

// ListPublicIPAddresses lists the addresses allocated on a network
func (c *Client) ListPublicIPAddresses(ctx context.Context, networkID string) ([]types.PublicIPAddress, error) {
	params := url.Values{}
	params.Set("associatednetworkid", networkID)
	params.Set("allocatedonly", "true")

	var resp struct {
		Count     int                     `json:"count"`
		Addresses []types.PublicIPAddress `json:"publicipaddress"`
	}
	if err := c.do(ctx, "listPublicIpAddresses", params, &resp); err != nil {
		return nil, err
	}
	return resp.Addresses, nil
}

// AssociateIPAddress allocates a public address on a network
func (c *Client) AssociateIPAddress(ctx context.Context, zoneID, networkID string) (job.Handle, error) {
	params := url.Values{}
	params.Set("zoneid", zoneID)
	params.Set("networkid", networkID)
	return c.doAsync(ctx, "associateIpAddress", params)
}

// GetNetwork returns the network with the given id
func (c *Client) GetNetwork(ctx context.Context, networkID string) (*types.Network, error) {
	params := url.Values{}
	params.Set("id", networkID)

	var resp struct {
		Count    int             `json:"count"`
		Networks []types.Network `json:"network"`
	}
	if err := c.do(ctx, "listNetworks", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Networks) == 0 {
		return nil, fmt.Errorf("network %s: %w", networkID, job.ErrNotFound)
	}
	return &resp.Networks[0], nil
}

// DeployRequest holds the parameters of deployVirtualMachine
type DeployRequest struct {
	ZoneID            string
	ServiceOfferingID string
	TemplateID        string
	Name              string
	NetworkIDs        []string
	SecurityGroupIDs  []string
	KeyPair           string
	UserData          string // Base64 encoded
}

// DeployVirtualMachine submits a deployment
func (c *Client) DeployVirtualMachine(ctx context.Context, req DeployRequest) (job.Handle, error) {
	params := url.Values{}
	params.Set("zoneid", req.ZoneID)
	params.Set("serviceofferingid", req.ServiceOfferingID)
	params.Set("templateid", req.TemplateID)
	if req.Name != "" {
		params.Set("name", req.Name)
	}
	if len(req.NetworkIDs) > 0 {
		params.Set("networkids", strings.Join(req.NetworkIDs, ","))
	}
	if len(req.SecurityGroupIDs) > 0 {
		params.Set("securitygroupids", strings.Join(req.SecurityGroupIDs, ","))
	}
	if req.KeyPair != "" {
		params.Set("keypair", req.KeyPair)
	}
	if req.UserData != "" {
		params.Set("userdata", req.UserData)
	}
	return c.doAsync(ctx, "deployVirtualMachine", params)
}

// GetVirtualMachine returns the virtual machine with the given id
func (c *Client) GetVirtualMachine(ctx context.Context, vmID string) (*types.VirtualMachine, error) {
	params := url.Values{}
	params.Set("id", vmID)

	var resp struct {
		Count int                    `json:"count"`
		VMs   []types.VirtualMachine `json:"virtualmachine"`
	}
	if err := c.do(ctx, "listVirtualMachines", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.VMs) == 0 {
		return nil, fmt.Errorf("virtual machine %s: %w", vmID, job.ErrNotFound)
	}
	return &resp.VMs[0], nil
}

// DestroyVirtualMachine submits a destroy. A missing machine yields an empty handle.
func (c *Client) DestroyVirtualMachine(ctx context.Context, vmID string) (job.Handle, error) {
	params := url.Values{}
	params.Set("id", vmID)
	return c.doAsyncIfExists(ctx, "destroyVirtualMachine", params)
}

// ListIPForwardingRules lists the static NAT rules of a virtual machine
func (c *Client) ListIPForwardingRules(ctx context.Context, vmID string) ([]types.IPForwardingRule, error) {
	params := url.Values{}
	params.Set("virtualmachineid", vmID)

	var resp struct {
		Count int                      `json:"count"`
		Rules []types.IPForwardingRule `json:"ipforwardingrule"`
	}
	if err := c.do(ctx, "listIpForwardingRules", params, &resp); err != nil {
		return nil, err
	}
	return resp.Rules, nil
}

// DeleteIPForwardingRule submits a rule deletion
func (c *Client) DeleteIPForwardingRule(ctx context.Context, ruleID string) (job.Handle, error) {
	params := url.Values{}
	params.Set("id", ruleID)
	return c.doAsyncIfExists(ctx, "deleteIpForwardingRule", params)
}

// DisableStaticNAT detaches static NAT from an address
func (c *Client) DisableStaticNAT(ctx context.Context, ipAddressID string) (job.Handle, error) {
	params := url.Values{}
	params.Set("ipaddressid", ipAddressID)
	return c.doAsyncIfExists(ctx, "disableStaticNat", params)
}

// DisassociateIPAddress releases a public address
func (c *Client) DisassociateIPAddress(ctx context.Context, ipAddressID string) (job.Handle, error) {
	params := url.Values{}
	params.Set("id", ipAddressID)
	return c.doAsyncIfExists(ctx, "disassociateIpAddress", params)
}

// GetCapabilities returns the management server capabilities
func (c *Client) GetCapabilities(ctx context.Context) (*types.Capabilities, error) {
	var resp struct {
		Capability types.Capabilities `json:"capability"`
	}
	if err := c.do(ctx, "listCapabilities", url.Values{}, &resp); err != nil {
		return nil, err
	}
	return &resp.Capability, nil
}

// EnableStaticNAT maps a public address one to one onto a virtual machine.
// The call is synchronous.
func (c *Client) EnableStaticNAT(ctx context.Context, ipAddressID, vmID string) error {
	params := url.Values{}
	params.Set("ipaddressid", ipAddressID)
	params.Set("virtualmachineid", vmID)

	var resp types.SuccessResponse
	if err := c.do(ctx, "enableStaticNat", params, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("enableStaticNat on %s refused: %s", ipAddressID, resp.DisplayText)
	}
	return nil
}

// RuleRequest describes a port range opened on a public address
type RuleRequest struct {
	IPAddressID string
	Protocol    string
	StartPort   int
	EndPort     int
	// CIDRs only applies to firewall rules
	CIDRs []string
}

func (r RuleRequest) params() url.Values {
	params := url.Values{}
	params.Set("ipaddressid", r.IPAddressID)
	params.Set("protocol", r.Protocol)
	params.Set("startport", strconv.Itoa(r.StartPort))
	params.Set("endport", strconv.Itoa(r.EndPort))
	return params
}

// CreateIPForwardingRule submits a static NAT forwarding rule
func (c *Client) CreateIPForwardingRule(ctx context.Context, req RuleRequest) (job.Handle, error) {
	return c.doAsync(ctx, "createIpForwardingRule", req.params())
}

// CreateFirewallRule submits a firewall rule on a public address
func (c *Client) CreateFirewallRule(ctx context.Context, req RuleRequest) (job.Handle, error) {
	params := req.params()
	if len(req.CIDRs) > 0 {
		params.Set("cidrlist", strings.Join(req.CIDRs, ","))
	}
	return c.doAsync(ctx, "createFirewallRule", params)
}

package types

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// NetworkType values reported on a Zone
const (
	NetworkTypeBasic    = "Basic"
	NetworkTypeAdvanced = "Advanced"
)

// Zone represents a CloudStack availability zone
type Zone struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	NetworkType           string `json:"networktype"`           // Basic or Advanced
	SecurityGroupsEnabled bool   `json:"securitygroupsenabled"` // Whether security groups can be used in the zone
}

// Capabilities is the subset of listCapabilities the adapter relies on
type Capabilities struct {
	CloudStackVersion     string `json:"cloudstackversion"`
	SecurityGroupsEnabled bool   `json:"securitygroupsenabled"`
}

// IngressRule is a single authorized ingress entry on a security group
type IngressRule struct {
	ID                string `json:"ruleid"`
	Protocol          string `json:"protocol"`
	StartPort         int    `json:"startport"`
	EndPort           int    `json:"endport"`
	CIDR              string `json:"cidr,omitempty"`
	SecurityGroupName string `json:"securitygroupname,omitempty"` // Set for group-to-group rules
	Account           string `json:"account,omitempty"`
}

// SecurityGroup represents a CloudStack security group
type SecurityGroup struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	Account      string        `json:"account,omitempty"`
	Domain       string        `json:"domain,omitempty"`
	DomainID     string        `json:"domainid,omitempty"`
	IngressRules []IngressRule `json:"ingressrule,omitempty"`
}

// HasIngress reports whether an ingress rule covers port for protocol and cidr
func (g *SecurityGroup) HasIngress(protocol string, port int, cidr string) bool {
	for _, r := range g.IngressRules {
		if r.Protocol == protocol && r.StartPort <= port && port <= r.EndPort && r.CIDR == cidr {
			return true
		}
	}
	return false
}

// PublicIPAddress represents an IP address allocated to an account
type PublicIPAddress struct {
	ID                  string `json:"id"`
	IPAddress           string `json:"ipaddress"`
	Allocated           string `json:"allocated,omitempty"` // Allocation timestamp as sent by the API
	Account             string `json:"account,omitempty"`
	AssociatedNetworkID string `json:"associatednetworkid,omitempty"`
	NetworkID           string `json:"networkid,omitempty"`
	IsSourceNAT         bool   `json:"issourcenat"`
	IsStaticNAT         bool   `json:"isstaticnat"`
	State               string `json:"state,omitempty"`
	VirtualMachineID    string `json:"virtualmachineid,omitempty"`
	VirtualMachineName  string `json:"virtualmachinename,omitempty"`
	ZoneID              string `json:"zoneid,omitempty"`
	ZoneName            string `json:"zonename,omitempty"`
}

// Available reports whether the address is free for reuse
func (ip *PublicIPAddress) Available() bool {
	return !ip.IsSourceNAT && !ip.IsStaticNAT && ip.VirtualMachineID == ""
}

// Network represents a guest network
type Network struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	DisplayText          string `json:"displaytext,omitempty"`
	NetworkOfferingID    string `json:"networkofferingid"`
	State                string `json:"state,omitempty"`
	Type                 string `json:"type,omitempty"`
	ZoneID               string `json:"zoneid"`
	SecurityGroupEnabled bool   `json:"securitygroupenabled"`
}

// NIC is a network interface of a virtual machine
type NIC struct {
	ID        string `json:"id"`
	IPAddress string `json:"ipaddress,omitempty"`
	NetworkID string `json:"networkid,omitempty"`
	IsDefault bool   `json:"isdefault"`
}

// VirtualMachine represents a CloudStack virtual machine
type VirtualMachine struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	DisplayName       string          `json:"displayname,omitempty"`
	State             string          `json:"state,omitempty"`
	ZoneID            string          `json:"zoneid"`
	TemplateID        string          `json:"templateid"`
	ServiceOfferingID string          `json:"serviceofferingid"`
	Password          string          `json:"password,omitempty"` // Only returned by deploy when the template is password enabled
	PublicIP          string          `json:"publicip,omitempty"`
	PublicIPID        string          `json:"publicipid,omitempty"`
	NICs              []NIC           `json:"nic,omitempty"`
	SecurityGroups    []SecurityGroup `json:"securitygroup,omitempty"`
}

// PortForwardingRule maps a public port onto a virtual machine port
type PortForwardingRule struct {
	ID               string `json:"id"`
	IPAddressID      string `json:"ipaddressid"`
	IPAddress        string `json:"ipaddress,omitempty"`
	Protocol         string `json:"protocol"`
	PrivatePort      string `json:"privateport"` // The API sends ports as strings here
	PublicPort       string `json:"publicport"`
	State            string `json:"state,omitempty"`
	VirtualMachineID string `json:"virtualmachineid"`
	CIDRList         string `json:"cidrlist,omitempty"`
}

// IPForwardingRule is a static NAT forwarding rule
type IPForwardingRule struct {
	ID               string `json:"id"`
	IPAddressID      string `json:"ipaddressid"`
	IPAddress        string `json:"ipaddress,omitempty"`
	Protocol         string `json:"protocol"`
	StartPort        int    `json:"startport"`
	EndPort          int    `json:"endport"`
	State            string `json:"state,omitempty"`
	VirtualMachineID string `json:"virtualmachineid"`
}

// FirewallRule opens a port range on a public IP address
type FirewallRule struct {
	ID          string `json:"id"`
	IPAddressID string `json:"ipaddressid"`
	IPAddress   string `json:"ipaddress,omitempty"`
	Protocol    string `json:"protocol"`
	StartPort   int    `json:"startport"`
	EndPort     int    `json:"endport"`
	CIDRList    string `json:"cidrlist"`
	State       string `json:"state,omitempty"`
}

// Template represents a machine image
type Template struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayText string `json:"displaytext,omitempty"`
	OSTypeID    string `json:"ostypeid"`
	Format      string `json:"format"`
	ZoneID      string `json:"zoneid,omitempty"`
	IsReady     bool   `json:"isready"`
	Status      string `json:"status,omitempty"`
}

// Volume represents a block storage volume
type Volume struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	Size             int64  `json:"size"`
	StorageType      string `json:"storagetype"`
	State            string `json:"state,omitempty"`
	ZoneID           string `json:"zoneid,omitempty"`
	VirtualMachineID string `json:"virtualmachineid,omitempty"`
}

// SuccessResponse is the result of jobs that only report an outcome
type SuccessResponse struct {
	Success     bool   `json:"success"`
	DisplayText string `json:"displaytext,omitempty"`
}

// UnmarshalJSON accepts the success flag as a boolean or as a quoted
// boolean, which some management server versions send
func (r *SuccessResponse) UnmarshalJSON(data []byte) error {
	var raw struct {
		Success     json.RawMessage `json:"success"`
		DisplayText string          `json:"displaytext"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.DisplayText = raw.DisplayText
	r.Success = false
	if len(raw.Success) == 0 || string(raw.Success) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw.Success, &r.Success); err == nil {
		return nil
	}

	var text string
	if err := json.Unmarshal(raw.Success, &text); err != nil {
		return fmt.Errorf("invalid success flag %s", raw.Success)
	}
	ok, err := strconv.ParseBool(text)
	if err != nil {
		return fmt.Errorf("invalid success flag %q: %w", text, err)
	}
	r.Success = ok
	return nil
}

package cloudstack

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/cloudjob/internal/job"
	"github.com/celestiaorg/cloudjob/internal/types"
)

func zoneHandler(networkType string, securityGroups bool) handlerFunc {
	return func(q url.Values) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{
			"count": 1,
			"zone": []types.Zone{{
				ID:                    q.Get("id"),
				Name:                  "zone-" + q.Get("id"),
				NetworkType:           networkType,
				SecurityGroupsEnabled: securityGroups,
			}},
		}
	}
}

func groupList(groups ...types.SecurityGroup) (int, interface{}) {
	if len(groups) == 0 {
		return http.StatusOK, map[string]interface{}{}
	}
	return http.StatusOK, map[string]interface{}{"count": len(groups), "securitygroup": groups}
}

func webGroup(rules ...types.IngressRule) types.SecurityGroup {
	return types.SecurityGroup{ID: "sg-1", Name: "web", IngressRules: rules}
}

func tcpRule(port int) types.IngressRule {
	return types.IngressRule{ID: "r", Protocol: "tcp", StartPort: port, EndPort: port, CIDR: anyCIDR}
}

func TestAdapter_EnsureSecurityGroup_ReusesExisting(t *testing.T) {
	f := newFakeCloud(t)
	f.on("listZones", zoneHandler(types.NetworkTypeBasic, true))
	lists := 0
	f.on("listSecurityGroups", func(url.Values) (int, interface{}) {
		lists++
		if lists == 1 {
			return groupList(webGroup(tcpRule(22)))
		}
		return groupList(webGroup(tcpRule(22), tcpRule(443)))
	})
	var authorized url.Values
	f.on("authorizeSecurityGroupIngress", func(q url.Values) (int, interface{}) {
		authorized = q
		return asyncAccepted("sg-1", "job-auth")
	})
	f.job("job-auth", running(), succeeded(`{"securitygroup":{"id":"sg-1","name":"web","ingressrule":[]}}`))

	group, err := f.adapter().EnsureSecurityGroup(context.Background(), SecurityGroupRequest{
		ZoneID: "z1",
		Name:   "web",
		Ports:  []int{22, 443},
	})
	require.NoError(t, err)

	assert.Equal(t, "sg-1", group.ID)
	assert.True(t, group.HasIngress("tcp", 443, anyCIDR))
	assert.Equal(t, 0, f.count("createSecurityGroup"))
	assert.Equal(t, 1, f.count("authorizeSecurityGroupIngress"), "only the missing port is opened")
	assert.Equal(t, "443", authorized.Get("startport"))
	assert.Equal(t, anyCIDR, authorized.Get("cidrlist"))
}

func TestAdapter_EnsureSecurityGroup_Creates(t *testing.T) {
	f := newFakeCloud(t)
	f.on("listZones", zoneHandler(types.NetworkTypeBasic, true))
	f.on("listSecurityGroups", func(url.Values) (int, interface{}) { return groupList() })
	f.on("createSecurityGroup", func(q url.Values) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{
			"securitygroup": types.SecurityGroup{ID: "sg-9", Name: q.Get("name"), Description: q.Get("description")},
		}
	})

	group, err := f.adapter().EnsureSecurityGroup(context.Background(), SecurityGroupRequest{
		ZoneID:      "z1",
		Name:        "web",
		Description: "web tier",
	})
	require.NoError(t, err)
	assert.Equal(t, "sg-9", group.ID)
	assert.Equal(t, "web tier", group.Description)
	assert.Equal(t, 0, f.count("queryAsyncJobResult"), "a synchronous create has no job to poll")
}

func TestAdapter_EnsureSecurityGroup_RaceRecovery(t *testing.T) {
	f := newFakeCloud(t)
	f.on("listZones", zoneHandler(types.NetworkTypeBasic, true))
	lists := 0
	f.on("listSecurityGroups", func(url.Values) (int, interface{}) {
		lists++
		if lists == 1 {
			return groupList()
		}
		return groupList(webGroup())
	})
	f.on("createSecurityGroup", func(url.Values) (int, interface{}) {
		return apiError(431, 431, "A security group with name web already exisits.")
	})

	group, err := f.adapter().EnsureSecurityGroup(context.Background(), SecurityGroupRequest{ZoneID: "z1", Name: "web"})
	require.NoError(t, err)
	assert.Equal(t, "sg-1", group.ID)
	assert.Equal(t, 1, f.count("createSecurityGroup"))
	assert.Equal(t, 2, f.count("listSecurityGroups"))
}

func TestAdapter_EnsureSecurityGroup_NotConverged(t *testing.T) {
	f := newFakeCloud(t)
	f.on("listZones", zoneHandler(types.NetworkTypeBasic, true))
	f.on("listSecurityGroups", func(url.Values) (int, interface{}) { return groupList() })
	f.on("createSecurityGroup", func(url.Values) (int, interface{}) {
		return apiError(431, 431, "A security group with name web already exisits.")
	})

	_, err := f.adapter().EnsureSecurityGroup(context.Background(), SecurityGroupRequest{ZoneID: "z1", Name: "web"})
	assert.ErrorIs(t, err, job.ErrNotConverged)
	assert.ErrorIs(t, err, job.ErrResourceAlreadyExists)
	assert.Equal(t, 1, f.count("createSecurityGroup"), "creation is never retried")
}

func TestAdapter_EnsureSecurityGroup_PreconditionGate(t *testing.T) {
	f := newFakeCloud(t)
	f.on("listZones", zoneHandler(types.NetworkTypeAdvanced, false))

	_, err := f.adapter().EnsureSecurityGroup(context.Background(), SecurityGroupRequest{ZoneID: "z1", Name: "web"})
	assert.ErrorIs(t, err, job.ErrPreconditionUnmet)
	assert.Empty(t, f.mutations())
	assert.Equal(t, 0, f.count("listSecurityGroups"))
}

func TestAdapter_EnsureSecurityGroup_AuthorizeJobFails(t *testing.T) {
	f := newFakeCloud(t)
	f.on("listZones", zoneHandler(types.NetworkTypeBasic, true))
	f.on("listSecurityGroups", func(url.Values) (int, interface{}) { return groupList(webGroup()) })
	f.on("authorizeSecurityGroupIngress", func(url.Values) (int, interface{}) {
		return asyncAccepted("sg-1", "job-auth")
	})
	f.job("job-auth", failed(537, "Network rule conflict"))

	_, err := f.adapter().EnsureSecurityGroup(context.Background(), SecurityGroupRequest{ZoneID: "z1", Name: "web", Ports: []int{80}})
	var failure *job.RemoteJobFailedError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, job.ErrorCodeNetworkRuleConflict, failure.Code)
}

func ipList(ips ...types.PublicIPAddress) handlerFunc {
	return func(url.Values) (int, interface{}) {
		if len(ips) == 0 {
			return http.StatusOK, map[string]interface{}{}
		}
		return http.StatusOK, map[string]interface{}{"count": len(ips), "publicipaddress": ips}
	}
}

func networkHandler(q url.Values) (int, interface{}) {
	return http.StatusOK, map[string]interface{}{
		"count":   1,
		"network": []types.Network{{ID: q.Get("id"), Name: "guest", ZoneID: "z1", NetworkOfferingID: "off"}},
	}
}

func TestAdapter_ObtainPublicIP(t *testing.T) {
	tests := []struct {
		name        string
		existing    []types.PublicIPAddress
		wantID      string
		wantAllocs  int
		wantPolling bool
	}{
		{
			name: "reuses first free address",
			existing: []types.PublicIPAddress{
				{ID: "ip-nat", IPAddress: "203.0.113.1", IsSourceNAT: true},
				{ID: "ip-a", IPAddress: "203.0.113.2"},
				{ID: "ip-b", IPAddress: "203.0.113.3"},
			},
			wantID: "ip-a",
		},
		{
			name: "skips addresses in use",
			existing: []types.PublicIPAddress{
				{ID: "ip-static", IPAddress: "203.0.113.4", IsStaticNAT: true, VirtualMachineID: "vm-1"},
			},
			wantID:      "ip-new",
			wantAllocs:  1,
			wantPolling: true,
		},
		{
			name:        "allocates when none listed",
			wantID:      "ip-new",
			wantAllocs:  1,
			wantPolling: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeCloud(t)
			f.on("listNetworks", networkHandler)
			f.on("listZones", zoneHandler(types.NetworkTypeAdvanced, false))
			f.on("listPublicIpAddresses", ipList(tt.existing...))
			f.on("associateIpAddress", func(q url.Values) (int, interface{}) {
				assert.Equal(t, "z1", q.Get("zoneid"))
				assert.Equal(t, "net-1", q.Get("networkid"))
				return asyncAccepted("ip-new", "job-ip")
			})
			f.job("job-ip", running(), succeeded(`{"ipaddress":{"id":"ip-new","ipaddress":"203.0.113.9","issourcenat":false,"isstaticnat":false}}`))

			ip, err := f.adapter().ObtainPublicIP(context.Background(), "net-1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, ip.ID)
			assert.Equal(t, tt.wantAllocs, f.count("associateIpAddress"))
			assert.Equal(t, tt.wantPolling, f.count("queryAsyncJobResult") > 0)
		})
	}
}

func TestAdapter_ObtainPublicIP_BasicZone(t *testing.T) {
	f := newFakeCloud(t)
	f.on("listNetworks", networkHandler)
	f.on("listZones", zoneHandler(types.NetworkTypeBasic, true))

	_, err := f.adapter().ObtainPublicIP(context.Background(), "net-1")
	assert.ErrorIs(t, err, job.ErrPreconditionUnmet)
	assert.Equal(t, 0, f.count("listPublicIpAddresses"))
	assert.Equal(t, 0, f.count("associateIpAddress"))
}

func TestAdapter_Deploy(t *testing.T) {
	vm := `{"virtualmachine":{"id":"vm-1","name":"web-1","zoneid":"z1","templateid":"tpl","serviceofferingid":"so","state":"Running"}}`

	t.Run("succeeds", func(t *testing.T) {
		f := newFakeCloud(t)
		f.on("deployVirtualMachine", func(q url.Values) (int, interface{}) {
			assert.Equal(t, "net-1,net-2", q.Get("networkids"))
			return asyncAccepted("vm-1", "job-vm")
		})
		f.job("job-vm", running(), running(), succeeded(vm))

		got, err := f.adapter().Deploy(context.Background(), DeployRequest{
			ZoneID:            "z1",
			ServiceOfferingID: "so",
			TemplateID:        "tpl",
			NetworkIDs:        []string{"net-1", "net-2"},
		})
		require.NoError(t, err)
		assert.Equal(t, "vm-1", got.ID)
		assert.Equal(t, "Running", got.State)
	})

	t.Run("remote failure", func(t *testing.T) {
		f := newFakeCloud(t)
		f.on("deployVirtualMachine", func(url.Values) (int, interface{}) { return asyncAccepted("vm-1", "job-vm") })
		f.job("job-vm", running(), failed(533, "Unable to create a deployment for VM"))

		_, err := f.adapter().Deploy(context.Background(), DeployRequest{ZoneID: "z1", ServiceOfferingID: "so", TemplateID: "tpl"})
		var failure *job.RemoteJobFailedError
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, "job-vm", failure.JobID)
		assert.Equal(t, job.ErrorCodeInsufficientCapacity, failure.Code)
		assert.NotErrorIs(t, err, job.ErrOperationTimedOut)
	})

	t.Run("timeout", func(t *testing.T) {
		f := newFakeCloud(t)
		f.on("deployVirtualMachine", func(url.Values) (int, interface{}) { return asyncAccepted("vm-1", "job-vm") })
		f.job("job-vm", running())

		a := NewAdapter(f.client(), job.WithPollConfig(job.PollConfig{
			MaxDuration: 50 * fastPoll.Period,
			Period:      fastPoll.Period,
		}))
		_, err := a.Deploy(context.Background(), DeployRequest{ZoneID: "z1", ServiceOfferingID: "so", TemplateID: "tpl"})
		assert.ErrorIs(t, err, job.ErrOperationTimedOut)
		assert.NotErrorIs(t, err, job.ErrRemoteJobFailed)
	})
}

func TestAdapter_DestroyVirtualMachine(t *testing.T) {
	f := newFakeCloud(t)
	f.on("listIpForwardingRules", func(url.Values) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{
			"count": 2,
			"ipforwardingrule": []types.IPForwardingRule{
				{ID: "rule-1", IPAddressID: "ip-1", Protocol: "tcp", State: "Active", VirtualMachineID: "vm-1"},
				{ID: "rule-2", IPAddressID: "ip-1", Protocol: "udp", State: ruleStateDeleting, VirtualMachineID: "vm-1"},
			},
		}
	})
	f.on("listVirtualMachines", func(url.Values) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{
			"count":          1,
			"virtualmachine": []types.VirtualMachine{{ID: "vm-1", PublicIPID: "ip-2"}},
		}
	})
	f.on("deleteIpForwardingRule", func(q url.Values) (int, interface{}) {
		return asyncAccepted(q.Get("id"), "job-rule")
	})
	f.on("disableStaticNat", func(q url.Values) (int, interface{}) {
		if q.Get("ipaddressid") == "ip-2" {
			return apiError(431, 431, "Unable to find ip address by id=ip-2")
		}
		return asyncAccepted("", "job-nat")
	})
	f.on("disassociateIpAddress", func(q url.Values) (int, interface{}) {
		return asyncAccepted("", "job-release-"+q.Get("id"))
	})
	f.on("destroyVirtualMachine", func(url.Values) (int, interface{}) {
		return asyncAccepted("vm-1", "job-destroy")
	})
	ok := succeeded(`{"success":true}`)
	f.job("job-rule", running(), ok)
	f.job("job-nat", ok)
	f.job("job-release-ip-1", ok)
	f.job("job-release-ip-2", ok)
	f.job("job-destroy", running(), succeeded(`{"virtualmachine":{"id":"vm-1","serviceofferingid":"so","templateid":"tpl","state":"Destroyed"}}`))

	err := f.adapter().DestroyVirtualMachine(context.Background(), "vm-1")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"deleteIpForwardingRule",
		"disableStaticNat",
		"disableStaticNat",
		"disassociateIpAddress",
		"disassociateIpAddress",
		"destroyVirtualMachine",
	}, f.mutations())
}

func TestAdapter_DestroyVirtualMachine_StopsAtFailedStep(t *testing.T) {
	f := newFakeCloud(t)
	f.on("listIpForwardingRules", func(url.Values) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{
			"count":            1,
			"ipforwardingrule": []types.IPForwardingRule{{ID: "rule-1", IPAddressID: "ip-1", State: "Active"}},
		}
	})
	f.on("deleteIpForwardingRule", func(url.Values) (int, interface{}) { return asyncAccepted("", "job-rule") })
	f.job("job-rule", failed(536, "Resource in use"))

	err := f.adapter().DestroyVirtualMachine(context.Background(), "vm-1")
	assert.ErrorIs(t, err, job.ErrRemoteJobFailed)
	assert.Equal(t, 0, f.count("destroyVirtualMachine"))
}

func capabilities(version string) handlerFunc {
	return func(url.Values) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{
			"capability": types.Capabilities{CloudStackVersion: version, SecurityGroupsEnabled: true},
		}
	}
}

func natNodeCloud(t *testing.T, version string, securityGroups bool, ips ...types.PublicIPAddress) *fakeCloud {
	f := newFakeCloud(t)
	f.on("listZones", zoneHandler(types.NetworkTypeAdvanced, securityGroups))
	f.on("listNetworks", networkHandler)
	f.on("listCapabilities", capabilities(version))
	f.on("listSecurityGroups", func(url.Values) (int, interface{}) {
		return groupList(webGroup(tcpRule(22), tcpRule(80)))
	})
	f.on("deployVirtualMachine", func(url.Values) (int, interface{}) { return asyncAccepted("vm-1", "job-vm") })
	f.job("job-vm", running(), succeeded(`{"virtualmachine":{"id":"vm-1","name":"web-1","state":"Running"}}`))
	f.on("listPublicIpAddresses", ipList(ips...))
	f.on("associateIpAddress", func(url.Values) (int, interface{}) { return asyncAccepted("ip-new", "job-ip") })
	f.job("job-ip", succeeded(`{"ipaddress":{"id":"ip-new","ipaddress":"203.0.113.9"}}`))
	f.on("listVirtualMachines", func(url.Values) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{
			"count":          1,
			"virtualmachine": []types.VirtualMachine{{ID: "vm-1", Name: "web-1", PublicIP: "203.0.113.9", PublicIPID: "ip-new"}},
		}
	})
	return f
}

func TestAdapter_CreateNode_ForwardingRules(t *testing.T) {
	f := natNodeCloud(t, "2.2.14", true)
	var deployed url.Values
	f.on("deployVirtualMachine", func(q url.Values) (int, interface{}) {
		deployed = q
		return asyncAccepted("vm-1", "job-vm")
	})
	var natted url.Values
	f.on("enableStaticNat", func(q url.Values) (int, interface{}) {
		natted = q
		return http.StatusOK, map[string]interface{}{"success": "true"}
	})
	f.on("createIpForwardingRule", func(q url.Values) (int, interface{}) {
		port := q.Get("startport")
		return asyncAccepted("fwd-"+port, "job-fwd-"+port)
	})
	f.job("job-fwd-22", running(), succeeded(`{"ipforwardingrule":{"id":"fwd-22","ipaddressid":"ip-new","protocol":"tcp","startport":22,"endport":22,"virtualmachineid":"vm-1"}}`))
	f.job("job-fwd-80", succeeded(`{"ipforwardingrule":{"id":"fwd-80","ipaddressid":"ip-new","protocol":"tcp","startport":80,"endport":80,"virtualmachineid":"vm-1"}}`))

	node, err := f.adapter().CreateNode(context.Background(), NodeRequest{
		Deploy: DeployRequest{
			ZoneID:            "z1",
			ServiceOfferingID: "so",
			TemplateID:        "tpl",
			NetworkIDs:        []string{"net-1"},
		},
		Group:     "web",
		Ports:     []int{22, 80},
		StaticNAT: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "sg-1", deployed.Get("securitygroupids"))
	assert.Equal(t, "ip-new", natted.Get("ipaddressid"))
	assert.Equal(t, "vm-1", natted.Get("virtualmachineid"))

	assert.Equal(t, "sg-1", node.SecurityGroup.ID)
	assert.Equal(t, "203.0.113.9", node.VirtualMachine.PublicIP)
	require.Len(t, node.PublicIPs, 1)
	assert.Equal(t, "ip-new", node.PublicIPs[0].ID)
	require.Len(t, node.ForwardingRules, 2)
	assert.Equal(t, "fwd-22", node.ForwardingRules[0].ID)
	assert.Equal(t, 80, node.ForwardingRules[1].StartPort)
	assert.Empty(t, node.FirewallRules)

	assert.Equal(t, []string{
		"deployVirtualMachine",
		"associateIpAddress",
		"enableStaticNat",
		"createIpForwardingRule",
		"createIpForwardingRule",
	}, f.mutations())
}

func TestAdapter_CreateNode_FirewallRules(t *testing.T) {
	f := natNodeCloud(t, "4.11.3.0", false, types.PublicIPAddress{ID: "ip-a", IPAddress: "203.0.113.2"})
	f.on("enableStaticNat", func(url.Values) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{"success": true}
	})
	var opened url.Values
	f.on("createFirewallRule", func(q url.Values) (int, interface{}) {
		opened = q
		return asyncAccepted("fw-443", "job-fw")
	})
	f.job("job-fw", running(), succeeded(`{"firewallrule":{"id":"fw-443","ipaddressid":"ip-a","protocol":"tcp","startport":443,"endport":443,"cidrlist":"10.0.0.0/8"}}`))

	node, err := f.adapter().CreateNode(context.Background(), NodeRequest{
		Deploy:    DeployRequest{ZoneID: "z1", ServiceOfferingID: "so", TemplateID: "tpl", NetworkIDs: []string{"net-1"}},
		Group:     "web",
		Ports:     []int{443},
		StaticNAT: true,
		CIDRs:     []string{"10.0.0.0/8"},
	})
	require.NoError(t, err)

	assert.Nil(t, node.SecurityGroup, "the zone has no security groups")
	assert.Equal(t, 0, f.count("listSecurityGroups"))
	assert.Equal(t, "ip-a", node.PublicIPs[0].ID)
	assert.Equal(t, 0, f.count("associateIpAddress"))
	require.Len(t, node.FirewallRules, 1)
	assert.Equal(t, "fw-443", node.FirewallRules[0].ID)
	assert.Equal(t, "10.0.0.0/8", opened.Get("cidrlist"))
	assert.Equal(t, "443", opened.Get("startport"))
	assert.Equal(t, 0, f.count("createIpForwardingRule"))
}

func TestAdapter_CreateNode_WithoutStaticNAT(t *testing.T) {
	f := natNodeCloud(t, "4.11.3.0", true)

	node, err := f.adapter().CreateNode(context.Background(), NodeRequest{
		Deploy: DeployRequest{ZoneID: "z1", ServiceOfferingID: "so", TemplateID: "tpl"},
	})
	require.NoError(t, err)
	assert.Equal(t, "vm-1", node.VirtualMachine.ID)
	assert.Equal(t, []string{"deployVirtualMachine"}, f.mutations())
	assert.Equal(t, 0, f.count("listCapabilities"))
}

func TestAdapter_CreateNode_Failures(t *testing.T) {
	t.Run("static NAT needs a network", func(t *testing.T) {
		f := natNodeCloud(t, "4.11.3.0", true)

		_, err := f.adapter().CreateNode(context.Background(), NodeRequest{
			Deploy:    DeployRequest{ZoneID: "z1", ServiceOfferingID: "so", TemplateID: "tpl"},
			StaticNAT: true,
		})
		require.Error(t, err)
		assert.Empty(t, f.mutations())
	})

	t.Run("refused static NAT opens no ports", func(t *testing.T) {
		f := natNodeCloud(t, "4.11.3.0", false)
		f.on("enableStaticNat", func(url.Values) (int, interface{}) {
			return http.StatusOK, map[string]interface{}{"success": "false", "displaytext": "address in use"}
		})

		_, err := f.adapter().CreateNode(context.Background(), NodeRequest{
			Deploy:    DeployRequest{ZoneID: "z1", ServiceOfferingID: "so", TemplateID: "tpl", NetworkIDs: []string{"net-1"}},
			Ports:     []int{22},
			StaticNAT: true,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "address in use")
		assert.Equal(t, 0, f.count("createFirewallRule"))
	})

	t.Run("failed rule job", func(t *testing.T) {
		f := natNodeCloud(t, "2.2.14", false)
		f.on("enableStaticNat", func(url.Values) (int, interface{}) {
			return http.StatusOK, map[string]interface{}{"success": true}
		})
		f.on("createIpForwardingRule", func(url.Values) (int, interface{}) { return asyncAccepted("", "job-fwd") })
		f.job("job-fwd", failed(537, "Network rule conflict"))

		_, err := f.adapter().CreateNode(context.Background(), NodeRequest{
			Deploy:    DeployRequest{ZoneID: "z1", ServiceOfferingID: "so", TemplateID: "tpl", NetworkIDs: []string{"net-1"}},
			Ports:     []int{22},
			StaticNAT: true,
		})
		var failure *job.RemoteJobFailedError
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, job.ErrorCodeNetworkRuleConflict, failure.Code)
	})
}

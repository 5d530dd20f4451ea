package commands

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/celestiaorg/cloudjob/internal/compute/cloudstack"
	"github.com/celestiaorg/cloudjob/internal/job"
)

// newCloudStackAdapter builds an adapter from the environment configuration
var newCloudStackAdapter = func() (*cloudstack.Adapter, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	client, err := cloudstack.NewClient(&cfg.CloudStack)
	if err != nil {
		return nil, err
	}
	return cloudstack.NewAdapter(client, job.WithPollConfig(cfg.Poll)), nil
}

// GetCloudStackCmd returns the cloudstack command
func GetCloudStackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "cloudstack",
		Aliases: []string{"cs"},
		Short:   "Run CloudStack operations to completion",
	}

	secgroup := &cobra.Command{Use: "secgroup", Short: "Manage security groups"}
	secgroup.AddCommand(ensureSecurityGroupCmd())

	ip := &cobra.Command{Use: "ip", Short: "Manage public IP addresses"}
	ip.AddCommand(obtainPublicIPCmd())

	vm := &cobra.Command{Use: "vm", Short: "Manage virtual machines"}
	vm.AddCommand(deployVMCmd(), createVMCmd(), destroyVMCmd())

	cmd.AddCommand(secgroup, ip, vm)
	return cmd
}

func ensureSecurityGroupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ensure",
		Short: "Create a security group or reuse the existing one, then authorize the missing ingress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			zone, _ := cmd.Flags().GetString("zone")
			name, _ := cmd.Flags().GetString("name")
			description, _ := cmd.Flags().GetString("description")
			ports, _ := cmd.Flags().GetIntSlice("port")
			cidrs, _ := cmd.Flags().GetStringSlice("cidr")

			adapter, err := newCloudStackAdapter()
			if err != nil {
				return err
			}
			group, err := adapter.EnsureSecurityGroup(cmd.Context(), cloudstack.SecurityGroupRequest{
				ZoneID:      zone,
				Name:        name,
				Description: description,
				Ports:       ports,
				CIDRs:       cidrs,
			})
			if err != nil {
				return fmt.Errorf("error ensuring security group: %w", err)
			}
			return printJSON(cmd, group)
		},
	}
	cmd.Flags().String("zone", "", "Zone id")
	cmd.Flags().String("name", "", "Security group name")
	cmd.Flags().String("description", "", "Security group description")
	cmd.Flags().IntSlice("port", nil, "TCP port to open, repeatable")
	cmd.Flags().StringSlice("cidr", nil, "Source CIDR, repeatable (default 0.0.0.0/0)")
	_ = cmd.MarkFlagRequired("zone")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func obtainPublicIPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "obtain",
		Short: "Reuse a free public IP of the network or associate a new one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			network, _ := cmd.Flags().GetString("network")

			adapter, err := newCloudStackAdapter()
			if err != nil {
				return err
			}
			ip, err := adapter.ObtainPublicIP(cmd.Context(), network)
			if err != nil {
				return fmt.Errorf("error obtaining public IP: %w", err)
			}
			return printJSON(cmd, ip)
		},
	}
	cmd.Flags().String("network", "", "Network id")
	_ = cmd.MarkFlagRequired("network")
	return cmd
}

func deployVMCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy a virtual machine and wait until it is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := deployRequestFromFlags(cmd)
			if err != nil {
				return err
			}

			adapter, err := newCloudStackAdapter()
			if err != nil {
				return err
			}
			vm, err := adapter.Deploy(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("error deploying virtual machine: %w", err)
			}
			return printJSON(cmd, vm)
		},
	}
	addDeployFlags(cmd)
	return cmd
}

func createVMCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Deploy a virtual machine with its security group, static NAT and port rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deploy, err := deployRequestFromFlags(cmd)
			if err != nil {
				return err
			}
			req := cloudstack.NodeRequest{Deploy: deploy}
			req.Group, _ = cmd.Flags().GetString("group")
			req.Ports, _ = cmd.Flags().GetIntSlice("port")
			req.StaticNAT, _ = cmd.Flags().GetBool("static-nat")
			req.CIDRs, _ = cmd.Flags().GetStringSlice("cidr")
			if req.StaticNAT && len(deploy.NetworkIDs) == 0 {
				return fmt.Errorf("--static-nat requires at least one --network")
			}

			adapter, err := newCloudStackAdapter()
			if err != nil {
				return err
			}
			node, err := adapter.CreateNode(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("error creating node: %w", err)
			}
			return printJSON(cmd, node)
		},
	}
	addDeployFlags(cmd)
	cmd.Flags().String("group", "", "Group whose shared security group opens --port")
	cmd.Flags().IntSlice("port", nil, "Inbound TCP port, repeatable")
	cmd.Flags().Bool("static-nat", false, "Map a public IP onto the machine on each network")
	cmd.Flags().StringSlice("cidr", nil, "Source CIDR of firewall rules, repeatable (default 0.0.0.0/0)")
	return cmd
}

func addDeployFlags(cmd *cobra.Command) {
	cmd.Flags().String("zone", "", "Zone id")
	cmd.Flags().String("offering", "", "Service offering id")
	cmd.Flags().String("template", "", "Template id")
	cmd.Flags().String("name", "", "Virtual machine name")
	cmd.Flags().StringSlice("network", nil, "Network id, repeatable")
	cmd.Flags().StringSlice("security-group", nil, "Security group id, repeatable")
	cmd.Flags().String("keypair", "", "SSH key pair name")
	cmd.Flags().String("user-data-file", "", "File whose content is passed as user data")
	_ = cmd.MarkFlagRequired("zone")
	_ = cmd.MarkFlagRequired("offering")
	_ = cmd.MarkFlagRequired("template")
}

func deployRequestFromFlags(cmd *cobra.Command) (cloudstack.DeployRequest, error) {
	req := cloudstack.DeployRequest{}
	req.ZoneID, _ = cmd.Flags().GetString("zone")
	req.ServiceOfferingID, _ = cmd.Flags().GetString("offering")
	req.TemplateID, _ = cmd.Flags().GetString("template")
	req.Name, _ = cmd.Flags().GetString("name")
	req.NetworkIDs, _ = cmd.Flags().GetStringSlice("network")
	req.SecurityGroupIDs, _ = cmd.Flags().GetStringSlice("security-group")
	req.KeyPair, _ = cmd.Flags().GetString("keypair")

	userDataFile, _ := cmd.Flags().GetString("user-data-file")
	if userDataFile != "" {
		data, err := os.ReadFile(userDataFile) //nolint:gosec // path comes from the operator
		if err != nil {
			return req, fmt.Errorf("error reading user data: %w", err)
		}
		req.UserData = base64.StdEncoding.EncodeToString(data)
	}
	return req, nil
}

func destroyVMCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "destroy <vm-id>",
		Short: "Release the forwarding rules and public IPs of a virtual machine, then destroy it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := newCloudStackAdapter()
			if err != nil {
				return err
			}
			if err := adapter.DestroyVirtualMachine(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("error destroying virtual machine: %w", err)
			}
			return printJSON(cmd, map[string]string{"id": args[0], "status": "destroyed"})
		},
	}
	return cmd
}

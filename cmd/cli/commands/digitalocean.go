package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/celestiaorg/cloudjob/internal/compute/digitalocean"
	"github.com/celestiaorg/cloudjob/internal/job"
	"github.com/celestiaorg/cloudjob/test/mocks"
)

const flagMock = "mock"

// doServices returns the DigitalOcean services and the poll configuration
// for the command. With --mock the canned responses of test/mocks answer.
func doServices(cmd *cobra.Command) (*digitalocean.Services, job.PollConfig, error) {
	useMock, _ := cmd.Flags().GetBool(flagMock)
	if useMock {
		return mocks.NewMockDOServices().Services(), job.DefaultPollConfig(), nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, job.PollConfig{}, fmt.Errorf("error loading configuration: %w", err)
	}
	s, err := digitalocean.NewServices(&cfg.DigitalOcean)
	if err != nil {
		return nil, job.PollConfig{}, err
	}
	return s, cfg.Poll, nil
}

// GetDigitalOceanCmd returns the digitalocean command
func GetDigitalOceanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "digitalocean",
		Aliases: []string{"do"},
		Short:   "Run DigitalOcean operations to completion",
	}
	cmd.PersistentFlags().Bool(flagMock, false, "Answer from canned responses instead of the DigitalOcean API")

	ip := &cobra.Command{Use: "ip", Short: "Manage reserved IPs"}
	ip.AddCommand(obtainReservedIPCmd())

	key := &cobra.Command{Use: "key", Short: "Manage SSH keys"}
	key.AddCommand(ensureKeyCmd())

	cmd.AddCommand(ip, key)
	return cmd
}

func obtainReservedIPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "obtain",
		Short: "Reuse a free reserved IP of the region or reserve a new one, optionally assigning it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			region, _ := cmd.Flags().GetString("region")
			dropletID, _ := cmd.Flags().GetInt("droplet")

			s, poll, err := doServices(cmd)
			if err != nil {
				return err
			}
			completer := job.NewCompleter(digitalocean.NewActions(s.Actions), job.WithPollConfig(poll))
			ips := digitalocean.NewReservedIPs(s, completer)

			ip, err := ips.Obtain(cmd.Context(), region)
			if err != nil {
				return fmt.Errorf("error obtaining reserved IP: %w", err)
			}
			if dropletID > 0 {
				if err := ips.Assign(cmd.Context(), ip.IP, dropletID); err != nil {
					return fmt.Errorf("error assigning reserved IP: %w", err)
				}
			}
			return printJSON(cmd, map[string]interface{}{
				"ip":      ip.IP,
				"region":  region,
				"droplet": dropletID,
			})
		},
	}
	cmd.Flags().String("region", "", "Region slug")
	cmd.Flags().Int("droplet", 0, "Droplet to assign the IP to")
	_ = cmd.MarkFlagRequired("region")
	return cmd
}

func ensureKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ensure",
		Short: "Register an SSH key or reuse the one already registered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")
			path, _ := cmd.Flags().GetString("public-key-file")

			data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
			if err != nil {
				return fmt.Errorf("error reading public key: %w", err)
			}

			s, _, err := doServices(cmd)
			if err != nil {
				return err
			}
			key, err := digitalocean.NewKeys(s).Ensure(cmd.Context(), name, strings.TrimSpace(string(data)))
			if err != nil {
				return fmt.Errorf("error ensuring key: %w", err)
			}
			return printJSON(cmd, map[string]interface{}{
				"id":          key.ID,
				"name":        key.Name,
				"fingerprint": key.Fingerprint,
			})
		},
	}
	cmd.Flags().String("name", "", "Key name")
	cmd.Flags().String("public-key-file", "", "File holding the public key in authorized_keys format")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("public-key-file")
	return cmd
}

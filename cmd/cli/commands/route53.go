package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/celestiaorg/cloudjob/internal/compute/route53"
	"github.com/celestiaorg/cloudjob/internal/job"
)

// GetRoute53Cmd returns the route53 command
func GetRoute53Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "route53",
		Short: "Run Route53 record changes to completion",
	}
	cmd.AddCommand(upsertRecordCmd())
	return cmd
}

func upsertRecordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Upsert a record set and wait until the change is in sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := route53.RecordRequest{}
			req.ZoneID, _ = cmd.Flags().GetString("zone")
			req.Name, _ = cmd.Flags().GetString("name")
			req.Type, _ = cmd.Flags().GetString("type")
			req.TTL, _ = cmd.Flags().GetInt64("ttl")
			req.Values, _ = cmd.Flags().GetStringSlice("value")
			noWait, _ := cmd.Flags().GetBool("no-wait")

			if err := req.Validate(); err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("error loading configuration: %w", err)
			}
			client, err := route53.NewFromConfig(cmd.Context(), &cfg.AWS, job.WithPollConfig(cfg.Poll))
			if err != nil {
				return err
			}

			var h job.Handle
			if noWait {
				h, err = client.Upsert(cmd.Context(), req)
			} else {
				h, err = client.UpsertAndWait(cmd.Context(), req)
			}
			if err != nil {
				return fmt.Errorf("error upserting record: %w", err)
			}
			return printJSON(cmd, map[string]interface{}{
				"name":   h.ResourceID,
				"change": h.JobID,
				"synced": !noWait,
			})
		},
	}
	cmd.Flags().String("zone", "", "Hosted zone id")
	cmd.Flags().String("name", "", "Record name")
	cmd.Flags().String("type", "A", "Record type")
	cmd.Flags().Int64("ttl", 300, "Record TTL in seconds")
	cmd.Flags().StringSlice("value", nil, "Record value, repeatable")
	cmd.Flags().Bool("no-wait", false, "Print the change id without waiting for it")
	return cmd
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/celestiaorg/cloudjob/internal/compute"
	"github.com/celestiaorg/cloudjob/internal/db/models"
	"github.com/celestiaorg/cloudjob/internal/job"
	"github.com/celestiaorg/cloudjob/internal/types"
	"github.com/celestiaorg/cloudjob/pkg/api/v1/client"
)

// jobOutput represents the filtered output for a job
type jobOutput struct {
	JobID      string `json:"job_id"`
	Provider   string `json:"provider"`
	Status     string `json:"status"`
	ResultKind string `json:"result_kind,omitempty"`
	Error      string `json:"error,omitempty"`
}

// jobListOutput represents the filtered output for a list of jobs
type jobListOutput struct {
	Jobs  []jobOutput `json:"jobs"`
	Total int64       `json:"total"`
}

func toJobOutput(j models.TrackedJob) jobOutput {
	return jobOutput{
		JobID:      j.JobID,
		Provider:   j.Provider.String(),
		Status:     j.Status.String(),
		ResultKind: j.ResultKind,
		Error:      j.ErrorText,
	}
}

// GetJobsCmd returns the jobs command
func GetJobsCmd() *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and await provider jobs",
	}
	jobsCmd.AddCommand(listJobsCmd(), getJobCmd(), awaitJobCmd(), waitJobCmd())
	return jobsCmd
}

func listJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, _ := cmd.Flags().GetInt("page")
			status, _ := cmd.Flags().GetString("status")
			provider, _ := cmd.Flags().GetString("provider")

			if status != "" {
				if _, err := models.ParseJobStatus(status); err != nil {
					return err
				}
			}

			response, err := apiClient.GetJobs(cmd.Context(), client.JobListParams{
				Page:     page,
				Status:   status,
				Provider: provider,
			})
			if err != nil {
				return fmt.Errorf("error fetching jobs: %w", err)
			}

			output := jobListOutput{
				Jobs:  make([]jobOutput, len(response.Jobs)),
				Total: response.Pagination.Total,
			}
			for i, j := range response.Jobs {
				output.Jobs[i] = toJobOutput(j)
			}
			return printJSON(cmd, output)
		},
	}
	cmd.Flags().IntP("page", "p", 1, "Page of results")
	cmd.Flags().String("status", "", "Filter jobs by status")
	cmd.Flags().String("provider", "", "Filter jobs by provider")
	return cmd
}

func getJobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <job-id>",
		Short: "Get a tracked job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tracked, err := apiClient.GetJob(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("error fetching job: %w", err)
			}
			return printJSON(cmd, toJobOutput(tracked))
		},
	}
}

func awaitJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "await <job-id>",
		Short: "Ask the API server to wait for a job and print its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, _ := cmd.Flags().GetString("provider")
			resourceID, _ := cmd.Flags().GetString("resource-id")

			res, err := apiClient.AwaitJob(cmd.Context(), args[0], types.AwaitJobRequest{
				Provider:   models.ProviderID(provider),
				ResourceID: resourceID,
			})
			if err != nil {
				return fmt.Errorf("error awaiting job: %w", err)
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().String("provider", "", "Provider that owns the job")
	cmd.Flags().String("resource-id", "", "Resource the job acts on")
	_ = cmd.MarkFlagRequired("provider")
	return cmd
}

func waitJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wait <job-id>",
		Short: "Poll a job directly against its provider without the API server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, _ := cmd.Flags().GetString("provider")
			resourceID, _ := cmd.Flags().GetString("resource-id")

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("error loading configuration: %w", err)
			}
			completer, err := compute.NewCompleter(cmd.Context(), models.ProviderID(provider), cfg)
			if err != nil {
				return err
			}

			res, err := completer.Complete(cmd.Context(), job.Handle{ResourceID: resourceID, JobID: args[0]})
			if err != nil {
				return fmt.Errorf("error waiting for job: %w", err)
			}
			return printJSON(cmd, types.AwaitJobResult{
				JobID:      args[0],
				ResourceID: resourceID,
				Provider:   models.ProviderID(provider),
				Kind:       res.Kind.String(),
				Result:     res.Value,
			})
		},
	}
	cmd.Flags().String("provider", "", "Provider that owns the job")
	cmd.Flags().String("resource-id", "", "Resource the job acts on")
	_ = cmd.MarkFlagRequired("provider")
	return cmd
}

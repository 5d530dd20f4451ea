// Package commands implements the cloudjob command line interface
package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/celestiaorg/cloudjob/internal/config"
	"github.com/celestiaorg/cloudjob/internal/constants"
	"github.com/celestiaorg/cloudjob/internal/logger"
	"github.com/celestiaorg/cloudjob/pkg/api/v1/client"
	"github.com/celestiaorg/cloudjob/pkg/api/v1/routes"
)

// flag names
const (
	flagServerAddress = "server-address"
	flagLogLevel      = "log-level"
)

var (
	// apiClient is the shared API client instance
	apiClient client.Client
	// serverAddress holds the target API server address. Flag parsing sets this.
	serverAddress string
	// loadConfig reads the provider configuration for the local commands
	loadConfig = config.Load
)

// initClient initializes the API client
func initClient() error {
	var err error
	opts := client.DefaultOptions()
	opts.BaseURL = serverAddress

	apiClient, err = client.NewClient(opts)
	return err
}

func init() {
	// PersistentPreRunE handles the env var override
	RootCmd.PersistentFlags().StringVarP(&serverAddress, flagServerAddress, "s", routes.DefaultBaseURL,
		"Address of the cloudjob API server (env: "+constants.EnvServerAddress+")")
	RootCmd.PersistentFlags().String(flagLogLevel, "", "Log level (env: "+constants.EnvLogLevel+")")

	RootCmd.AddCommand(GetJobsCmd())
	RootCmd.AddCommand(GetCloudStackCmd())
	RootCmd.AddCommand(GetDigitalOceanCmd())
	RootCmd.AddCommand(GetRoute53Cmd())
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "cloudjob",
	Short: "cloudjob CLI - drive asynchronous cloud jobs to completion",
	Long: `cloudjob waits for asynchronous provider jobs, either through the cloudjob API
server or directly against CloudStack, DigitalOcean and Route53.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level, _ := cmd.Flags().GetString(flagLogLevel)
		if level == "" {
			level = os.Getenv(constants.EnvLogLevel)
		}
		logger.SetOutput(cmd.ErrOrStderr())
		logger.SetLevel(level)

		// Flag > Env Var > Default
		if !cmd.Flags().Changed(flagServerAddress) {
			if envAddr := os.Getenv(constants.EnvServerAddress); envAddr != "" {
				serverAddress = envAddr
			}
		}
		if serverAddress == "" {
			return fmt.Errorf("server address cannot be empty")
		}
		return initClient()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return RootCmd.Execute()
}

// printJSON pretty prints v to the command's output
func printJSON(cmd *cobra.Command, v interface{}) error {
	prettyJSON, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error formatting response: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(prettyJSON))
	return err
}

package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/inklift/inklift/pkg/registry"
)

var statusCmd = &cobra.Command{
	Use:   "status <ref>",
	Short: "Show the current state of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var job registry.Job
		if err := apiDo(cmd.Context(), http.MethodGet, "/api/v1/jobs/"+args[0], &job); err != nil {
			return err
		}

		fmt.Printf("ref:       %s\n", job.Ref)
		fmt.Printf("workflow:  %s\n", job.WorkflowID)
		fmt.Printf("region:    %s\n", job.Region.ID)
		fmt.Printf("status:    %s\n", job.Status)
		if job.ProviderStatus != "" {
			fmt.Printf("provider:  %s\n", job.ProviderStatus)
		}
		if job.Progress != nil {
			fmt.Printf("progress:  %d%%\n", *job.Progress)
		}
		if job.ErrorMessage != "" {
			fmt.Printf("error:     %s\n", job.ErrorMessage)
		}
		for _, u := range job.ResultURLs {
			fmt.Printf("result:    %s\n", u)
		}
		return nil
	},
}

func init() {
	addServerFlag(statusCmd)
	rootCmd.AddCommand(statusCmd)
}

package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var retryCmd = &cobra.Command{
	Use:   "retry <ref>",
	Short: "Resubmit a failed job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp actionResponse
		if err := apiDo(cmd.Context(), http.MethodPost, "/api/v1/jobs/"+args[0]+"/retry", &resp); err != nil {
			return err
		}
		if !resp.OK {
			fmt.Printf("job %s is not in a failed state; nothing to retry\n", resp.Ref)
			return nil
		}
		fmt.Printf("job %s resubmitted\n", resp.Ref)
		return nil
	},
}

func init() {
	addServerFlag(retryCmd)
	rootCmd.AddCommand(retryCmd)
}

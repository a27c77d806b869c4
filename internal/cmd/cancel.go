package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// actionResponse mirrors the cancel/retry API envelope.
type actionResponse struct {
	Ref string `json:"ref"`
	OK  bool   `json:"ok"`
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <ref>",
	Short: "Cancel a pending or running job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp actionResponse
		if err := apiDo(cmd.Context(), http.MethodPost, "/api/v1/jobs/"+args[0]+"/cancel", &resp); err != nil {
			return err
		}
		if !resp.OK {
			fmt.Printf("job %s is already terminal; nothing to cancel\n", resp.Ref)
			return nil
		}
		fmt.Printf("job %s cancelled\n", resp.Ref)
		return nil
	},
}

func init() {
	addServerFlag(cancelCmd)
	rootCmd.AddCommand(cancelCmd)
}

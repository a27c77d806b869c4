package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inklift/inklift/internal/config"
	"github.com/inklift/inklift/pkg/region"
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List the known provider regions",
	Run: func(cmd *cobra.Command, args []string) {
		dir := region.Defaults(config.DefaultRegion(cfgFile))
		for _, r := range dir.List() {
			marker := " "
			if r.ID == dir.DefaultID() {
				marker = "*"
			}
			fmt.Printf("%s %-8s %-24s %s\n", marker, r.ID, r.DisplayName, r.APIBaseURL)
		}
	},
}

func init() {
	rootCmd.AddCommand(regionsCmd)
}

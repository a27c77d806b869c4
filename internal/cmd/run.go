package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inklift/inklift/internal/observability"
	"github.com/inklift/inklift/pkg/manifest"
	"github.com/inklift/inklift/pkg/provider"
)

var runManifestPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Submit a workflow from a manifest and wait for its results",
	Long: `Runs a single job end to end: uploads the manifest's input files,
submits the workflow with the manifest overrides, waits for the job to
reach a terminal state, and prints the output image URLs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		m, err := manifest.Load(runManifestPath)
		if err != nil {
			return err
		}

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}

		overrides := m.FieldOverrides()

		for _, in := range m.Inputs {
			data, err := os.ReadFile(in.Path)
			if err != nil {
				return fmt.Errorf("read input %s: %w", in.Path, err)
			}
			fileRef, err := a.orch.Upload(ctx, m.Region, filepath.Base(in.Path), data)
			if err != nil {
				return fmt.Errorf("upload input %s: %w", in.Path, err)
			}
			overrides = append(overrides, provider.FieldOverride{
				NodeID:     in.NodeID,
				FieldName:  in.FieldName,
				FieldValue: fileRef,
			})
			observability.CLILogger.Info("input uploaded",
				zap.String("path", in.Path),
				zap.String("file_ref", fileRef))
		}

		ref, err := a.orch.Submit(m.WorkflowID, overrides, m.Region)
		if err != nil {
			return err
		}
		observability.CLILogger.Info("job submitted",
			zap.String("ref", ref),
			zap.String("workflow_id", m.WorkflowID))

		urls, err := a.orch.Wait(ctx, ref)
		if err != nil {
			return err
		}
		for _, u := range urls {
			fmt.Println(u)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runManifestPath, "manifest", "m", "", "Path to job manifest (YAML)")
	_ = runCmd.MarkFlagRequired("manifest")
	rootCmd.AddCommand(runCmd)
}

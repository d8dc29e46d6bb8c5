package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Smooother/nivo-web-sub001/internal/export"
)

var exportDir string

var exportCmd = &cobra.Command{
	Use:   "export <job-id>",
	Short: "Export a job's companies and financials to an XLSX workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		jobID := args[0]

		env, err := initEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		store, err := env.mgr.Acquire(ctx, jobID)
		if err != nil {
			return err
		}
		defer env.mgr.Release(jobID) //nolint:errcheck

		dir := exportDir
		if dir == "" {
			dir = cfg.Export.Dir
		}

		path, err := export.NewWriter(store, dir).WriteWorkbook(ctx, jobID)
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "output directory (default from config)")
	rootCmd.AddCommand(exportCmd)
}

package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Smooother/nivo-web-sub001/internal/pipeline"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Inspect and control pipeline jobs",
}

var jobStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show a job's state and entity statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		return printStatus(cmd.Context(), env.ctrl, args[0])
	},
}

var jobResetErrorsCmd = &cobra.Command{
	Use:   "reset-errors <job-id>",
	Short: "Flip errored items back to pending so a resume retries them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.ctrl.ResetErrors(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("reset %d items to pending\n", n)
		return nil
	},
}

// controlCommand builds one lifecycle subcommand. resume and restart bring
// the job back to running inside this process, so they block until it
// finishes again.
func controlCommand(action, short string, blocks bool) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <job-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			env, err := initEnv()
			if err != nil {
				return err
			}
			defer env.Close()

			jobID := args[0]
			if _, err := env.ctrl.Control(ctx, jobID, action); err != nil {
				return err
			}

			if blocks {
				zap.L().Info("job running", zap.String("job_id", jobID), zap.String("action", action))
				return env.waitAndReport(ctx, jobID)
			}
			return printStatus(ctx, env.ctrl, jobID)
		},
	}
}

func init() {
	jobCmd.AddCommand(jobStatusCmd)
	jobCmd.AddCommand(jobResetErrorsCmd)
	jobCmd.AddCommand(controlCommand(pipeline.ActionStop, "Stop a job; restart later starts over from stage one", false))
	jobCmd.AddCommand(controlCommand(pipeline.ActionPause, "Pause a running job at its next page or chunk boundary", false))
	jobCmd.AddCommand(controlCommand(pipeline.ActionResume, "Resume a paused or stopped job from its inferred stage", true))
	jobCmd.AddCommand(controlCommand(pipeline.ActionRestart, "Restart a job from a blank stage-one cursor", true))
	rootCmd.AddCommand(jobCmd)
}

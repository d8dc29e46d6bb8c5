package main

import (
	"context"
	"encoding/json"
	"os"

	"go.uber.org/zap"

	"github.com/Smooother/nivo-web-sub001/internal/model"
	"github.com/Smooother/nivo-web-sub001/internal/pipeline"
	"github.com/Smooother/nivo-web-sub001/internal/staging"
	"github.com/Smooother/nivo-web-sub001/pkg/allabolag"
)

// appEnv bundles the long-lived components every command needs.
type appEnv struct {
	mgr  *staging.Manager
	ctrl *pipeline.Controller
}

func initEnv() (*appEnv, error) {
	mgr, err := staging.NewManager(cfg.Staging.Driver, cfg.Staging.DataDir, cfg.Staging.DatabaseURL)
	if err != nil {
		return nil, err
	}

	client := allabolag.NewClient(
		allabolag.WithBaseURL(cfg.Registry.BaseURL),
		allabolag.WithRateLimit(cfg.Registry.RatePerSec),
	)

	ctrl := pipeline.NewController(mgr, client, pipeline.Delays{
		Page:  cfg.Registry.PageDelay(),
		Chunk: cfg.Registry.ChunkDelay(),
	})

	return &appEnv{mgr: mgr, ctrl: ctrl}, nil
}

func (e *appEnv) Close() {
	e.ctrl.Shutdown()
	if err := e.mgr.Close(); err != nil {
		zap.L().Warn("closing staging manager", zap.Error(err))
	}
}

// waitAndReport blocks until the job's goroutine exits, shutting down early
// when the context is cancelled, then prints the final job state to stdout.
func (e *appEnv) waitAndReport(ctx context.Context, jobID string) error {
	done := make(chan struct{})
	go func() {
		e.ctrl.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		zap.L().Info("interrupt received, stopping job", zap.String("job_id", jobID))
		e.ctrl.Shutdown()
		<-done
	case <-done:
	}

	return printStatus(context.Background(), e.ctrl, jobID)
}

func printStatus(ctx context.Context, ctrl *pipeline.Controller, jobID string) error {
	job, stats, err := ctrl.Status(ctx, jobID)
	if err != nil {
		return err
	}

	out := struct {
		Job        *model.Job           `json:"job"`
		Statistics *model.JobStatistics `json:"statistics"`
	}{job, stats}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

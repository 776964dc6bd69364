package config

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-pipe/logging"
	"github.com/RyanBlaney/sonido-pipe/pipeline"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

// Job is one pipeline applied to one input.
type Job struct {
	Name     string
	Pipeline *Pipeline
	Input    *stream.Stream
}

// Run builds j's chain for the input sample rate and transforms the input.
func (j Job) Run(ctx context.Context) (*stream.Stream, error) {
	chain, err := Build(j.Pipeline, j.Input.SampleRate)
	if err != nil {
		return nil, err
	}
	cfg, err := j.Pipeline.DriverConfig()
	if err != nil {
		return nil, err
	}
	return pipeline.Transform(ctx, chain, cfg, j.Input)
}

// RunAll runs independent jobs concurrently, at most limit at a time when
// limit is positive. Outputs are returned in job order. The first failure
// cancels the jobs still running.
func RunAll(ctx context.Context, jobs []Job, limit int) ([]*stream.Stream, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "runner",
	})
	outs := make([]*stream.Stream, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, job := range jobs {
		g.Go(func() error {
			out, err := job.Run(gctx)
			if err != nil {
				logger.Error(err, "Job failed", logging.Fields{"job": job.Name})
				return fmt.Errorf("job %q: %w", job.Name, err)
			}
			logger.Debug("Job done", logging.Fields{
				"job":  job.Name,
				"rows": out.Num,
				"dim":  out.Dim,
			})
			outs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outs, nil
}

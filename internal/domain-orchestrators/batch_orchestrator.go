package orchestrators

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ochairo/smithy/internal/domain/entities"
	"github.com/ochairo/smithy/internal/domain/interfaces"
)

// ProjectRunner runs the pipeline for one fully-resolved request.
type ProjectRunner interface {
	Run(ctx context.Context, req *entities.PipelineRequest) *entities.ProjectReport
}

// BatchOrchestrator fans the pipeline out over many projects with bounded
// parallelism. Log paths and working directories are project-scoped, so
// workers share nothing but the tool cache.
type BatchOrchestrator struct {
	runner   ProjectRunner
	parallel int
	log      interfaces.Logger
}

// NewBatchOrchestrator creates a batch orchestrator. A parallel value below
// one runs sequentially.
func NewBatchOrchestrator(runner ProjectRunner, parallel int, log interfaces.Logger) *BatchOrchestrator {
	if parallel < 1 {
		parallel = 1
	}
	if log == nil {
		log = &interfaces.NoOpLogger{}
	}
	return &BatchOrchestrator{runner: runner, parallel: parallel, log: log}
}

// RunAll processes every request independently and partitions the outcomes
// by project name, preserving input order. One project's failure never
// aborts the batch.
func (o *BatchOrchestrator) RunAll(ctx context.Context, reqs []*entities.PipelineRequest) *entities.BatchReport {
	start := time.Now()
	reports := make([]*entities.ProjectReport, len(reqs))

	var g errgroup.Group
	g.SetLimit(o.parallel)
	for i, req := range reqs {
		g.Go(func() error {
			reports[i] = o.runner.Run(ctx, req)
			return nil
		})
	}
	//nolint:errcheck // Workers never return errors; failures live in the reports
	_ = g.Wait()

	batch := &entities.BatchReport{
		GeneratedAt: time.Now().UTC(),
		Total:       len(reports),
		Succeeded:   []string{},
		Failed:      []string{},
		Reports:     reports,
		Duration:    time.Since(start),
	}
	for _, report := range reports {
		if report.Succeeded() {
			batch.Succeeded = append(batch.Succeeded, report.Name)
		} else {
			batch.Failed = append(batch.Failed, report.Name)
		}
	}

	o.log.Info("batch finished",
		interfaces.F("total", batch.Total),
		interfaces.F("succeeded", len(batch.Succeeded)),
		interfaces.F("failed", len(batch.Failed)))
	return batch
}

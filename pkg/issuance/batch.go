// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-certslot.
//
// go-certslot is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package issuance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jeremyhahn/go-certslot/pkg/adapters/logger"
	"github.com/jeremyhahn/go-certslot/pkg/correlation"
	"github.com/jeremyhahn/go-certslot/pkg/metrics"
)

// Result collects the outcomes of a batch in request order.
type Result struct {
	BatchID  string
	Outcomes []*Outcome
}

// Succeeded returns the number of stored certificates.
func (r *Result) Succeeded() int {
	n := 0
	for _, out := range r.Outcomes {
		if out.OK() {
			n++
		}
	}
	return n
}

// Failed returns the number of failed requests.
func (r *Result) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}

// Err joins the errors of all failed requests, or returns nil.
func (r *Result) Err() error {
	var errs []error
	for _, out := range r.Outcomes {
		if out.Err != nil {
			errs = append(errs, out.Err)
		}
	}
	return errors.Join(errs...)
}

// IssueBatch runs reqs one after another against ca. A failed request does
// not stop the batch. Requests without an ID are named by their index.
func (o *Orchestrator) IssueBatch(ctx context.Context, ca *Authority, reqs []*Request) *Result {
	batchID := correlation.NewID()
	ctx = correlation.WithCorrelationID(ctx, batchID)
	res := &Result{BatchID: batchID, Outcomes: make([]*Outcome, 0, len(reqs))}

	start := time.Now()
	o.logger.InfoContext(ctx, "batch started", logger.Int("requests", len(reqs)))

	for i, req := range reqs {
		id := fmt.Sprintf("req-%d", i)
		if req != nil && req.ID != "" {
			id = req.ID
		}
		res.Outcomes = append(res.Outcomes, o.issue(ctx, ca, req, id))
	}

	status := metrics.StatusSuccess
	if res.Failed() > 0 {
		status = metrics.StatusError
	}
	backendType := "none"
	if ca != nil {
		backendType = ca.slot.Type().String()
	}
	metrics.RecordOperation(metrics.OpBatch, backendType, status, time.Since(start).Seconds())
	o.logger.InfoContext(ctx, "batch finished",
		logger.Int("succeeded", res.Succeeded()),
		logger.Int("failed", res.Failed()),
		logger.Duration("duration", time.Since(start)))
	return res
}

// Job is a batch for one authority.
type Job struct {
	Authority *Authority
	Requests  []*Request
}

// Pipeline runs the batches of independent authorities concurrently, at
// most Config.Concurrency at a time. Calls into one slot stay serialized
// by the slot itself. Results are in job order.
func (o *Orchestrator) Pipeline(ctx context.Context, jobs []Job) ([]*Result, error) {
	for i, job := range jobs {
		if job.Authority == nil {
			return nil, fmt.Errorf("job %d: %w", i, ErrAuthorityRequired)
		}
	}

	results := make([]*Result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			results[i] = o.IssueBatch(gctx, job.Authority, job.Requests)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

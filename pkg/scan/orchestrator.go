// Package scan schedules inventory collection per host: scans for distinct
// hosts run fully in parallel, scans for one host are strictly serialized.
package scan

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"driftwatch/pkg/collector"
	"driftwatch/pkg/model"
	"driftwatch/pkg/store"
)

// ErrConflict is returned when a scan is already pending or running for the
// host. The running job is left untouched.
var ErrConflict = errors.New("scan already in progress for host")

// DefaultDeadline bounds a single scan run.
const DefaultDeadline = 10 * time.Minute

// Collector is the remote inventory source. The production implementation
// lives in pkg/collector; tests substitute a stub.
type Collector interface {
	Collect(ctx context.Context, host model.Host) (*model.Snapshot, error)
}

// Orchestrator owns the scan job lifecycle and the per-host locks.
type Orchestrator struct {
	store     store.Store
	collector Collector
	locks     *hostLocks
	deadline  time.Duration
	log       zerolog.Logger
	wg        sync.WaitGroup
}

func NewOrchestrator(st store.Store, col Collector, deadline time.Duration, log zerolog.Logger) *Orchestrator {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Orchestrator{
		store:     st,
		collector: col,
		locks:     newHostLocks(),
		deadline:  deadline,
		log:       log.With().Str("component", "orchestrator").Logger(),
	}
}

// Trigger starts a scan for the host and returns the new job immediately.
// Lock acquisition and the pending→running transition happen before the
// collector goroutine is launched, so a second Trigger for the same host
// observes ErrConflict until the first job is terminal.
func (o *Orchestrator) Trigger(hostID uint) (model.ScanJob, error) {
	host, err := o.store.Host(hostID)
	if err != nil {
		return model.ScanJob{}, err
	}
	if !o.locks.TryAcquire(hostID) {
		return model.ScanJob{}, ErrConflict
	}

	job := model.ScanJob{
		HostID:    hostID,
		Status:    model.StatusPending,
		StartedAt: time.Now(),
	}
	if err := o.store.CreateJob(&job); err != nil {
		o.locks.Release(hostID)
		return model.ScanJob{}, err
	}
	job.Status = model.StatusRunning
	if err := o.store.UpdateJob(&job); err != nil {
		o.failJob(&job, "failed to mark scan running: "+err.Error())
		o.locks.Release(hostID)
		return model.ScanJob{}, err
	}

	o.log.Info().Uint("host", hostID).Uint("job", job.ID).Msg("scan started")
	o.wg.Add(1)
	go o.run(host, job)
	return job, nil
}

// Running reports whether a scan is currently in flight for the host.
func (o *Orchestrator) Running(hostID uint) bool {
	return o.locks.Held(hostID)
}

// Wait blocks until all in-flight scans have reached a terminal state.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) run(host model.Host, job model.ScanJob) {
	defer o.wg.Done()
	defer o.locks.Release(host.ID)

	ctx, cancel := context.WithTimeout(context.Background(), o.deadline)
	defer cancel()

	snap, err := o.collector.Collect(ctx, host)

	now := time.Now()
	job.FinishedAt = &now
	if err != nil {
		detail := collector.AsFailure(err)
		job.Status = model.StatusFailed
		job.Failure = &detail
		o.log.Warn().Uint("host", host.ID).Uint("job", job.ID).Str("error", detail.Error).Msg("scan failed")
	} else {
		job.Status = model.StatusSuccess
		job.Snapshot = snap
		o.log.Info().Uint("host", host.ID).Uint("job", job.ID).Msg("scan succeeded")
	}

	if uerr := o.store.UpdateJob(&job); uerr != nil {
		o.log.Error().Err(uerr).Uint("job", job.ID).Msg("failed to persist scan result")
		detail := "failed to persist scan result: " + uerr.Error()
		if job.Failure != nil {
			detail = job.Failure.Error + "; " + detail
		}
		o.failJob(&job, detail)
	}
}

// failJob drives a job terminal after a store error so the persisted row
// cannot linger in pending or running and block the host forever. Best
// effort; must run before the host lock is released.
func (o *Orchestrator) failJob(job *model.ScanJob, reason string) {
	now := time.Now()
	job.Status = model.StatusFailed
	job.FinishedAt = &now
	job.Snapshot = nil
	job.Failure = &model.FailureDetail{Error: reason}
	if err := o.store.UpdateJob(job); err != nil {
		o.log.Error().Err(err).Uint("job", job.ID).Msg("failed to persist terminal job state")
	}
}

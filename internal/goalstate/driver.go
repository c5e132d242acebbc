// Package goalstate drives convergence between each instance's actual state
// and its goal state. One logical reconciliation unit exists per instance;
// units for different instances run fully in parallel.
package goalstate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"taskplane/internal/cache"
	"taskplane/internal/executor"
	"taskplane/internal/store"
	"taskplane/internal/task"
)

// Store combines the persistence interfaces the driver needs.
type Store interface {
	BeginTx(ctx context.Context) (store.Tx, error)
	store.JobStore
	store.TaskStore
	store.EventLedger
}

// Config tunes the driver.
type Config struct {
	// SweepInterval is how often every known instance is re-reconciled to
	// catch missed notifications and recover after a crash.
	SweepInterval time.Duration

	// ActionTimeout bounds each execution-layer call. On timeout the
	// failure is recorded and the next sweep retries.
	ActionTimeout time.Duration
}

type instanceRef struct {
	jobID      uuid.UUID
	instanceID uint32
}

// Driver owns the reconciliation loops, the write path through the state
// machine, and the write-ahead event/runtime commit.
type Driver struct {
	store  Store
	cache  *cache.TaskCache
	exec   executor.ExecutionLayer
	logger *slog.Logger
	config Config

	// Known instances, swept periodically. Guarded by mu.
	mu        sync.Mutex
	instances map[instanceRef]struct{}

	// Per-task health policies; replaced when a new run starts.
	healthMu sync.Mutex
	health   map[string]task.HealthPolicy

	notify chan instanceRef

	transitions metric.Int64Counter
	actions     metric.Int64Counter
	failures    metric.Int64Counter
}

// New creates a driver. Run must be called for sweeps and notifications to
// be processed.
func New(s Store, c *cache.TaskCache, exec executor.ExecutionLayer, logger *slog.Logger, cfg Config) *Driver {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = 10 * time.Second
	}

	meter := otel.Meter("taskplane.goalstate")
	transitions, _ := meter.Int64Counter("taskplane.transitions.applied",
		metric.WithDescription("Accepted actual-state transitions"))
	actions, _ := meter.Int64Counter("taskplane.reconcile.actions",
		metric.WithDescription("Corrective actions issued by the reconciler"))
	failures, _ := meter.Int64Counter("taskplane.reconcile.failures",
		metric.WithDescription("Execution-layer action failures recorded by the reconciler"))

	return &Driver{
		store:       s,
		cache:       c,
		exec:        exec,
		logger:      logger,
		config:      cfg,
		instances:   make(map[instanceRef]struct{}),
		health:      make(map[string]task.HealthPolicy),
		notify:      make(chan instanceRef, 1024),
		transitions: transitions,
		actions:     actions,
		failures:    failures,
	}
}

// Run processes reconcile notifications and periodic sweeps until the
// context is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ref := <-d.notify:
			if err := d.Reconcile(ctx, ref.jobID, ref.instanceID); err != nil {
				d.logger.Error("reconcile failed",
					"job_id", ref.jobID, "instance_id", ref.instanceID, "error", err)
			}
		case <-ticker.C:
			d.sweep(ctx)
		}
	}
}

// Recover re-registers every persisted instance after a controller restart.
// The instances load lazily into the cache on their first reconciliation.
func (d *Driver) Recover(ctx context.Context) error {
	jobs, err := d.store.ListJobs(ctx)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		for i := uint32(0); i < job.InstanceCount; i++ {
			d.track(job.JobID, i)
		}
	}
	d.logger.Info("recovered instance registry", "jobs", len(jobs))
	return nil
}

// sweep reconciles every known instance. Failures are logged and retried on
// the next sweep; the reconciler never raises errors to callers.
func (d *Driver) sweep(ctx context.Context) {
	d.mu.Lock()
	refs := make([]instanceRef, 0, len(d.instances))
	for ref := range d.instances {
		refs = append(refs, ref)
	}
	d.mu.Unlock()

	for _, ref := range refs {
		if ctx.Err() != nil {
			return
		}
		if err := d.Reconcile(ctx, ref.jobID, ref.instanceID); err != nil {
			d.logger.Error("sweep reconcile failed",
				"job_id", ref.jobID, "instance_id", ref.instanceID, "error", err)
		}
	}
}

// track registers an instance for sweeping.
func (d *Driver) track(jobID uuid.UUID, instanceID uint32) {
	d.mu.Lock()
	d.instances[instanceRef{jobID, instanceID}] = struct{}{}
	d.mu.Unlock()
}

// poke schedules an asynchronous reconciliation for the instance. Dropping
// the notification is fine: the periodic sweep covers it.
func (d *Driver) poke(jobID uuid.UUID, instanceID uint32) {
	select {
	case d.notify <- instanceRef{jobID, instanceID}:
	default:
	}
}

func (d *Driver) countAction(ctx context.Context, kind string) {
	d.actions.Add(ctx, 1, metric.WithAttributes(attribute.String("action", kind)))
}

func (d *Driver) countFailure(ctx context.Context, kind string) {
	d.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("action", kind)))
}

// commit persists the write-ahead pair: the event is appended before the
// runtime update in the same transaction, so a reader never observes a
// runtime state with no matching ledger entry.
func (d *Driver) commit(ctx context.Context, jobID uuid.UUID, instanceID uint32, runtime *task.RuntimeInfo, event *task.PodEvent) error {
	tx, err := d.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if event != nil {
		if err := d.store.AppendEvent(ctx, tx, jobID, instanceID, event); err != nil {
			return err
		}
	}
	if err := d.store.UpdateRuntime(ctx, tx, jobID, instanceID, runtime); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	d.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("state", string(runtime.State))))
	return nil
}

// loadLocked fills the cache view from persistent storage when it is empty.
// Must be called while holding the instance lock.
func (d *Driver) loadLocked(ctx context.Context, v *cache.View, jobID uuid.UUID, instanceID uint32) error {
	if v.Runtime != nil {
		return nil
	}
	info, err := d.store.GetTask(ctx, jobID, instanceID)
	if err != nil {
		return err
	}
	v.Runtime = info.Runtime
	v.Config = info.Config
	d.track(jobID, instanceID)
	return nil
}

// healthPolicyFor returns the per-run health policy, creating it from the
// task config on first use.
func (d *Driver) healthPolicyFor(taskID string, config *task.TaskConfig) task.HealthPolicy {
	d.healthMu.Lock()
	defer d.healthMu.Unlock()

	if p, ok := d.health[taskID]; ok {
		return p
	}
	var maxFailures uint32
	if config != nil && config.HealthCheck != nil {
		maxFailures = config.HealthCheck.MaxConsecutiveFailures
	}
	p := task.NewThresholdPolicy(maxFailures)
	d.health[taskID] = p
	return p
}

func (d *Driver) dropHealthPolicy(taskID string) {
	d.healthMu.Lock()
	delete(d.health, taskID)
	d.healthMu.Unlock()
}

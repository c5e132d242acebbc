package handlers

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"taskplane/internal/cache"
	"taskplane/internal/executor"
	"taskplane/internal/goalstate"
	"taskplane/internal/store"
	"taskplane/internal/task"
)

// Mock Store
type mockStore struct {
	pingErr error

	// Job Hooks
	getJobResp   *task.JobConfig
	getJobErr    error
	createJobErr error
	updateJobErr error

	// Task Hooks
	getTaskResp   *task.TaskInfo
	getTaskErr    error
	listTasksResp map[uint32]*task.TaskInfo
	listTasksErr  error

	// Ledger Hooks
	getEventsResp []*task.PodEvent
	getEventsErr  error
	deleteErr     error

	// Spies (to verify arguments passed by handlers)
	capturedLimit   uint32
	capturedRunID   *uint64
	deletedUpTo     uint64
	capturedVersion uint64
	capturedConfig  *task.TaskConfig
}

func (m *mockStore) Ping(ctx context.Context) error { return m.pingErr }

func (m *mockStore) CreateJob(ctx context.Context, tx store.DBTransaction, job *task.JobConfig) error {
	return m.createJobErr
}

func (m *mockStore) GetJob(ctx context.Context, id uuid.UUID) (*task.JobConfig, error) {
	return m.getJobResp, m.getJobErr
}

func (m *mockStore) ListJobs(ctx context.Context) ([]*task.JobConfig, error) {
	return nil, nil
}

func (m *mockStore) UpdateJobVersion(ctx context.Context, tx store.DBTransaction, id uuid.UUID, version uint64, config *task.TaskConfig) error {
	m.capturedVersion = version
	m.capturedConfig = config
	return m.updateJobErr
}

func (m *mockStore) CreateTask(ctx context.Context, tx store.DBTransaction, info *task.TaskInfo) error {
	return nil
}

func (m *mockStore) GetTask(ctx context.Context, jobID uuid.UUID, instanceID uint32) (*task.TaskInfo, error) {
	return m.getTaskResp, m.getTaskErr
}

func (m *mockStore) ListTasks(ctx context.Context, jobID uuid.UUID, from, to uint32) (map[uint32]*task.TaskInfo, error) {
	return m.listTasksResp, m.listTasksErr
}

func (m *mockStore) UpdateRuntime(ctx context.Context, tx store.DBTransaction, jobID uuid.UUID, instanceID uint32, runtime *task.RuntimeInfo) error {
	return nil
}

func (m *mockStore) AppendEvent(ctx context.Context, tx store.DBTransaction, jobID uuid.UUID, instanceID uint32, event *task.PodEvent) error {
	return nil
}

func (m *mockStore) GetEvents(ctx context.Context, jobID uuid.UUID, instanceID uint32, limit uint32, runID *uint64) ([]*task.PodEvent, error) {
	m.capturedLimit = limit
	m.capturedRunID = runID
	return m.getEventsResp, m.getEventsErr
}

func (m *mockStore) DeleteEventsUpTo(ctx context.Context, jobID uuid.UUID, instanceID uint32, runID uint64) error {
	m.deletedUpTo = runID
	return m.deleteErr
}

// Mock Driver
type mockDriver struct {
	admitErr    error
	bulkResp    *goalstate.BulkResult
	bulkErr     error
	reportErr   error
	healthErr   error
	admittedJob *task.JobConfig

	// Spies
	capturedRanges []goalstate.InstanceRange
	capturedReport goalstate.StateReport
	capturedHealth task.HealthReport
}

func (m *mockDriver) AdmitJob(ctx context.Context, job *task.JobConfig) error {
	m.admittedJob = job
	return m.admitErr
}

func (m *mockDriver) bulk(ranges []goalstate.InstanceRange) (*goalstate.BulkResult, error) {
	m.capturedRanges = ranges
	if m.bulkErr != nil {
		return nil, m.bulkErr
	}
	if m.bulkResp != nil {
		return m.bulkResp, nil
	}
	return &goalstate.BulkResult{}, nil
}

func (m *mockDriver) StartInstances(ctx context.Context, jobID uuid.UUID, ranges []goalstate.InstanceRange) (*goalstate.BulkResult, error) {
	return m.bulk(ranges)
}

func (m *mockDriver) StopInstances(ctx context.Context, jobID uuid.UUID, ranges []goalstate.InstanceRange) (*goalstate.BulkResult, error) {
	return m.bulk(ranges)
}

func (m *mockDriver) RestartInstances(ctx context.Context, jobID uuid.UUID, ranges []goalstate.InstanceRange) (*goalstate.BulkResult, error) {
	return m.bulk(ranges)
}

func (m *mockDriver) RefreshInstances(ctx context.Context, jobID uuid.UUID, ranges []goalstate.InstanceRange) (*goalstate.BulkResult, error) {
	return m.bulk(ranges)
}

func (m *mockDriver) ReportStateChange(ctx context.Context, report goalstate.StateReport) error {
	m.capturedReport = report
	return m.reportErr
}

func (m *mockDriver) ReportHealth(ctx context.Context, taskID string, report task.HealthReport) error {
	m.capturedHealth = report
	return m.healthErr
}

// Mock Execution Layer
type mockExec struct {
	listing *executor.SandboxListing
	listErr error
}

func (m *mockExec) Launch(ctx context.Context, req executor.LaunchRequest) (*executor.Placement, error) {
	return &executor.Placement{}, nil
}

func (m *mockExec) Kill(ctx context.Context, taskID string) error { return nil }

func (m *mockExec) ListSandboxFiles(ctx context.Context, taskID string) (*executor.SandboxListing, error) {
	return m.listing, m.listErr
}

func newTestHandlers(s *mockStore, d *mockDriver, e *mockExec) (*Handlers, *cache.TaskCache) {
	c := cache.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(s, d, c, e, logger), c
}

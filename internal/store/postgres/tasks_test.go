package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"taskplane/internal/task"
)

func TestGetTask_NotFound(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.db.Close()

	ctx := context.Background()
	jobID := uuid.New()

	mock.ExpectQuery(`SELECT runtime, config FROM tasks`).
		WithArgs(jobID, 0).
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetTask(ctx, jobID, 0)
	if !errors.Is(err, task.ErrInstanceNotFound) {
		t.Errorf("got err %v, want ErrInstanceNotFound", err)
	}
}

func TestGetTask_Success(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.db.Close()

	ctx := context.Background()
	jobID := uuid.New()
	runtime := task.NewRuntime(jobID, 1, 1, false)
	config := &task.TaskConfig{Name: "web", Image: "nginx:1.27", Version: 1}

	runtimeJSON, _ := json.Marshal(runtime)
	configJSON, _ := json.Marshal(config)

	mock.ExpectQuery(`SELECT runtime, config FROM tasks`).
		WithArgs(jobID, 1).
		WillReturnRows(sqlmock.NewRows([]string{"runtime", "config"}).AddRow(runtimeJSON, configJSON))

	info, err := store.GetTask(ctx, jobID, 1)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if info.Runtime.State != task.StateInitialized {
		t.Errorf("got state %s, want INITIALIZED", info.Runtime.State)
	}
	if info.Config.Name != "web" {
		t.Errorf("got config name %s, want web", info.Config.Name)
	}
	if info.InstanceID != 1 {
		t.Errorf("got instance %d, want 1", info.InstanceID)
	}
}

func TestUpdateRuntime_StaleRevision(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.db.Close()

	ctx := context.Background()
	jobID := uuid.New()
	runtime := task.NewRuntime(jobID, 0, 1, false)
	runtime.Revision = 5

	mock.ExpectExec(`UPDATE tasks SET runtime`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateRuntime(ctx, nil, jobID, 0, runtime)
	if !task.IsStaleRevision(err) {
		t.Errorf("got err %v, want StaleRevisionError", err)
	}
}

func TestUpdateRuntime_Success(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.db.Close()

	ctx := context.Background()
	jobID := uuid.New()
	runtime := task.NewRuntime(jobID, 0, 1, false)
	runtime.Revision = 2

	mock.ExpectExec(`UPDATE tasks SET runtime`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.UpdateRuntime(ctx, nil, jobID, 0, runtime); err != nil {
		t.Fatalf("UpdateRuntime failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestListTasks(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.db.Close()

	ctx := context.Background()
	jobID := uuid.New()
	config := &task.TaskConfig{Name: "web", Version: 1}
	configJSON, _ := json.Marshal(config)

	rows := sqlmock.NewRows([]string{"instance_id", "runtime", "config"})
	for i := uint32(0); i < 3; i++ {
		runtimeJSON, _ := json.Marshal(task.NewRuntime(jobID, i, 1, false))
		rows.AddRow(i, runtimeJSON, configJSON)
	}

	mock.ExpectQuery(`SELECT instance_id, runtime, config FROM tasks`).
		WithArgs(jobID, 0, 5).
		WillReturnRows(rows)

	tasks, err := store.ListTasks(ctx, jobID, 0, 5)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(tasks))
	}
	if tasks[2].Runtime.TaskID != task.TaskID(jobID, 2, 1) {
		t.Errorf("instance 2 has wrong task id %s", tasks[2].Runtime.TaskID)
	}
}

func TestCreateJobAndGetJob(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.db.Close()

	ctx := context.Background()
	job := &task.JobConfig{
		JobID:         uuid.New(),
		Name:          "web",
		InstanceCount: 4,
		Version:       1,
		Default:       &task.TaskConfig{Name: "web", Image: "nginx:1.27", Version: 1},
	}

	mock.ExpectExec(`INSERT INTO jobs`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.CreateJob(ctx, nil, job); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	configJSON, _ := json.Marshal(job.Default)
	mock.ExpectQuery(`SELECT id, name, instance_count`).
		WithArgs(job.JobID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "instance_count", "config_version", "default_config", "created_at",
		}).AddRow(job.JobID, job.Name, job.InstanceCount, job.Version, configJSON, job.CreatedAt))

	got, err := store.GetJob(ctx, job.JobID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.InstanceCount != 4 || got.Default.Image != "nginx:1.27" {
		t.Errorf("round-trip mismatch: %+v", got)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.db.Close()

	jobID := uuid.New()
	mock.ExpectQuery(`SELECT id, name, instance_count`).
		WithArgs(jobID).
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetJob(context.Background(), jobID)
	if !errors.Is(err, task.ErrJobNotFound) {
		t.Errorf("got err %v, want ErrJobNotFound", err)
	}
}

func TestListJobs(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.db.Close()

	configJSON, _ := json.Marshal(&task.TaskConfig{Name: "web", Image: "nginx:1.27", Version: 1})
	jobA, jobB := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT id, name, instance_count`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "instance_count", "config_version", "default_config", "created_at",
		}).
			AddRow(jobA, "web", 4, 1, configJSON, time.Now()).
			AddRow(jobB, "batch", 2, 3, configJSON, time.Now()))

	jobs, err := store.ListJobs(context.Background())
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	if jobs[0].JobID != jobA || jobs[1].Version != 3 {
		t.Errorf("unexpected job listing: %+v", jobs)
	}
}

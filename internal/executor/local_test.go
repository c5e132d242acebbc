package executor

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"taskplane/internal/task"
)

func TestLocalLaunchAndSandbox(t *testing.T) {
	exec := NewLocalExecutor(t.TempDir())
	jobID := uuid.New()
	req := LaunchRequest{
		TaskID: task.TaskID(jobID, 0, 1),
		JobID:  jobID,
		RunID:  1,
		Config: &task.TaskConfig{Name: "sleeper", Command: []string{"sleep", "30"}},
	}

	placement, err := exec.Launch(context.Background(), req)
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	if placement.AgentID == "" {
		t.Error("expected an agent id for the local process")
	}

	listing, err := exec.ListSandboxFiles(context.Background(), req.TaskID)
	if err != nil {
		t.Fatalf("ListSandboxFiles failed: %v", err)
	}
	if len(listing.Paths) != 2 {
		t.Errorf("got %d sandbox files, want stdout and stderr", len(listing.Paths))
	}

	if err := exec.Kill(context.Background(), req.TaskID); err != nil {
		t.Fatalf("Kill failed: %v", err)
	}
}

func TestLocalKill_UnknownTask(t *testing.T) {
	exec := NewLocalExecutor(t.TempDir())
	if err := exec.Kill(context.Background(), "nope"); err == nil {
		t.Error("expected error killing an unknown task")
	}
}

func TestLocalLaunch_NoCommand(t *testing.T) {
	exec := NewLocalExecutor(t.TempDir())
	_, err := exec.Launch(context.Background(), LaunchRequest{
		TaskID: "x",
		Config: &task.TaskConfig{},
	})
	if err == nil {
		t.Error("expected error for a task with no command")
	}
}

func TestLocalLaunch_ProcessExits(t *testing.T) {
	exec := NewLocalExecutor(t.TempDir())
	jobID := uuid.New()
	req := LaunchRequest{
		TaskID: task.TaskID(jobID, 1, 1),
		JobID:  jobID,
		Config: &task.TaskConfig{Command: []string{"true"}},
	}

	if _, err := exec.Launch(context.Background(), req); err != nil {
		t.Fatalf("Launch failed: %v", err)
	}

	// Give the reaper a moment; killing an already-exited process still
	// resolves the handle either way.
	time.Sleep(50 * time.Millisecond)
	_ = exec.Kill(context.Background(), req.TaskID)
}

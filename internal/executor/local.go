package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
)

// LocalExecutor runs task commands as raw OS processes on the controller
// host. This is optional and primarily used for development/testing.
type LocalExecutor struct {
	// SandboxRoot is where each run gets a working directory.
	SandboxRoot string

	mu    sync.Mutex
	procs map[string]*exec.Cmd
}

// NewLocalExecutor creates a process-based execution layer rooted at dir.
func NewLocalExecutor(dir string) *LocalExecutor {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "taskplane-sandbox")
	}
	return &LocalExecutor{
		SandboxRoot: dir,
		procs:       make(map[string]*exec.Cmd),
	}
}

// Launch implements ExecutionLayer using os/exec.
func (l *LocalExecutor) Launch(ctx context.Context, req LaunchRequest) (*Placement, error) {
	if len(req.Config.Command) == 0 {
		return nil, fmt.Errorf("task %s has no command to run locally", req.TaskID)
	}

	sandbox := filepath.Join(l.SandboxRoot, req.TaskID)
	if err := os.MkdirAll(sandbox, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sandbox for %s: %w", req.TaskID, err)
	}

	stdout, err := os.Create(filepath.Join(sandbox, "stdout"))
	if err != nil {
		return nil, err
	}
	stderr, err := os.Create(filepath.Join(sandbox, "stderr"))
	if err != nil {
		stdout.Close()
		return nil, err
	}

	cmd := exec.Command(req.Config.Command[0], req.Config.Command[1:]...)
	cmd.Dir = sandbox
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("failed to start task %s: %w", req.TaskID, err)
	}

	l.mu.Lock()
	l.procs[req.TaskID] = cmd
	l.mu.Unlock()

	// Reap in the background so the process table stays clean.
	go func() {
		_ = cmd.Wait()
		stdout.Close()
		stderr.Close()
	}()

	hostname, _ := os.Hostname()
	return &Placement{
		Hostname: hostname,
		AgentID:  fmt.Sprintf("local-%d", cmd.Process.Pid),
	}, nil
}

// Kill implements ExecutionLayer.
func (l *LocalExecutor) Kill(ctx context.Context, taskID string) error {
	l.mu.Lock()
	cmd, ok := l.procs[taskID]
	if ok {
		delete(l.procs, taskID)
	}
	l.mu.Unlock()

	if !ok {
		return fmt.Errorf("task %s is not running locally", taskID)
	}
	return cmd.Process.Kill()
}

// ListSandboxFiles implements ExecutionLayer by listing the run's working
// directory.
func (l *LocalExecutor) ListSandboxFiles(ctx context.Context, taskID string) (*SandboxListing, error) {
	sandbox := filepath.Join(l.SandboxRoot, taskID)
	entries, err := os.ReadDir(sandbox)
	if err != nil {
		return nil, fmt.Errorf("failed to read sandbox for %s: %w", taskID, err)
	}

	hostname, _ := os.Hostname()
	listing := &SandboxListing{Hostname: hostname}
	for _, e := range entries {
		listing.Paths = append(listing.Paths, filepath.Join(sandbox, e.Name()))
	}
	return listing, nil
}

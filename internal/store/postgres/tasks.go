package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"taskplane/internal/store"
	"taskplane/internal/task"
)

func (s *Store) CreateTask(ctx context.Context, tx store.DBTransaction, info *task.TaskInfo) error {
	executor := s.getExecutor(tx)

	runtimeJSON, err := json.Marshal(info.Runtime)
	if err != nil {
		return fmt.Errorf("failed to encode runtime: %w", err)
	}
	configJSON, err := json.Marshal(info.Config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	_, err = executor.ExecContext(ctx,
		`INSERT INTO tasks (job_id, instance_id, runtime, config, revision, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		info.JobID, info.InstanceID, runtimeJSON, configJSON,
		info.Runtime.Revision, info.Runtime.UpdateTime,
	)
	return err
}

func (s *Store) GetTask(ctx context.Context, jobID uuid.UUID, instanceID uint32) (*task.TaskInfo, error) {
	query := `SELECT runtime, config FROM tasks WHERE job_id = $1 AND instance_id = $2`

	var runtimeJSON, configJSON []byte
	err := s.db.QueryRowContext(ctx, query, jobID, instanceID).Scan(&runtimeJSON, &configJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, task.ErrInstanceNotFound
	}
	if err != nil {
		return nil, err
	}

	return decodeTaskInfo(jobID, instanceID, runtimeJSON, configJSON)
}

func (s *Store) ListTasks(ctx context.Context, jobID uuid.UUID, from, to uint32) (map[uint32]*task.TaskInfo, error) {
	query := `SELECT instance_id, runtime, config FROM tasks
		WHERE job_id = $1 AND instance_id >= $2 AND instance_id < $3
		ORDER BY instance_id ASC`

	rows, err := s.db.QueryContext(ctx, query, jobID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make(map[uint32]*task.TaskInfo)
	for rows.Next() {
		var instanceID uint32
		var runtimeJSON, configJSON []byte
		if err := rows.Scan(&instanceID, &runtimeJSON, &configJSON); err != nil {
			return nil, err
		}
		info, err := decodeTaskInfo(jobID, instanceID, runtimeJSON, configJSON)
		if err != nil {
			return nil, err
		}
		tasks[instanceID] = info
	}
	return tasks, rows.Err()
}

// UpdateRuntime writes the new snapshot guarded by the previous revision.
// The WHERE clause on revision makes concurrent writers lose cleanly instead
// of clobbering each other.
func (s *Store) UpdateRuntime(ctx context.Context, tx store.DBTransaction, jobID uuid.UUID, instanceID uint32, runtime *task.RuntimeInfo) error {
	executor := s.getExecutor(tx)

	runtimeJSON, err := json.Marshal(runtime)
	if err != nil {
		return fmt.Errorf("failed to encode runtime: %w", err)
	}

	res, err := executor.ExecContext(ctx,
		`UPDATE tasks SET runtime = $1, revision = $2, updated_at = $3
		WHERE job_id = $4 AND instance_id = $5 AND revision = $6`,
		runtimeJSON, runtime.Revision, runtime.UpdateTime,
		jobID, instanceID, runtime.Revision-1,
	)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &task.StaleRevisionError{
			TaskID:   runtime.TaskID,
			Expected: runtime.Revision - 1,
		}
	}
	return nil
}

func decodeTaskInfo(jobID uuid.UUID, instanceID uint32, runtimeJSON, configJSON []byte) (*task.TaskInfo, error) {
	info := &task.TaskInfo{JobID: jobID, InstanceID: instanceID}
	if err := json.Unmarshal(runtimeJSON, &info.Runtime); err != nil {
		return nil, fmt.Errorf("failed to decode runtime: %w", err)
	}
	if err := json.Unmarshal(configJSON, &info.Config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return info, nil
}

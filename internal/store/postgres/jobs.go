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

func (s *Store) CreateJob(ctx context.Context, tx store.DBTransaction, job *task.JobConfig) error {
	executor := s.getExecutor(tx)

	configJSON, err := json.Marshal(job.Default)
	if err != nil {
		return fmt.Errorf("failed to encode default config: %w", err)
	}

	_, err = executor.ExecContext(ctx,
		`INSERT INTO jobs (id, name, instance_count, config_version, default_config, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		job.JobID, job.Name, job.InstanceCount, job.Version, configJSON, job.CreatedAt,
	)
	return err
}

func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*task.JobConfig, error) {
	query := `SELECT id, name, instance_count, config_version, default_config, created_at
		FROM jobs WHERE id = $1`

	var job task.JobConfig
	var configJSON []byte

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&job.JobID, &job.Name, &job.InstanceCount, &job.Version, &configJSON, &job.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, task.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(configJSON, &job.Default); err != nil {
		return nil, fmt.Errorf("failed to decode default config: %w", err)
	}
	return &job, nil
}

func (s *Store) ListJobs(ctx context.Context) ([]*task.JobConfig, error) {
	query := `SELECT id, name, instance_count, config_version, default_config, created_at
		FROM jobs ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*task.JobConfig
	for rows.Next() {
		var job task.JobConfig
		var configJSON []byte
		if err := rows.Scan(
			&job.JobID, &job.Name, &job.InstanceCount, &job.Version, &configJSON, &job.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(configJSON, &job.Default); err != nil {
			return nil, fmt.Errorf("failed to decode default config: %w", err)
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}

func (s *Store) UpdateJobVersion(ctx context.Context, tx store.DBTransaction, id uuid.UUID, version uint64, config *task.TaskConfig) error {
	executor := s.getExecutor(tx)

	configJSON, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	res, err := executor.ExecContext(ctx,
		`UPDATE jobs SET config_version = $1, default_config = $2 WHERE id = $3`,
		version, configJSON, id,
	)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return task.ErrJobNotFound
	}
	return nil
}

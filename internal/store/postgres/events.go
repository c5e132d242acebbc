package postgres

import (
	"context"

	"github.com/google/uuid"

	"taskplane/internal/store"
	"taskplane/internal/task"
)

// AppendEvent writes one immutable event to the instance's partition. The
// within-run sequence is assigned here; callers serialize appends for the
// same instance, so MAX(sequence)+1 is safe.
func (s *Store) AppendEvent(ctx context.Context, tx store.DBTransaction, jobID uuid.UUID, instanceID uint32, event *task.PodEvent) error {
	executor := s.getExecutor(tx)

	query := `INSERT INTO pod_events
		(job_id, instance_id, run_id, sequence, task_id, actual_state, goal_state,
		 config_version, desired_config_version, agent_id, hostname, message,
		 reason, prev_task_id, healthy, created_at)
		SELECT $1, $2, $3, COALESCE(MAX(sequence), 0) + 1, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		FROM pod_events WHERE job_id = $1 AND instance_id = $2 AND run_id = $3
		RETURNING sequence`

	return executor.QueryRowContext(ctx, query,
		jobID, instanceID, event.RunID, event.TaskID,
		string(event.ActualState), string(event.GoalState),
		event.ConfigVersion, event.DesiredConfigVersion,
		event.AgentID, event.Hostname, event.Message, event.Reason,
		event.PrevTaskID, string(event.Healthy), event.Timestamp,
	).Scan(&event.Sequence)
}

func (s *Store) GetEvents(ctx context.Context, jobID uuid.UUID, instanceID uint32, limit uint32, runID *uint64) ([]*task.PodEvent, error) {
	var query string
	var args []interface{}

	if runID != nil {
		query = `SELECT task_id, run_id, sequence, actual_state, goal_state, created_at,
			config_version, desired_config_version, agent_id, hostname, message,
			reason, prev_task_id, healthy
			FROM pod_events
			WHERE job_id = $1 AND instance_id = $2 AND run_id = $3
			ORDER BY run_id DESC, sequence DESC`
		args = []interface{}{jobID, instanceID, *runID}
	} else {
		// Cap the result at the most recent `limit` distinct runs rather
		// than a raw row count, so no run's history is returned half-cut.
		query = `SELECT task_id, run_id, sequence, actual_state, goal_state, created_at,
			config_version, desired_config_version, agent_id, hostname, message,
			reason, prev_task_id, healthy
			FROM pod_events
			WHERE job_id = $1 AND instance_id = $2 AND run_id IN (
				SELECT DISTINCT run_id FROM pod_events
				WHERE job_id = $1 AND instance_id = $2
				ORDER BY run_id DESC LIMIT $3
			)
			ORDER BY run_id DESC, sequence DESC`
		args = []interface{}{jobID, instanceID, limit}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*task.PodEvent
	for rows.Next() {
		var e task.PodEvent
		if err := rows.Scan(
			&e.TaskID, &e.RunID, &e.Sequence, &e.ActualState, &e.GoalState,
			&e.Timestamp, &e.ConfigVersion, &e.DesiredConfigVersion,
			&e.AgentID, &e.Hostname, &e.Message, &e.Reason,
			&e.PrevTaskID, &e.Healthy,
		); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (s *Store) DeleteEventsUpTo(ctx context.Context, jobID uuid.UUID, instanceID uint32, runID uint64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM pod_events WHERE job_id = $1 AND instance_id = $2 AND run_id <= $3`,
		jobID, instanceID, runID,
	)
	return err
}

package db

import (
	"context"
	"database/sql"
	"fmt"
)

type JobOperations struct {
	db *sql.DB
}

func NewJobOperations(db *sql.DB) *JobOperations {
	return &JobOperations{db: db}
}

func (o *JobOperations) CreateJob(ctx context.Context, j *Job) error {
	if j.Status == "" {
		j.Status = StatusPending
	}
	result, err := o.db.ExecContext(ctx, InsertJob,
		j.OriginalName, j.StoredName, j.FilePath, j.Ext, j.Status, j.RequestedBy)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get job id: %w", err)
	}
	j.ID = id
	return nil
}

func (o *JobOperations) GetJobByID(ctx context.Context, id int64) (*Job, error) {
	j := &Job{}
	err := scanJob(o.db.QueryRowContext(ctx, GetJobByID, id), j)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

func (o *JobOperations) GetJobForTeam(ctx context.Context, id int64, team string) (*Job, error) {
	j := &Job{}
	err := scanJob(o.db.QueryRowContext(ctx, GetJobForTeam, id, team), j)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get job for team: %w", err)
	}
	return j, nil
}

func (o *JobOperations) ListJobsForTeam(ctx context.Context, team string, limit int) ([]*Job, error) {
	rows, err := o.db.QueryContext(ctx, ListJobsForTeam, team, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j := &Job{}
		if err := scanJob(rows, j); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ClaimOldestPending flips the oldest pending job to processing and binds it
// to agentID, all inside one transaction so two agents can never walk away
// with the same job. Returns (nil, nil) when nothing is pending.
func (o *JobOperations) ClaimOldestPending(ctx context.Context, agentID string) (*Job, error) {
	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	j := &Job{}
	err = scanJob(tx.QueryRowContext(ctx, SelectOldestPending), j)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query pending job: %w", err)
	}

	if _, err := tx.ExecContext(ctx, MarkJobProcessing, agentID, j.ID); err != nil {
		return nil, fmt.Errorf("failed to mark job processing: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	j.Status = StatusProcessing
	j.AssignedAgentID = agentID

	return j, nil
}

// MarkDone reports whether the row actually transitioned; false means the
// job was already terminal and the caller should re-read its status.
func (o *JobOperations) MarkDone(ctx context.Context, id int64) (bool, error) {
	result, err := o.db.ExecContext(ctx, MarkJobDone, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark job done: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

func (o *JobOperations) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := o.db.QueryContext(ctx, CountJobsByStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan job count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// MarkFailed records the failure reason unless the job already finished
// successfully. Re-failing a failed job just overwrites the reason.
func (o *JobOperations) MarkFailed(ctx context.Context, id int64, reason string) (bool, error) {
	result, err := o.db.ExecContext(ctx, MarkJobFailed, reason, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark job failed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row scanner, j *Job) error {
	return row.Scan(
		&j.ID, &j.OriginalName, &j.StoredName, &j.FilePath, &j.Ext,
		&j.Status, &j.RequestedBy, &j.AssignedAgentID, &j.FailReason,
		&j.CreatedAt, &j.UpdatedAt)
}

type UserOperations struct {
	db *sql.DB
}

func NewUserOperations(db *sql.DB) *UserOperations {
	return &UserOperations{db: db}
}

func (o *UserOperations) UpsertUser(ctx context.Context, u *User) error {
	_, err := o.db.ExecContext(ctx, UpsertUser,
		u.Username, u.TeamName, u.PasswordHash, u.TeamName, u.PasswordHash)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (o *UserOperations) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	u := &User{}
	err := o.db.QueryRowContext(ctx, GetUserByUsername, username).Scan(
		&u.ID, &u.Username, &u.TeamName, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

package db

const (
	InsertJob = `
		INSERT INTO jobs (original_name, stored_name, file_path, ext, status, requested_by)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	GetJobByID = `
		SELECT id, original_name, stored_name, file_path, ext, status, requested_by, assigned_agent_id, fail_reason, created_at, updated_at
		FROM jobs WHERE id = ?
	`

	GetJobForTeam = `
		SELECT id, original_name, stored_name, file_path, ext, status, requested_by, assigned_agent_id, fail_reason, created_at, updated_at
		FROM jobs WHERE id = ? AND requested_by = ?
	`

	ListJobsForTeam = `
		SELECT id, original_name, stored_name, file_path, ext, status, requested_by, assigned_agent_id, fail_reason, created_at, updated_at
		FROM jobs WHERE requested_by = ? ORDER BY id DESC LIMIT ?
	`

	SelectOldestPending = `
		SELECT id, original_name, stored_name, file_path, ext, status, requested_by, assigned_agent_id, fail_reason, created_at, updated_at
		FROM jobs WHERE status = 'pending' ORDER BY id ASC LIMIT 1
	`

	MarkJobProcessing = `
		UPDATE jobs SET status = 'processing', assigned_agent_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	MarkJobDone = `
		UPDATE jobs SET status = 'done', updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status IN ('pending', 'processing')
	`

	MarkJobFailed = `
		UPDATE jobs SET status = 'failed', fail_reason = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status != 'done'
	`

	CountJobsByStatus = `
		SELECT status, COUNT(*) FROM jobs GROUP BY status
	`
)

const (
	UpsertUser = `
		INSERT INTO users (username, team_name, password_hash)
		VALUES (?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET team_name = ?, password_hash = ?
	`

	GetUserByUsername = `
		SELECT id, username, team_name, password_hash, created_at
		FROM users WHERE username = ?
	`
)

package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/Fariz36/print-arkav/internal/config"
	"github.com/Fariz36/print-arkav/internal/db"
	"github.com/Fariz36/print-arkav/internal/storage"
)

var (
	ErrJobNotFound         = errors.New("job not found")
	ErrPayloadGone         = errors.New("payload no longer available")
	ErrNotDownloadable     = errors.New("job is not downloadable")
	ErrExtensionNotAllowed = errors.New("file type is not allowed")
	ErrFileTooLarge        = errors.New("file too large")
)

// ValidationError rejects a submission before any row or payload file is
// created. It wraps one of the submission sentinels so callers can map the
// rejection onto a transport status while showing Reason to the user.
type ValidationError struct {
	Reason string
	err    error
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Unwrap() error { return e.err }

const maxFailReasonLen = 500

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

type Queue struct {
	jobs           *db.JobOperations
	store          *storage.Store
	maxUploadBytes int64
	allowedExts    map[string]bool
}

func New(jobs *db.JobOperations, store *storage.Store, cfg *config.UploadsConfig) *Queue {
	if cfg == nil {
		cfg = &config.UploadsConfig{
			MaxUploadBytes:    5 * 1024 * 1024,
			AllowedExtensions: []string{".cpp", ".py", ".c", ".java", ".pdf"},
		}
	}

	exts := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		exts[strings.ToLower(ext)] = true
	}

	return &Queue{
		jobs:           jobs,
		store:          store,
		maxUploadBytes: cfg.MaxUploadBytes,
		allowedExts:    exts,
	}
}

// Submit validates and stores a new payload, then creates its pending job.
// Validation failures return a *ValidationError and leave no trace behind.
func (q *Queue) Submit(ctx context.Context, team, filename string, size int64, src io.Reader) (*db.Job, error) {
	safeName := storage.SanitizeName(filename)
	ext := storage.Ext(safeName)

	if !q.allowedExts[ext] {
		return nil, &ValidationError{
			Reason: fmt.Sprintf("file type %q is not allowed", ext),
			err:    ErrExtensionNotAllowed,
		}
	}

	if size > q.maxUploadBytes {
		return nil, &ValidationError{
			Reason: fmt.Sprintf("file exceeds maximum size of %d bytes", q.maxUploadBytes),
			err:    ErrFileTooLarge,
		}
	}

	storedName := storage.StoredName(safeName)
	path, err := q.store.Save(storedName, src)
	if err != nil {
		return nil, err
	}

	job := &db.Job{
		OriginalName: safeName,
		StoredName:   storedName,
		FilePath:     path,
		Ext:          ext,
		Status:       db.StatusPending,
		RequestedBy:  team,
	}

	if err := q.jobs.CreateJob(ctx, job); err != nil {
		q.store.Remove(path)
		return nil, err
	}

	return job, nil
}

// Claim hands the oldest pending job to agentID, or (nil, nil) when the
// queue is empty.
func (q *Queue) Claim(ctx context.Context, agentID string) (*db.Job, error) {
	return q.jobs.ClaimOldestPending(ctx, agentID)
}

// Complete marks a job done and removes its payload. Completing a job that
// already reached a terminal status is a no-op reporting that status.
func (q *Queue) Complete(ctx context.Context, id int64) (db.Status, error) {
	job, err := q.jobs.GetJobByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrJobNotFound
		}
		return "", err
	}

	transitioned, err := q.jobs.MarkDone(ctx, id)
	if err != nil {
		return "", err
	}
	if !transitioned {
		// Already terminal; re-read so a racing caller sees the final
		// status rather than the one from before our attempt.
		current, err := q.jobs.GetJobByID(ctx, id)
		if err != nil {
			return job.Status, nil
		}
		return current.Status, nil
	}

	if err := q.store.Remove(job.FilePath); err != nil {
		log.Printf("queue: failed to remove payload for job %d: %v", id, err)
	}

	return db.StatusDone, nil
}

// Fail records why a job could not be printed. The payload stays on disk
// for inspection. Failing a job that already finished successfully is a
// no-op reporting done.
func (q *Queue) Fail(ctx context.Context, id int64, reason string) (db.Status, error) {
	if _, err := q.jobs.GetJobByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrJobNotFound
		}
		return "", err
	}

	transitioned, err := q.jobs.MarkFailed(ctx, id, truncateReason(reason))
	if err != nil {
		return "", err
	}
	if !transitioned {
		return db.StatusDone, nil
	}

	return db.StatusFailed, nil
}

// Stats summarizes the queue by status. Counts are global, not team scoped;
// every team shares the one physical printer queue.
type Stats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Done       int `json:"done"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

func (q *Queue) Stats(ctx context.Context) (*Stats, error) {
	counts, err := q.jobs.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Pending:    counts[db.StatusPending],
		Processing: counts[db.StatusProcessing],
		Done:       counts[db.StatusDone],
		Failed:     counts[db.StatusFailed],
	}
	stats.Total = stats.Pending + stats.Processing + stats.Done + stats.Failed
	return stats, nil
}

func (q *Queue) ListForTeam(ctx context.Context, team string, limit int) ([]*db.Job, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return q.jobs.ListJobsForTeam(ctx, team, limit)
}

func (q *Queue) GetForTeam(ctx context.Context, team string, id int64) (*db.Job, error) {
	job, err := q.jobs.GetJobForTeam(ctx, id, team)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// Payload returns the job once its payload is confirmed present on disk.
// Done jobs report ErrPayloadGone since completion removes the file, as
// does a live row whose file went missing underneath it. Failed jobs keep
// their payload for inspection but are no longer downloadable.
func (q *Queue) Payload(ctx context.Context, id int64) (*db.Job, error) {
	job, err := q.jobs.GetJobByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	if job.Status == db.StatusDone {
		return nil, ErrPayloadGone
	}
	if job.Status == db.StatusFailed {
		return nil, ErrNotDownloadable
	}

	exists, err := q.store.Exists(job.FilePath)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrPayloadGone
	}

	return job, nil
}

func truncateReason(reason string) string {
	runes := []rune(reason)
	if len(runes) <= maxFailReasonLen {
		return reason
	}
	return string(runes[:maxFailReasonLen])
}

package agent

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Fariz36/print-arkav/internal/render"
)

const maxReasonLen = 500

// Agent polls the backend for print jobs, one at a time. PDFs are spooled
// as uploaded; anything else is rendered into a paginated PDF first. A
// failing job is reported and the loop moves on; it never takes the agent
// down with it.
type Agent struct {
	client   *Client
	dispatch Dispatcher
	workDir  string
	copies   int
	interval time.Duration
}

func New(client *Client, dispatch Dispatcher, workDir string, copies int, pollInterval time.Duration) (*Agent, error) {
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	if copies < 1 {
		copies = 1
	}
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}

	return &Agent{
		client:   client,
		dispatch: dispatch,
		workDir:  workDir,
		copies:   copies,
		interval: pollInterval,
	}, nil
}

// Run polls until ctx is cancelled. After handling a job it polls again
// immediately; an empty queue or a transport error waits one interval.
func (a *Agent) Run(ctx context.Context) error {
	log.Printf("agent: started, polling every %v", a.interval)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		handled, err := a.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("agent: poll failed: %v", err)
		}
		if handled && err == nil {
			continue
		}

		if err := sleep(ctx, a.interval); err != nil {
			return err
		}
	}
}

// RunOnce performs a single poll cycle. It reports whether a job was
// handled; the returned error covers only the poll itself, since job-level
// failures end up reported to the backend instead.
func (a *Agent) RunOnce(ctx context.Context) (bool, error) {
	job, err := a.client.NextJob(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	a.handleJob(ctx, job)
	return true, nil
}

func (a *Agent) handleJob(ctx context.Context, job *JobDescriptor) {
	localPath := filepath.Join(a.workDir, fmt.Sprintf("%d_%s", job.ID, filepath.Base(job.Filename)))
	pdfPath := filepath.Join(a.workDir, fmt.Sprintf("%d_rendered.pdf", job.ID))
	defer os.Remove(localPath)
	defer os.Remove(pdfPath)

	if err := a.processJob(ctx, job, localPath, pdfPath); err != nil {
		log.Printf("agent: job %d failed: %v", job.ID, err)
		if rerr := a.client.ReportFailed(ctx, job.ID, truncateReason(err.Error())); rerr != nil {
			log.Printf("agent: failed to report job %d failure: %v", job.ID, rerr)
		}
		return
	}

	if err := a.client.ReportDone(ctx, job.ID); err != nil {
		log.Printf("agent: failed to report job %d done: %v", job.ID, err)
		return
	}

	log.Printf("agent: job %d done (%s)", job.ID, job.Filename)
}

func (a *Agent) processJob(ctx context.Context, job *JobDescriptor, localPath, pdfPath string) error {
	if err := a.client.Download(ctx, job, localPath); err != nil {
		return err
	}

	printPath := localPath
	if strings.ToLower(job.Ext) != ".pdf" {
		if err := a.renderToPDF(job, localPath, pdfPath); err != nil {
			return err
		}
		printPath = pdfPath
	}

	return a.dispatch.Dispatch(ctx, printPath, a.copies)
}

func (a *Agent) renderToPDF(job *JobDescriptor, srcPath, pdfPath string) error {
	src, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}

	f, err := os.Create(pdfPath)
	if err != nil {
		return fmt.Errorf("failed to create pdf file: %w", err)
	}

	if err := render.RenderPDF(src, job.RequestedBy, job.Filename, f); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

func truncateReason(reason string) string {
	runes := []rune(reason)
	if len(runes) <= maxReasonLen {
		return reason
	}
	return string(runes[:maxReasonLen])
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

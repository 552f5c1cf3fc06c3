package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"property-pipeline/internal/model"
	"property-pipeline/internal/store"
)

// ErrJobFailed is returned when a batch is requested for a job that already
// failed. Failed jobs are not resumable.
var ErrJobFailed = errors.New("import job previously failed")

// Progress is the persisted job cursor.
type Progress interface {
	CreateJob(batchSize, totalItems int) (*model.ImportJob, error)
	GetJob(id string) (*model.ImportJob, error)
	UpdateProgress(id string, fromOffset, toOffset int, status string, errPayload *string) (bool, error)
	FailJob(id, reason string) error
}

// Merger persists a single listing.
type Merger interface {
	MergeListing(l *model.SourceListing) error
}

// Continuer schedules the next batch after a successful advance.
type Continuer interface {
	TriggerNext(ctx context.Context, jobID string) error
}

// NopContinuer leaves continuation to an external caller polling the API.
type NopContinuer struct{}

func (NopContinuer) TriggerNext(context.Context, string) error { return nil }

// AdvanceResult describes the outcome of one batch.
type AdvanceResult struct {
	Job        *model.ImportJob
	Done       bool
	Merged     int
	ItemErrors []model.ItemError
}

// Coordinator walks a dataset in fixed-size batches, persisting each listing
// and advancing a checkpoint so an interrupted run resumes where it stopped.
type Coordinator struct {
	progress  Progress
	merger    Merger
	cont      Continuer
	dataset   []model.SourceListing
	batchSize int
}

func NewCoordinator(progress Progress, merger Merger, dataset []model.SourceListing, batchSize int) *Coordinator {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Coordinator{
		progress:  progress,
		merger:    merger,
		cont:      NopContinuer{},
		dataset:   dataset,
		batchSize: batchSize,
	}
}

// UseContinuer replaces the continuation strategy.
func (c *Coordinator) UseContinuer(cont Continuer) {
	c.cont = cont
}

// ContinueInProcess installs a continuer that re-enters Advance on a
// background goroutine after each batch, pausing between batches.
func (c *Coordinator) ContinueInProcess(pause time.Duration) {
	c.cont = &backgroundContinuer{coord: c, pause: pause}
}

// StartImport creates a new job and processes its first batch.
func (c *Coordinator) StartImport(ctx context.Context) (*AdvanceResult, error) {
	job, err := c.progress.CreateJob(c.batchSize, len(c.dataset))
	if err != nil {
		return nil, err
	}
	log.Printf("[JOB %s] import started: %d items, batch size %d", job.ID, job.TotalItems, job.BatchSize)
	return c.Advance(ctx, job.ID)
}

// Advance processes the batch at the job's current offset. Completed jobs
// return a done result without touching the store; failed jobs return
// ErrJobFailed. Concurrent callers race on a compare-and-set of the offset,
// so a lost race is a harmless no-op.
func (c *Coordinator) Advance(ctx context.Context, jobID string) (*AdvanceResult, error) {
	job, err := c.progress.GetJob(jobID)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case model.StatusCompleted:
		return &AdvanceResult{Job: job, Done: true}, nil
	case model.StatusFailed:
		return &AdvanceResult{Job: job}, ErrJobFailed
	}

	// A job persisted before a restart may expect more items than the
	// currently loaded dataset holds. Fail it rather than slicing past the
	// end or silently completing short.
	if job.TotalItems > len(c.dataset) {
		reason := fmt.Sprintf("dataset has %d items but job expects %d", len(c.dataset), job.TotalItems)
		log.Printf("[JOB %s] %s", jobID, reason)
		if ferr := c.progress.FailJob(jobID, reason); ferr != nil {
			log.Printf("[JOB %s] failed to record failure: %v", jobID, ferr)
		}
		return nil, fmt.Errorf("import job %s: %s", jobID, reason)
	}

	from := job.CurrentOffset
	to := from + job.BatchSize
	if to > job.TotalItems {
		to = job.TotalItems
	}

	var itemErrs []model.ItemError
	merged := 0
	for _, l := range c.dataset[from:to] {
		listing := l
		if err := c.merger.MergeListing(&listing); err != nil {
			var verr *store.ValidationError
			if errors.As(err, &verr) {
				log.Printf("[JOB %s] skipping listing %q: %v", jobID, listing.ID, err)
				itemErrs = append(itemErrs, model.ItemError{
					ListingID: listing.ID,
					Stage:     "validation",
					Message:   err.Error(),
				})
				continue
			}
			reason := fmt.Sprintf("failed to persist listing %s: %v", listing.ID, err)
			log.Printf("[JOB %s] %s", jobID, reason)
			if ferr := c.progress.FailJob(jobID, reason); ferr != nil {
				log.Printf("[JOB %s] failed to record failure: %v", jobID, ferr)
			}
			return nil, fmt.Errorf("import job %s: %s", jobID, reason)
		}
		merged++
	}

	status := model.StatusInProgress
	done := to >= job.TotalItems
	if done {
		status = model.StatusCompleted
	}

	var errPayload *string
	if len(itemErrs) > 0 {
		raw, merr := json.Marshal(itemErrs)
		if merr == nil {
			s := string(raw)
			errPayload = &s
		}
	}

	advanced, err := c.progress.UpdateProgress(jobID, from, to, status, errPayload)
	if err != nil {
		return nil, err
	}
	if !advanced {
		// Another worker won the batch. Report their progress instead.
		log.Printf("[JOB %s] offset %d already advanced by another worker", jobID, from)
		current, gerr := c.progress.GetJob(jobID)
		if gerr != nil {
			return nil, gerr
		}
		return &AdvanceResult{Job: current, Done: current.Status == model.StatusCompleted}, nil
	}

	job.CurrentOffset = to
	job.Status = status
	job.Error = errPayload
	log.Printf("[JOB %s] batch done: offset %d/%d, merged %d, skipped %d",
		jobID, to, job.TotalItems, merged, len(itemErrs))

	if !done {
		if err := c.cont.TriggerNext(ctx, jobID); err != nil {
			reason := fmt.Sprintf("failed to trigger next batch: %v", err)
			log.Printf("[JOB %s] %s", jobID, reason)
			if ferr := c.progress.FailJob(jobID, reason); ferr != nil {
				log.Printf("[JOB %s] failed to record failure: %v", jobID, ferr)
			}
			return nil, fmt.Errorf("import job %s: %s", jobID, reason)
		}
	} else {
		log.Printf("[JOB %s] import completed: %d items", jobID, job.TotalItems)
	}

	return &AdvanceResult{Job: job, Done: done, Merged: merged, ItemErrors: itemErrs}, nil
}

// HTTPContinuer re-enters the import API over HTTP, for deployments where
// each batch must finish inside a bounded request window.
type HTTPContinuer struct {
	BaseURL string
	Secret  string
	Client  *http.Client
}

func (h *HTTPContinuer) TriggerNext(ctx context.Context, jobID string) error {
	body, err := json.Marshal(map[string]string{"importId": jobID})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		h.BaseURL+"/api/trigger-import", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build trigger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Import-Secret", h.Secret)

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to dispatch next batch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("trigger request returned status %d", resp.StatusCode)
	}
	return nil
}

// backgroundContinuer drives the next batch on a goroutine, detached from
// the request context that finished the previous one.
type backgroundContinuer struct {
	coord *Coordinator
	pause time.Duration
}

func (b *backgroundContinuer) TriggerNext(_ context.Context, jobID string) error {
	go func() {
		if b.pause > 0 {
			time.Sleep(b.pause)
		}
		if _, err := b.coord.Advance(context.Background(), jobID); err != nil {
			log.Printf("[JOB %s] background batch stopped: %v", jobID, err)
		}
	}()
	return nil
}

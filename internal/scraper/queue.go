package scraper

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"property-pipeline/internal/model"
	"property-pipeline/pkg/utils"
)

// QueueManager distributes addresses across lanes and runs each lane
// sequentially. Tasks never move between lanes.
type QueueManager struct {
	source      ValuationSource
	sink        ResultSink
	limiter     *RateLimiter
	class       *Classifier
	lanes       int
	maxAttempts int
}

func NewQueueManager(source ValuationSource, sink ResultSink, limiter *RateLimiter, class *Classifier, lanes, maxAttempts int) *QueueManager {
	if lanes <= 0 {
		lanes = 3
	}
	if maxAttempts <= 0 {
		maxAttempts = 25
	}
	return &QueueManager{
		source:      source,
		sink:        sink,
		limiter:     limiter,
		class:       class,
		lanes:       lanes,
		maxAttempts: maxAttempts,
	}
}

// Run scrapes all addresses and blocks until every lane drains or the
// context is cancelled. The report counts every task exactly once.
func (q *QueueManager) Run(ctx context.Context, addresses []string) *model.ScrapeReport {
	queues := partition(addresses, q.lanes)
	results := make(chan model.ScrapeTask, len(addresses))

	var wg sync.WaitGroup
	for lane, queue := range queues {
		if len(queue) == 0 {
			continue
		}
		wg.Add(1)
		go func(lane int, queue []string) {
			defer wg.Done()
			log.Printf("lane %d: %d addresses queued", lane, len(queue))
			for _, addr := range queue {
				results <- q.runTask(ctx, lane, addr)
			}
		}(lane, queue)
	}
	wg.Wait()
	close(results)

	report := &model.ScrapeReport{}
	for task := range results {
		report.Total++
		switch task.Outcome {
		case model.OutcomeFound:
			report.Found++
		case model.OutcomeNotFound:
			report.NotFound++
		case model.OutcomeSkipped:
			report.Skipped++
		case model.OutcomeFailed:
			report.Failed = append(report.Failed, task)
		}
	}
	return report
}

func (q *QueueManager) runTask(ctx context.Context, lane int, address string) model.ScrapeTask {
	task := model.ScrapeTask{Address: address, Lane: lane}

	cleaned := utils.CleanAddress(address)
	if cleaned == "" {
		task.Outcome = model.OutcomeSkipped
		log.Printf("lane %d: skipping unusable address %q", lane, address)
		return task
	}

	for task.Attempts < q.maxAttempts {
		if err := q.limiter.WaitSlot(ctx, lane); err != nil {
			task.Outcome = model.OutcomeFailed
			task.Err = err.Error()
			return task
		}
		task.Attempts++

		v, err := q.lookupOnce(ctx, cleaned)
		if err == nil {
			if serr := q.sink.SaveValuation(cleaned, v); serr != nil {
				task.Outcome = model.OutcomeFailed
				task.Err = fmt.Sprintf("failed to save valuation: %v", serr)
				return task
			}
			task.Outcome = model.OutcomeFound
			log.Printf("lane %d: valuation found for %q (attempt %d)", lane, cleaned, task.Attempts)
			return task
		}

		decision := q.class.Classify(err, task.Attempts)
		switch decision.Action {
		case ActionNotFound:
			if serr := q.sink.SaveValuation(cleaned, notFoundValuation()); serr != nil {
				task.Outcome = model.OutcomeFailed
				task.Err = fmt.Sprintf("failed to save placeholder: %v", serr)
				return task
			}
			task.Outcome = model.OutcomeNotFound
			log.Printf("lane %d: no valuation page for %q", lane, cleaned)
			return task
		case ActionFail:
			task.Outcome = model.OutcomeFailed
			task.Err = err.Error()
			return task
		}

		log.Printf("lane %d: attempt %d for %q failed (%v), retrying in %s",
			lane, task.Attempts, cleaned, err, decision.Wait)
		if task.Attempts >= q.maxAttempts {
			task.Outcome = model.OutcomeFailed
			task.Err = fmt.Sprintf("max attempts (%d) reached: %v", q.maxAttempts, err)
			return task
		}
		if serr := sleepCtx(ctx, decision.Wait); serr != nil {
			task.Outcome = model.OutcomeFailed
			task.Err = serr.Error()
			return task
		}
	}

	task.Outcome = model.OutcomeFailed
	task.Err = fmt.Sprintf("max attempts (%d) reached", q.maxAttempts)
	return task
}

// lookupOnce opens a fresh session for the attempt and always closes it.
func (q *QueueManager) lookupOnce(ctx context.Context, address string) (*model.ValuationData, error) {
	session, err := q.source.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	defer session.Close()
	return session.Lookup(ctx, address)
}

func notFoundValuation() *model.ValuationData {
	return &model.ValuationData{
		Source:      "scrape",
		Status:      "not_found",
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
		Rental:      &model.RentalEstimate{},
	}
}

// partition deals addresses round-robin across lanes, preserving relative
// order inside each lane.
func partition(addresses []string, lanes int) [][]string {
	out := make([][]string, lanes)
	for i, addr := range addresses {
		lane := i % lanes
		out[lane] = append(out[lane], addr)
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package model

// Terminal outcomes for a scrape task.
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// ScrapeTask is one address queued for a valuation lookup. A task is owned by
// the lane that dequeued it and is never shared across lanes.
type ScrapeTask struct {
	Address  string `json:"address"`
	Lane     int    `json:"lane"`
	Attempts int    `json:"attempts"`
	Outcome  string `json:"outcome"`
	Err      string `json:"error,omitempty"`
}

// ScrapeReport aggregates the outcome of a full queue run.
type ScrapeReport struct {
	Total    int
	Found    int
	NotFound int
	Skipped  int
	Failed   []ScrapeTask
}

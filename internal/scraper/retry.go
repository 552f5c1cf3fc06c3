package scraper

import (
	"errors"
	"strings"
	"time"
)

// Action says what the queue should do with a failed lookup.
type Action int

const (
	// ActionRetry waits and tries the lookup again.
	ActionRetry Action = iota
	// ActionNotFound records a terminal not-found placeholder.
	ActionNotFound
	// ActionFail abandons the task.
	ActionFail
)

// Decision is a classified failure: what to do and how long to wait first.
type Decision struct {
	Action Action
	Wait   time.Duration
}

// ClassifierConfig holds the wait times for each failure class.
type ClassifierConfig struct {
	RateLimitWait time.Duration
	ServerErrWait time.Duration
	ConnAbortWait time.Duration
	BackoffBase   time.Duration
	BackoffCap    time.Duration
}

// Classifier maps lookup errors to retry decisions. Rules are checked in
// order; the first match wins.
type Classifier struct {
	cfg ClassifierConfig
}

func NewClassifier(cfg ClassifierConfig) *Classifier {
	if cfg.RateLimitWait == 0 {
		cfg.RateLimitWait = 30 * time.Second
	}
	if cfg.ServerErrWait == 0 {
		cfg.ServerErrWait = 15 * time.Second
	}
	if cfg.ConnAbortWait == 0 {
		cfg.ConnAbortWait = time.Hour
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = 5 * time.Second
	}
	if cfg.BackoffCap == 0 {
		cfg.BackoffCap = 2 * time.Minute
	}
	return &Classifier{cfg: cfg}
}

// Classify decides how to handle err after the given attempt number
// (1-based).
func (c *Classifier) Classify(err error, attempt int) Decision {
	if errors.Is(err, ErrNoMatch) {
		return Decision{Action: ActionNotFound}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection aborted"),
		strings.Contains(msg, "connection reset"):
		// Sustained blocking from the remote side. Back off for a long time
		// rather than burning attempts.
		return Decision{Action: ActionRetry, Wait: c.cfg.ConnAbortWait}
	case strings.Contains(msg, "500"),
		strings.Contains(msg, "502"),
		strings.Contains(msg, "503"):
		return Decision{Action: ActionRetry, Wait: c.cfg.ServerErrWait}
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "rate limit"):
		return Decision{Action: ActionRetry, Wait: c.cfg.RateLimitWait}
	}

	wait := time.Duration(attempt) * c.cfg.BackoffBase
	if wait > c.cfg.BackoffCap {
		wait = c.cfg.BackoffCap
	}
	return Decision{Action: ActionRetry, Wait: wait}
}

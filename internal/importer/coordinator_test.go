package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-pipeline/internal/model"
	"property-pipeline/internal/store"
)

// memProgress is an in-memory job cursor for coordinator tests.
type memProgress struct {
	mu   sync.Mutex
	jobs map[string]*model.ImportJob
}

func newMemProgress() *memProgress {
	return &memProgress{jobs: make(map[string]*model.ImportJob)}
}

func (p *memProgress) CreateJob(batchSize, totalItems int) (*model.ImportJob, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	job := &model.ImportJob{
		ID:         uuid.New().String(),
		BatchSize:  batchSize,
		TotalItems: totalItems,
		Status:     model.StatusInProgress,
		StartedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	p.jobs[job.ID] = job
	return copyJob(job), nil
}

func (p *memProgress) GetJob(id string) (*model.ImportJob, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	job, ok := p.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	return copyJob(job), nil
}

func (p *memProgress) UpdateProgress(id string, fromOffset, toOffset int, status string, errPayload *string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	job, ok := p.jobs[id]
	if !ok {
		return false, store.ErrJobNotFound
	}
	if job.CurrentOffset != fromOffset {
		return false, nil
	}
	job.CurrentOffset = toOffset
	job.Status = status
	job.Error = errPayload
	job.UpdatedAt = time.Now()
	return true, nil
}

func (p *memProgress) FailJob(id, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	job, ok := p.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	job.Status = model.StatusFailed
	job.Error = &reason
	return nil
}

func copyJob(j *model.ImportJob) *model.ImportJob {
	c := *j
	return &c
}

// memMerger records merged ids and can fail specific listings.
type memMerger struct {
	mu     sync.Mutex
	merged []string
	errFor map[string]error
}

func newMemMerger() *memMerger {
	return &memMerger{errFor: make(map[string]error)}
}

func (m *memMerger) MergeListing(l *model.SourceListing) error {
	if l.ID == "" {
		return &store.ValidationError{ListingID: l.ID, Field: "id"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errFor[l.ID]; ok {
		return err
	}
	m.merged = append(m.merged, l.ID)
	return nil
}

func (m *memMerger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.merged)
}

func makeDataset(n int) []model.SourceListing {
	out := make([]model.SourceListing, n)
	for i := range out {
		out[i] = model.SourceListing{
			ID:           fmt.Sprintf("prop-%d", i),
			PropertyType: "house",
		}
	}
	return out
}

func TestCoordinatorRunsToCompletion(t *testing.T) {
	progress := newMemProgress()
	merger := newMemMerger()
	coord := NewCoordinator(progress, merger, makeDataset(25), 10)

	res, err := coord.StartImport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, res.Job.CurrentOffset)
	assert.Equal(t, model.StatusInProgress, res.Job.Status)
	assert.False(t, res.Done)

	res, err = coord.Advance(context.Background(), res.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, res.Job.CurrentOffset)
	assert.False(t, res.Done)

	// Final partial batch.
	res, err = coord.Advance(context.Background(), res.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, res.Job.CurrentOffset)
	assert.Equal(t, model.StatusCompleted, res.Job.Status)
	assert.True(t, res.Done)
	assert.Equal(t, 5, res.Merged)

	assert.Equal(t, 25, merger.count())

	// Advancing a completed job is a no-op.
	res, err = coord.Advance(context.Background(), res.Job.ID)
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, 25, merger.count())
}

func TestCoordinatorSkipsInvalidItems(t *testing.T) {
	progress := newMemProgress()
	merger := newMemMerger()
	dataset := makeDataset(10)
	dataset[3].ID = ""

	coord := NewCoordinator(progress, merger, dataset, 10)
	res, err := coord.StartImport(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Done)
	assert.Equal(t, 9, res.Merged)
	require.Len(t, res.ItemErrors, 1)
	assert.Equal(t, "validation", res.ItemErrors[0].Stage)

	// The skipped item lands in the job's error payload without failing it.
	job, err := progress.GetJob(res.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, job.Status)
	require.NotNil(t, job.Error)
	assert.Contains(t, *job.Error, "validation")
}

func TestCoordinatorFailsOnPersistenceError(t *testing.T) {
	progress := newMemProgress()
	merger := newMemMerger()
	merger.errFor["prop-2"] = errors.New("disk full")

	coord := NewCoordinator(progress, merger, makeDataset(10), 10)
	res, err := coord.StartImport(context.Background())
	require.Error(t, err)
	assert.Nil(t, res)

	jobs := progress.jobs
	require.Len(t, jobs, 1)
	for id := range jobs {
		job, gerr := progress.GetJob(id)
		require.NoError(t, gerr)
		assert.Equal(t, model.StatusFailed, job.Status)
		require.NotNil(t, job.Error)
		assert.Contains(t, *job.Error, "disk full")

		// A failed job refuses to resume.
		_, aerr := coord.Advance(context.Background(), id)
		assert.ErrorIs(t, aerr, ErrJobFailed)
	}
}

// racingProgress lets a rival worker advance the cursor between a reader's
// GetJob and its UpdateProgress, once.
type racingProgress struct {
	*memProgress
	raced bool
}

func (p *racingProgress) UpdateProgress(id string, fromOffset, toOffset int, status string, errPayload *string) (bool, error) {
	if !p.raced {
		p.raced = true
		if _, err := p.memProgress.UpdateProgress(id, fromOffset, toOffset, status, errPayload); err != nil {
			return false, err
		}
	}
	return p.memProgress.UpdateProgress(id, fromOffset, toOffset, status, errPayload)
}

func TestCoordinatorLostRaceIsNoOp(t *testing.T) {
	progress := &racingProgress{memProgress: newMemProgress()}
	merger := newMemMerger()
	coord := NewCoordinator(progress, merger, makeDataset(25), 10)

	// The rival commits [0,10) first, so our compare-and-set misses and the
	// call reports the rival's progress instead of erroring.
	res, err := coord.StartImport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, res.Job.CurrentOffset)
	assert.False(t, res.Done)

	// Offset only moved once despite two update attempts.
	job, err := progress.GetJob(res.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, job.CurrentOffset)

	// The job still runs to completion afterwards.
	res, err = coord.Advance(context.Background(), res.Job.ID)
	require.NoError(t, err)
	res, err = coord.Advance(context.Background(), res.Job.ID)
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, 25, res.Job.CurrentOffset)
}

func TestCoordinatorFailsOnShrunkenDataset(t *testing.T) {
	progress := newMemProgress()
	merger := newMemMerger()

	// A job from a previous run expects 25 items, but the process came
	// back with only 5 loaded.
	job, err := progress.CreateJob(10, 25)
	require.NoError(t, err)

	coord := NewCoordinator(progress, merger, makeDataset(5), 10)
	res, err := coord.Advance(context.Background(), job.ID)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 0, merger.count())

	loaded, err := progress.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, loaded.Status)
	require.NotNil(t, loaded.Error)
	assert.Contains(t, *loaded.Error, "dataset has 5 items but job expects 25")

	// The wedged job stays terminal instead of panicking on later triggers.
	_, err = coord.Advance(context.Background(), job.ID)
	assert.ErrorIs(t, err, ErrJobFailed)
}

func TestCoordinatorFailsOnDispatchError(t *testing.T) {
	progress := newMemProgress()
	merger := newMemMerger()
	coord := NewCoordinator(progress, merger, makeDataset(25), 10)
	coord.UseContinuer(failingContinuer{})

	res, err := coord.StartImport(context.Background())
	require.Error(t, err)
	assert.Nil(t, res)

	for id := range progress.jobs {
		job, gerr := progress.GetJob(id)
		require.NoError(t, gerr)
		assert.Equal(t, model.StatusFailed, job.Status)
		require.NotNil(t, job.Error)
		assert.Contains(t, *job.Error, "trigger")
	}
}

type failingContinuer struct{}

func (failingContinuer) TriggerNext(context.Context, string) error {
	return errors.New("trigger endpoint unreachable")
}

func TestCoordinatorInProcessContinuation(t *testing.T) {
	progress := newMemProgress()
	merger := newMemMerger()
	coord := NewCoordinator(progress, merger, makeDataset(25), 10)
	coord.ContinueInProcess(0)

	res, err := coord.StartImport(context.Background())
	require.NoError(t, err)
	jobID := res.Job.ID

	require.Eventually(t, func() bool {
		job, gerr := progress.GetJob(jobID)
		return gerr == nil && job.Status == model.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	job, err := progress.GetJob(jobID)
	require.NoError(t, err)
	assert.Equal(t, 25, job.CurrentOffset)
	assert.Equal(t, 25, merger.count())
}

func TestLoadDatasetStripsBOM(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/data.json"
	raw := append([]byte{0xEF, 0xBB, 0xBF},
		[]byte(`[{"id":"prop-1","propertyType":"house"}]`)...)
	require.NoError(t, os.WriteFile(path, raw, 0644))

	listings, err := LoadDataset(path)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "prop-1", listings[0].ID)
}

func TestAddressesCleansAndFilters(t *testing.T) {
	listings := []model.SourceListing{
		{Address: model.Address{Display: model.AddressDisplay{FullAddress: "ID:99/12 Smith St, Richmond"}}},
		{Address: model.Address{Display: model.AddressDisplay{FullAddress: "   "}}},
	}
	addrs := Addresses(listings)
	require.Len(t, addrs, 1)
	assert.Equal(t, "12 Smith St, Richmond", addrs[0])
}

package scraper

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"property-pipeline/internal/importer"
	"property-pipeline/internal/model"
	"property-pipeline/pkg/utils"
)

// ResultSink receives the valuation for an address once a task finishes.
type ResultSink interface {
	SaveValuation(address string, v *model.ValuationData) error
}

// DatasetSink writes valuations back into the listings JSON file, matching
// tasks to listings by cleaned full address. Writes are serialized; lanes
// share one sink.
type DatasetSink struct {
	path string

	mu       sync.Mutex
	listings []model.SourceListing
}

func NewDatasetSink(path string) (*DatasetSink, error) {
	listings, err := importer.LoadDataset(path)
	if err != nil {
		return nil, err
	}
	return &DatasetSink{path: path, listings: listings}, nil
}

func (d *DatasetSink) SaveValuation(address string, v *model.ValuationData) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	found := false
	for i := range d.listings {
		if utils.CleanAddress(d.listings[i].Address.Display.FullAddress) == address {
			d.listings[i].ValuationData = v
			found = true
		}
	}
	if !found {
		return fmt.Errorf("no listing matches address %q", address)
	}

	raw, err := json.MarshalIndent(d.listings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	if err := os.WriteFile(d.path, raw, 0644); err != nil {
		return fmt.Errorf("failed to write dataset %s: %w", d.path, err)
	}
	return nil
}

// MemorySink collects valuations in memory, for tests and dry runs.
type MemorySink struct {
	mu     sync.Mutex
	ByAddr map[string]*model.ValuationData
}

func NewMemorySink() *MemorySink {
	return &MemorySink{ByAddr: make(map[string]*model.ValuationData)}
}

func (m *MemorySink) SaveValuation(address string, v *model.ValuationData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ByAddr[address] = v
	return nil
}

package scraper

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-pipeline/internal/model"
)

func TestDatasetSinkWritesBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte(`[
		{"id":"prop-1","propertyType":"house","address":{"display":{"fullAddress":"ID:42/9 Ninth St, Fitzroy VIC 3065"}}},
		{"id":"prop-2","propertyType":"unit","address":{"display":{"fullAddress":"10 Tenth St, Fitzroy VIC 3065"}}}
	]`)...)
	require.NoError(t, os.WriteFile(path, raw, 0644))

	sink, err := NewDatasetSink(path)
	require.NoError(t, err)

	v := &model.ValuationData{Source: "scrape", Status: "found", EstimatedValue: "$950,000"}
	// The sink matches on the cleaned address, not the raw one.
	require.NoError(t, sink.SaveValuation("9 Ninth St, Fitzroy VIC 3065", v))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	var listings []model.SourceListing
	require.NoError(t, json.Unmarshal(out, &listings))
	require.Len(t, listings, 2)

	require.NotNil(t, listings[0].ValuationData)
	assert.Equal(t, "$950,000", listings[0].ValuationData.EstimatedValue)
	assert.Nil(t, listings[1].ValuationData)
}

func TestDatasetSinkUnknownAddress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0644))

	sink, err := NewDatasetSink(path)
	require.NoError(t, err)

	err = sink.SaveValuation("nowhere", &model.ValuationData{})
	assert.Error(t, err)
}

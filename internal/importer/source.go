package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"property-pipeline/internal/model"
	"property-pipeline/pkg/utils"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LoadDataset reads the scraped listings file. Exported datasets sometimes
// carry a UTF-8 BOM, which is stripped before decoding.
func LoadDataset(path string) ([]model.SourceListing, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)

	var listings []model.SourceListing
	if err := json.Unmarshal(raw, &listings); err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", path, err)
	}
	return listings, nil
}

// Addresses returns the cleaned full address of every listing that has one.
func Addresses(listings []model.SourceListing) []string {
	var out []string
	for _, l := range listings {
		addr := utils.CleanAddress(l.Address.Display.FullAddress)
		if addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

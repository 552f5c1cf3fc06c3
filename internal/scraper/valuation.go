package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"property-pipeline/internal/model"
)

// ErrNoMatch means the valuation site has no page for the address. This is
// terminal: retrying will not make the property appear.
var ErrNoMatch = errors.New("no valuation page for address")

// ValuationSource opens lookup sessions against the valuation site.
type ValuationSource interface {
	Open(ctx context.Context) (Session, error)
}

// Session performs lookups. One session serves exactly one task and must be
// closed when the task ends, however it ends.
type Session interface {
	Lookup(ctx context.Context, address string) (*model.ValuationData, error)
	Close() error
}

// HTTPSource looks valuations up over plain HTTP and parses the result page.
type HTTPSource struct {
	BaseURL string
	Timeout time.Duration
}

func (s *HTTPSource) Open(ctx context.Context) (Session, error) {
	timeout := s.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &httpSession{
		baseURL: s.BaseURL,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type httpSession struct {
	baseURL string
	client  *http.Client
}

func (s *httpSession) Lookup(ctx context.Context, address string) (*model.ValuationData, error) {
	target := fmt.Sprintf("%s/property/%s", s.baseURL, url.PathEscape(slugify(address)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build lookup request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoMatch
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lookup returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse valuation page: %w", err)
	}

	panel := doc.Find(`[data-testid="valuation-panel"]`)
	if panel.Length() == 0 {
		return nil, ErrNoMatch
	}

	v := &model.ValuationData{
		Source:         "scrape",
		Status:         "found",
		Confidence:     text(panel, `[data-testid="valuation-confidence"]`),
		EstimatedValue: text(panel, `[data-testid="valuation-estimate"]`),
		PricePerMeter:  text(panel, `[data-testid="valuation-price-per-meter"]`),
		PriceRange:     text(panel, `[data-testid="valuation-range"]`),
		LastUpdated:    time.Now().UTC().Format(time.RFC3339),
	}

	rental := doc.Find(`[data-testid="rental-panel"]`)
	if rental.Length() > 0 {
		v.Rental = &model.RentalEstimate{
			Confidence: text(rental, `[data-testid="rental-confidence"]`),
			Value:      text(rental, `[data-testid="rental-estimate"]`),
			Period:     text(rental, `[data-testid="rental-period"]`),
			Message:    text(rental, `[data-testid="rental-message"]`),
		}
	}
	return v, nil
}

func (s *httpSession) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func text(sel *goquery.Selection, query string) string {
	return strings.TrimSpace(sel.Find(query).First().Text())
}

func slugify(address string) string {
	slug := strings.ToLower(address)
	slug = strings.ReplaceAll(slug, ",", "")
	slug = strings.ReplaceAll(slug, "/", "-")
	slug = strings.Join(strings.Fields(slug), "-")
	return slug
}

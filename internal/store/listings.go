package store

import (
	"database/sql"
	"fmt"

	"property-pipeline/internal/model"
	"property-pipeline/pkg/utils"
)

// ValidationError marks a listing that cannot be persisted because a
// required field is missing. Callers skip the item instead of failing the
// whole batch.
type ValidationError struct {
	ListingID string
	Field     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("listing %q missing required field %s", e.ListingID, e.Field)
}

// MergeListing persists one source listing into the relational tables.
// Re-running with the same listing converges to the same rows; the image
// list is replaced wholesale so removals on the source side propagate.
func (s *Store) MergeListing(l *model.SourceListing) error {
	if l.ID == "" {
		return &ValidationError{ListingID: l.ID, Field: "id"}
	}
	if l.PropertyType == "" {
		return &ValidationError{ListingID: l.ID, Field: "propertyType"}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var companyID *string
	if l.ListingCompany != nil && l.ListingCompany.ID != "" {
		if err := mergeCompany(tx, l.ListingCompany); err != nil {
			return err
		}
		companyID = &l.ListingCompany.ID
	}

	_, err = tx.Exec(
		`INSERT INTO properties (id, property_type, property_link, description, scraped_at, listing_company_id)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			property_type = excluded.property_type,
			property_link = excluded.property_link,
			description = excluded.description,
			scraped_at = excluded.scraped_at,
			listing_company_id = excluded.listing_company_id,
			updated_at = CURRENT_TIMESTAMP`,
		l.ID, l.PropertyType, l.PropertyLink, l.Description, l.ScrapedAt, companyID,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert property %s: %w", l.ID, err)
	}

	if err := mergeAddress(tx, l); err != nil {
		return err
	}
	if err := mergeFeatures(tx, l); err != nil {
		return err
	}
	if err := replaceImages(tx, l); err != nil {
		return err
	}
	if err := mergePrice(tx, l); err != nil {
		return err
	}
	if err := mergeValuation(tx, l.ID, l.ValuationData); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit listing %s: %w", l.ID, err)
	}
	return nil
}

func mergeCompany(tx *sql.Tx, c *model.ListingCompany) error {
	var avgRating *float64
	var totalReviews *int
	if c.RatingsReviews != nil {
		avgRating = c.RatingsReviews.AvgRating
		totalReviews = c.RatingsReviews.TotalReviews
	}
	_, err := tx.Exec(
		`INSERT INTO listing_companies (id, name, phone_number, address, avg_rating, total_reviews)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone_number = excluded.phone_number,
			address = excluded.address,
			avg_rating = excluded.avg_rating,
			total_reviews = excluded.total_reviews`,
		c.ID, c.Name, c.PhoneNumber, c.Address, avgRating, totalReviews,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert company %s: %w", c.ID, err)
	}
	return nil
}

func mergeAddress(tx *sql.Tx, l *model.SourceListing) error {
	_, err := tx.Exec(
		`INSERT INTO addresses (property_id, short_address, full_address, suburb, state, postcode)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(property_id) DO UPDATE SET
			short_address = excluded.short_address,
			full_address = excluded.full_address,
			suburb = excluded.suburb,
			state = excluded.state,
			postcode = excluded.postcode`,
		l.ID, l.Address.Display.ShortAddress, l.Address.Display.FullAddress,
		l.Address.Suburb, l.Address.State, l.Address.Postcode,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert address for %s: %w", l.ID, err)
	}
	return nil
}

func mergeFeatures(tx *sql.Tx, l *model.SourceListing) error {
	var bedrooms, bathrooms, parking *int
	if f := l.GeneralFeatures; f != nil {
		if f.Bedrooms != nil {
			bedrooms = f.Bedrooms.Value
		}
		if f.Bathrooms != nil {
			bathrooms = f.Bathrooms.Value
		}
		if f.ParkingSpaces != nil {
			parking = f.ParkingSpaces.Value
		}
	}

	var landSize, buildingSize *float64
	var landUnit, buildingUnit string
	if ps := l.PropertySizes; ps != nil {
		if ps.Land != nil {
			landSize = utils.ParseNullableFloat(ps.Land.DisplayValue)
			if ps.Land.SizeUnit != nil {
				landUnit = ps.Land.SizeUnit.DisplayValue
			}
		}
		if ps.Building != nil {
			buildingSize = utils.ParseNullableFloat(ps.Building.DisplayValue)
			if ps.Building.SizeUnit != nil {
				buildingUnit = ps.Building.SizeUnit.DisplayValue
			}
		}
	}

	_, err := tx.Exec(
		`INSERT INTO property_features (property_id, bedrooms, bathrooms, parking_spaces, land_size, land_unit, building_size, building_unit)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(property_id) DO UPDATE SET
			bedrooms = excluded.bedrooms,
			bathrooms = excluded.bathrooms,
			parking_spaces = excluded.parking_spaces,
			land_size = excluded.land_size,
			land_unit = excluded.land_unit,
			building_size = excluded.building_size,
			building_unit = excluded.building_unit`,
		l.ID, bedrooms, bathrooms, parking, landSize, landUnit, buildingSize, buildingUnit,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert features for %s: %w", l.ID, err)
	}
	return nil
}

func replaceImages(tx *sql.Tx, l *model.SourceListing) error {
	if _, err := tx.Exec(`DELETE FROM property_images WHERE property_id = ?`, l.ID); err != nil {
		return fmt.Errorf("failed to clear images for %s: %w", l.ID, err)
	}
	for i, img := range l.Images {
		url := utils.SubstituteImageSize(img, "800x600")
		if _, err := tx.Exec(
			`INSERT INTO property_images (property_id, url, position) VALUES (?, ?, ?)`,
			l.ID, url, i,
		); err != nil {
			return fmt.Errorf("failed to insert image for %s: %w", l.ID, err)
		}
	}
	return nil
}

func mergePrice(tx *sql.Tx, l *model.SourceListing) error {
	if l.Price == nil && l.PriceDetails == nil {
		return nil
	}
	var display, searchRange, information, from, to string
	if l.Price != nil {
		display = l.Price.Display
		searchRange = l.Price.SearchRange
		information = l.Price.Information
	}
	if l.PriceDetails != nil {
		from = l.PriceDetails.From
		to = l.PriceDetails.To
	}
	_, err := tx.Exec(
		`INSERT INTO property_prices (property_id, display_price, price_range, price_information, price_from, price_to)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(property_id) DO UPDATE SET
			display_price = excluded.display_price,
			price_range = excluded.price_range,
			price_information = excluded.price_information,
			price_from = excluded.price_from,
			price_to = excluded.price_to`,
		l.ID, display, searchRange, information, from, to,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert price for %s: %w", l.ID, err)
	}
	return nil
}

func mergeValuation(tx *sql.Tx, propertyID string, v *model.ValuationData) error {
	if v == nil {
		return nil
	}
	var rentalConfidence, rentalValue, rentalPeriod, rentalMessage string
	if v.Rental != nil {
		rentalConfidence = v.Rental.Confidence
		rentalValue = v.Rental.Value
		rentalPeriod = v.Rental.Period
		rentalMessage = v.Rental.Message
	}
	_, err := tx.Exec(
		`INSERT INTO property_valuations (property_id, source, status, confidence, estimated_value, price_per_meter, price_range, last_updated, rental_confidence, rental_value, rental_period, rental_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(property_id) DO UPDATE SET
			source = excluded.source,
			status = excluded.status,
			confidence = excluded.confidence,
			estimated_value = excluded.estimated_value,
			price_per_meter = excluded.price_per_meter,
			price_range = excluded.price_range,
			last_updated = excluded.last_updated,
			rental_confidence = excluded.rental_confidence,
			rental_value = excluded.rental_value,
			rental_period = excluded.rental_period,
			rental_message = excluded.rental_message`,
		propertyID, v.Source, v.Status, v.Confidence, v.EstimatedValue,
		v.PricePerMeter, v.PriceRange, v.LastUpdated,
		rentalConfidence, rentalValue, rentalPeriod, rentalMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert valuation for %s: %w", propertyID, err)
	}
	return nil
}

// PropertyDetail is the flattened read model for a stored property.
type PropertyDetail struct {
	ID           string   `json:"id"`
	PropertyType string   `json:"propertyType"`
	PropertyLink string   `json:"propertyLink"`
	Description  string   `json:"description"`
	FullAddress  string   `json:"fullAddress"`
	Suburb       string   `json:"suburb"`
	State        string   `json:"state"`
	Postcode     string   `json:"postcode"`
	Bedrooms     *int     `json:"bedrooms"`
	Bathrooms    *int     `json:"bathrooms"`
	Images       []string `json:"images"`
	CompanyName  string   `json:"companyName,omitempty"`
}

// GetPropertyDetail loads a stored property with its address, features,
// images, and listing company.
func (s *Store) GetPropertyDetail(id string) (*PropertyDetail, error) {
	row := s.db.QueryRow(
		`SELECT p.id, p.property_type, p.property_link, p.description,
			COALESCE(a.full_address, ''), COALESCE(a.suburb, ''), COALESCE(a.state, ''), COALESCE(a.postcode, ''),
			f.bedrooms, f.bathrooms, COALESCE(c.name, '')
		 FROM properties p
		 LEFT JOIN addresses a ON a.property_id = p.id
		 LEFT JOIN property_features f ON f.property_id = p.id
		 LEFT JOIN listing_companies c ON c.id = p.listing_company_id
		 WHERE p.id = ?`, id,
	)

	var d PropertyDetail
	err := row.Scan(&d.ID, &d.PropertyType, &d.PropertyLink, &d.Description,
		&d.FullAddress, &d.Suburb, &d.State, &d.Postcode,
		&d.Bedrooms, &d.Bathrooms, &d.CompanyName)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load property %s: %w", id, err)
	}

	rows, err := s.db.Query(
		`SELECT url FROM property_images WHERE property_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load images for %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, err
		}
		d.Images = append(d.Images, url)
	}
	return &d, rows.Err()
}

// CountImages reports how many image rows a property has.
func (s *Store) CountImages(propertyID string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM property_images WHERE property_id = ?`, propertyID,
	).Scan(&n)
	return n, err
}

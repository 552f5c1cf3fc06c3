package model

// SourceListing is one raw listing from the scraped dataset. The shape is
// irregular: beyond the id and type almost every path is optional, so every
// optional branch is a pointer and consumers parse defensively.
type SourceListing struct {
	ID              string           `json:"id"`
	PropertyType    string           `json:"propertyType"`
	PropertyLink    string           `json:"propertyLink"`
	Description     string           `json:"description"`
	ScrapedAt       string           `json:"scraped_at"`
	Address         Address          `json:"address"`
	GeneralFeatures *GeneralFeatures `json:"generalFeatures,omitempty"`
	PropertySizes   *PropertySizes   `json:"propertySizes,omitempty"`
	Images          []string         `json:"images"`
	ListingCompany  *ListingCompany  `json:"listingCompany,omitempty"`
	ValuationData   *ValuationData   `json:"valuationData,omitempty"`
	Price           *Price           `json:"price,omitempty"`
	PriceDetails    *PriceDetails    `json:"priceDetails,omitempty"`
}

type Address struct {
	Display  AddressDisplay `json:"display"`
	Suburb   string         `json:"suburb"`
	State    string         `json:"state"`
	Postcode string         `json:"postcode"`
}

type AddressDisplay struct {
	ShortAddress string `json:"shortAddress"`
	FullAddress  string `json:"fullAddress"`
}

// CountFeature wraps the source's {"value": n} envelopes around counts.
type CountFeature struct {
	Value *int `json:"value"`
}

type GeneralFeatures struct {
	Bedrooms      *CountFeature `json:"bedrooms,omitempty"`
	Bathrooms     *CountFeature `json:"bathrooms,omitempty"`
	ParkingSpaces *CountFeature `json:"parkingSpaces,omitempty"`
}

type SizeUnit struct {
	DisplayValue string `json:"displayValue"`
}

// PropertySize carries a formatted display value ("607" or "1,012m²"); the
// numeric value is recovered with a fallible parse at merge time.
type PropertySize struct {
	DisplayValue string    `json:"displayValue"`
	SizeUnit     *SizeUnit `json:"sizeUnit,omitempty"`
}

type PropertySizes struct {
	Land     *PropertySize `json:"land,omitempty"`
	Building *PropertySize `json:"building,omitempty"`
}

type RatingsReviews struct {
	AvgRating    *float64 `json:"avgRating,omitempty"`
	TotalReviews *int     `json:"totalReviews,omitempty"`
}

// ListingCompany is keyed independently of listings; many listings reference
// the same company.
type ListingCompany struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	PhoneNumber    string          `json:"phoneNumber"`
	Address        string          `json:"address"`
	RatingsReviews *RatingsReviews `json:"ratingsReviews,omitempty"`
}

type RentalEstimate struct {
	Confidence string `json:"confidence"`
	Value      string `json:"value"`
	Period     string `json:"period"`
	Message    string `json:"message"`
}

// ValuationData is the enrichment block produced by the valuation scraper and
// written back onto the listing. Status "not_found" is a valid terminal
// result, not a failure.
type ValuationData struct {
	Source         string          `json:"source"`
	Status         string          `json:"status"`
	Confidence     string          `json:"confidence"`
	EstimatedValue string          `json:"estimatedValue"`
	PricePerMeter  string          `json:"pricePerMeter"`
	PriceRange     string          `json:"priceRange"`
	LastUpdated    string          `json:"lastUpdated"`
	Rental         *RentalEstimate `json:"rental,omitempty"`
}

type Price struct {
	Display     string `json:"display"`
	SearchRange string `json:"searchRange"`
	Information string `json:"information"`
}

type PriceDetails struct {
	From string `json:"from"`
	To   string `json:"to"`
}

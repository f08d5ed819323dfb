package catalog

import "time"

// Product is one catalog entry to price. Immutable for the duration of a
// scrape cycle; sourced from the ledger's products collection.
type Product struct {
	ID         string `bson:"_id,omitempty" json:"id"`
	EAN        string `bson:"ean" json:"ean"`
	Name       string `bson:"name" json:"name"`
	CategoryID int    `bson:"category_id,omitempty" json:"category_id"`
	CountryID  int    `bson:"country_id,omitempty" json:"country_id"`
	LocationID int    `bson:"location_id,omitempty" json:"location_id"`
}

// Retailer is static reference data; Name selects the extraction strategy.
type Retailer struct {
	ID   string `bson:"_id,omitempty" json:"id"`
	Name string `bson:"name" json:"name"`
}

// PriceObservation is one verified price for a (product, retailer) pair.
// Write-once per calendar month; the existence check in the work selector
// enforces that before a task is ever scheduled.
type PriceObservation struct {
	ProductID  string    `bson:"product_id" json:"product_id"`
	RetailerID string    `bson:"retailer_id" json:"retailer_id"`
	EAN        string    `bson:"ean" json:"ean"`
	Name       string    `bson:"name" json:"name"`
	Price      float64   `bson:"price" json:"price"`
	CategoryID int       `bson:"category_id" json:"category_id"`
	CountryID  int       `bson:"country_id" json:"country_id"`
	LocationID int       `bson:"location_id" json:"location_id"`
	ObservedAt time.Time `bson:"observed_at" json:"observed_at"`
}

// PeriodStart returns the de-duplication boundary for t: the first calendar
// day of t's month in t's location.
func PeriodStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// Package model defines the records exchanged between the matching stages:
// scraped listings, canonical directory records and the match results that
// link them.
package model

// Listing is a business mention scraped from an external source.
type Listing struct {
	Name        string   `json:"name"`
	Phone       string   `json:"phone"`
	PostalCode  string   `json:"postal_code,omitempty"`
	Department  string   `json:"department,omitempty"`
	City        string   `json:"city,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	ReviewCount *int     `json:"review_count,omitempty"`
	Source      string   `json:"source"`
}

// HasRating reports whether the listing carries a usable rating and review count.
func (l Listing) HasRating() bool {
	return l.Rating != nil && l.ReviewCount != nil && *l.ReviewCount > 0
}

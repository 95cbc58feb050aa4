package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// CanonicalRecord is a directory row describing one real business.
type CanonicalRecord struct {
	ID            string   `json:"id" db:"id"`
	Name          string   `json:"name" db:"name"`
	Phone         *string  `json:"phone,omitempty" db:"phone"`
	RatingAverage *float64 `json:"rating_average,omitempty" db:"rating_average"`
	ReviewCount   *int     `json:"review_count,omitempty" db:"review_count"`
	Department    string   `json:"department" db:"department"`
	PostalCode    string   `json:"postal_code,omitempty" db:"postal_code"`
	City          string   `json:"city,omitempty" db:"city"`
	IsActive      bool     `json:"is_active" db:"is_active"`
}

// Field names the canonical attribute an enrichment run fills in.
type Field string

const (
	FieldPhone  Field = "phone"
	FieldRating Field = "rating"
)

// ParseField validates a field name coming from config or flags.
func ParseField(s string) (Field, error) {
	switch f := Field(strings.ToLower(strings.TrimSpace(s))); f {
	case FieldPhone, FieldRating:
		return f, nil
	default:
		return "", eris.Errorf("model: unknown field %q (want phone or rating)", s)
	}
}

// Column returns the nullable column guarding the field.
func (f Field) Column() string {
	if f == FieldRating {
		return "rating_average"
	}
	return "phone"
}

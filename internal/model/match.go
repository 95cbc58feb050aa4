package model

// MatchResult pairs a canonical record with the listing value assigned to it.
// Phone identifies the winning listing in both fields; it is the written value
// only when Field is FieldPhone.
type MatchResult struct {
	CanonicalID   string   `json:"canonical_id"`
	Field         Field    `json:"field"`
	Phone         string   `json:"phone"`
	RatingAverage *float64 `json:"rating_average,omitempty"`
	ReviewCount   *int     `json:"review_count,omitempty"`
	Score         float64  `json:"score"`
	Source        string   `json:"source"`
	Department    string   `json:"department,omitempty"`
}

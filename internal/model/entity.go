package model

import "time"

// Entity is the canonical record stored in the primary database. A trimmed
// projection of it is written to the owning shard for horizontal reads.
type Entity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AnalyticsReport is a single aggregate row for one entity over a time
// window. Fields are zero-valued when the analytics engine has no matching
// rows; callers never see a nil report.
type AnalyticsReport struct {
	EntityID   string    `json:"entity_id"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	EventCount int64     `json:"event_count"`
	TotalValue float64   `json:"total_value"`
}

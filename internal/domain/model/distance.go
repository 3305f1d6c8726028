package model

import "time"

// DistanceRecord holds the travel metadata associated with a job, one-to-one
// by job id. It is written by the distance feed independently of job state;
// last write wins.
type DistanceRecord struct {
	JobID             string    `json:"job_id"              db:"job_id"`
	DistanceKm        *float64  `json:"distance_km"         db:"distance_km"`
	TravelTimeMinutes *int      `json:"travel_time_minutes" db:"travel_time_minutes"`
	ByAdmin           bool      `json:"by_admin"            db:"by_admin"`
	UpdatedAt         time.Time `json:"updated_at"          db:"updated_at"`
}

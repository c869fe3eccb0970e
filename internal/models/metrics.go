package models

import "time"

// SystemMetrics is an aggregated point-in-time view of runtime counters,
// served on the admin dashboard endpoint.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	BookingsTotal            uint64    `json:"bookings_total"`
	BookingConflictsTotal    uint64    `json:"booking_conflicts_total"`
	CancellationsTotal       uint64    `json:"cancellations_total"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

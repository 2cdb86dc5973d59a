// Package loadtest drives a running farmwatch instance with generated
// readings and checks every answer against the scoring rules.
package loadtest

import "time"

// Config holds configuration for a load test run.
type Config struct {
	BaseURL     string        // Base URL of the service
	NumReadings int           // Number of readings to generate
	Workers     int           // Number of concurrent submitters
	Timeout     time.Duration // HTTP request timeout
	Seed        uint64        // Generator seed; 0 picks a random one
	OutputFile  string        // Optional JSON file for generated readings
	Verbose     bool          // Log every mismatch
}

// Reading is the request body posted to /calculate-risk.
type Reading struct {
	FarmerID    string  `json:"farmer_id"`
	DHAPercent  float64 `json:"plasma_dha_pct"`
	MRIVolume   float64 `json:"mri_volume_norm"`
	PhoneNumber string  `json:"phone_number"`
	VillageName string  `json:"village_name"`
}

// Response is the body returned by /calculate-risk.
type Response struct {
	FarmerID    string  `json:"farmer_id"`
	RiskScore   float64 `json:"risk_score"`
	Certainty   float64 `json:"certainty"`
	AlertNeeded bool    `json:"alert_needed"`
	SMSSent     bool    `json:"sms_sent"`
	Timestamp   string  `json:"timestamp"`
}

// Health is the body returned by /health.
type Health struct {
	Status            string `json:"status"`
	ReasonerAvailable bool   `json:"reasoner_available"`
	Timestamp         string `json:"timestamp"`
}

// Stats collects the outcome of a run.
type Stats struct {
	Generated  int
	Submitted  int
	Successful int
	Failed     int
	Mismatches int
	Alerts     int
	SMSSent    int
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}

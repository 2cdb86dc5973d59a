// Package model contains domain models passed between layers.
package model

import "time"

// Reading bounds.
const (
	MinDHAPercent = 0.0
	MaxDHAPercent = 10.0
	MinMRIVolume  = 0.0
	MaxMRIVolume  = 1.0
)

// Reading is one farmer's biometric submission. It lives for a single request.
type Reading struct {
	FarmerID    string
	DHAPercent  float64 // plasma DHA, percent in [0, 10]
	MRIVolume   float64 // normalised MRI volume in [0, 1]
	PhoneNumber string
	VillageName string
}

// InRange reports whether both biometric values are inside their bounds.
func (r Reading) InRange() bool {
	return r.DHAPercent >= MinDHAPercent && r.DHAPercent <= MaxDHAPercent &&
		r.MRIVolume >= MinMRIVolume && r.MRIVolume <= MaxMRIVolume
}

// CertaintySource names the path that produced a certainty value.
type CertaintySource string

const (
	SourceLocal    CertaintySource = "local"
	SourceRemote   CertaintySource = "remote"
	SourceFallback CertaintySource = "fallback"
)

// Assessment is the outcome of scoring one Reading.
type Assessment struct {
	RequestID       string
	FarmerID        string
	RiskScore       float64
	Certainty       float64
	CertaintySource CertaintySource
	AlertNeeded     bool
	SMSScheduled    bool
	Timestamp       time.Time
}

// Alert is a notification handed to the background dispatcher.
type Alert struct {
	ID        string
	RequestID string
	FarmerID  string
	Phone     string
	Message   string
	CreatedAt time.Time
}

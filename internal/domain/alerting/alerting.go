// Package alerting decides whether an assessment warrants an SMS alert and
// composes the alert text.
package alerting

import (
	"fmt"
	"strings"

	"github.com/okian/farmwatch/internal/domain/model"
)

// Fixed alert gate thresholds.
const (
	RiskThreshold      = 0.4
	CertaintyThreshold = 0.7
)

// MaxMessageLength is the longest SMS body the webhook accepts.
const MaxMessageLength = 1600

// Decide reports whether to alert: risk strictly below 0.4 and certainty
// strictly above 0.7.
func Decide(riskScore, certainty float64) bool {
	return riskScore < RiskThreshold && certainty > CertaintyThreshold
}

// Compose builds the alert text for a reading that passed the gate.
func Compose(r model.Reading, riskScore, certainty float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "URGENT MEDICAL ALERT (Certainty: %.0f%%)\n", certainty*100)
	fmt.Fprintf(&b, "Farmer: %s\n", r.FarmerID)
	fmt.Fprintf(&b, "Village: %s\n", r.VillageName)
	fmt.Fprintf(&b, "Risk Score: %.3f (<%.1f threshold)\n", riskScore, RiskThreshold)
	b.WriteString("Action: Schedule immediate consultation")
	return Truncate(b.String(), MaxMessageLength)
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

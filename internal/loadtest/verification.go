package loadtest

import (
	"fmt"

	"github.com/okian/farmwatch/internal/domain/alerting"
	"github.com/okian/farmwatch/internal/domain/certainty"
	"github.com/okian/farmwatch/internal/domain/scoring"
)

// Verify compares a response with the rules applied locally. Certainty is
// only compared when the service has no remote reasoner, since a remote
// answer is not reproducible here.
func Verify(r Reading, resp Response, localCertainty bool) []string {
	var problems []string

	if resp.FarmerID != r.FarmerID {
		problems = append(problems, fmt.Sprintf("farmer_id %q, want %q", resp.FarmerID, r.FarmerID))
	}
	if want := scoring.Score(r.DHAPercent, r.MRIVolume); resp.RiskScore != want {
		problems = append(problems, fmt.Sprintf("risk_score %.3f, want %.3f", resp.RiskScore, want))
	}
	if resp.Certainty < certainty.Min || resp.Certainty > certainty.Max {
		problems = append(problems, fmt.Sprintf("certainty %.3f outside [%.2f, %.2f]", resp.Certainty, certainty.Min, certainty.Max))
	}
	if localCertainty {
		if want := certainty.Compute(r.DHAPercent, r.MRIVolume); resp.Certainty != want {
			problems = append(problems, fmt.Sprintf("certainty %.3f, want %.3f", resp.Certainty, want))
		}
	}
	if want := alerting.Decide(resp.RiskScore, resp.Certainty); resp.AlertNeeded != want {
		problems = append(problems, fmt.Sprintf("alert_needed %v, want %v", resp.AlertNeeded, want))
	}
	if resp.SMSSent && !resp.AlertNeeded {
		problems = append(problems, "sms_sent without alert_needed")
	}
	return problems
}

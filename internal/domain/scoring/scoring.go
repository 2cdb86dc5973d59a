// Package scoring computes the weighted risk score from a biometric reading.
package scoring

import (
	"math"
	"strconv"
)

// Risk formula weights.
const (
	DHAWeight    = 0.7
	VolumeWeight = 0.3
	dhaScale     = 10.0
	decimals     = 3
)

// Reference returns the unrounded risk formula 0.7*(dha/10) + 0.3*volume.
// The certainty estimator uses this value for its borderline check.
func Reference(dhaPercent, mriVolume float64) float64 {
	return DHAWeight*(dhaPercent/dhaScale) + VolumeWeight*mriVolume
}

// Score returns the risk score rounded to three decimals.
// Inputs must already be validated to [0,10] and [0,1].
func Score(dhaPercent, mriVolume float64) float64 {
	return Round3(Reference(dhaPercent, mriVolume))
}

// Round3 rounds x to three decimals using the exact binary value of x,
// so ties resolve the same way on every platform.
func Round3(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', decimals, 64), 64)
	if err != nil {
		return x
	}
	return r
}

// Package biometric compares face descriptors.
package biometric

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// DefaultThreshold is the maximum Euclidean distance still considered the same person.
const DefaultThreshold = 0.45

type Comparison struct {
	Match    bool    `json:"match"`
	Distance float64 `json:"distance"`
}

// Compare returns the Euclidean distance between two descriptors and whether
// it falls strictly below threshold. Malformed input never matches and
// reports an infinite distance.
func Compare(reference, live domain.Descriptor, threshold float64) Comparison {
	if !reference.WellFormed() || !live.WellFormed() {
		return Comparison{Match: false, Distance: math.Inf(1)}
	}

	d := floats.Distance(reference, live, 2)
	return Comparison{
		Match:    d < threshold,
		Distance: d,
	}
}

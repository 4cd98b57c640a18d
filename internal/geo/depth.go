package geo

import "math"

// EncodeDepth maps non-finite coordinates to NoData.
func EncodeDepth(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NoData
	}
	return v
}

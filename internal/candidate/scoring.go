package candidate

// DefaultAlpha is the default blend weight between alignment and aesthetics.
const DefaultAlpha = 0.7

// TotalScore blends an alignment score in [0,100] with an aesthetic score in
// [0,10], normalized to [0,100] before weighting:
//
//	alpha*alignment + (1-alpha)*aesthetic*10
//
// Alpha must already be validated to [0,1]; this function does not clamp.
func TotalScore(alignment, aesthetic, alpha float64) float64 {
	return alpha*alignment + (1-alpha)*aesthetic*10
}

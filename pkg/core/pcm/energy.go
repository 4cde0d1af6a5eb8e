package pcm

import "math"

// RMSEnergy computes the root-mean-square energy of 16-bit signed
// little-endian PCM. Returns a value between 0.0 and 1.0. Used by the
// capture pipeline's debug surface.
func RMSEnergy(data []byte) float64 {
	samples := len(data) / 2
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < len(data)-1; i += 2 {
		s := int16(data[i]) | int16(data[i+1])<<8
		normalized := float64(s) / 32768.0
		sum += normalized * normalized
	}

	return math.Sqrt(sum / float64(samples))
}

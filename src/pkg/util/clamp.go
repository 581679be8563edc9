package util

import "cmp"

// Clamp pins val into [min, max] for any ordered type.
func Clamp[T cmp.Ordered](val, min, max T) T {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// ClampFraction pins a fractional coordinate or size into [0, 1]. Crop
// policies come from user configuration, so out-of-range values are
// normalized instead of rejected.
func ClampFraction(frac float64) float64 {
	return Clamp(frac, 0, 1)
}

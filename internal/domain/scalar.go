package domain

// ClampUnit bounds a scalar to [0, 1]. Trust, confidence, peace and tether
// values are always stored clamped.
func ClampUnit(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ClampSigned bounds a scalar to [-1, 1]. Used for emotional impact.
func ClampSigned(v float32) float32 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

// InUnitRange reports whether v lies in [0, 1].
func InUnitRange(v float32) bool {
	return v >= 0 && v <= 1
}

// InSignedRange reports whether v lies in [-1, 1].
func InSignedRange(v float32) bool {
	return v >= -1 && v <= 1
}

package renderer

// Ramp is the blend factor of frame k (0-based) inside a crossfade window of
// length window. Values grow linearly and stay strictly inside (0, 1), so
// neither image is ever fully hidden while the window lasts.
func Ramp(k, window int) float64 {
	if window <= 0 || k < 0 || k >= window {
		return 0
	}
	return lerp(0, 1, float64(k+1)/float64(window+1))
}

// lerp performs linear interpolation between a and b
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// blendPix writes a*(1-t) + b*t into dst, byte by byte. All three slices are
// premultiplied RGBA of the same length, which makes the per-channel lerp the
// same as drawing b over a with global alpha t.
func blendPix(dst, a, b []uint8, t float64) {
	w := uint32(t*256 + 0.5)
	switch {
	case w == 0:
		copy(dst, a)
		return
	case w >= 256:
		copy(dst, b)
		return
	}
	iw := 256 - w
	for i := range dst {
		dst[i] = uint8((uint32(a[i])*iw + uint32(b[i])*w + 128) >> 8)
	}
}

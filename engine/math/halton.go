package math

/**
 * @brief Returns element index+1 of the radical-inverse (Halton) sequence in
 * the given base. Values lie in [0, 1).
 *
 * Index 0 therefore returns 1/base, not 0, which keeps the first jitter
 * sample off the pixel centre.
 */
func Halton(index, base uint32) float32 {
	f := float32(1)
	r := float32(0)
	i := index + 1
	for i > 0 {
		f /= float32(base)
		r += f * float32(i%base)
		i /= base
	}
	return r
}

// HaltonJitter returns the (base 2, base 3) sample centred on zero.
func HaltonJitter(index uint32) Vec2 {
	return Vec2{Halton(index, 2) - 0.5, Halton(index, 3) - 0.5}
}

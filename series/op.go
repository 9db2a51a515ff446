package series

// Number constrains value types the scalar arithmetic builders accept.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Op derives a series by applying a pure value transform. Keys and
// order are untouched; continuity is preserved.
func Op[K, V, R any](src Series[K, V], f func(V) R) Series[K, R] {
	return Map(src, func(_ K, v V) R { return f(v) })
}

// Named scalar builders. Targets without operator overloading get the
// lazy cursor graph through these; semantics match composing Op by hand.

// AddScalar derives src + c.
func AddScalar[K any, V Number](src Series[K, V], c V) Series[K, V] {
	return Op(src, func(v V) V { return v + c })
}

// SubScalar derives src - c.
func SubScalar[K any, V Number](src Series[K, V], c V) Series[K, V] {
	return Op(src, func(v V) V { return v - c })
}

// SubFromScalar derives c - src (the reverse form).
func SubFromScalar[K any, V Number](src Series[K, V], c V) Series[K, V] {
	return Op(src, func(v V) V { return c - v })
}

// MulScalar derives src * c.
func MulScalar[K any, V Number](src Series[K, V], c V) Series[K, V] {
	return Op(src, func(v V) V { return v * c })
}

// DivScalar derives src / c.
func DivScalar[K any, V Number](src Series[K, V], c V) Series[K, V] {
	return Op(src, func(v V) V { return v / c })
}

// DivFromScalar derives c / src (the reverse form).
func DivFromScalar[K any, V Number](src Series[K, V], c V) Series[K, V] {
	return Op(src, func(v V) V { return c / v })
}

// Comparison builders produce bool-valued series; key order is
// preserved, continuity follows the source.

// LtScalar derives src < c.
func LtScalar[K any, V Number](src Series[K, V], c V) Series[K, bool] {
	return Op(src, func(v V) bool { return v < c })
}

// LeScalar derives src <= c.
func LeScalar[K any, V Number](src Series[K, V], c V) Series[K, bool] {
	return Op(src, func(v V) bool { return v <= c })
}

// GtScalar derives src > c.
func GtScalar[K any, V Number](src Series[K, V], c V) Series[K, bool] {
	return Op(src, func(v V) bool { return v > c })
}

// GeScalar derives src >= c.
func GeScalar[K any, V Number](src Series[K, V], c V) Series[K, bool] {
	return Op(src, func(v V) bool { return v >= c })
}

// EqScalar derives src == c.
func EqScalar[K any, V Number](src Series[K, V], c V) Series[K, bool] {
	return Op(src, func(v V) bool { return v == c })
}

// NeScalar derives src != c.
func NeScalar[K any, V Number](src Series[K, V], c V) Series[K, bool] {
	return Op(src, func(v V) bool { return v != c })
}

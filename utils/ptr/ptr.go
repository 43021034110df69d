package ptr

// PointTo returns a pointer to v.
func PointTo[T any](v T) *T {
	return &v
}

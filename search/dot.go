package search

// DotProduct scores a query vector against a stored segment vector.
// Matches the index's dotproduct metric so scores from mirrored blobs
// line up with index scores.
func DotProduct(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

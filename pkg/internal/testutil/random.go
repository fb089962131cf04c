package testutil

// NoShuffle is a RandomSource that leaves the pool in its original (sorted) order.
type NoShuffle struct{}

// Shuffle does nothing.
func (NoShuffle) Shuffle(int, func(i, j int)) {}

// ReverseShuffle is a RandomSource that reverses the pool.
type ReverseShuffle struct{}

// Shuffle reverses the first n elements.
func (ReverseShuffle) Shuffle(n int, swap func(i, j int)) {
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		swap(i, j)
	}
}

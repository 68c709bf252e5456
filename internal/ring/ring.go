// Package ring implements index arithmetic over a circular sequence.
//
// Every function treats n as the current item count. Callers must guard
// n <= 0; for such input the functions return 0 rather than panic.
package ring

// Normalize maps any integer, including negative ones, into [0, n).
func Normalize(i, n int) int {
	if n <= 0 {
		return 0
	}
	return ((i % n) + n) % n
}

// Offset returns the signed shortest-path distance from item i to focus.
//
// Results lie in [-n/2, n/2]. For even n only one of the two endpoints is
// produced for a given focus, so the n offsets are always distinct.
func Offset(i, focus, n int) int {
	if n <= 0 {
		return 0
	}
	half := n / 2
	offset := i - focus
	if offset > half {
		offset -= n
	}
	if offset < -half {
		offset += n
	}
	return offset
}

// Offsets returns Offset for every index in [0, n).
func Offsets(focus, n int) []int {
	if n <= 0 {
		return nil
	}
	offsets := make([]int, n)
	for i := range offsets {
		offsets[i] = Offset(i, focus, n)
	}
	return offsets
}

// Rotate moves focus one step in direction (+1 forward, -1 backward).
func Rotate(focus, direction, n int) int {
	return Normalize(focus+direction, n)
}

// Distance is the absolute ring offset between i and focus.
func Distance(i, focus, n int) int {
	d := Offset(i, focus, n)
	if d < 0 {
		return -d
	}
	return d
}

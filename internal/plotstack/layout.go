package plotstack

import "math"

// GridShape suggests a rows x columns arrangement for n plots that stays
// close to square
func GridShape(n int) (rows, cols int) {
	switch n {
	case 0:
		return 0, 0
	case 3:
		return 2, 2
	case 5:
		return 2, 3
	}

	root := math.Sqrt(float64(n))
	side := int(math.Ceil(root))
	x, y := side, side
	switch {
	case float64(side) == root:
	case n <= side*(side-1):
		x, y = side, side-1
	case side%2 == 0 && n%2 == 1:
		// keeps an odd count horizontally symmetric
		x, y = side+1, side-1
	}

	// an odd dimension goes on the rows
	if x%2 != y%2 && x%2 == 1 {
		x, y = y, x
	}
	return x, y
}

// Layout is GridShape for the plots of the stack
func (s *Stack) Layout() (rows, cols int) {
	return GridShape(len(s.entries))
}

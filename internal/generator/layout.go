// internal/generator/layout.go
package generator

import "fmt"

// staticLayout is the seed-independent preset: difficulties 1-4 with the
// hardest tier in the center, mirrored on both axes.
var staticLayout = [25]int{
	3, 1, 2, 1, 3,
	1, 4, 2, 4, 1,
	2, 2, 4, 2, 2,
	1, 4, 2, 4, 1,
	3, 1, 2, 1, 3,
}

// buildLayout produces the 5x5 matrix of selection criteria, row-major. Random
// mode leaves every criterion at zero (any goal eligible per cell).
func buildLayout(cfg LayoutConfig, seed int64) ([25]int, error) {
	var out [25]int
	switch cfg.Mode {
	case LayoutRandom, "":
		return out, nil
	case LayoutMagic:
		return magicSquare(seed), nil
	case LayoutStatic:
		return staticLayout, nil
	case LayoutCustom:
		if len(cfg.Custom) != 5 {
			return out, fmt.Errorf("custom layout requires a 5x5 matrix, got %d rows", len(cfg.Custom))
		}
		for r, row := range cfg.Custom {
			if len(row) != 5 {
				return out, fmt.Errorf("custom layout row %d has %d cells", r, len(row))
			}
			copy(out[r*5:], row)
		}
		return out, nil
	default:
		return out, fmt.Errorf("unknown layout mode %q", cfg.Mode)
	}
}

// permTable builds a base-5 permutation table from a three-digit slice of the
// seed. The table starts as [0] and inserts 1..4 at positions taken from small
// remainders of n, so each n picks one of the 5! orderings reachable this way.
func permTable(n int64) [5]int {
	rem8 := n % 8
	t := make([]int, 1, 5)
	insert := func(pos int64, v int) {
		t = append(t, 0)
		copy(t[pos+1:], t[pos:])
		t[pos] = v
	}
	insert(rem8%2, 1)
	insert(n%3, 2)
	insert(rem8/2, 3)
	insert(n%5, 4)
	var out [5]int
	copy(out[:], t)
	return out
}

// magicSquare places the integers 1..25 so that every row, column, and both
// main diagonals sum to 65. The two permutation tables come from seed mod 1000
// and (seed/1000) mod 1000; the fixed affine index maps (x+3y+1, 3x+y+3) form
// orthogonal Latin squares, so each value appears exactly once and every line
// carries each base-5 digit once.
func magicSquare(seed int64) [25]int {
	t5 := permTable(seed % 1000)
	t1 := permTable((seed / 1000) % 1000)
	var out [25]int
	for i := 0; i < 25; i++ {
		x, y := i%5, i/5
		e5 := t5[(x+3*y+1)%5]
		e1 := t1[(3*x+y+3)%5]
		out[i] = 5*e5 + e1 + 1
	}
	return out
}

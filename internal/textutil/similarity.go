package textutil

type matchBlock struct {
	a, b, size int
}

// Ratio computes the Gestalt similarity ratio between a and b in [0, 1].
// Identical strings score 1.0; strings with no common characters score 0.
func Ratio(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	matched := 0
	for _, block := range matchingBlocks(ra, rb) {
		matched += block.size
	}
	return 2.0 * float64(matched) / float64(total)
}

// matchingBlocks finds all maximal matching blocks by repeatedly locating
// the longest match and recursing into the regions on either side of it.
func matchingBlocks(a, b []rune) []matchBlock {
	b2j := make(map[rune][]int, len(b))
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}

	type region struct {
		alo, ahi, blo, bhi int
	}
	queue := []region{{0, len(a), 0, len(b)}}
	var blocks []matchBlock

	for len(queue) > 0 {
		reg := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		best := longestMatch(a, b2j, reg.alo, reg.ahi, reg.blo, reg.bhi)
		if best.size == 0 {
			continue
		}
		blocks = append(blocks, best)
		if reg.alo < best.a && reg.blo < best.b {
			queue = append(queue, region{reg.alo, best.a, reg.blo, best.b})
		}
		if best.a+best.size < reg.ahi && best.b+best.size < reg.bhi {
			queue = append(queue, region{best.a + best.size, reg.ahi, best.b + best.size, reg.bhi})
		}
	}
	return blocks
}

func longestMatch(a []rune, b2j map[rune][]int, alo, ahi, blo, bhi int) matchBlock {
	best := matchBlock{a: alo, b: blo}
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		newJ2len := make(map[int]int)
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			newJ2len[j] = k
			if k > best.size {
				best = matchBlock{a: i - k + 1, b: j - k + 1, size: k}
			}
		}
		j2len = newJ2len
	}
	return best
}

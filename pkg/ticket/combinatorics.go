package ticket

import "sort"

// NC2 is the number of unordered pairs drawn from n runners.
func NC2(n int) int {
	if n < 2 {
		return 0
	}
	return n * (n - 1) / 2
}

// NC3 is the number of unordered triples drawn from n runners.
func NC3(n int) int {
	if n < 3 {
		return 0
	}
	return n * (n - 1) * (n - 2) / 6
}

// BoxCombinations is the number of payable combinations a box of n runners
// buys in the given pool.
func BoxCombinations(bt BetType, n int) int {
	switch bt.ID {
	case "tansho", "fukusho":
		return n
	case "wakuren", "umaren", "wide":
		return NC2(n)
	case "umatan":
		if n < 2 {
			return 0
		}
		return n * (n - 1)
	case "sanrenpuku":
		return NC3(n)
	case "sanrentan":
		if n < 3 {
			return 0
		}
		return n * (n - 1) * (n - 2)
	}
	return 0
}

// CrossCombinations counts the combinations in the cross product of groups
// (one runner per group, in position order) that never repeat a runner.
// Unordered pools count each runner set once however many positions
// produce it. Wheels and formations both reduce to this; axis and partner
// sets are asymmetric, so the count is enumerated rather than closed-form.
func CrossCombinations(bt BetType, groups [][]int) int {
	if len(groups) == 0 || len(groups) > 3 {
		return 0
	}
	ordered := bt.Ordered()
	seen := map[[3]int]struct{}{}
	count := 0
	picked := make([]int, 0, len(groups))

	var walk func(depth int)
	walk = func(depth int) {
		if depth == len(groups) {
			if ordered {
				count++
				return
			}
			var key [3]int
			copy(key[:], picked)
			sort.Ints(key[:len(picked)])
			seen[key] = struct{}{}
			return
		}
		for _, r := range groups[depth] {
			if containsInt(picked, r) {
				continue
			}
			picked = append(picked, r)
			walk(depth + 1)
			picked = picked[:len(picked)-1]
		}
	}
	walk(0)

	if ordered {
		return count
	}
	return len(seen)
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

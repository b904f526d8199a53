// Package similarity scores how alike two short texts are.
package similarity

// Winkler boost parameters.
const (
	boostThreshold = 0.7
	prefixScale    = 0.1
	maxPrefix      = 4
)

// Jaro returns the Jaro similarity of a and b in [0, 1], comparing runes.
//
// Matching is greedy: each rune of a claims the first unclaimed equal rune of b
// inside the match window. Because of this the result can differ when the
// arguments are swapped and several candidates compete for the same rune.
func Jaro(a, b string) float64 {
	ar, br := []rune(a), []rune(b)
	return jaro(ar, br)
}

// JaroWinkler returns the Jaro-Winkler similarity of a and b in [0, 1].
// The common-prefix boost applies only when the Jaro score exceeds 0.7.
// Two empty strings are identical; an empty and a non-empty string score 0.
func JaroWinkler(a, b string) float64 {
	ar, br := []rune(a), []rune(b)
	sim := jaro(ar, br)
	if sim <= boostThreshold {
		return sim
	}

	prefix := 0
	for prefix < maxPrefix && prefix < len(ar) && prefix < len(br) && ar[prefix] == br[prefix] {
		prefix++
	}
	return sim + prefixScale*float64(prefix)*(1-sim)
}

func jaro(a, b []rune) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	window := max(len(a), len(b))/2 - 1
	if window < 0 {
		window = 0
	}

	aFlags := make([]bool, len(a))
	bFlags := make([]bool, len(b))
	matches := 0

	for i, ca := range a {
		lo := max(0, i-window)
		hi := min(len(b), i+window+1)
		for j := lo; j < hi; j++ {
			if !bFlags[j] && b[j] == ca {
				aFlags[i] = true
				bFlags[j] = true
				matches++
				break
			}
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i, ca := range a {
		if !aFlags[i] {
			continue
		}
		for !bFlags[k] {
			k++
		}
		if ca != b[k] {
			transpositions++
		}
		k++
	}
	transpositions /= 2

	m := float64(matches)
	return (m/float64(len(a)) + m/float64(len(b)) + (m-float64(transpositions))/m) / 3
}

package duplicate

import (
	"strings"
	"unicode"
)

// nameSuffixes are dropped from the end of names before comparing.
var nameSuffixes = map[string]bool{
	"ltd": true, "limited": true, "inc": true, "llc": true, "plc": true, "co": true,
	"corp": true, "gmbh": true, "sa": true, "com": true, "uk": true,
	"subscription": true, "premium": true, "plus": true, "membership": true,
	"monthly": true, "annual": true,
}

// normalizeName lowercases, replaces punctuation with spaces and strips
// trailing legal and plan suffixes.
func normalizeName(s string) string {
	lower := strings.ToLower(s)
	var b strings.Builder
	for _, r := range lower {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	tokens := strings.Fields(b.String())
	// a name made only of suffixes keeps its first word
	for len(tokens) > 1 && nameSuffixes[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

// nameSimilarity scores two raw names in [0,1].
func nameSimilarity(a, b string) float64 {
	na, nb := normalizeName(a), normalizeName(b)
	switch {
	case na == "" || nb == "":
		return 0
	case na == nb:
		return 1
	case strings.Contains(na, nb) || strings.Contains(nb, na):
		return 0.9
	}
	return max(sequenceRatio(na, nb), tokenOverlap(na, nb))
}

// tokenOverlap is |A∩B| / max(|A|,|B|) over the distinct words of a and b.
func tokenOverlap(a, b string) float64 {
	setA, setB := tokenSet(a), tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	shared := 0
	for t := range setA {
		if setB[t] {
			shared++
		}
	}
	return float64(shared) / float64(max(len(setA), len(setB)))
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.Fields(s) {
		set[t] = true
	}
	return set
}

// sequenceRatio is the Ratcliff/Obershelp similarity 2*M/T, where M counts
// the runes matched by recursively taking the longest common substring and
// T is the total number of runes in both strings.
func sequenceRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchingRunes(ra, rb)) / float64(total)
}

func matchingRunes(a, b []rune) int {
	i, j, n := longestCommon(a, b)
	if n == 0 {
		return 0
	}
	return n + matchingRunes(a[:i], b[:j]) + matchingRunes(a[i+n:], b[j+n:])
}

// longestCommon returns the start offsets and length of the first longest
// common substring of a and b.
func longestCommon(a, b []rune) (int, int, int) {
	best, bestI, bestJ := 0, 0, 0
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > best {
					best, bestI, bestJ = cur[j], i-cur[j], j-cur[j]
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return bestI, bestJ, best
}

package memory

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[tok] = struct{}{}
	}
	return set
}

func jaccard(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	switch {
	case len(ta) == 0 && len(tb) == 0:
		return 1
	case len(ta) == 0 || len(tb) == 0:
		return 0
	}
	inter := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(max(1, union))
}

// charRatio is difflib's SequenceMatcher ratio over the characters of a and b.
func charRatio(a, b string) float64 {
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}

// Similarity scores two strings in [0,1] as the better of token Jaccard and
// character sequence ratio over their normalized forms.
func Similarity(a, b string) float64 {
	an, bn := normalize(a), normalize(b)
	if an == "" && bn == "" {
		return 1
	}
	return min(1, max(jaccard(an, bn), charRatio(an, bn)))
}

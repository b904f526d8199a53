package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJaroWinklerKnownValues(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"both empty", "", "", 1},
		{"left empty", "", "abc", 0},
		{"right empty", "abc", "", 0},
		{"identical", "学习数学", "学习数学", 1},
		{"dropped rune", "学习数学", "学数学", 0.925},
		{"disjoint", "学习数学", "看电影", 0},
		{"martha", "martha", "marhta", 0.9611111111111111},
		{"dwayne", "dwayne", "duane", 0.84},
		{"dixon", "dixon", "dicksonx", 0.8133333333333332},
		{"single rune", "a", "a", 1},
		{"single mismatch", "a", "b", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, JaroWinkler(tt.a, tt.b), 1e-9)
		})
	}
}

func TestJaroWinklerBoostOnlyAboveThreshold(t *testing.T) {
	// Jaro of these is below 0.7, so the shared prefix must not lift the score.
	a, b := "abcxyzqw", "abmnopst"
	j := Jaro(a, b)
	assert.LessOrEqual(t, j, 0.7)
	assert.Equal(t, j, JaroWinkler(a, b))
}

func TestJaroWinklerRange(t *testing.T) {
	inputs := []string{"", "a", "ab", "复习英语单词", "复习单词", "math review", "review math", "数学"}
	for _, a := range inputs {
		for _, b := range inputs {
			s := JaroWinkler(a, b)
			assert.GreaterOrEqual(t, s, 0.0, "%q vs %q", a, b)
			assert.LessOrEqual(t, s, 1.0, "%q vs %q", a, b)
		}
		assert.Equal(t, 1.0, JaroWinkler(a, a))
	}
}

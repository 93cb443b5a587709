package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"The Office", "office"},
		{"  The   Foo   Show ", "foo show"},
		{"Marvel's Agents of S.H.I.E.L.D.", "marvels agents of shield"},
		{"A Quiet Place", "quiet place"},
		{"An American Werewolf in London", "american werewolf in london"},
		{"The A Team", "team"},
		{"The", "the"},
		{"Star Trek: The Next Generation", "star trek the next generation"},
		{"Amélie", "amélie"},
		{"ÉLITE", "élite"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTitle(tt.in))
		})
	}
}

func TestNormalizeTitleIsIdempotent(t *testing.T) {
	for _, title := range []string{"The Foo Show", "The A Team", "The", "Doctor Who (2005)", "L'Été"} {
		once := NormalizeTitle(title)
		assert.Equal(t, once, NormalizeTitle(once), title)
	}
}

func TestTitleSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, TitleSimilarity("The Office", "office"))
	assert.Equal(t, 0.0, TitleSimilarity("", "office"))
	assert.InDelta(t, 0.8, TitleSimilarity("abcde", "abcdx"), 0.0001)
	assert.Less(t, TitleSimilarity("Doctor Who", "Breaking Bad"), 0.5)
}

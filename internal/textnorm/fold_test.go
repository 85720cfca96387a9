package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Intéressé", "interesse"},
		{"ARRÊTER", "arreter"},
		{"d’arrêter", "d'arreter"},
		{"Cœur", "coeur"},
		{"déjà vu, ça marche", "deja vu, ca marche"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Fold(tt.in), tt.in)
	}
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("Je ne suis plus intéressé", "interesse"))
	assert.True(t, ContainsAny("Merci d'arrêter", "stop", "arreter"))
	assert.False(t, ContainsAny("Bonjour", "stop", "arreter"))
}

func TestCountMatches(t *testing.T) {
	f := Fold("Je ne suis plus intéressé, merci d'arrêter")
	assert.Equal(t, 2, CountMatches(f, []string{"plus interesse", "arreter", "rappeler"}))
}

func TestCountMatches_NestedAndBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		needles []string
		want    int
	}{
		{"nested needle counts once", "Je suis absente.", []string{"absent", "absente"}, 1},
		{"longer phrase wins", "De retour le 16 juin", []string{"de retour", "de retour le"}, 1},
		{"overlapping but not nested", "je ne suis plus interesse", []string{"ne suis plus", "plus interesse"}, 2},
		{"no match inside a word", "Rappelez-moi", []string{"appelez-moi"}, 0},
		{"stem matches word start", "merci de me desinscrire", []string{"desinscri"}, 1},
		{"code after a digit is not a match", "143.2", []string{"43."}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountMatches(Fold(tt.text), tt.needles))
		})
	}
}

func TestFindAll_Offsets(t *testing.T) {
	f := Fold("Stop, stop !")
	ms := FindAll(f, []string{"stop"})
	assert.Equal(t, []Match{{Needle: "stop", Start: 0, End: 4}, {Needle: "stop", Start: 6, End: 10}}, ms)
	assert.True(t, Match{Start: 2, End: 4}.Within(Match{Start: 0, End: 6}))
	assert.False(t, Match{Start: 0, End: 6}.Within(Match{Start: 0, End: 6}))
}

package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate_AcceptsBenignClassification(t *testing.T) {
	assert.Empty(t, evaluate(&classification{}))
	assert.Empty(t, evaluate(&classification{Violence: true}))
	assert.Empty(t, evaluate(&classification{Sexual: true}))
	assert.Empty(t, evaluate(&classification{
		Sexual:  true,
		Persons: []person{{Name: "a knight", RealPerson: false}},
	}))
}

func TestEvaluate_RejectsChildSexualContent(t *testing.T) {
	assert.Equal(t, "contains child sexual content", evaluate(&classification{SexualizeChild: true}))
	assert.Equal(t, "contains child sexual content", evaluate(&classification{Child: true, Sexual: true}))
	assert.Equal(t, "contains child sexual content", evaluate(&classification{Child: true, Nudity: true}))
}

func TestEvaluate_RejectsChildViolence(t *testing.T) {
	assert.Equal(t, "contains children and violent or disturbing content",
		evaluate(&classification{Child: true, Violence: true}))
	assert.Equal(t, "contains children and violent or disturbing content",
		evaluate(&classification{Child: true, Disturbing: true}))
}

func TestEvaluate_RejectsRealPersonSexualContent(t *testing.T) {
	got := evaluate(&classification{
		Nudity:  true,
		Persons: []person{{Name: "a famous actor", RealPerson: true}},
	})
	assert.Equal(t, "contains non-consensual sexual or nude content of a real person", got)
}

func TestNewFilter_RequiresAPIKey(t *testing.T) {
	_, err := NewFilter("")
	assert.Error(t, err)
}

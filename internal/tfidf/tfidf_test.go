package tfidf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vectorNorm(v Vector) float64 {
	var sum float64
	for _, t := range v {
		sum += t.Weight * t.Weight
	}
	return math.Sqrt(sum)
}

func TestFit_EmptyCorpusFails(t *testing.T) {
	_, err := Fit(nil)
	assert.ErrorIs(t, err, ErrEmptyVocabulary)
}

func TestFit_ShortDocumentsOnlyFails(t *testing.T) {
	_, err := Fit([]string{"a", "bb", ""})
	assert.ErrorIs(t, err, ErrEmptyVocabulary)
}

func TestTransform_IsL2Normalized(t *testing.T) {
	model, err := Fit([]string{"cometogether", "somethinginthewa", "abbeyroad"})
	require.NoError(t, err)

	vec := model.Transform("cometogether")
	require.NotEmpty(t, vec)
	assert.InDelta(t, 1.0, vectorNorm(vec), 1e-9)
}

func TestTransform_OutOfVocabularyTrigramsDropped(t *testing.T) {
	model, err := Fit([]string{"cometogether"})
	require.NoError(t, err)

	vec := model.Transform("zzzzzzzzz")
	assert.Empty(t, vec)
}

func TestTransform_Pure(t *testing.T) {
	model, err := Fit([]string{"cometogether", "abbeyroad"})
	require.NoError(t, err)

	a := model.Transform("cometogether")
	b := model.Transform("cometogether")
	assert.Equal(t, a, b)
}

func TestMarshalRoundTrip(t *testing.T) {
	model, err := Fit([]string{"cometogether", "abbeyroad", "hereherewego"})
	require.NoError(t, err)

	data, err := model.MarshalBinary()
	require.NoError(t, err)

	var restored Model
	require.NoError(t, restored.UnmarshalBinary(data))

	want := model.Transform("cometogether")
	got := restored.Transform("cometogether")
	assert.Equal(t, want, got)
}

func TestTrigrams(t *testing.T) {
	assert.Nil(t, Trigrams(""))
	assert.Nil(t, Trigrams("ab"))
	assert.Equal(t, []string{"abc", "bcd"}, Trigrams("abcd"))
}

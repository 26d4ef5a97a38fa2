package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmotion(t *testing.T) {
	cases := map[string]string{
		"happy":      EmotionHappy,
		" Anxious.":  EmotionAnxious,
		"HOPEFUL\n":  EmotionHopeful,
		"melancholy": EmotionNeutral,
		"":           EmotionNeutral,
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeEmotion(raw), "%q", raw)
	}
}

func TestParsePersonality(t *testing.T) {
	p, err := ParsePersonality(" Wise_Mentor ")
	require.NoError(t, err)
	assert.Equal(t, PersonalityWiseMentor, p)

	_, err = ParsePersonality("drill_sergeant")
	assert.ErrorIs(t, err, ErrValidation)
}

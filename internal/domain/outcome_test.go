package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpretKappa(t *testing.T) {
	tests := []struct {
		kappa float64
		want  string
	}{
		{-0.1, "poor"},
		{0.0, "slight"},
		{0.19, "slight"},
		{0.20, "fair"},
		{0.41, "moderate"},
		{0.60, "substantial"},
		{0.80, "almost perfect"},
		{1.0, "almost perfect"},
		{math.NaN(), "undefined"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InterpretKappa(tt.kappa), "kappa=%v", tt.kappa)
	}
}

func TestInterpretOtherFamilies(t *testing.T) {
	tests := []struct {
		name string
		fn   func(float64) string
		v    float64
		want string
	}{
		{"alpha below tentative", InterpretAlpha, 0.5, "unreliable"},
		{"alpha tentative", InterpretAlpha, 0.7, "tentative"},
		{"alpha reliable", InterpretAlpha, 0.8, "reliable"},
		{"icc poor", InterpretICC, 0.39, "poor"},
		{"icc fair", InterpretICC, 0.4, "fair"},
		{"icc good", InterpretICC, 0.74, "good"},
		{"icc excellent", InterpretICC, 0.75, "excellent"},
		{"cv excellent", InterpretCV, 5, "excellent"},
		{"cv good", InterpretCV, 10, "good"},
		{"cv moderate", InterpretCV, 25, "moderate"},
		{"cv poor", InterpretCV, 45, "poor"},
		{"cv infinite", InterpretCV, math.Inf(1), "poor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fn(tt.v))
		})
	}
}

func TestBands_ReturnCopies(t *testing.T) {
	tests := []struct {
		name      string
		bands     func() []Band
		interpret func(float64) string
		v         float64
		want      string
	}{
		{"kappa", KappaBands, InterpretKappa, 0.9, "almost perfect"},
		{"alpha", AlphaBands, InterpretAlpha, 0.9, "reliable"},
		{"icc", ICCBands, InterpretICC, 0.9, "excellent"},
		{"cv", CVBands, InterpretCV, 5, "excellent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.bands()
			assert.Equal(t, tt.want, Interpret(tt.v, got))

			for i := range got {
				got[i].Label = "tampered"
			}
			assert.Equal(t, tt.want, tt.interpret(tt.v))
			assert.NotEqual(t, got, tt.bands())
		})
	}
}

func TestConfidenceInterval_Contains(t *testing.T) {
	ci := ConfidenceInterval{Lower: 0.2, Upper: 0.6, Level: 0.95}

	assert.True(t, ci.Contains(0.2))
	assert.True(t, ci.Contains(0.6))
	assert.True(t, ci.Contains(0.4))
	assert.False(t, ci.Contains(0.61))
	assert.False(t, ci.Contains(math.NaN()))
}

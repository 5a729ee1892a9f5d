package game_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/victornm/hotcold/internal/game"
)

func TestNormalize_Bands(t *testing.T) {
	p := game.DefaultNormalizeParams()

	tests := map[string]struct {
		target float64
		assert func(t *testing.T, got int)
	}{
		"sea is hot": {
			target: 0.9,
			assert: func(t *testing.T, got int) { assert.GreaterOrEqual(t, got, 80) },
		},
		"wave is warm": {
			target: 0.5,
			assert: func(t *testing.T, got int) {
				assert.GreaterOrEqual(t, got, 40)
				assert.Less(t, got, 80)
			},
		},
		"calculator is cold": {
			target: 0.05,
			assert: func(t *testing.T, got int) { assert.Less(t, got, 40) },
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			tc.assert(t, game.Normalize(tc.target, 0.95, 0.0, p))
		})
	}
}

func TestNormalize_Range(t *testing.T) {
	p := game.DefaultNormalizeParams()

	for _, target := range []float64{-1, -0.5, 0, 0.2, 0.55, 0.8, 0.95, 1, 1.5} {
		got := game.Normalize(target, 0.95, 0.1, p)
		assert.GreaterOrEqual(t, got, 0, "target=%v", target)
		assert.LessOrEqual(t, got, game.MaxNormalized, "target=%v", target)
	}

	assert.Equal(t, game.MaxNormalized, game.Normalize(1, 0.95, 0.1, p))
	assert.Zero(t, game.Normalize(-1, 0.95, 0.1, p))
}

func TestNormalize_Monotonic(t *testing.T) {
	for _, p := range []game.NormalizeParams{
		game.DefaultNormalizeParams(),
		{Steepness: 10, Midpoint: 0.5, Power: 2},
		{Steepness: 20, Midpoint: 0.6, Power: 0.5},
	} {
		prev := -1
		for i := -10; i <= 110; i++ {
			got := game.Normalize(float64(i)/100, 0.9, 0.05, p)
			assert.GreaterOrEqual(t, got, prev, "params=%+v target=%v", p, float64(i)/100)
			prev = got
		}
	}
}

func TestNormalize_BelowFurthestKeepsFalling(t *testing.T) {
	p := game.NormalizeParams{Steepness: 2, Midpoint: 0.55, Power: 1}

	assert.Equal(t, 25, game.Normalize(0, 0.95, 0, p))
	assert.Equal(t, 5, game.Normalize(-0.9, 0.95, 0, p))
}

func TestNormalize_DegenerateRange(t *testing.T) {
	p := game.DefaultNormalizeParams()

	assert.Equal(t, 99, game.Normalize(0.7, 0.7, 0.7, p))
	assert.Equal(t, 99, game.Normalize(0.8, 0.7, 0.7, p))
	assert.Equal(t, 0, game.Normalize(0.69, 0.7, 0.7, p))
}

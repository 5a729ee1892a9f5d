package score_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/victornm/hotcold/internal/score"
)

func TestCalculate(t *testing.T) {
	type inputs struct {
		solveTimeMs int64
		hints       int
		guesses     int
	}

	type outputs struct {
		timeBonus   int64
		timeOptimal bool
		guessBonus  int64
		guessesOpt  bool
		base        int64
		final       int64
	}

	tests := map[string]struct {
		in   inputs
		want outputs
	}{
		"fast solve with few guesses and no hints scores 100": {
			in:   inputs{solveTimeMs: 20_000, guesses: 10},
			want: outputs{timeBonus: 40, timeOptimal: true, guessBonus: 50, guessesOpt: true, base: 100, final: 100},
		},
		"boundaries of the optimal ranges are still optimal": {
			in:   inputs{solveTimeMs: 30_000, guesses: 15},
			want: outputs{timeBonus: 40, timeOptimal: true, guessBonus: 50, guessesOpt: true, base: 100, final: 100},
		},
		"two hints apply the penalty twice": {
			in:   inputs{solveTimeMs: 20_000, guesses: 10, hints: 2},
			want: outputs{timeBonus: 40, timeOptimal: true, guessBonus: 50, guessesOpt: true, base: 100, final: 72},
		},
		"halfway through the time window halves the time bonus": {
			in:   inputs{solveTimeMs: 315_000, guesses: 1},
			want: outputs{timeBonus: 20, guessBonus: 50, guessesOpt: true, base: 80, final: 80},
		},
		"time bonus reaches zero at the end of the window": {
			in:   inputs{solveTimeMs: 600_000, guesses: 1},
			want: outputs{timeBonus: 0, guessBonus: 50, guessesOpt: true, base: 60, final: 60},
		},
		"slow solve gets no time bonus": {
			in:   inputs{solveTimeMs: 3_600_000, guesses: 1},
			want: outputs{timeBonus: 0, guessBonus: 50, guessesOpt: true, base: 60, final: 60},
		},
		"guess bonus decays linearly": {
			in:   inputs{solveTimeMs: 1_000, guesses: 57},
			want: outputs{timeBonus: 40, timeOptimal: true, guessBonus: 25, base: 75, final: 75},
		},
		"guess bonus reaches zero at one hundred guesses": {
			in:   inputs{solveTimeMs: 1_000, guesses: 100},
			want: outputs{timeBonus: 40, timeOptimal: true, guessBonus: 0, base: 50, final: 50},
		},
		"many guesses get no guess bonus": {
			in:   inputs{solveTimeMs: 1_000, guesses: 250},
			want: outputs{timeBonus: 40, timeOptimal: true, guessBonus: 0, base: 50, final: 50},
		},
		"worst solve keeps the solving bonus": {
			in:   inputs{solveTimeMs: 3_600_000, guesses: 250, hints: 1},
			want: outputs{base: 10, final: 9},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := score.Calculate(tc.in.solveTimeMs, tc.in.hints, tc.in.guesses)

			assert.Equal(t, int64(score.SolvingBonus), got.SolvingBonus)
			assert.Equal(t, tc.want.timeBonus, got.TimeBonus, "time bonus")
			assert.Equal(t, tc.want.timeOptimal, got.TimeOptimal, "time optimal")
			assert.Equal(t, tc.want.guessBonus, got.GuessBonus, "guess bonus")
			assert.Equal(t, tc.want.guessesOpt, got.GuessesOptimal, "guesses optimal")
			assert.Equal(t, tc.want.base, got.BaseScore, "base score")
			assert.Equal(t, tc.want.final, got.FinalScore, "final score")
			assert.Equal(t, tc.in.hints, got.HintCount)
			assert.Equal(t, tc.in.guesses, got.GuessCount)
		})
	}
}

func TestCalculate_PenaltyNeverReachesZero(t *testing.T) {
	prev := decimal.NewFromInt(1)
	for hints := range 30 {
		got := score.Calculate(0, hints, 1)
		assert.True(t, got.PenaltyMultiplier.IsPositive(), "hints=%d", hints)
		assert.True(t, got.PenaltyMultiplier.LessThanOrEqual(prev), "hints=%d", hints)
		prev = got.PenaltyMultiplier
	}

	assert.True(t, score.Calculate(0, 0, 1).PenaltyMultiplier.Equal(decimal.NewFromInt(1)))
}

func TestCalculate_Deterministic(t *testing.T) {
	a := score.Calculate(123_456, 3, 42)
	b := score.Calculate(123_456, 3, 42)
	assert.Equal(t, a.FinalScore, b.FinalScore)
	assert.True(t, a.PenaltyMultiplier.Equal(b.PenaltyMultiplier))
}

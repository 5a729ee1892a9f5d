package score

import (
	"github.com/shopspring/decimal"

	"github.com/victornm/hotcold/internal/domain"
)

const (
	SolvingBonus = 10

	MaxTimeBonus        = 40
	OptimalSolveTimeSec = 30
	MaxSolveTimeSec     = 600

	MaxGuessBonus  = 50
	OptimalGuesses = 15
	MaxGuesses     = 100
)

var hintPenalty = decimal.RequireFromString("0.85")

// Calculate scores a solve. It is a pure function of its inputs.
func Calculate(solveTimeMs int64, hintCount, guessCount int) domain.ScoreBreakdown {
	b := domain.ScoreBreakdown{
		SolveTimeMs:  solveTimeMs,
		GuessCount:   guessCount,
		HintCount:    hintCount,
		SolvingBonus: SolvingBonus,
	}

	b.TimeBonus, b.TimeOptimal = decay(
		decimal.New(max(solveTimeMs, 0), -3),
		OptimalSolveTimeSec, MaxSolveTimeSec, MaxTimeBonus,
	)
	b.GuessBonus, b.GuessesOptimal = decay(
		decimal.NewFromInt(int64(guessCount)),
		OptimalGuesses, MaxGuesses, MaxGuessBonus,
	)

	b.BaseScore = b.SolvingBonus + b.TimeBonus + b.GuessBonus
	b.PenaltyMultiplier = hintPenalty.Pow(decimal.NewFromInt(int64(max(hintCount, 0))))
	b.FinalScore = decimal.NewFromInt(b.BaseScore).Mul(b.PenaltyMultiplier).Round(0).IntPart()

	return b
}

// decay returns full at or below optimal, 0 beyond limit, and a linear interpolation in between.
func decay(v decimal.Decimal, optimal, limit, full int64) (bonus int64, isOptimal bool) {
	lo, hi := decimal.NewFromInt(optimal), decimal.NewFromInt(limit)

	switch {
	case v.LessThanOrEqual(lo):
		return full, true
	case v.GreaterThan(hi):
		return 0, false
	}

	ratio := decimal.NewFromInt(1).Sub(v.Sub(lo).Div(hi.Sub(lo)))
	return decimal.NewFromInt(full).Mul(ratio).Round(0).IntPart(), false
}

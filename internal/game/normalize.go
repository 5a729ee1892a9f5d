package game

import "math"

const MaxNormalized = 99

type NormalizeParams struct {
	Steepness float64 `mapstructure:"steepness"`
	Midpoint  float64 `mapstructure:"midpoint"`
	Power     float64 `mapstructure:"power"`
}

func DefaultNormalizeParams() NormalizeParams {
	return NormalizeParams{
		Steepness: 15,
		Midpoint:  0.55,
		Power:     1,
	}
}

// Normalize maps a raw similarity onto the 0..99 hot/cold scale, relative to the closest and furthest
// similarities of the secret's neighbourhood. The logistic curve pushes scores away from the middle.
func Normalize(target, closest, furthest float64, p NormalizeParams) int {
	if closest == furthest {
		if target >= closest {
			return MaxNormalized
		}
		return 0
	}

	r := (target - furthest) / (closest - furthest)
	if p.Power > 0 && p.Power != 1 {
		// Pow is only monotonic, and defined for fractional powers, on [0, 1].
		r = math.Pow(math.Max(0, math.Min(1, r)), p.Power)
	}

	v := 100 / (1 + math.Exp(-p.Steepness*(r-p.Midpoint)))
	return int(math.Round(math.Max(0, math.Min(MaxNormalized, v))))
}

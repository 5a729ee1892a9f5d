package job

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/hotcold/internal/batch"
	"github.com/victornm/hotcold/internal/challenge"
	"github.com/victornm/hotcold/internal/domain"
)

const (
	DefaultChallengeInterval = 24 * time.Hour
	DefaultReplenishInterval = time.Minute
	DefaultActiveWindow      = 7
)

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	*time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.Ticker.C
}

func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

type ChallengeCreator interface {
	CreateChallenge(ctx context.Context, req challenge.CreateChallengeRequest) (*domain.Challenge, error)
	ActiveChallenges(ctx context.Context, mode domain.GameMode, window int64) ([]int64, error)
}

type Replenisher interface {
	Replenish(ctx context.Context, mode domain.GameMode, n int64) (batch.Report, error)
}

type Config struct {
	Challenges        ChallengeCreator
	Faucet            Replenisher
	Modes             []domain.GameMode
	ChallengeInterval time.Duration
	ReplenishInterval time.Duration
	ActiveWindow      int64
	NewTickerFunc     func(d time.Duration) Ticker
}

// Runner triggers the scheduled sweeps: minting the next challenge of each mode and replenishing the
// faucets of recent challenges. A failing sweep is logged and retried on the next tick.
type Runner struct {
	challenges        ChallengeCreator
	faucet            Replenisher
	modes             []domain.GameMode
	challengeInterval time.Duration
	replenishInterval time.Duration
	activeWindow      int64
	newTicker         func(d time.Duration) Ticker
}

func NewRunner(c Config) *Runner {
	r := &Runner{
		challenges:        c.Challenges,
		faucet:            c.Faucet,
		modes:             c.Modes,
		challengeInterval: c.ChallengeInterval,
		replenishInterval: c.ReplenishInterval,
		activeWindow:      c.ActiveWindow,
		newTicker:         c.NewTickerFunc,
	}

	if r.challengeInterval <= 0 {
		r.challengeInterval = DefaultChallengeInterval
	}
	if r.replenishInterval <= 0 {
		r.replenishInterval = DefaultReplenishInterval
	}
	if r.activeWindow <= 0 {
		r.activeWindow = DefaultActiveWindow
	}
	if r.newTicker == nil {
		r.newTicker = NewTimeTicker
	}

	return r
}

// Run blocks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		r.every(ctx, r.challengeInterval, r.CreateChallenges)
		return nil
	})

	eg.Go(func() error {
		r.every(ctx, r.replenishInterval, r.ReplenishFaucets)
		return nil
	})

	return eg.Wait()
}

func (r *Runner) every(ctx context.Context, d time.Duration, fn func(ctx context.Context)) {
	t := r.newTicker(d)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			fn(ctx)
		}
	}
}

// CreateChallenges mints the next challenge of every mode.
func (r *Runner) CreateChallenges(ctx context.Context) {
	for _, mode := range r.modes {
		c, err := r.challenges.CreateChallenge(ctx, challenge.CreateChallengeRequest{Mode: mode})
		if err != nil {
			slog.ErrorContext(ctx, "job: create challenge failed", "mode", mode, "error", err)
			continue
		}

		slog.InfoContext(ctx, "job: challenge created", "mode", mode, "number", c.Number)
	}
}

// ReplenishFaucets replenishes the faucets of the active challenges of every mode.
func (r *Runner) ReplenishFaucets(ctx context.Context) {
	for _, mode := range r.modes {
		active, err := r.challenges.ActiveChallenges(ctx, mode, r.activeWindow)
		if err != nil {
			slog.ErrorContext(ctx, "job: list active challenges failed", "mode", mode, "error", err)
			continue
		}

		for _, n := range active {
			if _, err := r.faucet.Replenish(ctx, mode, n); err != nil {
				slog.ErrorContext(ctx, "job: replenish faucet failed", "mode", mode, "challenge", n, "error", err)
			}
		}
	}
}

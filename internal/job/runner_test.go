package job_test

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/hotcold/internal/batch"
	"github.com/victornm/hotcold/internal/challenge"
	"github.com/victornm/hotcold/internal/domain"
	"github.com/victornm/hotcold/internal/job"
)

func TestRunner_CreateChallenges(t *testing.T) {
	cs := &fakeChallenges{failMode: domain.ModeClassic}
	r := job.NewRunner(job.Config{
		Challenges: cs,
		Faucet:     &fakeFaucet{},
		Modes:      domain.Modes,
	})

	r.CreateChallenges(context.Background())

	assert.Equal(t, []domain.GameMode{domain.ModeClassic, domain.ModeHardcore}, cs.created,
		"a failing mode does not stop the others")
}

func TestRunner_ReplenishFaucets(t *testing.T) {
	cs := &fakeChallenges{active: []int64{5, 6, 7}}
	fs := &fakeFaucet{}
	r := job.NewRunner(job.Config{
		Challenges:   cs,
		Faucet:       fs,
		Modes:        []domain.GameMode{domain.ModeClassic},
		ActiveWindow: 3,
	})

	r.ReplenishFaucets(context.Background())

	assert.Equal(t, []int64{5, 6, 7}, fs.replenished)
	assert.Equal(t, int64(3), cs.window)
}

func TestRunner_Run(t *testing.T) {
	var (
		mu      sync.Mutex
		tickers = map[time.Duration]*fakeTicker{}
		ready   = make(chan struct{}, 2)
	)

	cs := &fakeChallenges{active: []int64{1}}
	fs := &fakeFaucet{}
	r := job.NewRunner(job.Config{
		Challenges:        cs,
		Faucet:            fs,
		Modes:             []domain.GameMode{domain.ModeClassic},
		ChallengeInterval: time.Hour,
		ReplenishInterval: time.Minute,
		NewTickerFunc: func(d time.Duration) job.Ticker {
			mu.Lock()
			defer mu.Unlock()
			tk := &fakeTicker{c: make(chan time.Time)}
			tickers[d] = tk
			ready <- struct{}{}
			return tk
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- r.Run(ctx) }()

	<-ready
	<-ready

	mu.Lock()
	hourly, minutely := tickers[time.Hour], tickers[time.Minute]
	mu.Unlock()

	hourly.c <- time.Now()
	minutely.c <- time.Now()
	minutely.c <- time.Now()

	cancel()
	require.NoError(t, <-done)

	assert.Len(t, cs.createdModes(), 1)
	assert.Len(t, fs.calls(), 2)
	assert.True(t, hourly.isStopped())
	assert.True(t, minutely.isStopped())
}

type fakeTicker struct {
	c       chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *fakeTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeChallenges struct {
	mu       sync.Mutex
	failMode domain.GameMode
	created  []domain.GameMode
	active   []int64
	window   int64
}

func (c *fakeChallenges) CreateChallenge(_ context.Context, req challenge.CreateChallengeRequest) (*domain.Challenge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.created = append(c.created, req.Mode)
	if req.Mode == c.failMode {
		return nil, stderrors.New("queue is empty")
	}
	return &domain.Challenge{Mode: req.Mode, Number: int64(len(c.created))}, nil
}

func (c *fakeChallenges) ActiveChallenges(_ context.Context, _ domain.GameMode, window int64) ([]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.window = window
	return c.active, nil
}

func (c *fakeChallenges) createdModes() []domain.GameMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.created
}

type fakeFaucet struct {
	mu          sync.Mutex
	replenished []int64
}

func (f *fakeFaucet) Replenish(_ context.Context, _ domain.GameMode, n int64) (batch.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.replenished = append(f.replenished, n)
	return batch.Report{Succeeded: 1}, nil
}

func (f *fakeFaucet) calls() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.replenished
}

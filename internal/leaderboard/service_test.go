package leaderboard_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/victornm/hotcold/internal/domain"
	"github.com/victornm/hotcold/internal/errors"
	"github.com/victornm/hotcold/internal/event"
	"github.com/victornm/hotcold/internal/leaderboard"
)

func TestService_UpdateLeaderboard(t *testing.T) {
	s := makeService(t)
	ctx := context.Background()

	for _, e := range []domain.EventChallengeSolved{
		solved(domain.ModeClassic, 1, "u1", 72),
		solved(domain.ModeClassic, 1, "u2", 100),
		solved(domain.ModeClassic, 1, "u1", 90),
	} {
		require.NoError(t, s.UpdateLeaderboard(ctx, e))
	}

	resp, err := s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{
		Mode:      domain.ModeClassic,
		Challenge: 1,
	})
	require.NoError(t, err)

	want := &domain.Leaderboard{
		Mode:      domain.ModeClassic,
		Challenge: 1,
		Entries: []domain.LeaderboardEntry{
			{Player: "u2", Score: 100},
			{Player: "u1", Score: 72},
		},
	}
	require.Equal(t, want, resp, "a player keeps the score of the first solve")

	resp, err = s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{
		Mode:      domain.ModeClassic,
		Challenge: 1,
		Limit:     1,
	})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 1)
}

func TestService_GetLeaderboard_NotFound(t *testing.T) {
	s := makeService(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateLeaderboard(ctx, solved(domain.ModeClassic, 1, "u1", 72)))

	_, err := s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{
		Mode:      domain.ModeHardcore,
		Challenge: 1,
	})
	require.Equal(t, errors.ReasonNotFound, errors.ReasonOf(err))
}

func TestServer_PublishLeaderboardUpdated(t *testing.T) {
	type (
		inputs struct {
			receivedEvents []domain.EventChallengeSolved
		}

		outputs struct {
			publishedEvents []domain.EventLeaderboardUpdated
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"should publish correct event leaderboard.updated after receiving challenge.solved": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventChallengeSolved{
						solved(domain.ModeClassic, 1, "u1", 100),
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 1, "should receive 1 leaderboard updated event")
				require.Equal(t, domain.Leaderboard{
					Mode:      domain.ModeClassic,
					Challenge: 1,
					Entries: []domain.LeaderboardEntry{
						{Player: "u1", Score: 100},
					},
				}, out.publishedEvents[0].Leaderboard)
			},
		},

		"should publish 2 events leaderboard.updated for solves of 2 different challenges": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventChallengeSolved{
						solved(domain.ModeClassic, 1, "u1", 100),
						solved(domain.ModeClassic, 2, "u2", 90),
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 2, "should receive 2 leaderboard updated event")
			},
		},

		"should publish 2 events leaderboard.updated for solves of the same challenge number in different modes": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventChallengeSolved{
						solved(domain.ModeClassic, 1, "u1", 100),
						solved(domain.ModeHardcore, 1, "u1", 90),
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 2, "should receive 2 leaderboard updated event")
			},
		},

		"should publish 1 more event leaderboard.updated after the interval for solves throttled within it": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventChallengeSolved{
						solved(domain.ModeClassic, 1, "u1", 100),
						solved(domain.ModeClassic, 1, "u2", 90),
						solved(domain.ModeClassic, 1, "u3", 95),
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 2, "should receive the leading and the trailing update")
				require.Equal(t, []domain.LeaderboardEntry{
					{Player: "u1", Score: 100},
				}, out.publishedEvents[0].Leaderboard.Entries)
				require.Equal(t, []domain.LeaderboardEntry{
					{Player: "u1", Score: 100},
					{Player: "u3", Score: 95},
					{Player: "u2", Score: 90},
				}, out.publishedEvents[1].Leaderboard.Entries, "the last update should hold every solver")
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in, out := tt.arrange(), outputs{}

			eb := event.NewBus()

			var mu sync.Mutex
			eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
				mu.Lock()
				out.publishedEvents = append(out.publishedEvents, e.(domain.EventLeaderboardUpdated))
				mu.Unlock()
				return nil
			})

			s := makeService(t,
				withEventBus(eb),
			)

			for _, e := range in.receivedEvents {
				err := s.UpdateLeaderboard(context.Background(), e)
				require.NoError(t, err)
			}

			eb.Stop()

			tt.assert(t, out)
		})
	}
}

func TestService_SubscribesToSolves(t *testing.T) {
	eb := event.NewBus()
	s := makeService(t, withEventBus(eb))

	eb.Publish(context.Background(), solved(domain.ModeClassic, 3, "u1", 55))
	eb.Stop()

	resp, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{
		Mode:      domain.ModeClassic,
		Challenge: 3,
	})
	require.NoError(t, err)
	require.Equal(t, []domain.LeaderboardEntry{{Player: "u1", Score: 55}}, resp.Entries)
}

func solved(mode domain.GameMode, n int64, player string, final int64) domain.EventChallengeSolved {
	return domain.EventChallengeSolved{
		Mode:      mode,
		Challenge: n,
		Player:    player,
		Score:     domain.ScoreBreakdown{FinalScore: final},
		SolvedAt:  time.Now(),
	}
}

type options func(c *leaderboard.Config)

func withEventBus(eb *event.Bus) options {
	return func(c *leaderboard.Config) {
		c.EventBus = eb
	}
}

func makeService(t *testing.T, opts ...options) *leaderboard.Service {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	c := leaderboard.Config{
		EventBus: event.NewBus(),
		Redis:    rc,
		Prefix:   "test",
	}

	for _, opt := range opts {
		opt(&c)
	}

	return leaderboard.NewService(c)
}

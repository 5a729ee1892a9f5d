package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/hotcold/internal/domain"
	"github.com/victornm/hotcold/internal/errors"
	"github.com/victornm/hotcold/internal/event"
	"github.com/victornm/hotcold/internal/keyspace"
)

const (
	publishInterval = 200 * time.Millisecond
	// publishLockTTL frees the throttle of a challenge whose flusher died.
	publishLockTTL = 5 * publishInterval
)

// flushEvent asks the holder of a challenge's publish lock to publish the solves throttled since its
// last update.
type flushEvent struct {
	Mode      domain.GameMode
	Challenge int64
}

func (flushEvent) Name() string { return "leaderboard.flush" }

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

// Service keeps the winners circle of each challenge: every solver ranked by final score.
type Service struct {
	eb    *event.Bus
	redis redis.UniversalClient
	keys  keyspace.Keyspace
}

func NewService(c Config) *Service {
	s := &Service{
		eb:    c.EventBus,
		redis: c.Redis,
		keys:  keyspace.New(c.Prefix),
	}

	s.eb.Subscribe(domain.EventNameChallengeSolved, func(ctx context.Context, e event.Event) error {
		return s.UpdateLeaderboard(ctx, e.(domain.EventChallengeSolved))
	})
	s.eb.Subscribe(flushEvent{}.Name(), func(ctx context.Context, e event.Event) error {
		f := e.(flushEvent)
		return s.flushPending(ctx, f.Mode, f.Challenge)
	})

	return s
}

type GetLeaderboardRequest struct {
	Mode      domain.GameMode
	Challenge int64
	// Limit caps the number of entries, 0 returns all of them.
	Limit int64
}

// GetLeaderboard returns the solvers of a challenge, best score first.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	res, err := s.redis.ZRevRangeWithScores(ctx, s.keys.Winners(req.Mode, req.Challenge), 0, req.Limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	if len(res) == 0 {
		return nil, errors.NotFound("leaderboard not found: mode=%s challenge=%d", req.Mode, req.Challenge)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		entries = append(entries, domain.LeaderboardEntry{
			Player: z.Member.(string),
			Score:  z.Score,
		})
	}

	return &domain.Leaderboard{
		Mode:      req.Mode,
		Challenge: req.Challenge,
		Entries:   entries,
	}, nil
}

// UpdateLeaderboard adds a solver. A player keeps the score of their first solve.
func (s *Service) UpdateLeaderboard(ctx context.Context, e domain.EventChallengeSolved) error {
	if err := s.redis.ZAddNX(ctx, s.keys.Winners(e.Mode, e.Challenge), redis.Z{
		Score:  float64(e.Score.FinalScore),
		Member: e.Player,
	}).Err(); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx, e)
}

// schedulePublishLeaderboard publishes at most one update per challenge and interval, solves tend to
// arrive in bursts right after a challenge is announced. A throttled solve leaves a pending flag, the lock
// holder publishes once more after the interval while the flag is set, so a burst always ends with a
// board holding every solver.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, e domain.EventChallengeSolved) error {
	pending := s.keys.WinnersPublishPending(e.Mode, e.Challenge)

	// Set before taking the lock so the holder's release check sees it.
	if err := s.redis.Set(ctx, pending, 1, publishLockTTL).Err(); err != nil {
		return fmt.Errorf("set pending: %w", err)
	}

	// Not a real lock: two instances may both publish right at the interval boundary.
	ok, err := s.redis.SetNX(ctx, s.keys.WinnersPublishLock(e.Mode, e.Challenge), e.SolvedAt.UnixMilli(), publishLockTTL).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	if err := s.redis.Del(ctx, pending).Err(); err != nil {
		return fmt.Errorf("del pending: %w", err)
	}

	if err := s.publishLeaderboard(ctx, e.Mode, e.Challenge); err != nil {
		return err
	}

	s.eb.Publish(ctx, flushEvent{Mode: e.Mode, Challenge: e.Challenge})
	return nil
}

// flushPending holds the publish lock of a challenge, publishing once per interval while solves are
// pending, and releases it after an interval without any.
func (s *Service) flushPending(ctx context.Context, mode domain.GameMode, n int64) error {
	var (
		lock    = s.keys.WinnersPublishLock(mode, n)
		pending = s.keys.WinnersPublishPending(mode, n)
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(publishInterval):
		}

		found, err := s.redis.Del(ctx, pending).Result()
		if err != nil {
			return fmt.Errorf("del pending: %w", err)
		}

		if found == 0 {
			if err := s.redis.Del(ctx, lock).Err(); err != nil {
				return fmt.Errorf("release lock: %w", err)
			}

			// A solve throttled right before the release left its flag after the check above.
			found, err = s.redis.Del(ctx, pending).Result()
			if err != nil {
				return fmt.Errorf("del pending: %w", err)
			}
			if found == 0 {
				return nil
			}

			ok, err := s.redis.SetNX(ctx, lock, time.Now().UnixMilli(), publishLockTTL).Result()
			if err != nil {
				return fmt.Errorf("setnx: %w", err)
			}
			if !ok {
				return nil
			}
		} else if err := s.redis.Expire(ctx, lock, publishLockTTL).Err(); err != nil {
			return fmt.Errorf("extend lock: %w", err)
		}

		if err := s.publishLeaderboard(ctx, mode, n); err != nil {
			return err
		}
	}
}

func (s *Service) publishLeaderboard(ctx context.Context, mode domain.GameMode, n int64) error {
	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{
		Mode:      mode,
		Challenge: n,
	})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: mode=%s challenge=%d: %w", mode, n, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return nil
}

package streak

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/hotcold/internal/batch"
	"github.com/victornm/hotcold/internal/domain"
	"github.com/victornm/hotcold/internal/event"
	"github.com/victornm/hotcold/internal/keyspace"
	"github.com/victornm/hotcold/internal/telemetry"
)

// recordScript extends the streak when the previous solve was the preceding challenge. Solving the same
// or an older challenge again leaves it unchanged. Returns {count, last}.
var recordScript = redis.NewScript(`
local n = tonumber(ARGV[2])
local last = redis.call('ZSCORE', KEYS[2], ARGV[1])
local count = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
if last then
	last = tonumber(last)
	if last >= n then
		return {count, last}
	end
end
if last == n - 1 then
	count = count + 1
else
	count = 1
end
redis.call('HSET', KEYS[1], ARGV[1], count)
redis.call('ZADD', KEYS[2], n, ARGV[1])
return {count, n}
`)

// expireScript drops the streak of a player whose last solve is at or before ARGV[2].
var expireScript = redis.NewScript(`
local last = redis.call('ZSCORE', KEYS[2], ARGV[1])
if last and tonumber(last) <= tonumber(ARGV[2]) then
	redis.call('HDEL', KEYS[1], ARGV[1])
	redis.call('ZREM', KEYS[2], ARGV[1])
	return 1
end
return 0
`)

type Config struct {
	Redis     redis.UniversalClient
	Prefix    string
	EventBus  *event.Bus
	BatchSize int
}

// Service tracks consecutive solves per player and mode. A player is indexed by the number of the last
// challenge they solved, so the expiry sweep only visits players who missed a challenge.
type Service struct {
	redis     redis.UniversalClient
	keys      keyspace.Keyspace
	batchSize int
}

func NewService(c Config) *Service {
	s := &Service{
		redis:     c.Redis,
		keys:      keyspace.New(c.Prefix),
		batchSize: c.BatchSize,
	}

	c.EventBus.Subscribe(domain.EventNameChallengeCreated, func(ctx context.Context, e event.Event) error {
		ch := e.(domain.EventChallengeCreated).Challenge
		_, err := s.Expire(ctx, ch.Mode, ch.Number-1)
		return err
	})

	return s
}

// RecordSolve counts a solve of challenge n.
func (s *Service) RecordSolve(ctx context.Context, mode domain.GameMode, player string, n int64) (*domain.Streak, error) {
	res, err := recordScript.Run(ctx, s.redis,
		[]string{s.keys.StreakCounts(mode), s.keys.StreakLast(mode)},
		player, n,
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("streak: record: %w", err)
	}

	return &domain.Streak{
		Player:        player,
		Count:         res[0],
		LastChallenge: res[1],
	}, nil
}

// Get returns the player's streak, zero if they have none.
func (s *Service) Get(ctx context.Context, mode domain.GameMode, player string) (*domain.Streak, error) {
	st := &domain.Streak{Player: player}

	count, err := s.redis.HGet(ctx, s.keys.StreakCounts(mode), player).Int64()
	if stderrors.Is(err, redis.Nil) {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("streak: get: %w", err)
	}

	last, err := s.redis.ZScore(ctx, s.keys.StreakLast(mode), player).Result()
	if err != nil && !stderrors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("streak: get: %w", err)
	}

	st.Count, st.LastChallenge = count, int64(last)
	return st, nil
}

// Expire resets the streak of every player who did not solve superseded, the challenge that was current
// until a new one was created. Nothing can be missed before the first challenge.
func (s *Service) Expire(ctx context.Context, mode domain.GameMode, superseded int64) (batch.Report, error) {
	if superseded <= 0 {
		return batch.Report{}, nil
	}

	cutoff := superseded - 1
	players, err := s.redis.ZRangeByScore(ctx, s.keys.StreakLast(mode), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return batch.Report{}, fmt.Errorf("streak: list expired: %w", err)
	}

	keys := []string{s.keys.StreakCounts(mode), s.keys.StreakLast(mode)}
	rep, err := batch.Run(ctx, players, func(ctx context.Context, player string) error {
		return expireScript.Run(ctx, s.redis, keys, player, cutoff).Err()
	}, batch.Config[string]{
		Size: s.batchSize,
		OnFailure: func(player string, err error) {
			slog.ErrorContext(ctx, "streak: expire player failed", "mode", mode, "player", player, "error", err)
		},
	})

	telemetry.SweepItemsTotal.WithLabelValues("streak", "ok").Add(float64(rep.Succeeded))
	telemetry.SweepItemsTotal.WithLabelValues("streak", "failed").Add(float64(rep.Failed))

	if err != nil {
		return rep, fmt.Errorf("streak: expire: %w", err)
	}

	slog.InfoContext(ctx, "streak: expired", "mode", mode, "superseded", superseded, "players", rep.Succeeded, "failed", rep.Failed)
	return rep, nil
}

package faucet

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/hotcold/internal/batch"
	"github.com/victornm/hotcold/internal/domain"
	"github.com/victornm/hotcold/internal/keyspace"
	"github.com/victornm/hotcold/internal/telemetry"
)

const (
	DefaultCeiling   = 10
	DefaultStart     = 10
	DefaultIncrement = 1
	DefaultFloor     = -10
)

// consumeScript takes one token if the player has any. A missing record counts as the starting value.
// Returns {granted, remaining}.
var consumeScript = redis.NewScript(`
local cur = tonumber(redis.call('ZSCORE', KEYS[1], ARGV[1]) or ARGV[2])
if cur <= 0 then
	return {0, cur}
end
redis.call('ZADD', KEYS[1], cur - 1, ARGV[1])
return {1, cur - 1}
`)

// fillScript adds ARGV[2] tokens to an existing record, capped at ARGV[3]. Records below ARGV[4] or
// already at the cap are left untouched. Returns the resulting count, or false if there is no record.
var fillScript = redis.NewScript(`
local cur = redis.call('ZSCORE', KEYS[1], ARGV[1])
if not cur then
	return false
end
cur = tonumber(cur)
local ceiling = tonumber(ARGV[3])
if cur < tonumber(ARGV[4]) or cur >= ceiling then
	return cur
end
local filled = math.min(cur + tonumber(ARGV[2]), ceiling)
redis.call('ZADD', KEYS[1], filled, ARGV[1])
return filled
`)

type Params struct {
	Ceiling   int64 `mapstructure:"ceiling"`
	Start     int64 `mapstructure:"start"`
	Increment int64 `mapstructure:"increment"`
	// Floor excludes records below it from replenishment.
	Floor int64 `mapstructure:"floor"`
}

func DefaultParams() Params {
	return Params{
		Ceiling:   DefaultCeiling,
		Start:     DefaultStart,
		Increment: DefaultIncrement,
		Floor:     DefaultFloor,
	}
}

type Config struct {
	Redis     redis.UniversalClient
	Prefix    string
	Params    Params
	BatchSize int
}

// Faucet is the per (challenge, player) token bucket. Each challenge keeps its buckets in one sorted set
// scored by token count, so the replenish sweep can select players by range. Counts never go below zero
// through Consume.
type Faucet struct {
	redis     redis.UniversalClient
	keys      keyspace.Keyspace
	params    Params
	batchSize int
}

func New(c Config) *Faucet {
	f := &Faucet{
		redis:     c.Redis,
		keys:      keyspace.New(c.Prefix),
		params:    c.Params,
		batchSize: c.BatchSize,
	}

	if f.params == (Params{}) {
		f.params = DefaultParams()
	}

	return f
}

func (f *Faucet) Params() Params {
	return f.params
}

// AddPlayer sets the player's tokens to the starting value. Adding a player twice resets the bucket.
func (f *Faucet) AddPlayer(ctx context.Context, mode domain.GameMode, n int64, player string) error {
	err := f.redis.ZAdd(ctx, f.keys.Tokens(mode, n), redis.Z{
		Score:  float64(f.params.Start),
		Member: player,
	}).Err()
	if err != nil {
		return fmt.Errorf("faucet: add player: %w", err)
	}

	return nil
}

// Consume takes one token. ok is false, and nothing is taken, when the player has no tokens left.
func (f *Faucet) Consume(ctx context.Context, mode domain.GameMode, n int64, player string) (remaining int64, ok bool, err error) {
	res, err := consumeScript.Run(ctx, f.redis, []string{f.keys.Tokens(mode, n)}, player, f.params.Start).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("faucet: consume: %w", err)
	}

	if res[0] == 0 {
		telemetry.FaucetRejectionsTotal.WithLabelValues(string(mode)).Inc()
		return res[1], false, nil
	}

	return res[1], true, nil
}

// Available returns the player's tokens, the starting value if the player has no bucket yet.
func (f *Faucet) Available(ctx context.Context, mode domain.GameMode, n int64, player string) (int64, error) {
	v, err := f.redis.ZScore(ctx, f.keys.Tokens(mode, n), player).Result()
	if stderrors.Is(err, redis.Nil) {
		return f.params.Start, nil
	}
	if err != nil {
		return 0, fmt.Errorf("faucet: available: %w", err)
	}

	return int64(v), nil
}

// Refund gives back a token taken for an action that did not happen.
func (f *Faucet) Refund(ctx context.Context, mode domain.GameMode, n int64, player string) error {
	err := fillScript.Run(ctx, f.redis, []string{f.keys.Tokens(mode, n)}, player, 1, f.params.Ceiling, math.MinInt32).Err()
	if err != nil && !stderrors.Is(err, redis.Nil) {
		return fmt.Errorf("faucet: refund: %w", err)
	}

	return nil
}

// Replenish adds the increment to every bucket of the challenge in [floor, ceiling), capped at the ceiling.
func (f *Faucet) Replenish(ctx context.Context, mode domain.GameMode, n int64) (batch.Report, error) {
	key := f.keys.Tokens(mode, n)

	players, err := f.redis.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(f.params.Floor, 10),
		Max: "(" + strconv.FormatInt(f.params.Ceiling, 10),
	}).Result()
	if err != nil {
		return batch.Report{}, fmt.Errorf("faucet: list players: %w", err)
	}

	rep, err := batch.Run(ctx, players, func(ctx context.Context, player string) error {
		err := fillScript.Run(ctx, f.redis, []string{key}, player, f.params.Increment, f.params.Ceiling, f.params.Floor).Err()
		if stderrors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}, batch.Config[string]{
		Size: f.batchSize,
		OnFailure: func(player string, err error) {
			slog.ErrorContext(ctx, "faucet: replenish player failed", "mode", mode, "challenge", n, "player", player, "error", err)
		},
	})

	telemetry.SweepItemsTotal.WithLabelValues("faucet", "ok").Add(float64(rep.Succeeded))
	telemetry.SweepItemsTotal.WithLabelValues("faucet", "failed").Add(float64(rep.Failed))

	if err != nil {
		return rep, fmt.Errorf("faucet: replenish: %w", err)
	}

	slog.DebugContext(ctx, "faucet: replenished", "mode", mode, "challenge", n, "players", rep.Succeeded, "failed", rep.Failed)
	return rep, nil
}

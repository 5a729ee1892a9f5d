package telemetry_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/victornm/hotcold/internal/telemetry"
)

func TestMonitorRedis(t *testing.T) {
	s := miniredis.RunT(t)
	r := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{s.Addr()}})
	t.Cleanup(func() { _ = r.Close() })

	require.NoError(t, telemetry.MonitorRedis(r))

	ctx := context.Background()
	require.NoError(t, r.Set(ctx, "k", "v", 0).Err())
	require.ErrorIs(t, r.Get(ctx, "missing").Err(), redis.Nil, "hooks pass errors through")

	_, err := r.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, "n")
		p.Incr(ctx, "n")
		return nil
	})
	require.NoError(t, err)
	v, err := s.Get("n")
	require.NoError(t, err)
	require.Equal(t, "2", v)
}

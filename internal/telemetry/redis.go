package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// SlowRedisCommand is the duration above which a command is logged as a warning.
const SlowRedisCommand = 50 * time.Millisecond

func MonitorRedis(r redis.UniversalClient) error {
	if err := redisotel.InstrumentTracing(r); err != nil {
		return fmt.Errorf("instrument tracing: %w", err)
	}
	if err := redisotel.InstrumentMetrics(r); err != nil {
		return fmt.Errorf("instrument metrics: %w", err)
	}
	r.AddHook(redisLog{slow: SlowRedisCommand})
	return nil
}

// redisLog logs dials at info and commands at debug. Failed commands other than redis.Nil and slow
// commands are warnings.
type redisLog struct {
	slow time.Duration
}

func (redisLog) DialHook(hook redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		slog.InfoContext(ctx, fmt.Sprintf("redis: dialing %s %s", network, addr))
		conn, err := hook(ctx, network, addr)
		if err != nil {
			slog.WarnContext(ctx, fmt.Sprintf("redis: dial %s %s failed", network, addr), "error", err)
			return conn, err
		}
		slog.InfoContext(ctx, fmt.Sprintf("redis: finished dialing %s %s", network, addr))
		return conn, err
	}
}

func (l redisLog) ProcessHook(hook redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := hook(ctx, cmd)
		l.log(ctx, "redis: processed", cmd.Name(), func() string { return cmd.String() }, time.Since(start), err)
		return err
	}
}

func (l redisLog) ProcessPipelineHook(hook redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := hook(ctx, cmds)
		l.log(ctx, "redis: pipeline processed", "pipeline", func() string { return fmt.Sprintf("%v", cmds) }, time.Since(start), err)
		return err
	}
}

// log formats the command lazily, most commands are only logged at debug.
func (l redisLog) log(ctx context.Context, msg, name string, cmd func() string, d time.Duration, err error) {
	switch {
	case err != nil && err != redis.Nil:
		slog.WarnContext(ctx, fmt.Sprintf("%s: <%s>", msg, cmd()), "error", err, "duration", d)
	case l.slow > 0 && d > l.slow:
		slog.WarnContext(ctx, fmt.Sprintf("redis: slow %s: <%s>", name, cmd()), "duration", d)
	case slog.Default().Enabled(ctx, slog.LevelDebug):
		slog.DebugContext(ctx, fmt.Sprintf("%s: <%s>", msg, cmd()), "duration", d)
	}
}

package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/hotcold/internal/domain"
	"github.com/victornm/hotcold/internal/errors"
	"github.com/victornm/hotcold/internal/queue"
)

const mode = domain.ModeClassic

func TestService_AppendShift(t *testing.T) {
	s := makeService(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, mode, item("alpha")))
	require.NoError(t, s.Append(ctx, mode, item("bravo")))

	got, ok, err := s.Shift(ctx, mode)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, item("alpha"), got)

	got, ok, err = s.Shift(ctx, mode)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, item("bravo"), got)
}

func TestService_ShiftEmpty(t *testing.T) {
	s := makeService(t)

	_, ok, err := s.Shift(context.Background(), mode)
	require.NoError(t, err, "shifting an empty queue is not an error")
	require.False(t, ok)
}

func TestService_Prepend(t *testing.T) {
	s := makeService(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, mode, item("alpha")))
	require.NoError(t, s.Append(ctx, mode, item("bravo")))
	require.NoError(t, s.Prepend(ctx, mode, item("charlie")))

	got, err := s.PeekAll(ctx, mode)
	require.NoError(t, err)
	require.Equal(t, []domain.QueueItem{item("charlie"), item("alpha"), item("bravo")}, got)

	front, _, err := s.Shift(ctx, mode)
	require.NoError(t, err)
	require.Equal(t, item("charlie"), front)
}

func TestService_Overwrite(t *testing.T) {
	s := makeService(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, mode, item("alpha")))
	require.NoError(t, s.Overwrite(ctx, mode, []domain.QueueItem{item("xray"), item("yankee")}))

	got, err := s.PeekAll(ctx, mode)
	require.NoError(t, err)
	require.Equal(t, []domain.QueueItem{item("xray"), item("yankee")}, got)

	n, err := s.Size(ctx, mode)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	require.NoError(t, s.Overwrite(ctx, mode, nil))
	n, err = s.Size(ctx, mode)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestService_Validation(t *testing.T) {
	tests := map[string]func(s *queue.Service) error{
		"append empty word": func(s *queue.Service) error {
			return s.Append(context.Background(), mode, item("  "))
		},
		"prepend word with digits": func(s *queue.Service) error {
			return s.Prepend(context.Background(), mode, item("r2d2"))
		},
		"overwrite with one invalid item": func(s *queue.Service) error {
			return s.Overwrite(context.Background(), mode, []domain.QueueItem{item("xray"), item("two words")})
		},
	}

	for name, op := range tests {
		t.Run(name, func(t *testing.T) {
			s := makeService(t)
			ctx := context.Background()
			require.NoError(t, s.Append(ctx, mode, item("alpha")))

			err := op(s)
			require.Error(t, err)
			assert.Equal(t, errors.ReasonValidation, errors.ReasonOf(err))

			got, err := s.PeekAll(ctx, mode)
			require.NoError(t, err)
			assert.Equal(t, []domain.QueueItem{item("alpha")}, got, "queue should be untouched")
		})
	}
}

func TestService_ValidationMessageNamesRule(t *testing.T) {
	s := makeService(t)

	err := s.Prepend(context.Background(), mode, item("r2d2"))
	require.Error(t, err)
	assert.Equal(t, `invalid queue item "r2d2": word: alpha`, errors.Convert(err).Message)
}

func TestService_Normalizes(t *testing.T) {
	s := makeService(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, mode, item("  Ocean ")))

	got, err := s.PeekAll(ctx, mode)
	require.NoError(t, err)
	require.Equal(t, []domain.QueueItem{item("ocean")}, got)
}

func TestService_ModesAreIsolated(t *testing.T) {
	s := makeService(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, domain.ModeClassic, item("alpha")))

	n, err := s.Size(ctx, domain.ModeHardcore)
	require.NoError(t, err)
	require.Zero(t, n)
}

func item(w string) domain.QueueItem {
	return domain.QueueItem{Word: w}
}

func makeService(t *testing.T) *queue.Service {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	return queue.NewService(queue.Config{
		Redis:  rc,
		Prefix: "test",
	})
}

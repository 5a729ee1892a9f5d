package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/hotcold/internal/domain"
	"github.com/victornm/hotcold/internal/errors"
	"github.com/victornm/hotcold/internal/keyspace"
)

type Config struct {
	Redis    redis.UniversalClient
	Prefix   string
	Validate *validator.Validate
}

// Service is the WordQueue of a mode: a Redis list, front first. Every item is validated before any
// write, so an invalid item never leaves the queue partially mutated.
type Service struct {
	redis    redis.UniversalClient
	keys     keyspace.Keyspace
	validate *validator.Validate
}

func NewService(c Config) *Service {
	s := &Service{
		redis:    c.Redis,
		keys:     keyspace.New(c.Prefix),
		validate: c.Validate,
	}

	if s.validate == nil {
		s.validate = validator.New(validator.WithRequiredStructEnabled())
	}

	return s
}

func (s *Service) Append(ctx context.Context, mode domain.GameMode, item domain.QueueItem) error {
	b, err := s.encode(item)
	if err != nil {
		return err
	}

	if err := s.redis.RPush(ctx, s.keys.Queue(mode), b).Err(); err != nil {
		return fmt.Errorf("queue: append: %w", err)
	}

	return nil
}

func (s *Service) Prepend(ctx context.Context, mode domain.GameMode, item domain.QueueItem) error {
	b, err := s.encode(item)
	if err != nil {
		return err
	}

	if err := s.redis.LPush(ctx, s.keys.Queue(mode), b).Err(); err != nil {
		return fmt.Errorf("queue: prepend: %w", err)
	}

	return nil
}

// Shift pops the front item. ok is false when the queue is empty.
func (s *Service) Shift(ctx context.Context, mode domain.GameMode) (item domain.QueueItem, ok bool, err error) {
	b, err := s.redis.LPop(ctx, s.keys.Queue(mode)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return domain.QueueItem{}, false, nil
	}
	if err != nil {
		return domain.QueueItem{}, false, fmt.Errorf("queue: shift: %w", err)
	}

	if err := json.Unmarshal(b, &item); err != nil {
		return domain.QueueItem{}, false, fmt.Errorf("queue: decode item: %w", err)
	}

	return item, true, nil
}

// Overwrite atomically replaces the whole queue with items, in order.
func (s *Service) Overwrite(ctx context.Context, mode domain.GameMode, items []domain.QueueItem) error {
	values := make([]any, 0, len(items))
	for i, item := range items {
		b, err := s.encode(item)
		if err != nil {
			return errors.Validation("item %d: %s", i, errors.Convert(err).Message)
		}
		values = append(values, b)
	}

	key := s.keys.Queue(mode)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.RPush(ctx, key, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("queue: overwrite: %w", err)
	}

	return nil
}

func (s *Service) PeekAll(ctx context.Context, mode domain.GameMode) ([]domain.QueueItem, error) {
	raw, err := s.redis.LRange(ctx, s.keys.Queue(mode), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: peek: %w", err)
	}

	return Decode(raw)
}

func (s *Service) Size(ctx context.Context, mode domain.GameMode) (int64, error) {
	n, err := s.redis.LLen(ctx, s.keys.Queue(mode)).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: size: %w", err)
	}

	return n, nil
}

// Normalize trims and lowercases the item word.
func Normalize(item domain.QueueItem) domain.QueueItem {
	item.Word = strings.ToLower(strings.TrimSpace(item.Word))
	return item
}

// Decode decodes raw list values as stored by the queue.
func Decode(raw []string) ([]domain.QueueItem, error) {
	items := make([]domain.QueueItem, 0, len(raw))
	for _, r := range raw {
		var item domain.QueueItem
		if err := json.Unmarshal([]byte(r), &item); err != nil {
			return nil, fmt.Errorf("queue: decode item: %w", err)
		}
		items = append(items, item)
	}

	return items, nil
}

func (s *Service) encode(item domain.QueueItem) ([]byte, error) {
	item = Normalize(item)
	if err := s.validate.Struct(item); err != nil {
		return nil, errors.InvalidFields(err, "invalid queue item %q", item.Word)
	}

	b, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("queue: encode item: %w", err)
	}

	return b, nil
}

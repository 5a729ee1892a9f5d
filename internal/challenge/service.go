package challenge

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/hotcold/internal/domain"
	"github.com/victornm/hotcold/internal/errors"
	"github.com/victornm/hotcold/internal/event"
	"github.com/victornm/hotcold/internal/keyspace"
	"github.com/victornm/hotcold/internal/queue"
)

// Optimistic transactions are retried this many times when a watched key changes under them.
const maxTxAttempts = 10

const (
	fieldSecret    = "secret"
	fieldPostID    = "post_id"
	fieldCreatedAt = "created_at"
)

// Announcer publishes the externally visible post of a challenge. A post whose challenge could not be
// committed is retracted.
type Announcer interface {
	Announce(ctx context.Context, c domain.Challenge) (postID string, err error)
	Retract(ctx context.Context, mode domain.GameMode, postID string) error
}

type Config struct {
	Redis     redis.UniversalClient
	Prefix    string
	EventBus  *event.Bus
	Announcer Announcer
	Now       func() time.Time
}

type Service struct {
	redis     redis.UniversalClient
	keys      keyspace.Keyspace
	eb        *event.Bus
	announcer Announcer
	now       func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		redis:     c.Redis,
		keys:      keyspace.New(c.Prefix),
		eb:        c.EventBus,
		announcer: c.Announcer,
		now:       c.Now,
	}

	if s.now == nil {
		s.now = time.Now
	}

	return s
}

type CreateChallengeRequest struct {
	Mode domain.GameMode
}

// CreateChallenge mints the next challenge from the front of the mode's word queue. Queue consumption,
// the challenge record, the current pointer and the word and post indexes are written in one transaction.
// Queue entries whose word already backed a challenge are dropped.
func (s *Service) CreateChallenge(ctx context.Context, req CreateChallengeRequest) (*domain.Challenge, error) {
	for range maxTxAttempts {
		c, err := s.createChallenge(ctx, req.Mode)
		if stderrors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}

		slog.InfoContext(ctx, "challenge: created", "mode", c.Mode, "number", c.Number, "post_id", c.PostID)
		s.eb.Publish(ctx, domain.EventChallengeCreated{Challenge: *c})
		return c, nil
	}

	return nil, fmt.Errorf("challenge: create: %w", redis.TxFailedErr)
}

func (s *Service) createChallenge(ctx context.Context, mode domain.GameMode) (*domain.Challenge, error) {
	var (
		queueKey   = s.keys.Queue(mode)
		counterKey = s.keys.ChallengeCounter(mode)
		wordsKey   = s.keys.WordIndex(mode)
		created    *domain.Challenge
		postID     string
	)

	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.LRange(ctx, queueKey, 0, -1).Result()
		if err != nil {
			return fmt.Errorf("read queue: %w", err)
		}

		items, err := queue.Decode(raw)
		if err != nil {
			return err
		}

		word, consumed := "", 0
		for i, item := range items {
			err := tx.ZScore(ctx, wordsKey, item.Word).Err()
			if stderrors.Is(err, redis.Nil) {
				word, consumed = item.Word, i+1
				break
			}
			if err != nil {
				return fmt.Errorf("lookup word: %w", err)
			}
			slog.WarnContext(ctx, "challenge: dropping already used queue word", "mode", mode, "word", item.Word)
		}

		if word == "" {
			return errors.InvariantViolation(nil, "no unused word left in the %s queue", mode)
		}

		last, err := tx.Get(ctx, counterKey).Int64()
		if err != nil && !stderrors.Is(err, redis.Nil) {
			return fmt.Errorf("read counter: %w", err)
		}

		c := domain.Challenge{
			Mode:      mode,
			Number:    last + 1,
			Secret:    word,
			CreatedAt: s.now().UTC().Truncate(time.Millisecond),
		}

		postID, err = s.announcer.Announce(ctx, c)
		if err != nil {
			return fmt.Errorf("announce: %w", err)
		}
		c.PostID = postID

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LTrim(ctx, queueKey, int64(consumed), -1)
			pipe.Set(ctx, counterKey, c.Number, 0)
			pipe.HSet(ctx, s.keys.Challenge(mode, c.Number), challengeFields(c)...)
			pipe.Set(ctx, s.keys.CurrentChallenge(mode), c.Number, 0)
			pipe.ZAdd(ctx, wordsKey, redis.Z{Score: float64(c.Number), Member: c.Secret})
			pipe.HSet(ctx, s.keys.PostIndex(mode), c.PostID, c.Number)
			return nil
		})
		if err != nil {
			return err
		}

		created = &c
		return nil
	}, queueKey, counterKey, wordsKey)

	if err != nil && postID != "" {
		if rerr := s.announcer.Retract(context.WithoutCancel(ctx), mode, postID); rerr != nil {
			slog.ErrorContext(ctx, "challenge: retract post failed", "mode", mode, "post_id", postID, "error", rerr)
			err = stderrors.Join(err, rerr)
		}
	}

	if err != nil {
		return nil, err
	}

	return created, nil
}

func challengeFields(c domain.Challenge) []any {
	f := []any{
		fieldSecret, c.Secret,
		fieldPostID, c.PostID,
		fieldCreatedAt, c.CreatedAt.UnixMilli(),
	}
	for _, cnt := range domain.Counters {
		f = append(f, string(cnt), 0)
	}
	return f
}

type GetChallengeRequest struct {
	Mode   domain.GameMode
	Number int64
}

func (s *Service) GetChallenge(ctx context.Context, req GetChallengeRequest) (*domain.Challenge, error) {
	m, err := s.redis.HGetAll(ctx, s.keys.Challenge(req.Mode, req.Number)).Result()
	if err != nil {
		return nil, fmt.Errorf("challenge: get: %w", err)
	}

	if len(m) == 0 || m[fieldSecret] == "" {
		return nil, errors.NotFound("challenge not found: mode=%s number=%d", req.Mode, req.Number)
	}

	return parseChallenge(req.Mode, req.Number, m)
}

func parseChallenge(mode domain.GameMode, n int64, m map[string]string) (*domain.Challenge, error) {
	c := &domain.Challenge{
		Mode:   mode,
		Number: n,
		Secret: m[fieldSecret],
		PostID: m[fieldPostID],
	}

	if v, ok := m[fieldCreatedAt]; ok {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("challenge: parse %s: %w", fieldCreatedAt, err)
		}
		c.CreatedAt = time.UnixMilli(ms).UTC()
	}

	counters := map[domain.Counter]*int64{
		domain.CounterPlayers: &c.Stats.Players,
		domain.CounterSolves:  &c.Stats.Solves,
		domain.CounterGuesses: &c.Stats.Guesses,
		domain.CounterHints:   &c.Stats.Hints,
		domain.CounterGiveUps: &c.Stats.GiveUps,
	}
	for name, dst := range counters {
		v, ok := m[string(name)]
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("challenge: parse %s: %w", name, err)
		}
		*dst = n
	}

	return c, nil
}

// CurrentNumber returns the number of the mode's current challenge.
func (s *Service) CurrentNumber(ctx context.Context, mode domain.GameMode) (int64, error) {
	n, err := s.redis.Get(ctx, s.keys.CurrentChallenge(mode)).Int64()
	if stderrors.Is(err, redis.Nil) {
		return 0, errors.NotFound("no %s challenge has been created yet", mode)
	}
	if err != nil {
		return 0, fmt.Errorf("challenge: current: %w", err)
	}

	return n, nil
}

// ActiveChallenges returns the numbers of the last window challenges, most recent last.
func (s *Service) ActiveChallenges(ctx context.Context, mode domain.GameMode, window int64) ([]int64, error) {
	n, err := s.redis.Get(ctx, s.keys.ChallengeCounter(mode)).Int64()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("challenge: active: %w", err)
	}

	var active []int64
	for i := max(1, n-window+1); i <= n; i++ {
		active = append(active, i)
	}

	return active, nil
}

// LookupPost resolves the challenge announced by a post.
func (s *Service) LookupPost(ctx context.Context, mode domain.GameMode, postID string) (int64, error) {
	n, err := s.redis.HGet(ctx, s.keys.PostIndex(mode), postID).Int64()
	if stderrors.Is(err, redis.Nil) {
		return 0, errors.InvariantViolation(nil, "no challenge for post %s", postID)
	}
	if err != nil {
		return 0, fmt.Errorf("challenge: lookup post: %w", err)
	}

	return n, nil
}

// LookupWord returns the challenge a word backed, ok is false if it was never used.
func (s *Service) LookupWord(ctx context.Context, mode domain.GameMode, word string) (n int64, ok bool, err error) {
	score, err := s.redis.ZScore(ctx, s.keys.WordIndex(mode), word).Result()
	if stderrors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("challenge: lookup word: %w", err)
	}

	return int64(score), true, nil
}

// IncrCounter atomically adds delta to a challenge counter and returns the new value.
func (s *Service) IncrCounter(ctx context.Context, mode domain.GameMode, n int64, c domain.Counter, delta int64) (int64, error) {
	v, err := s.redis.HIncrBy(ctx, s.keys.Challenge(mode, n), string(c), delta).Result()
	if err != nil {
		return 0, fmt.Errorf("challenge: incr %s: %w", c, err)
	}

	return v, nil
}

// GetPlayer returns the player's state, nil if the player has not started the challenge.
func (s *Service) GetPlayer(ctx context.Context, mode domain.GameMode, n int64, player string) (*domain.PlayerState, error) {
	b, err := s.redis.Get(ctx, s.keys.Player(mode, n, player)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("challenge: get player: %w", err)
	}

	var st domain.PlayerState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("challenge: decode player: %w", err)
	}

	return &st, nil
}

// UpdateFunc receives the current state (nil when not started) and returns the state to store along with
// the challenge counters to increment by one. Returning an error aborts the update.
type UpdateFunc func(st *domain.PlayerState) (*domain.PlayerState, []domain.Counter, error)

// UpdatePlayer applies fn to the player's state. The write and the counter increments are committed
// together, and fn is re-run if the state changed concurrently.
func (s *Service) UpdatePlayer(ctx context.Context, mode domain.GameMode, n int64, player string, fn UpdateFunc) (*domain.PlayerState, error) {
	key := s.keys.Player(mode, n, player)

	for range maxTxAttempts {
		var updated *domain.PlayerState

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			var cur *domain.PlayerState

			b, err := tx.Get(ctx, key).Bytes()
			switch {
			case stderrors.Is(err, redis.Nil):
			case err != nil:
				return fmt.Errorf("get player: %w", err)
			default:
				cur = new(domain.PlayerState)
				if err := json.Unmarshal(b, cur); err != nil {
					return fmt.Errorf("decode player: %w", err)
				}
			}

			next, counters, err := fn(cur)
			if err != nil {
				return err
			}

			nb, err := json.Marshal(next)
			if err != nil {
				return fmt.Errorf("encode player: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, nb, 0)
				for _, c := range counters {
					pipe.HIncrBy(ctx, s.keys.Challenge(mode, n), string(c), 1)
				}
				return nil
			})
			if err != nil {
				return err
			}

			updated = next
			return nil
		}, key)

		if stderrors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}

		return updated, nil
	}

	return nil, fmt.Errorf("challenge: update player: %w", redis.TxFailedErr)
}

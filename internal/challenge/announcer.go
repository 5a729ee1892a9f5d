package challenge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/hotcold/internal/domain"
	"github.com/victornm/hotcold/internal/keyspace"
)

type announcement struct {
	Event  string          `json:"event"`
	PostID string          `json:"post_id"`
	Mode   domain.GameMode `json:"mode"`
	Number int64           `json:"number,omitempty"`
}

// PubsubAnnouncer posts challenges on the mode's Redis channel, where the hosting platform picks them up.
type PubsubAnnouncer struct {
	redis redis.UniversalClient
	keys  keyspace.Keyspace
}

func NewPubsubAnnouncer(r redis.UniversalClient, prefix string) *PubsubAnnouncer {
	return &PubsubAnnouncer{
		redis: r,
		keys:  keyspace.New(prefix),
	}
}

func (a *PubsubAnnouncer) Announce(ctx context.Context, c domain.Challenge) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate post ID: %w", err)
	}

	err = a.publish(ctx, c.Mode, announcement{
		Event:  "challenge.announced",
		PostID: id.String(),
		Mode:   c.Mode,
		Number: c.Number,
	})
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

func (a *PubsubAnnouncer) Retract(ctx context.Context, mode domain.GameMode, postID string) error {
	return a.publish(ctx, mode, announcement{
		Event:  "challenge.retracted",
		PostID: postID,
		Mode:   mode,
	})
}

func (a *PubsubAnnouncer) publish(ctx context.Context, mode domain.GameMode, msg announcement) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("announcer: marshal %s: %w", msg.Event, err)
	}

	if err := a.redis.Publish(ctx, a.keys.ChallengeChannel(mode), b).Err(); err != nil {
		return fmt.Errorf("announcer: publish %s: %w", msg.Event, err)
	}

	return nil
}

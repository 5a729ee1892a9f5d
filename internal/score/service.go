package score

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/victornm/hotcold/internal/domain"
	"github.com/victornm/hotcold/internal/event"
)

// DB is the subset of pgxpool.Pool the archive needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Config struct {
	EventBus *event.Bus
	DB       DB
}

// Service archives every solve in Postgres, so results outlive the challenge state kept in Redis.
type Service struct {
	eb *event.Bus
	db DB
}

func NewService(c Config) *Service {
	s := &Service{
		eb: c.EventBus,
		db: c.DB,
	}

	s.eb.Subscribe(domain.EventNameChallengeSolved, func(ctx context.Context, e event.Event) error {
		return s.Archive(ctx, e.(domain.EventChallengeSolved))
	})

	return s
}

const schema = `
CREATE TABLE IF NOT EXISTS results (
	mode          TEXT        NOT NULL,
	challenge     BIGINT      NOT NULL,
	player        TEXT        NOT NULL,
	final_score   BIGINT      NOT NULL,
	guesses       INT         NOT NULL,
	hints         INT         NOT NULL,
	solve_time_ms BIGINT      NOT NULL,
	solved_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (mode, challenge, player)
);
CREATE INDEX IF NOT EXISTS results_player_idx ON results (player, solved_at DESC);`

// Migrate creates the results table if needed.
func (s *Service) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("score: migrate: %w", err)
	}

	return nil
}

// Archive stores a solve. Archiving the same solve twice is a no-op.
func (s *Service) Archive(ctx context.Context, e domain.EventChallengeSolved) error {
	const stmt = `
INSERT INTO results (mode, challenge, player, final_score, guesses, hints, solve_time_ms, solved_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (mode, challenge, player) DO NOTHING;`

	tag, err := s.db.Exec(ctx, stmt,
		string(e.Mode), e.Challenge, e.Player,
		e.Score.FinalScore, e.Score.GuessCount, e.Score.HintCount, e.Score.SolveTimeMs,
		e.SolvedAt,
	)
	if err != nil {
		return fmt.Errorf("score: archive: %w", err)
	}

	if tag.RowsAffected() == 0 {
		slog.DebugContext(ctx, "score: result already archived", "mode", e.Mode, "challenge", e.Challenge, "player", e.Player)
	}

	return nil
}

type ListResultsRequest struct {
	Mode   domain.GameMode
	Player string
	Limit  int
}

// ListResults returns the player's archived solves of a mode, most recent first.
func (s *Service) ListResults(ctx context.Context, req ListResultsRequest) ([]domain.Result, error) {
	const stmt = `
SELECT challenge, final_score, guesses, hints, solve_time_ms, solved_at
FROM results
WHERE mode = $1 AND player = $2
ORDER BY solved_at DESC
LIMIT $3;`

	limit := req.Limit
	if limit <= 0 {
		limit = 30
	}

	rows, err := s.db.Query(ctx, stmt, string(req.Mode), req.Player, limit)
	if err != nil {
		return nil, fmt.Errorf("score: list results: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Result, error) {
		var (
			res domain.Result
			ms  int64
		)
		if err := r.Scan(&res.Challenge, &res.FinalScore, &res.Guesses, &res.Hints, &ms, &res.SolvedAt); err != nil {
			return domain.Result{}, err
		}
		res.Mode = req.Mode
		res.Player = req.Player
		res.SolveTime = time.Duration(ms) * time.Millisecond
		return res, nil
	})
	if err != nil {
		return nil, fmt.Errorf("score: list results: %w", err)
	}

	return results, nil
}

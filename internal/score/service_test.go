package score_test

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/hotcold/internal/domain"
	"github.com/victornm/hotcold/internal/event"
	"github.com/victornm/hotcold/internal/score"
)

func TestService_ArchiveOnSolve(t *testing.T) {
	var (
		db       = &fakeDB{}
		eb       = event.NewBus()
		solvedAt = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	)
	score.NewService(score.Config{EventBus: eb, DB: db})

	eb.Publish(context.Background(), domain.EventChallengeSolved{
		Mode:      domain.ModeClassic,
		Challenge: 7,
		Player:    "u1",
		Score:     score.Calculate(20_000, 0, 10),
		SolvedAt:  solvedAt,
	})
	eb.Stop()

	execs := db.execs()
	require.Len(t, execs, 1)
	assert.Contains(t, execs[0].sql, "ON CONFLICT (mode, challenge, player) DO NOTHING")
	assert.Equal(t, []any{"classic", int64(7), "u1", int64(100), 10, 0, int64(20_000), solvedAt}, execs[0].args)
}

func TestService_Migrate(t *testing.T) {
	db := &fakeDB{}
	s := score.NewService(score.Config{EventBus: event.NewBus(), DB: db})

	require.NoError(t, s.Migrate(context.Background()))

	execs := db.execs()
	require.Len(t, execs, 1)
	assert.True(t, strings.Contains(execs[0].sql, "CREATE TABLE IF NOT EXISTS results"))
}

func TestService_ListResults(t *testing.T) {
	solvedAt := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	db := &fakeDB{
		rows: [][]any{
			{int64(8), int64(72), 12, 2, int64(45_000), solvedAt},
			{int64(7), int64(100), 10, 0, int64(20_000), solvedAt.Add(-24 * time.Hour)},
		},
	}
	s := score.NewService(score.Config{EventBus: event.NewBus(), DB: db})

	got, err := s.ListResults(context.Background(), score.ListResultsRequest{
		Mode:   domain.ModeClassic,
		Player: "u1",
	})
	require.NoError(t, err)

	assert.Equal(t, []domain.Result{
		{
			Mode:       domain.ModeClassic,
			Challenge:  8,
			Player:     "u1",
			FinalScore: 72,
			Guesses:    12,
			Hints:      2,
			SolveTime:  45 * time.Second,
			SolvedAt:   solvedAt,
		},
		{
			Mode:       domain.ModeClassic,
			Challenge:  7,
			Player:     "u1",
			FinalScore: 100,
			Guesses:    10,
			Hints:      0,
			SolveTime:  20 * time.Second,
			SolvedAt:   solvedAt.Add(-24 * time.Hour),
		},
	}, got)
	assert.Equal(t, []any{"classic", "u1", 30}, db.queryArgs)
}

type execCall struct {
	sql  string
	args []any
}

type fakeDB struct {
	mu        sync.Mutex
	calls     []execCall
	rows      [][]any
	queryArgs []any
}

func (db *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.calls = append(db.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (db *fakeDB) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	db.queryArgs = args
	return &fakeRows{data: db.rows, i: -1}, nil
}

func (db *fakeDB) execs() []execCall {
	db.mu.Lock()
	defer db.mu.Unlock()

	return append([]execCall(nil), db.calls...)
}

type fakeRows struct {
	data [][]any
	i    int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.i++
	return r.i < len(r.data)
}

func (r *fakeRows) Values() ([]any, error) {
	return r.data[r.i], nil
}

func (r *fakeRows) Scan(dest ...any) error {
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r.data[r.i][i]))
	}
	return nil
}

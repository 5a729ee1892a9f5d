package game

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/victornm/hotcold/internal/challenge"
	"github.com/victornm/hotcold/internal/domain"
	"github.com/victornm/hotcold/internal/errors"
	"github.com/victornm/hotcold/internal/event"
	"github.com/victornm/hotcold/internal/score"
	"github.com/victornm/hotcold/internal/telemetry"
)

// ChallengeRepository stores challenges and player states. UpdatePlayer must apply its function and the
// returned counter increments atomically.
type ChallengeRepository interface {
	GetChallenge(ctx context.Context, req challenge.GetChallengeRequest) (*domain.Challenge, error)
	GetPlayer(ctx context.Context, mode domain.GameMode, n int64, player string) (*domain.PlayerState, error)
	UpdatePlayer(ctx context.Context, mode domain.GameMode, n int64, player string, fn challenge.UpdateFunc) (*domain.PlayerState, error)
}

type FaucetRepository interface {
	Consume(ctx context.Context, mode domain.GameMode, n int64, player string) (remaining int64, ok bool, err error)
	Refund(ctx context.Context, mode domain.GameMode, n int64, player string) error
	Available(ctx context.Context, mode domain.GameMode, n int64, player string) (int64, error)
}

type Similarity interface {
	GetWordConfig(ctx context.Context, word string) (*domain.WordConfig, error)
	Compare(ctx context.Context, secret, guess string) (*domain.Comparison, error)
}

type StreakRecorder interface {
	RecordSolve(ctx context.Context, mode domain.GameMode, player string, n int64) (*domain.Streak, error)
}

type Config struct {
	Challenges ChallengeRepository
	Faucet     FaucetRepository
	Similarity Similarity
	Streaks    StreakRecorder
	EventBus   *event.Bus
	Normalize  NormalizeParams
	Validate   *validator.Validate
	Now        func() time.Time
}

// Engine runs the per (challenge, player) state machine: NOT_STARTED, PLAYING, then SOLVED or GAVE_UP.
// Requests are validated here, collaborators trust what they receive.
type Engine struct {
	challenges ChallengeRepository
	faucet     FaucetRepository
	similarity Similarity
	streaks    StreakRecorder
	eb         *event.Bus
	params     NormalizeParams
	validate   *validator.Validate
	now        func() time.Time
}

func NewEngine(c Config) *Engine {
	e := &Engine{
		challenges: c.Challenges,
		faucet:     c.Faucet,
		similarity: c.Similarity,
		streaks:    c.Streaks,
		eb:         c.EventBus,
		params:     c.Normalize,
		validate:   c.Validate,
		now:        c.Now,
	}

	if e.params == (NormalizeParams{}) {
		e.params = DefaultNormalizeParams()
	}
	if e.validate == nil {
		e.validate = validator.New(validator.WithRequiredStructEnabled())
	}
	if e.now == nil {
		e.now = time.Now
	}

	return e
}

type Target struct {
	Mode   domain.GameMode `validate:"required,oneof=classic hardcore"`
	Number int64           `validate:"gt=0"`
	Player string          `validate:"required,max=64"`
}

type InitRequest struct {
	Target
}

type ChallengeView struct {
	Mode      domain.GameMode
	Number    int64
	PostID    string
	CreatedAt time.Time
	Stats     domain.Stats
}

type InitResponse struct {
	Challenge ChallengeView
	Status    domain.PlayerStatus
	State     *domain.PlayerState
	Tokens    int64
	// Secret is only revealed once the player solved or gave up.
	Secret string
}

// Init returns the challenge metadata without the secret word, and the player's progress.
func (e *Engine) Init(ctx context.Context, req InitRequest) (*InitResponse, error) {
	if err := e.validateRequest(req); err != nil {
		return nil, err
	}

	c, err := e.challenges.GetChallenge(ctx, challenge.GetChallengeRequest{Mode: req.Mode, Number: req.Number})
	if err != nil {
		return nil, err
	}

	st, err := e.challenges.GetPlayer(ctx, req.Mode, req.Number, req.Player)
	if err != nil {
		return nil, err
	}

	tokens, err := e.faucet.Available(ctx, req.Mode, req.Number, req.Player)
	if err != nil {
		return nil, err
	}

	resp := &InitResponse{
		Challenge: ChallengeView{
			Mode:      c.Mode,
			Number:    c.Number,
			PostID:    c.PostID,
			CreatedAt: c.CreatedAt,
			Stats:     c.Stats,
		},
		Status: st.Status(),
		State:  st,
		Tokens: tokens,
	}

	if resp.Status.Terminal() {
		resp.Secret = c.Secret
	}

	return resp, nil
}

type GuessRequest struct {
	Target
	Word string `validate:"required,max=64"`
}

type GuessResponse struct {
	Guess  domain.Guess
	Solved bool
	Score  *domain.ScoreBreakdown
	Tokens int64
}

// SubmitGuess records one guess. Duplicate guesses are rejected before any token is taken. A token taken
// for a guess that could not be recorded is refunded.
func (e *Engine) SubmitGuess(ctx context.Context, req GuessRequest) (resp *GuessResponse, err error) {
	req.Word = normalizeWord(req.Word)

	defer func() {
		outcome := "ok"
		switch {
		case err != nil:
			outcome = string(errors.ReasonOf(err))
			if outcome == "" {
				outcome = "error"
			}
		case resp.Solved:
			outcome = "solved"
		}
		telemetry.GuessesTotal.WithLabelValues(string(req.Mode), outcome).Inc()
	}()

	if err := e.validateRequest(req); err != nil {
		return nil, err
	}

	c, err := e.challenges.GetChallenge(ctx, challenge.GetChallengeRequest{Mode: req.Mode, Number: req.Number})
	if err != nil {
		return nil, err
	}

	st, err := e.challenges.GetPlayer(ctx, req.Mode, req.Number, req.Player)
	if err != nil {
		return nil, err
	}

	if err := checkGuessable(st, req.Word); err != nil {
		return nil, err
	}

	remaining, err := e.take(ctx, req.Target)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			e.refund(ctx, req.Target)
		}
	}()

	cmp, err := e.similarity.Compare(ctx, c.Secret, req.Word)
	if err != nil {
		return nil, err
	}

	wc, err := e.similarity.GetWordConfig(ctx, c.Secret)
	if err != nil {
		return nil, err
	}

	now := e.now()
	guess := domain.Guess{
		Word:       req.Word,
		Similarity: cmp.Similarity,
		Normalized: Normalize(cmp.Similarity, wc.ClosestSimilarity, wc.FurthestSimilarity, e.params),
		Rank:       rankOf(wc, cmp.GuessLemma),
		Timestamp:  now,
	}
	solved := isExactMatch(c.Secret, cmp)

	updated, err := e.challenges.UpdatePlayer(ctx, req.Mode, req.Number, req.Player, func(cur *domain.PlayerState) (*domain.PlayerState, []domain.Counter, error) {
		if err := checkGuessable(cur, req.Word); err != nil {
			return nil, nil, err
		}

		next, counters := begin(cur, req.Player, now)
		next.Guesses = append(next.Guesses, guess)
		counters = append(counters, domain.CounterGuesses)

		if solved {
			sc := score.Calculate(now.Sub(next.StartedAt).Milliseconds(), len(next.Hints), len(next.Guesses))
			next.SolvedAt = &now
			next.Score = &sc
			counters = append(counters, domain.CounterSolves)
		}

		return next, counters, nil
	})
	if err != nil {
		return nil, err
	}

	resp = &GuessResponse{
		Guess:  guess,
		Solved: solved,
		Score:  updated.Score,
		Tokens: remaining,
	}

	if solved {
		e.onSolved(ctx, req.Target, updated)
	}

	return resp, nil
}

func (e *Engine) onSolved(ctx context.Context, t Target, st *domain.PlayerState) {
	slog.InfoContext(ctx, "game: challenge solved",
		"mode", t.Mode,
		"challenge", t.Number,
		"player", t.Player,
		"score", st.Score.FinalScore,
	)

	// The solve is committed at this point, a streak failure must not fail the guess.
	if _, err := e.streaks.RecordSolve(ctx, t.Mode, t.Player, t.Number); err != nil {
		slog.ErrorContext(ctx, "game: record streak failed", "mode", t.Mode, "player", t.Player, "error", err)
	}

	e.eb.Publish(ctx, domain.EventChallengeSolved{
		Mode:      t.Mode,
		Challenge: t.Number,
		Player:    t.Player,
		Score:     *st.Score,
		SolvedAt:  *st.SolvedAt,
	})
}

type HintRequest struct {
	Target
}

type HintResponse struct {
	Hint   domain.Hint
	Tokens int64
}

// RequestHint reveals the most similar word the player has neither guessed nor been shown.
func (e *Engine) RequestHint(ctx context.Context, req HintRequest) (resp *HintResponse, err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(errors.ReasonOf(err))
			if outcome == "" {
				outcome = "error"
			}
		}
		telemetry.HintsTotal.WithLabelValues(string(req.Mode), outcome).Inc()
	}()

	if err := e.validateRequest(req); err != nil {
		return nil, err
	}

	c, err := e.challenges.GetChallenge(ctx, challenge.GetChallengeRequest{Mode: req.Mode, Number: req.Number})
	if err != nil {
		return nil, err
	}

	st, err := e.challenges.GetPlayer(ctx, req.Mode, req.Number, req.Player)
	if err != nil {
		return nil, err
	}

	if err := checkPlayable(st); err != nil {
		return nil, err
	}

	wc, err := e.similarity.GetWordConfig(ctx, c.Secret)
	if err != nil {
		return nil, err
	}

	if _, ok := nextHint(wc, st); !ok {
		return nil, errNoHintsLeft()
	}

	remaining, err := e.take(ctx, req.Target)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			e.refund(ctx, req.Target)
		}
	}()

	now := e.now()
	var hint domain.Hint

	_, err = e.challenges.UpdatePlayer(ctx, req.Mode, req.Number, req.Player, func(cur *domain.PlayerState) (*domain.PlayerState, []domain.Counter, error) {
		if err := checkPlayable(cur); err != nil {
			return nil, nil, err
		}

		i, ok := nextHint(wc, cur)
		if !ok {
			return nil, nil, errNoHintsLeft()
		}

		w := wc.SimilarWords[i]
		hint = domain.Hint{
			Word:       w.Word,
			Similarity: w.Similarity,
			Normalized: Normalize(w.Similarity, wc.ClosestSimilarity, wc.FurthestSimilarity, e.params),
			Rank:       i + 1,
			Timestamp:  now,
		}

		next, counters := begin(cur, req.Player, now)
		next.Hints = append(next.Hints, hint)
		return next, append(counters, domain.CounterHints), nil
	})
	if err != nil {
		return nil, err
	}

	return &HintResponse{
		Hint:   hint,
		Tokens: remaining,
	}, nil
}

type GiveUpRequest struct {
	Target
}

type GiveUpResponse struct {
	Secret string
	State  *domain.PlayerState
}

// GiveUp ends the challenge for a playing player and reveals the secret. No score is given.
func (e *Engine) GiveUp(ctx context.Context, req GiveUpRequest) (*GiveUpResponse, error) {
	if err := e.validateRequest(req); err != nil {
		return nil, err
	}

	c, err := e.challenges.GetChallenge(ctx, challenge.GetChallengeRequest{Mode: req.Mode, Number: req.Number})
	if err != nil {
		return nil, err
	}

	now := e.now()
	st, err := e.challenges.UpdatePlayer(ctx, req.Mode, req.Number, req.Player, func(cur *domain.PlayerState) (*domain.PlayerState, []domain.Counter, error) {
		if cur == nil {
			return nil, nil, errors.New(errors.CodeFailedPrecondition,
				errors.WithReason(errors.ReasonNotStarted),
				errors.WithMessagef("make a guess before giving up"),
			)
		}
		if err := checkPlayable(cur); err != nil {
			return nil, nil, err
		}

		next := *cur
		next.GaveUpAt = &now
		return &next, []domain.Counter{domain.CounterGiveUps}, nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "game: player gave up", "mode", req.Mode, "challenge", req.Number, "player", req.Player)

	return &GiveUpResponse{
		Secret: c.Secret,
		State:  st,
	}, nil
}

func (e *Engine) validateRequest(req any) error {
	if err := e.validate.Struct(req); err != nil {
		return errors.InvalidFields(err, "invalid request")
	}

	return nil
}

// take consumes a token. A player without a bucket starts from the faucet's starting value.
func (e *Engine) take(ctx context.Context, t Target) (int64, error) {
	remaining, ok, err := e.faucet.Consume(ctx, t.Mode, t.Number, t.Player)
	if err != nil {
		return 0, err
	}

	if !ok {
		return 0, errors.New(errors.CodeResourceExhausted,
			errors.WithReason(errors.ReasonRateLimited),
			errors.WithMessagef("out of tokens, wait for the faucet to refill"),
		)
	}

	return remaining, nil
}

func (e *Engine) refund(ctx context.Context, t Target) {
	if err := e.faucet.Refund(context.WithoutCancel(ctx), t.Mode, t.Number, t.Player); err != nil {
		slog.ErrorContext(ctx, "game: refund token failed", "mode", t.Mode, "challenge", t.Number, "player", t.Player, "error", err)
	}
}

// begin copies the state for modification, starting it if the player had not played yet. The returned
// counters account for a new player.
func begin(cur *domain.PlayerState, player string, now time.Time) (*domain.PlayerState, []domain.Counter) {
	if cur == nil {
		return &domain.PlayerState{Player: player, StartedAt: now}, []domain.Counter{domain.CounterPlayers}
	}

	next := *cur
	return &next, nil
}

func checkPlayable(st *domain.PlayerState) error {
	switch st.Status() {
	case domain.StatusSolved:
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithReason(errors.ReasonAlreadySolved),
			errors.WithMessagef("challenge already solved"),
		)
	case domain.StatusGaveUp:
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithReason(errors.ReasonAlreadyGaveUp),
			errors.WithMessagef("you already gave up on this challenge"),
		)
	}

	return nil
}

func checkGuessable(st *domain.PlayerState, word string) error {
	if err := checkPlayable(st); err != nil {
		return err
	}

	if st.HasGuessed(word) {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithReason(errors.ReasonDuplicateGuess),
			errors.WithMessagef("already guessed %q", word),
		)
	}

	return nil
}

func errNoHintsLeft() error {
	return errors.New(errors.CodeFailedPrecondition,
		errors.WithReason(errors.ReasonNoHintsLeft),
		errors.WithMessagef("no hints left for this challenge"),
	)
}

// nextHint returns the index of the most similar word neither revealed nor guessed. Similar words are
// sorted by descending similarity and never contain the secret.
func nextHint(wc *domain.WordConfig, st *domain.PlayerState) (int, bool) {
	for i, w := range wc.SimilarWords {
		if w.Word == wc.Word || st.HasRevealed(w.Word) || st.HasGuessed(w.Word) {
			continue
		}
		return i, true
	}

	return 0, false
}

// rankOf returns the 1-based position of the lemma among the similar words, 0 for the secret itself.
func rankOf(wc *domain.WordConfig, lemma string) int {
	if lemma == wc.Word {
		return 0
	}

	for i, w := range wc.SimilarWords {
		if w.Word == lemma {
			return i + 1
		}
	}

	return domain.Unranked
}

func isExactMatch(secret string, cmp *domain.Comparison) bool {
	return cmp.GuessLemma == secret || cmp.Similarity >= 1
}

func normalizeWord(w string) string {
	return strings.ToLower(strings.TrimSpace(w))
}

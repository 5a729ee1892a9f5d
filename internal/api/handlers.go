package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/victornm/hotcold/internal/challenge"
	"github.com/victornm/hotcold/internal/domain"
	"github.com/victornm/hotcold/internal/errors"
	"github.com/victornm/hotcold/internal/game"
	"github.com/victornm/hotcold/internal/leaderboard"
	"github.com/victornm/hotcold/internal/score"
)

const (
	MessageGameInit      = "GAME_INIT"
	MessageWordSubmitted = "WORD_SUBMITTED"
	MessageHintRequest   = "HINT_REQUEST"
	MessageGiveUpRequest = "GIVE_UP_REQUEST"
)

type (
	Stats struct {
		Players int64 `json:"players"`
		Solves  int64 `json:"solves"`
		Guesses int64 `json:"guesses"`
		Hints   int64 `json:"hints"`
		GiveUps int64 `json:"give_ups"`
	}

	Challenge struct {
		Mode      domain.GameMode `json:"mode"`
		Number    int64           `json:"number"`
		PostID    string          `json:"post_id"`
		CreatedAt time.Time       `json:"created_at"`
		Stats     Stats           `json:"stats"`
	}

	GameInit struct {
		Challenge Challenge           `json:"challenge"`
		Status    domain.PlayerStatus `json:"status"`
		State     *domain.PlayerState `json:"state,omitempty"`
		Tokens    int64               `json:"tokens"`
		Secret    string              `json:"secret,omitempty"`
	}

	GuessResult struct {
		Guess  domain.Guess           `json:"guess"`
		Solved bool                   `json:"solved"`
		Score  *domain.ScoreBreakdown `json:"score,omitempty"`
		Tokens int64                  `json:"tokens"`
	}

	HintResult struct {
		Hint   domain.Hint `json:"hint"`
		Tokens int64       `json:"tokens"`
	}

	GiveUpResult struct {
		Secret string              `json:"secret"`
		State  *domain.PlayerState `json:"state"`
	}

	Message struct {
		Type      string `json:"type" binding:"required"`
		Challenge string `json:"challenge"`
		Word      string `json:"word"`
	}

	MessageResult struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}

	Result struct {
		Challenge   int64     `json:"challenge"`
		FinalScore  int64     `json:"final_score"`
		Guesses     int       `json:"guesses"`
		Hints       int       `json:"hints"`
		SolveTimeMs int64     `json:"solve_time_ms"`
		SolvedAt    time.Time `json:"solved_at"`
	}

	QueueItems struct {
		Items []domain.QueueItem `json:"items"`
	}

	AddToQueueRequest struct {
		Word string `json:"word" binding:"required"`
		// Front prepends the word instead of appending it.
		Front bool `json:"front"`
	}

	ReplenishRequest struct {
		// Challenge limits the sweep to one challenge, all active challenges when 0.
		Challenge int64 `json:"challenge"`
	}
)

func (a *API) GetGame(c *gin.Context) {
	data, err := a.dispatch(c.Request.Context(), mode(c), player(c), Message{Type: MessageGameInit, Challenge: c.Param("number")})
	respond(c, data, err)
}

func (a *API) SubmitGuess(c *gin.Context) {
	var body struct {
		Word string `json:"word" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		abort(c, errors.Validation("invalid request body: %v", err))
		return
	}

	data, err := a.dispatch(c.Request.Context(), mode(c), player(c), Message{Type: MessageWordSubmitted, Challenge: c.Param("number"), Word: body.Word})
	respond(c, data, err)
}

func (a *API) RequestHint(c *gin.Context) {
	data, err := a.dispatch(c.Request.Context(), mode(c), player(c), Message{Type: MessageHintRequest, Challenge: c.Param("number")})
	respond(c, data, err)
}

func (a *API) GiveUp(c *gin.Context) {
	data, err := a.dispatch(c.Request.Context(), mode(c), player(c), Message{Type: MessageGiveUpRequest, Challenge: c.Param("number")})
	respond(c, data, err)
}

// HandleMessage serves the typed player messages through a single endpoint.
func (a *API) HandleMessage(c *gin.Context) {
	var msg Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		abort(c, errors.Validation("invalid message: %v", err))
		return
	}

	data, err := a.dispatch(c.Request.Context(), mode(c), player(c), msg)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResult{Type: msg.Type, Data: data})
}

func (a *API) dispatch(ctx context.Context, m domain.GameMode, p string, msg Message) (any, error) {
	n, err := a.resolveNumber(ctx, m, msg.Challenge)
	if err != nil {
		return nil, err
	}

	t := game.Target{Mode: m, Number: n, Player: p}

	switch msg.Type {
	case MessageGameInit:
		resp, err := a.engine.Init(ctx, game.InitRequest{Target: t})
		if err != nil {
			return nil, err
		}
		return GameInit{
			Challenge: toChallenge(resp.Challenge),
			Status:    resp.Status,
			State:     resp.State,
			Tokens:    resp.Tokens,
			Secret:    resp.Secret,
		}, nil

	case MessageWordSubmitted:
		resp, err := a.engine.SubmitGuess(ctx, game.GuessRequest{Target: t, Word: msg.Word})
		if err != nil {
			return nil, err
		}
		return GuessResult{Guess: resp.Guess, Solved: resp.Solved, Score: resp.Score, Tokens: resp.Tokens}, nil

	case MessageHintRequest:
		resp, err := a.engine.RequestHint(ctx, game.HintRequest{Target: t})
		if err != nil {
			return nil, err
		}
		return HintResult{Hint: resp.Hint, Tokens: resp.Tokens}, nil

	case MessageGiveUpRequest:
		resp, err := a.engine.GiveUp(ctx, game.GiveUpRequest{Target: t})
		if err != nil {
			return nil, err
		}
		return GiveUpResult{Secret: resp.Secret, State: resp.State}, nil
	}

	return nil, errors.Validation("unknown message type %q", msg.Type)
}

// resolveNumber accepts a challenge number, or "current" and "" for the current challenge.
func (a *API) resolveNumber(ctx context.Context, m domain.GameMode, s string) (int64, error) {
	if s == "" || s == "current" {
		return a.challenges.CurrentNumber(ctx, m)
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, errors.Validation("invalid challenge number %q", s)
	}

	return n, nil
}

func (a *API) GetLeaderboard(c *gin.Context) {
	ctx := c.Request.Context()

	n, err := a.resolveNumber(ctx, mode(c), c.Param("number"))
	if err != nil {
		abort(c, err)
		return
	}

	limit, _ := strconv.ParseInt(c.Query("limit"), 10, 64)
	l, err := a.leaderboard.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{
		Mode:      mode(c),
		Challenge: n,
		Limit:     limit,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toLeaderboard(*l))
}

func (a *API) ListResults(c *gin.Context) {
	if a.results == nil {
		abort(c, errors.New(errors.CodeUnavailable, errors.WithMessagef("results archive is disabled")))
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	res, err := a.results.ListResults(c.Request.Context(), score.ListResultsRequest{
		Mode:   mode(c),
		Player: player(c),
		Limit:  limit,
	})
	if err != nil {
		abort(c, err)
		return
	}

	out := make([]Result, 0, len(res))
	for _, r := range res {
		out = append(out, Result{
			Challenge:   r.Challenge,
			FinalScore:  r.FinalScore,
			Guesses:     r.Guesses,
			Hints:       r.Hints,
			SolveTimeMs: r.SolveTime.Milliseconds(),
			SolvedAt:    r.SolvedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"results": out})
}

func (a *API) GetStreak(c *gin.Context) {
	st, err := a.streaks.Get(c.Request.Context(), mode(c), player(c))
	respond(c, st, err)
}

func (a *API) ListQueue(c *gin.Context) {
	items, err := a.queue.PeekAll(c.Request.Context(), mode(c))
	respond(c, QueueItems{Items: items}, err)
}

func (a *API) AddToQueue(c *gin.Context) {
	var req AddToQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, errors.Validation("invalid request body: %v", err))
		return
	}

	add := a.queue.Append
	if req.Front {
		add = a.queue.Prepend
	}

	if err := add(c.Request.Context(), mode(c), domain.QueueItem{Word: req.Word}); err != nil {
		abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) OverwriteQueue(c *gin.Context) {
	var req QueueItems
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, errors.Validation("invalid request body: %v", err))
		return
	}

	if err := a.queue.Overwrite(c.Request.Context(), mode(c), req.Items); err != nil {
		abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) ShiftQueue(c *gin.Context) {
	item, ok, err := a.queue.Shift(c.Request.Context(), mode(c))
	if err != nil {
		abort(c, err)
		return
	}

	if !ok {
		abort(c, errors.NotFound("the %s queue is empty", mode(c)))
		return
	}

	c.JSON(http.StatusOK, item)
}

func (a *API) CreateChallenge(c *gin.Context) {
	ch, err := a.challenges.CreateChallenge(c.Request.Context(), challenge.CreateChallengeRequest{Mode: mode(c)})
	if err != nil {
		abort(c, err)
		return
	}

	// Admins see the secret of the challenge they minted.
	c.JSON(http.StatusCreated, gin.H{
		"challenge": toChallenge(game.ChallengeView{
			Mode:      ch.Mode,
			Number:    ch.Number,
			PostID:    ch.PostID,
			CreatedAt: ch.CreatedAt,
			Stats:     ch.Stats,
		}),
		"secret": ch.Secret,
	})
}

func (a *API) ReplenishFaucet(c *gin.Context) {
	var req ReplenishRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abort(c, errors.Validation("invalid request body: %v", err))
			return
		}
	}

	ctx := c.Request.Context()

	targets := []int64{req.Challenge}
	if req.Challenge <= 0 {
		active, err := a.challenges.ActiveChallenges(ctx, mode(c), a.activeWindow)
		if err != nil {
			abort(c, err)
			return
		}
		targets = active
	}

	var players int
	for _, n := range targets {
		rep, err := a.faucet.Replenish(ctx, mode(c), n)
		if err != nil {
			abort(c, err)
			return
		}
		players += rep.Succeeded
	}

	c.JSON(http.StatusOK, gin.H{"challenges": targets, "players": players})
}

func respond(c *gin.Context, data any, err error) {
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, data)
}

func toChallenge(v game.ChallengeView) Challenge {
	return Challenge{
		Mode:      v.Mode,
		Number:    v.Number,
		PostID:    v.PostID,
		CreatedAt: v.CreatedAt,
		Stats: Stats{
			Players: v.Stats.Players,
			Solves:  v.Stats.Solves,
			Guesses: v.Stats.Guesses,
			Hints:   v.Stats.Hints,
			GiveUps: v.Stats.GiveUps,
		},
	}
}

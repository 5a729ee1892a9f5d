package api

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/hotcold/internal/challenge"
	"github.com/victornm/hotcold/internal/domain"
	"github.com/victornm/hotcold/internal/errors"
	"github.com/victornm/hotcold/internal/event"
	"github.com/victornm/hotcold/internal/faucet"
	"github.com/victornm/hotcold/internal/game"
	"github.com/victornm/hotcold/internal/keyspace"
	"github.com/victornm/hotcold/internal/leaderboard"
	"github.com/victornm/hotcold/internal/queue"
	"github.com/victornm/hotcold/internal/score"
	"github.com/victornm/hotcold/internal/streak"
)

type Config struct {
	GRPC         *grpc.Server
	HTTP         gin.IRouter
	EventBus     *event.Bus
	Auth         *Auth
	Engine       *game.Engine
	Challenges   *challenge.Service
	Queue        *queue.Service
	Faucet       *faucet.Faucet
	Streaks      *streak.Service
	Leaderboard  *leaderboard.Service
	Results      *score.Service
	ActiveWindow int64
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	engine       *game.Engine
	challenges   *challenge.Service
	queue        *queue.Service
	faucet       *faucet.Faucet
	streaks      *streak.Service
	leaderboard  *leaderboard.Service
	results      *score.Service
	activeWindow int64

	health *health.Server

	redis Redis
	keys  keyspace.Keyspace
}

func New(c Config) *API {
	a := &API{
		engine:       c.Engine,
		challenges:   c.Challenges,
		queue:        c.Queue,
		faucet:       c.Faucet,
		streaks:      c.Streaks,
		leaderboard:  c.Leaderboard,
		results:      c.Results,
		activeWindow: c.ActiveWindow,
		health:       health.NewServer(),
		redis:        c.Redis,
		keys:         keyspace.New(c.PubsubPrefix),
	}

	// gRPC APIs
	if c.GRPC != nil {
		healthpb.RegisterHealthServer(c.GRPC, a.health)
	}

	// HTTP APIs
	a.routes(c.HTTP, c.Auth)

	// Register event handlers
	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})

	return a
}

func (a *API) routes(r gin.IRouter, auth *Auth) {
	v1 := r.Group("/v1/:mode", withMode, auth.Player)

	v1.GET("/challenges/:number", a.GetGame)
	v1.POST("/challenges/:number/guesses", a.SubmitGuess)
	v1.POST("/challenges/:number/hints", a.RequestHint)
	v1.POST("/challenges/:number/give-up", a.GiveUp)
	v1.GET("/challenges/:number/leaderboard", a.GetLeaderboard)
	v1.POST("/messages", a.HandleMessage)
	v1.GET("/players/me/results", a.ListResults)
	v1.GET("/players/me/streak", a.GetStreak)

	admin := v1.Group("", auth.Admin)
	admin.GET("/queue", a.ListQueue)
	admin.POST("/queue", a.AddToQueue)
	admin.PUT("/queue", a.OverwriteQueue)
	admin.POST("/queue/shift", a.ShiftQueue)
	admin.POST("/challenges", a.CreateChallenge)
	admin.POST("/faucet/replenish", a.ReplenishFaucet)
}

// SetServing flips the gRPC health status reported for the whole server.
func (a *API) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	a.health.SetServingStatus("", st)
}

func withMode(c *gin.Context) {
	m := domain.GameMode(c.Param("mode"))
	if !m.Valid() {
		abort(c, errors.NotFound("unknown game mode %q", m))
		return
	}

	c.Next()
}

func mode(c *gin.Context) domain.GameMode {
	return domain.GameMode(c.Param("mode"))
}

func abort(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
}

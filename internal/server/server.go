package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/victornm/hotcold/internal/api"
	"github.com/victornm/hotcold/internal/challenge"
	"github.com/victornm/hotcold/internal/domain"
	"github.com/victornm/hotcold/internal/event"
	"github.com/victornm/hotcold/internal/faucet"
	"github.com/victornm/hotcold/internal/game"
	"github.com/victornm/hotcold/internal/job"
	"github.com/victornm/hotcold/internal/leaderboard"
	"github.com/victornm/hotcold/internal/queue"
	"github.com/victornm/hotcold/internal/score"
	"github.com/victornm/hotcold/internal/similarity"
	"github.com/victornm/hotcold/internal/streak"
	"github.com/victornm/hotcold/internal/telemetry"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Log struct {
		Level string
	}

	Redis struct {
		Addrs  []string
		Pass   string
		Prefix string
	}

	Pubsub struct {
		Prefix string
	}

	// Postgres backs the results archive, which is disabled when Addr is empty.
	Postgres struct {
		Addr string
		User string
		Pass string
		Name string
	}

	Similarity struct {
		URL        string
		Timeout    time.Duration
		RPS        float64
		Burst      int
		ConfigTTL  time.Duration `mapstructure:"config_ttl"`
		CompareTTL time.Duration `mapstructure:"compare_ttl"`
	}

	Faucet faucet.Params

	Normalize game.NormalizeParams

	Schedule struct {
		Modes             []string
		ChallengeInterval time.Duration `mapstructure:"challenge_interval"`
		ReplenishInterval time.Duration `mapstructure:"replenish_interval"`
		ActiveWindow      int64         `mapstructure:"active_window"`
		BatchSize         int           `mapstructure:"batch_size"`
	}

	Auth struct {
		Secret string
	}
}

// DefaultConfig is the config every source is merged onto.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 8081
	c.Log.Level = "info"
	c.Redis.Addrs = []string{"localhost:6379"}
	c.Redis.Prefix = "hotcold"
	c.Pubsub.Prefix = "hotcold"
	c.Similarity.Timeout = 5 * time.Second
	c.Similarity.ConfigTTL = similarity.DefaultConfigTTL
	c.Similarity.CompareTTL = similarity.DefaultCompareTTL
	c.Faucet = faucet.DefaultParams()
	c.Normalize = game.DefaultNormalizeParams()
	c.Schedule.Modes = []string{string(domain.ModeClassic), string(domain.ModeHardcore)}
	c.Schedule.ChallengeInterval = job.DefaultChallengeInterval
	c.Schedule.ReplenishInterval = job.DefaultReplenishInterval
	c.Schedule.ActiveWindow = job.DefaultActiveWindow
	c.Schedule.BatchSize = 25
	return c
}

func (c *Config) Validate() error {
	if len(c.Redis.Addrs) == 0 {
		return fmt.Errorf("redis.addrs is required")
	}

	if c.Similarity.URL == "" {
		return fmt.Errorf("similarity.url is required")
	}

	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required")
	}

	for _, m := range c.Schedule.Modes {
		if !domain.GameMode(m).Valid() {
			return fmt.Errorf("schedule.modes: unknown mode %q", m)
		}
	}

	f := c.Faucet
	if f.Floor > 0 || f.Start <= 0 || f.Ceiling < f.Start || f.Increment <= 0 {
		return fmt.Errorf("faucet: want floor <= 0 < start <= ceiling and increment > 0, got %+v", f)
	}

	return nil
}

func (c *Config) modes() []domain.GameMode {
	modes := make([]domain.GameMode, 0, len(c.Schedule.Modes))
	for _, m := range c.Schedule.Modes {
		modes = append(modes, domain.GameMode(m))
	}
	return modes
}

type Server struct {
	c Config

	eb       *event.Bus
	validate *validator.Validate

	infra struct {
		redis    redis.UniversalClient
		postgres *pgxpool.Pool
	}

	service struct {
		queue       *queue.Service
		challenge   *challenge.Service
		faucet      *faucet.Faucet
		similarity  *similarity.Cache
		streak      *streak.Service
		leaderboard *leaderboard.Service
		score       *score.Service
		engine      *game.Engine
	}

	api    *api.API
	runner *job.Runner

	// ctx is cancelled on shutdown to stop the scheduler.
	ctx    context.Context
	cancel context.CancelFunc

	http *http.Server
	grpc *grpc.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.eb = event.NewBus()
	s.validate = validator.New(validator.WithRequiredStructEnabled())

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Addrs,
		Password: s.c.Redis.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return err
	}

	s.infra.redis = r
	return nil
}

func (s *Server) initPostgres() error {
	pg := s.c.Postgres
	if pg.Addr == "" {
		slog.Warn("server: postgres.addr not set, results archive disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", pg.User, pg.Pass, pg.Addr, pg.Name))
	if err != nil {
		return err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return err
	}

	if err := db.Ping(ctx); err != nil {
		return err
	}

	s.infra.postgres = db
	return nil
}

func (s *Server) initService() error {
	r, prefix := s.infra.redis, s.c.Redis.Prefix

	s.service.queue = queue.NewService(queue.Config{
		Redis:    r,
		Prefix:   prefix,
		Validate: s.validate,
	})

	s.service.challenge = challenge.NewService(challenge.Config{
		Redis:     r,
		Prefix:    prefix,
		EventBus:  s.eb,
		Announcer: challenge.NewPubsubAnnouncer(r, s.c.Pubsub.Prefix),
	})

	s.service.faucet = faucet.New(faucet.Config{
		Redis:     r,
		Prefix:    prefix,
		Params:    s.c.Faucet,
		BatchSize: s.c.Schedule.BatchSize,
	})

	s.service.similarity = similarity.NewCache(similarity.CacheConfig{
		Service: similarity.NewClient(similarity.ClientConfig{
			URL:     s.c.Similarity.URL,
			Timeout: s.c.Similarity.Timeout,
			RPS:     s.c.Similarity.RPS,
			Burst:   s.c.Similarity.Burst,
		}),
		Redis:      r,
		Prefix:     prefix,
		ConfigTTL:  s.c.Similarity.ConfigTTL,
		CompareTTL: s.c.Similarity.CompareTTL,
		Validate:   s.validate,
	})

	s.service.streak = streak.NewService(streak.Config{
		Redis:     r,
		Prefix:    prefix,
		EventBus:  s.eb,
		BatchSize: s.c.Schedule.BatchSize,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    r,
		Prefix:   prefix,
	})

	if s.infra.postgres != nil {
		s.service.score = score.NewService(score.Config{
			EventBus: s.eb,
			DB:       s.infra.postgres,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.service.score.Migrate(ctx); err != nil {
			return fmt.Errorf("score: %w", err)
		}
	}

	s.service.engine = game.NewEngine(game.Config{
		Challenges: s.service.challenge,
		Faucet:     s.service.faucet,
		Similarity: s.service.similarity,
		Streaks:    s.service.streak,
		EventBus:   s.eb,
		Normalize:  s.c.Normalize,
		Validate:   s.validate,
	})

	s.runner = job.NewRunner(job.Config{
		Challenges:        s.service.challenge,
		Faucet:            s.service.faucet,
		Modes:             s.c.modes(),
		ChallengeInterval: s.c.Schedule.ChallengeInterval,
		ReplenishInterval: s.c.Schedule.ReplenishInterval,
		ActiveWindow:      s.c.Schedule.ActiveWindow,
	})

	return nil
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	e.Use(gin.Recovery(), telemetry.GinLogger())

	s.grpc = grpc.NewServer(telemetry.GRPCServerOptions()...)

	s.api = api.New(api.Config{
		GRPC:         s.grpc,
		HTTP:         e,
		EventBus:     s.eb,
		Auth:         api.NewAuth(s.c.Auth.Secret),
		Engine:       s.service.engine,
		Challenges:   s.service.challenge,
		Queue:        s.service.queue,
		Faucet:       s.service.faucet,
		Streaks:      s.service.streak,
		Leaderboard:  s.service.leaderboard,
		Results:      s.service.score,
		ActiveWindow: s.c.Schedule.ActiveWindow,
		Redis:        s.infra.redis,
		PubsubPrefix: s.c.Pubsub.Prefix,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := s.ctx

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, "server: scheduler started", "modes", s.c.Schedule.Modes)
		return s.runner.Run(ctx)
	})

	s.api.SetServing(true)

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.api.SetServing(false)

	s.cancel()

	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	if s.infra.postgres != nil {
		s.infra.postgres.Close()
	}
	if err := s.infra.redis.Close(); err != nil {
		slog.ErrorContext(ctx, "server: close redis failed", "error", err)
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}

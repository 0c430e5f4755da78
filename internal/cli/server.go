package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	pgloader "live-quiz-service/internal/infra/postgres"
	redisrepo "live-quiz-service/internal/infra/redis"
	transport "live-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz room server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.WordLoader = memory.NewStaticWordLoader(sampleLessons())
	if pool != nil {
		loader = pgloader.NewWordLoader(pool)
	}

	contentTTL := config.TTLDuration(cfg.Quiz.ContentTTL, 10*time.Minute)
	var content app.ContentRepository
	if redisClient != nil {
		content = redisrepo.NewWordRepository(redisClient, loader, contentTTL)
	} else {
		content = memory.NewWordRepository(loader, contentTTL)
	}

	settings := settingsFromConfig(cfg)
	registry := app.NewRegistry(settings, logger)
	defer registry.Close()

	service := app.NewService(registry, content, settings, logger)
	wsHandler := transport.NewWSHandler(service, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting quiz room server", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func settingsFromConfig(cfg config.Config) app.Settings {
	s := app.DefaultSettings()
	s.QuestionTime = config.TTLDuration(cfg.Quiz.QuestionTime, s.QuestionTime)
	s.RoomTTL = config.TTLDuration(cfg.Quiz.RoomTTL, s.RoomTTL)
	s.FinishGrace = config.TTLDuration(cfg.Quiz.FinishGrace, s.FinishGrace)
	s.SweepInterval = config.TTLDuration(cfg.Quiz.SweepInterval, s.SweepInterval)
	if cfg.Quiz.MaxPoints > 0 {
		s.MaxPoints = cfg.Quiz.MaxPoints
	}
	if cfg.Quiz.OptionsPerQuestion > 1 {
		s.OptionsPerQuestion = cfg.Quiz.OptionsPerQuestion
	}
	if cfg.Quiz.MinQuestions > 0 {
		s.MinQuestions = cfg.Quiz.MinQuestions
	}
	if cfg.Quiz.MaxQuestions > 0 {
		s.MaxQuestions = cfg.Quiz.MaxQuestions
	}
	if cfg.Quiz.CodeDigits > 0 {
		s.CodeDigits = cfg.Quiz.CodeDigits
	}
	return s
}

// sampleLessons provides a minimal word pool for running without Postgres;
// swap the loader for the DB-backed one in production.
func sampleLessons() map[int64][]domain.Word {
	return map[int64][]domain.Word{
		1: {
			{ID: 1, Term: "apple", Meaning: "olma"},
			{ID: 2, Term: "book", Meaning: "kitob"},
			{ID: 3, Term: "water", Meaning: "suv"},
			{ID: 4, Term: "bread", Meaning: "non"},
			{ID: 5, Term: "sun", Meaning: "quyosh"},
			{ID: 6, Term: "moon", Meaning: "oy"},
		},
		2: {
			{ID: 7, Term: "teacher", Meaning: "o'qituvchi"},
			{ID: 8, Term: "student", Meaning: "talaba"},
			{ID: 9, Term: "school", Meaning: "maktab"},
			{ID: 10, Term: "lesson", Meaning: "dars"},
		},
	}
}

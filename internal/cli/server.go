package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"course-quiz-service/internal/app"
	"course-quiz-service/internal/config"
	"course-quiz-service/internal/domain"
	"course-quiz-service/internal/event"
	"course-quiz-service/internal/infra/memory"
	pgstore "course-quiz-service/internal/infra/postgres"
	redisstore "course-quiz-service/internal/infra/redis"
	"course-quiz-service/internal/quiz"
	transport "course-quiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
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
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if cfg.Quiz.File != "" {
		if loader, err = memory.NewFileQuizLoader(cfg.Quiz.File); err != nil {
			return err
		}
	}

	var results app.ResultRepository = memory.NewResultStore()
	if cfg.Postgres.URL != "" {
		db := openBun(cfg.Postgres.URL)
		defer db.Close()
		if err := migrateDB(ctx, db); err != nil {
			return err
		}
		results = pgstore.NewResultRepository(db)

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = pgstore.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisstore.NewQuizRepository(redisClient, loader, quizTTL, logger)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var store interface {
		app.SessionRepository
		CloseAll()
	} = memory.NewSessionStore()
	if redisClient != nil {
		store = redisstore.NewSessionStore(redisClient, redisTTL, logger)
	}

	var publisher app.EventPublisher
	if cfg.Events.AMQPURL != "" {
		p, err := event.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
		if err != nil {
			return err
		}
		defer p.Close()
		publisher = p
	}

	service := app.NewQuizService(store, quizRepo, results, app.Options{
		Policy:       quiz.Policy{WeakBelow: cfg.Scoring.WeakBelow, StrongAt: cfg.Scoring.StrongAt},
		TickInterval: config.TTLDuration(cfg.Session.Tick, time.Second),
		Publisher:    publisher,
		Logger:       logger,
	})

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewRouter(service, logger),
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: websocket connections live for a whole quiz
	}

	go func() {
		logger.Info("starting quiz service", zap.String("port", finalPort))
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
	err = server.Shutdown(shutdownCtx)
	store.CloseAll()
	return err
}

// sampleQuizzes is served when neither quiz.file nor postgres is configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"python-data-science": {
			ID:            "python-data-science",
			CategoryTitle: "Python pour la Data Science",
			Questions: []domain.Question{
				{
					ID:            "q1",
					Prompt:        "Quelle bibliothèque fournit le DataFrame ?",
					Options:       []string{"NumPy", "pandas", "Matplotlib", "requests"},
					CorrectAnswer: 1,
					Difficulty:    domain.DifficultyBeginner,
					Topic:         "pandas",
					Points:        10,
					Explanation:   "pandas.DataFrame est la structure tabulaire de pandas.",
				},
				{
					ID:            "q2",
					Prompt:        "Que renvoie np.arange(3) ?",
					Options:       []string{"[1 2 3]", "[0 1 2]", "[0 1 2 3]"},
					CorrectAnswer: 1,
					Difficulty:    domain.DifficultyBeginner,
					Topic:         "numpy",
					Points:        10,
				},
				{
					ID:            "q3",
					Prompt:        "Quelle méthode supprime les valeurs manquantes ?",
					Options:       []string{"fillna", "dropna", "isna", "replace"},
					CorrectAnswer: 1,
					Difficulty:    domain.DifficultyIntermediate,
					Topic:         "pandas",
					Points:        15,
					Explanation:   "dropna retire les lignes ou colonnes contenant NaN.",
				},
			},
		},
	}
}

package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dental-mentor-service/internal/app"
	"dental-mentor-service/internal/config"
	"dental-mentor-service/internal/domain"
	"dental-mentor-service/internal/gateway"
	"dental-mentor-service/internal/infra/memory"
	pginfra "dental-mentor-service/internal/infra/postgres"
	redisinfra "dental-mentor-service/internal/infra/redis"
	"dental-mentor-service/internal/metrics"
	transport "dental-mentor-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the mentor server",
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
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	// Quiz content: the AI gateway when configured, otherwise authored
	// quizzes from postgres, otherwise a small built-in set.
	var source memory.QuizSource = memory.NewStaticQuizSource(sampleQuizzes())
	if pool != nil {
		source = pginfra.NewQuizStore(pool)
	}
	if cfg.Gateway.BaseURL != "" {
		source = gateway.New(gateway.Config{
			BaseURL: cfg.Gateway.BaseURL,
			APIKey:  cfg.Gateway.APIKey,
			Timeout: config.TTLDuration(cfg.Gateway.Timeout, 30*time.Second),
		})
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizzes transport.QuizProvider
	if redisClient != nil {
		quizzes = redisinfra.NewQuizCache(redisClient, source, quizTTL)
	} else {
		quizzes = memory.NewQuizCache(source, quizTTL)
	}

	var store app.SessionRepository
	if redisClient != nil {
		store = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		store = memory.NewSessionStore()
	}

	var docs transport.DocumentStore = memory.NewDocumentStore()
	if pool != nil {
		docs = pginfra.NewDocumentStore(pool)
	}

	leaderboard := app.NewLeaderboardService(store)
	wsHandler := transport.NewWSHandler(leaderboard, quizzes)
	uploadHandler := transport.NewUploadHandler(docs)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	uploadHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting mentor service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes provides a minimal built-in set so the server is usable
// without postgres or the content gateway.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"Endodontics": {
			ID:    "endo-basics",
			Title: "Endodontics Basics",
			Questions: []domain.Question{
				{
					ID:           "q1",
					Prompt:       "Which tissue is removed during root canal therapy?",
					Options:      []string{"Enamel", "Dental pulp", "Cementum", "Dentin"},
					CorrectIndex: 1,
					Explanation:  "Root canal therapy removes the infected or necrotic pulp tissue.",
					Points:       10,
				},
				{
					ID:           "q2",
					Prompt:       "Which instrument is used to shape the root canal?",
					Options:      []string{"K-file", "Periodontal probe", "Excavator", "Elevator"},
					CorrectIndex: 0,
					Explanation:  "K-files shape and clean the canal walls.",
					Points:       10,
				},
			},
		},
		"Periodontics": {
			ID:    "perio-basics",
			Title: "Periodontics Basics",
			Questions: []domain.Question{
				{
					ID:           "q1",
					Prompt:       "A probing depth above which value usually signals periodontitis?",
					Options:      []string{"1mm", "2mm", "3mm", "4mm"},
					CorrectIndex: 3,
					Explanation:  "Pockets deeper than 4mm suggest attachment loss.",
					Points:       10,
				},
			},
		},
	}
}

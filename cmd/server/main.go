package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"fieldops-routing-service/internal/adapters/cache"
	"fieldops-routing-service/internal/adapters/repositories"
	"fieldops-routing-service/internal/adapters/roadnet"
	"fieldops-routing-service/internal/adapters/solverext"
	"fieldops-routing-service/internal/api"
	"fieldops-routing-service/internal/domain"
	"fieldops-routing-service/internal/events"
	"fieldops-routing-service/internal/matrix"
	"fieldops-routing-service/internal/planner"
	"fieldops-routing-service/internal/platform/db"
	"fieldops-routing-service/internal/ports"
	"fieldops-routing-service/internal/rerouting"
	"fieldops-routing-service/internal/solver"
	"fieldops-routing-service/internal/spatial"
)

// main is the application composition root.
// It wires concrete adapters (Postgres, Redis, road network) behind ports
// and starts the HTTP server and event pipeline.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if strings.TrimSpace(databaseURL) == "" {
		log.Fatal("DATABASE_URL is required")
	}
	roadnetURL := os.Getenv("ROADNET_BASE_URL")
	if strings.TrimSpace(roadnetURL) == "" {
		log.Fatal("ROADNET_BASE_URL is required")
	}
	roadnetKey := os.Getenv("ROADNET_API_KEY")
	redisAddr := os.Getenv("REDIS_ADDR")
	port := getEnv("PORT", "8080")

	database, err := db.Open(databaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close()

	if err := repositories.InitSchema(database); err != nil {
		log.Fatal(err)
	}

	source, err := roadnet.NewClient(roadnetURL, roadnetKey)
	if err != nil {
		log.Fatal(err)
	}

	// Matrix cells live in Redis when available so restarts and replicas
	// share one warm cache; the in-memory tier is the local fallback.
	var matrixCache ports.MatrixCache = cache.NewMemoryMatrixCache()
	var snapshots ports.SnapshotStore
	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		matrixCache = cache.NewRedisMatrixCache(rdb)
		snapshots = cache.NewRedisSnapshotStore(rdb)
	}

	matrices := matrix.NewComputer(source, matrixCache)
	registry := buildRegistry()
	runner := solver.NewRunner(registry)

	entities := repositories.NewPgEntityRepository(database)
	plans := repositories.NewPgPlanRepository(database)
	index := spatial.NewIndex()

	engine := rerouting.NewEngine(runner, matrices, index, plans, snapshots)
	pipeline := events.NewPipeline()
	predictor := rerouting.NewPredictor(engine, pipeline)

	pipeline.Subscribe(domain.EventGPS, "predictor", predictor.HandleGPS)
	pipeline.Subscribe(domain.EventOrder, "rerouting", engine.HandleEvent)
	pipeline.Subscribe(domain.EventTraffic, "rerouting", engine.HandleEvent)
	pipeline.Subscribe(domain.EventVisit, "rerouting", engine.HandleEvent)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	pipeline.Start(ctx)
	defer pipeline.Close()

	router := api.NewRouter(api.Deps{
		Runner:    runner,
		Matrices:  matrices,
		Planner:   planner.NewPlanner(runner, matrices),
		Source:    source,
		Entities:  entities,
		Plans:     plans,
		Snapshots: snapshots,
		Pipeline:  pipeline,
		Live:      engine,
		Tracker:   engine,
	})

	// Timeouts are tuned for cold-cache solving (external API latency).
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("Server listening addr=:%s", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

// buildRegistry registers the in-process strategies and, when configured,
// the external solver services. The runner falls back to greedy on its own
// when a strategy is absent.
func buildRegistry() *solver.Registry {
	registry := solver.NewRegistry()
	registry.Register(solver.NewGreedy())
	registry.Register(solver.NewGenetic())

	if url := os.Getenv("HEURISTIC_SOLVER_URL"); url != "" {
		svc, err := solverext.NewHeuristicService(url, os.Getenv("HEURISTIC_SOLVER_API_KEY"))
		if err != nil {
			log.Fatal(err)
		}
		registry.Register(svc)
	}
	if url := os.Getenv("CONSTRAINT_SOLVER_URL"); url != "" {
		svc, err := solverext.NewConstraintService(url, os.Getenv("CONSTRAINT_SOLVER_API_KEY"))
		if err != nil {
			log.Fatal(err)
		}
		registry.Register(svc)
	}
	return registry
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	// OpenTelemetry
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	// Infrastructure
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	// Interne
	"github.com/jupiterclapton/cenackle/services/profile-service/config"
	"github.com/jupiterclapton/cenackle/services/profile-service/internal/adapters/primary/events"
	"github.com/jupiterclapton/cenackle/services/profile-service/internal/adapters/primary/rest"
	"github.com/jupiterclapton/cenackle/services/profile-service/internal/adapters/secondary/cache"
	"github.com/jupiterclapton/cenackle/services/profile-service/internal/adapters/secondary/eventbroker"
	"github.com/jupiterclapton/cenackle/services/profile-service/internal/adapters/secondary/graph"
	"github.com/jupiterclapton/cenackle/services/profile-service/internal/adapters/secondary/media"
	"github.com/jupiterclapton/cenackle/services/profile-service/internal/adapters/secondary/repository"
	"github.com/jupiterclapton/cenackle/services/profile-service/internal/adapters/secondary/security"
	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/ports"
	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/services"
)

func main() {
	// 1. Charger la Config
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. Logger (slog JSON pour la prod, Text pour le dev)
	initLogger(cfg)
	slog.Info("🚀 Starting Profile Service", "env", cfg.Env, "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Tracing (OpenTelemetry)
	tp, err := initTracer(ctx, cfg)
	if err != nil {
		slog.Error("Failed to init tracer", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				slog.Error("Error shutting down tracer", "error", err)
			}
		}()
	}

	// 4. Infrastructure : Postgres (source de vérité)
	dbConfig, err := pgxpool.ParseConfig(cfg.DBUrl)
	if err != nil {
		slog.Error("Unable to parse DB config", "error", err)
		os.Exit(1)
	}
	dbConfig.ConnConfig.Tracer = otelpgx.NewTracer()

	dbPool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		slog.Error("Unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		slog.Error("Database ping failed", "error", err)
		os.Exit(1)
	}
	if err := repository.RunMigrations(ctx, dbPool); err != nil {
		slog.Error("Database migrations failed", "error", err)
		os.Exit(1)
	}
	slog.Info("✅ Database connected and migrated")

	repo := repository.NewPostgresRepo(dbPool)

	// 5. Infrastructure optionnelle. Les ports restent des interfaces nil
	// quand le composant est désactivé : les services branchent alors un no-op.
	var profileCache ports.ProfileCache
	if cfg.CacheEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := redisotel.InstrumentTracing(rdb); err != nil {
			slog.Error("Failed to instrument Redis", "error", err)
			os.Exit(1)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Error("Unable to connect to Redis", "error", err)
			os.Exit(1)
		}
		profileCache = cache.NewRedisProfileCache(rdb, cfg.CacheTTL)
		slog.Info("✅ Connected to Redis")
	}

	var publisher ports.EventPublisher
	var broker *eventbroker.NatsBroker
	if cfg.NatsEnabled {
		nc, err := nats.Connect(cfg.NatsUrl, nats.Name(cfg.ServiceName))
		if err != nil {
			slog.Error("Unable to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer nc.Close()

		broker, err = eventbroker.NewNatsBroker(ctx, nc)
		if err != nil {
			slog.Error("Failed to init JetStream", "error", err)
			os.Exit(1)
		}
		publisher = broker
		slog.Info("✅ NATS JetStream connected")
	}

	var projection ports.GraphProjection
	if cfg.Neo4jEnabled {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""))
		if err != nil {
			slog.Error("Failed to create neo4j driver", "error", err)
			os.Exit(1)
		}
		defer driver.Close(context.Background())

		verifyCtx, verifyCancel := context.WithTimeout(ctx, 5*time.Second)
		err = driver.VerifyConnectivity(verifyCtx)
		verifyCancel()
		if err != nil {
			slog.Error("Neo4j unreachable", "error", err)
			os.Exit(1)
		}

		graphRepo := graph.NewNeo4jRepo(driver)
		if err := graphRepo.EnsureSchema(ctx); err != nil {
			slog.Error("Failed to ensure Neo4j schema", "error", err)
			os.Exit(1)
		}
		projection = graphRepo
		slog.Info("✅ Connected to Neo4j")
	}

	// 6. Sécurité : vérification des sessions émises par l'Auth Provider
	var verifier ports.SessionVerifier
	if pem, err := os.ReadFile(cfg.AuthPublicKeyPath); err != nil {
		slog.Warn("Auth public key not found, authenticated routes disabled", "path", cfg.AuthPublicKeyPath, "error", err)
	} else {
		jwtVerifier, err := security.NewJWTVerifier(pem, cfg.AuthIssuer, cfg.AuthAudience)
		if err != nil {
			slog.Error("Failed to init JWT verifier", "error", err)
			os.Exit(1)
		}
		verifier = jwtVerifier
	}

	// 7. Wiring (Injection de dépendances) - Adapters -> Services
	profileService := services.NewProfileService(repo, repo, repo, profileCache, publisher)
	followService := services.NewFollowService(repo, repo, projection, publisher)
	statsService := services.NewStatsService(repo, publisher)
	mediaService := services.NewMediaService(
		media.NewCloudinaryClient(cfg.CloudinaryCloudName, cfg.CloudinaryUploadPreset),
		cfg.MaxUploadBytes,
	)

	// 8. Consumer JetStream : alimente la projection Neo4j
	if broker != nil && projection != nil {
		consumer := events.NewEventHandler(followService)
		if err := consumer.Start(ctx, broker.JetStream()); err != nil {
			slog.Error("Failed to start event consumer", "error", err)
			os.Exit(1)
		}
		defer consumer.Stop()
	}

	// 8b. Rattrapage : les follows antérieurs à l'activation de Neo4j n'ont jamais produit d'event
	if projection != nil && cfg.Neo4jBackfill {
		go func() {
			start := time.Now()
			n, err := followService.RebuildProjection(ctx)
			if err != nil {
				slog.Error("Graph projection rebuild failed", "projected", n, "error", err)
				return
			}
			slog.Info("🔁 Graph projection rebuilt", "edges", n, "duration", time.Since(start))
		}()
	}

	// 9. Serveur HTTP (Adapter primaire)
	handler := rest.NewHandler(profileService, followService, statsService, mediaService, cfg.MaxUploadBytes)
	var h http.Handler = handler.Routes(verifier)

	// A. CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "baggage", "traceparent"},
		AllowCredentials: true,
	})
	h = c.Handler(h)

	// B. OTEL HTTP (Racine)
	h = otelhttp.NewHandler(h, cfg.ServiceName, otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
		return fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Path)
	}))

	srvHTTP := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("📡 HTTP API listening", "port", cfg.HTTPPort)
		if err := srvHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// 10. Serveur gRPC : Health Check (Standard K8s)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		slog.Error("Failed to listen", "port", cfg.GRPCPort, "error", err)
		os.Exit(1)
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(cfg.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	if cfg.Env != "prod" {
		reflection.Register(grpcServer)
		slog.Info("🔍 gRPC Reflection enabled")
	}

	go func() {
		slog.Info("🚀 gRPC health server listening", "address", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("Failed to serve", "error", err)
			os.Exit(1)
		}
	}()

	// 11. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	sig := <-quit
	slog.Info("⚠️  Signal received, shutting down...", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	if err := srvHTTP.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced to shutdown", "error", err)
	}

	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("✅ gRPC Server stopped gracefully")
	case <-shutdownCtx.Done():
		slog.Warn("⏳ Timeout reached, forcing server stop")
		grpcServer.Stop()
	}

	slog.Info("👋 Service stopped")
}

// --- HELPERS ---

func initLogger(cfg *config.Config) {
	var handler slog.Handler
	if cfg.Env == "local" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))
}

func initTracer(ctx context.Context, cfg *config.Config) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OtelEndpoint),
		otlptracegrpc.WithInsecure(), // En prod, gérez le TLS
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String("1.0.0"),
			semconv.DeploymentEnvironmentKey.String(cfg.Env),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	// Propagation du trace-id entre HTTP, NATS et les services aval
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp, nil
}

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"backend/internal/config"
	"backend/internal/database"
	"backend/internal/explorer"
	"backend/internal/handlers"
	"backend/internal/middlewares"
	"backend/internal/repositories"
	"backend/internal/routes"
	"backend/internal/services"
)

type Server struct {
	cfg  *config.Config
	log  *zap.SugaredLogger
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// New connects to the store (and Redis when configured) and returns a
// Server ready to build its HTTP handler.
func New(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*Server, error) {
	pool, err := database.Connect(ctx, cfg.DB, log)
	if err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg, log: log, pool: pool}

	if cfg.Auth.Disabled {
		log.Warn("AUTH_DISABLED is set, every request is treated as an admin")
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})

		// Test Redis connection and fail fast with a clear message
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			pool.Close()
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Redis.Addr, err)
		}
		log.Infow("connected to Redis, schema cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.SchemaCacheTTL)
		s.rdb = rdb
	}

	return s, nil
}

func (s *Server) schemaCache() repositories.SchemaCache {
	if s.rdb == nil {
		return repositories.NoopSchemaCache{}
	}
	return repositories.NewRedisSchemaCache(s.rdb, s.cfg.DB.Schema, s.cfg.Redis.SchemaCacheTTL)
}

// HTTPServer wires repositories, services and handlers into an http.Server.
func (s *Server) HTTPServer() *http.Server {
	router := NewRouter(s.cfg, s.pool, s.schemaCache(), s.log)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Close releases the pool and the Redis client.
func (s *Server) Close() {
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			s.log.Warnw("failed to close Redis client", "error", err)
		}
	}
	s.pool.Close()
}

// LocalAPI serves the explorer straight from this process's services,
// without going through HTTP.
func (s *Server) LocalAPI() explorer.Local {
	schemaService, recordService := newServices(s.cfg, s.pool, s.schemaCache(), s.log)
	return explorer.Local{SchemaService: schemaService, RecordService: recordService}
}

func newServices(cfg *config.Config, db repositories.DBTX, cache repositories.SchemaCache, log *zap.SugaredLogger) (*services.SchemaService, *services.RecordService) {
	schemaRepo := repositories.NewSchemaRepository(db, cfg.DB.Schema)
	recordRepo := repositories.NewRecordRepository(db, cfg.DB.Schema)
	schemaService := services.NewSchemaService(schemaRepo, cache, cfg.Tables, log)
	recordService := services.NewRecordService(schemaService, recordRepo, cfg.Tables, log)
	return schemaService, recordService
}

// NewRouter builds the gin engine over any store handle.
func NewRouter(cfg *config.Config, db repositories.DBTX, cache repositories.SchemaCache, log *zap.SugaredLogger) *gin.Engine {
	if cfg.Environment == config.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Dependency injection
	schemaService, recordService := newServices(cfg, db, cache, log)
	tableHandler := handlers.NewTableHandler(schemaService, recordService, cfg.Tables, log)

	router := gin.New()
	// identities may contain escaped slashes
	router.UseRawPath = true
	router.Use(gin.Recovery(), middlewares.RequestLogger(log))
	router.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.CORS.AllowedOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type", middlewares.RequestIDHeader},
		ExposeHeaders: []string{middlewares.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}))

	routes.RegisterRoutes(router, tableHandler, cfg.Auth)
	return router
}

package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/Skund404/WAWI-Claude-sub001/internal/adapter/handler"
	"github.com/Skund404/WAWI-Claude-sub001/internal/adapter/storage"
	"github.com/Skund404/WAWI-Claude-sub001/internal/core/domain"
	"github.com/Skund404/WAWI-Claude-sub001/internal/core/service"
	"github.com/Skund404/WAWI-Claude-sub001/internal/port"
)

const (
	defaultHTTPPort  = ":8080"
	defaultThreshold = 5
)

type repositories struct {
	inventory port.InventoryRepository
	journal   port.AdjustmentLog
	picking   port.PickingListRepository
	tools     port.ToolListRepository
}

func main() {
	// Missing .env is fine; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("could not load .env: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repos, closeStorage := openStorage(ctx)
	defer closeStorage()

	// Redis is optional: without it the ledger still enforces idempotency
	// through the journal, just without the fast path or stock cache.
	var cache port.CacheRepository
	var rdb *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, PoolSize: 100})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		cache = storage.NewRedisAdapter(rdb)
		log.Println("connected to redis")
	}

	bom := loadBOMProvider()

	ledger := service.NewLedgerService(repos.inventory, repos.journal, cache, service.LedgerConfig{
		LowStockThreshold: envInt64("LOW_STOCK_THRESHOLD", defaultThreshold),
	})
	picking := service.NewPickingService(ledger, repos.picking, bom)
	tools := service.NewToolService(ledger, repos.tools, bom)
	threshold := service.NewThresholdEvaluator(repos.inventory)
	valuation := service.NewValuationService(repos.inventory, repos.journal)

	httpHandler := handler.NewHTTPHandler(ledger, picking, tools, threshold, valuation)
	mux := http.NewServeMux()
	httpHandler.Register(mux)

	addr := os.Getenv("HTTP_PORT")
	if addr == "" {
		addr = defaultHTTPPort
	}
	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		log.Printf("HTTP server listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Println("HTTP server stopped")

	if rdb != nil {
		rdb.Close()
	}
	log.Println("connections closed")
}

// openStorage selects the persistence backend from STORAGE_DRIVER:
// memory (default), mysql, or postgres.
func openStorage(ctx context.Context) (repositories, func()) {
	switch driver := os.Getenv("STORAGE_DRIVER"); driver {
	case "", "memory":
		store := storage.NewMemoryStore()
		log.Println("using in-memory storage")
		return repositories{inventory: store, journal: store, picking: store, tools: store}, func() {}

	case "mysql":
		dsn := os.Getenv("MYSQL_DSN")
		if dsn == "" {
			log.Fatal("MYSQL_DSN is required for the mysql driver")
		}
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			log.Fatalf("failed to connect mysql: %v", err)
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			log.Fatalf("failed to ping mysql: %v", err)
		}
		log.Println("connected to mysql")
		adapter := storage.NewMySQLAdapter(db)
		return repositories{inventory: adapter, journal: adapter, picking: adapter, tools: adapter},
			func() { db.Close() }

	case "postgres":
		dsn := os.Getenv("POSTGRES_DSN")
		if dsn == "" {
			log.Fatal("POSTGRES_DSN is required for the postgres driver")
		}
		db, err := storage.OpenPostgres(dsn)
		if err != nil {
			log.Fatalf("failed to connect postgres: %v", err)
		}
		log.Println("connected to postgres")
		adapter := storage.NewPostgresAdapter(db)
		return repositories{inventory: adapter, journal: adapter, picking: adapter, tools: adapter},
			func() {
				if sqlDB, err := db.DB(); err == nil {
					sqlDB.Close()
				}
			}

	default:
		log.Fatalf("unknown STORAGE_DRIVER %q", driver)
		return repositories{}, nil
	}
}

// loadBOMProvider reads project component requirements from the JSON file
// named by BOM_FILE. The file maps project ids to requirement arrays. An
// unset BOM_FILE yields an empty provider; list creation then fails for
// every project, which is the right behavior for a ledger-only deployment.
func loadBOMProvider() port.BOMProvider {
	projects := make(map[string][]domain.BOMRequirement)
	path := os.Getenv("BOM_FILE")
	if path == "" {
		return storage.NewStaticBOMProvider(projects)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("failed to read BOM file %s: %v", path, err)
	}
	if err := json.Unmarshal(data, &projects); err != nil {
		log.Fatalf("failed to parse BOM file %s: %v", path, err)
	}
	log.Printf("loaded %d projects from %s", len(projects), path)
	return storage.NewStaticBOMProvider(projects)
}

func envInt64(name string, fallback int64) int64 {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Fatalf("invalid %s: %v", name, err)
	}
	return n
}

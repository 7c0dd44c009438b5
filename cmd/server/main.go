package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/in-nis/untis-back/internal/api"
	"github.com/in-nis/untis-back/internal/auth"
	"github.com/in-nis/untis-back/internal/backup"
	"github.com/in-nis/untis-back/internal/cache"
	"github.com/in-nis/untis-back/internal/config"
	"github.com/in-nis/untis-back/internal/cron"
	"github.com/in-nis/untis-back/internal/db"
	"github.com/in-nis/untis-back/internal/mapping"
	"github.com/in-nis/untis-back/internal/untis"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, using system env")
	}

	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("❌ JWT_SECRET is required")
	}
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	ids, err := cfg.Identities()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	provider, err := untis.NewRouterFromIdentities(ids, untis.ClientOptions{
		ClientName: cfg.ClientName,
		SessionTTL: cfg.SessionTTL,
		Timeout:    cfg.ProviderTimeout,
		RatePerSec: cfg.RatePerSec,
	})
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	log.Printf("✅ Provider ready for grades %v", provider.AvailableGrades())

	db.InitDB(cfg.DBUrl)
	store := db.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	responses := newCache(ctx, cfg)

	maps, err := mapping.OpenDir(cfg.DataDir, cfg.CourseMapFile, cfg.RoomMapFile)
	if err != nil {
		log.Fatalf("❌ Failed to load mappings: %v", err)
	}
	log.Printf("✅ Mappings loaded: %d courses, %d rooms", maps.Courses.Len(), maps.Rooms.Len())
	seen := mapping.NewSeen()

	backups := backup.NewService(store, maps, newBackupStorage(ctx, cfg))

	authSvc := auth.NewService(cfg, store, store)
	h := api.NewHandler(api.Deps{
		Config:   cfg,
		Provider: provider,
		Cache:    responses,
		Mappings: maps,
		Seen:     seen,
		Store:    store,
		Backups:  backups,
	})
	r := api.SetupRouter(h, authSvc)

	// Start cron jobs
	jobs, err := cron.StartJobs(&cron.Jobs{
		Provider: provider,
		Seen:     seen,
		Mappings: maps,
		DataDir:  cfg.DataDir,
		Backups:  backups,
		Location: cfg.Location(),
	}, cfg.CronSeenSpec, cfg.CronBackupSpec)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	srv := &http.Server{Addr: cfg.ServerAddr, Handler: r}
	go func() {
		log.Println("Server running on", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	<-jobs.Stop().Done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Println("⚠️ Server shutdown:", err)
	}
	provider.Close(shutdownCtx)
}

// newCache uses Redis when REDIS_URL is set and falls back to memory.
func newCache(ctx context.Context, cfg *config.Config) *cache.Cache {
	if cfg.RedisURL != "" {
		rs, err := cache.NewRedisStore(ctx, cfg.RedisURL, "untis")
		if err == nil {
			log.Println("✅ Response cache: redis")
			return cache.New(rs, cfg.CacheTTL)
		}
		log.Println("⚠️ Redis unavailable, using in-memory cache:", err)
	}
	return cache.New(cache.NewMemoryStore(cfg.CacheTTL, 2*cfg.CacheTTL), cfg.CacheTTL)
}

// newBackupStorage uses MinIO when configured and DATA_DIR/backups otherwise.
func newBackupStorage(ctx context.Context, cfg *config.Config) backup.Storage {
	if cfg.MinioEnabled() {
		s, err := backup.NewMinioStorage(ctx, backup.MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err == nil {
			log.Println("✅ Backups go to", s.Location())
			return s
		}
		log.Println("⚠️ MinIO unavailable, backing up to disk:", err)
	}
	s, err := backup.NewLocalStorage(filepath.Join(cfg.DataDir, "backups"))
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	return s
}

package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/HumbleChaudhry/pixel-pipe/internal/config"
	v1 "github.com/HumbleChaudhry/pixel-pipe/internal/controller/http/v1"
	"github.com/HumbleChaudhry/pixel-pipe/internal/domain/entity"
	"github.com/HumbleChaudhry/pixel-pipe/internal/domain/usecase"
	psqlRepo "github.com/HumbleChaudhry/pixel-pipe/internal/repository/psql"
	redisRepo "github.com/HumbleChaudhry/pixel-pipe/internal/repository/redis"
	s3Repo "github.com/HumbleChaudhry/pixel-pipe/internal/repository/s3"
	"github.com/HumbleChaudhry/pixel-pipe/pkg/client/psql"
	redisGo "github.com/HumbleChaudhry/pixel-pipe/pkg/client/redis"
	s3ClientGo "github.com/HumbleChaudhry/pixel-pipe/pkg/client/s3"
	"github.com/HumbleChaudhry/pixel-pipe/pkg/middleware"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	r := gin.Default()

	redisClient, err := redisGo.NewRedisClient(ctx, redisGo.Config{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RedisClient: redisClient,
		Limit:       10,
		Window:      time.Second,
		KeyPrefix:   "rl:",
	})
	r.Use(rl)

	db, err := psql.NewPostgresDB(psql.Config{
		Host:     cfg.PSQLHost,
		User:     cfg.PSQLUser,
		Password: cfg.PSQLPassword,
		DBName:   cfg.PSQLDBName,
		Port:     cfg.PSQLPort,
		SslMode:  cfg.PSQLSSLMode,
	})
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	if err := db.AutoMigrate(&entity.Job{}); err != nil {
		log.Fatalf("failed to migrate job table: %v", err)
	}
	jobRepo := psqlRepo.NewGormJobRepo(db)

	statusCache := redisRepo.NewStatusCache(redisClient)

	s3Client, err := s3ClientGo.NewS3Client(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3UseSSL)
	if err != nil {
		log.Fatalf("failed to init s3 client: %v", err)
	}
	objectRepo := s3Repo.NewObjectRepo(s3Client)

	uc := usecase.NewUploadUseCase(objectRepo, jobRepo, statusCache, cfg.UploadsBucket, cfg.ProcessedBucket)
	handler := v1.NewPipelineHandler(uc)

	v1Group := r.Group("/api/v1")
	{
		v1Group.POST("/uploads", handler.CreateUploadURL)
		v1Group.GET("/jobs/:image_id", handler.GetJob)
		v1Group.GET("/jobs/:image_id/status", handler.GetStatus)
	}

	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("gateway stopped: %v", err)
	}
}

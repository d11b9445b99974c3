package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/HumbleChaudhry/pixel-pipe/internal/config"
	"github.com/HumbleChaudhry/pixel-pipe/internal/domain/entity"
	"github.com/HumbleChaudhry/pixel-pipe/internal/domain/usecase"
	psqlRepo "github.com/HumbleChaudhry/pixel-pipe/internal/repository/psql"
	"github.com/HumbleChaudhry/pixel-pipe/internal/repository/rabbitmq"
	redisRepo "github.com/HumbleChaudhry/pixel-pipe/internal/repository/redis"
	s3Repo "github.com/HumbleChaudhry/pixel-pipe/internal/repository/s3"
	"github.com/HumbleChaudhry/pixel-pipe/pkg/client/psql"
	redisGo "github.com/HumbleChaudhry/pixel-pipe/pkg/client/redis"
	s3ClientGo "github.com/HumbleChaudhry/pixel-pipe/pkg/client/s3"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)

	redisClient, err := redisGo.NewRedisClient(ctx, redisGo.Config{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	statusCache := redisRepo.NewStatusCache(redisClient)

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

	s3Client, err := s3ClientGo.NewS3Client(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3UseSSL)
	if err != nil {
		log.Fatalf("failed to init s3 client: %v", err)
	}
	objectRepo := s3Repo.NewObjectRepo(s3Client)

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()

	resizeUC := usecase.NewResizeUseCase(objectRepo, jobRepo, statusCache, cfg.ProcessedBucket)

	consumer, err := rabbitmq.NewStageConsumer(conn, rabbitmq.ConsumerConfig{
		Exchange:           cfg.FanOutExchange,
		Queue:              cfg.ResizeQueue,
		DeadLetterExchange: cfg.DeadLetterExchange,
		DeadLetterQueue:    cfg.DeadLetterQueue,
	}, resizeUC.ProcessResize, jobRepo)
	if err != nil {
		log.Fatalf("failed to init consumer: %v", err)
	}

	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Fatalf("consumer stopped with error: %v", err)
		}
	}()

	log.Println("Resize worker started")
	<-sigCh
	log.Println("Shutting down Resize worker...")
	cancel()
	time.Sleep(time.Second)
}

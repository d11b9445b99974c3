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

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()

	publisher, err := rabbitmq.NewFanOutPublisher(conn, cfg.FanOutExchange)
	if err != nil {
		log.Fatalf("failed to init publisher: %v", err)
	}

	dispatcher := usecase.NewDispatcherUseCase(jobRepo, statusCache, publisher)

	notifCh := s3Client.Client.ListenBucketNotification(
		ctx, cfg.UploadsBucket, "", "", []string{"s3:ObjectCreated:*"})

	go func() {
		for info := range notifCh {
			if info.Err != nil {
				log.Printf("bucket notification error: %v", info.Err)
				continue
			}
			for _, rec := range info.Records {
				n := entity.ObjectCreatedNotification{
					Bucket:    rec.S3.Bucket.Name,
					Key:       rec.S3.Object.Key,
					EventName: rec.EventName,
					EventTime: rec.EventTime,
				}
				// The notification stream does not redeliver, so the
				// dispatch is retried in-process before the event is
				// written off.
				if err := dispatcher.DispatchWithRetry(ctx, n); err != nil {
					log.Printf("dispatch failed for %s/%s, event dropped: %v", n.Bucket, n.Key, err)
				}
			}
		}
	}()

	log.Println("Dispatcher service started")
	<-sigCh
	log.Println("Shutting down Dispatcher service...")
	cancel()
	time.Sleep(time.Second)
}

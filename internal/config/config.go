package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config carries everything the pipeline binaries need at startup. Every
// value here is required; a missing variable is a fatal configuration error,
// never a per-message one.
type Config struct {
	RedisAddr string
	RedisDB   int

	PSQLHost     string
	PSQLPort     int
	PSQLUser     string
	PSQLPassword string
	PSQLDBName   string
	PSQLSSLMode  string

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool

	UploadsBucket   string
	ProcessedBucket string

	RabbitMQURL        string
	FanOutExchange     string
	ResizeQueue        string
	LabelsQueue        string
	DeadLetterExchange string
	DeadLetterQueue    string

	AWSRegion string

	HTTPAddr string
}

func Load() Config {
	if err := godotenv.Load("./.env.local"); err != nil {
		log.Println("No .env file found. Falling back to OS environment variables.")
	}
	mustGetEnv := func(key string) string {
		val := os.Getenv(key)
		if val == "" {
			log.Fatalf("Environment variable %s is not set", key)
		}
		return val
	}

	// REDIS
	redisHost := mustGetEnv("REDIS_HOST")
	redisPort := mustGetEnv("REDIS_PORT")
	redisDBStr := os.Getenv("REDIS_DB")
	if redisDBStr == "" {
		redisDBStr = "0"
	}
	redisDB, err := strconv.Atoi(redisDBStr)
	if err != nil {
		log.Fatalf("Invalid REDIS_DB value: %v", err)
	}

	// PSQL
	psqlPortStr := mustGetEnv("PSQL_PORT")
	psqlPort, err := strconv.Atoi(psqlPortStr)
	if err != nil {
		log.Fatalf("Invalid PSQL_PORT value: %v", err)
	}

	// RABBITMQ
	rmqUser := mustGetEnv("RABBITMQ_USER")
	rmqPassword := mustGetEnv("RABBITMQ_PASSWORD")
	rmqHost := mustGetEnv("RABBITMQ_HOST")
	rmqPort := mustGetEnv("RABBITMQ_PORT")
	rabbitMQURL := "amqp://" + rmqUser + ":" + rmqPassword + "@" + rmqHost + ":" + rmqPort + "/"

	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	return Config{
		RedisAddr: redisHost + ":" + redisPort,
		RedisDB:   redisDB,

		PSQLHost:     mustGetEnv("PSQL_HOST"),
		PSQLPort:     psqlPort,
		PSQLUser:     mustGetEnv("PSQL_USER"),
		PSQLPassword: mustGetEnv("PSQL_PASSWORD"),
		PSQLDBName:   mustGetEnv("PSQL_DB"),
		PSQLSSLMode:  mustGetEnv("PSQL_SSLMODE"),

		S3Endpoint:  mustGetEnv("S3_HOST") + ":" + mustGetEnv("S3_PORT"),
		S3AccessKey: mustGetEnv("S3_ACCESS_KEY"),
		S3SecretKey: mustGetEnv("S3_SECRET_KEY"),
		S3UseSSL:    os.Getenv("S3_USE_SSL") == "true",

		UploadsBucket:   mustGetEnv("UPLOADS_BUCKET"),
		ProcessedBucket: mustGetEnv("PROCESSED_BUCKET"),

		RabbitMQURL:        rabbitMQURL,
		FanOutExchange:     mustGetEnv("FANOUT_EXCHANGE"),
		ResizeQueue:        mustGetEnv("RESIZE_QUEUE"),
		LabelsQueue:        mustGetEnv("LABELS_QUEUE"),
		DeadLetterExchange: mustGetEnv("DEAD_LETTER_EXCHANGE"),
		DeadLetterQueue:    mustGetEnv("DEAD_LETTER_QUEUE"),

		AWSRegion: mustGetEnv("AWS_REGION"),

		HTTPAddr: httpAddr,
	}
}

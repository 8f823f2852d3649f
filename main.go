package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/coffee-scan/internal/artifact"
	"github.com/example/coffee-scan/internal/auth"
	"github.com/example/coffee-scan/internal/handlers"
	"github.com/example/coffee-scan/internal/logging"
	"github.com/example/coffee-scan/internal/predictor"
	"github.com/example/coffee-scan/internal/repository"
	"github.com/example/coffee-scan/internal/upload"
	"github.com/example/coffee-scan/internal/usecase"
)

func main() {
	_ = godotenv.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	db := initDatabase(ctx, logger)
	userRepo := repository.NewUserRepository(db, logger)
	scanRepo := repository.NewScanRepository(db, logger)
	if err := userRepo.AutoMigrate(ctx); err != nil {
		logger.Fatal("user auto migrate failed", zap.Error(err))
	}
	if err := scanRepo.AutoMigrate(ctx); err != nil {
		logger.Fatal("scan auto migrate failed", zap.Error(err))
	}

	redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
	defer redisCancel()
	redisClient := initRedis(redisCtx, logger)

	invoker := predictor.NewScriptInvoker(
		getEnv("PREDICTOR_INTERPRETER", "python"),
		getEnv("PREDICTOR_SCRIPT", "ml_model/predict.py"),
		getDurationEnv("PREDICTOR_TIMEOUT", 60*time.Second, logger),
		logger,
	)

	uploadsDir := getEnv("UPLOADS_DIR", "uploads")
	permanentDir := getEnv("PERMANENT_UPLOADS_DIR", "uploads/permanent")
	store, servedUploadsDir := initArtifactStore(ctx, permanentDir, logger)
	manager := artifact.NewManager(store, logger)
	stager := upload.NewStager(uploadsDir)

	cache := usecase.NewRedisCache(redisClient)
	scans := usecase.NewScanUseCase(scanRepo, cache, invoker, manager, logger)
	users := usecase.NewUserUseCase(userRepo, logger)

	sessions := auth.NewSessions([]byte(getEnv("SESSION_SECRET", "dev-session-secret")), getEnv("SESSION_SECURE", "") == "true")
	tokens := auth.NewTokens(getEnv("JWT_SECRET", "dev-secret"))
	if err := auth.RegisterValidators(); err != nil {
		logger.Fatal("failed to register validators", zap.Error(err))
	}

	r := gin.Default()
	r.MaxMultipartMemory = handlers.MaxUploadSize

	handlers.RegisterRoutes(r, handlers.Config{
		Scans:      scans,
		Users:      users,
		Sessions:   sessions,
		Tokens:     tokens,
		Stager:     stager,
		ViewsDir:   getEnv("VIEWS_DIR", "views"),
		UploadsDir: servedUploadsDir,
		Logger:     logger,
	})

	addr := ":" + getEnv("PORT", "5000")
	server := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	logger.Info("coffee scan API listening", zap.String("addr", addr))
	if err := serveHTTPServer(server, 15*time.Second, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func initDatabase(ctx context.Context, zapLogger *zap.Logger) *gorm.DB {
	dsn := getEnv("DATABASE_DSN", "host=postgres user=postgres password=postgres dbname=coffeescan port=5432 sslmode=disable")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("failed to access db handle", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		zapLogger.Fatal("database ping failed", zap.Error(err))
	}

	return db
}

func initRedis(ctx context.Context, zapLogger *zap.Logger) *redis.Client {
	addr := getEnv("REDIS_ADDR", "redis:6379")
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	return client
}

// initArtifactStore selects the permanent storage backend. The filesystem
// store also tells the router which directory to serve at /uploads; the S3
// store serves artifacts from its own public URL.
func initArtifactStore(ctx context.Context, permanentDir string, zapLogger *zap.Logger) (artifact.Store, string) {
	if getEnv("ARTIFACT_STORE", "local") != "s3" {
		return artifact.NewLocalStore(permanentDir, "/uploads/permanent"), getEnv("UPLOADS_DIR", "uploads")
	}

	region := getEnv("AWS_REGION", "us-east-1")
	options := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey := os.Getenv("AWS_ACCESS_KEY_ID"); accessKey != "" {
		options = append(options, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, os.Getenv("AWS_SECRET_ACCESS_KEY"), ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, options...)
	if err != nil {
		zapLogger.Fatal("failed to load AWS config", zap.Error(err))
	}

	client := s3.NewFromConfig(cfg)
	bucket := os.Getenv("ARTIFACT_BUCKET")
	if bucket == "" {
		zapLogger.Fatal("ARTIFACT_BUCKET is required when ARTIFACT_STORE=s3")
	}
	publicURL := getEnv("ARTIFACT_PUBLIC_URL", "https://"+bucket+".s3."+region+".amazonaws.com")
	return artifact.NewS3Store(client, bucket, "permanent", publicURL), ""
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration, logger *zap.Logger) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logger.Warn("invalid duration, using fallback", zap.String("key", key), zap.String("value", value))
		return fallback
	}
	return parsed
}

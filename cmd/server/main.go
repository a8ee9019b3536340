package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/homeserve/otpauth/internal/config"
	"github.com/homeserve/otpauth/internal/handlers"
	"github.com/homeserve/otpauth/internal/middleware"
	"github.com/homeserve/otpauth/internal/repository"
	"github.com/homeserve/otpauth/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	configureLogger(logger, cfg)

	users, closeUsers, err := initUserDirectory(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize user store")
	}
	defer closeUsers()

	jwtService, err := service.NewJWTService(&cfg.JWT, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize JWT service")
	}

	manager := service.NewOTPSessionManager(service.SystemClock(), cfg.OTP.ResendCooldown, cfg.OTP.SweepInterval, logger)
	smsGateway := service.NewSMSGateway(&cfg.SMS, cfg.IsProduction(), logger)
	if !smsGateway.IsLive() {
		logger.Warn("SMS_API_KEY not set, OTPs will be simulated and logged")
	}

	authService := service.NewOTPAuthService(manager, smsGateway, jwtService, users, &cfg.OTP, logger)

	validator, err := handlers.NewRequestValidator()
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize request validator")
	}

	router := handlers.NewRouter(
		handlers.NewAuthHandlers(authService, validator, logger),
		handlers.NewHealthHandler(authService, smsGateway.IsLive(), logger),
		middleware.NewAuthMiddleware(jwtService, logger),
		cfg.CORS.AllowedOrigins,
		logger,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":       cfg.Server.Port,
			"env":        cfg.Env,
			"user_store": cfg.UserStore,
		}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	manager.Stop(ctx)

	logger.Info("Server exited")
}

func configureLogger(logger *logrus.Logger, cfg *config.Config) {
	if !cfg.IsProduction() {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithField("log_level", cfg.LogLevel).Warn("Unknown LOG_LEVEL, using info")
		return
	}
	logger.SetLevel(level)
}

func initUserDirectory(cfg *config.Config, logger *logrus.Logger) (service.UserDirectory, func(), error) {
	switch cfg.UserStore {
	case "dynamodb":
		client, err := initDynamoDB(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewUserRepository(client, cfg.DynamoDB.TableName, logger), func() {}, nil

	case "redis":
		client, err := initRedis(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.WithError(err).Warn("Failed to close Redis client")
			}
		}
		return repository.NewRedisUserRepository(client, logger), closeFn, nil

	default:
		logger.Warn("Using in-memory user store, users are lost on restart")
		return repository.NewMemoryUserRepository(), func() {}, nil
	}
}

func initDynamoDB(cfg *config.Config, logger *logrus.Logger) (*dynamodb.Client, error) {
	var awsCfg aws.Config
	var err error

	if cfg.DynamoDB.Endpoint != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.TODO(),
			awsconfig.WithRegion(cfg.DynamoDB.Region),
			awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
				func(service, region string, options ...interface{}) (aws.Endpoint, error) {
					return aws.Endpoint{
						URL:           cfg.DynamoDB.Endpoint,
						SigningRegion: cfg.DynamoDB.Region,
					}, nil
				})),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.TODO(), awsconfig.WithRegion(cfg.DynamoDB.Region))
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg)
	logger.WithField("table", cfg.DynamoDB.TableName).Info("DynamoDB client initialized")
	return client, nil
}

func initRedis(cfg *config.Config, logger *logrus.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Endpoint,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Redis.Endpoint, err)
	}

	logger.WithField("endpoint", cfg.Redis.Endpoint).Info("Redis client initialized")
	return client, nil
}

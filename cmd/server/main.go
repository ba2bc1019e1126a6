package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/npezzotti/go-chatsync/internal/api"
	"github.com/npezzotti/go-chatsync/internal/chat"
	"github.com/npezzotti/go-chatsync/internal/config"
	"github.com/npezzotti/go-chatsync/internal/database"
	"github.com/npezzotti/go-chatsync/internal/server"
	"github.com/npezzotti/go-chatsync/internal/stats"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

var (
	addr             string
	dsn              string
	signingKey       string
	allowedOrigins   config.StringSlice
	heartbeatTimeout time.Duration
	retryAttempts    int
	messageRate      float64
	messageBurst     int
	configFile       string
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable", "database connection string")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.DurationVar(&heartbeatTimeout, "heartbeat-timeout", config.DefaultHeartbeatTimeout, "time without a heartbeat before a session is considered offline")
	flag.IntVar(&retryAttempts, "retry-attempts", config.DefaultRetryAttempts, "attempts for storage operations that fail transiently")
	flag.Float64Var(&messageRate, "message-rate", config.DefaultMessageRate, "messages per second a session may publish")
	flag.IntVar(&messageBurst, "message-burst", config.DefaultMessageBurst, "burst of messages a session may publish")
	flag.StringVar(&configFile, "config", "", "path to a YAML config file")
	flag.Parse()

	logger := log.New(os.Stderr, "[go-chatsync] ", log.LstdFlags)

	if err := config.Load(flag.CommandLine, configFile); err != nil {
		logger.Fatal("config:", err)
	}

	cfg, err := config.NewConfig(config.Params{
		ServerAddr:       addr,
		DatabaseDSN:      dsn,
		SigningSecret:    signingKey,
		AllowedOrigins:   allowedOrigins,
		HeartbeatTimeout: heartbeatTimeout,
		RetryAttempts:    retryAttempts,
		MessageRate:      messageRate,
		MessageBurst:     messageBurst,
	})
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgGoChatRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Println("db close:", err)
		}
	}()

	if err := dbConn.Migrate(); err != nil {
		logger.Fatal("db migrate:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)
	statsUpdater.Run()
	defer statsUpdater.Stop()

	chatServer := server.NewChatServer(logger, statsUpdater, server.Options{
		PongWait:     cfg.HeartbeatTimeout,
		MessageRate:  cfg.MessageRate,
		MessageBurst: cfg.MessageBurst,
	})

	svc := chat.NewService(logger, dbConn, chatServer, statsUpdater, chat.Options{
		HeartbeatTimeout: cfg.HeartbeatTimeout,
		RetryAttempts:    cfg.RetryAttempts,
	})
	svc.Start()
	defer svc.Stop()

	go chatServer.Run()

	srv := api.NewGoChatApp(mux, logger, chatServer, svc, dbConn, cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Println("HTTP server shutdown:", err)
	}

	logger.Println("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Println("chat server shutdown:", err)
	}

	logger.Println("shutdown complete")
}

package main

import (
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"heritagebites/internal/account"
	"heritagebites/internal/auth"
	"heritagebites/internal/clock"
	"heritagebites/internal/config"
	"heritagebites/internal/database"
	"heritagebites/internal/email"
	"heritagebites/internal/logging"
	"heritagebites/internal/redisx"
	"heritagebites/internal/reset"
	"heritagebites/internal/server"
)

const logMaxSizeBytes = 10 << 20

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logOutput := io.Writer(os.Stdout)
	if cfg.LogFile != "" {
		fw, err := logging.NewRotatingFileWriter(cfg.LogFile, logMaxSizeBytes, 3)
		if err != nil {
			log.Fatalf("log setup error: %v", err)
		}
		defer fw.Close()
		logOutput = io.MultiWriter(os.Stdout, fw)
	}
	log.SetOutput(logOutput)
	log.SetFlags(log.LstdFlags | log.LUTC | log.Lshortfile)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database error: %v", err)
	}
	defer db.Close()

	redisClient, err := redisx.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis error: %v", err)
	}
	defer redisClient.Close()

	accounts := account.NewRepository(db)
	rateLimiter := &auth.RateLimiter{Redis: redisClient}
	dispatcher := email.NewDispatcher(email.NewSender(cfg.Email))
	hasher := auth.NewBcryptHasher()

	svc := reset.NewService(accounts, dispatcher, hasher, clock.SystemClock{}, cfg.AppName)
	api := server.NewServer(cfg, svc, rateLimiter)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Printf("Listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

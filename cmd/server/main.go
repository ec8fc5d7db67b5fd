// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/speedbingo/bingo-service/internal/auth"
	"github.com/speedbingo/bingo-service/internal/cache"
	"github.com/speedbingo/bingo-service/internal/database"
	"github.com/speedbingo/bingo-service/internal/handlers"
	"github.com/speedbingo/bingo-service/internal/middleware"
	"github.com/speedbingo/bingo-service/internal/room"
)

func main() {
	if priv, pub := os.Getenv("JWT_PRIVATE_KEY_PATH"), os.Getenv("JWT_PUBLIC_KEY_PATH"); priv != "" && pub != "" {
		if err := auth.InitFromPath(priv, pub); err != nil {
			log.Fatalf("failed to load signing keys: %v", err)
		}
	} else {
		auth.Init()
	}
	database.ConnectDB()
	if err := cache.ConnectRedis(); err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	if os.Getenv("LOG_LEVEL") == "debug" {
		logger.SetLevel(logrus.DebugLevel)
	}

	reg := room.NewRegistry(logger)

	mux := http.NewServeMux()
	mux.Handle("/rooms", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.CreateRoomHandler(logger, reg),
	)))
	mux.Handle("/rooms/", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.RoomRouter(logger, reg),
	)))
	mux.Handle("/games/", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.VariantsHandler(logger),
	)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

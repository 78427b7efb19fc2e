package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"techrepair-server/internal/auth"
	"techrepair-server/internal/config"
	"techrepair-server/internal/server"
	"techrepair-server/internal/store"
)

func main() {
	// Missing .env is fine; the system environment takes over.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "techrepair-server").
		Logger()

	gin.SetMode(cfg.GinMode)
	st := store.New()

	tokenCfg := auth.TokenConfig{
		Secret: cfg.MasterSecret,
		Expiry: cfg.TokenExpiry,
		Issuer: "techrepair-server",
	}

	router := server.NewRouter(server.Deps{
		Store:       st,
		TokenConfig: tokenCfg,
		Log:         logger,
		SessionTTL:  cfg.SessionTTL,
	})

	logger.Info().Str("addr", fmt.Sprintf(":%d", cfg.Port)).Msg("listening")
	if err := server.Run(cfg, router); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

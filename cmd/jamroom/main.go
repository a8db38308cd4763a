package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"jamroom/config"
	"jamroom/internal/handlers"
	"jamroom/internal/middleware"
	"jamroom/internal/registry"
	"jamroom/internal/relay"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The registry is owned by the relay loop; nothing else touches it.
	reg := registry.New()
	rly := relay.New(reg)
	go rly.Run(ctx)

	router := gin.Default()
	router.Use(handlers.OriginFilter(cfg.AllowedOrigins))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Operator API.
	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/auth/login", handlers.Login(cfg))
		apiGroup.GET("/rooms", middleware.JWTAuth(cfg.JWTSecret), handlers.ListRooms(rly))
		apiGroup.GET("/rooms/:roomId", middleware.JWTAuth(cfg.JWTSecret), handlers.GetRoom(rly))
		apiGroup.DELETE("/rooms/:roomId", middleware.JWTAuth(cfg.JWTSecret), handlers.CloseRoom(rly))
	}

	// Participant transport.
	router.GET("/ws", handlers.ServeWS(rly))

	// Client delivery: a fresh room on the bare domain, the same
	// document for any room path.
	router.Static("/static", cfg.StaticDir)
	router.GET("/", handlers.RootRedirect())
	router.GET("/:roomId", handlers.RoomPage(cfg.StaticDir))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("module", "main").Str("port", cfg.Port).Msg("starting jamroom server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Str("module", "main").Msg("server stopped")
}

// Command server runs the messages REST API.
//
// @title                      Go Messages REST API
// @version                    1.0
// @description                Threads and messages with search, date ordering and pagination.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                Type "Bearer" followed by a space and the JWT returned by /login.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-messages-api/internal/auth"
	"github.com/tbourn/go-messages-api/internal/config"
	httpapi "github.com/tbourn/go-messages-api/internal/http"
	"github.com/tbourn/go-messages-api/internal/observability"
	"github.com/tbourn/go-messages-api/internal/services"
	"github.com/tbourn/go-messages-api/internal/sysutil"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// "server hash-password" reads a password on stdin and prints the bcrypt
	// hash for AUTH_PASSWORD_HASH.
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := hashPassword(os.Stdin, os.Stdout); err != nil {
			log.Fatal().Err(err).Msg("hash-password")
		}
		return
	}

	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	sysutil.SetLogLevel(cfg.LogLevel)
	logger := sysutil.NewLogger(os.Stdout, cfg.LogPretty, cfg.OTEL.ServiceName)
	log.Logger = logger
	zerolog.DefaultContextLogger = &logger

	if err := run(cfg, sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg config.Config, ver string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.Setup(ctx, cfg.OTEL, observability.Info{Version: ver, Backend: cfg.Store.Backend})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	threadSvc := services.NewThreadService(st.threads, st.messages)
	msgSvc := services.NewMessageService(st.messages, st.threads)
	msgSvc.MaxTextRunes = cfg.MaxTextRunes

	deps := httpapi.Deps{
		Threads:  threadSvc,
		Messages: msgSvc,
		Pingers:  st.pingers(),
	}
	if cfg.Auth.Enabled {
		deps.Auth, err = auth.New(auth.Options{
			Username:     cfg.Auth.Username,
			PasswordHash: cfg.Auth.PasswordHash,
			Secret:       []byte(cfg.Auth.JWTSecret),
			TTL:          cfg.Auth.TokenTTL,
		})
		if err != nil {
			return err
		}
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, deps, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", ver).
			Str("store", cfg.Store.Backend).
			Bool("auth", cfg.Auth.Enabled).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

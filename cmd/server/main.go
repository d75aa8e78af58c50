package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-token-exchange/auth"
	clientrepofakes "github.com/jrsteele09/go-token-exchange/clients/repofakes"
	"github.com/jrsteele09/go-token-exchange/codes"
	"github.com/jrsteele09/go-token-exchange/consent"
	"github.com/jrsteele09/go-token-exchange/federation"
	"github.com/jrsteele09/go-token-exchange/federation/sssd"
	"github.com/jrsteele09/go-token-exchange/internal/config"
	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
	realmrepofakes "github.com/jrsteele09/go-token-exchange/realms/repofakes"
	"github.com/jrsteele09/go-token-exchange/server"
	sessionrepofakes "github.com/jrsteele09/go-token-exchange/sessions/repofakes"
	"github.com/jrsteele09/go-token-exchange/token"
	userrepofakes "github.com/jrsteele09/go-token-exchange/users/repofakes"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file loaded")
	}
	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	configureLogging(c)
	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, closeRepos, err := buildRepos(ctx, c)
	if err != nil {
		return err
	}
	defer closeRepos()

	tokens := token.New()
	options := []auth.AuthorizationServiceOption{auth.WithBaseURL(c.GetBaseURL())}
	if c.GetSSSDEnabled() {
		directory := sssd.NewDirectory(repos.Users, sssd.SystemBus)
		defer directory.Close()
		options = append(options, auth.WithUserDirectory(federation.Chain{federation.NewRepoDirectory(repos.Users), directory}))
		log.Info().Msg("sssd user federation enabled")
	}
	authService, err := auth.NewAuthorizationService(repos, tokens, options...)
	if err != nil {
		return pkgerrors.Wrap(err, "[run] authorization service")
	}

	if _, err := server.Bootstrap(c, repos, tokens); err != nil {
		return pkgerrors.Wrap(err, "[run] bootstrap")
	}
	if err := server.ValidateMappers(repos); err != nil {
		if apperrors.IsKind(err, apperrors.KindConfig) {
			log.Fatal().Err(err).Msg("invalid protocol mapper configuration")
		}
		return err
	}

	handler, err := server.New(c, authService)
	if err != nil {
		return pkgerrors.Wrap(err, "[run] server")
	}
	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return listenAndServe(httpServer) })
	g.Go(func() error {
		sweep(gctx, c.GetSweepInterval(), repos, tokens)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(httpServer)
	})
	return g.Wait()
}

func configureLogging(c config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if c.IsDev() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// buildRepos keeps realms, clients, users and sessions in memory. Codes go to Redis and
// consents to Postgres when those are configured.
func buildRepos(ctx context.Context, c config.Config) (auth.Repos, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	repos := auth.Repos{
		Realms:    realmrepofakes.NewFakeRealmRepo(),
		Clients:   clientrepofakes.NewFakeClientRepo(),
		Templates: clientrepofakes.NewFakeTemplateRepo(),
		Users:     userrepofakes.NewFakeUserRepo(),
		Sessions:  sessionrepofakes.NewFakeSessionRepo(),
	}

	if addr := c.GetRedisAddr(); addr != "" {
		store, err := codes.NewRedisStore(ctx, codes.RedisConfig{
			Addr:     addr,
			Password: c.GetRedisPassword(),
			DB:       c.GetRedisDB(),
		})
		if err != nil {
			return auth.Repos{}, closeAll, pkgerrors.Wrap(err, "[buildRepos] redis")
		}
		closers = append(closers, func() { _ = store.Close() })
		repos.Codes = store
		log.Info().Str("addr", addr).Msg("authorization codes stored in redis")
	} else {
		repos.Codes = codes.NewMemoryStore()
	}

	if url := c.GetDatabaseURL(); url != "" {
		pool, err := consent.Connect(ctx, url)
		if err != nil {
			closeAll()
			return auth.Repos{}, func() {}, pkgerrors.Wrap(err, "[buildRepos] postgres")
		}
		closers = append(closers, pool.Close)
		store := consent.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			closeAll()
			return auth.Repos{}, func() {}, pkgerrors.Wrap(err, "[buildRepos] consent schema")
		}
		repos.Consents = store
		log.Info().Msg("consents stored in postgres")
	} else {
		repos.Consents = consent.NewMemoryStore()
	}
	return repos, closeAll, nil
}

// sweep removes expired codes, sessions and revoked token ids until ctx is done.
func sweep(ctx context.Context, interval time.Duration, repos auth.Repos, tokens *token.Manager) {
	if interval <= 0 {
		log.Warn().Msg("sweeper disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			expiredCodes, err := repos.Codes.Sweep(ctx)
			if err != nil {
				log.Err(err).Msg("code sweep failed")
			}
			expiredSessions, err := repos.Sessions.DeleteExpired(now)
			if err != nil {
				log.Err(err).Msg("session sweep failed")
			}
			revoked := tokens.CleanupRevokedTokens()
			log.Debug().
				Int("codes", expiredCodes).
				Int("sessions", expiredSessions).
				Int("revoked_tokens", revoked).
				Msg("sweep complete")
		}
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

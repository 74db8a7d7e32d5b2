package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	intconfig "travelapp/internal/config"
	intdb "travelapp/internal/db"
	"travelapp/internal/gateway"
	router "travelapp/internal/http"
	"travelapp/internal/http/handlers"
	"travelapp/internal/notifications"
	"travelapp/internal/ratelimit"
	"travelapp/internal/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

func main() {
	env := intconfig.LoadEnv()
	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}
	utils.ConfigureLogger(env.LogLevel, env.GinMode == gin.ReleaseMode)

	if err := env.Validate(); err != nil {
		utils.Log.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := intconfig.ConnectDB(env.DatabaseDSN)
	if err != nil {
		utils.Log.WithError(err).Fatal("database connection failed")
	}
	defer intconfig.CloseDB()

	if err := intdb.EnsureSchema(ctx, db); err != nil {
		utils.Log.WithError(err).Fatal("schema migration failed")
	}

	g, gctx := errgroup.WithContext(ctx)

	limiter, err := newLimiter(gctx, env, g)
	if err != nil {
		utils.Log.WithError(err).Fatal("rate limiter setup failed")
	}

	mailer := notifications.NewMailer(env.SMTP)
	if env.EmailAsync {
		queue, err := notifications.StartEmailQueue(gctx, g, mailer, notifications.NewLogrusAdapter(utils.Log))
		if err != nil {
			utils.Log.WithError(err).Fatal("email queue setup failed")
		}
		mailer = queue
	}

	a := handlers.API{
		Env:     env,
		DB:      db,
		Tx:      intdb.NewTxManager(db),
		Gateway: gateway.NewRevolutClient(env.Revolut.APIKey, env.Revolut.Sandbox, env.Revolut.Timeout),
		Notifier: notifications.Notifier{
			Mailer: mailer,
			From:   notifications.FromHeader(env.SMTP.FromName, env.SMTP.FromAddress),
		},
	}

	srv := &http.Server{
		Addr:              env.AppAddr,
		Handler:           router.NewRouter(env, a, limiter),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      40 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g.Go(func() error {
		utils.Log.Infof("server listening on %s", env.AppAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		utils.Log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		utils.Log.WithError(err).Error("server stopped with error")
		return
	}
	utils.Log.Info("server stopped")
}

// newLimiter prefers redis so limits hold across instances; the in-memory
// limiter is swept in the background.
func newLimiter(ctx context.Context, env intconfig.Env, g *errgroup.Group) (ratelimit.Limiter, error) {
	client, err := intconfig.NewRedis(env)
	if err != nil {
		return nil, err
	}
	if client != nil {
		g.Go(func() error {
			<-ctx.Done()
			return client.Close()
		})
		return ratelimit.NewRedisLimiter(client, "ratelimit", env.RateLimit.Limit, env.RateLimit.Window), nil
	}
	mem := ratelimit.NewMemoryLimiter(env.RateLimit.Limit, env.RateLimit.Window)
	g.Go(func() error {
		mem.Run(ctx, env.RateLimit.Window)
		return nil
	})
	return mem, nil
}

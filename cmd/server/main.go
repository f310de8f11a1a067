// @title           Engagement Service API
// @version         1.0
// @description     Rate limiting, trending scores and engagement endpoints.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/engagement-service/config"
	"github.com/d60-Lab/engagement-service/internal/api"
	"github.com/d60-Lab/engagement-service/internal/api/middleware"
	"github.com/d60-Lab/engagement-service/internal/model"
	"github.com/d60-Lab/engagement-service/pkg/cache"
	"github.com/d60-Lab/engagement-service/pkg/database"
	"github.com/d60-Lab/engagement-service/pkg/logger"
	"github.com/d60-Lab/engagement-service/pkg/tracing"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "engagement",
		Usage: "Engagement service: rate limiting, trending scores and content endpoints",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config/config.yaml",
				Usage:   "Path to the config file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP server and background jobs",
				Action: serve,
			},
			{
				Name:   "trending",
				Usage:  "Recompute engagement scores once and exit",
				Action: trendingOnce,
			},
			{
				Name:   "purge",
				Usage:  "Delete expired action logs once and exit",
				Action: purgeOnce,
			},
			{
				Name:   "migrate",
				Usage:  "Create or update database tables",
				Action: migrate,
			},
			{
				Name:  "token",
				Usage: "Issue a signed user token for local testing",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "User ID"},
					&cli.StringFlag{Name: "role", Value: string(model.RoleNormal), Usage: "normal or admin"},
					&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, Usage: "Token lifetime"},
				},
				Action: issueToken,
			},
		},
	}
	return app.Run(context.Background(), os.Args)
}

// runtime 子命令共用的基础设施
type runtime struct {
	cfg   *config.Config
	db    *gorm.DB
	app   *api.App
	close func()
}

func setup(ctx context.Context, c *cli.Command) (*runtime, error) {
	cfg, err := config.LoadFrom(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	useSentry := cfg.Sentry.DSN != ""
	if useSentry {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Sentry.Environment,
			SampleRate:       cfg.Sentry.SampleRate,
			AttachStacktrace: true,
		}); err != nil {
			return nil, fmt.Errorf("init sentry: %w", err)
		}
	}
	if err := logger.Init(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Sentry: useSentry}); err != nil {
		return nil, err
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	rdb, err := cache.InitRedis(ctx, cfg.Redis)
	if err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("init redis: %w", err)
	}

	rt := &runtime{cfg: cfg, db: db, app: api.NewApp(cfg, db, rdb)}
	rt.close = func() {
		if rdb != nil {
			_ = rdb.Close()
		}
		_ = database.Close(db)
		if useSentry {
			sentry.Flush(2 * time.Second)
		}
		_ = logger.Sync()
	}
	return rt, nil
}

func serve(ctx context.Context, c *cli.Command) error {
	rt, err := setup(ctx, c)
	if err != nil {
		return err
	}
	defer rt.close()

	shutdownTracing, err := tracing.Init(ctx, rt.cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	gin.SetMode(rt.cfg.Server.Mode)
	stopJobs := rt.app.Start(rt.cfg.Trending.Enabled)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", rt.cfg.Server.Port),
		Handler:           rt.app.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	select {
	case <-sigCtx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			_ = stopJobs(context.Background())
			return fmt.Errorf("http server: %w", err)
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Error("http server shutdown", zap.Error(err))
	}
	return stopJobs(sctx)
}

func trendingOnce(ctx context.Context, c *cli.Command) error {
	rt, err := setup(ctx, c)
	if err != nil {
		return err
	}
	defer rt.close()

	res, err := rt.app.Scheduler.RunOnce(ctx)
	if res != nil {
		out, _ := json.Marshal(res)
		fmt.Println(string(out))
	}
	return err
}

func purgeOnce(ctx context.Context, c *cli.Command) error {
	rt, err := setup(ctx, c)
	if err != nil {
		return err
	}
	defer rt.close()

	n, err := rt.app.Purger.PurgeOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("deleted=%d\n", n)
	return nil
}

func migrate(_ context.Context, c *cli.Command) error {
	cfg, err := config.LoadFrom(c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		return err
	}
	fmt.Println("migrated")
	return nil
}

func issueToken(_ context.Context, c *cli.Command) error {
	userID := c.String("user")
	if userID == "" {
		return errors.New("--user is required")
	}
	role := model.Role(c.String("role"))
	if role != model.RoleNormal && role != model.RoleAdmin {
		return fmt.Errorf("unknown role %q", role)
	}
	cfg, err := config.LoadFrom(c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	token, err := middleware.IssueToken(cfg.Server.JWTSecret, userID, role, c.Duration("ttl"))
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

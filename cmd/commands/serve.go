package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	auction "lot-auction/internal/auctionService"
	"lot-auction/internal/auctionerrors"
	"lot-auction/internal/auth"
	"lot-auction/internal/broadcast"
	"lot-auction/internal/config"
	"lot-auction/internal/repository"
	"lot-auction/internal/server"
	"lot-auction/utils"

	"code.cloudfoundry.org/clock"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the auction HTTP server",
	Long: `Run the auction HTTP server.

The registry is seeded from the config file (or the built-in sample lots and
teams) before the server starts accepting requests. With the redis backend
only missing entries are seeded, so sales survive a restart.

Examples:
  # In-memory registry on the default port
  lot-auction serve

  # Redis registry from a config file
  lot-auction serve --config auction.yaml --port 9090`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "Port to listen on (overrides config and PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if servePort != "" {
		if _, err := strconv.Atoi(servePort); err != nil {
			return fmt.Errorf("invalid --port %q: %w", servePort, err)
		}
		cfg.Server.Port = servePort
	}
	if err := utils.SetLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, clock.NewClock())
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: app.router,
	}
	// SSE streams end when the channel closes, otherwise Shutdown would wait on them
	srv.RegisterOnShutdown(app.events.Close)

	errCh := make(chan error, 1)
	go func() {
		utils.Info("Starting auction server", map[string]any{"addr": srv.Addr, "store": cfg.Store.Backend})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	utils.Info("Shutting down auction server", map[string]any{"timeout": cfg.Server.ShutdownTimeout.String()})
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := app.manager.Shutdown(shutdownCtx); err != nil {
		utils.Warn("Auction shutdown incomplete", map[string]any{"error": err.Error()})
	}
	return nil
}

// application is the wired auction server
type application struct {
	registry repository.LotRegistry
	events   *broadcast.Broadcaster
	manager  *auction.Manager
	router   *gin.Engine
	closers  []func() error
}

// newApplication builds the registry, broadcaster, engine and router from cfg
// and seeds the registry.
func newApplication(ctx context.Context, cfg *config.Config, clk clock.Clock) (*application, error) {
	app := &application{}

	var sinks []broadcast.Sink
	switch cfg.Store.Backend {
	case config.StoreRedis:
		opts, err := redis.ParseURL(cfg.Store.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		app.closers = append(app.closers, rdb.Close)

		repo, err := repository.NewRedisRepo(rdb, cfg.Store.Namespace)
		if err != nil {
			app.Close()
			return nil, err
		}
		if err := repo.Ping(ctx); err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		if err := seedRedis(ctx, repo, cfg.Seed); err != nil {
			app.Close()
			return nil, err
		}

		sink, err := broadcast.NewRedisSink(rdb, cfg.Store.EventsChannel)
		if err != nil {
			app.Close()
			return nil, err
		}
		sinks = append(sinks, sink)
		app.registry = repo
	default:
		repo := repository.NewMemoryRepo()
		seedMemory(repo, cfg.Seed)
		app.registry = repo
	}

	events, err := broadcast.New(clk, cfg.Auction.SinkWorkers, sinks...)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create broadcaster: %w", err)
	}
	app.events = events

	app.manager = auction.NewManager(app.registry, events, clk, cfg.Auction.Rules())
	app.router = server.SetupRouter(server.Dependencies{
		Service:          app.manager,
		Events:           events,
		Resolver:         auth.NewHeaderResolver(app.registry),
		StoreName:        cfg.Store.Backend,
		SubscriberBuffer: cfg.Auction.SubscriberBuffer,
	})

	utils.Info("Registry seeded", map[string]any{
		"store":         cfg.Store.Backend,
		"lots":          len(cfg.Seed.Lots),
		"organizations": len(cfg.Seed.Organizations),
	})
	return app, nil
}

// Close stops the broadcaster and releases store connections
func (a *application) Close() {
	if a.events != nil {
		a.events.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			utils.Warn("Failed to release resource", map[string]any{"error": err.Error()})
		}
	}
	a.closers = nil
}

// seedMemory adds the seed lots and organizations to the in-memory repo
func seedMemory(repo *repository.MemoryRepo, seed config.SeedConfig) {
	for _, lot := range seed.Lots {
		repo.AddLot(lot)
	}
	for _, org := range seed.Organizations {
		repo.AddOrganization(org)
	}
}

// seedRedis adds seed entries that are not in Redis yet
func seedRedis(ctx context.Context, repo *repository.RedisRepo, seed config.SeedConfig) error {
	for _, lot := range seed.Lots {
		_, err := repo.GetLot(ctx, lot.LotID)
		switch {
		case err == nil:
			continue
		case !errors.Is(err, auctionerrors.ErrNotFound):
			return fmt.Errorf("failed to check seed lot %s: %w", lot.LotID, err)
		}
		if err := repo.AddLot(ctx, lot); err != nil {
			return err
		}
	}
	for _, org := range seed.Organizations {
		_, err := repo.GetOrganization(ctx, org.OrganizationID)
		switch {
		case err == nil:
			continue
		case !errors.Is(err, auctionerrors.ErrNotFound):
			return fmt.Errorf("failed to check seed organization %s: %w", org.OrganizationID, err)
		}
		if err := repo.AddOrganization(ctx, org); err != nil {
			return err
		}
	}
	return nil
}

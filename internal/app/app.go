// Package app wires configuration, logging, storage, the task scheduler,
// and the HTTP server into one runnable unit.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/cameronopotter/cameron-personal-site-sub001/internal/cache"
	"github.com/cameronopotter/cameron-personal-site-sub001/internal/config"
	"github.com/cameronopotter/cameron-personal-site-sub001/internal/eventbus"
	"github.com/cameronopotter/cameron-personal-site-sub001/internal/jobs"
	"github.com/cameronopotter/cameron-personal-site-sub001/internal/server"
	"github.com/cameronopotter/cameron-personal-site-sub001/internal/stats"
	"github.com/cameronopotter/cameron-personal-site-sub001/internal/storage"
	"github.com/cameronopotter/cameron-personal-site-sub001/internal/tasks"
	logx "github.com/cameronopotter/cameron-personal-site-sub001/pkg/logx"
)

// Default recurrence intervals, overridable via background.intervals.
const (
	defaultGrowthInterval  = 30 * time.Minute
	defaultWeatherInterval = 15 * time.Minute
	defaultGitHubInterval  = time.Hour
)

// The initial garden, planted on first start against an empty database.
var starterPlants = []storage.Plant{
	{Name: "Monstera", Species: "Monstera deliciosa"},
	{Name: "Snake Plant", Species: "Dracaena trifasciata"},
	{Name: "Pothos", Species: "Epipremnum aureum"},
}

type App struct {
	cfg     *config.Config
	cfgMgr  *config.Manager
	logSvc  *logx.Service
	log     logx.Logger
	store   storage.Store
	cache   *cache.Cache
	bus     eventbus.Bus
	stats   *stats.Collector
	manager *tasks.Manager
	server  *server.Server

	stopTimeout time.Duration

	watchCancel context.CancelFunc
}

// New loads configuration from path and builds every component. Nothing
// starts running until Start.
func New(path string) (*App, error) {
	boot := logx.NewConsole("info")
	cfgMgr := config.NewManager(path, boot)
	cfg, err := cfgMgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	a := &App{
		cfg:    cfg,
		cfgMgr: cfgMgr,
		logSvc: logSvc,
		log:    log,
		bus:    eventbus.New(),
		stats:  stats.NewCollector(),
	}
	if err := a.build(); err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build() error {
	cfg := a.cfg

	if cfg.Storage != nil {
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
		if err != nil {
			return err
		}
		st, err := storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, a.log.With(logx.String("component", "storage")))
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		a.store = st
	}

	cacheTTL := 5 * time.Minute
	if cfg.Cache != nil {
		ttl, err := config.ParseDurationOrDefault("cache.default_ttl", cfg.Cache.DefaultTTL, cacheTTL)
		if err != nil {
			return err
		}
		cacheTTL = ttl
	}
	a.cache = cache.New(cacheTTL)

	taskCfg, err := backgroundConfig(cfg.Background)
	if err != nil {
		return err
	}
	a.stopTimeout = taskCfg.StopTimeout
	if a.stopTimeout <= 0 {
		a.stopTimeout = 10 * time.Second
	}
	a.manager = tasks.NewManager(taskCfg, a.bus, a.log.With(logx.String("component", "tasks")))

	if err := a.registerJobs(); err != nil {
		return err
	}

	srvCfg, err := serverConfig(cfg.Server)
	if err != nil {
		return err
	}
	a.server = server.New(srvCfg, a.manager, a.stats, a.store, a.cache,
		a.log.With(logx.String("component", "server")))
	return nil
}

func backgroundConfig(bg config.BackgroundConfig) (tasks.Config, error) {
	poll, err := config.ParseDurationOrDefault("background.poll_interval", bg.PollInterval, 0)
	if err != nil {
		return tasks.Config{}, err
	}
	backoff, err := config.ParseDurationOrDefault("background.error_backoff", bg.ErrorBackoff, 0)
	if err != nil {
		return tasks.Config{}, err
	}
	stop, err := config.ParseDurationOrDefault("background.stop_timeout", bg.StopTimeout, 0)
	if err != nil {
		return tasks.Config{}, err
	}
	// Zero fields fall back to the manager's own defaults.
	return tasks.Config{
		Enabled:      bg.Enabled,
		PollInterval: poll,
		ErrorBackoff: backoff,
		StopTimeout:  stop,
	}, nil
}

func serverConfig(sc config.ServerConfig) (server.Config, error) {
	read, err := config.ParseDurationOrDefault("server.read_timeout", sc.ReadTimeout, 10*time.Second)
	if err != nil {
		return server.Config{}, err
	}
	write, err := config.ParseDurationOrDefault("server.write_timeout", sc.WriteTimeout, 30*time.Second)
	if err != nil {
		return server.Config{}, err
	}
	idle, err := config.ParseDurationOrDefault("server.idle_timeout", sc.IdleTimeout, time.Minute)
	if err != nil {
		return server.Config{}, err
	}
	return server.Config{
		Enabled:      sc.Enabled,
		Addr:         sc.Addr,
		Token:        sc.Token,
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
		Debug:        sc.Debug,
	}, nil
}

func (a *App) registerJobs() error {
	intervals := a.cfg.Background.Intervals
	interval := func(name string, def time.Duration) (time.Duration, error) {
		return config.ParseDurationOrDefault("background.intervals."+name, intervals[name], def)
	}

	growthEvery, err := interval("garden_growth", defaultGrowthInterval)
	if err != nil {
		return err
	}
	growth := jobs.NewGrowth(a.store, a.log.With(logx.String("job", "garden_growth")))
	if err := a.manager.Register("garden_growth", growthEvery, growth.Body()); err != nil {
		return err
	}

	weatherEvery, err := interval("weather", defaultWeatherInterval)
	if err != nil {
		return err
	}
	weather := jobs.NewWeather(a.store, a.cache, weatherEvery,
		a.log.With(logx.String("job", "weather")))
	if err := a.manager.Register("weather", weatherEvery, weather.Body()); err != nil {
		return err
	}

	githubEvery, err := interval("github_sync", defaultGitHubInterval)
	if err != nil {
		return err
	}
	ghCfg := jobs.GitHubConfig{}
	if g := a.cfg.GitHub; g != nil {
		timeout, err := config.ParseDurationOrDefault("github.timeout", g.Timeout, 0)
		if err != nil {
			return err
		}
		ghCfg = jobs.GitHubConfig{
			Username:   g.Username,
			Token:      g.Token,
			Timeout:    timeout,
			RatePerSec: g.RatePerSec,
		}
	}
	gh := jobs.NewGitHubSync(ghCfg, a.store, a.log.With(logx.String("job", "github_sync")))
	return a.manager.Register("github_sync", githubEvery, gh.Body())
}

// Start brings the components up: seeds the garden, starts the stats
// collector, the scheduler loop, the HTTP server, and the config watcher.
func (a *App) Start(ctx context.Context) error {
	if a.store != nil {
		seed := make([]storage.Plant, len(starterPlants))
		copy(seed, starterPlants)
		now := time.Now()
		for i := range seed {
			seed[i].PlantedAt = now
		}
		if n, err := a.store.SeedPlants(ctx, seed); err != nil {
			return fmt.Errorf("seed plants: %w", err)
		} else if n > 0 {
			a.log.Info("garden seeded", logx.Int("plants", n))
		}
	}

	a.stats.Start(ctx, a.bus)

	if err := a.manager.Start(ctx); err != nil {
		return err
	}
	if err := a.server.Start(); err != nil {
		a.manager.Stop(ctx)
		return err
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	a.watchCancel = cancel
	go func() {
		// Watch blocks until the watch context is cancelled in Stop.
		if err := a.cfgMgr.Watch(watchCtx, a.onConfigChange); err != nil {
			a.log.Warn("config watch unavailable", logx.Err(err))
		}
	}()

	a.log.Info("app started")
	return nil
}

// onConfigChange re-applies the logging section. Everything else needs a
// restart; log what is being ignored so operators are not surprised.
func (a *App) onConfigChange(cfg *config.Config) {
	a.logSvc.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	a.log.Info("config reloaded; logging re-applied, other sections need a restart")
}

// Stop shuts the components down in reverse start order. The scheduler gets
// its configured bounded stop; ctx bounds the whole teardown.
func (a *App) Stop(ctx context.Context) {
	if a.watchCancel != nil {
		a.watchCancel()
	}

	a.server.Stop(ctx)
	a.manager.Stop(ctx)
	a.stats.Stop()

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}

	a.log.Info("app stopped")
	_ = a.logSvc.Close()
}

// StopTimeout reports how long Stop may need for the scheduler alone.
func (a *App) StopTimeout() time.Duration { return a.stopTimeout }

// Manager exposes the task manager, mainly for tests.
func (a *App) Manager() *tasks.Manager { return a.manager }

// ServerAddr reports the HTTP listen address, or "" when disabled.
func (a *App) ServerAddr() string { return a.server.Addr() }

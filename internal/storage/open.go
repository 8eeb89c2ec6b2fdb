// Package storage is the persistence layer job bodies and read endpoints use.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "github.com/cameronopotter/cameron-personal-site-sub001/pkg/logx"
)

// Store is the minimal persistence API used by jobs and the HTTP layer.
type Store interface {
	ListPlants(ctx context.Context) ([]Plant, error)
	SeedPlants(ctx context.Context, plants []Plant) (int, error)
	UpdatePlantGrowth(ctx context.Context, id int64, stage int, at time.Time) error

	AppendWeather(ctx context.Context, w WeatherSnapshot) error
	LatestWeather(ctx context.Context) (WeatherSnapshot, bool, error)

	UpsertProject(ctx context.Context, p Project) error
	ListProjects(ctx context.Context) ([]Project, error)

	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Plant is one garden plant row. GrowthStage runs 0..4
// (seed, sprout, growing, budding, blooming).
type Plant struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Species      string     `json:"species,omitempty"`
	PlantedAt    time.Time  `json:"planted_at"`
	GrowthStage  int        `json:"growth_stage"`
	LastGrowthAt *time.Time `json:"last_growth_at,omitempty"`
}

// WeatherSnapshot is one simulated weather observation.
type WeatherSnapshot struct {
	ID           int64     `json:"id"`
	At           time.Time `json:"at"`
	Season       string    `json:"season"`
	Condition    string    `json:"condition"`
	TemperatureC float64   `json:"temperature_c"`
}

// Project is one synced external repository, keyed by name (latest-wins).
type Project struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Language    string     `json:"language,omitempty"`
	Stars       int        `json:"stars"`
	PushedAt    *time.Time `json:"pushed_at,omitempty"`
	SyncedAt    time.Time  `json:"synced_at"`
}

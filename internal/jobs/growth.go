package jobs

import (
	"context"
	"time"

	"github.com/cameronopotter/cameron-personal-site-sub001/internal/storage"
	"github.com/cameronopotter/cameron-personal-site-sub001/internal/tasks"
	logx "github.com/cameronopotter/cameron-personal-site-sub001/pkg/logx"
)

// Growth stage thresholds in days of effective age.
// Stages: 0 seed, 1 sprout, 2 growing, 3 budding, 4 blooming.
var growthThresholdsDays = [...]float64{0, 7, 21, 45, 80}

const maxGrowthStage = len(growthThresholdsDays) - 1

// Growth advances each plant at most one stage per run, based on its age and
// the latest simulated weather.
type Growth struct {
	store storage.Store
	log   logx.Logger
}

func NewGrowth(store storage.Store, log logx.Logger) *Growth {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Growth{store: store, log: log}
}

func (g *Growth) Body() tasks.Body { return g.run }

func (g *Growth) run(ctx context.Context) (any, error) {
	if g.store == nil {
		return nil, storage.ErrDisabled
	}

	plants, err := g.store.ListPlants(ctx)
	if err != nil {
		return nil, err
	}

	// Weather is a growth modifier, not a requirement; a missing snapshot
	// just means neutral conditions.
	boost := 1.0
	if w, ok, err := g.store.LatestWeather(ctx); err == nil && ok {
		boost = growthBoost(w.Condition)
	}

	now := time.Now()
	updated := 0
	for _, p := range plants {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		target := stageFor(now.Sub(p.PlantedAt), boost)
		if target <= p.GrowthStage {
			continue
		}
		next := p.GrowthStage + 1
		if err := g.store.UpdatePlantGrowth(ctx, p.ID, next, now); err != nil {
			return nil, err
		}
		g.log.Debug("plant advanced",
			logx.Int64("plant_id", p.ID),
			logx.String("name", p.Name),
			logx.Int("stage", next),
		)
		updated++
	}

	return map[string]any{
		"plants_total":   len(plants),
		"plants_updated": updated,
		"weather_boost":  boost,
	}, nil
}

func growthBoost(condition string) float64 {
	switch condition {
	case "sunny":
		return 1.25
	case "rainy":
		return 1.1
	case "stormy":
		return 0.9
	default:
		return 1.0
	}
}

func stageFor(age time.Duration, boost float64) int {
	days := age.Hours() / 24 * boost
	stage := 0
	for i := 1; i <= maxGrowthStage; i++ {
		if days >= growthThresholdsDays[i] {
			stage = i
		}
	}
	return stage
}

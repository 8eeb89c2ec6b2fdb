package jobs

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/cameronopotter/cameron-personal-site-sub001/internal/cache"
	"github.com/cameronopotter/cameron-personal-site-sub001/internal/storage"
	"github.com/cameronopotter/cameron-personal-site-sub001/internal/tasks"
	logx "github.com/cameronopotter/cameron-personal-site-sub001/pkg/logx"
)

// WeatherCacheKey is where the latest simulated state lives in the cache.
const WeatherCacheKey = "weather:current"

type seasonProfile struct {
	baseTempC  float64
	jitterC    float64
	conditions []string
}

var seasonProfiles = map[string]seasonProfile{
	"winter": {baseTempC: 2, jitterC: 6, conditions: []string{"cloudy", "snowy", "sunny", "stormy"}},
	"spring": {baseTempC: 14, jitterC: 7, conditions: []string{"rainy", "sunny", "cloudy"}},
	"summer": {baseTempC: 26, jitterC: 8, conditions: []string{"sunny", "sunny", "cloudy", "stormy"}},
	"autumn": {baseTempC: 12, jitterC: 7, conditions: []string{"cloudy", "rainy", "sunny"}},
}

// Weather simulates a weather state, persists a snapshot, and caches the
// current state for the read path.
type Weather struct {
	store storage.Store
	cache *cache.Cache
	ttl   time.Duration
	log   logx.Logger

	// rng is safe without a lock: the runner never overlaps runs of the
	// same job name.
	rng *rand.Rand
}

func NewWeather(store storage.Store, c *cache.Cache, ttl time.Duration, log logx.Logger) *Weather {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Weather{
		store: store,
		cache: c,
		ttl:   ttl,
		log:   log,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (w *Weather) Body() tasks.Body { return w.run }

func (w *Weather) run(ctx context.Context) (any, error) {
	if w.store == nil {
		return nil, storage.ErrDisabled
	}

	now := time.Now()
	season := seasonFor(now.Month())
	profile := seasonProfiles[season]

	snap := storage.WeatherSnapshot{
		At:           now,
		Season:       season,
		Condition:    profile.conditions[w.rng.Intn(len(profile.conditions))],
		TemperatureC: round1(profile.baseTempC + (w.rng.Float64()*2-1)*profile.jitterC),
	}

	if err := w.store.AppendWeather(ctx, snap); err != nil {
		return nil, err
	}
	if w.cache != nil {
		w.cache.Set(WeatherCacheKey, snap, w.ttl)
	}

	return map[string]any{
		"season":        snap.Season,
		"condition":     snap.Condition,
		"temperature_c": snap.TemperatureC,
	}, nil
}

func seasonFor(m time.Month) string {
	switch m {
	case time.December, time.January, time.February:
		return "winter"
	case time.March, time.April, time.May:
		return "spring"
	case time.June, time.July, time.August:
		return "summer"
	default:
		return "autumn"
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

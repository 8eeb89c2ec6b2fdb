package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/cameronopotter/cameron-personal-site-sub001/internal/cache"
	"github.com/cameronopotter/cameron-personal-site-sub001/internal/storage"
	logx "github.com/cameronopotter/cameron-personal-site-sub001/pkg/logx"
)

func TestWeatherPersistsAndCaches(t *testing.T) {
	st := openTestStore(t)
	c := cache.New(time.Minute)

	w := NewWeather(st, c, time.Minute, logx.Nop())
	res, err := w.run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	summary := res.(map[string]any)
	season := summary["season"].(string)
	profile, ok := seasonProfiles[season]
	if !ok {
		t.Fatalf("unknown season %q", season)
	}
	condition := summary["condition"].(string)
	found := false
	for _, c := range profile.conditions {
		if c == condition {
			found = true
		}
	}
	if !found {
		t.Fatalf("condition %q not in %s profile", condition, season)
	}
	temp := summary["temperature_c"].(float64)
	if temp < profile.baseTempC-profile.jitterC || temp > profile.baseTempC+profile.jitterC {
		t.Fatalf("temperature %v outside %s range", temp, season)
	}

	snap, ok, err := st.LatestWeather(context.Background())
	if err != nil || !ok {
		t.Fatalf("latest weather: ok=%v err=%v", ok, err)
	}
	if snap.Season != season || snap.Condition != condition {
		t.Fatalf("persisted snapshot %+v does not match summary %v", snap, summary)
	}

	cached, ok := c.Get(WeatherCacheKey)
	if !ok {
		t.Fatal("cache miss after run")
	}
	if cached.(storage.WeatherSnapshot).Condition != condition {
		t.Fatalf("cached snapshot %+v does not match summary", cached)
	}
}

func TestWeatherWithoutStore(t *testing.T) {
	w := NewWeather(nil, nil, time.Minute, logx.Nop())
	if _, err := w.run(context.Background()); err == nil {
		t.Fatal("expected error without storage")
	}
}

func TestSeasonFor(t *testing.T) {
	cases := map[time.Month]string{
		time.January: "winter",
		time.April:   "spring",
		time.July:    "summer",
		time.October: "autumn",
	}
	for m, want := range cases {
		if got := seasonFor(m); got != want {
			t.Errorf("seasonFor(%s) = %q, want %q", m, got, want)
		}
	}
}

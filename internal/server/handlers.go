package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cameronopotter/cameron-personal-site-sub001/internal/jobs"
	"github.com/cameronopotter/cameron-personal-site-sub001/internal/stats"
	"github.com/cameronopotter/cameron-personal-site-sub001/internal/storage"
	"github.com/cameronopotter/cameron-personal-site-sub001/internal/tasks"
	logx "github.com/cameronopotter/cameron-personal-site-sub001/pkg/logx"
)

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("response encode failed", logx.Err(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}

func (s *Server) handleTaskTrigger(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	rec, err := s.manager.Trigger(name)
	switch {
	case errors.Is(err, tasks.ErrUnknownJob):
		s.writeError(w, http.StatusNotFound, "unknown task: "+name)
		return
	case errors.Is(err, tasks.ErrStopped):
		s.writeError(w, http.StatusConflict, "scheduler stopped")
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// A still-running record means either this trigger started it or an
	// earlier run is in flight; 202 both ways.
	code := http.StatusOK
	if rec.Status == tasks.StatusRunning {
		code = http.StatusAccepted
	}
	s.writeJSON(w, code, rec)
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	rec, ok := s.manager.Status(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, "no runs recorded for task: "+name)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	type taskView struct {
		Name    string                 `json:"name"`
		Status  string                 `json:"status"`
		LastRun *tasks.ExecutionRecord `json:"last_run,omitempty"`
	}

	statuses := s.manager.AllStatuses()
	out := make([]taskView, 0, len(statuses))
	for _, name := range s.manager.Names() {
		v := taskView{Name: name, Status: string(tasks.StatusPending)}
		if rec, ok := statuses[name]; ok {
			r := rec
			v.Status = string(rec.Status)
			v.LastRun = &r
		}
		out = append(out, v)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	type metrics struct {
		Scheduler tasks.Snapshot                   `json:"scheduler"`
		Counters  map[string]stats.JobCounters     `json:"counters,omitempty"`
		Tasks     map[string]tasks.ExecutionRecord `json:"tasks"`
		Now       time.Time                        `json:"now"`
	}

	m := metrics{
		Scheduler: s.manager.Snapshot(),
		Tasks:     s.manager.AllStatuses(),
		Now:       time.Now(),
	}
	if s.stats != nil {
		m.Counters = s.stats.Snapshot()
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handlePlants(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "storage disabled")
		return
	}
	plants, err := s.store.ListPlants(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, plants)
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "storage disabled")
		return
	}
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, projects)
}

// handleWeather prefers the cached snapshot written by the weather job and
// falls back to the newest persisted row.
func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	if s.cache != nil {
		if v, ok := s.cache.Get(jobs.WeatherCacheKey); ok {
			if snap, ok := v.(storage.WeatherSnapshot); ok {
				s.writeJSON(w, http.StatusOK, snap)
				return
			}
		}
	}
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "storage disabled")
		return
	}
	snap, ok, err := s.store.LatestWeather(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, "no weather recorded yet")
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

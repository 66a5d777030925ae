package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/planetilt/host/internal/persist"
	"go.uber.org/zap"
)

const (
	defaultStatsLimit = 10
	maxStatsLimit     = 100
)

type firerSource interface {
	TopFirers(ctx context.Context, since time.Time, limit int) ([]persist.FirerStat, error)
}

type statsResponse struct {
	Since   time.Time           `json:"since"`
	Firers  []persist.FirerStat `json:"firers"`
	Enabled bool                `json:"enabled"`
}

// statsHandler serves the fire leaderboard since server start. With
// persistence disabled it answers with an empty, disabled board.
func statsHandler(repo *persist.PlaneEventRepo, startUnix int64, log *zap.Logger) http.Handler {
	var src firerSource
	if repo != nil {
		src = repo
	}
	return newStatsHandler(src, time.Unix(startUnix, 0), log)
}

func newStatsHandler(src firerSource, since time.Time, log *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := defaultStatsLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				http.Error(w, "bad limit", http.StatusBadRequest)
				return
			}
			limit = min(n, maxStatsLimit)
		}

		resp := statsResponse{Since: since, Firers: []persist.FirerStat{}}
		if src != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			firers, err := src.TopFirers(ctx, since, limit)
			if err != nil {
				log.Error("stats query failed", zap.Error(err))
				http.Error(w, "stats unavailable", http.StatusServiceUnavailable)
				return
			}
			resp.Enabled = true
			if firers != nil {
				resp.Firers = firers
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Debug("stats write failed", zap.Error(err))
		}
	})
}

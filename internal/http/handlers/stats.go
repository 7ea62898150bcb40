package handlers

import (
	"net/http"
	"strconv"
)

// StatsSummary returns daily donation counters for the admin dashboard.
func (a *App) StatsSummary(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 365 {
			days = n
		}
	}
	summary, err := a.Stats.Summary(r.Context(), days)
	if err != nil {
		a.Logger.Error().Err(err).Msg("load donation stats failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load stats")
		return
	}
	items := make([]map[string]any, 0, len(summary))
	for _, day := range summary {
		items = append(items, map[string]any{
			"day":                day.Day,
			"created":            day.Created,
			"completed":          day.Completed,
			"failed":             day.Failed,
			"completed_npr_cent": day.CompletedNPRCent,
			"completed_usd_cent": day.CompletedUSDCent,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

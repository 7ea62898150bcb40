package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	if a.PingDB != nil {
		if err := a.PingDB(r.Context()); err != nil {
			a.error(w, http.StatusServiceUnavailable, "unhealthy", "database unreachable")
			return
		}
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

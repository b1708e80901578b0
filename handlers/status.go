package handlers

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"nyaadex/services/cache"
	"nyaadex/services/monitor"
)

// StatusHandler serves the operational surface: health, cache statistics,
// manual cache invalidation.
type StatusHandler struct {
	InstanceID string
	StartedAt  time.Time
	Store      cache.Store
	Monitor    *monitor.Service
	Sites      []Searcher
}

func NewStatusHandler(instanceID string, store cache.Store, mon *monitor.Service, sites ...Searcher) *StatusHandler {
	return &StatusHandler{
		InstanceID: instanceID,
		StartedAt:  time.Now(),
		Store:      store,
		Monitor:    mon,
		Sites:      sites,
	}
}

type healthResponse struct {
	Status     string          `json:"status"`
	InstanceID string          `json:"instanceId"`
	UptimeSec  int64           `json:"uptimeSec"`
	Sites      map[string]bool `json:"sites"`
	CheckedAt  time.Time       `json:"checkedAt"`
}

// Health reports per-site health. It answers from the monitor's last
// observation; ?live=1 (or a cold monitor) probes every site now, in
// parallel.
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	sites, checkedAt := h.Monitor.Status()
	if len(sites) == 0 || r.URL.Query().Get("live") == "1" {
		sites = h.probeNow(r)
		checkedAt = time.Now()
	}

	status := "ok"
	for _, ok := range sites {
		if !ok {
			status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     status,
		InstanceID: h.InstanceID,
		UptimeSec:  int64(time.Since(h.StartedAt).Seconds()),
		Sites:      sites,
		CheckedAt:  checkedAt,
	})
}

func (h *StatusHandler) probeNow(r *http.Request) map[string]bool {
	var mu sync.Mutex
	sites := make(map[string]bool, len(h.Sites))

	var wg conc.WaitGroup
	for _, site := range h.Sites {
		site := site
		wg.Go(func() {
			ok := site.CheckHealth(r.Context())
			mu.Lock()
			sites[site.Name()] = ok
			mu.Unlock()
		})
	}
	wg.Wait()
	return sites
}

type cacheStatsResponse struct {
	InstanceID string      `json:"instanceId"`
	Cache      cache.Stats `json:"cache"`
}

func (h *StatusHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, cacheStatsResponse{
		InstanceID: h.InstanceID,
		Cache:      h.Store.Stats(r.Context()),
	})
}

func (h *StatusHandler) CacheClear(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Clear(r.Context()); err != nil {
		log.Printf("[status] cache clear failed: %v", err)
		http.Error(w, "cache clear failed", http.StatusInternalServerError)
		return
	}
	log.Printf("[status] cache cleared")
	w.WriteHeader(http.StatusNoContent)
}

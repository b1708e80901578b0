package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"nyaadex/handlers"
)

// corsMiddleware handles CORS; catalog hosts load addon endpoints from
// arbitrary origins.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Register mounts the addon and operational endpoints onto the router.
func Register(r *mux.Router, catalog *handlers.CatalogHandler, status *handlers.StatusHandler) {
	r.Use(corsMiddleware)

	r.HandleFunc("/manifest.json", catalog.Manifest).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/catalog/{type}/{id}.json", catalog.Catalog).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/catalog/{type}/{id}/{extra}.json", catalog.Catalog).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/stream/{type}/{id}.json", catalog.Stream).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/api/health", status.Health).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/cache/stats", status.CacheStats).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/cache", status.CacheClear).Methods(http.MethodDelete, http.MethodOptions)
}

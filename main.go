package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"gopkg.in/natefinch/lumberjack.v2"

	"nyaadex/api"
	"nyaadex/config"
	"nyaadex/handlers"
	"nyaadex/services/cache"
	"nyaadex/services/monitor"
	"nyaadex/services/scraper"
	"nyaadex/utils/filter"
)

const version = "1.0.0"

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	// Determine config path (env or default)
	configPath := os.Getenv("NYAADEX_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("data", "settings.json")
	}

	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// Set up file logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	instanceID := uuid.NewString()
	log.Printf("nyaadex %s starting (instance %s)", version, instanceID)

	// Cache: in-process tier, with the shared redis tier layered on when
	// configured. An unreachable redis degrades per call, it never blocks
	// startup.
	var store cache.Store = cache.NewMemory(settings.Cache.MaxEntries)
	if settings.Cache.RedisAddr != "" {
		rds := cache.NewRedis(settings.Cache.RedisAddr, settings.Cache.RedisPassword, settings.Cache.RedisDB)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rds.Ping(pingCtx); err != nil {
			log.Printf("[cache] redis at %s unreachable (%v), will keep degrading to the in-process tier", settings.Cache.RedisAddr, err)
		}
		cancel()
		store = cache.NewTiered(rds, store)
	}

	mainFilter, adultFilter := buildFilters(settings.Filtering)
	ttl := settings.Cache.DefaultTTL()

	mainSite := newSite("nyaa", settings.Source.BaseURL, settings.Source, mainFilter, store, ttl)
	sites := []*scraper.Service{mainSite}

	// The adult variant only exists when its URL is configured and the
	// NSFW filter is off; with the filter on, every record it returns
	// would be category-blocked anyway.
	var adultSite *scraper.Service
	if settings.Source.AdultBaseURL != "" && !settings.Filtering.NSFW() {
		adultSite = newSite("sukebei", settings.Source.AdultBaseURL, settings.Source, adultFilter, store, ttl)
		sites = append(sites, adultSite)
	}

	probers := make([]monitor.Prober, len(sites))
	for i, s := range sites {
		probers[i] = s
	}
	healthMonitor := monitor.NewService(settings.Monitor.Interval(), probers...)
	healthMonitor.Start(context.Background())

	catalogHandler := handlers.NewCatalogHandler(mainSite, searcherOrNil(adultSite), settings.Source.MaxPageSize, version)
	statusSites := make([]handlers.Searcher, len(sites))
	for i, s := range sites {
		statusSites[i] = s
	}
	statusHandler := handlers.NewStatusHandler(instanceID, store, healthMonitor, statusSites...)

	router := mux.NewRouter()
	api.Register(router, catalogHandler, statusHandler)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	healthMonitor.Stop(shutdownCtx)
	if err := store.Close(); err != nil {
		log.Printf("cache close: %v", err)
	}
}

// buildFilters compiles the per-variant content filters. Both site variants
// share one numeric category-code namespace, so the NSFW category rule is
// armed only on the adult variant's filter; arming it on the main variant
// would misfire on the main site's identical codes.
func buildFilters(fs config.FilterSettings) (mainFilter, adultFilter *filter.Filter) {
	base := filter.Options{
		ExtraKeywords:     fs.BlockedKeywords,
		BlockedCategories: fs.BlockedCategories,
		TrustedOnly:       fs.TrustedOnly,
	}
	adult := base
	adult.NSFWFilter = fs.NSFW()
	return filter.New(base), filter.New(adult)
}

// newSite assembles the scrape pipeline for one site variant.
func newSite(name, baseURL string, src config.SourceSettings, cf *filter.Filter, store cache.Store, ttl time.Duration) *scraper.Service {
	fetcher := scraper.NewFetcher(baseURL, src.UserAgent, src.RequestTimeout(), src.Throttle(), src.MaxRetries)
	return scraper.New(name, fetcher, cf, store, ttl, src.MaxPageSize)
}

// searcherOrNil avoids handing the handler a typed nil inside a non-nil
// interface value.
func searcherOrNil(s *scraper.Service) handlers.Searcher {
	if s == nil {
		return nil
	}
	return s
}

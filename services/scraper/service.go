package scraper

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"nyaadex/models"
	"nyaadex/services/cache"
	"nyaadex/utils/filter"
)

// searchAttempts is the outer retry budget around the fetcher's own retry
// loop. Worst-case resilience is the product of both layers, so this stays
// at one extra attempt.
const searchAttempts = 2

// sortParams maps sort keys onto the site's "s" parameter. The site has no
// title sort; "title" falls back to the default date ordering.
var sortParams = map[models.SortKey]string{
	models.SortDate:      "id",
	models.SortSize:      "size",
	models.SortSeeders:   "seeders",
	models.SortLeechers:  "leechers",
	models.SortDownloads: "downloads",
	models.SortTitle:     "id",
}

// Service composes fetcher, parser, and content filter into the search
// pipeline for one site variant.
type Service struct {
	name        string
	fetcher     *Fetcher
	filter      *filter.Filter
	store       cache.Store
	ttl         time.Duration
	maxPageSize int
}

// New wires a scraper instance. All collaborators are injected; the
// service holds no process-wide state.
func New(name string, fetcher *Fetcher, cf *filter.Filter, store cache.Store, ttl time.Duration, maxPageSize int) *Service {
	if maxPageSize <= 0 {
		maxPageSize = 75
	}
	return &Service{
		name:        name,
		fetcher:     fetcher,
		filter:      cf,
		store:       store,
		ttl:         ttl,
		maxPageSize: maxPageSize,
	}
}

// Name identifies this site variant in logs and health reports.
func (s *Service) Name() string { return s.name }

// Search runs the scrape-parse-filter pipeline for one query. Identical
// filters and options within the TTL window are served from cache. The
// error, when any, is a single classified user-readable failure.
func (s *Service) Search(ctx context.Context, filters models.SearchFilters, opts models.SearchOptions) (models.SearchResult, error) {
	opts = s.normalizeOptions(opts)
	pageURL := s.buildSearchURL(filters, opts)
	key := cacheKey(s.name, pageURL, filters, opts)

	if cached, ok := cache.GetJSON[models.SearchResult](ctx, s.store, key); ok {
		log.Printf("[scraper] %s: cache hit for %s", s.name, pageURL)
		return cached, nil
	}

	var raw string
	err := retry.Do(
		func() error {
			html, fetchErr := s.fetcher.Fetch(ctx, pageURL)
			if fetchErr != nil {
				return fetchErr
			}
			raw = html
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(searchAttempts),
		retry.Delay(backoffBase),
		retry.MaxDelay(backoffCap),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("[scraper] %s: search attempt %d failed: %v", s.name, n+1, err)
		}),
	)
	if err != nil {
		return models.SearchResult{}, err
	}

	page := ParsePage(raw)
	rowsOnPage := len(page.Records)

	// Filtering sees the full page; truncation to the requested limit
	// happens strictly afterwards.
	records := s.filter.Records(page.Records)
	records = applyQueryFilters(records, filters)

	result := s.buildResult(records, rowsOnPage, page.TotalPages, opts)
	cache.SetJSON(ctx, s.store, key, result, s.ttl)

	log.Printf("[scraper] %s: %d rows, %d after filtering, returning %d (page %d/%d)",
		s.name, rowsOnPage, len(records), len(result.Torrents), result.CurrentPage, result.TotalPages)
	return result, nil
}

// CheckHealth probes the site root. It reports, never fails.
func (s *Service) CheckHealth(ctx context.Context) bool {
	return s.fetcher.Healthy(ctx)
}

func (s *Service) normalizeOptions(opts models.SearchOptions) models.SearchOptions {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 || opts.Limit > s.maxPageSize {
		opts.Limit = s.maxPageSize
	}
	if _, ok := sortParams[opts.Sort]; !ok {
		opts.Sort = models.SortDate
	}
	if opts.Order != models.OrderAsc {
		opts.Order = models.OrderDesc
	}
	return opts
}

// buildSearchURL renders the query deterministically: url.Values encodes
// in sorted key order, so identical inputs always cache identically.
func (s *Service) buildSearchURL(filters models.SearchFilters, opts models.SearchOptions) string {
	params := url.Values{}
	params.Set("q", filters.Query)
	category := filters.Category
	if category == "" {
		category = "0_0"
	}
	params.Set("c", category)
	if filters.TrustedOnly {
		params.Set("f", "2")
	} else {
		params.Set("f", "0")
	}
	params.Set("s", sortParams[opts.Sort])
	params.Set("o", string(opts.Order))
	params.Set("p", strconv.Itoa(opts.Page))
	return s.fetcher.BaseURL() + "/?" + params.Encode()
}

// cacheKey extends the page URL with the client-side filter fields the URL
// does not carry.
func cacheKey(name, pageURL string, filters models.SearchFilters, opts models.SearchOptions) string {
	return fmt.Sprintf("search:%s:%s:q=%s:l=%s:nr=%t:limit=%d",
		name, pageURL,
		strings.ToLower(filters.Quality), strings.ToLower(filters.Language),
		filters.ExcludeRemakes, opts.Limit)
}

// applyQueryFilters narrows records by the per-query heuristic fields.
func applyQueryFilters(records []models.TorrentRecord, filters models.SearchFilters) []models.TorrentRecord {
	if filters.Quality == "" && filters.Language == "" && !filters.TrustedOnly && !filters.ExcludeRemakes {
		return records
	}
	kept := make([]models.TorrentRecord, 0, len(records))
	for _, r := range records {
		if filters.Quality != "" && !strings.EqualFold(r.Quality, filters.Quality) {
			continue
		}
		if filters.Language != "" && !strings.EqualFold(r.Language, filters.Language) {
			continue
		}
		if filters.TrustedOnly && !r.Trusted {
			continue
		}
		if filters.ExcludeRemakes && r.Remake {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

func (s *Service) buildResult(records []models.TorrentRecord, rowsOnPage, totalPages int, opts models.SearchOptions) models.SearchResult {
	if totalPages < 1 {
		totalPages = 1
	}
	totalItems := totalPages * s.maxPageSize
	if rowsOnPage > totalItems {
		totalItems = rowsOnPage
	}
	if len(records) > opts.Limit {
		records = records[:opts.Limit]
	}
	return models.SearchResult{
		Torrents:    records,
		CurrentPage: opts.Page,
		TotalPages:  totalPages,
		TotalItems:  totalItems,
		HasNext:     opts.Page < totalPages,
		HasPrev:     opts.Page > 1,
	}
}

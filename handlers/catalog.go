package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"nyaadex/models"
)

// idPrefix namespaces catalog item ids handed to the host.
const idPrefix = "nyaadex:"

// Searcher is one scraper instance as the catalog surface sees it.
type Searcher interface {
	Name() string
	Search(ctx context.Context, filters models.SearchFilters, opts models.SearchOptions) (models.SearchResult, error)
	CheckHealth(ctx context.Context) bool
}

// CatalogHandler translates pipeline output into the host's catalog
// protocol: manifest, catalog and stream resources.
type CatalogHandler struct {
	Main     Searcher
	Adult    Searcher // nil when the adult variant is disabled
	PageSize int
	Version  string
}

func NewCatalogHandler(main, adult Searcher, pageSize int, version string) *CatalogHandler {
	if pageSize <= 0 {
		pageSize = 75
	}
	return &CatalogHandler{Main: main, Adult: adult, PageSize: pageSize, Version: version}
}

// genreCategories maps catalog genre labels onto site category codes.
var genreCategories = map[string]string{
	"Anime":               "1_0",
	"Anime - English":     "1_2",
	"Anime - Non-English": "1_3",
	"Anime - Raw":         "1_4",
	"Audio":               "2_0",
	"Literature":          "3_0",
	"Live Action":         "4_0",
	"Pictures":            "5_0",
	"Software":            "6_0",
}

var genreNames = []string{
	"Anime", "Anime - English", "Anime - Non-English", "Anime - Raw",
	"Audio", "Literature", "Live Action", "Pictures", "Software",
}

type manifestExtra struct {
	Name    string   `json:"name"`
	Options []string `json:"options,omitempty"`
}

type manifestCatalog struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Extra []manifestExtra `json:"extra"`
}

type manifestDoc struct {
	ID          string            `json:"id"`
	Version     string            `json:"version"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Resources   []string          `json:"resources"`
	Types       []string          `json:"types"`
	IDPrefixes  []string          `json:"idPrefixes"`
	Catalogs    []manifestCatalog `json:"catalogs"`
}

// Manifest serves the addon manifest document.
func (h *CatalogHandler) Manifest(w http.ResponseWriter, r *http.Request) {
	extra := []manifestExtra{
		{Name: "search"},
		{Name: "skip"},
		{Name: "genre", Options: genreNames},
	}
	catalogs := []manifestCatalog{
		{Type: "anime", ID: "nyaadex-main", Name: "Nyaa", Extra: extra},
	}
	if h.Adult != nil {
		catalogs = append(catalogs, manifestCatalog{
			Type: "anime", ID: "nyaadex-adult", Name: "Sukebei", Extra: []manifestExtra{{Name: "search"}, {Name: "skip"}},
		})
	}
	writeJSON(w, http.StatusOK, manifestDoc{
		ID:          "community.nyaadex",
		Version:     h.Version,
		Name:        "nyaadex",
		Description: "Anime torrent catalog scraped live from nyaa.si",
		Resources:   []string{"catalog", "stream"},
		Types:       []string{"anime", "movie", "series", "other"},
		IDPrefixes:  []string{idPrefix},
		Catalogs:    catalogs,
	})
}

type metaPreview struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PosterShape string `json:"posterShape,omitempty"`
}

type catalogResponse struct {
	Metas []metaPreview `json:"metas"`
}

// Catalog serves one catalog page. Pipeline failures degrade to an empty
// catalog here; the pipeline already collapsed them into a single
// user-readable error suited for the log.
func (h *CatalogHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	svc := h.Main
	if vars["id"] == "nyaadex-adult" {
		svc = h.Adult
	}
	if svc == nil {
		writeJSON(w, http.StatusNotFound, catalogResponse{Metas: []metaPreview{}})
		return
	}

	extra := parseExtra(vars["extra"])
	filters := models.SearchFilters{
		Query:    extra.Get("search"),
		Category: genreCategories[extra.Get("genre")],
	}
	opts := models.SearchOptions{Page: 1, Limit: h.PageSize}
	if skip, err := strconv.Atoi(extra.Get("skip")); err == nil && skip > 0 {
		opts.Page = skip/h.PageSize + 1
	}

	result, err := svc.Search(r.Context(), filters, opts)
	if err != nil {
		log.Printf("[catalog] %s search failed: %v", svc.Name(), err)
		writeJSON(w, http.StatusOK, catalogResponse{Metas: []metaPreview{}})
		return
	}

	metas := make([]metaPreview, 0, len(result.Torrents))
	for _, rec := range result.Torrents {
		metas = append(metas, metaPreview{
			ID:          idPrefix + rec.ID,
			Type:        vars["type"],
			Name:        rec.Title,
			Description: describeRecord(rec),
			PosterShape: "landscape",
		})
	}
	writeJSON(w, http.StatusOK, catalogResponse{Metas: metas})
}

// parseExtra decodes the optional extra path segment ("search=x&skip=75").
func parseExtra(raw string) url.Values {
	if raw == "" {
		return url.Values{}
	}
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return url.Values{}
	}
	return values
}

func describeRecord(rec models.TorrentRecord) string {
	parts := []string{}
	if rec.Size != "" {
		parts = append(parts, rec.Size)
	}
	parts = append(parts, fmt.Sprintf("S:%d L:%d", rec.Seeders, rec.Leechers))
	if rec.Category != "" {
		category := rec.Category
		if rec.Subcategory != "" {
			category += " - " + rec.Subcategory
		}
		parts = append(parts, category)
	}
	if rec.PublishedAt != "" {
		parts = append(parts, rec.PublishedAt)
	}
	if rec.Trusted {
		parts = append(parts, "trusted")
	}
	return strings.Join(parts, " | ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[handlers] encode response: %v", err)
	}
}

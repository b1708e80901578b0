package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nyaadex/handlers"
	"nyaadex/models"
)

// stubSearcher records the arguments of the last Search call.
type stubSearcher struct {
	name    string
	result  models.SearchResult
	err     error
	healthy bool
	filters models.SearchFilters
	opts    models.SearchOptions
}

func (s *stubSearcher) Name() string { return s.name }

func (s *stubSearcher) Search(_ context.Context, filters models.SearchFilters, opts models.SearchOptions) (models.SearchResult, error) {
	s.filters = filters
	s.opts = opts
	return s.result, s.err
}

func (s *stubSearcher) CheckHealth(context.Context) bool { return s.healthy }

func catalogRouter(h *handlers.CatalogHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/manifest.json", h.Manifest)
	r.HandleFunc("/catalog/{type}/{id}.json", h.Catalog)
	r.HandleFunc("/catalog/{type}/{id}/{extra}.json", h.Catalog)
	r.HandleFunc("/stream/{type}/{id}.json", h.Stream)
	return r
}

func doJSON(t *testing.T, r http.Handler, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	return rec
}

type manifestDoc struct {
	ID         string   `json:"id"`
	Version    string   `json:"version"`
	Resources  []string `json:"resources"`
	IDPrefixes []string `json:"idPrefixes"`
	Catalogs   []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"catalogs"`
}

func TestManifest(t *testing.T) {
	h := handlers.NewCatalogHandler(&stubSearcher{name: "nyaa"}, nil, 75, "1.2.3")

	var doc manifestDoc
	rec := doJSON(t, catalogRouter(h), "/manifest.json", &doc)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "community.nyaadex", doc.ID)
	assert.Equal(t, "1.2.3", doc.Version)
	assert.ElementsMatch(t, []string{"catalog", "stream"}, doc.Resources)
	assert.Equal(t, []string{"nyaadex:"}, doc.IDPrefixes)
	require.Len(t, doc.Catalogs, 1)
	assert.Equal(t, "nyaadex-main", doc.Catalogs[0].ID)
}

func TestManifestListsAdultCatalogWhenEnabled(t *testing.T) {
	h := handlers.NewCatalogHandler(&stubSearcher{name: "nyaa"}, &stubSearcher{name: "sukebei"}, 75, "1.2.3")

	var doc manifestDoc
	doJSON(t, catalogRouter(h), "/manifest.json", &doc)
	require.Len(t, doc.Catalogs, 2)
	assert.Equal(t, "nyaadex-adult", doc.Catalogs[1].ID)
}

type catalogResponse struct {
	Metas []struct {
		ID          string `json:"id"`
		Type        string `json:"type"`
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"metas"`
}

func TestCatalogMapsRecords(t *testing.T) {
	main := &stubSearcher{
		name: "nyaa",
		result: models.SearchResult{
			Torrents: []models.TorrentRecord{
				{
					ID: "0123456789abcdef0123456789abcdef01234567", Title: "Release One",
					Size: "1.5 GB", Seeders: 10, Leechers: 2,
					Category: "Anime", Subcategory: "English-translated",
					PublishedAt: "2024-01-01 00:00", Trusted: true,
				},
				{ID: "t-ffffffffffffffffffffffffffffffffffffffff", Title: "Release Two"},
			},
		},
	}
	h := handlers.NewCatalogHandler(main, nil, 75, "1.0.0")

	var resp catalogResponse
	rec := doJSON(t, catalogRouter(h), "/catalog/anime/nyaadex-main.json", &resp)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Metas, 2)

	first := resp.Metas[0]
	assert.Equal(t, "nyaadex:0123456789abcdef0123456789abcdef01234567", first.ID)
	assert.Equal(t, "anime", first.Type)
	assert.Equal(t, "Release One", first.Name)
	assert.Equal(t, "1.5 GB | S:10 L:2 | Anime - English-translated | 2024-01-01 00:00 | trusted", first.Description)

	assert.Equal(t, "nyaadex:t-ffffffffffffffffffffffffffffffffffffffff", resp.Metas[1].ID)
}

func TestCatalogParsesExtraSegment(t *testing.T) {
	main := &stubSearcher{name: "nyaa"}
	h := handlers.NewCatalogHandler(main, nil, 75, "1.0.0")

	extra := url.PathEscape("search=space battle&skip=150&genre=Anime")
	var resp catalogResponse
	doJSON(t, catalogRouter(h), "/catalog/anime/nyaadex-main/"+extra+".json", &resp)

	assert.Equal(t, "space battle", main.filters.Query)
	assert.Equal(t, "1_0", main.filters.Category)
	assert.Equal(t, 3, main.opts.Page, "skip=150 with a 75-item page is page 3")
	assert.Equal(t, 75, main.opts.Limit)
}

func TestCatalogRoutesAdultID(t *testing.T) {
	main := &stubSearcher{name: "nyaa"}
	adult := &stubSearcher{name: "sukebei", result: models.SearchResult{
		Torrents: []models.TorrentRecord{{ID: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", Title: "Adult Release"}},
	}}
	h := handlers.NewCatalogHandler(main, adult, 75, "1.0.0")

	var resp catalogResponse
	doJSON(t, catalogRouter(h), "/catalog/anime/nyaadex-adult.json", &resp)
	require.Len(t, resp.Metas, 1)
	assert.Equal(t, "Adult Release", resp.Metas[0].Name)
	assert.Empty(t, main.filters.Query, "main searcher should not have been called")
}

func TestCatalogAdultDisabled(t *testing.T) {
	h := handlers.NewCatalogHandler(&stubSearcher{name: "nyaa"}, nil, 75, "1.0.0")

	var resp catalogResponse
	rec := doJSON(t, catalogRouter(h), "/catalog/anime/nyaadex-adult.json", &resp)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, resp.Metas)
}

func TestCatalogDegradesOnSearchError(t *testing.T) {
	main := &stubSearcher{name: "nyaa", err: errors.New("site is down")}
	h := handlers.NewCatalogHandler(main, nil, 75, "1.0.0")

	var resp catalogResponse
	rec := doJSON(t, catalogRouter(h), "/catalog/anime/nyaadex-main.json", &resp)
	assert.Equal(t, http.StatusOK, rec.Code, "a pipeline failure must not break the catalog host")
	assert.NotNil(t, resp.Metas)
	assert.Empty(t, resp.Metas)
}

type streamResponse struct {
	Streams []struct {
		InfoHash string   `json:"infoHash"`
		Sources  []string `json:"sources"`
	} `json:"streams"`
}

func TestStreamResolvesInfoHash(t *testing.T) {
	h := handlers.NewCatalogHandler(&stubSearcher{name: "nyaa"}, nil, 75, "1.0.0")
	hash := "0123456789abcdef0123456789abcdef01234567"

	var resp streamResponse
	rec := doJSON(t, catalogRouter(h), fmt.Sprintf("/stream/anime/nyaadex:%s.json", hash), &resp)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Streams, 1)
	assert.Equal(t, hash, resp.Streams[0].InfoHash)
	assert.Equal(t, []string{"dht:" + hash}, resp.Streams[0].Sources)
}

func TestStreamRejectsUnplayableIDs(t *testing.T) {
	h := handlers.NewCatalogHandler(&stubSearcher{name: "nyaa"}, nil, 75, "1.0.0")

	for _, id := range []string{
		"nyaadex:t-ffffffffffffffffffffffffffffffffffffffff", // title-derived id
		"nyaadex:short",
		"tt0111161", // foreign id namespace
	} {
		var resp streamResponse
		rec := doJSON(t, catalogRouter(h), "/stream/anime/"+url.PathEscape(id)+".json", &resp)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, resp.Streams, "id %q should not resolve to a stream", id)
	}
}

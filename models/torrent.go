package models

// TorrentRecord is one catalog entry derived from one listing row on the
// source site. A record always carries a non-empty Title and Magnet; rows
// missing either never become records.
type TorrentRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Magnet      string `json:"magnet"`
	Size        string `json:"size"`
	SizeBytes   int64  `json:"sizeBytes"`
	Seeders     int    `json:"seeders"`
	Leechers    int    `json:"leechers"`
	Downloads   int    `json:"downloads"`
	PublishedAt string `json:"publishedAt"`
	CategoryID  string `json:"categoryId"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Uploader    string `json:"uploader"`
	Trusted     bool   `json:"trusted"`
	Remake      bool   `json:"remake"`
	Quality     string `json:"quality,omitempty"`
	Language    string `json:"language,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
}

// SearchFilters narrows a search. Zero values mean unconstrained.
type SearchFilters struct {
	Query          string `json:"query,omitempty"`
	Category       string `json:"category,omitempty"` // site category code, e.g. "1_2"
	Quality        string `json:"quality,omitempty"`
	Language       string `json:"language,omitempty"`
	TrustedOnly    bool   `json:"trustedOnly,omitempty"`
	ExcludeRemakes bool   `json:"excludeRemakes,omitempty"`
}

// SortKey selects the upstream ordering of search results.
type SortKey string

const (
	SortDate      SortKey = "date"
	SortSize      SortKey = "size"
	SortSeeders   SortKey = "seeders"
	SortLeechers  SortKey = "leechers"
	SortDownloads SortKey = "downloads"
	SortTitle     SortKey = "title"
)

type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// SearchOptions carries pagination and sort intent.
type SearchOptions struct {
	Page  int       `json:"page,omitempty"`
	Limit int       `json:"limit,omitempty"`
	Sort  SortKey   `json:"sort,omitempty"`
	Order SortOrder `json:"order,omitempty"`
}

// SearchResult is the output envelope of one search call.
type SearchResult struct {
	Torrents    []TorrentRecord `json:"torrents"`
	CurrentPage int             `json:"currentPage"`
	TotalPages  int             `json:"totalPages"`
	TotalItems  int             `json:"totalItems"`
	HasNext     bool            `json:"hasNext"`
	HasPrev     bool            `json:"hasPrev"`
}

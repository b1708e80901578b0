// Package filter decides which torrent records may appear in user-visible
// search results. Rules run in a fixed order and the first hit blocks the
// record: keyword denylist, blocked category prefixes, adult category
// prefixes (when the NSFW filter is on), trusted-only mode.
//
// The keyword denylist is a safety floor: it is compiled into the binary,
// evaluated on every record, and no configuration flag can turn it off.
package filter

import (
	"log"
	"regexp"
	"strings"

	"nyaadex/models"
)

// minorContentKeywords is the built-in denylist of whole-word title keywords
// that block a record unconditionally.
var minorContentKeywords = []string{
	"loli",
	"lolicon",
	"shota",
	"shotacon",
	"toddlercon",
	"preteen",
	"pre-teen",
	"underage",
	"jailbait",
	"pedo",
	"child",
}

// nsfwCategoryPrefixes are the adult variant's top-level category codes.
var nsfwCategoryPrefixes = []string{
	"1_1", "1_2", "1_3", "1_4", // art
	"2_1", "2_2", // real life
}

// Reason explains why a record was blocked. Empty means allowed.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonKeyword   Reason = "keyword"
	ReasonCategory  Reason = "blocked-category"
	ReasonNSFW      Reason = "nsfw-category"
	ReasonUntrusted Reason = "untrusted"
)

// Options configure the configurable part of the filter.
type Options struct {
	ExtraKeywords     []string // appended to the built-in denylist
	BlockedCategories []string // category-code prefixes to block
	NSFWFilter        bool
	TrustedOnly       bool
}

// Filter is a pure predicate over torrent records. Safe for concurrent use.
type Filter struct {
	opts      Options
	keywordRe *regexp.Regexp
}

// New compiles a filter from the given options.
func New(opts Options) *Filter {
	return &Filter{
		opts:      opts,
		keywordRe: compileKeywords(minorContentKeywords, opts.ExtraKeywords),
	}
}

func compileKeywords(builtin, extra []string) *regexp.Regexp {
	var quoted []string
	for _, kw := range append(append([]string{}, builtin...), extra...) {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(kw)))
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// Verdict returns the first rule that blocks the record, or ReasonNone.
func (f *Filter) Verdict(r models.TorrentRecord) Reason {
	if f.keywordRe.MatchString(r.Title) {
		return ReasonKeyword
	}
	for _, prefix := range f.opts.BlockedCategories {
		if prefix != "" && strings.HasPrefix(r.CategoryID, prefix) {
			return ReasonCategory
		}
	}
	if f.opts.NSFWFilter {
		for _, prefix := range nsfwCategoryPrefixes {
			if strings.HasPrefix(r.CategoryID, prefix) {
				return ReasonNSFW
			}
		}
	}
	if f.opts.TrustedOnly && !r.Trusted {
		return ReasonUntrusted
	}
	return ReasonNone
}

// IsAllowed reports whether the record passes every rule.
func (f *Filter) IsAllowed(r models.TorrentRecord) bool {
	return f.Verdict(r) == ReasonNone
}

// Records applies the predicate to a slice, preserving input order.
func (f *Filter) Records(records []models.TorrentRecord) []models.TorrentRecord {
	if len(records) == 0 {
		return records
	}
	kept := make([]models.TorrentRecord, 0, len(records))
	blocked := 0
	for _, r := range records {
		if reason := f.Verdict(r); reason != ReasonNone {
			blocked++
			log.Printf("[filter] blocked %q (%s)", r.Title, reason)
			continue
		}
		kept = append(kept, r)
	}
	if blocked > 0 {
		log.Printf("[filter] %d -> %d records (%d blocked)", len(records), len(kept), blocked)
	}
	return kept
}

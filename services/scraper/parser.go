package scraper

import (
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"nyaadex/models"
)

// ListingPage is the parsed form of one search-results page.
type ListingPage struct {
	Records    []models.TorrentRecord
	TotalPages int
}

// rowOutcome tags the result of parsing a single listing row: either a
// record or the reason the row was skipped.
type rowOutcome struct {
	record models.TorrentRecord
	skip   string
}

// ParsePage extracts torrent records and pagination metadata from one
// listing page. A malformed row is skipped and logged; parsing itself
// never fails, an unreadable document just yields an empty page.
func ParsePage(rawHTML string) ListingPage {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		log.Printf("[parser] unreadable document: %v", err)
		return ListingPage{TotalPages: 1}
	}

	rows := doc.Find("table.torrent-list > tbody > tr")
	if rows.Length() == 0 {
		rows = doc.Find("table tbody tr")
	}

	page := ListingPage{TotalPages: parseTotalPages(doc)}
	rows.Each(func(i int, row *goquery.Selection) {
		out := parseRow(row)
		if out.skip != "" {
			log.Printf("[parser] skipping row %d: %s", i, out.skip)
			return
		}
		page.Records = append(page.Records, out.record)
	})
	return page
}

func parseRow(row *goquery.Selection) rowOutcome {
	title := rowTitle(row)
	if title == "" {
		return rowOutcome{skip: "no title"}
	}

	magnet := ""
	row.Find(`a[href^="magnet:"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		magnet, _ = a.Attr("href")
		return false
	})
	if magnet == "" {
		return rowOutcome{skip: fmt.Sprintf("no magnet link for %q", title)}
	}

	id := extractInfoHash(magnet)
	if id == "" {
		id = fallbackID(title)
	}

	rec := models.TorrentRecord{
		ID:       id,
		Title:    title,
		Magnet:   magnet,
		Uploader: "Anonymous",
	}

	if catLink := row.Find(`td:first-child a[href*="?c="]`).First(); catLink.Length() > 0 {
		if href, ok := catLink.Attr("href"); ok {
			if u, err := url.Parse(href); err == nil {
				rec.CategoryID = u.Query().Get("c")
			}
		}
		label := catLink.AttrOr("title", "")
		if label == "" {
			label = strings.TrimSpace(catLink.Text())
		}
		rec.Category, rec.Subcategory = splitCategory(label)
	}

	cells := row.Find("td")
	rec.Size = strings.TrimSpace(cells.Eq(3).Text())
	rec.SizeBytes = parseSizeBytes(rec.Size)
	rec.PublishedAt = strings.TrimSpace(cells.Eq(4).Text())
	rec.Seeders = parseCount(cells.Eq(5).Text())
	rec.Leechers = parseCount(cells.Eq(6).Text())
	rec.Downloads = parseCount(cells.Eq(7).Text())

	if uploader := strings.TrimSpace(row.Find(`a[href^="/user/"]`).First().Text()); uploader != "" {
		rec.Uploader = uploader
	}

	// Row styling is the only signal for these flags: the site marks
	// trusted uploads with a success-styled row and remakes with a
	// danger-styled one.
	class := row.AttrOr("class", "")
	rec.Trusted = strings.Contains(class, "success")
	rec.Remake = strings.Contains(class, "danger")

	rec.Quality = extractQuality(title)
	rec.Language = extractLanguage(title)
	rec.Resolution = extractResolution(title)

	return rowOutcome{record: rec}
}

// rowTitle picks the row's display title. Anchors carry the full title in
// their title attribute even when the visible text is truncated, so the
// attribute wins. Several anchors can carry one (category icon, comment
// counter, the listing link itself); the last one is the display title.
func rowTitle(row *goquery.Selection) string {
	title := ""
	row.Find("a[title]").Each(func(_ int, a *goquery.Selection) {
		if href, _ := a.Attr("href"); strings.HasPrefix(href, "magnet:") {
			return
		}
		if a.HasClass("comments") {
			return
		}
		if t := strings.TrimSpace(a.AttrOr("title", "")); t != "" {
			title = t
		}
	})
	if title != "" {
		return title
	}
	return strings.TrimSpace(row.Find(`a[href^="/view/"]`).Last().Text())
}

// parseTotalPages derives the page count from the pagination control,
// defaulting to 1 when the control is missing or non-numeric.
func parseTotalPages(doc *goquery.Document) int {
	total := 1
	doc.Find("ul.pagination li a").Each(func(_ int, a *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(a.Text())); err == nil && n > total {
			total = n
		}
	})
	return total
}

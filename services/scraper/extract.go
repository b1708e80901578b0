package scraper

import (
	"crypto/sha1"
	"encoding/base32"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
)

// infoHashRe matches the btih segment of a magnet URI, hex or base32.
var infoHashRe = regexp.MustCompile(`xt=urn:btih:([a-fA-F0-9]{40}|[a-zA-Z2-7]{32})`)

// extractInfoHash returns the content hash embedded in a magnet link as
// 40-char lowercase hex, or "" when none is present. Base32-encoded hashes
// are decoded into the hex form so every record id shares one shape.
func extractInfoHash(magnet string) string {
	m := infoHashRe.FindStringSubmatch(magnet)
	if len(m) < 2 {
		return ""
	}
	hash := m[1]
	if len(hash) == 32 {
		raw, err := base32.StdEncoding.DecodeString(strings.ToUpper(hash))
		if err != nil {
			return ""
		}
		return hex.EncodeToString(raw)
	}
	return strings.ToLower(hash)
}

// fallbackID derives a deterministic id from the title for rows whose
// download link carries no parseable content hash. Distinct torrents with
// identical titles collide on this id; the id only has to be stable across
// repeated parses, so that is accepted rather than salted away. The "t-"
// prefix keeps these ids distinguishable from real content hashes, which
// downstream uses to decide whether an id is playable.
func fallbackID(title string) string {
	sum := sha1.Sum([]byte(title))
	return "t-" + hex.EncodeToString(sum[:])
}

// sizeRe captures "1.5 GB", "500mb", "1.4 GiB", "1,024 KB" and bare bytes.
var sizeRe = regexp.MustCompile(`(?i)([\d,]+(?:\.\d+)?)\s*([KMGT]?)i?B\b`)

// parseSizeBytes converts a human-readable size into bytes using 1024-based
// units. Unparseable text yields 0; callers keep the original string.
func parseSizeBytes(text string) int64 {
	m := sizeRe.FindStringSubmatch(text)
	if len(m) < 3 {
		return 0
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0
	}
	mult := float64(1)
	switch strings.ToUpper(m[2]) {
	case "K":
		mult = 1 << 10
	case "M":
		mult = 1 << 20
	case "G":
		mult = 1 << 30
	case "T":
		mult = 1 << 40
	}
	return int64(value * mult)
}

// splitCategory splits a combined "Category - Subcategory" label on the
// first " - " separator.
func splitCategory(label string) (string, string) {
	label = strings.TrimSpace(label)
	if idx := strings.Index(label, " - "); idx >= 0 {
		return strings.TrimSpace(label[:idx]), strings.TrimSpace(label[idx+3:])
	}
	return label, ""
}

// parseCount reads a non-negative integer cell, defaulting to 0 on any
// non-numeric content.
func parseCount(text string) int {
	text = strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	n, err := strconv.Atoi(text)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// titlePattern is one entry of an ordered heuristic table; the first
// matching pattern wins, so tables are ordered most-specific first.
type titlePattern struct {
	re  *regexp.Regexp
	tag string
}

func matchFirst(table []titlePattern, title string) string {
	for _, p := range table {
		if p.re.MatchString(title) {
			return p.tag
		}
	}
	return ""
}

var qualityPatterns = []titlePattern{
	{regexp.MustCompile(`(?i)\b(?:2160p|4k|uhd)\b`), "4K"},
	{regexp.MustCompile(`(?i)\b1080p\b`), "1080p"},
	{regexp.MustCompile(`(?i)\b720p\b`), "720p"},
	{regexp.MustCompile(`(?i)\b480p\b`), "480p"},
	{regexp.MustCompile(`(?i)\b360p\b`), "360p"},
}

func extractQuality(title string) string {
	return matchFirst(qualityPatterns, title)
}

var languagePatterns = []titlePattern{
	{regexp.MustCompile(`(?i)\bmulti(?:ple)?[ -]?(?:sub|audio|lang)`), "Multi"},
	{regexp.MustCompile(`(?i)\bdual[ -]?audio\b`), "Dual Audio"},
	{regexp.MustCompile(`(?i)\[(?:eng?|english)\]|\benglish\b`), "English"},
	{regexp.MustCompile(`(?i)\[(?:jpn?|jap|japanese)\]|\bjapanese\b`), "Japanese"},
	{regexp.MustCompile(`(?i)\[(?:chs|cht|chi|chinese)\]|\bchinese\b|[\x{7B80}\x{7E41}]`), "Chinese"},
	{regexp.MustCompile(`(?i)\[(?:kor?|korean)\]|\bkorean\b`), "Korean"},
	{regexp.MustCompile(`(?i)\[(?:spa|esp|spanish)\]|\bspanish\b|\bcastellano\b`), "Spanish"},
	{regexp.MustCompile(`(?i)\[(?:fre?|fra|french)\]|\bfrench\b|\bvostfr\b`), "French"},
	{regexp.MustCompile(`(?i)\[(?:ger|deu|german)\]|\bgerman\b`), "German"},
	{regexp.MustCompile(`(?i)\[(?:ita|italian)\]|\bitalian\b`), "Italian"},
	{regexp.MustCompile(`(?i)\[(?:por|ptbr|pt-br|portuguese)\]|\bportuguese\b`), "Portuguese"},
	{regexp.MustCompile(`(?i)\[(?:rus?|russian)\]|\brussian\b`), "Russian"},
}

func extractLanguage(title string) string {
	return matchFirst(languagePatterns, title)
}

var (
	dimensionsRe  = regexp.MustCompile(`\b(\d{3,4})\s?[xX\x{00D7}]\s?(\d{3,4})\b`)
	progressiveRe = regexp.MustCompile(`(?i)\b(\d{3,4})p\b`)
)

// extractResolution returns a WxH or Np resolution token from the title.
func extractResolution(title string) string {
	if m := dimensionsRe.FindStringSubmatch(title); len(m) == 3 {
		return m[1] + "x" + m[2]
	}
	if m := progressiveRe.FindStringSubmatch(title); len(m) == 2 {
		return strings.ToLower(m[1] + "p")
	}
	return ""
}

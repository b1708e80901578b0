package handlers

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gorilla/mux"
)

var infoHashIDRe = regexp.MustCompile(`^[0-9a-f]{40}$`)

type stream struct {
	InfoHash string   `json:"infoHash,omitempty"`
	Name     string   `json:"name,omitempty"`
	Title    string   `json:"title,omitempty"`
	Sources  []string `json:"sources,omitempty"`
}

type streamResponse struct {
	Streams []stream `json:"streams"`
}

// Stream resolves a catalog item id into a playable torrent stream. Ids
// derived from a title hash rather than a content hash cannot be played
// and yield an empty stream list.
func (h *CatalogHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(mux.Vars(r)["id"], idPrefix)
	if !infoHashIDRe.MatchString(id) {
		writeJSON(w, http.StatusOK, streamResponse{Streams: []stream{}})
		return
	}
	writeJSON(w, http.StatusOK, streamResponse{
		Streams: []stream{{
			InfoHash: id,
			Name:     "nyaadex",
			Title:    "Magnet stream",
			Sources:  []string{"dht:" + id},
		}},
	})
}

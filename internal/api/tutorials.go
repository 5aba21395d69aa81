package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/caged/internal/store"
)

// tutorialPath extracts the tutorial path from the URL (everything after
// /api/tutorials/). Encoded slashes are accepted.
func tutorialPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Tutorials handles GET /api/tutorials. With q it searches, without it lists.
//
//	@Summary		Search or list PDF tutorials
//	@Tags			tutorials
//	@Produce		json
//	@Param			q		query		string	false	"Search query"
//	@Param			limit	query		int		false	"Maximum hits"
//	@Success		200		{object}	SearchResponse
//	@Security		BearerAuth
//	@Router			/tutorials [get]
func (h *Handler) Tutorials(w http.ResponseWriter, r *http.Request) {
	if h.tutorials == nil {
		writeJSON(w, http.StatusNotFound, errorBody("tutorials disabled"))
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		rows, err := h.tutorials.List()
		if err != nil {
			writeError(w, "list tutorials", err)
			return
		}
		if rows == nil {
			rows = []store.TutorialRow{}
		}
		writeJSON(w, http.StatusOK, TutorialListResponse{Tutorials: rows, Total: len(rows)})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	results, err := h.tutorials.Search(q, limit)
	if err != nil {
		writeError(w, "search tutorials", err)
		return
	}
	if results == nil {
		results = []store.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// GetTutorial handles GET /api/tutorials/*.
//
//	@Summary		Extracted text of one tutorial
//	@Tags			tutorials
//	@Produce		json
//	@Param			path	path		string	true	"Tutorial path"
//	@Success		200		{object}	library.Tutorial
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tutorials/{path} [get]
func (h *Handler) GetTutorial(w http.ResponseWriter, r *http.Request) {
	if h.tutorials == nil {
		writeJSON(w, http.StatusNotFound, errorBody("tutorials disabled"))
		return
	}
	p := tutorialPath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	t, err := h.tutorials.Get(p)
	if err != nil {
		writeError(w, "get tutorial", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

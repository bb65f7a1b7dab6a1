package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/openrec/reggie/internal/reggie"
)

func parseID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", reggie.ErrValidation, name)
	}
	return id, nil
}

func (s *Server) listSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.store.ListSites(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sites)
}

type createSiteRequest struct {
	Name           string  `json:"name"`
	URL            string  `json:"url"`
	Type           string  `json:"type"`
	ScrapeInterval int     `json:"scrape_interval"`
	Profile        *string `json:"profile"`
}

func (s *Server) createSite(w http.ResponseWriter, r *http.Request) {
	var req createSiteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Name == "" || req.URL == "" || req.Type == "" {
		writeError(w, http.StatusBadRequest, "name, url, and type are required")
		return
	}
	if req.Type != reggie.SiteTypeDirect && req.Type != reggie.SiteTypePortal {
		writeError(w, http.StatusBadRequest, "type must be direct or portal")
		return
	}
	if req.ScrapeInterval <= 0 {
		req.ScrapeInterval = 3600
	}

	site, err := s.store.CreateSite(r.Context(), reggie.Site{
		Name:           req.Name,
		URL:            req.URL,
		Type:           req.Type,
		ScrapeInterval: req.ScrapeInterval,
		Profile:        req.Profile,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, site)
}

func (s *Server) getSite(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "site_id")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	site, err := s.store.GetSite(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (s *Server) updateSite(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "site_id")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	var patch reggie.SitePatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if patch.Type != nil && *patch.Type != reggie.SiteTypeDirect && *patch.Type != reggie.SiteTypePortal {
		writeError(w, http.StatusBadRequest, "type must be direct or portal")
		return
	}
	site, err := s.store.UpdateSite(r.Context(), id, patch)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (s *Server) deleteSite(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "site_id")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if err := s.store.DeleteSite(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) discoverSite(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "site_id")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	summary, err := s.discovery.RunDiscovery(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type searchSitesRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (s *Server) searchSites(w http.ResponseWriter, r *http.Request) {
	var req searchSitesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	candidates, err := s.discovery.SearchSites(r.Context(), req.Query, req.Limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, candidates)
}

func (s *Server) listScrapes(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "site_id")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if _, err := s.store.GetSite(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	scrapes, err := s.store.ListRawScrapes(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scrapes)
}

type insertScrapeRequest struct {
	URL        string `json:"url"`
	Content    string `json:"content"`
	FetchError string `json:"fetch_error"`
}

func (s *Server) insertScrapes(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "site_id")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if _, err := s.store.GetSite(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	var reqs []insertScrapeRequest
	if err := decodeBody(r, &reqs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(reqs) == 0 {
		writeError(w, http.StatusBadRequest, "at least one scrape is required")
		return
	}
	scrapes := make([]reggie.RawScrape, 0, len(reqs))
	for _, sc := range reqs {
		if sc.URL == "" {
			writeError(w, http.StatusBadRequest, "scrape url is required")
			return
		}
		scrapes = append(scrapes, reggie.RawScrape{
			SiteID:     id,
			URL:        sc.URL,
			Content:    sc.Content,
			FetchError: sc.FetchError,
		})
	}
	saved, err := s.store.InsertRawScrapes(r.Context(), scrapes)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) replacePrograms(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "site_id")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	var programs []reggie.Program
	if err := decodeBody(r, &programs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	for _, p := range programs {
		if p.Name == "" {
			writeError(w, http.StatusBadRequest, "program name is required")
			return
		}
	}
	replaced, err := s.store.ReplaceSitePrograms(r.Context(), id, programs)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, replaced)
}

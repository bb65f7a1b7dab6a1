package api

import (
	"net/http"
	"strconv"

	"github.com/openrec/reggie/internal/reggie"
)

func (s *Server) listPrograms(w http.ResponseWriter, r *http.Request) {
	filter := reggie.ProgramFilter{
		Type:     r.URL.Query().Get("type"),
		AgeGroup: r.URL.Query().Get("age_group"),
		Status:   r.URL.Query().Get("status"),
	}
	if raw := r.URL.Query().Get("site_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "site_id must be a positive integer")
			return
		}
		filter.SiteID = id
	}

	programs, err := s.store.ListPrograms(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, programs)
}
